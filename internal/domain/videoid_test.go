package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short url with params", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile url", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"music url", "https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVideoID(tt.locator)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractVideoID_Idempotent(t *testing.T) {
	// Deriving from an already-derived id must return the same id.
	first, err := ExtractVideoID("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	second, err := ExtractVideoID(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractVideoID_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		locator string
	}{
		{"empty", ""},
		{"unrelated url", "https://example.com/watch?v=dQw4w9WgXcQ"},
		{"missing id", "https://www.youtube.com/watch"},
		{"too short", "abc"},
		{"invalid characters", "dQw4w9WgXc!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractVideoID(tt.locator)
			assert.ErrorIs(t, err, ErrNoCanonicalID)
		})
	}
}
