package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boombox-player/boombox/internal/domain"
)

func TestMetadataStore_GetAbsent(t *testing.T) {
	store := NewMetadataStore()

	entry, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMetadataStore_UpsertAndGet(t *testing.T) {
	store := NewMetadataStore()

	original := &domain.RemoteTrack{
		Track: domain.Track{
			ID:     "abc",
			Source: domain.SourceYouTube,
			Title:  "Some Song",
			URL:    "https://youtu.be/abc",
		},
		State:      domain.StateDownloaded,
		CachedPath: "/cache/abc.mp3",
	}
	require.NoError(t, store.Upsert(original))

	got, err := store.Get("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Some Song", got.Title)
	assert.Equal(t, domain.StateDownloaded, got.State)

	// The store hands out copies, not references.
	got.Title = "mutated"
	again, err := store.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "Some Song", again.Title)

	// Upsert replaces.
	original.State = domain.StateFailed
	require.NoError(t, store.Upsert(original))
	updated, err := store.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, updated.State)
}

func TestMetadataStore_UpsertRejectsEmptyID(t *testing.T) {
	store := NewMetadataStore()

	assert.Error(t, store.Upsert(nil))
	assert.Error(t, store.Upsert(&domain.RemoteTrack{}))
}

func TestMetadataStore_DeleteAndAll(t *testing.T) {
	store := NewMetadataStore()

	require.NoError(t, store.Upsert(&domain.RemoteTrack{Track: domain.Track{ID: "a"}}))
	require.NoError(t, store.Upsert(&domain.RemoteTrack{Track: domain.Track{ID: "b"}}))

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("a")) // missing is a no-op

	all, err = store.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestSettingsRepository_RoundTrip(t *testing.T) {
	repo := NewSettingsRepository()

	_, found, err := repo.LoadSettings(domain.SourceJukebox)
	require.NoError(t, err)
	assert.False(t, found)

	want := domain.SourceSettings{Volume: 0.5, Repeat: domain.RepeatAll}
	require.NoError(t, repo.SaveSettings(domain.SourceJukebox, want))

	got, found, err := repo.LoadSettings(domain.SourceJukebox)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	// Other sources stay unaffected.
	_, found, err = repo.LoadSettings(domain.SourceLocal)
	require.NoError(t, err)
	assert.False(t, found)
}
