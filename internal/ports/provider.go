package ports

import (
	"context"

	"github.com/boombox-player/boombox/internal/domain"
)

// PlaybackProvider populates one source's session with tracks.
// Providers are external collaborators: the jukebox disc registry, the local
// music folder scanner, and the remote playlist resolver all implement this.
//
// LoadTracks may be slow (disk walk, network); the session manager always
// calls it from a background goroutine.
type PlaybackProvider interface {
	// SourceID identifies which session this provider feeds.
	SourceID() domain.SourceType

	// DisplayName is the human-readable source name.
	DisplayName() string

	// IsAvailable reports whether the provider can currently serve tracks.
	IsAvailable() bool

	// LoadTracks returns the provider's current track list.
	LoadTracks(ctx context.Context) ([]domain.Track, error)

	// Cleanup releases any resources held by the provider.
	Cleanup() error
}
