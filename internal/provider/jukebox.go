// Package provider contains the playback providers that populate each
// source's session: the jukebox disc registry, the local music folder
// and the remote playlist.
package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// Disc is one jukebox disc definition, usually read from configuration.
type Disc struct {
	ID       string
	Title    string
	Artist   string
	Path     string
	Duration time.Duration
}

// JukeboxProvider serves the fixed jukebox disc collection.
type JukeboxProvider struct {
	logger *slog.Logger
	discs  []Disc
}

// NewJukeboxProvider creates a provider over the given disc registry.
func NewJukeboxProvider(logger *slog.Logger, discs []Disc) *JukeboxProvider {
	return &JukeboxProvider{
		logger: logger,
		discs:  discs,
	}
}

// SourceID identifies the session this provider feeds.
func (p *JukeboxProvider) SourceID() domain.SourceType {
	return domain.SourceJukebox
}

// DisplayName is the human-readable source name.
func (p *JukeboxProvider) DisplayName() string {
	return "Jukebox"
}

// IsAvailable reports whether any discs are registered.
func (p *JukeboxProvider) IsAvailable() bool {
	return len(p.discs) > 0
}

// LoadTracks returns the disc registry as tracks, in registry order.
func (p *JukeboxProvider) LoadTracks(_ context.Context) ([]domain.Track, error) {
	tracks := make([]domain.Track, 0, len(p.discs))
	for _, disc := range p.discs {
		tracks = append(tracks, domain.Track{
			ID:       disc.ID,
			Source:   domain.SourceJukebox,
			Title:    disc.Title,
			Artist:   disc.Artist,
			Path:     disc.Path,
			Duration: disc.Duration,
		})
	}

	p.logger.Debug("jukebox discs loaded", slog.Int("count", len(tracks)))

	return tracks, nil
}

// Cleanup releases provider resources; the jukebox holds none.
func (p *JukeboxProvider) Cleanup() error {
	return nil
}

// Verify interface implementation
var _ ports.PlaybackProvider = (*JukeboxProvider)(nil)
