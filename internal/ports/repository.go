// Package ports defines repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"github.com/boombox-player/boombox/internal/domain"
)

// MetadataStore persists remote track metadata keyed by canonical id.
// Entries are written whenever a download reaches the Downloaded state and
// reconciled against actual cache files on load: metadata is a cache of the
// filesystem ground truth, never the other way around.
//
// Thread-safety: implementations must be thread-safe.
type MetadataStore interface {
	// Get retrieves a stored entry by canonical id.
	// Returns (nil, nil) when no entry exists.
	Get(id string) (*domain.RemoteTrack, error)

	// Upsert inserts or replaces the entry for track's canonical id.
	Upsert(track *domain.RemoteTrack) error

	// Delete removes the entry for id. Missing entries are a no-op.
	Delete(id string) error

	// All returns every stored entry.
	All() ([]*domain.RemoteTrack, error)

	// Close releases the underlying storage.
	Close() error
}

// SettingsRepository persists per-source playback settings.
//
// Thread-safety: implementations must be thread-safe.
type SettingsRepository interface {
	// SaveSettings persists the settings for a source.
	SaveSettings(source domain.SourceType, settings domain.SourceSettings) error

	// LoadSettings retrieves the saved settings for a source.
	// Returns (settings, false, nil) with zero settings when none were saved.
	LoadSettings(source domain.SourceType) (domain.SourceSettings, bool, error)
}
