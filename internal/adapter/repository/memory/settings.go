package memory

import (
	"sync"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// SettingsRepository implements ports.SettingsRepository with a map.
//
// Thread-safe: All operations protected by sync.RWMutex.
type SettingsRepository struct {
	settings map[domain.SourceType]domain.SourceSettings
	mu       sync.RWMutex
}

// NewSettingsRepository creates an empty in-memory settings repository.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{
		settings: make(map[domain.SourceType]domain.SourceSettings),
	}
}

// SaveSettings persists the settings for a source.
func (r *SettingsRepository) SaveSettings(source domain.SourceType, settings domain.SourceSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[source] = settings
	return nil
}

// LoadSettings retrieves the saved settings for a source.
func (r *SettingsRepository) LoadSettings(source domain.SourceType) (domain.SourceSettings, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settings, ok := r.settings[source]
	return settings, ok, nil
}

// Verify interface implementation
var _ ports.SettingsRepository = (*SettingsRepository)(nil)
