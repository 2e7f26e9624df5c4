package service

import (
	"log/slog"
	"sync"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// SettingsService manages per-source playback settings (volume and
// repeat mode), cached in memory and written through to the repository
// on every change.
type SettingsService struct {
	// Dependencies (injected)
	logger *slog.Logger
	repo   ports.SettingsRepository
	bus    ports.EventBus

	defaultVolume float64

	// State
	cache map[domain.SourceType]domain.SourceSettings
	mu    sync.RWMutex
}

// NewSettingsService creates the settings service. defaultVolume is used
// for sources that have never been configured.
func NewSettingsService(
	logger *slog.Logger,
	repo ports.SettingsRepository,
	bus ports.EventBus,
	defaultVolume float64,
) *SettingsService {
	if defaultVolume < 0.0 || defaultVolume > 1.0 {
		defaultVolume = 0.8
	}

	return &SettingsService{
		logger:        logger,
		repo:          repo,
		bus:           bus,
		defaultVolume: defaultVolume,
		cache:         make(map[domain.SourceType]domain.SourceSettings),
	}
}

// Get returns the settings for a source, loading them from the
// repository on first access and falling back to defaults.
func (s *SettingsService) Get(source domain.SourceType) domain.SourceSettings {
	s.mu.RLock()
	if settings, ok := s.cache[source]; ok {
		s.mu.RUnlock()
		return settings
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check after acquiring the write lock
	if settings, ok := s.cache[source]; ok {
		return settings
	}

	settings, found, err := s.repo.LoadSettings(source)
	if err != nil {
		s.logger.Warn("failed to load settings",
			slog.String("source", source.String()), slog.Any("error", err))
		found = false
	}
	if !found {
		settings = domain.SourceSettings{Volume: s.defaultVolume, Repeat: domain.RepeatNone}
	}

	s.cache[source] = settings
	return settings
}

// SetVolume persists a source's volume setting.
func (s *SettingsService) SetVolume(source domain.SourceType, volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	settings := s.Get(source)
	settings.Volume = volume

	if err := s.save(source, settings); err != nil {
		return err
	}

	s.bus.Publish(domain.NewVolumeChangedEvent(source, volume))
	return nil
}

// SetRepeat persists a source's repeat mode.
func (s *SettingsService) SetRepeat(source domain.SourceType, mode domain.RepeatMode) error {
	settings := s.Get(source)
	settings.Repeat = mode

	if err := s.save(source, settings); err != nil {
		return err
	}

	s.bus.Publish(domain.NewRepeatChangedEvent(source, mode))
	return nil
}

// save updates the cache and writes through to the repository.
func (s *SettingsService) save(source domain.SourceType, settings domain.SourceSettings) error {
	s.mu.Lock()
	s.cache[source] = settings
	s.mu.Unlock()

	if err := s.repo.SaveSettings(source, settings); err != nil {
		s.logger.Warn("failed to persist settings",
			slog.String("source", source.String()), slog.Any("error", err))
		return domain.NewServiceError("SettingsService", "save", "failed to persist settings", err)
	}

	return nil
}
