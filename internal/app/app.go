// Package app wires the boombox components together and manages their
// lifecycle.
package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/boombox-player/boombox/internal/adapter/audio/beep"
	"github.com/boombox-player/boombox/internal/adapter/audio/mock"
	"github.com/boombox-player/boombox/internal/adapter/eventbus"
	"github.com/boombox-player/boombox/internal/adapter/fetcher/ytdlp"
	"github.com/boombox-player/boombox/internal/adapter/repository/sqlite"
	"github.com/boombox-player/boombox/internal/config"
	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
	"github.com/boombox-player/boombox/internal/provider"
	"github.com/boombox-player/boombox/internal/service"
)

// Options tweak how the application is assembled.
type Options struct {
	// MockAudio replaces the speaker-backed engine with the in-memory
	// mock, for headless environments.
	MockAudio bool
}

// App is the composition root. It owns every component and shuts them
// down in reverse construction order.
type App struct {
	logger *slog.Logger
	cfg    config.Config

	bus       *eventbus.SyncEventBus
	engine    ports.AudioEngine
	store     *sqlite.Store
	queue     *service.DownloadQueue
	cache     *service.DownloadCache
	manager   *service.DownloadManager
	playback  *service.PlaybackService
	streaming *service.StreamingService
	settings  *service.SettingsService
	sessions  *service.SessionManager

	providers []ports.PlaybackProvider
}

// New builds the full application from configuration.
// Construction fails hard on unopenable resources; everything after
// startup degrades through logs and events instead.
func New(logger *slog.Logger, cfg config.Config, opts Options) (*App, error) {
	a := &App{logger: logger, cfg: cfg}

	a.bus = eventbus.NewSyncEventBus()
	a.bus.SetLogger(logger.With(slog.String("component", "eventbus")))

	if opts.MockAudio {
		engine := mock.NewEngine()
		engine.SetLogger(logger.With(slog.String("component", "audio")))
		a.engine = engine
	} else {
		a.engine = beep.NewEngine(logger.With(slog.String("component", "audio")))
	}

	if err := a.engine.Initialize(cfg.SampleRate); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		a.teardown()
		return nil, domain.NewCacheError("create", cfg.DataDir, err)
	}

	store, err := sqlite.NewStore(
		logger.With(slog.String("component", "store")),
		filepath.Join(cfg.DataDir, "boombox.db"),
	)
	if err != nil {
		a.teardown()
		return nil, err
	}
	a.store = store

	fetcher := ytdlp.NewFetcher(
		logger.With(slog.String("component", "fetcher")),
		cfg.FetcherBinary,
		cfg.CacheDir,
	)

	a.queue, err = service.NewDownloadQueue(
		logger.With(slog.String("service", "download_queue")),
		a.bus, fetcher, store, cfg.CacheDir, cfg.MaxConcurrentDownloads,
	)
	if err != nil {
		a.teardown()
		return nil, err
	}

	a.cache = service.NewDownloadCache(logger.With(slog.String("service", "download_cache")), a.queue)
	a.manager = service.NewDownloadManager(logger.With(slog.String("service", "download_manager")), a.queue)

	a.playback = service.NewPlaybackService(
		logger.With(slog.String("service", "playback")), a.engine, a.bus)

	a.streaming = service.NewStreamingService(
		logger.With(slog.String("service", "streaming")), a.bus, a.cache)

	a.settings = service.NewSettingsService(
		logger.With(slog.String("service", "settings")), store, a.bus, cfg.DefaultVolume)

	a.sessions = service.NewSessionManager(
		logger.With(slog.String("service", "sessions")),
		a.bus, a.playback, a.streaming, a.settings)

	a.registerProviders(fetcher)

	// Start on the jukebox, the source that is always available.
	if err := a.sessions.SetViewedSource(domain.SourceJukebox); err != nil {
		logger.Warn("failed to select initial source", slog.Any("error", err))
	}

	logger.Info("boombox assembled",
		slog.String("cache_dir", cfg.CacheDir),
		slog.Bool("mock_audio", opts.MockAudio))

	return a, nil
}

// registerProviders creates the three sources from configuration.
func (a *App) registerProviders(fetcher ports.MediaFetcher) {
	discs := make([]provider.Disc, 0, len(a.cfg.Jukebox))
	for _, disc := range a.cfg.Jukebox {
		discs = append(discs, provider.Disc{
			ID:       disc.ID,
			Title:    disc.Title,
			Artist:   disc.Artist,
			Path:     disc.Path,
			Duration: time.Duration(disc.DurationSeconds) * time.Second,
		})
	}

	providerLogger := a.logger.With(slog.String("component", "provider"))

	a.providers = []ports.PlaybackProvider{
		provider.NewJukeboxProvider(providerLogger, discs),
		provider.NewLocalProvider(providerLogger, a.cfg.LocalMusicDir),
		provider.NewYouTubeProvider(providerLogger, fetcher, a.cache, a.cfg.PlaylistURL),
	}

	for _, p := range a.providers {
		a.sessions.RegisterSource(p)
	}
}

// Sessions exposes the session manager, the main control surface.
func (a *App) Sessions() *service.SessionManager {
	return a.sessions
}

// Downloads exposes the bulk download manager.
func (a *App) Downloads() *service.DownloadManager {
	return a.manager
}

// Cache exposes the download cache facade.
func (a *App) Cache() *service.DownloadCache {
	return a.cache
}

// Bus exposes the event bus for observers.
func (a *App) Bus() ports.EventBus {
	return a.bus
}

// Shutdown stops every component in reverse construction order.
func (a *App) Shutdown() {
	a.logger.Info("shutting down")

	if a.sessions != nil {
		if err := a.sessions.Shutdown(); err != nil {
			a.logger.Warn("session manager shutdown failed", slog.Any("error", err))
		}
	}

	for _, p := range a.providers {
		if err := p.Cleanup(); err != nil {
			a.logger.Warn("provider cleanup failed", slog.Any("error", err))
		}
	}

	if a.streaming != nil {
		a.streaming.Close()
	}

	if a.queue != nil {
		if err := a.queue.Shutdown(); err != nil {
			a.logger.Warn("download queue shutdown failed", slog.Any("error", err))
		}
	}

	if a.playback != nil {
		if err := a.playback.Shutdown(); err != nil {
			a.logger.Warn("playback shutdown failed", slog.Any("error", err))
		}
	}

	a.teardown()

	a.logger.Info("shutdown complete")
}

// teardown releases the low-level resources (engine, store, bus).
func (a *App) teardown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close failed", slog.Any("error", err))
		}
		a.store = nil
	}

	if a.engine != nil && a.engine.IsInitialized() {
		if err := a.engine.Shutdown(); err != nil {
			a.logger.Warn("audio engine shutdown failed", slog.Any("error", err))
		}
	}

	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("event bus close failed", slog.Any("error", err))
		}
	}
}
