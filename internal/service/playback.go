// Package service provides the orchestration logic for the boombox player.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// PlaybackService wraps the shared audio output.
// It is the only component that holds an engine handle, so at most one track
// is ever routed through the output. Session ownership (which source the
// current track belongs to) is decided by the SessionManager, not here.
//
// All operations are thread-safe via sync.RWMutex.
type PlaybackService struct {
	// Dependencies (injected)
	logger *slog.Logger
	engine ports.AudioEngine
	bus    ports.EventBus

	// State
	currentTrack   *domain.Track
	currentHandle  domain.TrackHandle
	volume         float64
	updateInterval time.Duration

	// Concurrency control
	mu            sync.RWMutex
	stopUpdate    chan struct{}
	updateRunning bool
	updateWg      sync.WaitGroup // WaitGroup to wait for update goroutine to exit
	manualStop    bool           // True if playback was explicitly stopped
	hasPlayed     bool           // True if the current track has started playing
}

// NewPlaybackService creates a new playback service and starts its
// progress update routine.
func NewPlaybackService(
	logger *slog.Logger,
	engine ports.AudioEngine,
	bus ports.EventBus,
) *PlaybackService {
	service := &PlaybackService{
		logger:         logger,
		engine:         engine,
		bus:            bus,
		currentHandle:  domain.InvalidTrackHandle,
		volume:         0.8,                    // Default 80% volume
		updateInterval: 333 * time.Millisecond, // 3 times per second
		stopUpdate:     make(chan struct{}),
	}

	logger.Debug("playback service initialized")

	service.startUpdateRoutine()

	return service
}

// LoadAndPlay stops whatever is playing, loads the track's local file and
// starts playback at the given position with the given volume.
// The track must be locally available.
func (s *PlaybackService) LoadAndPlay(track domain.Track, startAt time.Duration, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !track.IsLocallyAvailable() {
		return domain.ErrInvalidFilePath
	}

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.logger.Debug("loading track",
		slog.String("track_id", track.ID),
		slog.String("file_path", track.Path))

	// Load the new track before touching the current one, so a failed
	// load leaves previous playback unchanged.
	handle, err := s.engine.Load(track.Path)
	if err != nil {
		s.logger.Debug("failed to load track", slog.Any("error", err))
		return err
	}

	if err := s.engine.SetVolume(handle, volume); err != nil {
		if unloadErr := s.engine.Unload(handle); unloadErr != nil {
			s.logger.Warn("failed to unload track after volume error", slog.Any("error", unloadErr))
		}
		return err
	}

	duration, err := s.engine.Duration(handle)
	if err != nil {
		if unloadErr := s.engine.Unload(handle); unloadErr != nil {
			s.logger.Warn("failed to unload track after duration error", slog.Any("error", unloadErr))
		}
		return err
	}

	// Restore a saved position. A position at or past the end means the
	// track last finished naturally; start it over instead.
	if startAt > 0 && startAt < duration {
		if err := s.engine.Seek(handle, startAt); err != nil {
			s.logger.Warn("failed to restore position", slog.Any("error", err))
		}
	}

	// The new track is good; replace whatever was playing.
	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.stopInternal(); err != nil {
			s.logger.Warn("failed to stop current track", slog.Any("error", err))
		}
	}

	if err := s.engine.Play(handle); err != nil {
		if unloadErr := s.engine.Unload(handle); unloadErr != nil {
			s.logger.Warn("failed to unload track after play error", slog.Any("error", unloadErr))
		}
		return err
	}

	// Update state
	s.currentTrack = &track
	s.currentHandle = handle
	s.volume = volume
	s.manualStop = false
	s.hasPlayed = true

	s.bus.Publish(domain.NewTrackLoadedEvent(track, handle, duration))
	s.bus.Publish(domain.NewTrackStartedEvent(track))

	return nil
}

// Resume resumes playback of the current track.
func (s *PlaybackService) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		return err
	}

	if status == domain.StatusPlaying {
		return nil
	}

	s.manualStop = false
	s.hasPlayed = true
	if err := s.engine.Play(s.currentHandle); err != nil {
		return err
	}

	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackStartedEvent(*s.currentTrack))
	}

	return nil
}

// Pause pauses playback and returns the position at which it paused.
func (s *PlaybackService) Pause() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return 0, domain.ErrNoTrackLoaded
	}

	// Get the current position before pausing
	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		position = 0
	}

	if err := s.engine.Pause(s.currentHandle); err != nil {
		return 0, err
	}

	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackPausedEvent(*s.currentTrack, position))
	}

	return position, nil
}

// Stop stops playback and unloads the current track.
func (s *PlaybackService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopInternal()
}

// stopInternal stops playback without locking (caller must hold lock).
func (s *PlaybackService) stopInternal() error {
	if s.currentHandle == domain.InvalidTrackHandle {
		return nil
	}

	s.manualStop = true
	s.hasPlayed = false

	if err := s.engine.Stop(s.currentHandle); err != nil {
		// Even if stop fails, clear our state
		s.currentHandle = domain.InvalidTrackHandle
		s.currentTrack = nil
		return err
	}

	// Publish event before clearing state
	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackStoppedEvent(*s.currentTrack))
	}

	s.currentHandle = domain.InvalidTrackHandle
	s.currentTrack = nil

	return nil
}

// SetVolume applies a volume to the currently loaded track, if any.
func (s *PlaybackService) SetVolume(volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.volume = volume

	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetVolume(s.currentHandle, volume); err != nil {
			return err
		}
	}

	return nil
}

// GetVolume returns the volume last applied to the output.
func (s *PlaybackService) GetVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.volume
}

// Seek sets the playback position of the current track.
func (s *PlaybackService) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrNoTrackLoaded
	}

	if err := s.engine.Seek(s.currentHandle, position); err != nil {
		return err
	}

	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		duration = 0
	}
	s.bus.Publish(domain.NewTrackProgressEvent(position, duration))

	return nil
}

// Position returns the current playback position.
func (s *PlaybackService) Position() (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return 0, domain.ErrNoTrackLoaded
	}

	return s.engine.Position(s.currentHandle)
}

// Status returns the current output status.
// With no track loaded this is StatusStopped.
func (s *PlaybackService) Status() domain.PlaybackStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.StatusStopped
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		return domain.StatusStopped
	}

	return status
}

// CurrentTrack returns the track currently routed through the output, if any.
func (s *PlaybackService) CurrentTrack() (domain.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentTrack == nil {
		return domain.Track{}, false
	}

	return *s.currentTrack, true
}

// Shutdown stops playback and cleans up resources.
func (s *PlaybackService) Shutdown() error {
	s.mu.Lock()

	// Stop update routine
	if s.updateRunning {
		close(s.stopUpdate)
		s.updateRunning = false
	}

	// Release lock before waiting for goroutine to exit (to avoid deadlock)
	s.mu.Unlock()

	s.updateWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopInternal()
}

// startUpdateRoutine starts a goroutine that periodically publishes progress events.
func (s *PlaybackService) startUpdateRoutine() {
	s.mu.Lock()
	if s.updateRunning {
		s.mu.Unlock()
		return
	}
	s.updateRunning = true
	s.updateWg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.updateWg.Done()
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopUpdate:
				return

			case <-ticker.C:
				s.publishProgressUpdate()
			}
		}
	}()
}

// publishProgressUpdate publishes a progress event if a track is loaded and
// detects natural completion.
func (s *PlaybackService) publishProgressUpdate() {
	s.mu.RLock()

	if s.currentHandle == domain.InvalidTrackHandle || s.currentTrack == nil {
		s.mu.RUnlock()
		return
	}

	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	// Determine if the track finished while holding the read lock
	finished := status == domain.StatusStopped && !s.manualStop && s.hasPlayed

	// Release read lock BEFORE publishing
	s.mu.RUnlock()

	s.bus.Publish(domain.NewTrackProgressEvent(position, duration))

	if finished {
		s.handleTrackFinished()
	}
}

// handleTrackFinished is called when a track finishes playing naturally.
// It publishes completion events; the session manager decides what plays next.
func (s *PlaybackService) handleTrackFinished() {
	s.mu.Lock()

	if s.currentTrack == nil || !s.hasPlayed {
		// Another goroutine already handled the completion.
		s.mu.Unlock()
		return
	}

	track := *s.currentTrack
	s.hasPlayed = false

	s.mu.Unlock()

	s.bus.Publish(domain.NewTrackCompletedEvent(track))
	s.bus.Publish(domain.NewAutoNextEvent(track))
}

// Verify that PlaybackService implements the expected interface patterns
var _ interface {
	LoadAndPlay(domain.Track, time.Duration, float64) error
	Resume() error
	Pause() (time.Duration, error)
	Stop() error
	SetVolume(float64) error
	GetVolume() float64
	Seek(time.Duration) error
	Position() (time.Duration, error)
	Status() domain.PlaybackStatus
	Shutdown() error
} = (*PlaybackService)(nil)
