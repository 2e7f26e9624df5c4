package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// providerLoadTimeout bounds one fire-and-forget source load.
const providerLoadTimeout = 60 * time.Second

// SessionManager enforces the single-playing-session invariant and
// routes transport commands. It holds one Session per registered source
// and is the only component allowed to decide which session's selection
// is routed through the shared output.
//
// The viewed source (UI focus) and the playing source (bound to the
// output) are tracked separately and never imply each other.
//
// Failed preconditions are logged no-ops returning sentinel errors;
// they never abort the process.
type SessionManager struct {
	// Dependencies (injected)
	logger    *slog.Logger
	bus       ports.EventBus
	playback  *PlaybackService
	streaming *StreamingService
	settings  *SettingsService

	// State, guarded by mu
	sessions  map[domain.SourceType]*Session
	providers map[domain.SourceType]ports.PlaybackProvider
	viewed    domain.SourceType
	playing   domain.SourceType
	loaded    map[domain.SourceType]bool
	loading   map[domain.SourceType]bool
	mu        sync.RWMutex

	autoNextSub domain.SubscriptionID
	loadWg      sync.WaitGroup
}

// NewSessionManager creates the session manager and wires it to the
// streaming service and the auto-advance signal.
func NewSessionManager(
	logger *slog.Logger,
	bus ports.EventBus,
	playback *PlaybackService,
	streaming *StreamingService,
	settings *SettingsService,
) *SessionManager {
	m := &SessionManager{
		logger:    logger,
		bus:       bus,
		playback:  playback,
		streaming: streaming,
		settings:  settings,
		sessions:  make(map[domain.SourceType]*Session),
		providers: make(map[domain.SourceType]ports.PlaybackProvider),
		viewed:    domain.SourceNone,
		playing:   domain.SourceNone,
		loaded:    make(map[domain.SourceType]bool),
		loading:   make(map[domain.SourceType]bool),
	}

	m.autoNextSub = bus.Subscribe(domain.EventAutoNext, m.handleAutoNext)
	streaming.SetOnReady(m.handleStreamReady)

	return m
}

// RegisterSource creates a session for the provider's source with its
// persisted settings. Registering the same source twice replaces the
// provider but keeps the session.
func (m *SessionManager) RegisterSource(provider ports.PlaybackProvider) *Session {
	source := provider.SourceID()

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[source]
	if !ok {
		session = NewSession(m.logger, source, m.settings.Get(source))
		m.sessions[source] = session
	}
	m.providers[source] = provider

	m.logger.Debug("source registered",
		slog.String("source", source.String()),
		slog.String("name", provider.DisplayName()))

	return session
}

// Session returns the session for a source.
func (m *SessionManager) Session(source domain.SourceType) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[source]
	if !ok {
		return nil, domain.ErrUnknownSource
	}
	return session, nil
}

// ViewedSource returns the source currently in focus.
func (m *SessionManager) ViewedSource() domain.SourceType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewed
}

// PlayingSource returns the source bound to the output, or SourceNone.
func (m *SessionManager) PlayingSource() domain.SourceType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

// Status returns the shared output's playback status.
func (m *SessionManager) Status() domain.PlaybackStatus {
	return m.playback.Status()
}

// SetViewedSource switches the UI focus to another source. If a
// different session owns the output it is paused with its position
// saved and the output unbound. Sessions that have never been populated
// get a fire-and-forget provider load.
func (m *SessionManager) SetViewedSource(source domain.SourceType) error {
	m.mu.Lock()

	if source == m.viewed {
		m.mu.Unlock()
		return nil
	}

	if _, ok := m.sessions[source]; !ok {
		m.mu.Unlock()
		return domain.ErrUnknownSource
	}

	unbind := domain.SourceNone
	if m.playing != domain.SourceNone && m.playing != source {
		unbind = m.playing
		m.playing = domain.SourceNone
	}

	m.viewed = source

	needLoad := !m.loaded[source] && !m.loading[source]
	if needLoad {
		m.loading[source] = true
	}

	m.mu.Unlock()

	if unbind != domain.SourceNone {
		m.unbindOutput(unbind)
	}

	m.logger.Debug("viewed source changed", slog.String("source", source.String()))
	m.bus.Publish(domain.NewSourceViewedEvent(source))

	if needLoad {
		m.loadWg.Add(1)
		go m.loadSource(source)
	}

	return nil
}

// unbindOutput pauses the named session at the output's last position
// and stops the output.
func (m *SessionManager) unbindOutput(source domain.SourceType) {
	session, err := m.Session(source)
	if err != nil {
		return
	}

	position, err := m.playback.Position()
	if err != nil {
		position = 0
	}

	if err := m.playback.Stop(); err != nil {
		m.logger.Warn("failed to stop output", slog.Any("error", err))
	}

	session.Pause(position)
}

// loadSource populates a session from its provider.
func (m *SessionManager) loadSource(source domain.SourceType) {
	defer m.loadWg.Done()

	m.mu.RLock()
	provider := m.providers[source]
	session := m.sessions[source]
	m.mu.RUnlock()

	finish := func(ok bool) {
		m.mu.Lock()
		m.loading[source] = false
		if ok {
			m.loaded[source] = true
		}
		m.mu.Unlock()
	}

	if provider == nil || session == nil || !provider.IsAvailable() {
		m.logger.Warn("source has no available provider", slog.String("source", source.String()))
		finish(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), providerLoadTimeout)
	defer cancel()

	tracks, err := provider.LoadTracks(ctx)
	if err != nil {
		m.logger.Warn("source load failed",
			slog.String("source", source.String()), slog.Any("error", err))
		finish(false)
		return
	}

	session.LoadTracks(tracks)
	finish(true)

	m.logger.Info("source loaded",
		slog.String("source", source.String()), slog.Int("count", len(tracks)))

	m.bus.Publish(domain.NewSourceLoadedEvent(source, len(tracks)))
}

// PlayTrack selects a track in a source's session and makes it audible.
// Remote tracks without a local file are handed to the streaming
// service; the output is bound only when the stream resolves.
func (m *SessionManager) PlayTrack(source domain.SourceType, index int) error {
	session, err := m.Session(source)
	if err != nil {
		m.logger.Warn("play request for unknown source", slog.String("source", source.String()))
		return err
	}

	if err := session.SelectIndex(index); err != nil {
		m.logger.Debug("play request rejected",
			slog.String("source", source.String()),
			slog.Int("index", index),
			slog.Any("error", err))
		return err
	}

	track, err := session.CurrentTrack()
	if err != nil {
		return err
	}

	return m.playTrackNow(source, track, 0)
}

// playTrackNow routes one selected track to the output or the streaming
// service.
func (m *SessionManager) playTrackNow(source domain.SourceType, track domain.Track, startAt time.Duration) error {
	if track.Source == domain.SourceYouTube && !track.IsLocallyAvailable() {
		// The output stays with its current owner until the stream
		// resolves; binding happens in handleStreamReady.
		return m.streaming.Play(track)
	}

	return m.bindAndPlay(source, track, startAt)
}

// bindAndPlay makes a locally available track audible, transferring
// output ownership to the given source. The previous owner is paused
// with its position saved. On failure previous playback is preserved.
func (m *SessionManager) bindAndPlay(source domain.SourceType, track domain.Track, startAt time.Duration) error {
	session, err := m.Session(source)
	if err != nil {
		return err
	}

	m.mu.Lock()
	previous := m.playing
	m.mu.Unlock()

	// Save the previous owner's position before the output is replaced.
	if previous != domain.SourceNone && previous != source {
		if prevSession, sessErr := m.Session(previous); sessErr == nil {
			position, posErr := m.playback.Position()
			if posErr != nil {
				position = 0
			}
			prevSession.Pause(position)
		}
	}

	if err := m.playback.LoadAndPlay(track, startAt, session.Volume()); err != nil {
		m.logger.Warn("failed to play track",
			slog.String("track_id", track.ID), slog.Any("error", err))

		if track.Source == domain.SourceYouTube {
			// A cached remote file that will not decode is corrupt;
			// drop it so the next attempt re-downloads.
			m.streaming.HandleDecodeFailure(track)
		} else {
			m.bus.Publish(domain.NewTrackChangedEvent(track, domain.TrackStatusFailed))
		}

		return domain.ErrPlaybackFailed
	}

	m.mu.Lock()
	m.playing = source
	m.mu.Unlock()

	session.Resume()

	m.bus.Publish(domain.NewTrackChangedEvent(track, domain.TrackStatusPlaying))

	return nil
}

// handleStreamReady binds the output to a resolved stream track.
// By the time this fires the user may have moved on; the streaming
// service has already filtered stale completions.
func (m *SessionManager) handleStreamReady(track domain.Track) {
	source := track.Source
	if source == domain.SourceNone {
		source = domain.SourceYouTube
	}

	if err := m.bindAndPlay(source, track, 0); err != nil {
		m.logger.Warn("failed to start resolved stream",
			slog.String("track_id", track.ID), slog.Any("error", err))
	}
}

// Play resumes the playing session, or promotes the viewed session to
// the output when nothing is playing.
func (m *SessionManager) Play() error {
	m.mu.RLock()
	playing := m.playing
	viewed := m.viewed
	m.mu.RUnlock()

	if playing != domain.SourceNone {
		session, err := m.Session(playing)
		if err != nil {
			return err
		}
		if err := m.playback.Resume(); err != nil {
			return err
		}
		session.Resume()
		return nil
	}

	session, err := m.Session(viewed)
	if err != nil {
		return err
	}
	if session.Count() == 0 {
		m.logger.Debug("play ignored, viewed session is empty")
		return domain.ErrSessionEmpty
	}

	// Resume where the session left off.
	startAt := session.SavedProgress()
	track, err := session.CurrentTrack()
	if err != nil {
		return err
	}

	return m.playTrackNow(viewed, track, startAt)
}

// Pause pauses the playing session, saving its position.
func (m *SessionManager) Pause() error {
	m.mu.RLock()
	playing := m.playing
	m.mu.RUnlock()

	if playing == domain.SourceNone {
		return domain.ErrNothingPlaying
	}

	session, err := m.Session(playing)
	if err != nil {
		return err
	}

	position, err := m.playback.Pause()
	if err != nil {
		return err
	}

	session.Pause(position)
	return nil
}

// TogglePlayPause pauses when audible, resumes or promotes otherwise.
func (m *SessionManager) TogglePlayPause() error {
	if m.playback.Status() == domain.StatusPlaying {
		return m.Pause()
	}
	return m.Play()
}

// Next advances the playing session with wrap-around. Transport controls
// act on what is audible, not what is on screen.
func (m *SessionManager) Next() error {
	return m.step(func(s *Session) error { return s.Next() })
}

// Previous steps the playing session backward with wrap-around.
func (m *SessionManager) Previous() error {
	return m.step(func(s *Session) error { return s.Previous() })
}

// step moves the playing session's cursor and plays the new selection.
func (m *SessionManager) step(move func(*Session) error) error {
	m.mu.RLock()
	playing := m.playing
	m.mu.RUnlock()

	if playing == domain.SourceNone {
		m.logger.Debug("transport command ignored, nothing playing")
		return domain.ErrNothingPlaying
	}

	session, err := m.Session(playing)
	if err != nil {
		return err
	}

	if err := move(session); err != nil {
		return err
	}

	track, err := session.CurrentTrack()
	if err != nil {
		return err
	}

	return m.playTrackNow(playing, track, 0)
}

// Seek sets the output position when a session is playing.
func (m *SessionManager) Seek(position time.Duration) error {
	m.mu.RLock()
	playing := m.playing
	m.mu.RUnlock()

	if playing == domain.SourceNone {
		return domain.ErrNothingPlaying
	}

	return m.playback.Seek(position)
}

// SetVolume writes the volume to the viewed session's settings. It is
// pushed live only when the viewed session is also the playing one;
// otherwise it is remembered for the next time this session plays.
func (m *SessionManager) SetVolume(volume float64) error {
	m.mu.RLock()
	viewed := m.viewed
	playing := m.playing
	m.mu.RUnlock()

	session, err := m.Session(viewed)
	if err != nil {
		return err
	}

	if err := session.SetVolume(volume); err != nil {
		return err
	}

	if err := m.settings.SetVolume(viewed, volume); err != nil {
		m.logger.Warn("failed to persist volume", slog.Any("error", err))
	}

	if viewed == playing {
		if err := m.playback.SetVolume(volume); err != nil {
			return err
		}
	}

	return nil
}

// SetRepeatMode writes the repeat mode to the viewed session's settings.
func (m *SessionManager) SetRepeatMode(mode domain.RepeatMode) error {
	m.mu.RLock()
	viewed := m.viewed
	m.mu.RUnlock()

	session, err := m.Session(viewed)
	if err != nil {
		return err
	}

	session.SetRepeat(mode)

	if err := m.settings.SetRepeat(viewed, mode); err != nil {
		m.logger.Warn("failed to persist repeat mode", slog.Any("error", err))
	}

	return nil
}

// handleAutoNext advances the playing session when a track finishes
// naturally, honoring its repeat mode.
func (m *SessionManager) handleAutoNext(event domain.Event) {
	if _, ok := event.(domain.AutoNextEvent); !ok {
		return
	}

	m.mu.RLock()
	playing := m.playing
	m.mu.RUnlock()

	if playing == domain.SourceNone {
		return
	}

	session, err := m.Session(playing)
	if err != nil {
		return
	}

	switch session.Repeat() {
	case domain.RepeatOne:
		track, trackErr := session.CurrentTrack()
		if trackErr != nil {
			return
		}
		if playErr := m.playTrackNow(playing, track, 0); playErr != nil {
			m.logger.Warn("failed to repeat track", slog.Any("error", playErr))
		}

	case domain.RepeatAll:
		m.advance(playing, session)

	case domain.RepeatNone:
		if session.CurrentIndex() >= session.Count()-1 {
			// End of the list; release the output.
			m.mu.Lock()
			m.playing = domain.SourceNone
			m.mu.Unlock()

			if stopErr := m.playback.Stop(); stopErr != nil {
				m.logger.Warn("failed to stop output at end of list", slog.Any("error", stopErr))
			}
			session.Pause(0)
			return
		}
		m.advance(playing, session)
	}
}

// advance moves to the next track and plays it.
func (m *SessionManager) advance(playing domain.SourceType, session *Session) {
	if err := session.Next(); err != nil {
		return
	}

	track, err := session.CurrentTrack()
	if err != nil {
		return
	}

	if err := m.playTrackNow(playing, track, 0); err != nil {
		m.logger.Warn("auto-advance failed", slog.Any("error", err))
	}
}

// Shutdown detaches the manager from the event bus and waits for any
// in-flight source loads.
func (m *SessionManager) Shutdown() error {
	m.bus.Unsubscribe(m.autoNextSub)
	m.streaming.SetOnReady(nil)
	m.loadWg.Wait()
	return nil
}
