package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boombox-player/boombox/internal/adapter/audio/mock"
	"github.com/boombox-player/boombox/internal/adapter/eventbus"
	"github.com/boombox-player/boombox/internal/adapter/repository/memory"
	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/logger"
	"github.com/boombox-player/boombox/internal/testutil"
)

// fakeProvider serves a fixed track list for one source.
type fakeProvider struct {
	source    domain.SourceType
	tracks    []domain.Track
	available bool
}

func (p *fakeProvider) SourceID() domain.SourceType { return p.source }
func (p *fakeProvider) DisplayName() string         { return "fake " + p.source.String() }
func (p *fakeProvider) IsAvailable() bool           { return p.available }
func (p *fakeProvider) Cleanup() error              { return nil }

func (p *fakeProvider) LoadTracks(context.Context) ([]domain.Track, error) {
	return p.tracks, nil
}

// managerTestStack wires the full orchestration stack against the mock
// engine and the controllable fetcher.
type managerTestStack struct {
	*queueFixture
	engine    *mock.Engine
	playback  *PlaybackService
	streaming *StreamingService
	manager   *SessionManager
}

func newManagerTestStack(t *testing.T) *managerTestStack {
	t.Helper()

	log := logger.NewTestLogger()
	base := newQueueFixture(t, false, 2)

	engine := mock.NewEngine()
	engine.SetLogger(log)
	require.NoError(t, engine.Initialize(44100))

	playback := NewPlaybackService(log, engine, base.bus)
	cache := NewDownloadCache(log, base.queue)
	streaming := NewStreamingService(log, base.bus, cache)
	settings := NewSettingsService(log, memory.NewSettingsRepository(), base.bus, 0.8)
	manager := NewSessionManager(log, base.bus, playback, streaming, settings)

	stack := &managerTestStack{
		queueFixture: base,
		engine:       engine,
		playback:     playback,
		streaming:    streaming,
		manager:      manager,
	}

	t.Cleanup(func() {
		manager.Shutdown()
		streaming.Close()
		base.queue.Shutdown()
		playback.Shutdown()
	})

	return stack
}

// addSource registers a provider, focuses it and waits for its tracks.
func (st *managerTestStack) addSource(t *testing.T, source domain.SourceType, tracks []domain.Track) *Session {
	t.Helper()

	session := st.manager.RegisterSource(&fakeProvider{source: source, tracks: tracks, available: true})
	require.NoError(t, st.manager.SetViewedSource(source))

	require.Eventually(t, func() bool {
		return session.Count() == len(tracks)
	}, eventuallyTimeout, eventuallyTick)

	return session
}

func youtubeTracks(ids ...string) []domain.Track {
	tracks := make([]domain.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, remoteTrack(id))
	}
	return tracks
}

func TestSessionManager_SetViewedSource_LoadsOnce(t *testing.T) {
	st := newManagerTestStack(t)

	recorder := recordEvents(st.bus, domain.EventSourceLoaded)

	session := st.addSource(t, domain.SourceLocal, localTracks("a", "b"))
	assert.Equal(t, domain.SourceLocal, st.manager.ViewedSource())
	assert.Equal(t, 2, session.Count())

	st.addSource(t, domain.SourceJukebox, localTracks("j1"))

	// Focusing the first source again must not reload it.
	require.NoError(t, st.manager.SetViewedSource(domain.SourceLocal))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, recorder.ofType(domain.EventSourceLoaded), 2)
}

func TestSessionManager_SetViewedSource_Unknown(t *testing.T) {
	st := newManagerTestStack(t)

	assert.ErrorIs(t, st.manager.SetViewedSource(domain.SourceLocal), domain.ErrUnknownSource)
}

func TestSessionManager_PlayTrack_Local(t *testing.T) {
	st := newManagerTestStack(t)

	recorder := recordEvents(st.bus, domain.EventTrackChanged)

	session := st.addSource(t, domain.SourceLocal, localTracks("a", "b"))

	require.NoError(t, st.manager.PlayTrack(domain.SourceLocal, 1))

	assert.Equal(t, domain.SourceLocal, st.manager.PlayingSource())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())
	assert.Equal(t, 1, session.CurrentIndex())
	assert.False(t, session.IsPaused())

	changed := recorder.ofType(domain.EventTrackChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.TrackStatusPlaying, changed[0].(domain.TrackChangedEvent).Status)
}

func TestSessionManager_SingleOwnerInvariant(t *testing.T) {
	st := newManagerTestStack(t)

	jukebox := st.addSource(t, domain.SourceJukebox, localTracks("j1", "j2"))
	st.addSource(t, domain.SourceLocal, localTracks("a", "b"))

	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))
	require.NoError(t, st.engine.SimulateProgress(st.currentHandle(t), 30*time.Second))

	// Playing from another source takes over the single output.
	require.NoError(t, st.manager.PlayTrack(domain.SourceLocal, 0))

	assert.Equal(t, 1, st.engine.GetLoadedTracks())
	assert.Equal(t, domain.SourceLocal, st.manager.PlayingSource())

	// The displaced session keeps its place for later.
	assert.True(t, jukebox.IsPaused())
	assert.Equal(t, 30*time.Second, jukebox.SavedProgress())
}

func TestSessionManager_SwitchingViewStopsAudio(t *testing.T) {
	st := newManagerTestStack(t)

	jukebox := st.addSource(t, domain.SourceJukebox, localTracks("j1"))
	st.addSource(t, domain.SourceLocal, localTracks("a"))

	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))
	require.NoError(t, st.engine.SimulateProgress(st.currentHandle(t), 10*time.Second))

	// Switching focus away releases the output entirely; sources are
	// exclusive rather than mixed.
	require.NoError(t, st.manager.SetViewedSource(domain.SourceLocal))

	assert.Equal(t, domain.SourceNone, st.manager.PlayingSource())
	assert.Equal(t, domain.StatusStopped, st.manager.Status())
	assert.Equal(t, 0, st.engine.GetLoadedTracks())
	assert.True(t, jukebox.IsPaused())
	assert.Equal(t, 10*time.Second, jukebox.SavedProgress())
}

func TestSessionManager_Play_ResumesSavedProgress(t *testing.T) {
	st := newManagerTestStack(t)

	session := st.addSource(t, domain.SourceJukebox, localTracks("j1"))
	st.addSource(t, domain.SourceLocal, localTracks("a"))

	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))
	require.NoError(t, st.engine.SimulateProgress(st.currentHandle(t), 45*time.Second))

	// View elsewhere, then come back and press play.
	require.NoError(t, st.manager.SetViewedSource(domain.SourceLocal))
	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.Equal(t, 45*time.Second, session.SavedProgress())

	require.NoError(t, st.manager.Play())

	assert.Equal(t, domain.SourceJukebox, st.manager.PlayingSource())
	position, err := st.playback.Position()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, position)
}

func TestSessionManager_Play_EmptyViewedSession(t *testing.T) {
	st := newManagerTestStack(t)

	st.addSource(t, domain.SourceLocal, nil)

	assert.ErrorIs(t, st.manager.Play(), domain.ErrSessionEmpty)
	assert.Equal(t, domain.SourceNone, st.manager.PlayingSource())
}

func TestSessionManager_PauseAndToggle(t *testing.T) {
	st := newManagerTestStack(t)

	session := st.addSource(t, domain.SourceLocal, localTracks("a"))

	assert.ErrorIs(t, st.manager.Pause(), domain.ErrNothingPlaying)

	require.NoError(t, st.manager.PlayTrack(domain.SourceLocal, 0))
	require.NoError(t, st.engine.SimulateProgress(st.currentHandle(t), 20*time.Second))

	require.NoError(t, st.manager.TogglePlayPause())
	assert.Equal(t, domain.StatusPaused, st.manager.Status())
	assert.True(t, session.IsPaused())
	assert.Equal(t, 20*time.Second, session.SavedProgress())

	require.NoError(t, st.manager.TogglePlayPause())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())
	assert.False(t, session.IsPaused())
}

func TestSessionManager_TransportActsOnPlayingSource(t *testing.T) {
	st := newManagerTestStack(t)

	jukebox := st.addSource(t, domain.SourceJukebox, localTracks("j1", "j2", "j3"))
	local := st.addSource(t, domain.SourceLocal, localTracks("a", "b"))

	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))

	// Next moves the audible session's cursor; the other session's
	// cursor stays where it is.
	require.NoError(t, st.manager.Next())

	assert.Equal(t, 1, jukebox.CurrentIndex())
	assert.Equal(t, 0, local.CurrentIndex())
	assert.Equal(t, domain.SourceJukebox, st.manager.PlayingSource())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())

	require.NoError(t, st.manager.Previous())
	assert.Equal(t, 0, jukebox.CurrentIndex())
}

func TestSessionManager_Next_NothingPlaying(t *testing.T) {
	st := newManagerTestStack(t)

	st.addSource(t, domain.SourceLocal, localTracks("a"))

	assert.ErrorIs(t, st.manager.Next(), domain.ErrNothingPlaying)
	assert.ErrorIs(t, st.manager.Previous(), domain.ErrNothingPlaying)
	assert.ErrorIs(t, st.manager.Seek(time.Second), domain.ErrNothingPlaying)
}

func TestSessionManager_SetVolume_LiveOnlyForPlayingSource(t *testing.T) {
	st := newManagerTestStack(t)

	st.addSource(t, domain.SourceJukebox, localTracks("j1"))
	local := st.addSource(t, domain.SourceLocal, localTracks("a"))

	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))

	// Viewing the idle source: the volume is remembered, not applied.
	require.NoError(t, st.manager.SetViewedSource(domain.SourceLocal))
	require.NoError(t, st.manager.SetVolume(0.2))

	assert.InDelta(t, 0.2, local.Volume(), 0.001)
	assert.Greater(t, math.Abs(st.playback.GetVolume()-0.2), 0.001)

	// Viewing the playing source: the change is audible immediately.
	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))
	require.NoError(t, st.manager.SetVolume(0.6))
	assert.InDelta(t, 0.6, st.playback.GetVolume(), 0.001)
}

func TestSessionManager_PlayTrack_UncachedRemoteStreams(t *testing.T) {
	st := newManagerTestStack(t)

	recorder := recordEvents(st.bus, domain.EventTrackChanged)

	session := st.addSource(t, domain.SourceYouTube, youtubeTracks("aaa", "bbb"))

	require.NoError(t, st.manager.PlayTrack(domain.SourceYouTube, 0))

	// Nothing is audible yet; the item is being fetched.
	assert.Equal(t, domain.SourceNone, st.manager.PlayingSource())
	assert.Equal(t, "aaa", st.streaming.PendingTrackID())

	changed := recorder.ofType(domain.EventTrackChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.TrackStatusDownloading, changed[0].(domain.TrackChangedEvent).Status)

	// The download finishes and playback starts on its own.
	st.fetcher.waitStarted(t)
	st.fetcher.releaseWith("aaa", nil)

	require.Eventually(t, func() bool {
		return st.manager.PlayingSource() == domain.SourceYouTube
	}, eventuallyTimeout, eventuallyTick)

	assert.Equal(t, domain.StatusPlaying, st.manager.Status())
	assert.Equal(t, 1, st.engine.GetLoadedTracks())
	assert.False(t, session.IsPaused())

	current, ok := st.playback.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "aaa", current.ID)
	assert.True(t, current.IsLocallyAvailable())
}

func TestSessionManager_PlayingContinuesWhileBrowsingOtherSource(t *testing.T) {
	st := newManagerTestStack(t)

	st.addSource(t, domain.SourceJukebox, localTracks("j1"))
	st.addSource(t, domain.SourceLocal, localTracks("a"))

	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	require.NoError(t, st.manager.PlayTrack(domain.SourceJukebox, 0))

	// Focusing the source that owns the output changes nothing.
	require.NoError(t, st.manager.SetViewedSource(domain.SourceJukebox))
	assert.Equal(t, domain.SourceJukebox, st.manager.PlayingSource())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())
}

func TestSessionManager_AutoNext_RepeatNoneStopsAtEnd(t *testing.T) {
	st := newManagerTestStack(t)

	session := st.addSource(t, domain.SourceLocal, localTracks("a", "b"))
	require.NoError(t, st.manager.SetRepeatMode(domain.RepeatNone))

	require.NoError(t, st.manager.PlayTrack(domain.SourceLocal, 0))

	// Mid-list: the next track plays.
	st.bus.Publish(domain.NewAutoNextEvent(localTracks("a")[0]))
	assert.Equal(t, 1, session.CurrentIndex())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())

	// Last track: the output is released.
	st.bus.Publish(domain.NewAutoNextEvent(localTracks("b")[0]))
	assert.Equal(t, domain.SourceNone, st.manager.PlayingSource())
	assert.Equal(t, domain.StatusStopped, st.manager.Status())
	assert.True(t, session.IsPaused())
}

func TestSessionManager_AutoNext_RepeatAllWraps(t *testing.T) {
	st := newManagerTestStack(t)

	session := st.addSource(t, domain.SourceLocal, localTracks("a", "b"))
	require.NoError(t, st.manager.SetRepeatMode(domain.RepeatAll))

	require.NoError(t, st.manager.PlayTrack(domain.SourceLocal, 1))

	st.bus.Publish(domain.NewAutoNextEvent(localTracks("b")[0]))

	assert.Equal(t, 0, session.CurrentIndex())
	assert.Equal(t, domain.SourceLocal, st.manager.PlayingSource())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())
}

func TestSessionManager_AutoNext_RepeatOneReplays(t *testing.T) {
	st := newManagerTestStack(t)

	session := st.addSource(t, domain.SourceLocal, localTracks("a", "b"))
	require.NoError(t, st.manager.SetRepeatMode(domain.RepeatOne))

	require.NoError(t, st.manager.PlayTrack(domain.SourceLocal, 0))
	require.NoError(t, st.engine.SimulateProgress(st.currentHandle(t), 10*time.Second))

	st.bus.Publish(domain.NewAutoNextEvent(localTracks("a")[0]))

	assert.Equal(t, 0, session.CurrentIndex())
	assert.Equal(t, domain.StatusPlaying, st.manager.Status())

	// The replay starts from the beginning.
	position, err := st.playback.Position()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), position)
}

func TestSessionManager_FullStackShutdown(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	log := logger.NewTestLogger()

	bus := eventbus.NewSyncEventBus()
	store := memory.NewMetadataStore()
	fetcher := newFakeFetcher(true)

	queue, err := NewDownloadQueue(log, bus, fetcher, store, t.TempDir(), 2)
	require.NoError(t, err)

	engine := mock.NewEngine()
	engine.SetLogger(log)
	require.NoError(t, engine.Initialize(44100))

	playback := NewPlaybackService(log, engine, bus)
	cache := NewDownloadCache(log, queue)
	streaming := NewStreamingService(log, bus, cache)
	settings := NewSettingsService(log, memory.NewSettingsRepository(), bus, 0.8)
	manager := NewSessionManager(log, bus, playback, streaming, settings)

	manager.RegisterSource(&fakeProvider{source: domain.SourceLocal, tracks: localTracks("a"), available: true})
	require.NoError(t, manager.SetViewedSource(domain.SourceLocal))

	require.NoError(t, manager.Shutdown())
	streaming.Close()
	require.NoError(t, queue.Shutdown())
	require.NoError(t, playback.Shutdown())
	require.NoError(t, bus.Close())
}

// currentHandle digs out the engine handle of the loaded track.
func (st *managerTestStack) currentHandle(t *testing.T) domain.TrackHandle {
	t.Helper()

	st.playback.mu.RLock()
	defer st.playback.mu.RUnlock()

	require.NotEqual(t, domain.InvalidTrackHandle, st.playback.currentHandle)
	return st.playback.currentHandle
}
