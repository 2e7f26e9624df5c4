package service

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/logger"
)

type streamingFixture struct {
	*queueFixture
	cache     *DownloadCache
	streaming *StreamingService

	ready   []domain.Track
	readyMu sync.Mutex
}

func newStreamingFixture(t *testing.T, auto bool) *streamingFixture {
	t.Helper()

	base := newQueueFixture(t, auto, 2)
	cache := NewDownloadCache(logger.NewTestLogger(), base.queue)

	fx := &streamingFixture{
		queueFixture: base,
		cache:        cache,
		streaming:    NewStreamingService(logger.NewTestLogger(), base.bus, cache),
	}
	fx.streaming.SetOnReady(func(track domain.Track) {
		fx.readyMu.Lock()
		fx.ready = append(fx.ready, track)
		fx.readyMu.Unlock()
	})

	t.Cleanup(func() {
		fx.streaming.Close()
		fx.queue.Shutdown()
	})

	return fx
}

func (fx *streamingFixture) readyTracks() []domain.Track {
	fx.readyMu.Lock()
	defer fx.readyMu.Unlock()

	out := make([]domain.Track, len(fx.ready))
	copy(out, fx.ready)
	return out
}

func TestStreamingService_Play_CacheHit(t *testing.T) {
	fx := newStreamingFixture(t, true)

	path := filepath.Join(fx.dir, "aaa.mp3")
	require.NoError(t, writeCacheFile(path))

	require.NoError(t, fx.streaming.Play(remoteTrack("aaa")))

	// Cache hits resolve synchronously, without touching the network.
	ready := fx.readyTracks()
	require.Len(t, ready, 1)
	assert.Equal(t, "aaa", ready[0].ID)
	assert.Equal(t, path, ready[0].Path)
	assert.Empty(t, fx.streaming.PendingTrackID())
	assert.Empty(t, fx.fetcher.started)
}

func TestStreamingService_Play_ColdDownloadsThenPlays(t *testing.T) {
	fx := newStreamingFixture(t, false)

	recorder := recordEvents(fx.bus, domain.EventTrackChanged)

	require.NoError(t, fx.streaming.Play(remoteTrack("aaa")))
	assert.Equal(t, "aaa", fx.streaming.PendingTrackID())

	// The user sees a downloading status straight away, but nothing plays
	// until the fetch completes.
	changed := recorder.ofType(domain.EventTrackChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.TrackStatusDownloading, changed[0].(domain.TrackChangedEvent).Status)
	assert.Empty(t, fx.readyTracks())

	fx.fetcher.waitStarted(t)
	fx.fetcher.releaseWith("aaa", nil)

	require.Eventually(t, func() bool {
		return len(fx.readyTracks()) == 1
	}, eventuallyTimeout, eventuallyTick)

	ready := fx.readyTracks()
	assert.Equal(t, "aaa", ready[0].ID)
	assert.Equal(t, filepath.Join(fx.dir, "aaa.mp3"), ready[0].Path)
	assert.True(t, ready[0].IsLocallyAvailable())
	assert.Empty(t, fx.streaming.PendingTrackID())
}

func TestStreamingService_Play_SupersedesPendingTarget(t *testing.T) {
	fx := newStreamingFixture(t, false)

	// Ask for X, then change mind to Y before X finishes.
	require.NoError(t, fx.streaming.Play(remoteTrack("xxx")))
	fx.fetcher.waitStarted(t)

	require.NoError(t, fx.streaming.Play(remoteTrack("yyy")))
	assert.Equal(t, "yyy", fx.streaming.PendingTrackID())

	// X finishing now must not start playback; only Y may.
	fx.fetcher.releaseWith("xxx", nil)
	fx.fetcher.waitStarted(t)
	fx.fetcher.releaseWith("yyy", nil)

	require.Eventually(t, func() bool {
		return len(fx.readyTracks()) == 1
	}, eventuallyTimeout, eventuallyTick)

	assert.Equal(t, "yyy", fx.readyTracks()[0].ID)
}

func TestStreamingService_Play_JoinsInFlightDownload(t *testing.T) {
	fx := newStreamingFixture(t, false)

	// First request starts the fetch; the repeat request while it is in
	// flight must not start a second one.
	require.NoError(t, fx.streaming.Play(remoteTrack("aaa")))
	fx.fetcher.waitStarted(t)

	require.NoError(t, fx.streaming.Play(remoteTrack("aaa")))
	assert.Equal(t, "aaa", fx.streaming.PendingTrackID())
	assert.Empty(t, fx.fetcher.started)

	fx.fetcher.releaseWith("aaa", nil)

	require.Eventually(t, func() bool {
		return len(fx.readyTracks()) == 1
	}, eventuallyTimeout, eventuallyTick)
}

func TestStreamingService_Play_DownloadFailure(t *testing.T) {
	fx := newStreamingFixture(t, false)

	recorder := recordEvents(fx.bus, domain.EventTrackChanged)

	require.NoError(t, fx.streaming.Play(remoteTrack("aaa")))
	fx.fetcher.waitStarted(t)
	fx.fetcher.releaseWith("aaa", assert.AnError)

	require.Eventually(t, func() bool {
		for _, e := range recorder.ofType(domain.EventTrackChanged) {
			if e.(domain.TrackChangedEvent).Status == domain.TrackStatusFailed {
				return true
			}
		}
		return false
	}, eventuallyTimeout, eventuallyTick)

	assert.Empty(t, fx.streaming.PendingTrackID())
	assert.Empty(t, fx.readyTracks())
}

func TestStreamingService_Play_RejectsUnidentifiable(t *testing.T) {
	fx := newStreamingFixture(t, true)

	recorder := recordEvents(fx.bus, domain.EventTrackChanged)

	err := fx.streaming.Play(domain.Track{Source: domain.SourceYouTube, URL: "garbage"})
	assert.ErrorIs(t, err, domain.ErrNoCanonicalID)

	changed := recorder.ofType(domain.EventTrackChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.TrackStatusFailed, changed[0].(domain.TrackChangedEvent).Status)
}

func TestStreamingService_HandleDecodeFailure(t *testing.T) {
	fx := newStreamingFixture(t, true)

	path := filepath.Join(fx.dir, "aaa.mp3")
	require.NoError(t, writeCacheFile(path))

	item, err := fx.cache.Resolve(remoteTrack("aaa"))
	require.NoError(t, err)
	require.True(t, fx.cache.IsCached(item))

	fx.streaming.HandleDecodeFailure(item.Track)

	// The corrupt file is gone and the item must be fetched again.
	assert.NoFileExists(t, path)
	assert.False(t, fx.cache.IsCached(item))
	assert.Equal(t, domain.StateNotRequested, fx.cache.State(item))
}
