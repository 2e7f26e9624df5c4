package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/logger"
)

func testTrack(id string) domain.Track {
	return domain.Track{ID: id, Source: domain.SourceLocal, Title: "Test", Path: "/test/" + id + ".mp3"}
}

func TestSyncEventBus_PublishSubscribe(t *testing.T) {
	bus := NewSyncEventBus()
	bus.SetLogger(logger.NewTestLogger())

	var received []domain.Event
	bus.Subscribe(domain.EventTrackStarted, func(e domain.Event) {
		received = append(received, e)
	})

	bus.Publish(domain.NewTrackStartedEvent(testTrack("1")))
	bus.Publish(domain.NewTrackStartedEvent(testTrack("2")))

	require.Len(t, received, 2)
	assert.Equal(t, "1", received[0].(domain.TrackStartedEvent).Track.ID)
	assert.Equal(t, "2", received[1].(domain.TrackStartedEvent).Track.ID)
}

func TestSyncEventBus_TypeFiltering(t *testing.T) {
	bus := NewSyncEventBus()

	started := 0
	stopped := 0
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { started++ })
	bus.Subscribe(domain.EventTrackStopped, func(domain.Event) { stopped++ })

	bus.Publish(domain.NewTrackStartedEvent(testTrack("1")))
	bus.Publish(domain.NewTrackStartedEvent(testTrack("2")))
	bus.Publish(domain.NewTrackStoppedEvent(testTrack("1")))

	assert.Equal(t, 2, started)
	assert.Equal(t, 1, stopped)
}

func TestSyncEventBus_Unsubscribe(t *testing.T) {
	bus := NewSyncEventBus()

	count := 0
	id := bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { count++ })

	bus.Publish(domain.NewTrackStartedEvent(testTrack("1")))
	bus.Unsubscribe(id)
	bus.Publish(domain.NewTrackStartedEvent(testTrack("2")))

	assert.Equal(t, 1, count)
}

func TestSyncEventBus_SubscribeAll(t *testing.T) {
	bus := NewSyncEventBus()

	var types []domain.EventType
	bus.SubscribeAll(func(e domain.Event) {
		types = append(types, e.Type())
	})

	bus.Publish(domain.NewTrackStartedEvent(testTrack("1")))
	bus.Publish(domain.NewDownloadQueuedEvent(testTrack("2"), true))

	require.Len(t, types, 2)
	assert.Equal(t, domain.EventTrackStarted, types[0])
	assert.Equal(t, domain.EventDownloadQueued, types[1])
}

func TestSyncEventBus_PanicRecovery(t *testing.T) {
	bus := NewSyncEventBus()
	bus.SetLogger(logger.NewTestLogger())

	called := false
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {
		panic("handler failure")
	})
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {
		called = true
	})

	// The panic must not propagate or stop later handlers.
	assert.NotPanics(t, func() {
		bus.Publish(domain.NewTrackStartedEvent(testTrack("1")))
	})
	assert.True(t, called)
}

func TestSyncEventBus_HasSubscribers(t *testing.T) {
	bus := NewSyncEventBus()

	assert.False(t, bus.HasSubscribers(domain.EventTrackStarted))

	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {})
	assert.True(t, bus.HasSubscribers(domain.EventTrackStarted))
	assert.False(t, bus.HasSubscribers(domain.EventTrackStopped))

	bus.SubscribeAll(func(domain.Event) {})
	assert.True(t, bus.HasSubscribers(domain.EventTrackStopped))
}

func TestSyncEventBus_Close(t *testing.T) {
	bus := NewSyncEventBus()

	count := 0
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) { count++ })

	require.NoError(t, bus.Close())

	// Publishing after close is a silent no-op.
	bus.Publish(domain.NewTrackStartedEvent(testTrack("1")))
	assert.Equal(t, 0, count)

	// Double close reports an error.
	assert.Error(t, bus.Close())
}

func TestSyncEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewSyncEventBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(domain.EventTrackProgress, func(domain.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(domain.NewTrackProgressEvent(0, 0))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, count)
}
