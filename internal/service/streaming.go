package service

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// StreamingService resolves one "play this remote item now" request end
// to end: play from cache when possible, otherwise register the item as
// the pending play target and let a completed download satisfy it.
//
// Only the most recent request is pending at any time. A completion for
// anything other than the pending item is ignored (stale-completion
// guard), because the user may have asked for a different track in the
// meantime.
type StreamingService struct {
	// Dependencies (injected)
	logger *slog.Logger
	bus    ports.EventBus
	cache  *DownloadCache

	// onReady is invoked with a locally playable track when a play
	// request resolves, either immediately from cache or later when the
	// pending download completes. The session manager installs it.
	onReady func(domain.Track)

	pending *domain.RemoteTrack
	mu      sync.Mutex

	subscriptions []domain.SubscriptionID
}

// NewStreamingService creates the streaming service and subscribes to
// download completion signals.
func NewStreamingService(
	logger *slog.Logger,
	bus ports.EventBus,
	cache *DownloadCache,
) *StreamingService {
	s := &StreamingService{
		logger: logger,
		bus:    bus,
		cache:  cache,
	}

	s.subscriptions = append(s.subscriptions,
		bus.Subscribe(domain.EventDownloadCompleted, s.handleDownloadCompleted),
		bus.Subscribe(domain.EventDownloadFailed, s.handleDownloadFailed),
	)

	return s
}

// SetOnReady installs the callback invoked when a play request resolves
// into a locally playable track.
func (s *StreamingService) SetOnReady(fn func(domain.Track)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReady = fn
}

// Play resolves one play request. Cached items play immediately; items
// already downloading become the pending play target with no new network
// action; everything else becomes the pending target and jumps the queue.
//
// A request that cannot be satisfied leaves previous playback untouched
// and surfaces through a track-changed event.
func (s *StreamingService) Play(track domain.Track) error {
	item, err := s.cache.Resolve(track)
	if err != nil {
		s.logger.Warn("rejected play request without canonical id",
			slog.String("url", track.URL), slog.Any("error", err))
		s.bus.Publish(domain.NewTrackChangedEvent(track, domain.TrackStatusFailed))
		return err
	}

	s.mu.Lock()
	// Any previously pending wait is superseded by this request.
	s.pending = nil

	if s.cache.IsCached(item) {
		ready := s.onReady
		s.mu.Unlock()

		playable := item.Track
		playable.Path = item.CachedPath

		s.logger.Debug("cache hit, playing immediately", slog.String("track_id", item.ID))
		if ready != nil {
			ready(playable)
		}
		return nil
	}

	if s.cache.State(item) == domain.StateDownloading {
		// A download is already in flight; just wait for it.
		s.pending = item
		s.mu.Unlock()

		s.logger.Debug("awaiting in-flight download", slog.String("track_id", item.ID))
		s.bus.Publish(domain.NewTrackChangedEvent(item.Track, domain.TrackStatusDownloading))
		return nil
	}

	s.pending = item
	s.mu.Unlock()

	if err := s.cache.EnqueuePriority(item); err != nil && !errors.Is(err, domain.ErrAlreadyQueued) {
		s.mu.Lock()
		if s.pending == item {
			s.pending = nil
		}
		s.mu.Unlock()

		s.logger.Warn("priority enqueue failed",
			slog.String("track_id", item.ID), slog.Any("error", err))
		s.bus.Publish(domain.NewTrackChangedEvent(item.Track, domain.TrackStatusFailed))
		return err
	}

	s.bus.Publish(domain.NewTrackChangedEvent(item.Track, domain.TrackStatusDownloading))
	return nil
}

// PendingTrackID returns the canonical id of the pending play target, or
// an empty string when nothing is awaited.
func (s *StreamingService) PendingTrackID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return ""
	}
	return s.pending.ID
}

// HandleDecodeFailure reacts to a cached file that could not be decoded:
// the corrupt file is dropped and the item's state reset, so a future
// play request downloads it again.
func (s *StreamingService) HandleDecodeFailure(track domain.Track) {
	s.logger.Warn("cached file failed to decode, invalidating",
		slog.String("track_id", track.ID))

	if err := s.cache.Invalidate(track.ID); err != nil {
		s.logger.Warn("failed to invalidate corrupt cache entry",
			slog.String("track_id", track.ID), slog.Any("error", err))
	}

	s.bus.Publish(domain.NewTrackChangedEvent(track, domain.TrackStatusFailed))
}

// Close drops the event subscriptions.
func (s *StreamingService) Close() {
	for _, id := range s.subscriptions {
		s.bus.Unsubscribe(id)
	}
	s.subscriptions = nil
}

// handleDownloadCompleted auto-plays the pending play target when its
// download finishes. Completions for other items are ignored.
func (s *StreamingService) handleDownloadCompleted(event domain.Event) {
	completed, ok := event.(domain.DownloadCompletedEvent)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.pending == nil || s.pending.ID != completed.TrackID {
		s.mu.Unlock()
		return
	}

	item := s.pending
	s.pending = nil
	ready := s.onReady
	s.mu.Unlock()

	playable := item.Track
	playable.Path = completed.CachedPath

	s.logger.Info("pending download ready, auto-playing",
		slog.String("track_id", item.ID))

	if ready != nil {
		ready(playable)
	}
}

// handleDownloadFailed clears the pending target when its download
// fails. There is no automatic retry.
func (s *StreamingService) handleDownloadFailed(event domain.Event) {
	failed, ok := event.(domain.DownloadFailedEvent)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.pending == nil || s.pending.ID != failed.TrackID {
		s.mu.Unlock()
		return
	}

	item := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.logger.Warn("pending download failed",
		slog.String("track_id", item.ID), slog.Any("error", failed.Err))

	s.bus.Publish(domain.NewTrackChangedEvent(item.Track, domain.TrackStatusFailed))
}
