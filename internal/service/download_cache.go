package service

import (
	"errors"
	"log/slog"

	"github.com/boombox-player/boombox/internal/domain"
)

// DownloadCache is the play-now facade over the download queue. It
// answers "is this item ready to play" and submits single items to the
// ClassStream lane, which runs one download at a time ahead of all bulk
// work.
type DownloadCache struct {
	logger *slog.Logger
	queue  *DownloadQueue
}

// NewDownloadCache creates the cache facade.
func NewDownloadCache(logger *slog.Logger, queue *DownloadQueue) *DownloadCache {
	return &DownloadCache{
		logger: logger,
		queue:  queue,
	}
}

// Resolve returns the canonical remote track instance for a track,
// rejecting items without a derivable canonical id.
func (c *DownloadCache) Resolve(track domain.Track) (*domain.RemoteTrack, error) {
	return c.queue.Resolve(track)
}

// IsCached reports whether the item has a verified cached file,
// repairing stale in-memory and metadata state along the way.
func (c *DownloadCache) IsCached(item *domain.RemoteTrack) bool {
	return c.queue.IsCached(item)
}

// State returns the item's current derived download state.
func (c *DownloadCache) State(item *domain.RemoteTrack) domain.DownloadState {
	return c.queue.Status(item)
}

// EnqueuePriority submits one item to the front of the queue.
// Used when a user is actively waiting to hear it.
func (c *DownloadCache) EnqueuePriority(item *domain.RemoteTrack) error {
	return c.queue.Enqueue(item, ClassStream)
}

// EnqueueBackground submits items for eventual download, skipping any
// that are cached, queued or active. Returns how many were accepted.
func (c *DownloadCache) EnqueueBackground(items []*domain.RemoteTrack) int {
	accepted := 0
	for _, item := range items {
		err := c.queue.Enqueue(item, ClassBatch)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrAlreadyCached), errors.Is(err, domain.ErrAlreadyQueued):
			// Dedup is expected; nothing to report.
		default:
			c.logger.Warn("background enqueue rejected",
				slog.String("track_id", item.ID), slog.Any("error", err))
		}
	}
	return accepted
}

// Invalidate removes the cached file for an id and resets its state so a
// later play request fetches it again.
func (c *DownloadCache) Invalidate(id string) error {
	return c.queue.Invalidate(id)
}

// Tracked returns every remote track known to the cache, including
// entries restored from persisted metadata.
func (c *DownloadCache) Tracked() []*domain.RemoteTrack {
	return c.queue.Tracked()
}
