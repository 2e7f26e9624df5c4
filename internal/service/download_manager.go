package service

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/boombox-player/boombox/internal/domain"
)

// DownloadManager is the bulk facade over the download queue. It submits
// items to the ClassBatch lane, which downloads several items in
// parallel with FIFO ordering and per-item cancellation.
type DownloadManager struct {
	logger *slog.Logger
	queue  *DownloadQueue
}

// NewDownloadManager creates the bulk download facade.
func NewDownloadManager(logger *slog.Logger, queue *DownloadQueue) *DownloadManager {
	return &DownloadManager{
		logger: logger,
		queue:  queue,
	}
}

// Queue submits one item for bulk download. Items that are already
// cached, queued or active are rejected with a sentinel error.
func (m *DownloadManager) Queue(item *domain.RemoteTrack) error {
	return m.queue.Enqueue(item, ClassBatch)
}

// QueueMany submits a batch of items and returns how many were newly
// accepted. Each batch gets an id so its progress can be followed in the
// logs as one operation.
func (m *DownloadManager) QueueMany(items []*domain.RemoteTrack) int {
	batchID := uuid.NewString()

	accepted := 0
	for _, item := range items {
		err := m.queue.Enqueue(item, ClassBatch)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrAlreadyCached), errors.Is(err, domain.ErrAlreadyQueued):
			// Skipped by dedup.
		default:
			m.logger.Warn("batch enqueue rejected",
				slog.String("batch_id", batchID),
				slog.String("track_id", item.ID),
				slog.Any("error", err))
		}
	}

	m.logger.Info("batch submitted",
		slog.String("batch_id", batchID),
		slog.Int("requested", len(items)),
		slog.Int("accepted", accepted))

	return accepted
}

// Cancel removes a queued item or cancels its in-flight download.
// A cancelled item ends up neither Downloaded nor Failed; its state is
// reset so it can be queued again later.
func (m *DownloadManager) Cancel(item *domain.RemoteTrack) bool {
	return m.queue.Cancel(item.ID)
}

// ClearQueue removes every pending bulk entry. In-flight downloads keep
// running. Returns the number of removed entries.
func (m *DownloadManager) ClearQueue() int {
	return m.queue.ClearClass(ClassBatch)
}

// ActiveCount returns the number of bulk downloads currently in flight.
func (m *DownloadManager) ActiveCount() int {
	return m.queue.ActiveCount(ClassBatch)
}

// GetStatus derives the item's download status: Downloaded wins over
// Downloading, which wins over Queued, which wins over Failed.
func (m *DownloadManager) GetStatus(item *domain.RemoteTrack) domain.DownloadState {
	return m.queue.Status(item)
}
