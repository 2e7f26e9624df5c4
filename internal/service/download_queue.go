package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// QueueClass selects the priority class of a download submission.
type QueueClass int

const (
	// ClassStream is the play-now class: concurrency 1, entries may be
	// inserted ahead of everything else.
	ClassStream QueueClass = iota

	// ClassBatch is the bulk class: concurrency from configuration,
	// FIFO order, per-item cancellation.
	ClassBatch
)

// String returns the class name.
func (c QueueClass) String() string {
	if c == ClassStream {
		return "stream"
	}
	return "batch"
}

// cacheFileExt is the single canonical extension for cached media files.
const cacheFileExt = ".mp3"

// pendingJob is a queued download waiting for a free slot in its class.
type pendingJob struct {
	item  *domain.RemoteTrack
	class QueueClass
}

// activeJob is an in-flight download.
type activeJob struct {
	item   *domain.RemoteTrack
	class  QueueClass
	cancel context.CancelFunc
}

// DownloadQueue is the single download service behind both the play-now
// path and the bulk download manager. One mutex guards the cache directory
// view, the identity map, the pending queue and the active set, so an id
// can never be queued and active at the same time or enqueued twice
// across classes.
//
// A dispatcher goroutine wakes on a channel signal whenever a job is
// enqueued or a slot frees up; there is no polling. Each active job runs
// in its own goroutine with a cancellable context, for both classes.
type DownloadQueue struct {
	// Dependencies (injected)
	logger  *slog.Logger
	bus     ports.EventBus
	fetcher ports.MediaFetcher
	store   ports.MetadataStore

	cacheDir string

	// State, all guarded by mu
	items   map[string]*domain.RemoteTrack
	pending []*pendingJob
	active  map[string]*activeJob
	running map[QueueClass]int
	limits  map[QueueClass]int
	closed  bool
	mu      sync.Mutex

	// Dispatcher control
	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewDownloadQueue creates the download queue, reconciles persisted
// metadata against the cache directory and starts the dispatcher.
//
// batchLimit is the concurrency limit for ClassBatch; ClassStream is
// always limited to one in-flight download.
func NewDownloadQueue(
	logger *slog.Logger,
	bus ports.EventBus,
	fetcher ports.MediaFetcher,
	store ports.MetadataStore,
	cacheDir string,
	batchLimit int,
) (*DownloadQueue, error) {
	if batchLimit < 1 {
		batchLimit = 1
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, domain.NewCacheError("create", cacheDir, err)
	}

	q := &DownloadQueue{
		logger:   logger,
		bus:      bus,
		fetcher:  fetcher,
		store:    store,
		cacheDir: cacheDir,
		items:    make(map[string]*domain.RemoteTrack),
		active:   make(map[string]*activeJob),
		running:  map[QueueClass]int{ClassStream: 0, ClassBatch: 0},
		limits:   map[QueueClass]int{ClassStream: 1, ClassBatch: batchLimit},
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	if err := q.loadPersistedMetadata(); err != nil {
		logger.Warn("metadata reconciliation failed", slog.Any("error", err))
	}

	q.wg.Add(1)
	go q.dispatch()

	return q, nil
}

// loadPersistedMetadata seeds the identity map from the metadata store.
// Entries whose cached file is missing get one legacy-name migration
// attempt (a file whose name merely contains the id is renamed to the
// canonical {id}.mp3); entries still without a file are dropped.
func (q *DownloadQueue) loadPersistedMetadata() error {
	entries, err := q.store.All()
	if err != nil {
		return domain.NewCacheError("load", "", err)
	}

	// One directory listing shared by all migration lookups.
	var names []string
	if dirEntries, dirErr := os.ReadDir(q.cacheDir); dirErr == nil {
		for _, e := range dirEntries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, entry := range entries {
		if q.verifyFileLocked(entry) {
			q.items[entry.ID] = entry
			continue
		}

		if q.migrateLegacyFileLocked(entry, names) {
			q.items[entry.ID] = entry
			if err := q.store.Upsert(entry); err != nil {
				q.logger.Warn("failed to persist migrated entry",
					slog.String("track_id", entry.ID), slog.Any("error", err))
			}
			continue
		}

		// File is gone; the metadata entry is stale.
		q.logger.Debug("dropping stale metadata entry", slog.String("track_id", entry.ID))
		if err := q.store.Delete(entry.ID); err != nil {
			q.logger.Warn("failed to drop stale entry",
				slog.String("track_id", entry.ID), slog.Any("error", err))
		}
	}

	return nil
}

// migrateLegacyFileLocked renames a legacy-named cache file (any filename
// containing the id) to the canonical {id}.mp3. Returns true when the
// entry now has a verified file. Caller must hold the lock.
func (q *DownloadQueue) migrateLegacyFileLocked(entry *domain.RemoteTrack, names []string) bool {
	for _, name := range names {
		if !strings.Contains(name, entry.ID) {
			continue
		}

		oldPath := filepath.Join(q.cacheDir, name)
		newPath := q.cachePathLocked(entry.ID)

		info, err := os.Stat(oldPath)
		if err != nil || info.Size() == 0 {
			continue
		}

		if oldPath != newPath {
			if err := os.Rename(oldPath, newPath); err != nil {
				q.logger.Warn("legacy cache file migration failed",
					slog.String("from", oldPath), slog.Any("error", err))
				continue
			}
			q.logger.Info("migrated legacy cache file",
				slog.String("from", name), slog.String("track_id", entry.ID))
		}

		entry.CachedPath = newPath
		entry.State = domain.StateDownloaded
		entry.Progress = 100
		return true
	}

	return false
}

// Resolve returns the single canonical *RemoteTrack for the given track,
// creating it on first sight. A track without a derivable canonical id
// is rejected with ErrNoCanonicalID before it can enter any queue.
func (q *DownloadQueue) Resolve(track domain.Track) (*domain.RemoteTrack, error) {
	id := track.ID
	if id == "" {
		derived, err := domain.ExtractVideoID(track.URL)
		if err != nil {
			return nil, err
		}
		id = derived
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.items[id]; ok {
		return existing, nil
	}

	track.ID = id
	item := &domain.RemoteTrack{Track: track, State: domain.StateNotRequested}
	q.items[id] = item

	return item, nil
}

// Tracked returns every remote track the queue knows about.
func (q *DownloadQueue) Tracked() []*domain.RemoteTrack {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.RemoteTrack, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item)
	}
	return out
}

// IsCached reports whether the item has a verified file in the cache.
// In-memory state is trusted first; otherwise the canonical {id}.mp3
// path is checked and the in-memory state repaired. Zero-length files
// are deleted and reported as a miss. Metadata claiming Downloaded with
// no file behind it is reset to NotRequested.
func (q *DownloadQueue) IsCached(item *domain.RemoteTrack) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isCachedLocked(item)
}

// isCachedLocked implements IsCached. Caller must hold the lock.
func (q *DownloadQueue) isCachedLocked(item *domain.RemoteTrack) bool {
	// Trust the in-memory path first.
	if item.CachedPath != "" {
		if q.verifyFileLocked(item) {
			return true
		}
	}

	// Exact-match scan on the canonical name.
	path := q.cachePathLocked(item.ID)
	info, err := os.Stat(path)
	if err == nil {
		if info.Size() > 0 {
			item.CachedPath = path
			item.State = domain.StateDownloaded
			item.Progress = 100
			return true
		}

		// A zero-length file is a failed write; remove it.
		if removeErr := os.Remove(path); removeErr != nil {
			q.logger.Warn("failed to remove zero-length cache file",
				slog.String("path", path), slog.Any("error", removeErr))
		}
	}

	// Stale metadata repair: downloaded state with no file behind it.
	if item.State == domain.StateDownloaded {
		item.State = domain.StateNotRequested
		item.CachedPath = ""
		item.Progress = 0
	}

	return false
}

// verifyFileLocked checks that the item's CachedPath points at a
// non-empty file, clearing the path when it does not. Caller must hold
// the lock.
func (q *DownloadQueue) verifyFileLocked(item *domain.RemoteTrack) bool {
	if item.CachedPath == "" {
		return false
	}

	info, err := os.Stat(item.CachedPath)
	if err == nil && info.Size() > 0 {
		return true
	}

	if err == nil {
		if removeErr := os.Remove(item.CachedPath); removeErr != nil {
			q.logger.Warn("failed to remove zero-length cache file",
				slog.String("path", item.CachedPath), slog.Any("error", removeErr))
		}
	}

	item.CachedPath = ""
	return false
}

// cachePathLocked returns the canonical cache path for an id.
func (q *DownloadQueue) cachePathLocked(id string) string {
	return filepath.Join(q.cacheDir, id+cacheFileExt)
}

// Enqueue submits an item to the given class. ClassStream submissions
// jump ahead of every pending entry; ClassBatch submissions append.
// Items already cached, queued or active are rejected.
func (q *DownloadQueue) Enqueue(item *domain.RemoteTrack, class QueueClass) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return domain.NewServiceError("DownloadQueue", "Enqueue", "queue is shut down", nil)
	}

	if q.isCachedLocked(item) {
		q.mu.Unlock()
		return domain.ErrAlreadyCached
	}

	if _, isActive := q.active[item.ID]; isActive {
		q.mu.Unlock()
		return domain.ErrAlreadyQueued
	}

	for _, job := range q.pending {
		if job.item.ID == item.ID {
			q.mu.Unlock()
			return domain.ErrAlreadyQueued
		}
	}

	item.State = domain.StateQueued
	item.Progress = 0

	job := &pendingJob{item: item, class: class}
	if class == ClassStream {
		q.pending = append([]*pendingJob{job}, q.pending...)
	} else {
		q.pending = append(q.pending, job)
	}

	track := item.Track
	q.mu.Unlock()

	q.logger.Debug("download enqueued",
		slog.String("track_id", track.ID),
		slog.String("class", class.String()))

	q.bus.Publish(domain.NewDownloadQueuedEvent(track, class == ClassStream))
	q.signal()

	return nil
}

// Cancel removes a queued item or cancels an in-flight download.
// Cancellation is cooperative for active jobs: the fetch's context is
// cancelled and the worker finishes without marking the item Downloaded
// or Failed. Returns false when the id is neither queued nor active.
func (q *DownloadQueue) Cancel(id string) bool {
	q.mu.Lock()

	for i, job := range q.pending {
		if job.item.ID != id {
			continue
		}

		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		job.item.State = domain.StateNotRequested
		job.item.Progress = 0
		q.mu.Unlock()

		q.bus.Publish(domain.NewDownloadCancelledEvent(id))
		return true
	}

	if job, ok := q.active[id]; ok {
		cancel := job.cancel
		q.mu.Unlock()
		cancel()
		return true
	}

	q.mu.Unlock()
	return false
}

// ClearClass removes every pending entry of the given class.
// Active jobs are untouched. Returns the number of removed entries.
func (q *DownloadQueue) ClearClass(class QueueClass) int {
	q.mu.Lock()

	var kept []*pendingJob
	var removed []string
	for _, job := range q.pending {
		if job.class != class {
			kept = append(kept, job)
			continue
		}
		job.item.State = domain.StateNotRequested
		job.item.Progress = 0
		removed = append(removed, job.item.ID)
	}
	q.pending = kept
	q.mu.Unlock()

	for _, id := range removed {
		q.bus.Publish(domain.NewDownloadCancelledEvent(id))
	}

	return len(removed)
}

// Status derives the user-facing download state for an item with the
// precedence Downloaded > Downloading > Queued > Failed > NotRequested.
func (q *DownloadQueue) Status(item *domain.RemoteTrack) domain.DownloadState {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isCachedLocked(item) {
		return domain.StateDownloaded
	}
	if _, ok := q.active[item.ID]; ok {
		return domain.StateDownloading
	}
	for _, job := range q.pending {
		if job.item.ID == item.ID {
			return domain.StateQueued
		}
	}
	if item.State == domain.StateFailed {
		return domain.StateFailed
	}
	return domain.StateNotRequested
}

// ActiveCount returns the number of in-flight downloads in a class.
func (q *DownloadQueue) ActiveCount(class QueueClass) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running[class]
}

// PendingCount returns the number of queued entries in a class.
func (q *DownloadQueue) PendingCount(class QueueClass) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, job := range q.pending {
		if job.class == class {
			count++
		}
	}
	return count
}

// Invalidate deletes the cached file for an id and resets its state so
// a later play request downloads it again. Used when a cached file turns
// out to be undecodable.
func (q *DownloadQueue) Invalidate(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return domain.ErrTrackNotFound
	}

	path := item.CachedPath
	if path == "" {
		path = q.cachePathLocked(id)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return domain.NewCacheError("remove", path, err)
	}

	item.CachedPath = ""
	item.State = domain.StateNotRequested
	item.Progress = 0

	if err := q.store.Delete(id); err != nil {
		q.logger.Warn("failed to drop metadata for invalidated item",
			slog.String("track_id", id), slog.Any("error", err))
	}

	q.logger.Info("invalidated cached item", slog.String("track_id", id))

	return nil
}

// Shutdown cancels all in-flight downloads and stops the dispatcher.
func (q *DownloadQueue) Shutdown() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.pending = nil

	cancels := make([]context.CancelFunc, 0, len(q.active))
	for _, job := range q.active {
		cancels = append(cancels, job.cancel)
	}
	q.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	close(q.done)
	q.wg.Wait()

	return nil
}

// signal wakes the dispatcher without blocking.
func (q *DownloadQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatch is the event-driven dispatcher loop. It sleeps on the wake
// channel and starts as many jobs as the per-class limits allow.
func (q *DownloadQueue) dispatch() {
	defer q.wg.Done()

	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
		}

		for q.startNext() {
		}
	}
}

// startNext pops the first pending job whose class has a free slot and
// spawns its worker. Returns false when nothing can be started.
func (q *DownloadQueue) startNext() bool {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return false
	}

	jobIndex := -1
	for i, job := range q.pending {
		if q.running[job.class] < q.limits[job.class] {
			jobIndex = i
			break
		}
	}

	if jobIndex == -1 {
		q.mu.Unlock()
		return false
	}

	job := q.pending[jobIndex]
	q.pending = append(q.pending[:jobIndex], q.pending[jobIndex+1:]...)

	ctx, cancel := context.WithCancel(context.Background())
	q.active[job.item.ID] = &activeJob{item: job.item, class: job.class, cancel: cancel}
	q.running[job.class]++

	job.item.State = domain.StateDownloading
	job.item.Progress = 0
	job.item.LastAttempt = time.Now()

	track := job.item.Track
	dest := q.cachePathLocked(job.item.ID)
	class := job.class

	q.mu.Unlock()

	q.logger.Info("download started",
		slog.String("track_id", track.ID),
		slog.String("class", class.String()))

	q.wg.Add(1)
	go q.download(ctx, job.item, class, track, dest)

	return true
}

// download runs one fetch to completion, failure or cancellation.
func (q *DownloadQueue) download(ctx context.Context, item *domain.RemoteTrack, class QueueClass, track domain.Track, dest string) {
	defer q.wg.Done()

	err := q.fetcher.Download(ctx, track, dest, func(percent float64) {
		q.mu.Lock()
		item.Progress = percent
		q.mu.Unlock()

		q.bus.Publish(domain.NewDownloadProgressEvent(track.ID, percent))
	})

	q.finish(ctx, item, class, track, dest, err)
}

// finish records the outcome of one download and frees its slot.
func (q *DownloadQueue) finish(ctx context.Context, item *domain.RemoteTrack, class QueueClass, track domain.Track, dest string, err error) {
	cancelled := ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrDownloadCancelled)

	q.mu.Lock()

	delete(q.active, track.ID)
	q.running[class]--

	var event domain.Event
	switch {
	case cancelled:
		item.State = domain.StateNotRequested
		item.Progress = 0
		item.CachedPath = ""
		if removeErr := os.Remove(dest); removeErr != nil && !os.IsNotExist(removeErr) {
			q.logger.Warn("failed to remove partial download",
				slog.String("path", dest), slog.Any("error", removeErr))
		}
		event = domain.NewDownloadCancelledEvent(track.ID)

	case err != nil:
		item.State = domain.StateFailed
		item.Progress = 0
		event = domain.NewDownloadFailedEvent(track.ID, err)

	default:
		info, statErr := os.Stat(dest)
		if statErr != nil || info.Size() == 0 {
			item.State = domain.StateFailed
			fetchErr := domain.NewFetchError(track.ID, "fetcher reported success but wrote no file", statErr)
			event = domain.NewDownloadFailedEvent(track.ID, fetchErr)
			break
		}

		item.State = domain.StateDownloaded
		item.Progress = 100
		item.CachedPath = dest
		if persistErr := q.store.Upsert(item); persistErr != nil {
			q.logger.Warn("failed to persist metadata",
				slog.String("track_id", track.ID), slog.Any("error", persistErr))
		}
		event = domain.NewDownloadCompletedEvent(track.ID, dest)
	}

	q.mu.Unlock()

	switch event.(type) {
	case domain.DownloadCompletedEvent:
		q.logger.Info("download completed", slog.String("track_id", track.ID))
	case domain.DownloadCancelledEvent:
		q.logger.Info("download cancelled", slog.String("track_id", track.ID))
	default:
		q.logger.Warn("download failed",
			slog.String("track_id", track.ID), slog.Any("error", err))
	}

	q.bus.Publish(event)
	q.signal()
}
