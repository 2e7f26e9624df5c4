package ports

import (
	"context"

	"github.com/boombox-player/boombox/internal/domain"
)

// ProgressFunc receives download completion percentages in [0, 100].
type ProgressFunc func(percent float64)

// MediaFetcher is the interface to the external tool that resolves remote
// locators into metadata and media files. The orchestration layer never
// speaks a network protocol itself; everything remote goes through here.
//
// Implementations must be safe for concurrent Download calls up to the
// queue's configured concurrency limit.
type MediaFetcher interface {
	// FetchMetadata resolves a locator (video or playlist URL) into track
	// metadata. Each returned track carries a canonical id in Track.ID.
	FetchMetadata(ctx context.Context, url string) ([]domain.Track, error)

	// Download fetches the item's media into destPath, reporting progress
	// through onProgress (may be nil). Cancelling ctx aborts the fetch; the
	// implementation returns ctx.Err() and leaves no usable file behind.
	Download(ctx context.Context, track domain.Track, destPath string, onProgress ProgressFunc) error

	// FindLocalFile reports a previously fetched file for the locator, if
	// the fetcher knows of one outside the cache's own bookkeeping.
	FindLocalFile(url string) (string, bool)
}
