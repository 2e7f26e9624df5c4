package provider

import (
	"context"
	"log/slog"
	"sort"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
	"github.com/boombox-player/boombox/internal/service"
)

// YouTubeProvider resolves the configured playlist into tracks and
// merges in everything already present in the download cache, so the
// source works offline with whatever was fetched before.
//
// Tracks are returned without a local path; playback always routes
// through the streaming service, which decides between cache and
// download.
type YouTubeProvider struct {
	logger      *slog.Logger
	fetcher     ports.MediaFetcher
	cache       *service.DownloadCache
	playlistURL string
}

// NewYouTubeProvider creates the remote playlist provider.
func NewYouTubeProvider(
	logger *slog.Logger,
	fetcher ports.MediaFetcher,
	cache *service.DownloadCache,
	playlistURL string,
) *YouTubeProvider {
	return &YouTubeProvider{
		logger:      logger,
		fetcher:     fetcher,
		cache:       cache,
		playlistURL: playlistURL,
	}
}

// SourceID identifies the session this provider feeds.
func (p *YouTubeProvider) SourceID() domain.SourceType {
	return domain.SourceYouTube
}

// DisplayName is the human-readable source name.
func (p *YouTubeProvider) DisplayName() string {
	return "YouTube"
}

// IsAvailable reports whether this source can serve anything at all.
func (p *YouTubeProvider) IsAvailable() bool {
	return p.playlistURL != "" || len(p.cache.Tracked()) > 0
}

// LoadTracks fetches the playlist metadata and merges it with cached
// entries. When the fetch fails (offline, tool missing) the cached
// entries alone are returned, so previously downloaded tracks stay
// playable.
func (p *YouTubeProvider) LoadTracks(ctx context.Context) ([]domain.Track, error) {
	var fetched []domain.Track

	if p.playlistURL != "" {
		remote, err := p.fetcher.FetchMetadata(ctx, p.playlistURL)
		if err != nil {
			p.logger.Warn("playlist fetch failed, serving cached entries only",
				slog.Any("error", err))
		} else {
			fetched = remote
		}
	}

	seen := make(map[string]bool, len(fetched))
	tracks := make([]domain.Track, 0, len(fetched))

	for _, track := range fetched {
		// Seed the cache's identity map so downloads and plays share
		// the same canonical instance.
		item, err := p.cache.Resolve(track)
		if err != nil {
			p.logger.Warn("skipping track without canonical id",
				slog.String("url", track.URL), slog.Any("error", err))
			continue
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		tracks = append(tracks, item.Track)
	}

	// Cached items not in the playlist anymore remain reachable.
	var extra []domain.Track
	for _, item := range p.cache.Tracked() {
		if seen[item.ID] || !p.cache.IsCached(item) {
			continue
		}
		seen[item.ID] = true
		extra = append(extra, item.Track)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Title < extra[j].Title })
	tracks = append(tracks, extra...)

	p.logger.Debug("youtube source loaded",
		slog.Int("playlist", len(fetched)), slog.Int("total", len(tracks)))

	return tracks, nil
}

// Cleanup releases provider resources; the provider holds none.
func (p *YouTubeProvider) Cleanup() error {
	return nil
}

// Verify interface implementation
var _ ports.PlaybackProvider = (*YouTubeProvider)(nil)
