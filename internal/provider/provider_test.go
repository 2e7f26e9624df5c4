package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boombox-player/boombox/internal/adapter/eventbus"
	"github.com/boombox-player/boombox/internal/adapter/repository/memory"
	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/logger"
	"github.com/boombox-player/boombox/internal/ports"
	"github.com/boombox-player/boombox/internal/service"
)

// metadataFetcher serves canned playlist metadata.
type metadataFetcher struct {
	tracks []domain.Track
	err    error
}

func (f *metadataFetcher) FetchMetadata(context.Context, string) ([]domain.Track, error) {
	return f.tracks, f.err
}

func (f *metadataFetcher) Download(context.Context, domain.Track, string, ports.ProgressFunc) error {
	return errors.New("not implemented")
}

func (f *metadataFetcher) FindLocalFile(string) (string, bool) {
	return "", false
}

func TestJukeboxProvider_LoadTracks(t *testing.T) {
	discs := []Disc{
		{ID: "disc-01", Title: "Thirteen", Artist: "C418", Path: "/discs/13.mp3", Duration: 178 * time.Second},
		{ID: "disc-02", Title: "Cat", Artist: "C418", Path: "/discs/cat.mp3", Duration: 185 * time.Second},
	}

	p := NewJukeboxProvider(logger.NewTestLogger(), discs)
	assert.Equal(t, domain.SourceJukebox, p.SourceID())
	assert.True(t, p.IsAvailable())

	tracks, err := p.LoadTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	// Registry order is preserved.
	assert.Equal(t, "disc-01", tracks[0].ID)
	assert.Equal(t, "Thirteen", tracks[0].Title)
	assert.Equal(t, "/discs/cat.mp3", tracks[1].Path)
	assert.Equal(t, domain.SourceJukebox, tracks[1].Source)
	assert.Equal(t, 178*time.Second, tracks[0].Duration)
}

func TestJukeboxProvider_EmptyRegistry(t *testing.T) {
	p := NewJukeboxProvider(logger.NewTestLogger(), nil)
	assert.False(t, p.IsAvailable())
}

func TestLocalProvider_LoadTracks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "album"), 0o755))

	// Plain files without readable tags fall back to filename titles.
	for _, name := range []string{"b.mp3", "album/a.flac", "notes.txt", "cover.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("data"), 0o644))
	}

	p := NewLocalProvider(logger.NewTestLogger(), root)
	assert.Equal(t, domain.SourceLocal, p.SourceID())
	assert.True(t, p.IsAvailable())

	tracks, err := p.LoadTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	// Ordered by path, ids relative to the root.
	assert.Equal(t, "album/a.flac", tracks[0].ID)
	assert.Equal(t, "a", tracks[0].Title)
	assert.Equal(t, "b.mp3", tracks[1].ID)
	assert.Equal(t, "b", tracks[1].Title)
	assert.Equal(t, filepath.Join(root, "b.mp3"), tracks[1].Path)
	assert.True(t, tracks[1].IsLocallyAvailable())
}

func TestLocalProvider_MissingDirectory(t *testing.T) {
	p := NewLocalProvider(logger.NewTestLogger(), filepath.Join(t.TempDir(), "nope"))
	assert.False(t, p.IsAvailable())
}

func newTestCache(t *testing.T, fetcher ports.MediaFetcher) (*service.DownloadCache, string) {
	t.Helper()

	dir := t.TempDir()
	queue, err := service.NewDownloadQueue(
		logger.NewTestLogger(), eventbus.NewSyncEventBus(), fetcher, memory.NewMetadataStore(), dir, 1)
	require.NoError(t, err)

	t.Cleanup(func() {
		queue.Shutdown()
	})

	return service.NewDownloadCache(logger.NewTestLogger(), queue), dir
}

func TestYouTubeProvider_LoadTracks_MergesPlaylistAndCache(t *testing.T) {
	fetcher := &metadataFetcher{tracks: []domain.Track{
		{ID: "aaa11111111", Source: domain.SourceYouTube, Title: "First", URL: "https://youtu.be/aaa11111111"},
		{ID: "aaa11111111", Source: domain.SourceYouTube, Title: "First again", URL: "https://youtu.be/aaa11111111"},
		{ID: "bbb22222222", Source: domain.SourceYouTube, Title: "Second", URL: "https://youtu.be/bbb22222222"},
	}}

	cache, dir := newTestCache(t, fetcher)

	// One cached track that is no longer in the playlist.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ccc33333333.mp3"), []byte("audio"), 0o644))
	orphan, err := cache.Resolve(domain.Track{
		ID: "ccc33333333", Source: domain.SourceYouTube, Title: "Orphan", URL: "https://youtu.be/ccc33333333",
	})
	require.NoError(t, err)
	require.True(t, cache.IsCached(orphan))

	p := NewYouTubeProvider(logger.NewTestLogger(), fetcher, cache, "https://www.youtube.com/playlist?list=PL1")
	assert.True(t, p.IsAvailable())

	tracks, err := p.LoadTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	// Playlist order first (deduplicated), cached leftovers appended.
	assert.Equal(t, "aaa11111111", tracks[0].ID)
	assert.Equal(t, "bbb22222222", tracks[1].ID)
	assert.Equal(t, "ccc33333333", tracks[2].ID)

	// No local paths: playback must route through the streaming service.
	for _, track := range tracks[:2] {
		assert.False(t, track.IsLocallyAvailable())
	}
}

func TestYouTubeProvider_LoadTracks_OfflineServesCache(t *testing.T) {
	fetcher := &metadataFetcher{err: errors.New("network down")}
	cache, dir := newTestCache(t, fetcher)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "aaa11111111.mp3"), []byte("audio"), 0o644))
	item, err := cache.Resolve(domain.Track{
		ID: "aaa11111111", Source: domain.SourceYouTube, Title: "Kept", URL: "https://youtu.be/aaa11111111",
	})
	require.NoError(t, err)
	require.True(t, cache.IsCached(item))

	p := NewYouTubeProvider(logger.NewTestLogger(), fetcher, cache, "https://www.youtube.com/playlist?list=PL1")

	tracks, err := p.LoadTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "aaa11111111", tracks[0].ID)
}

func TestYouTubeProvider_Availability(t *testing.T) {
	fetcher := &metadataFetcher{}
	cache, _ := newTestCache(t, fetcher)

	// No playlist and an empty cache: nothing to serve.
	p := NewYouTubeProvider(logger.NewTestLogger(), fetcher, cache, "")
	assert.False(t, p.IsAvailable())

	_, err := cache.Resolve(domain.Track{ID: "aaa11111111", Source: domain.SourceYouTube})
	require.NoError(t, err)
	assert.True(t, p.IsAvailable())
}
