package provider

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// supportedExtensions are the containers the audio engine can decode.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".wav":  true,
}

// LocalProvider scans the user's music folder recursively.
type LocalProvider struct {
	logger *slog.Logger
	root   string
}

// NewLocalProvider creates a provider over the given music directory.
func NewLocalProvider(logger *slog.Logger, root string) *LocalProvider {
	return &LocalProvider{
		logger: logger,
		root:   root,
	}
}

// SourceID identifies the session this provider feeds.
func (p *LocalProvider) SourceID() domain.SourceType {
	return domain.SourceLocal
}

// DisplayName is the human-readable source name.
func (p *LocalProvider) DisplayName() string {
	return "Local Music"
}

// IsAvailable reports whether the music directory exists.
func (p *LocalProvider) IsAvailable() bool {
	info, err := os.Stat(p.root)
	return err == nil && info.IsDir()
}

// LoadTracks walks the music directory and returns every supported audio
// file with its tag metadata, ordered by path for stable results.
func (p *LocalProvider) LoadTracks(ctx context.Context) ([]domain.Track, error) {
	var tracks []domain.Track

	err := filepath.WalkDir(p.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			p.logger.Warn("skipping unreadable entry",
				slog.String("path", path), slog.Any("error", walkErr))
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		tracks = append(tracks, p.trackFromFile(path))
		return nil
	})
	if err != nil {
		return nil, domain.NewServiceError("LocalProvider", "LoadTracks", "folder scan failed", err)
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Path < tracks[j].Path })

	p.logger.Debug("local folder scanned",
		slog.String("root", p.root), slog.Int("count", len(tracks)))

	return tracks, nil
}

// trackFromFile builds a track from a file's tags, falling back to the
// file name when tags are missing or unreadable.
func (p *LocalProvider) trackFromFile(path string) domain.Track {
	track := domain.Track{
		ID:     p.trackID(path),
		Source: domain.SourceLocal,
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:   path,
	}

	file, err := os.Open(path)
	if err != nil {
		return track
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			p.logger.Warn("failed to close file", slog.Any("error", closeErr))
		}
	}()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// Not every file carries tags; the filename fallback stands.
		return track
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		track.Title = title
	}
	track.Artist = strings.TrimSpace(meta.Artist())

	return track
}

// trackID derives a stable id from the path relative to the music root.
func (p *LocalProvider) trackID(path string) string {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Cleanup releases provider resources; the scanner holds none.
func (p *LocalProvider) Cleanup() error {
	return nil
}

// Verify interface implementation
var _ ports.PlaybackProvider = (*LocalProvider)(nil)
