// Package ytdlp implements the MediaFetcher port by shelling out to the
// yt-dlp command line tool. The orchestration layer never speaks a
// network protocol itself; everything remote goes through this adapter.
package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// DefaultBinary is the yt-dlp executable looked up on PATH.
const DefaultBinary = "yt-dlp"

// progressPattern matches yt-dlp's --newline progress output,
// e.g. "[download]  45.2% of 3.52MiB at ...".
var progressPattern = regexp.MustCompile(`\[download\]\s+([0-9.]+)%`)

// Fetcher executes yt-dlp for metadata resolution and media downloads.
//
// Safe for concurrent Download calls; every call runs its own process.
type Fetcher struct {
	logger *slog.Logger
	binary string

	// searchDirs are extra directories checked by FindLocalFile for
	// files fetched outside the cache's own bookkeeping.
	searchDirs []string
}

// NewFetcher creates a fetcher using the given binary (DefaultBinary
// when empty) and optional local search directories.
func NewFetcher(logger *slog.Logger, binary string, searchDirs ...string) *Fetcher {
	if binary == "" {
		binary = DefaultBinary
	}

	return &Fetcher{
		logger:     logger,
		binary:     binary,
		searchDirs: searchDirs,
	}
}

// ytEntry mirrors the yt-dlp JSON fields this layer cares about.
type ytEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
}

// ytPayload is the top-level yt-dlp -J output: either a playlist with
// entries or a single video.
type ytPayload struct {
	Type    string    `json:"_type"`
	Entries []ytEntry `json:"entries"`
	ytEntry
}

// FetchMetadata resolves a video or playlist URL into track metadata.
// Entries without a canonical id are skipped.
func (f *Fetcher) FetchMetadata(ctx context.Context, url string) ([]domain.Track, error) {
	cmd := exec.CommandContext(ctx, f.binary, "-J", "--flat-playlist", "--no-warnings", url)

	out, err := cmd.Output()
	if err != nil {
		return nil, domain.NewFetchError("", fmt.Sprintf("metadata fetch failed for %s", url), err)
	}

	var payload ytPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, domain.NewFetchError("", "unparseable metadata output", err)
	}

	entries := payload.Entries
	if payload.Type != "playlist" {
		entries = []ytEntry{payload.ytEntry}
	}

	tracks := make([]domain.Track, 0, len(entries))
	for _, entry := range entries {
		track, ok := f.toTrack(entry)
		if !ok {
			f.logger.Warn("skipping entry without canonical id",
				slog.String("title", entry.Title))
			continue
		}
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// toTrack converts one yt-dlp entry into a domain track.
func (f *Fetcher) toTrack(entry ytEntry) (domain.Track, bool) {
	id := entry.ID
	if id == "" {
		derived, err := domain.ExtractVideoID(entry.WebpageURL)
		if err != nil {
			derived, err = domain.ExtractVideoID(entry.URL)
		}
		if err != nil {
			return domain.Track{}, false
		}
		id = derived
	}

	url := entry.WebpageURL
	if url == "" {
		url = entry.URL
	}
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + id
	}

	artist := entry.Uploader
	if artist == "" {
		artist = entry.Channel
	}

	return domain.Track{
		ID:       id,
		Source:   domain.SourceYouTube,
		Title:    entry.Title,
		Artist:   artist,
		URL:      url,
		Duration: time.Duration(entry.Duration * float64(time.Second)),
	}, true
}

// Download fetches the track's audio into destPath as mp3, reporting
// progress through onProgress. Cancelling ctx kills the process and
// removes any partial file.
func (f *Fetcher) Download(ctx context.Context, track domain.Track, destPath string, onProgress ports.ProgressFunc) error {
	// yt-dlp decides the intermediate extension; the final transcoded
	// file lands exactly at destPath.
	template := strings.TrimSuffix(destPath, filepath.Ext(destPath)) + ".%(ext)s"

	cmd := exec.CommandContext(ctx, f.binary,
		"-x",
		"--audio-format", "mp3",
		"--newline",
		"--no-warnings",
		"-o", template,
		track.URL,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.NewFetchError(track.ID, "failed to attach to fetch process", err)
	}

	if err := cmd.Start(); err != nil {
		return domain.NewFetchError(track.ID, "failed to start fetch process", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onProgress == nil {
			continue
		}
		if match := progressPattern.FindStringSubmatch(scanner.Text()); match != nil {
			if percent, parseErr := strconv.ParseFloat(match[1], 64); parseErr == nil {
				onProgress(percent)
			}
		}
	}

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		f.cleanupPartial(destPath)
		return ctx.Err()
	}

	if waitErr != nil {
		f.cleanupPartial(destPath)
		return domain.NewFetchError(track.ID, "fetch process failed", waitErr)
	}

	if info, statErr := os.Stat(destPath); statErr != nil || info.Size() == 0 {
		f.cleanupPartial(destPath)
		return domain.NewFetchError(track.ID, "fetch produced no usable file", statErr)
	}

	return nil
}

// cleanupPartial removes the destination and yt-dlp's .part leftovers.
func (f *Fetcher) cleanupPartial(destPath string) {
	for _, path := range []string{destPath, destPath + ".part"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("failed to remove partial download",
				slog.String("path", path), slog.Any("error", err))
		}
	}
}

// FindLocalFile reports a previously fetched file for the locator from
// the configured search directories, if one exists.
func (f *Fetcher) FindLocalFile(url string) (string, bool) {
	id, err := domain.ExtractVideoID(url)
	if err != nil {
		return "", false
	}

	for _, dir := range f.searchDirs {
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.Contains(entry.Name(), id) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if info, statErr := os.Stat(path); statErr == nil && info.Size() > 0 {
				return path, true
			}
		}
	}

	return "", false
}

// Verify that Fetcher implements the MediaFetcher interface
var _ ports.MediaFetcher = (*Fetcher)(nil)
