// Package sqlite provides SQLite-backed repository implementations.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS remote_tracks (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL,
	artist       TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	state        INTEGER NOT NULL DEFAULT 0,
	cached_path  TEXT NOT NULL DEFAULT '',
	last_attempt INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS source_settings (
	source TEXT PRIMARY KEY,
	volume REAL NOT NULL,
	repeat INTEGER NOT NULL
);
`

// Store is a SQLite-backed store implementing both the metadata store
// and the settings repository.
//
// Thread-safe: database/sql serializes access; WAL mode keeps readers
// from blocking the download worker's writes.
type Store struct {
	logger *slog.Logger
	db     *sql.DB
}

// NewStore opens (or creates) the database at path and ensures the schema.
func NewStore(logger *slog.Logger, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, domain.NewCacheError("open", path, err)
	}

	// sqlite handles one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, domain.NewCacheError("migrate", path, err)
	}

	logger.Debug("sqlite store opened", slog.String("path", path))

	return &Store{logger: logger, db: db}, nil
}

// Get retrieves a stored entry by canonical id. Returns (nil, nil) when
// no entry exists.
func (s *Store) Get(id string) (*domain.RemoteTrack, error) {
	row := s.db.QueryRow(`
		SELECT id, source, title, artist, url, duration_ms, state, cached_path, last_attempt
		FROM remote_tracks WHERE id = ?`, id)

	entry, err := scanRemoteTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewCacheError("get", id, err)
	}
	return entry, nil
}

// Upsert inserts or replaces the entry for the track's canonical id.
func (s *Store) Upsert(track *domain.RemoteTrack) error {
	if track == nil || track.ID == "" {
		return domain.ErrTrackNotFound
	}

	_, err := s.db.Exec(`
		INSERT INTO remote_tracks (id, source, title, artist, url, duration_ms, state, cached_path, last_attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			title = excluded.title,
			artist = excluded.artist,
			url = excluded.url,
			duration_ms = excluded.duration_ms,
			state = excluded.state,
			cached_path = excluded.cached_path,
			last_attempt = excluded.last_attempt`,
		track.ID,
		string(track.Source),
		track.Title,
		track.Artist,
		track.URL,
		track.Duration.Milliseconds(),
		int(track.State),
		track.CachedPath,
		track.LastAttempt.UnixMilli(),
	)
	if err != nil {
		return domain.NewCacheError("upsert", track.ID, err)
	}
	return nil
}

// Delete removes the entry for id. Missing entries are a no-op.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM remote_tracks WHERE id = ?`, id); err != nil {
		return domain.NewCacheError("delete", id, err)
	}
	return nil
}

// All returns every stored entry.
func (s *Store) All() ([]*domain.RemoteTrack, error) {
	rows, err := s.db.Query(`
		SELECT id, source, title, artist, url, duration_ms, state, cached_path, last_attempt
		FROM remote_tracks`)
	if err != nil {
		return nil, domain.NewCacheError("list", "", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", slog.Any("error", closeErr))
		}
	}()

	var entries []*domain.RemoteTrack
	for rows.Next() {
		entry, scanErr := scanRemoteTrack(rows)
		if scanErr != nil {
			return nil, domain.NewCacheError("scan", "", scanErr)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewCacheError("list", "", err)
	}

	return entries, nil
}

// SaveSettings persists the settings for a source.
func (s *Store) SaveSettings(source domain.SourceType, settings domain.SourceSettings) error {
	_, err := s.db.Exec(`
		INSERT INTO source_settings (source, volume, repeat)
		VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			volume = excluded.volume,
			repeat = excluded.repeat`,
		string(source), settings.Volume, int(settings.Repeat))
	if err != nil {
		return domain.NewCacheError("save_settings", source.String(), err)
	}
	return nil
}

// LoadSettings retrieves the saved settings for a source.
func (s *Store) LoadSettings(source domain.SourceType) (domain.SourceSettings, bool, error) {
	var settings domain.SourceSettings
	var repeat int

	row := s.db.QueryRow(`SELECT volume, repeat FROM source_settings WHERE source = ?`, string(source))
	err := row.Scan(&settings.Volume, &repeat)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SourceSettings{}, false, nil
	}
	if err != nil {
		return domain.SourceSettings{}, false, domain.NewCacheError("load_settings", source.String(), err)
	}

	settings.Repeat = domain.RepeatMode(repeat)
	return settings, true, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRemoteTrack reads one remote_tracks row.
func scanRemoteTrack(row rowScanner) (*domain.RemoteTrack, error) {
	var entry domain.RemoteTrack
	var source string
	var durationMs, lastAttemptMs int64
	var state int

	err := row.Scan(
		&entry.ID,
		&source,
		&entry.Title,
		&entry.Artist,
		&entry.URL,
		&durationMs,
		&state,
		&entry.CachedPath,
		&lastAttemptMs,
	)
	if err != nil {
		return nil, err
	}

	entry.Source = domain.SourceType(source)
	entry.Duration = time.Duration(durationMs) * time.Millisecond
	entry.State = domain.DownloadState(state)
	if lastAttemptMs > 0 {
		entry.LastAttempt = time.UnixMilli(lastAttemptMs)
	}

	return &entry, nil
}

// Verify interface implementations
var (
	_ ports.MetadataStore      = (*Store)(nil)
	_ ports.SettingsRepository = (*Store)(nil)
)
