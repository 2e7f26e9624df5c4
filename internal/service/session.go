package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/boombox-player/boombox/internal/domain"
)

// Session holds one source's track list and playback cursor.
// It never touches the shared audio output; the SessionManager decides
// when a session's selection is actually made audible.
//
// Sessions are created once per source at startup and live for the
// process lifetime. All operations are thread-safe via sync.RWMutex.
type Session struct {
	logger *slog.Logger
	source domain.SourceType

	tracks        []domain.Track
	index         int
	savedProgress time.Duration
	paused        bool
	hasEverPlayed bool
	volume        float64
	repeat        domain.RepeatMode

	mu sync.RWMutex
}

// NewSession creates a session for the given source with initial settings.
func NewSession(logger *slog.Logger, source domain.SourceType, settings domain.SourceSettings) *Session {
	return &Session{
		logger: logger,
		source: source,
		paused: true,
		volume: settings.Volume,
		repeat: settings.Repeat,
	}
}

// Source returns the source this session belongs to.
func (s *Session) Source() domain.SourceType {
	return s.source
}

// LoadTracks replaces the track list, resets the cursor to the first
// track and clears any saved progress.
func (s *Session) LoadTracks(tracks []domain.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks = make([]domain.Track, len(tracks))
	copy(s.tracks, tracks)
	s.index = 0
	s.savedProgress = 0

	s.logger.Debug("session loaded",
		slog.String("source", s.source.String()),
		slog.Int("count", len(s.tracks)))
}

// AddTrack appends a track, de-duplicating by id.
// Adding an id already present is a no-op returning ErrDuplicateTrack.
func (s *Session) AddTrack(track domain.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tracks {
		if existing.ID == track.ID {
			return domain.ErrDuplicateTrack
		}
	}

	s.tracks = append(s.tracks, track)
	return nil
}

// RemoveTrack removes the track with the given id. Removing the currently
// selected track keeps the cursor in range.
func (s *Session) RemoveTrack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, track := range s.tracks {
		if track.ID != id {
			continue
		}

		s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)

		// Keep the cursor pointing at a valid entry
		if i < s.index {
			s.index--
		}
		if s.index >= len(s.tracks) {
			s.index = len(s.tracks) - 1
		}
		if s.index < 0 {
			s.index = 0
		}

		return nil
	}

	return domain.ErrTrackNotFound
}

// SelectIndex moves the cursor to the given index.
// Fails without mutation when the index is out of range.
func (s *Session) SelectIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.tracks) {
		return domain.ErrInvalidIndex
	}

	s.index = i
	s.savedProgress = 0
	s.hasEverPlayed = true

	return nil
}

// Next moves the cursor forward, wrapping at the end of the list.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tracks) == 0 {
		return domain.ErrSessionEmpty
	}

	s.index = (s.index + 1) % len(s.tracks)
	s.savedProgress = 0
	s.hasEverPlayed = true

	return nil
}

// Previous moves the cursor backward, wrapping at the start of the list.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tracks) == 0 {
		return domain.ErrSessionEmpty
	}

	s.index = (s.index - 1 + len(s.tracks)) % len(s.tracks)
	s.savedProgress = 0
	s.hasEverPlayed = true

	return nil
}

// Pause records that the session is paused at the given position.
// Pure bookkeeping; the output itself is managed elsewhere.
func (s *Session) Pause(at time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.savedProgress = at
	s.paused = true
}

// Resume marks the session as playing.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
	s.hasEverPlayed = true
}

// Clear removes all tracks and resets the cursor.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks = nil
	s.index = 0
	s.savedProgress = 0
	s.paused = true
}

// CurrentTrack returns the track under the cursor.
func (s *Session) CurrentTrack() (domain.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.tracks) == 0 {
		return domain.Track{}, domain.ErrSessionEmpty
	}

	return s.tracks[s.index], nil
}

// CurrentIndex returns the cursor position.
func (s *Session) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Tracks returns a copy of the track list in order.
func (s *Session) Tracks() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tracks := make([]domain.Track, len(s.tracks))
	copy(tracks, s.tracks)
	return tracks
}

// Count returns the number of tracks in the session.
func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// SavedProgress returns the position recorded by the last Pause.
func (s *Session) SavedProgress() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.savedProgress
}

// IsPaused returns true when the session is not playing.
func (s *Session) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// HasEverPlayed returns true once any track has been selected or resumed.
func (s *Session) HasEverPlayed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasEverPlayed
}

// Volume returns the session's volume setting.
func (s *Session) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetVolume stores the session's volume setting (0.0 to 1.0).
func (s *Session) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	return nil
}

// Repeat returns the session's repeat mode.
func (s *Session) Repeat() domain.RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeat
}

// SetRepeat stores the session's repeat mode.
func (s *Session) SetRepeat(mode domain.RepeatMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = mode
}
