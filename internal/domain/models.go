// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the boombox playback orchestrator.
package domain

import (
	"time"
)

// SourceType identifies one of the interchangeable playback sources.
type SourceType string

const (
	// SourceNone means no source. It is used for the "nothing is playing" state.
	SourceNone SourceType = ""

	// SourceJukebox is the built-in jukebox disc collection.
	SourceJukebox SourceType = "jukebox"

	// SourceLocal is the user's local music folder.
	SourceLocal SourceType = "local"

	// SourceYouTube is the remote streaming source backed by the download cache.
	SourceYouTube SourceType = "youtube"
)

// String returns the source name.
func (s SourceType) String() string {
	if s == SourceNone {
		return "none"
	}
	return string(s)
}

// RepeatMode controls what happens when a track finishes naturally.
type RepeatMode int

const (
	// RepeatNone advances to the next track and stops at the end of the list.
	RepeatNone RepeatMode = iota

	// RepeatOne replays the current track.
	RepeatOne

	// RepeatAll advances with wrap-around at the end of the list.
	RepeatAll
)

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "none"
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "unknown"
	}
}

// Track is a single playable item in a session list.
// For local sources Path is set at load time; for remote tracks Path stays
// empty until the item is cached, and ID holds the canonical id derived
// from URL.
type Track struct {
	// ID uniquely identifies the track within its source.
	ID string

	// Source is the session this track belongs to.
	Source SourceType

	// Title is the display title.
	Title string

	// Artist is the performing artist (may be empty for local files).
	Artist string

	// Path is the absolute path to a playable local file, if one exists.
	Path string

	// URL is the remote locator for externally sourced tracks.
	URL string

	// Duration is the total track length (zero if unknown).
	Duration time.Duration
}

// IsLocallyAvailable reports whether the track can be decoded without fetching.
func (t Track) IsLocallyAvailable() bool {
	return t.Path != ""
}

// DownloadState describes where a remote track is in its fetch lifecycle.
type DownloadState int

const (
	// StateNotRequested means no download has been asked for.
	StateNotRequested DownloadState = iota

	// StateQueued means the track sits in a download queue.
	StateQueued

	// StateDownloading means a fetch is in flight.
	StateDownloading

	// StateDownloaded means a verified file exists in the cache.
	StateDownloaded

	// StateFailed means the last fetch attempt failed. No automatic retry.
	StateFailed
)

// String returns a human-readable representation of the download state.
func (s DownloadState) String() string {
	switch s {
	case StateNotRequested:
		return "not_requested"
	case StateQueued:
		return "queued"
	case StateDownloading:
		return "downloading"
	case StateDownloaded:
		return "downloaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RemoteTrack is the single in-memory instance of a remote item's metadata.
// The download cache hands out exactly one *RemoteTrack per canonical id and
// mutates it as downloads proceed; all mutation happens under the cache lock.
type RemoteTrack struct {
	Track

	// State is the current download state.
	State DownloadState

	// Progress is the download completion percentage (0-100).
	Progress float64

	// CachedPath is the cache file path. Set only when State is StateDownloaded.
	CachedPath string

	// LastAttempt is when the most recent download attempt started.
	LastAttempt time.Time
}

// PlaybackStatus represents the state of the shared audio output.
type PlaybackStatus int

const (
	// StatusStopped indicates playback is stopped
	StatusStopped PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates playback is paused
	StatusPaused
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// TrackHandle is an opaque identifier the audio engine uses for loaded tracks.
type TrackHandle int64

const (
	// InvalidTrackHandle represents an invalid or uninitialized track handle
	InvalidTrackHandle TrackHandle = 0
)

// SourceSettings are the persisted per-source playback settings.
type SourceSettings struct {
	// Volume is the saved volume level (0.0 to 1.0).
	Volume float64

	// Repeat is the saved repeat mode.
	Repeat RepeatMode
}
