// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrNoCanonicalID is returned when a remote locator yields no canonical id.
	// Items carrying this error are rejected before entering any queue.
	ErrNoCanonicalID = errors.New("no canonical id derivable from locator")

	// ErrTrackNotFound is returned when a requested track cannot be found.
	ErrTrackNotFound = errors.New("track not found")

	// ErrDuplicateTrack is returned when adding a track whose id is already present.
	ErrDuplicateTrack = errors.New("track already exists in session")

	// ErrSessionEmpty is returned when an operation requires a non-empty session.
	ErrSessionEmpty = errors.New("session has no tracks")

	// ErrInvalidIndex is returned when a session index is out of bounds.
	ErrInvalidIndex = errors.New("invalid session index")

	// ErrUnknownSource is returned when a source type has no registered session.
	ErrUnknownSource = errors.New("unknown playback source")

	// ErrNothingPlaying is returned when a transport command needs a playing session.
	ErrNothingPlaying = errors.New("no session is bound to the output")

	// ErrInvalidVolume is returned when the volume is out of valid range (0.0-1.0).
	ErrInvalidVolume = errors.New("invalid volume: must be between 0.0 and 1.0")

	// ErrInvalidPosition is returned when seeking to an invalid position.
	ErrInvalidPosition = errors.New("invalid playback position")

	// ErrInvalidTrackHandle is returned when an invalid track handle is used.
	ErrInvalidTrackHandle = errors.New("invalid track handle")

	// ErrNoTrackLoaded is returned when playback is attempted with no track loaded.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrNotInitialized is returned when an operation is attempted on an uninitialized component.
	ErrNotInitialized = errors.New("component not initialized")

	// ErrAlreadyInitialized is returned when attempting to initialize an already initialized component.
	ErrAlreadyInitialized = errors.New("component already initialized")

	// ErrInvalidFilePath is returned when a file path is invalid.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrPlaybackFailed is returned when playback cannot be started.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrAlreadyQueued is returned when a download is re-submitted while queued or active.
	ErrAlreadyQueued = errors.New("download already queued or active")

	// ErrAlreadyCached is returned when a download is submitted for a cached item.
	ErrAlreadyCached = errors.New("item already cached")

	// ErrDownloadCancelled is returned by a fetch aborted through cancellation.
	ErrDownloadCancelled = errors.New("download cancelled")
)

// CacheError wraps a cache directory or metadata store failure.
// Cache errors are logged and treated as cache misses; they never cross the
// session boundary as panics.
type CacheError struct {
	Op   string // Operation that failed (e.g., "scan", "remove", "persist")
	Path string // File path (if applicable)
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cache %s failed for %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError creates a new CacheError.
func NewCacheError(op, path string, err error) *CacheError {
	return &CacheError{Op: op, Path: path, Err: err}
}

// FetchError wraps a media fetcher failure for a specific item.
type FetchError struct {
	TrackID string // Canonical id of the item that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %s", e.TrackID, e.Message)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(trackID, message string, err error) *FetchError {
	return &FetchError{TrackID: trackID, Message: message, Err: err}
}

// AudioEngineError represents an error from the audio engine.
// This wraps low-level decoder/output errors with additional context.
type AudioEngineError struct {
	Op      string // Operation that failed (e.g., "load", "play", "seek")
	Path    string // File path (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *AudioEngineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("audio engine %s failed for %q: %s", e.Op, e.Path, e.Message)
	}
	return fmt.Sprintf("audio engine %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *AudioEngineError) Unwrap() error {
	return e.Err
}

// NewAudioEngineError creates a new AudioEngineError.
func NewAudioEngineError(op, path, message string, err error) *AudioEngineError {
	return &AudioEngineError{Op: op, Path: path, Message: message, Err: err}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "SessionManager", "DownloadCache")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{Service: service, Op: op, Message: message, Err: err}
}
