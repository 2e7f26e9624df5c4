// Package domain defines events for the event-driven architecture.
// Events replace callback chains and enable loose coupling between components.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackLoaded    EventType = "track.loaded"
	EventTrackStarted   EventType = "track.started"
	EventTrackPaused    EventType = "track.paused"
	EventTrackStopped   EventType = "track.stopped"
	EventTrackCompleted EventType = "track.completed"
	EventTrackProgress  EventType = "track.progress"
	EventAutoNext       EventType = "track.auto_next"

	// UI-facing status events
	EventTrackChanged EventType = "track.changed"

	// Download events
	EventDownloadQueued    EventType = "download.queued"
	EventDownloadProgress  EventType = "download.progress"
	EventDownloadCompleted EventType = "download.completed"
	EventDownloadFailed    EventType = "download.failed"
	EventDownloadCancelled EventType = "download.cancelled"

	// Source events
	EventSourceViewed EventType = "source.viewed"
	EventSourceLoaded EventType = "source.loaded"

	// Settings events
	EventVolumeChanged EventType = "volume.changed"
	EventRepeatChanged EventType = "repeat.changed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackLoadedEvent is published when a track is successfully loaded into the output.
type TrackLoadedEvent struct {
	baseEvent
	Track    Track
	Handle   TrackHandle
	Duration time.Duration
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType { return EventTrackLoaded }

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(track Track, handle TrackHandle, duration time.Duration) TrackLoadedEvent {
	return TrackLoadedEvent{baseEvent: newBaseEvent(), Track: track, Handle: handle, Duration: duration}
}

// TrackStartedEvent is published when playback starts.
type TrackStartedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType { return EventTrackStarted }

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(track Track) TrackStartedEvent {
	return TrackStartedEvent{baseEvent: newBaseEvent(), Track: track}
}

// TrackPausedEvent is published when playback is paused.
type TrackPausedEvent struct {
	baseEvent
	Track    Track
	Position time.Duration
}

// Type returns the event type.
func (e TrackPausedEvent) Type() EventType { return EventTrackPaused }

// NewTrackPausedEvent creates a new TrackPausedEvent.
func NewTrackPausedEvent(track Track, position time.Duration) TrackPausedEvent {
	return TrackPausedEvent{baseEvent: newBaseEvent(), Track: track, Position: position}
}

// TrackStoppedEvent is published when playback is stopped and the output unbound.
type TrackStoppedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackStoppedEvent) Type() EventType { return EventTrackStopped }

// NewTrackStoppedEvent creates a new TrackStoppedEvent.
func NewTrackStoppedEvent(track Track) TrackStoppedEvent {
	return TrackStoppedEvent{baseEvent: newBaseEvent(), Track: track}
}

// TrackCompletedEvent is published when a track finishes playing naturally.
type TrackCompletedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType { return EventTrackCompleted }

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track Track) TrackCompletedEvent {
	return TrackCompletedEvent{baseEvent: newBaseEvent(), Track: track}
}

// TrackProgressEvent is published periodically during playback.
type TrackProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e TrackProgressEvent) Type() EventType { return EventTrackProgress }

// NewTrackProgressEvent creates a new TrackProgressEvent.
func NewTrackProgressEvent(position, duration time.Duration) TrackProgressEvent {
	return TrackProgressEvent{baseEvent: newBaseEvent(), Position: position, Duration: duration}
}

// AutoNextEvent is published when a track finishes and the owning session
// should advance according to its repeat mode.
type AutoNextEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e AutoNextEvent) Type() EventType { return EventAutoNext }

// NewAutoNextEvent creates a new AutoNextEvent.
func NewAutoNextEvent(track Track) AutoNextEvent {
	return AutoNextEvent{baseEvent: newBaseEvent(), Track: track}
}

// TrackStatus is the user-visible status carried by a TrackChangedEvent.
type TrackStatus string

const (
	// TrackStatusPlaying means the track is audible now.
	TrackStatusPlaying TrackStatus = "playing"

	// TrackStatusDownloading means the track is being fetched and will auto-play.
	TrackStatusDownloading TrackStatus = "downloading"

	// TrackStatusFailed means the play request could not be satisfied.
	TrackStatusFailed TrackStatus = "failed"
)

// TrackChangedEvent carries enough information for the UI to reflect a play
// request's outcome. A request that cannot be satisfied leaves previous
// playback untouched and surfaces here.
type TrackChangedEvent struct {
	baseEvent
	Track  Track
	Status TrackStatus
}

// Type returns the event type.
func (e TrackChangedEvent) Type() EventType { return EventTrackChanged }

// NewTrackChangedEvent creates a new TrackChangedEvent.
func NewTrackChangedEvent(track Track, status TrackStatus) TrackChangedEvent {
	return TrackChangedEvent{baseEvent: newBaseEvent(), Track: track, Status: status}
}

// DownloadQueuedEvent is published when an item enters a download queue.
type DownloadQueuedEvent struct {
	baseEvent
	Track    Track
	Priority bool
}

// Type returns the event type.
func (e DownloadQueuedEvent) Type() EventType { return EventDownloadQueued }

// NewDownloadQueuedEvent creates a new DownloadQueuedEvent.
func NewDownloadQueuedEvent(track Track, priority bool) DownloadQueuedEvent {
	return DownloadQueuedEvent{baseEvent: newBaseEvent(), Track: track, Priority: priority}
}

// DownloadProgressEvent is published as a fetch reports progress.
type DownloadProgressEvent struct {
	baseEvent
	TrackID string
	Percent float64
}

// Type returns the event type.
func (e DownloadProgressEvent) Type() EventType { return EventDownloadProgress }

// NewDownloadProgressEvent creates a new DownloadProgressEvent.
func NewDownloadProgressEvent(trackID string, percent float64) DownloadProgressEvent {
	return DownloadProgressEvent{baseEvent: newBaseEvent(), TrackID: trackID, Percent: percent}
}

// DownloadCompletedEvent is published when a fetch finishes and the file is cached.
type DownloadCompletedEvent struct {
	baseEvent
	TrackID    string
	CachedPath string
}

// Type returns the event type.
func (e DownloadCompletedEvent) Type() EventType { return EventDownloadCompleted }

// NewDownloadCompletedEvent creates a new DownloadCompletedEvent.
func NewDownloadCompletedEvent(trackID, cachedPath string) DownloadCompletedEvent {
	return DownloadCompletedEvent{baseEvent: newBaseEvent(), TrackID: trackID, CachedPath: cachedPath}
}

// DownloadFailedEvent is published when a fetch fails. No automatic retry follows.
type DownloadFailedEvent struct {
	baseEvent
	TrackID string
	Err     error
}

// Type returns the event type.
func (e DownloadFailedEvent) Type() EventType { return EventDownloadFailed }

// NewDownloadFailedEvent creates a new DownloadFailedEvent.
func NewDownloadFailedEvent(trackID string, err error) DownloadFailedEvent {
	return DownloadFailedEvent{baseEvent: newBaseEvent(), TrackID: trackID, Err: err}
}

// DownloadCancelledEvent is published when an in-flight or queued fetch is cancelled.
type DownloadCancelledEvent struct {
	baseEvent
	TrackID string
}

// Type returns the event type.
func (e DownloadCancelledEvent) Type() EventType { return EventDownloadCancelled }

// NewDownloadCancelledEvent creates a new DownloadCancelledEvent.
func NewDownloadCancelledEvent(trackID string) DownloadCancelledEvent {
	return DownloadCancelledEvent{baseEvent: newBaseEvent(), TrackID: trackID}
}

// SourceViewedEvent is published when the UI focus switches to another source.
type SourceViewedEvent struct {
	baseEvent
	Source SourceType
}

// Type returns the event type.
func (e SourceViewedEvent) Type() EventType { return EventSourceViewed }

// NewSourceViewedEvent creates a new SourceViewedEvent.
func NewSourceViewedEvent(source SourceType) SourceViewedEvent {
	return SourceViewedEvent{baseEvent: newBaseEvent(), Source: source}
}

// SourceLoadedEvent is published when a provider finishes populating a session.
type SourceLoadedEvent struct {
	baseEvent
	Source     SourceType
	TrackCount int
}

// Type returns the event type.
func (e SourceLoadedEvent) Type() EventType { return EventSourceLoaded }

// NewSourceLoadedEvent creates a new SourceLoadedEvent.
func NewSourceLoadedEvent(source SourceType, trackCount int) SourceLoadedEvent {
	return SourceLoadedEvent{baseEvent: newBaseEvent(), Source: source, TrackCount: trackCount}
}

// VolumeChangedEvent is published when a source's volume setting changes.
type VolumeChangedEvent struct {
	baseEvent
	Source SourceType
	Volume float64 // 0.0 to 1.0
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType { return EventVolumeChanged }

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(source SourceType, volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{baseEvent: newBaseEvent(), Source: source, Volume: volume}
}

// RepeatChangedEvent is published when a source's repeat mode changes.
type RepeatChangedEvent struct {
	baseEvent
	Source SourceType
	Mode   RepeatMode
}

// Type returns the event type.
func (e RepeatChangedEvent) Type() EventType { return EventRepeatChanged }

// NewRepeatChangedEvent creates a new RepeatChangedEvent.
func NewRepeatChangedEvent(source SourceType, mode RepeatMode) RepeatChangedEvent {
	return RepeatChangedEvent{baseEvent: newBaseEvent(), Source: source, Mode: mode}
}
