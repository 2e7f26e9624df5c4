// Package beep implements the AudioEngine port on top of faiface/beep
// and the system speaker. Supported containers: mp3, flac, ogg and wav.
package beep

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// Engine decodes audio files and routes them through the speaker.
//
// Thread-safety: the handle map is guarded by the engine mutex; sample
// pipeline mutations happen under the speaker lock as beep requires.
type Engine struct {
	logger *slog.Logger

	initialized bool
	sampleRate  beep.SampleRate

	tracks     map[domain.TrackHandle]*loadedTrack
	nextHandle domain.TrackHandle
	mu         sync.RWMutex
}

// loadedTrack is one decoded file wired into the speaker pipeline.
type loadedTrack struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	started  bool // true once handed to the speaker
}

// NewEngine creates an uninitialized speaker-backed engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger:     logger,
		tracks:     make(map[domain.TrackHandle]*loadedTrack),
		nextHandle: 1,
	}
}

// Initialize opens the system speaker at the given output sample rate.
func (e *Engine) Initialize(sampleRate int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return domain.ErrAlreadyInitialized
	}

	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		return domain.NewAudioEngineError("initialize", "", "failed to open speaker", err)
	}

	e.sampleRate = sr
	e.initialized = true

	e.logger.Debug("audio engine initialized", slog.Int("sample_rate", sampleRate))

	return nil
}

// Shutdown releases every loaded track and silences the speaker.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return domain.ErrNotInitialized
	}

	speaker.Clear()

	for handle, track := range e.tracks {
		if err := track.streamer.Close(); err != nil {
			e.logger.Warn("failed to close streamer", slog.Any("error", err))
		}
		delete(e.tracks, handle)
	}

	e.initialized = false
	return nil
}

// IsInitialized returns true if the speaker has been opened.
func (e *Engine) IsInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Load decodes an audio file and prepares its playback pipeline.
// The track starts paused; Play makes it audible.
func (e *Engine) Load(filePath string) (domain.TrackHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return domain.InvalidTrackHandle, domain.ErrNotInitialized
	}

	if filePath == "" {
		return domain.InvalidTrackHandle, domain.ErrInvalidFilePath
	}

	file, err := os.Open(filePath)
	if err != nil {
		return domain.InvalidTrackHandle, domain.NewAudioEngineError("load", filePath, "failed to open file", err)
	}

	streamer, format, err := decode(file, filePath)
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			e.logger.Warn("failed to close file after decode error", slog.Any("error", closeErr))
		}
		return domain.InvalidTrackHandle, domain.NewAudioEngineError("load", filePath, "failed to decode file", err)
	}

	// The decoder owns the file from here; streamer.Close closes it.

	var pipeline beep.Streamer = streamer
	if format.SampleRate != e.sampleRate {
		pipeline = beep.Resample(4, format.SampleRate, e.sampleRate, streamer)
	}

	ctrl := &beep.Ctrl{Streamer: pipeline, Paused: true}
	volume := &effects.Volume{Streamer: ctrl, Base: 2, Volume: 0}

	handle := e.nextHandle
	e.nextHandle++

	e.tracks[handle] = &loadedTrack{
		streamer: streamer,
		format:   format,
		ctrl:     ctrl,
		volume:   volume,
		level:    1.0,
	}

	return handle, nil
}

// decode picks the decoder by file extension.
func decode(file *os.File, filePath string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return mp3.Decode(file)
	case ".flac":
		return flac.Decode(file)
	case ".ogg":
		return vorbis.Decode(file)
	case ".wav":
		return wav.Decode(file)
	default:
		return nil, beep.Format{}, domain.ErrInvalidFilePath
	}
}

// Unload releases a loaded track without a stop event.
func (e *Engine) Unload(handle domain.TrackHandle) error {
	return e.remove(handle)
}

// Stop stops playback and unloads the track.
func (e *Engine) Stop(handle domain.TrackHandle) error {
	return e.remove(handle)
}

// remove detaches a track from the speaker and closes its decoder.
func (e *Engine) remove(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return domain.ErrNotInitialized
	}

	track, exists := e.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	speaker.Lock()
	track.ctrl.Paused = true
	track.ctrl.Streamer = nil
	speaker.Unlock()

	if err := track.streamer.Close(); err != nil {
		e.logger.Warn("failed to close streamer", slog.Any("error", err))
	}

	delete(e.tracks, handle)
	return nil
}

// Play starts or resumes playback of the track.
func (e *Engine) Play(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return err
	}

	speaker.Lock()
	track.ctrl.Paused = false
	speaker.Unlock()

	if !track.started {
		track.started = true
		speaker.Play(track.volume)
	}

	return nil
}

// Pause pauses playback, preserving the position.
func (e *Engine) Pause(handle domain.TrackHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return err
	}

	speaker.Lock()
	track.ctrl.Paused = true
	speaker.Unlock()

	return nil
}

// Status reports the track's playback state. A track whose samples ran
// out reports StatusStopped.
func (e *Engine) Status(handle domain.TrackHandle) (domain.PlaybackStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return domain.StatusStopped, err
	}

	speaker.Lock()
	position := track.streamer.Position()
	length := track.streamer.Len()
	paused := track.ctrl.Paused
	speaker.Unlock()

	switch {
	case !track.started:
		return domain.StatusStopped, nil
	case position >= length:
		return domain.StatusStopped, nil
	case paused:
		return domain.StatusPaused, nil
	default:
		return domain.StatusPlaying, nil
	}
}

// Position returns the current playback position.
func (e *Engine) Position(handle domain.TrackHandle) (time.Duration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return 0, err
	}

	speaker.Lock()
	position := track.streamer.Position()
	speaker.Unlock()

	return track.format.SampleRate.D(position), nil
}

// Duration returns the total track duration.
func (e *Engine) Duration(handle domain.TrackHandle) (time.Duration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return 0, err
	}

	return track.format.SampleRate.D(track.streamer.Len()), nil
}

// Seek sets the playback position.
func (e *Engine) Seek(handle domain.TrackHandle, position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return err
	}

	target := track.format.SampleRate.N(position)
	if target < 0 || target > track.streamer.Len() {
		return domain.ErrInvalidPosition
	}

	speaker.Lock()
	seekErr := track.streamer.Seek(target)
	speaker.Unlock()

	if seekErr != nil {
		return domain.NewAudioEngineError("seek", "", "failed to seek", seekErr)
	}

	return nil
}

// SetVolume sets the playback volume from 0.0 (silent) to 1.0 (full).
func (e *Engine) SetVolume(handle domain.TrackHandle, volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return err
	}

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	speaker.Lock()
	if volume == 0 {
		track.volume.Silent = true
	} else {
		track.volume.Silent = false
		// beep volume is exponential; unity gain at 0.
		track.volume.Volume = math.Log2(volume)
	}
	speaker.Unlock()

	track.level = volume
	return nil
}

// GetVolume returns the current volume level.
func (e *Engine) GetVolume(handle domain.TrackHandle) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	track, err := e.lookupLocked(handle)
	if err != nil {
		return 0, err
	}

	return track.level, nil
}

// lookupLocked fetches a track by handle. Caller must hold the lock.
func (e *Engine) lookupLocked(handle domain.TrackHandle) (*loadedTrack, error) {
	if !e.initialized {
		return nil, domain.ErrNotInitialized
	}

	track, exists := e.tracks[handle]
	if !exists {
		return nil, domain.ErrInvalidTrackHandle
	}

	return track, nil
}

// Verify that Engine implements the AudioEngine interface
var _ ports.AudioEngine = (*Engine)(nil)
