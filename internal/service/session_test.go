package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/logger"
)

func newTestSession(source domain.SourceType) *Session {
	return NewSession(logger.NewTestLogger(), source, domain.SourceSettings{Volume: 0.8})
}

func localTracks(ids ...string) []domain.Track {
	tracks := make([]domain.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, domain.Track{
			ID:     id,
			Source: domain.SourceLocal,
			Title:  "Track " + id,
			Path:   "/music/" + id + ".mp3",
		})
	}
	return tracks
}

func TestSession_LoadTracks_RoundTrip(t *testing.T) {
	session := newTestSession(domain.SourceLocal)

	loaded := localTracks("a", "b", "c")
	session.LoadTracks(loaded)

	got := session.Tracks()
	require.Len(t, got, 3)
	for i := range loaded {
		assert.Equal(t, loaded[i].ID, got[i].ID)
	}
	assert.Equal(t, 0, session.CurrentIndex())
	assert.Equal(t, time.Duration(0), session.SavedProgress())
}

func TestSession_LoadTracks_ResetsCursorAndProgress(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a", "b", "c"))

	require.NoError(t, session.SelectIndex(2))
	session.Pause(42 * time.Second)

	session.LoadTracks(localTracks("x", "y"))

	assert.Equal(t, 0, session.CurrentIndex())
	assert.Equal(t, time.Duration(0), session.SavedProgress())
}

func TestSession_AddTrack_Deduplicates(t *testing.T) {
	session := newTestSession(domain.SourceYouTube)

	track := localTracks("a")[0]
	require.NoError(t, session.AddTrack(track))

	err := session.AddTrack(track)
	assert.ErrorIs(t, err, domain.ErrDuplicateTrack)
	assert.Equal(t, 1, session.Count())
}

func TestSession_RemoveTrack_ClampsCursor(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a", "b", "c"))

	// Select the last track, then remove it.
	require.NoError(t, session.SelectIndex(2))
	require.NoError(t, session.RemoveTrack("c"))

	assert.Equal(t, 1, session.CurrentIndex())
	assert.Equal(t, 2, session.Count())

	// Removing a track before the cursor shifts the cursor with it.
	require.NoError(t, session.RemoveTrack("a"))
	assert.Equal(t, 0, session.CurrentIndex())

	current, err := session.CurrentTrack()
	require.NoError(t, err)
	assert.Equal(t, "b", current.ID)
}

func TestSession_RemoveTrack_NotFound(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a"))

	err := session.RemoveTrack("missing")
	assert.ErrorIs(t, err, domain.ErrTrackNotFound)
}

func TestSession_SelectIndex_OutOfRange(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a", "b"))

	assert.ErrorIs(t, session.SelectIndex(-1), domain.ErrInvalidIndex)
	assert.ErrorIs(t, session.SelectIndex(2), domain.ErrInvalidIndex)

	// Failed selection must not mutate state.
	assert.Equal(t, 0, session.CurrentIndex())
	assert.False(t, session.HasEverPlayed())
}

func TestSession_SelectIndex_MarksPlayedAndResetsProgress(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a", "b"))
	session.Pause(10 * time.Second)

	require.NoError(t, session.SelectIndex(1))

	assert.Equal(t, 1, session.CurrentIndex())
	assert.Equal(t, time.Duration(0), session.SavedProgress())
	assert.True(t, session.HasEverPlayed())
}

func TestSession_NextPrevious_WrapAround(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a", "b", "c"))

	require.NoError(t, session.SelectIndex(2))
	require.NoError(t, session.Next())
	assert.Equal(t, 0, session.CurrentIndex())

	require.NoError(t, session.Previous())
	assert.Equal(t, 2, session.CurrentIndex())
}

func TestSession_Next_EmptySession(t *testing.T) {
	session := newTestSession(domain.SourceLocal)

	assert.ErrorIs(t, session.Next(), domain.ErrSessionEmpty)
	assert.ErrorIs(t, session.Previous(), domain.ErrSessionEmpty)
}

func TestSession_PauseResume_Bookkeeping(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a"))

	assert.True(t, session.IsPaused())

	session.Resume()
	assert.False(t, session.IsPaused())
	assert.True(t, session.HasEverPlayed())

	session.Pause(90 * time.Second)
	assert.True(t, session.IsPaused())
	assert.Equal(t, 90*time.Second, session.SavedProgress())
}

func TestSession_VolumeAndRepeat(t *testing.T) {
	session := newTestSession(domain.SourceLocal)

	assert.InDelta(t, 0.8, session.Volume(), 0.001)

	require.NoError(t, session.SetVolume(0.5))
	assert.InDelta(t, 0.5, session.Volume(), 0.001)

	assert.ErrorIs(t, session.SetVolume(1.5), domain.ErrInvalidVolume)
	assert.InDelta(t, 0.5, session.Volume(), 0.001)

	session.SetRepeat(domain.RepeatAll)
	assert.Equal(t, domain.RepeatAll, session.Repeat())
}

func TestSession_Clear(t *testing.T) {
	session := newTestSession(domain.SourceLocal)
	session.LoadTracks(localTracks("a", "b"))
	require.NoError(t, session.SelectIndex(1))

	session.Clear()

	assert.Equal(t, 0, session.Count())
	assert.Equal(t, 0, session.CurrentIndex())
	assert.True(t, session.IsPaused())

	_, err := session.CurrentTrack()
	assert.ErrorIs(t, err, domain.ErrSessionEmpty)
}
