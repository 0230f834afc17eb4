package tracking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/attention/internal/models"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeResolver map[string]models.IdentityMatch

// Resolve keys on the first component so tests can script identities.
func (f fakeResolver) Resolve(probe []float32) (models.IdentityMatch, bool) {
	m, ok := f[fmt.Sprint(probe[0])]
	return m, ok
}

func obs(v ...float32) models.FaceObservation {
	return models.FaceObservation{
		Embedding:      v,
		AgeEstimate:    34,
		GenderEstimate: models.GenderEstimate{Label: "female", Probability: 0.9},
	}
}

func newTestTracker() *Tracker {
	tr := NewTracker(Config{Timeout: 3 * time.Second}, GreedyMatcher{Threshold: 0.5})
	n := 0
	tr.newID = func() string {
		n++
		return fmt.Sprintf("track-%d", n)
	}
	return tr
}

func TestUpdateMergesCloseObservationsInOneTick(t *testing.T) {
	tr := newTestTracker()

	updates := tr.Update(t0, []models.FaceObservation{obs(0, 0), obs(0.3, 0)}, nil)

	require.Len(t, updates, 2)
	assert.True(t, updates[0].IsNew)
	assert.False(t, updates[1].IsNew)
	assert.Equal(t, updates[0].Track.TrackID, updates[1].Track.TrackID)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, []float32{0.3, 0}, tr.Snapshot()[0].Embedding)
}

func TestUpdateOpensSeparateTracksForDistantFaces(t *testing.T) {
	tr := newTestTracker()

	updates := tr.Update(t0, []models.FaceObservation{obs(0, 0), obs(5, 5)}, nil)

	require.Len(t, updates, 2)
	assert.True(t, updates[0].IsNew)
	assert.True(t, updates[1].IsNew)
	assert.Equal(t, 2, tr.Len())
}

func TestUpdateRefreshesExistingTrack(t *testing.T) {
	tr := newTestTracker()
	tr.Update(t0, []models.FaceObservation{obs(1, 1)}, nil)

	later := t0.Add(1500 * time.Millisecond)
	o := obs(1.2, 1)
	o.AgeEstimate = 70
	o.GenderEstimate.Label = "male"
	updates := tr.Update(later, []models.FaceObservation{o}, nil)

	require.Len(t, updates, 1)
	got := updates[0].Track
	assert.False(t, updates[0].IsNew)
	assert.Equal(t, "track-1", got.TrackID)
	assert.Equal(t, t0, got.FirstSeenAt)
	assert.Equal(t, later, got.LastSeenAt)
	assert.Equal(t, []float32{1.2, 1}, got.Embedding)
	assert.Equal(t, "male", got.Gender)
	assert.Equal(t, "senior", got.AgeGroup)
}

func TestGreedyTakesFirstTrackUnderThresholdNotClosest(t *testing.T) {
	tr := newTestTracker()
	tr.Update(t0, []models.FaceObservation{obs(0, 0), obs(0.8, 0)}, nil)
	require.Equal(t, 2, tr.Len())

	// 0.45 from track-1 and 0.35 from track-2: greedy stops at track-1.
	updates := tr.Update(t0.Add(time.Second), []models.FaceObservation{obs(0.45, 0)}, nil)
	require.Len(t, updates, 1)
	assert.Equal(t, "track-1", updates[0].Track.TrackID)
}

func TestHungarianPicksGlobalAssignment(t *testing.T) {
	tr := NewTracker(Config{Timeout: 3 * time.Second}, HungarianMatcher{Threshold: 0.5})
	n := 0
	tr.newID = func() string { n++; return fmt.Sprintf("track-%d", n) }
	tr.Update(t0, []models.FaceObservation{obs(0, 0), obs(0.8, 0)}, nil)

	updates := tr.Update(t0.Add(time.Second), []models.FaceObservation{obs(0.45, 0), obs(0.05, 0)}, nil)
	require.Len(t, updates, 2)
	assert.Equal(t, "track-2", updates[0].Track.TrackID)
	assert.Equal(t, "track-1", updates[1].Track.TrackID)
	assert.Equal(t, 2, tr.Len())
}

func TestUnmatchedObservationResolvesIdentity(t *testing.T) {
	tr := newTestTracker()
	resolver := fakeResolver{"7": {IdentityID: "id-ana", DisplayName: "Ana", Distance: 0.2, Confidence: 0.8}}

	updates := tr.Update(t0, []models.FaceObservation{obs(7, 0)}, resolver)

	require.Len(t, updates, 1)
	got := updates[0].Track
	assert.True(t, updates[0].IsNew)
	assert.Equal(t, "id-ana", got.TrackID)
	assert.Equal(t, "id-ana", got.IdentityID)
	assert.Equal(t, "Ana", got.IdentityName)
	assert.True(t, got.IsIdentified)
	assert.InDelta(t, 0.8, got.Confidence, 1e-6)
}

func TestResolvedIdentityContinuesItsActiveTrack(t *testing.T) {
	tr := newTestTracker()
	resolver := fakeResolver{
		"7":  {IdentityID: "id-ana", DisplayName: "Ana"},
		"20": {IdentityID: "id-ana", DisplayName: "Ana"},
	}
	tr.Update(t0, []models.FaceObservation{obs(7, 0)}, resolver)

	// Too far from the track embedding, but the gallery still knows the face.
	updates := tr.Update(t0.Add(time.Second), []models.FaceObservation{obs(20, 0)}, resolver)

	require.Len(t, updates, 1)
	assert.False(t, updates[0].IsNew)
	assert.Equal(t, "id-ana", updates[0].Track.TrackID)
	assert.Equal(t, t0, updates[0].Track.FirstSeenAt)
	assert.Equal(t, 1, tr.Len())
}

func TestMalformedEmbeddingIsTreatedAsNoMatch(t *testing.T) {
	tr := newTestTracker()
	tr.Update(t0, []models.FaceObservation{obs(0, 0, 0)}, nil)

	updates := tr.Update(t0.Add(time.Second), []models.FaceObservation{obs(0, 0)}, nil)

	require.Len(t, updates, 1)
	assert.True(t, updates[0].IsNew)
	assert.Equal(t, 2, tr.Len())
}

func TestSweepEvictionBoundary(t *testing.T) {
	tr := newTestTracker()
	sweepAt := t0.Add(10 * time.Second)
	tr.Update(sweepAt.Add(-3001*time.Millisecond), []models.FaceObservation{obs(0, 0)}, nil)
	tr.Update(sweepAt.Add(-2999*time.Millisecond), []models.FaceObservation{obs(9, 9)}, nil)

	evicted := tr.Sweep(sweepAt)

	require.Len(t, evicted, 1)
	assert.Equal(t, "track-1", evicted[0].TrackID)
	remaining := tr.Snapshot()
	require.Len(t, remaining, 1)
	assert.Equal(t, "track-2", remaining[0].TrackID)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := newTestTracker()
	tr.Update(t0, []models.FaceObservation{obs(1, 2)}, nil)

	snap := tr.Snapshot()
	snap[0].Embedding[0] = 99
	snap[0].TrackID = "mutated"

	again := tr.Snapshot()
	assert.Equal(t, "track-1", again[0].TrackID)
	assert.Equal(t, float32(1), again[0].Embedding[0])
}

func TestResetDropsTracks(t *testing.T) {
	tr := newTestTracker()
	tr.Update(t0, []models.FaceObservation{obs(1, 2)}, nil)
	tr.Reset()
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Sweep(t0.Add(time.Hour)))
}

func TestNewMatcher(t *testing.T) {
	m, err := NewMatcher("", 0.5)
	require.NoError(t, err)
	assert.IsType(t, GreedyMatcher{}, m)

	m, err = NewMatcher("hungarian", 0.5)
	require.NoError(t, err)
	assert.IsType(t, HungarianMatcher{}, m)

	_, err = NewMatcher("optimal", 0.5)
	assert.Error(t, err)
}
