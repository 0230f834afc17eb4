package attention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/attention/internal/models"
)

func TestRecorderMinimumDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	short := models.Track{TrackID: "short", FirstSeenAt: start, LastSeenAt: start.Add(900 * time.Millisecond)}
	exact := models.Track{
		TrackID:      "exact",
		FirstSeenAt:  start,
		LastSeenAt:   start.Add(time.Second),
		IdentityID:   "id-7",
		IdentityName: "Ana",
		IsIdentified: true,
		Gender:       "female",
		Age:          34,
		AgeGroup:     "adult",
	}

	r := NewRecorder(time.Second, nil)
	r.newID = func() string { return "rec-1" }

	assert.Empty(t, r.Record([]models.Track{short}))

	got := r.Record([]models.Track{short, exact})
	require.Len(t, got, 1)
	out := got[0]
	assert.Equal(t, "rec-1", out.ID)
	assert.Equal(t, "exact", out.TrackID)
	assert.Equal(t, exact.FirstSeenAt, out.StartTime)
	assert.Equal(t, exact.LastSeenAt, out.EndTime)
	assert.Equal(t, out.EndTime.Sub(out.StartTime).Seconds(), out.DurationSeconds)
	assert.Equal(t, "id-7", out.IdentityID)
	assert.True(t, out.IsIdentified)
	assert.Equal(t, "adult", out.AgeGroup)
	assert.Equal(t, "2026-03-01", out.Date)
}

func TestRecorderDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	start := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)
	tr := models.Track{TrackID: "t", FirstSeenAt: start, LastSeenAt: start.Add(5 * time.Second)}

	got := NewRecorder(time.Second, loc).Record([]models.Track{tr})
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-02", got[0].Date)
}
