package attention

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
)

// Recorder converts evicted tracks into attention records. Tracks shorter
// than MinDuration are detection noise and produce nothing.
type Recorder struct {
	MinDuration time.Duration
	// Location decides the calendar day of a record. Defaults to UTC.
	Location *time.Location

	newID func() string
}

func NewRecorder(minDuration time.Duration, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{
		MinDuration: minDuration,
		Location:    loc,
		newID:       func() string { return uuid.NewString() },
	}
}

// Record returns one record per track that lived at least MinDuration, in
// the order the tracks were given.
func (r *Recorder) Record(evicted []models.Track) []models.AttentionRecord {
	var out []models.AttentionRecord
	for _, tr := range evicted {
		d := tr.Duration()
		if d < r.MinDuration {
			continue
		}
		rec := models.AttentionRecord{
			ID:              r.newID(),
			TrackID:         tr.TrackID,
			IdentityID:      tr.IdentityID,
			IdentityName:    tr.IdentityName,
			IsIdentified:    tr.IsIdentified,
			Gender:          tr.Gender,
			AgeGroup:        tr.AgeGroup,
			Age:             tr.Age,
			StartTime:       tr.FirstSeenAt,
			EndTime:         tr.LastSeenAt,
			DurationSeconds: d.Seconds(),
			Date:            tr.FirstSeenAt.In(r.Location).Format(models.DateLayout),
		}
		observability.AttentionRecords.WithLabelValues(boolLabel(rec.IsIdentified)).Inc()
		out = append(out, rec)
	}
	return out
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
