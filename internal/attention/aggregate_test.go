package attention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/attention/internal/models"
)

func rec(track, identity string, seconds float64, date string) models.AttentionRecord {
	return models.AttentionRecord{
		TrackID:         track,
		IdentityID:      identity,
		IsIdentified:    identity != "",
		DurationSeconds: seconds,
		Date:            date,
	}
}

func TestDailySummary(t *testing.T) {
	records := []models.AttentionRecord{
		rec("t1", "", 4, "2026-03-01"),
		rec("id-1", "id-1", 10, "2026-03-01"),
		rec("t2", "", 7, "2026-02-28"),
		rec("t3", "", 1, "2026-03-01"),
	}

	t.Run("matching day", func(t *testing.T) {
		s := DailySummary(records, "2026-03-01")
		assert.Equal(t, models.DailySummary{
			Date:              "2026-03-01",
			TotalDuration:     15,
			RecordCount:       3,
			AverageDuration:   5,
			MaxDuration:       10,
			IdentifiedCount:   1,
			UnidentifiedCount: 2,
		}, s)
	})

	t.Run("no records", func(t *testing.T) {
		s := DailySummary(records, "2099-01-01")
		assert.Equal(t, models.DailySummary{Date: "2099-01-01"}, s)
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Zero(t, DailySummary(nil, "2099-01-01").RecordCount)
	})
}

func TestTopAttentionGetters(t *testing.T) {
	day := "2026-03-01"

	t.Run("ties keep insertion order", func(t *testing.T) {
		records := []models.AttentionRecord{
			rec("a", "", 5, day),
			rec("b", "", 5, day),
			rec("c", "", 10, day),
		}
		got := TopAttentionGetters(records, day, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "c", got[0].SubjectID)
		assert.Equal(t, 10.0, got[0].TotalDuration)
		assert.Equal(t, "a", got[1].SubjectID)
	})

	t.Run("sessions group by identity", func(t *testing.T) {
		records := []models.AttentionRecord{
			rec("id-1", "id-1", 3, day),
			rec("t9", "", 4, day),
			rec("id-1", "id-1", 2, day),
			rec("id-1", "id-1", 9, "2026-02-01"),
		}
		got := TopAttentionGetters(records, day, 0)
		require.Len(t, got, 2)
		assert.Equal(t, models.AttentionGetter{SubjectID: "id-1", IsIdentified: true, TotalDuration: 5, Sessions: 2}, got[0])
		assert.Equal(t, "t9", got[1].SubjectID)
	})

	t.Run("no records", func(t *testing.T) {
		assert.Empty(t, TopAttentionGetters(nil, day, 3))
	})
}

func TestRecordsForIdentity(t *testing.T) {
	records := []models.AttentionRecord{
		rec("id-1", "id-1", 3, "2026-03-02"),
		rec("t1", "", 4, "2026-03-02"),
		rec("id-2", "id-2", 1, "2026-03-01"),
		rec("id-1", "id-1", 8, "2026-03-01"),
	}

	got := RecordsForIdentity(records, "id-1")
	require.Len(t, got, 2)
	assert.Equal(t, 3.0, got[0].DurationSeconds)
	assert.Equal(t, 8.0, got[1].DurationSeconds)
	assert.Empty(t, RecordsForIdentity(records, ""))
}

func TestDates(t *testing.T) {
	records := []models.AttentionRecord{
		rec("a", "", 1, "2026-03-01"),
		rec("b", "", 1, "2026-03-02"),
		rec("c", "", 1, "2026-03-01"),
		rec("d", "", 1, "2025-12-31"),
	}
	assert.Equal(t, []string{"2026-03-02", "2026-03-01", "2025-12-31"}, Dates(records))
}
