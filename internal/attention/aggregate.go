package attention

import (
	"sort"

	"github.com/your-org/attention/internal/models"
)

// DailySummary aggregates the records of one calendar day. A day without
// records yields a zero summary.
func DailySummary(records []models.AttentionRecord, date string) models.DailySummary {
	s := models.DailySummary{Date: date}
	for _, r := range records {
		if r.Date != date {
			continue
		}
		s.RecordCount++
		s.TotalDuration += r.DurationSeconds
		if r.DurationSeconds > s.MaxDuration {
			s.MaxDuration = r.DurationSeconds
		}
		if r.IsIdentified {
			s.IdentifiedCount++
		} else {
			s.UnidentifiedCount++
		}
	}
	if s.RecordCount > 0 {
		s.AverageDuration = s.TotalDuration / float64(s.RecordCount)
	}
	return s
}

// TopAttentionGetters ranks the subjects of one day by total duration,
// descending. Equal totals keep the order subjects first appear in records.
// limit <= 0 returns every subject.
func TopAttentionGetters(records []models.AttentionRecord, date string, limit int) []models.AttentionGetter {
	index := make(map[string]int)
	var getters []models.AttentionGetter
	for _, r := range records {
		if r.Date != date {
			continue
		}
		key := r.SubjectKey()
		i, ok := index[key]
		if !ok {
			i = len(getters)
			index[key] = i
			getters = append(getters, models.AttentionGetter{
				SubjectID:    key,
				IdentityName: r.IdentityName,
				IsIdentified: r.IsIdentified,
			})
		}
		getters[i].TotalDuration += r.DurationSeconds
		getters[i].Sessions++
	}

	sort.SliceStable(getters, func(i, j int) bool {
		return getters[i].TotalDuration > getters[j].TotalDuration
	})
	if limit > 0 && len(getters) > limit {
		getters = getters[:limit]
	}
	return getters
}

// RecordsForIdentity returns the records of one identity in history order.
func RecordsForIdentity(records []models.AttentionRecord, identityID string) []models.AttentionRecord {
	var out []models.AttentionRecord
	for _, r := range records {
		if identityID != "" && r.IdentityID == identityID {
			out = append(out, r)
		}
	}
	return out
}

// Dates lists the distinct calendar days present in records, newest first.
func Dates(records []models.AttentionRecord) []string {
	seen := make(map[string]struct{})
	var dates []string
	for _, r := range records {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}
