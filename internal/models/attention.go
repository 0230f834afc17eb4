package models

import "time"

// DateLayout is the calendar-day format used for AttentionRecord.Date.
const DateLayout = "2006-01-02"

// AttentionRecord is the dwell time of one evicted track. Immutable once created.
type AttentionRecord struct {
	ID              string    `json:"id"`
	TrackID         string    `json:"track_id"`
	IdentityID      string    `json:"identity_id,omitempty"`
	IdentityName    string    `json:"identity_name,omitempty"`
	IsIdentified    bool      `json:"is_identified"`
	Gender          string    `json:"gender"`
	AgeGroup        string    `json:"age_group"`
	Age             int       `json:"age"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Date            string    `json:"date"`
}

// SubjectKey groups records of the same person: the identity when known, else the track.
func (r AttentionRecord) SubjectKey() string {
	if r.IdentityID != "" {
		return r.IdentityID
	}
	return r.TrackID
}

// DailySummary aggregates one calendar day of attention records.
type DailySummary struct {
	Date              string  `json:"date"`
	TotalDuration     float64 `json:"total_duration"`
	RecordCount       int     `json:"record_count"`
	AverageDuration   float64 `json:"average_duration"`
	MaxDuration       float64 `json:"max_duration"`
	IdentifiedCount   int     `json:"identified_count"`
	UnidentifiedCount int     `json:"unidentified_count"`
}

// AttentionGetter is one subject's total attention for a day.
type AttentionGetter struct {
	SubjectID     string  `json:"subject_id"`
	IdentityName  string  `json:"identity_name,omitempty"`
	IsIdentified  bool    `json:"is_identified"`
	TotalDuration float64 `json:"total_duration"`
	Sessions      int     `json:"sessions"`
}
