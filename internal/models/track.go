package models

import "time"

// Track is a provisional identity for a face that stays continuously detectable.
//
// TrackID is either a generated opaque id (unidentified) or the matched
// Identity.ID (identified) for the duration of one continuous presence.
type Track struct {
	TrackID      string      `json:"track_id"`
	Embedding    []float32   `json:"-"`
	FirstSeenAt  time.Time   `json:"first_seen_at"`
	LastSeenAt   time.Time   `json:"last_seen_at"`
	IdentityID   string      `json:"identity_id,omitempty"`
	IdentityName string      `json:"identity_name,omitempty"`
	IsIdentified bool        `json:"is_identified"`
	Confidence   float32     `json:"confidence,omitempty"`
	Gender       string      `json:"gender"`
	AgeGroup     string      `json:"age_group"`
	Age          int         `json:"age"`
	BoundingBox  BoundingBox `json:"bounding_box"`
}

// Duration is how long the track has been continuously present.
func (t Track) Duration() time.Duration {
	return t.LastSeenAt.Sub(t.FirstSeenAt)
}

// Clone returns a copy that shares no memory with t.
func (t Track) Clone() Track {
	if t.Embedding != nil {
		emb := make([]float32, len(t.Embedding))
		copy(emb, t.Embedding)
		t.Embedding = emb
	}
	return t
}

// AgeGroup buckets an estimated age for reporting.
func AgeGroup(age int) string {
	switch {
	case age <= 0:
		return "unknown"
	case age < 13:
		return "child"
	case age < 20:
		return "teen"
	case age < 30:
		return "young_adult"
	case age < 45:
		return "adult"
	case age < 60:
		return "middle_aged"
	default:
		return "senior"
	}
}
