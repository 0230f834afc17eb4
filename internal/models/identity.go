package models

import "time"

// Identity is an enrolled person with one or more reference embeddings.
// AverageEmbedding is always the component-wise mean of ReferenceEmbeddings.
type Identity struct {
	ID                  string      `json:"id"`
	DisplayName         string      `json:"display_name"`
	ExternalRef         string      `json:"external_ref"`
	ReferenceEmbeddings [][]float32 `json:"reference_embeddings"`
	AverageEmbedding    []float32   `json:"average_embedding"`
	EnrolledAt          time.Time   `json:"enrolled_at"`
	LastSeenAt          *time.Time  `json:"last_seen_at,omitempty"`
	BestPortraitRef     string      `json:"best_portrait_ref,omitempty"`
	BestQuality         float64     `json:"best_quality,omitempty"`
}

// Clone returns a deep copy of the identity.
func (i Identity) Clone() Identity {
	refs := make([][]float32, len(i.ReferenceEmbeddings))
	for n, ref := range i.ReferenceEmbeddings {
		refs[n] = append([]float32(nil), ref...)
	}
	i.ReferenceEmbeddings = refs
	i.AverageEmbedding = append([]float32(nil), i.AverageEmbedding...)
	if i.LastSeenAt != nil {
		seen := *i.LastSeenAt
		i.LastSeenAt = &seen
	}
	return i
}

// Capture is one enrollment sample submitted by the admin UI.
type Capture struct {
	Embedding   []float32 `json:"embedding"`
	Quality     float64   `json:"quality"`
	PortraitRef string    `json:"portrait_ref,omitempty"`
}

// IdentityMatch is the result of resolving a probe embedding against the gallery.
type IdentityMatch struct {
	IdentityID  string  `json:"identity_id"`
	DisplayName string  `json:"display_name"`
	ExternalRef string  `json:"external_ref"`
	Distance    float64 `json:"distance"`
	Confidence  float64 `json:"confidence"`
}
