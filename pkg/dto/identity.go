package dto

import (
	"time"

	"github.com/your-org/attention/internal/models"
)

// CaptureRequest is one reference face. Either Embedding or Image (base64
// encoded JPEG/PNG) must be set; an image is embedded server side.
type CaptureRequest struct {
	Embedding   []float32 `json:"embedding,omitempty"`
	Image       string    `json:"image,omitempty"`
	Quality     float64   `json:"quality"`
	PortraitRef string    `json:"portrait_ref,omitempty"`
}

type EnrollRequest struct {
	DisplayName string           `json:"display_name"`
	ExternalRef string           `json:"external_ref"`
	Captures    []CaptureRequest `json:"captures"`
}

type AugmentRequest struct {
	Captures []CaptureRequest `json:"captures"`
}

type AugmentResponse struct {
	IdentityID     string `json:"identity_id"`
	ReferenceCount int    `json:"reference_count"`
}

// IdentityResponse omits the raw embeddings.
type IdentityResponse struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"display_name"`
	ExternalRef     string     `json:"external_ref"`
	ReferenceCount  int        `json:"reference_count"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	BestPortraitRef string     `json:"best_portrait_ref,omitempty"`
}

func NewIdentityResponse(id models.Identity) IdentityResponse {
	return IdentityResponse{
		ID:              id.ID,
		DisplayName:     id.DisplayName,
		ExternalRef:     id.ExternalRef,
		ReferenceCount:  len(id.ReferenceEmbeddings),
		EnrolledAt:      id.EnrolledAt,
		LastSeenAt:      id.LastSeenAt,
		BestPortraitRef: id.BestPortraitRef,
	}
}

type SearchRequest struct {
	Embedding []float32 `json:"embedding,omitempty"`
	Image     string    `json:"image,omitempty"`
	Limit     int       `json:"limit"`
}

type SearchResponse struct {
	Results []models.IdentityMatch `json:"results"`
	Total   int                    `json:"total"`
	// Source is "index" when served by the vector index, "gallery" otherwise.
	Source string `json:"source"`
}

// ErrorResponse carries the enrollment rejection kind when there is one.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
