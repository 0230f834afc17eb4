package gallery

import (
	"encoding/json"
	"fmt"

	"github.com/your-org/attention/internal/embedding"
	"github.com/your-org/attention/internal/models"
)

// storedIdentity accepts both the current schema and the legacy one, which
// held a single "embedding" and a "name".
type storedIdentity struct {
	models.Identity
	Name      string    `json:"name,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Encode serializes identities as a JSON array.
func Encode(identities []models.Identity) ([]byte, error) {
	if identities == nil {
		identities = []models.Identity{}
	}
	data, err := json.Marshal(identities)
	if err != nil {
		return nil, fmt.Errorf("encode gallery: %w", err)
	}
	return data, nil
}

// Decode parses a gallery snapshot, migrating legacy single-embedding records.
func Decode(data []byte) ([]models.Identity, error) {
	var stored []storedIdentity
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode gallery: %w", err)
	}

	identities := make([]models.Identity, 0, len(stored))
	for _, s := range stored {
		identity := s.Identity
		if identity.DisplayName == "" {
			identity.DisplayName = s.Name
		}
		if len(identity.ReferenceEmbeddings) == 0 && len(s.Embedding) > 0 {
			identity.ReferenceEmbeddings = [][]float32{s.Embedding}
			identity.AverageEmbedding = append([]float32(nil), s.Embedding...)
		}
		if len(identity.AverageEmbedding) == 0 && len(identity.ReferenceEmbeddings) > 0 {
			avg, err := embedding.Mean(identity.ReferenceEmbeddings)
			if err != nil {
				return nil, fmt.Errorf("decode gallery: identity %s: %w", identity.ID, err)
			}
			identity.AverageEmbedding = avg
		}
		identities = append(identities, identity)
	}
	return identities, nil
}
