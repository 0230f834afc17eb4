package gallery

import (
	"log/slog"
	"sort"

	"github.com/your-org/attention/internal/embedding"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
)

// Resolve finds the identity whose closest reference embedding is nearest to
// probe. It matches only below the resolve threshold, with confidence 1 - distance.
func (g *Gallery) Resolve(probe []float32) (models.IdentityMatch, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *models.Identity
	bestDist := 0.0
	for _, identity := range g.identities {
		d, ok := minDistance(probe, identity.ReferenceEmbeddings)
		if !ok {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = identity, d
		}
	}
	if best == nil || bestDist >= g.cfg.ResolveThreshold {
		return models.IdentityMatch{}, false
	}
	return newMatch(best, bestDist), true
}

// Nearest ranks identities by their closest reference embedding, without a
// threshold. Ties keep enrollment order.
func (g *Gallery) Nearest(probe []float32, limit int) []models.IdentityMatch {
	g.mu.RLock()
	defer g.mu.RUnlock()

	matches := make([]models.IdentityMatch, 0, len(g.identities))
	for _, identity := range g.identities {
		if d, ok := minDistance(probe, identity.ReferenceEmbeddings); ok {
			matches = append(matches, newMatch(identity, d))
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// minDistance returns the smallest distance from probe to any reference.
// Malformed references are skipped; ok is false when none could be compared.
func minDistance(probe []float32, refs [][]float32) (float64, bool) {
	best, ok := 0.0, false
	for _, ref := range refs {
		d, err := embedding.Distance(probe, ref)
		if err != nil {
			observability.ComparisonFailures.Inc()
			slog.Warn("embedding comparison failed", "error", err)
			continue
		}
		if !ok || d < best {
			best, ok = d, true
		}
	}
	return best, ok
}

func newMatch(identity *models.Identity, distance float64) models.IdentityMatch {
	return models.IdentityMatch{
		IdentityID:  identity.ID,
		DisplayName: identity.DisplayName,
		ExternalRef: identity.ExternalRef,
		Distance:    distance,
		Confidence:  1 - distance,
	}
}
