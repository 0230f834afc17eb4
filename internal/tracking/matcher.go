package tracking

import (
	"fmt"
	"log/slog"

	"github.com/your-org/attention/internal/embedding"
	"github.com/your-org/attention/internal/observability"
)

// Matcher pairs the observations of one tick with the active tracks.
//
// Assign returns one entry per observation:
//   - -1: the observation opens a new track;
//   - 0 ≤ r < len(tracks): it continues tracks[r];
//   - r ≥ len(tracks): it continues the track opened earlier in the same
//     tick by observation r-len(tracks).
type Matcher interface {
	Assign(observations, tracks [][]float32) []int
}

// NewMatcher returns the matcher registered under name.
func NewMatcher(name string, threshold float64) (Matcher, error) {
	switch name {
	case "", "greedy":
		return GreedyMatcher{Threshold: threshold}, nil
	case "hungarian":
		return HungarianMatcher{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown matcher %q", name)
	}
}

// GreedyMatcher assigns each observation to the first track, in store order,
// closer than Threshold. It is not globally optimal: a later observation that
// fits a track better never takes it back, and two observations of one tick
// may continue the same track.
type GreedyMatcher struct {
	Threshold float64
}

func (m GreedyMatcher) Assign(observations, tracks [][]float32) []int {
	result := make([]int, len(observations))

	candidates := make([][]float32, len(tracks), len(tracks)+len(observations))
	copy(candidates, tracks)
	// owner[c] is the value reported for candidate c.
	owner := make([]int, len(tracks), len(tracks)+len(observations))
	for i := range owner {
		owner[i] = i
	}

	for i, obs := range observations {
		result[i] = -1
		for c, emb := range candidates {
			d, err := embedding.Distance(obs, emb)
			if err != nil {
				comparisonFailed(err)
				continue
			}
			if d < m.Threshold {
				result[i] = owner[c]
				candidates[c] = obs
				break
			}
		}
		if result[i] == -1 {
			candidates = append(candidates, obs)
			owner = append(owner, len(tracks)+i)
		}
	}
	return result
}

// HungarianMatcher computes a minimum total-distance one-to-one assignment,
// gated at Threshold. Observations of the same tick never merge with each other.
type HungarianMatcher struct {
	Threshold float64
}

func (m HungarianMatcher) Assign(observations, tracks [][]float32) []int {
	if len(observations) == 0 {
		return nil
	}
	cost := make([][]float64, len(observations))
	for i, obs := range observations {
		cost[i] = make([]float64, len(tracks))
		for j, emb := range tracks {
			d, err := embedding.Distance(obs, emb)
			switch {
			case err != nil:
				comparisonFailed(err)
				cost[i][j] = forbidden
			case d < m.Threshold:
				cost[i][j] = d
			default:
				cost[i][j] = forbidden
			}
		}
	}
	return hungarianAssign(cost)
}

func comparisonFailed(err error) {
	observability.ComparisonFailures.Inc()
	slog.Warn("embedding comparison failed", "error", err)
}
