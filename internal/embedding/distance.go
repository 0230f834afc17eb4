// Package embedding compares and averages face embedding vectors.
package embedding

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrMalformed is returned when two embeddings cannot be compared.
var ErrMalformed = errors.New("malformed embedding")

// Distance returns the Euclidean distance between two embeddings.
func Distance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrMalformed)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: length %d vs %d", ErrMalformed, len(a), len(b))
	}
	d := floats.Distance(widen(a), widen(b), 2)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: non-finite component", ErrMalformed)
	}
	return d, nil
}

// Mean returns the component-wise arithmetic mean of equally sized embeddings.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors", ErrMalformed)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformed)
	}

	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d", ErrMalformed, i, len(v), dim)
		}
		floats.Add(sum, widen(v))
	}
	floats.Scale(1/float64(len(vectors)), sum)

	mean := make([]float32, dim)
	for i, x := range sum {
		mean[i] = float32(x)
	}
	return mean, nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
