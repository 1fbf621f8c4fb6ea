// Package embedding computes unit-norm speaker embeddings. Every vector
// leaving this package is L2-normalised, so cosine similarity between two
// of them is their dot product.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimension is returned when vectors of different length meet.
	ErrDimension = errors.New("embedding: dimension mismatch")

	// ErrZeroVector is returned when a vector has no direction.
	ErrZeroVector = errors.New("embedding: zero vector")
)

// Vector is a dense embedding.
type Vector []float32

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-norm copy of v.
func Normalize(v []float32) (Vector, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrZeroVector
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Dot returns the dot product of a and b, which equals their cosine
// similarity when both are unit-norm.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimension, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Mean averages vs element-wise and normalises the result.
func Mean(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, errors.New("embedding: mean of no vectors")
	}
	dim := len(vs[0])
	acc := make([]float64, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %d vs %d", ErrDimension, len(v), dim)
		}
		for i, x := range v {
			acc[i] += float64(x)
		}
	}
	mean := make([]float32, dim)
	for i, s := range acc {
		mean[i] = float32(s / float64(len(vs)))
	}
	return Normalize(mean)
}
