// Package vecmath provides pure helpers for sparse topic→weight vectors.
// Vectors are plain map[string]float64 values; every function returns a new
// map and never mutates its inputs.
package vecmath

import "math"

// Vector is a sparse mapping from lowercased topic to weight.
type Vector = map[string]float64

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 restricts v to the unit interval.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Cosine computes the cosine similarity between two sparse vectors.
// Returns 0 when either vector is empty or has zero magnitude.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// NormalizeL1 returns a copy of v scaled so its values sum to 1.
// Negative and non-finite weights are dropped before scaling. An empty or
// all-zero input yields an empty vector.
func NormalizeL1(v Vector) Vector {
	cleaned := make(Vector, len(v))
	var sum float64
	for k, val := range v {
		if val <= 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			continue
		}
		cleaned[k] = val
		sum += val
	}
	if sum == 0 {
		return Vector{}
	}
	for k := range cleaned {
		cleaned[k] /= sum
	}
	return cleaned
}

// Merge returns a copy of dst with each entry of src added at the given
// scale. Entries are not clamped; callers clamp at their own boundary.
func Merge(dst, src Vector, scale float64) Vector {
	out := make(Vector, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] += v * scale
	}
	return out
}
