package database

import "math"

// EuclideanDistance computes the L2 distance between two embedding vectors.
// Returns +Inf for mismatched or empty inputs so invalid pairs never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// Similarity converts a Euclidean distance to a 0..1 confidence score.
// Face embedding distances typically fall between 0 and ~1, so the score is
// simply the clamped inverse of the distance.
func Similarity(distance float64) float64 {
	if math.IsInf(distance, 1) {
		return 0
	}
	s := 1.0 - distance
	if s < 0 {
		return 0
	}
	return s
}
