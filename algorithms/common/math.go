package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector helpers shared by the analysis pipeline, backed by gonum

// SignalPower returns the mean power of a signal: ||x||² / N
func SignalPower(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Dot(data, data) / float64(len(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	return math.Sqrt(SignalPower(data))
}

// NormalizeL2 scales data in place to unit Euclidean norm and returns the
// original norm. Data with zero norm is left untouched.
func NormalizeL2(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	norm := floats.Norm(data, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return norm
	}
	floats.Scale(1/norm, data)
	return norm
}

// ArgMax returns the index of the largest element, or -1 for empty data.
// Ties resolve to the lowest index.
func ArgMax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// AllZero reports whether every element is exactly zero
func AllZero(data []float64) bool {
	for _, v := range data {
		if v != 0 {
			return false
		}
	}
	return true
}
