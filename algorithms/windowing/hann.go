package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"
)

// Hann represents a symmetric Hann window function.
// Coefficients are computed once by go-dsp and reused for every frame.
type Hann struct {
	size         int
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int) *Hann {
	if size < 1 {
		size = 1
	}
	return &Hann{
		size:         size,
		coefficients: window.Hann(size),
	}
}

// Apply multiplies signal by the window into dst and returns dst.
// dst may alias signal. It is reallocated when too small.
func (h *Hann) Apply(signal, dst []float64) ([]float64, error) {
	if len(signal) != h.size {
		return nil, fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}
	if cap(dst) < h.size {
		dst = make([]float64, h.size)
	}
	dst = dst[:h.size]

	for i, c := range h.coefficients {
		dst[i] = signal[i] * c
	}

	return dst, nil
}

// GetCoefficients returns a copy of the window coefficients
func (h *Hann) GetCoefficients() []float64 {
	coeffs := make([]float64, len(h.coefficients))
	copy(coeffs, h.coefficients)
	return coeffs
}

// GetSize returns the window size
func (h *Hann) GetSize() int {
	return h.size
}

// GetType returns the window type
func (h *Hann) GetType() string {
	return "hann"
}
