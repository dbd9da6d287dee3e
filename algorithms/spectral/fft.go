package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct {
	// No state needed for now
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
// Takes []float64 input and returns []complex128 output
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(x)
}

// MagnitudeSpectrum returns |FFT(x)| for the non-negative frequency half:
// bins 0 .. len(x)/2-1, bin i sitting at i*sampleRate/len(x) Hz.
func (f *FFT) MagnitudeSpectrum(x []float64, dst []float64) []float64 {
	half := len(x) / 2
	if cap(dst) < half {
		dst = make([]float64, half)
	}
	dst = dst[:half]
	if half == 0 {
		return dst
	}

	spectrum := f.Compute(x)
	for i := range half {
		dst[i] = cmplx.Abs(spectrum[i])
	}

	return dst
}

// BinWidth returns the frequency spacing of an FFT of windowSize samples
func BinWidth(sampleRate, windowSize int) float64 {
	if windowSize <= 0 {
		return 0
	}
	return float64(sampleRate) / float64(windowSize)
}
