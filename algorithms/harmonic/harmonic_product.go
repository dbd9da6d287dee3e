package harmonic

import (
	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// HarmonicProduct implements Harmonic Product Spectrum for F0 estimation.
//
// The magnitude spectrum is first upsampled numHPS times so that every
// harmonic k of a fundamental lands exactly on index k*i of the dense grid,
// then downsampled copies are multiplied into a running product.
//
// References:
// - Schroeder, M.R. (1968). "Period histogram and product spectrum"
// - Noll, A.M. (1969). "Pitch determination of human speech by the harmonic product spectrum"
type HarmonicProduct struct {
	numHPS int

	// scratch buffers reused between frames
	ipol    []float64
	current []float64
	next    []float64
}

// NewHarmonicProduct creates a new harmonic product spectrum analyzer
func NewHarmonicProduct(numHPS int) *HarmonicProduct {
	if numHPS < 1 {
		numHPS = 1
	}
	return &HarmonicProduct{
		numHPS: numHPS,
	}
}

// NumHPS returns the interpolation factor and maximum number of products
func (hp *HarmonicProduct) NumHPS() int {
	return hp.numHPS
}

// ComputeHPS upsamples and L2-normalizes the magnitude spectrum, then folds
// in harmonics 1..numHPS. A product that comes out all-zero stops the
// folding and the previous product is kept.
//
// ok is false when the spectrum carries no energy; the returned slice is
// owned by hp and valid until the next call.
func (hp *HarmonicProduct) ComputeHPS(magnitudeSpectrum []float64) (hps []float64, ok bool) {
	if len(magnitudeSpectrum) == 0 {
		return nil, false
	}

	hp.ipol = common.Upsample(magnitudeSpectrum, hp.numHPS, hp.ipol)
	norm := common.NormalizeL2(hp.ipol)
	if norm == 0 || norm != norm {
		return nil, false
	}

	n := len(hp.ipol)
	hp.current = growTo(hp.current, n)
	copy(hp.current, hp.ipol)
	hp.next = growTo(hp.next, n)

	for harmonic := 1; harmonic <= hp.numHPS; harmonic++ {
		length := (n + harmonic - 1) / harmonic
		product := hp.next[:length]

		for i := range length {
			product[i] = hp.current[i] * hp.ipol[i*harmonic]
		}

		if common.AllZero(product) {
			break
		}

		hp.current, hp.next = product, hp.current[:cap(hp.current)]
	}

	return hp.current, true
}

// PeakFrequency converts the argmax of an HPS produced by ComputeHPS into Hz
func (hp *HarmonicProduct) PeakFrequency(hps []float64, sampleRate, windowSize int) float64 {
	idx := common.ArgMax(hps)
	if idx < 0 || windowSize <= 0 {
		return 0.0
	}
	binWidth := float64(sampleRate) / float64(windowSize)
	return float64(idx) * binWidth / float64(hp.numHPS)
}

// ResolutionHz returns the frequency step of the interpolated grid
func (hp *HarmonicProduct) ResolutionHz(sampleRate, windowSize int) float64 {
	if windowSize <= 0 {
		return 0.0
	}
	return float64(sampleRate) / float64(windowSize) / float64(hp.numHPS)
}

func growTo(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
