package spectral

import (
	"github.com/RyanBlaney/sonido-coach/algorithms/common"
)

// DefaultOctaveBands are the band edges (Hz) used for the adaptive noise floor
var DefaultOctaveBands = []float64{50, 100, 200, 400, 800, 1600, 3200, 6400, 12800, 25600}

// NoiseSuppressor removes line hum and per-octave noise floor from a
// magnitude spectrum in place.
type NoiseSuppressor struct {
	humCutoff   float64
	octaveBands []float64
	threshold   float64
}

// NewNoiseSuppressor creates a suppressor.
// Bins below humCutoff Hz are zeroed; within each octave band, bins at or
// below threshold times the band RMS are zeroed.
func NewNoiseSuppressor(humCutoff float64, octaveBands []float64, threshold float64) *NoiseSuppressor {
	if len(octaveBands) == 0 {
		octaveBands = DefaultOctaveBands
	}
	bands := make([]float64, len(octaveBands))
	copy(bands, octaveBands)

	return &NoiseSuppressor{
		humCutoff:   humCutoff,
		octaveBands: bands,
		threshold:   threshold,
	}
}

// Suppress applies hum removal then the octave-band noise floor
func (ns *NoiseSuppressor) Suppress(magnitude []float64, binWidth float64) {
	if binWidth <= 0 {
		return
	}
	ns.SuppressMainsHum(magnitude, binWidth)
	ns.SuppressNoiseFloor(magnitude, binWidth)
}

// SuppressMainsHum zeroes every bin below the hum cutoff
func (ns *NoiseSuppressor) SuppressMainsHum(magnitude []float64, binWidth float64) {
	cutoff := min(int(ns.humCutoff/binWidth), len(magnitude))
	for i := range cutoff {
		magnitude[i] = 0
	}
}

// SuppressNoiseFloor zeroes bins that do not rise above the scaled RMS of
// their octave band
func (ns *NoiseSuppressor) SuppressNoiseFloor(magnitude []float64, binWidth float64) {
	for j := 0; j < len(ns.octaveBands)-1; j++ {
		start := int(ns.octaveBands[j] / binWidth)
		end := min(int(ns.octaveBands[j+1]/binWidth), len(magnitude))
		if start >= end {
			continue
		}

		band := magnitude[start:end]
		floor := ns.threshold * common.RMS(band)
		for i, mag := range band {
			if mag <= floor {
				band[i] = 0
			}
		}
	}
}

// GetOctaveBands returns a copy of the band edges
func (ns *NoiseSuppressor) GetOctaveBands() []float64 {
	bands := make([]float64, len(ns.octaveBands))
	copy(bands, ns.octaveBands)
	return bands
}
