package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
	"github.com/RyanBlaney/sonido-coach/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-coach/algorithms/spectral"
	"github.com/RyanBlaney/sonido-coach/algorithms/windowing"
)

// DetectionKind says whether a frame carried a pitch
type DetectionKind int

const (
	Silent DetectionKind = iota
	Detected
)

func (k DetectionKind) String() string {
	switch k {
	case Silent:
		return "silent"
	case Detected:
		return "detected"
	default:
		return "unknown"
	}
}

// PitchDetectionResult is the outcome of analysing one window
type PitchDetectionResult struct {
	Kind       DetectionKind `json:"kind"`
	Pitch      float64       `json:"pitch"`      // Hz, zero when silent
	Power      float64       `json:"power"`      // ||x||² / N of the raw window
	Resolution float64       `json:"resolution"` // Hz per interpolated HPS bin
	SampleRate int           `json:"sample_rate"`
	WindowSize int           `json:"window_size"`
}

// IsSilent reports whether the frame was gated or carried no spectral energy
func (r PitchDetectionResult) IsSilent() bool {
	return r.Kind == Silent
}

// PitchDetectionParams contains parameters for pitch detection
type PitchDetectionParams struct {
	// Frames with mean power below this are Silent
	PowerThreshold float64 `json:"power_threshold"`

	// Bins below this frequency (Hz) are zeroed
	MainsHumCutoff float64 `json:"mains_hum_cutoff"`

	// Octave band edges (Hz) for the adaptive noise floor
	OctaveBands []float64 `json:"octave_bands"`

	// Bins at or below WhiteNoiseThresh * band RMS are zeroed
	WhiteNoiseThresh float64 `json:"white_noise_thresh"`

	// Interpolation factor and number of harmonic products
	NumHPS int `json:"num_hps"`
}

// DefaultPitchDetectionParams returns the parameters tuned for line-level
// instrument input
func DefaultPitchDetectionParams() PitchDetectionParams {
	bands := make([]float64, len(spectral.DefaultOctaveBands))
	copy(bands, spectral.DefaultOctaveBands)

	return PitchDetectionParams{
		PowerThreshold:   1e-6,
		MainsHumCutoff:   62.0,
		OctaveBands:      bands,
		WhiteNoiseThresh: 0.2,
		NumHPS:           5,
	}
}

// PitchDetector estimates the fundamental of a window with an interpolated
// Harmonic Product Spectrum:
//
//  1. power gate
//  2. Hann window
//  3. half magnitude spectrum
//  4. mains hum and octave-band noise floor suppression
//  5. linear upsampling by NumHPS and L2 normalisation
//  6. harmonic products, peak pick
//
// All buffers are owned by the detector and reused between frames, so a
// PitchDetector must not be shared between goroutines.
//
// References:
// - Noll, A.M. (1969). "Pitch determination of human speech by the harmonic product spectrum"
type PitchDetector struct {
	params PitchDetectionParams

	fft        *spectral.FFT
	suppressor *spectral.NoiseSuppressor
	hps        *harmonic.HarmonicProduct
	window     *windowing.Hann

	windowed  []float64
	magnitude []float64
}

// NewPitchDetector creates a new pitch detector with default parameters
func NewPitchDetector() *PitchDetector {
	return NewPitchDetectorWithParams(DefaultPitchDetectionParams())
}

// NewPitchDetectorWithParams creates a pitch detector with custom parameters
func NewPitchDetectorWithParams(params PitchDetectionParams) *PitchDetector {
	if params.NumHPS < 1 {
		params.NumHPS = 1
	}
	return &PitchDetector{
		params:     params,
		fft:        spectral.NewFFT(),
		suppressor: spectral.NewNoiseSuppressor(params.MainsHumCutoff, params.OctaveBands, params.WhiteNoiseThresh),
		hps:        harmonic.NewHarmonicProduct(params.NumHPS),
	}
}

// Analyze runs the pipeline over one window sampled at sampleRate.
// Degenerate input (empty window, zero-norm spectrum) yields Silent.
func (pd *PitchDetector) Analyze(frame []float64, sampleRate int) PitchDetectionResult {
	n := len(frame)
	result := PitchDetectionResult{
		Kind:       Silent,
		SampleRate: sampleRate,
		WindowSize: n,
	}
	if n < 2 || sampleRate <= 0 {
		return result
	}

	result.Power = common.SignalPower(frame)
	if math.IsNaN(result.Power) || result.Power < pd.params.PowerThreshold {
		return result
	}

	if pd.window == nil || pd.window.GetSize() != n {
		pd.window = windowing.NewHann(n)
	}
	windowed, err := pd.window.Apply(frame, pd.windowed)
	if err != nil {
		return result
	}
	pd.windowed = windowed

	pd.magnitude = pd.fft.MagnitudeSpectrum(pd.windowed, pd.magnitude)

	binWidth := spectral.BinWidth(sampleRate, n)
	pd.suppressor.Suppress(pd.magnitude, binWidth)

	product, ok := pd.hps.ComputeHPS(pd.magnitude)
	if !ok {
		return result
	}

	result.Kind = Detected
	result.Pitch = pd.hps.PeakFrequency(product, sampleRate, n)
	result.Resolution = pd.hps.ResolutionHz(sampleRate, n)
	return result
}

// GetParameters returns the current parameters
func (pd *PitchDetector) GetParameters() PitchDetectionParams {
	return pd.params
}
