package transcode

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/sonido-coach/algorithms/chroma"
	"github.com/RyanBlaney/sonido-coach/logging"
)

// SynthConfig holds synthesizer parameters
type SynthConfig struct {
	SampleRate    int     `json:"sample_rate"`
	HarmonicCount int     `json:"harmonic_count"` // partials at 1/n amplitude
	Amplitude     float64 `json:"amplitude"`

	// ADSR envelope
	Attack       time.Duration `json:"attack"`
	Decay        time.Duration `json:"decay"`
	SustainLevel float64       `json:"sustain_level"`
	Release      time.Duration `json:"release"`

	NoiseLevel float64 `json:"noise_level"` // std dev of additive gaussian noise
	Seed       uint64  `json:"seed"`

	// Song rendering
	LeadIn      time.Duration `json:"lead_in"`
	Gap         time.Duration `json:"gap"`
	HoldPadding time.Duration `json:"hold_padding"`
	Tail        time.Duration `json:"tail"`
}

// DefaultSynthConfig returns a plucked-string-like voice with gaps long
// enough for a one second analysis window to clear
func DefaultSynthConfig() *SynthConfig {
	return &SynthConfig{
		SampleRate:    48000,
		HarmonicCount: 5,
		Amplitude:     0.5,
		Attack:        10 * time.Millisecond,
		Decay:         50 * time.Millisecond,
		SustainLevel:  0.8,
		Release:       30 * time.Millisecond,
		NoiseLevel:    1e-4,
		Seed:          1,
		LeadIn:        time.Second,
		Gap:           2 * time.Second,
		HoldPadding:   1500 * time.Millisecond,
		Tail:          2 * time.Second,
	}
}

// ToneSpec is one rendered segment; a zero frequency is a rest
type ToneSpec struct {
	Frequency float64
	Duration  time.Duration
}

// Synthesizer renders harmonic test tones
type Synthesizer struct {
	config *SynthConfig
	noise  distuv.Normal
	logger logging.Logger
}

// NewSynthesizer creates a synthesizer
func NewSynthesizer(config *SynthConfig) (*Synthesizer, error) {
	if config == nil {
		config = DefaultSynthConfig()
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.HarmonicCount < 1 {
		return nil, fmt.Errorf("harmonic count must be at least 1, got %d", config.HarmonicCount)
	}

	return &Synthesizer{
		config: config,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: config.NoiseLevel,
			Src:   rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15),
		},
		logger: logging.WithFields(logging.Fields{
			"component": "synthesizer",
		}),
	}, nil
}

// Tone renders a harmonic tone of the given length with the ADSR envelope applied
func (s *Synthesizer) Tone(freq float64, d time.Duration) []float64 {
	n := s.samples(d)
	out := make([]float64, n)
	if freq <= 0 {
		return out
	}

	sr := float64(s.config.SampleRate)
	nyquist := sr / 2
	for h := 1; h <= s.config.HarmonicCount; h++ {
		f := freq * float64(h)
		if f >= nyquist {
			break
		}
		amp := s.config.Amplitude / float64(h)
		step := 2 * math.Pi * f / sr
		for i := range out {
			out[i] += amp * math.Sin(step*float64(i))
		}
	}

	for i := range out {
		out[i] *= s.envelope(i, n)
	}
	return out
}

// Silence renders d of digital silence
func (s *Synthesizer) Silence(d time.Duration) []float64 {
	return make([]float64, s.samples(d))
}

// Render concatenates the segments and adds noise
func (s *Synthesizer) Render(parts []ToneSpec) *AudioData {
	var pcm []float64
	for _, p := range parts {
		if p.Frequency > 0 {
			pcm = append(pcm, s.Tone(p.Frequency, p.Duration)...)
		} else {
			pcm = append(pcm, s.Silence(p.Duration)...)
		}
	}

	if s.config.NoiseLevel > 0 {
		for i := range pcm {
			pcm[i] += s.noise.Rand()
		}
	}

	now := time.Now()
	return &AudioData{
		PCM:        pcm,
		SampleRate: s.config.SampleRate,
		Channels:   1,
		Duration:   samplesToDuration(len(pcm), s.config.SampleRate),
		Timestamp:  now,
		Metadata: &StreamMetadata{
			Format:     "synth",
			SampleRate: s.config.SampleRate,
			Channels:   1,
			Timestamp:  now,
		},
	}
}

// NoteEvent is a named note held for Seconds
type NoteEvent struct {
	Note    string
	Seconds float64
}

// RenderNotes plays each note for its length plus HoldPadding, separated by
// Gap, so a listener that needs the full length can match every note
func (s *Synthesizer) RenderNotes(notes []NoteEvent, concertPitch float64) (*AudioData, error) {
	parts := []ToneSpec{{Duration: s.config.LeadIn}}
	for _, n := range notes {
		freq, err := chroma.NoteFrequency(n.Note, concertPitch)
		if err != nil {
			return nil, fmt.Errorf("failed to render note %q: %w", n.Note, err)
		}
		hold := time.Duration(n.Seconds*float64(time.Second)) + s.config.HoldPadding
		parts = append(parts,
			ToneSpec{Frequency: freq, Duration: hold},
			ToneSpec{Duration: s.config.Gap},
		)
	}
	parts = append(parts, ToneSpec{Duration: s.config.Tail})

	data := s.Render(parts)
	s.logger.Debug("Rendered notes", logging.Fields{
		"notes":    len(notes),
		"duration": data.Duration.String(),
	})
	return data, nil
}

func (s *Synthesizer) samples(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Seconds() * float64(s.config.SampleRate))
}

// envelope returns the ADSR gain of sample i in a tone of n samples
func (s *Synthesizer) envelope(i, n int) float64 {
	attack := s.samples(s.config.Attack)
	decay := s.samples(s.config.Decay)
	release := min(s.samples(s.config.Release), n)
	sustain := s.config.SustainLevel

	var gain float64
	switch {
	case i < attack:
		gain = float64(i) / float64(attack)
	case i < attack+decay:
		gain = 1 - (1-sustain)*float64(i-attack)/float64(decay)
	default:
		gain = sustain
	}

	if fromEnd := n - i; fromEnd <= release {
		gain *= float64(fromEnd-1) / float64(release)
	}
	return gain
}
