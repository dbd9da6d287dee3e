package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid session config")

// AnalysisConfig tunes the pitch detector
type AnalysisConfig struct {
	PowerThreshold   float64   `json:"power_threshold"`    // mean power below which a window is silent
	MainsHumCutoff   float64   `json:"mains_hum_cutoff"`   // Hz
	OctaveBands      []float64 `json:"octave_bands"`       // Hz, strictly increasing
	WhiteNoiseThresh float64   `json:"white_noise_thresh"` // fraction of band RMS
	NumHPS           int       `json:"num_hps"`
	ConcertPitch     float64   `json:"concert_pitch"` // A4 in Hz
}

// NoteTypeThresholds are the minimum durations (seconds) of half and whole notes
type NoteTypeThresholds struct {
	Half  float64 `json:"half"`
	Whole float64 `json:"whole"`
}

// SessionConfig holds everything a practice session needs
type SessionConfig struct {
	SampleRate int            `json:"sample_rate"`
	WindowSize int            `json:"window_size"`
	HopSize    int            `json:"hop_size"`
	Analysis   AnalysisConfig `json:"analysis"`

	// Consecutive agreeing detections before a note is reported
	StabilityFrames int `json:"stability_frames"`

	// Timing, in seconds
	MinSilence float64 `json:"min_silence"`
	MatchDelay float64 `json:"match_delay"`

	// A note counts as held once elapsed >= DurationMultiplier * duration
	DurationMultiplier float64 `json:"duration_multiplier"`

	NoteTypeThresholds NoteTypeThresholds `json:"note_type_thresholds"`

	// Note name to LED index
	LEDMap map[string]int `json:"led_map"`
}

// DefaultLEDMap returns the note to LED index table of the fretboard strip
func DefaultLEDMap() map[string]int {
	return map[string]int{
		"A6": 1, "G5": 2, "F5": 3, "E5": 4, "D5": 5, "C5": 6, "B5": 7, "A5": 8,
		"G4": 9, "F4": 10, "E4": 11, "D4": 12, "C4": 13, "B4": 14, "A4": 15,
		"G3": 16, "F3": 17, "E3": 18, "D3": 19, "C3": 20, "B3": 21, "A3": 22,
	}
}

// DefaultSessionConfig returns the configuration used on the device
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SampleRate: 48000,
		WindowSize: 48000,
		HopSize:    12000,
		Analysis: AnalysisConfig{
			PowerThreshold:   1e-6,
			MainsHumCutoff:   62.0,
			OctaveBands:      []float64{50, 100, 200, 400, 800, 1600, 3200, 6400, 12800, 25600},
			WhiteNoiseThresh: 0.2,
			NumHPS:           5,
			ConcertPitch:     440.0,
		},
		StabilityFrames:    2,
		MinSilence:         0.5,
		MatchDelay:         0,
		DurationMultiplier: 1.0,
		NoteTypeThresholds: NoteTypeThresholds{
			Half:  0.48,
			Whole: 0.96,
		},
		LEDMap: DefaultLEDMap(),
	}
}

// LoadFile reads a JSON config file on top of the defaults.
// Keys missing from the file keep their default values.
func LoadFile(path string) (SessionConfig, error) {
	cfg := DefaultSessionConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the config for values the pipeline cannot run with
func (c SessionConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.WindowSize < 2:
		return fmt.Errorf("%w: window_size must be at least 2, got %d", ErrInvalidConfig, c.WindowSize)
	case c.HopSize <= 0 || c.HopSize > c.WindowSize:
		return fmt.Errorf("%w: hop_size must be in (0, window_size], got %d", ErrInvalidConfig, c.HopSize)
	case c.Analysis.NumHPS < 1:
		return fmt.Errorf("%w: num_hps must be at least 1, got %d", ErrInvalidConfig, c.Analysis.NumHPS)
	case c.Analysis.PowerThreshold < 0:
		return fmt.Errorf("%w: power_threshold must not be negative", ErrInvalidConfig)
	case c.Analysis.WhiteNoiseThresh < 0:
		return fmt.Errorf("%w: white_noise_thresh must not be negative", ErrInvalidConfig)
	case c.Analysis.ConcertPitch <= 0:
		return fmt.Errorf("%w: concert_pitch must be positive", ErrInvalidConfig)
	case c.StabilityFrames < 1:
		return fmt.Errorf("%w: stability_frames must be at least 1, got %d", ErrInvalidConfig, c.StabilityFrames)
	case c.MinSilence < 0 || c.MatchDelay < 0:
		return fmt.Errorf("%w: min_silence and match_delay must not be negative", ErrInvalidConfig)
	case c.DurationMultiplier <= 0:
		return fmt.Errorf("%w: duration_multiplier must be positive", ErrInvalidConfig)
	case c.NoteTypeThresholds.Half <= 0 || c.NoteTypeThresholds.Whole < c.NoteTypeThresholds.Half:
		return fmt.Errorf("%w: note_type_thresholds must satisfy 0 < half <= whole", ErrInvalidConfig)
	}

	bands := c.Analysis.OctaveBands
	for i := 1; i < len(bands); i++ {
		if bands[i] <= bands[i-1] {
			return fmt.Errorf("%w: octave_bands must be strictly increasing", ErrInvalidConfig)
		}
	}

	return nil
}

// HopInterval is the real-time budget of one pipeline pass
func (c SessionConfig) HopInterval() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.HopSize) / float64(c.SampleRate) * float64(time.Second))
}

// MinSilenceDuration returns MinSilence as a time.Duration
func (c SessionConfig) MinSilenceDuration() time.Duration {
	return seconds(c.MinSilence)
}

// MatchDelayDuration returns MatchDelay as a time.Duration
func (c SessionConfig) MatchDelayDuration() time.Duration {
	return seconds(c.MatchDelay)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
