package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv
const (
	EnvSampleRate         = "SONIDO_SAMPLE_RATE"
	EnvWindowSize         = "SONIDO_WINDOW_SIZE"
	EnvHopSize            = "SONIDO_HOP_SIZE"
	EnvNumHPS             = "SONIDO_NUM_HPS"
	EnvPowerThreshold     = "SONIDO_POWER_THRESH"
	EnvWhiteNoiseThresh   = "SONIDO_WHITE_NOISE_THRESH"
	EnvConcertPitch       = "SONIDO_CONCERT_PITCH"
	EnvStabilityFrames    = "SONIDO_STABILITY_FRAMES"
	EnvMinSilence         = "SONIDO_MIN_SILENCE"
	EnvMatchDelay         = "SONIDO_MATCH_DELAY"
	EnvDurationMultiplier = "SONIDO_DURATION_MULTIPLIER"
)

// ApplyEnv overrides fields from SONIDO_* environment variables.
// Unset or unparsable variables leave the field unchanged.
func (c *SessionConfig) ApplyEnv() {
	c.SampleRate = EnvIntOr(EnvSampleRate, c.SampleRate)
	c.WindowSize = EnvIntOr(EnvWindowSize, c.WindowSize)
	c.HopSize = EnvIntOr(EnvHopSize, c.HopSize)
	c.Analysis.NumHPS = EnvIntOr(EnvNumHPS, c.Analysis.NumHPS)
	c.Analysis.PowerThreshold = EnvFloatOr(EnvPowerThreshold, c.Analysis.PowerThreshold)
	c.Analysis.WhiteNoiseThresh = EnvFloatOr(EnvWhiteNoiseThresh, c.Analysis.WhiteNoiseThresh)
	c.Analysis.ConcertPitch = EnvFloatOr(EnvConcertPitch, c.Analysis.ConcertPitch)
	c.StabilityFrames = EnvIntOr(EnvStabilityFrames, c.StabilityFrames)
	c.MinSilence = EnvFloatOr(EnvMinSilence, c.MinSilence)
	c.MatchDelay = EnvFloatOr(EnvMatchDelay, c.MatchDelay)
	c.DurationMultiplier = EnvFloatOr(EnvDurationMultiplier, c.DurationMultiplier)
}

// EnvOr returns the trimmed env value or def when empty.
func EnvOr(key, def string) string {
	v := strings.TrimSpace(strings.Trim(os.Getenv(key), `"`))
	if v == "" {
		return def
	}
	return v
}

// EnvIntOr returns the parsed int env value or def on empty/parse failure.
func EnvIntOr(key string, def int) int {
	v := EnvOr(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvFloatOr returns the parsed float env value or def on empty/parse failure.
func EnvFloatOr(key string, def float64) float64 {
	v := EnvOr(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
