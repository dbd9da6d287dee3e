package transcode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-coach/logging"
)

// ErrInvalidWAV is returned for input that is not a PCM WAV file
var ErrInvalidWAV = errors.New("invalid WAV file")

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64       `json:"-"` // mono samples in [-1, 1]
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"` // channels of the source before downmix
	Duration   time.Duration   `json:"duration"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   *StreamMetadata `json:"metadata,omitempty"`
}

// StreamMetadata represents metadata about the audio file
type StreamMetadata struct {
	Path       string    `json:"path,omitempty"`
	Format     string    `json:"format"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Channels   int       `json:"channels,omitempty"`
	BitDepth   int       `json:"bit_depth,omitempty"`
	Title      string    `json:"title,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	MaxDuration time.Duration `json:"max_duration"` // 0 keeps everything
	// Scale so the loudest sample reaches PeakLevel
	EnableNormalization bool    `json:"enable_normalization"`
	PeakLevel           float64 `json:"peak_level"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		MaxDuration:         0,
		EnableNormalization: false,
		PeakLevel:           0.9,
	}
}

// Decoder decodes WAV audio to mono float64 PCM
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "wav_decoder",
		}),
	}
}

// DecodeFile decodes a WAV file and returns PCM data
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	data, err := d.DecodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	data.Metadata.Path = filename
	return data, nil
}

// DecodeReader decodes WAV audio from a seekable reader
func (d *Decoder) DecodeReader(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	sampleRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidWAV, sampleRate, channels)
	}

	pcm := downmix(buf, channels, bitDepth)

	if d.config.MaxDuration > 0 {
		maxSamples := int(d.config.MaxDuration.Seconds() * float64(sampleRate))
		if maxSamples < len(pcm) {
			pcm = pcm[:maxSamples]
		}
	}
	if d.config.EnableNormalization {
		normalizePeak(pcm, d.config.PeakLevel)
	}

	now := time.Now()
	d.logger.Debug("WAV decoded", logging.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
		"samples":     len(pcm),
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   samplesToDuration(len(pcm), sampleRate),
		Timestamp:  now,
		Metadata: &StreamMetadata{
			Format:     "wav",
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   bitDepth,
			Timestamp:  now,
		},
	}, nil
}

// GetConfig returns decoder configuration information
func (d *Decoder) GetConfig() map[string]any {
	return map[string]any{
		"max_duration":         d.config.MaxDuration,
		"enable_normalization": d.config.EnableNormalization,
		"peak_level":           d.config.PeakLevel,
	}
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative")
	}
	if d.config.EnableNormalization && (d.config.PeakLevel <= 0 || d.config.PeakLevel > 1) {
		return fmt.Errorf("peak level must be in (0, 1], got %v", d.config.PeakLevel)
	}
	return nil
}

// EncodeFile writes mono audio as 16-bit PCM WAV
func EncodeFile(filename string, data *AudioData) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}

	if err := Encode(f, data, 16); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes mono audio as PCM WAV with the given bit depth
func Encode(w io.WriteSeeker, data *AudioData, bitDepth int) error {
	if data == nil || data.SampleRate <= 0 {
		return fmt.Errorf("audio data needs a positive sample rate")
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	full := fullScale(bitDepth)
	ints := make([]int, len(data.PCM))
	for i, v := range data.PCM {
		v = math.Max(-1, math.Min(1, v))
		ints[i] = int(math.Round(v * (full - 1)))
		if bitDepth == 8 {
			ints[i] += 128
		}
	}

	enc := wav.NewEncoder(w, data.SampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: data.SampleRate},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV: %w", err)
	}
	return nil
}

// downmix averages interleaved channels and scales to [-1, 1]
func downmix(buf *audio.IntBuffer, channels, bitDepth int) []float64 {
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	full := fullScale(bitDepth)

	for i := range frames {
		sum := 0.0
		for c := range channels {
			s := buf.Data[i*channels+c]
			if bitDepth == 8 {
				s -= 128
			}
			sum += float64(s)
		}
		out[i] = sum / float64(channels) / full
	}
	return out
}

func fullScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return math.Ldexp(1, bitDepth-1)
}

func normalizePeak(pcm []float64, level float64) {
	peak := 0.0
	for _, v := range pcm {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return
	}
	scale := level / peak
	for i := range pcm {
		pcm[i] *= scale
	}
}

func samplesToDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}
