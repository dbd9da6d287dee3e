// Package capture reads live audio from a PortAudio input device.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/sonido-coach/logging"
)

var (
	ErrDeviceNotFound = errors.New("input device not found")
	ErrClosed         = errors.New("input closed")
)

// InputConfig selects the device and stream shape
type InputConfig struct {
	// Device is a 1-based device index or a device name prefix; empty picks the default input
	Device     string
	SampleRate int
	// FramesPerBuffer should match the session hop size so every read is one batch
	FramesPerBuffer int
}

// Input is a mono PortAudio capture stream
type Input struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    audio.Float32Buffer
	name   string
	rate   int
	closed bool

	overflows int64
	logger    logging.Logger
}

// Open initializes PortAudio and starts a mono input stream
func Open(cfg InputConfig) (*Input, error) {
	if cfg.SampleRate <= 0 || cfg.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("sample rate and frames per buffer must be positive")
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	info, err := findDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	p := portaudio.HighLatencyParameters(info, nil)
	p.Input.Channels = 1
	p.Output.Channels = 0
	p.SampleRate = float64(cfg.SampleRate)
	p.FramesPerBuffer = cfg.FramesPerBuffer

	buf := audio.Float32Buffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: cfg.SampleRate},
		Data:   make([]float32, cfg.FramesPerBuffer),
	}

	stream, err := portaudio.OpenStream(p, buf.Data)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start input: %w", err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "capture",
		"device":    info.Name,
	})
	logger.Info("Input stream started", logging.Fields{
		"sample_rate":       cfg.SampleRate,
		"frames_per_buffer": cfg.FramesPerBuffer,
	})

	return &Input{
		stream: stream,
		buf:    buf,
		name:   info.Name,
		rate:   cfg.SampleRate,
		logger: logger,
	}, nil
}

func findDevice(id string) (*portaudio.DeviceInfo, error) {
	if id == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input: %v", ErrDeviceNotFound, err)
		}
		return info, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return selectDevice(devices, id)
}

// selectDevice resolves a 1-based index or a name prefix among input-capable devices
func selectDevice(devices []*portaudio.DeviceInfo, id string) (*portaudio.DeviceInfo, error) {
	if i, err := strconv.Atoi(id); err == nil && i > 0 && i <= len(devices) {
		if devices[i-1].MaxInputChannels > 0 {
			return devices[i-1], nil
		}
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.HasPrefix(d.Name, id) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// Name returns the device name
func (in *Input) Name() string { return in.name }

// SampleRate returns the stream sample rate
func (in *Input) SampleRate() int { return in.rate }

// Overflows returns how many reads reported dropped input
func (in *Input) Overflows() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.overflows
}

// ReadBatch blocks for one buffer of input and copies it into dst.
// Input overflows are counted and the (partial) buffer is still delivered.
func (in *Input) ReadBatch(ctx context.Context, dst []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return 0, ErrClosed
	}

	if err := in.stream.Read(); err != nil {
		if err != portaudio.InputOverflowed {
			return 0, fmt.Errorf("read input: %w", err)
		}
		in.overflows++
		in.logger.Debug("Input overflowed", logging.Fields{"overflows": in.overflows})
	}

	n := min(len(dst), len(in.buf.Data))
	for i := range n {
		dst[i] = float64(in.buf.Data[i])
	}
	return n, nil
}

// Close stops the stream and releases PortAudio
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true

	var errs []error
	if err := in.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop input: %w", err))
	}
	if err := in.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close input: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate portaudio: %w", err))
	}
	in.logger.Info("Input stream closed", logging.Fields{"overflows": in.overflows})
	return errors.Join(errs...)
}
