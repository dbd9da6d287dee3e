package main

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-coach/capture"
	"github.com/RyanBlaney/sonido-coach/led"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/songs"
	"github.com/RyanBlaney/sonido-coach/trainer"
	"github.com/RyanBlaney/sonido-coach/trainer/config"
	"github.com/RyanBlaney/sonido-coach/transcode"
)

func loadConfig(path string) (config.SessionConfig, error) {
	cfg := config.DefaultSessionConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadSong returns false when no song source was given on the command line
func loadSong(opts options) (trainer.SongData, bool, error) {
	var (
		data trainer.SongData
		err  error
	)
	switch {
	case opts.songPath != "":
		data, err = songs.LoadJSON(opts.songPath)
	case opts.library != "":
		var lib songs.Library
		if lib, err = songs.LoadLibrary(opts.library); err == nil {
			data, err = lib.Get(opts.name)
		}
	case opts.midiPath != "":
		data, err = songs.LoadMIDI(opts.midiPath, opts.track)
	default:
		return data, false, nil
	}
	if err != nil {
		return data, false, err
	}
	return data, true, nil
}

// openSource picks the audio input. A WAV file at another rate rescales the
// analysis window so it still covers the same time span.
func openSource(opts options, cfg *config.SessionConfig, song trainer.SongData) (trainer.AudioSource, error) {
	switch {
	case opts.wavPath != "":
		data, err := transcode.NewDecoder(nil).DecodeFile(opts.wavPath)
		if err != nil {
			return nil, err
		}
		if data.SampleRate != cfg.SampleRate {
			rescale(cfg, data.SampleRate)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
		}
		logging.Info("Reading audio file", logging.Fields{
			"path":        opts.wavPath,
			"sample_rate": data.SampleRate,
			"duration":    data.Duration.String(),
		})
		return transcode.NewBatchSource(data, cfg.HopSize, opts.paced)

	case opts.simulate:
		notes, err := trainer.NormalizeSong(song)
		if err != nil {
			return nil, err
		}
		events := make([]transcode.NoteEvent, len(notes))
		for i, n := range notes {
			events[i] = transcode.NoteEvent{Note: n.Note, Seconds: n.Duration * cfg.DurationMultiplier}
		}

		synthCfg := transcode.DefaultSynthConfig()
		synthCfg.SampleRate = cfg.SampleRate
		synth, err := transcode.NewSynthesizer(synthCfg)
		if err != nil {
			return nil, err
		}
		data, err := synth.RenderNotes(events, cfg.Analysis.ConcertPitch)
		if err != nil {
			return nil, err
		}
		logging.Info("Simulating performance", logging.Fields{
			"notes":    len(events),
			"duration": data.Duration.String(),
		})
		return transcode.NewBatchSource(data, cfg.HopSize, opts.paced)

	default:
		in, err := capture.Open(capture.InputConfig{
			Device:          opts.device,
			SampleRate:      cfg.SampleRate,
			FramesPerBuffer: cfg.HopSize,
		})
		if err != nil {
			return nil, err
		}
		logging.Info("Capturing audio", logging.Fields{
			"device":      in.Name(),
			"sample_rate": in.SampleRate(),
		})
		return in, nil
	}
}

func rescale(cfg *config.SessionConfig, rate int) {
	ratio := float64(rate) / float64(cfg.SampleRate)
	logging.Warn("File sample rate differs from config, rescaling window", logging.Fields{
		"config_rate": cfg.SampleRate,
		"file_rate":   rate,
	})
	cfg.SampleRate = rate
	cfg.WindowSize = max(2, int(float64(cfg.WindowSize)*ratio))
	cfg.HopSize = max(1, min(cfg.WindowSize, int(float64(cfg.HopSize)*ratio)))
}

// ledOutput owns the LED chain: strip frames go to the serial port, or to a
// recorder that logs them when no port is configured
type ledOutput struct {
	controller trainer.LEDController
	strip      *led.Strip
	async      *led.Async
	port       *led.SerialPort
}

func openLEDs(opts options) (*ledOutput, error) {
	out := &ledOutput{}
	if opts.serialPort == "" {
		logging.Info("No LED serial device, frames are only logged")
		strip, err := led.NewStrip(led.NewRecorder(logging.GetGlobalLogger()), led.DefaultStripConfig())
		if err != nil {
			return nil, err
		}
		out.strip = strip
		out.controller = strip
		return out, nil
	}

	port, err := led.OpenSerial(opts.serialPort, opts.baud)
	if err != nil {
		return nil, err
	}
	strip, err := led.NewStrip(port, led.DefaultStripConfig())
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	out.port = port
	out.strip = strip
	out.async = led.NewAsync(strip, led.DefaultQueueSize)
	out.controller = out.async
	return out, nil
}

// Close drains queued LED commands, blanks the strip and releases the port
func (o *ledOutput) Close() error {
	var errs []error
	if o.async != nil {
		errs = append(errs, o.async.Close())
		if d := o.async.Dropped(); d > 0 {
			logging.Warn("LED commands dropped", logging.Fields{"dropped": d})
		}
	}
	if o.strip != nil {
		errs = append(errs, o.strip.Wipe())
	}
	if o.port != nil {
		errs = append(errs, o.port.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to shut down LEDs: %w", err)
	}
	return nil
}
