package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/sonido-coach/companion"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/trainer"
	"github.com/RyanBlaney/sonido-coach/trainer/config"
)

type options struct {
	configPath string
	songPath   string
	library    string
	name       string
	midiPath   string
	track      int
	wavPath    string
	simulate   bool
	device     string
	serialPort string
	baud       int
	listen     string
	logLevel   string
	paced      bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("sonido-coach", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "session config JSON file")
	fs.StringVar(&o.songPath, "song", "", "song JSON file")
	fs.StringVar(&o.library, "library", "", "song library JSON file (use with -name)")
	fs.StringVar(&o.name, "name", "", "song name in the library")
	fs.StringVar(&o.midiPath, "midi", "", "Standard MIDI File to practise")
	fs.IntVar(&o.track, "track", -1, "MIDI track, -1 for the first track with notes")
	fs.StringVar(&o.wavPath, "wav", "", "read audio from a WAV file instead of the microphone")
	fs.BoolVar(&o.simulate, "simulate", false, "synthesise the song and play it to the trainer")
	fs.StringVar(&o.device, "device", "", "input device name prefix or index (default input when empty)")
	fs.StringVar(&o.serialPort, "serial", "", "LED strip serial device (dry run when empty)")
	fs.IntVar(&o.baud, "baud", 115200, "LED strip baud rate")
	fs.StringVar(&o.listen, "listen", "", "companion server address, e.g. :5000 (disabled when empty)")
	fs.StringVar(&o.logLevel, "log-level", config.EnvOr("SONIDO_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.BoolVar(&o.paced, "paced", false, "deliver file and simulated audio in real time")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.library != "" && o.name == "" {
		return o, errors.New("-library needs -name")
	}
	if o.wavPath != "" && o.simulate {
		return o, errors.New("-wav and -simulate are mutually exclusive")
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(logging.ParseLevel(opts.logLevel))
	logging.SetGlobalLogger(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, "sonido-coach failed")
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	song, haveSong, err := loadSong(opts)
	if err != nil {
		return err
	}
	if !haveSong && opts.listen == "" {
		return errors.New("no song: pass -song, -library/-name or -midi, or -listen for the companion app")
	}
	if opts.simulate && !haveSong {
		return errors.New("-simulate needs a song")
	}

	src, err := openSource(opts, &cfg, song)
	if err != nil {
		return err
	}
	defer src.Close()

	leds, err := openLEDs(opts)
	if err != nil {
		return err
	}
	defer leds.Close()

	session, err := trainer.NewSession(cfg, leds.controller)
	if err != nil {
		return err
	}
	if haveSong {
		if err := session.LoadSong(song); err != nil {
			return err
		}
	}

	if opts.listen != "" {
		ccfg := companion.DefaultConfig()
		ccfg.Address = opts.listen
		srv := companion.NewServer(session, ccfg)
		go func() {
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error(err, "Companion server stopped")
			}
		}()
	}

	return practise(ctx, session, src, opts.listen != "")
}

// practise runs songs until the source ends. With the companion app attached
// the trainer waits for the next upload after each song.
func practise(ctx context.Context, session *trainer.Session, src trainer.AudioSource, waitForSongs bool) error {
	for {
		if !session.Loaded() {
			logging.Info("Waiting for a song from the companion app")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-session.SongLoaded():
			}
		}

		if err := session.Run(ctx, src); err != nil {
			return err
		}
		if !session.Finished() {
			// source ended
			reportFeedback(session)
			return nil
		}
		reportFeedback(session)

		if !waitForSongs {
			return nil
		}
		logging.Info("Song complete, waiting for the next one")
		// a signal can be left over from a load that happened mid-song
		for session.Finished() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-session.SongLoaded():
			}
		}
	}
}

func reportFeedback(session *trainer.Session) {
	status := session.Status()
	logging.Info("Practice summary", logging.Fields{
		"title":    status.Title,
		"progress": fmt.Sprintf("%d/%d", status.Cursor, status.Length),
		"finished": status.Finished,
		"overruns": status.Stats.Overruns,
	})
	for _, s := range session.Feedback().Summary() {
		logging.Info("Note feedback", logging.Fields{
			"note":          s.Note,
			"count":         s.Count,
			"correct":       s.Correct,
			"mean_duration": s.MeanDuration,
			"std_duration":  s.StdDuration,
		})
	}
}
