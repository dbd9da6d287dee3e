package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-coach/algorithms/common"
	"github.com/RyanBlaney/sonido-coach/algorithms/tonal"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/trainer/config"
)

// AudioSource delivers audio in batches. ReadBatch fills dst and returns the
// number of samples written; io.EOF ends the stream.
type AudioSource interface {
	SampleRate() int
	ReadBatch(ctx context.Context, dst []float64) (int, error)
	Close() error
}

// SessionStats counts what the pipeline has seen
type SessionStats struct {
	Batches  int64         `json:"batches"`
	Silent   int64         `json:"silent"`
	Stable   int64         `json:"stable"`
	Unstable int64         `json:"unstable"`
	Overruns int64         `json:"overruns"` // passes slower than the hop interval
	LastPass time.Duration `json:"last_pass"`
	MaxPass  time.Duration `json:"max_pass"`
}

// SessionStatus is a snapshot for status endpoints
type SessionStatus struct {
	Title     string       `json:"title"`
	Cursor    int          `json:"cursor"`
	Length    int          `json:"length"`
	Finished  bool         `json:"finished"`
	State     State        `json:"state"`
	Expected  string       `json:"expected,omitempty"`
	WrongNote string       `json:"wrong_note,omitempty"`
	LastNote  string       `json:"last_note,omitempty"`
	Stats     SessionStats `json:"stats"`
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionClock sets the clock used by the state machine
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger logging.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session runs the practice pipeline: sample window, pitch detection,
// note stabilisation and the note state machine.
//
// One mutex covers a whole pass, so batches may be pushed from any
// goroutine while status and song changes come from another.
type Session struct {
	mu sync.Mutex

	config     config.SessionConfig
	buffer     *common.SampleBuffer
	detector   *tonal.PitchDetector
	stabilizer *tonal.NoteStabilizer
	song       *Song
	machine    *NoteStateMachine
	feedback   *FeedbackLog
	leds       LEDController

	window    []float64
	stats     SessionStats
	lastNote  string
	listeners []EventListener
	loaded    chan struct{}

	clock  func() time.Time
	logger logging.Logger
}

// NewSession validates the config and builds the pipeline
func NewSession(cfg config.SessionConfig, leds LEDController, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if leds == nil {
		leds = NopLEDController()
	}

	s := &Session{
		config:   cfg,
		buffer:   common.NewSampleBuffer(cfg.WindowSize),
		feedback: NewFeedbackLog(),
		leds:     leds,
		window:   make([]float64, cfg.WindowSize),
		loaded:   make(chan struct{}, 1),
		clock:    time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "session",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.detector = tonal.NewPitchDetectorWithParams(tonal.PitchDetectionParams{
		PowerThreshold:   cfg.Analysis.PowerThreshold,
		MainsHumCutoff:   cfg.Analysis.MainsHumCutoff,
		OctaveBands:      cfg.Analysis.OctaveBands,
		WhiteNoiseThresh: cfg.Analysis.WhiteNoiseThresh,
		NumHPS:           cfg.Analysis.NumHPS,
	})
	s.stabilizer = tonal.NewNoteStabilizer(cfg.StabilityFrames, cfg.Analysis.ConcertPitch)

	ledMap := LEDMap(cfg.LEDMap)
	if len(ledMap) == 0 {
		ledMap = DefaultLEDMap()
	}
	s.song = NewSong(leds, ledMap, cfg.NoteTypeThresholds)
	s.machine = s.newMachine()

	return s, nil
}

func (s *Session) newMachine() *NoteStateMachine {
	sm := NewNoteStateMachine(s.song, s.feedback, StateMachineConfig{
		MinSilence:         s.config.MinSilenceDuration(),
		MatchDelay:         s.config.MatchDelayDuration(),
		DurationMultiplier: s.config.DurationMultiplier,
	}, WithClock(s.clock), WithStateMachineLogger(s.logger.WithFields(logging.Fields{
		"component": "note_state_machine",
	})))

	for _, l := range s.listeners {
		sm.OnEvent(l)
	}
	return sm
}

// LoadSong validates and loads a song, resetting the machine, the
// stabiliser and the feedback log. The session waits for silence before
// the song starts.
func (s *Session) LoadSong(data SongData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.song.SetSong(data); err != nil {
		return err
	}

	s.machine.Reset()
	s.stabilizer.Reset()
	s.feedback.Reset()
	s.lastNote = ""

	s.logger.Info("Session song loaded", logging.Fields{
		"title": data.Title,
		"notes": s.song.Len(),
	})

	select {
	case s.loaded <- struct{}{}:
	default:
	}
	return nil
}

// SongLoaded signals after a song is loaded. Loads that happen while a
// signal is pending coalesce into it.
func (s *Session) SongLoaded() <-chan struct{} {
	return s.loaded
}

// OnEvent registers a state machine listener. Listeners survive song loads.
func (s *Session) OnEvent(listener EventListener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, listener)
	s.machine.OnEvent(listener)
}

// ProcessBatch pushes one batch through the whole pipeline and returns
// the reading it produced
func (s *Session) ProcessBatch(batch []float64) (tonal.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.song.Loaded() {
		return tonal.Reading{}, ErrNoSong
	}

	started := time.Now()

	s.buffer.Push(batch)
	s.window = s.buffer.Snapshot(s.window)

	result := s.detector.Analyze(s.window, s.config.SampleRate)
	reading := s.stabilizer.Classify(result)

	switch reading.Kind {
	case tonal.Silence:
		s.stats.Silent++
		s.machine.HandleInput(Silence)
	case tonal.Stable:
		s.stats.Stable++
		s.lastNote = reading.Symbol
		s.machine.HandleInput(reading.Symbol)
	default:
		s.stats.Unstable++
		s.machine.Tick()
	}

	s.stats.Batches++
	pass := time.Since(started)
	s.stats.LastPass = pass
	if pass > s.stats.MaxPass {
		s.stats.MaxPass = pass
	}
	if budget := s.config.HopInterval(); budget > 0 && pass > budget {
		s.stats.Overruns++
		s.logger.Warn("Analysis pass overran hop interval", logging.Fields{
			"pass_ms":   pass.Milliseconds(),
			"budget_ms": budget.Milliseconds(),
		})
	}

	s.logger.Debug("Batch processed", logging.Fields{
		"reading": reading.Kind.String(),
		"pitch":   result.Pitch,
		"symbol":  reading.Symbol,
		"state":   s.machine.State().String(),
	})

	return reading, nil
}

// Run reads batches from src until the song finishes, the source ends or
// ctx is cancelled. The caller owns src and closes it.
func (s *Session) Run(ctx context.Context, src AudioSource) error {
	if src.SampleRate() != s.config.SampleRate {
		return fmt.Errorf("%w: source %d Hz, session %d Hz", ErrSampleRateMismatch, src.SampleRate(), s.config.SampleRate)
	}
	if !s.Loaded() {
		return ErrNoSong
	}

	logger := s.logger.WithFields(logging.Fields{
		"sample_rate": s.config.SampleRate,
		"hop_size":    s.config.HopSize,
	})
	logger.Info("Session started")

	batch := make([]float64, s.config.HopSize)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Session cancelled")
			return ctx.Err()
		default:
		}

		n, err := src.ReadBatch(ctx, batch)
		if n > 0 {
			if _, perr := s.ProcessBatch(batch[:n]); perr != nil {
				return perr
			}
			if s.Finished() {
				s.leds.EndSequence()
				logger.Info("Session finished", logging.Fields{
					"feedback": s.feedback.Len(),
				})
				return nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Audio source ended")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read audio batch: %w", err)
		}
	}
}

// Finished reports whether the loaded song has been played through
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.song.Loaded() && s.song.Finished()
}

// Loaded reports whether a song is loaded
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.song.Loaded()
}

// Feedback returns the feedback log
func (s *Session) Feedback() *FeedbackLog {
	return s.feedback
}

// Stats returns a copy of the pipeline statistics
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Status returns a snapshot of song progress and pipeline state
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SessionStatus{
		Title:     s.song.Title(),
		Cursor:    s.song.Cursor(),
		Length:    s.song.Len(),
		Finished:  s.song.Loaded() && s.song.Finished(),
		State:     s.machine.State(),
		WrongNote: s.song.WrongNote(),
		LastNote:  s.lastNote,
		Stats:     s.stats,
	}
	if s.song.Loaded() && s.song.Cursor() < s.song.Len() {
		status.Expected = s.song.Notes()[s.song.Cursor()].Note
	}
	return status
}

// Config returns the session configuration
func (s *Session) Config() config.SessionConfig {
	return s.config
}
