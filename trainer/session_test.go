package trainer

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/trainer/config"
)

const (
	testSampleRate = 8000
	testWindow     = 4096
	testHop        = 1024
)

func testConfig() config.SessionConfig {
	cfg := config.DefaultSessionConfig()
	cfg.SampleRate = testSampleRate
	cfg.WindowSize = testWindow
	cfg.HopSize = testHop
	cfg.MinSilence = 0.25
	return cfg
}

// harmonicBatches renders count hop-sized batches of a tone with five 1/n
// partials, phase-continuous across batches
func harmonicBatches(freq float64, count int) [][]float64 {
	batches := make([][]float64, count)
	for b := range batches {
		batch := make([]float64, testHop)
		for i := range batch {
			n := float64(b*testHop + i)
			for h := 1; h <= 5; h++ {
				batch[i] += 0.5 / float64(h) * math.Sin(2*math.Pi*freq*float64(h)*n/testSampleRate)
			}
		}
		batches[b] = batch
	}
	return batches
}

func silentBatches(count int) [][]float64 {
	batches := make([][]float64, count)
	for b := range batches {
		batches[b] = make([]float64, testHop)
	}
	return batches
}

// scriptedSource replays batches and advances the fake clock one hop per read
type scriptedSource struct {
	batches [][]float64
	clock   *fakeClock
	reads   int
}

func (s *scriptedSource) SampleRate() int { return testSampleRate }

func (s *scriptedSource) ReadBatch(ctx context.Context, dst []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.reads >= len(s.batches) {
		return 0, io.EOF
	}
	n := copy(dst, s.batches[s.reads])
	s.reads++
	s.clock.Advance(time.Duration(testHop) * time.Second / testSampleRate)
	return n, nil
}

func (s *scriptedSource) Close() error { return nil }

func lesson() [][]float64 {
	var script [][]float64
	script = append(script, silentBatches(8)...)
	script = append(script, harmonicBatches(261.63, 16)...) // C4
	script = append(script, silentBatches(8)...)
	script = append(script, harmonicBatches(329.63, 16)...) // E4
	script = append(script, silentBatches(8)...)
	return script
}

func TestSession_PlaysSongEndToEnd(t *testing.T) {
	clock := newFakeClock()
	leds := &fakeLEDs{}

	session, err := NewSession(testConfig(), leds, WithSessionClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.LoadSong(songData("two notes", "C4", 0.5, "E4", 0.5)); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}

	var finished int
	session.OnEvent(func(e Event) {
		if e.Type == EventSongFinished {
			finished++
		}
	})

	src := &scriptedSource{batches: lesson(), clock: clock}
	if err := session.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !session.Finished() || finished != 1 {
		t.Fatalf("expected finished song, finished=%v events=%d", session.Finished(), finished)
	}

	records := session.Feedback().Records()
	if len(records) != 2 || records[0].Note != "C4" || records[1].Note != "E4" {
		t.Fatalf("unexpected feedback %+v", records)
	}
	for _, r := range records {
		if r.Duration < 0.5 || !r.Correct() {
			t.Fatalf("expected a correct, fully held note, got %+v", r)
		}
	}

	if !leds.has(ledCall{Op: "start", LED: 13}) {
		t.Fatalf("expected start sequence on C4, got %v", leds.Calls())
	}
	if !leds.has(ledCall{Op: "on", LED: 11, NoteType: Half}) {
		t.Fatalf("expected E4 lit as half note, got %v", leds.Calls())
	}
	calls := leds.Calls()
	if calls[len(calls)-1].Op != "end" {
		t.Fatalf("expected end sequence last, got %v", calls)
	}

	stats := session.Stats()
	if stats.Batches != int64(src.reads) || stats.Stable == 0 || stats.Silent == 0 {
		t.Fatalf("unexpected stats %+v (reads %d)", stats, src.reads)
	}
	if stats.Batches != stats.Silent+stats.Stable+stats.Unstable {
		t.Fatalf("every batch must produce one reading: %+v", stats)
	}

	status := session.Status()
	if !status.Finished || status.Cursor != 2 || status.Title != "two notes" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestSession_ProcessBatchWithoutSong(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := session.ProcessBatch(make([]float64, testHop)); !errors.Is(err, ErrNoSong) {
		t.Fatalf("expected ErrNoSong, got %v", err)
	}
	src := &scriptedSource{clock: newFakeClock()}
	if err := session.Run(context.Background(), src); !errors.Is(err, ErrNoSong) {
		t.Fatalf("expected ErrNoSong from Run, got %v", err)
	}
}

func TestSession_RejectsInvalidConfigAndSong(t *testing.T) {
	cfg := testConfig()
	cfg.HopSize = cfg.WindowSize * 2
	if _, err := NewSession(cfg, nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	session, err := NewSession(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.LoadSong(SongData{Title: "broken", Notes: []RawNote{{Note: "C4"}}}); !errors.Is(err, ErrMissingDuration) {
		t.Fatalf("expected ErrMissingDuration, got %v", err)
	}
	if session.Loaded() {
		t.Fatalf("invalid song must not load")
	}
}

type rateSource struct{ scriptedSource }

func (rateSource) SampleRate() int { return 44100 }

func TestSession_RunErrors(t *testing.T) {
	clock := newFakeClock()
	session, err := NewSession(testConfig(), nil, WithSessionClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.LoadSong(songData("s", "C4", 0.5)); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}

	if err := session.Run(context.Background(), &rateSource{}); !errors.Is(err, ErrSampleRateMismatch) {
		t.Fatalf("expected ErrSampleRateMismatch, got %v", err)
	}

	// source ends before the song does
	src := &scriptedSource{batches: silentBatches(3), clock: clock}
	if err := session.Run(context.Background(), src); err != nil {
		t.Fatalf("EOF should end the session cleanly, got %v", err)
	}
	if session.Finished() {
		t.Fatalf("song should not be finished")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src = &scriptedSource{batches: silentBatches(3), clock: clock}
	if err := session.Run(ctx, src); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSession_LoadSongResetsProgress(t *testing.T) {
	clock := newFakeClock()
	session, err := NewSession(testConfig(), nil, WithSessionClock(clock.Now))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.LoadSong(songData("first", "C4", 0.5)); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}

	for _, b := range silentBatches(4) {
		clock.Advance(128 * time.Millisecond)
		if _, err := session.ProcessBatch(b); err != nil {
			t.Fatalf("ProcessBatch: %v", err)
		}
	}
	if session.Status().State != StateWaiting {
		t.Fatalf("expected waiting, got %s", session.Status().State)
	}
	session.Feedback().Append(FeedbackRecord{Note: "C4", Duration: 1})

	if err := session.LoadSong(songData("second", "D4", 0.5)); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}
	status := session.Status()
	if status.State != StateStarting || status.Title != "second" || status.Expected != "D4" {
		t.Fatalf("unexpected status after reload %+v", status)
	}
	if session.Feedback().Len() != 0 {
		t.Fatalf("feedback should reset with a new song")
	}
}

func TestSession_LogsOverruns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewZapLogger(zap.New(core))

	cfg := testConfig()
	cfg.SampleRate = 1000000000 // 1 ns hop budget, every pass overruns
	cfg.WindowSize = 4096
	cfg.HopSize = 1

	session, err := NewSession(cfg, nil, WithSessionLogger(logger))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.LoadSong(songData("s", "C4", 0.5)); err != nil {
		t.Fatalf("LoadSong: %v", err)
	}
	if _, err := session.ProcessBatch([]float64{0}); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if session.Stats().Overruns != 1 {
		t.Fatalf("expected one overrun, got %+v", session.Stats())
	}
	if logs.FilterMessage("Analysis pass overran hop interval").Len() != 1 {
		t.Fatalf("expected overrun warning, got %v", logs.All())
	}
}

func TestSession_SongLoadedSignal(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	select {
	case <-session.SongLoaded():
		t.Fatalf("no signal expected before a song is loaded")
	default:
	}

	for _, title := range []string{"first", "second"} {
		if err := session.LoadSong(songData(title, "C4", 0.5)); err != nil {
			t.Fatalf("LoadSong: %v", err)
		}
	}
	select {
	case <-session.SongLoaded():
	default:
		t.Fatalf("expected a load signal")
	}
	select {
	case <-session.SongLoaded():
		t.Fatalf("pending loads should coalesce")
	default:
	}
}
