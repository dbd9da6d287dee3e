package trainer

import (
	"time"

	"github.com/RyanBlaney/sonido-coach/algorithms/tonal"
	"github.com/RyanBlaney/sonido-coach/logging"
)

// Silence is the input symbol for frames without a note
const Silence = tonal.SilenceSymbol

// StateMachineConfig holds the timing policy of the note state machine
type StateMachineConfig struct {
	// Silence needed before the song starts
	MinSilence time.Duration
	// Non-silent input ignored for this long after the song advances
	MatchDelay time.Duration
	// A note counts as held once elapsed >= DurationMultiplier * duration
	DurationMultiplier float64
}

// DefaultStateMachineConfig returns 0.5s of starting silence, no match
// delay and a 1x duration multiplier
func DefaultStateMachineConfig() StateMachineConfig {
	return StateMachineConfig{
		MinSilence:         500 * time.Millisecond,
		DurationMultiplier: 1.0,
	}
}

// StateMachineOption configures a NoteStateMachine
type StateMachineOption func(*NoteStateMachine)

// WithClock replaces time.Now, mainly for tests
func WithClock(clock func() time.Time) StateMachineOption {
	return func(sm *NoteStateMachine) {
		if clock != nil {
			sm.clock = clock
		}
	}
}

// WithStateMachineLogger sets the logger
func WithStateMachineLogger(logger logging.Logger) StateMachineOption {
	return func(sm *NoteStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NoteStateMachine follows the player through a song.
//
// Each input is a note symbol: a note name such as "C4" or Silence.
// Anything that is not the expected note or Silence counts as a wrong note.
// The machine is not safe for concurrent use.
type NoteStateMachine struct {
	song     *Song
	feedback *FeedbackLog
	config   StateMachineConfig

	state       State
	startTime   time.Time
	elapsed     time.Duration
	lastAdvance time.Time

	clock     func() time.Time
	listeners []EventListener
	logger    logging.Logger
}

// NewNoteStateMachine creates a machine in the starting state
func NewNoteStateMachine(song *Song, feedback *FeedbackLog, config StateMachineConfig, opts ...StateMachineOption) *NoteStateMachine {
	if feedback == nil {
		feedback = NewFeedbackLog()
	}
	if config.DurationMultiplier <= 0 {
		config.DurationMultiplier = 1.0
	}

	sm := &NoteStateMachine{
		song:     song,
		feedback: feedback,
		config:   config,
		state:    StateStarting,
		clock:    time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "note_state_machine",
		}),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// OnEvent registers a listener
func (sm *NoteStateMachine) OnEvent(listener EventListener) {
	if listener != nil {
		sm.listeners = append(sm.listeners, listener)
	}
}

// State returns the current state
func (sm *NoteStateMachine) State() State {
	return sm.state
}

// Elapsed returns how long the current note has been held
func (sm *NoteStateMachine) Elapsed() time.Duration {
	return sm.elapsed
}

// Reset returns to the starting state
func (sm *NoteStateMachine) Reset() {
	sm.state = StateStarting
	sm.startTime = time.Time{}
	sm.elapsed = 0
	sm.lastAdvance = time.Time{}
}

// Tick handles a frame whose note is not yet stable. No transition happens.
func (sm *NoteStateMachine) Tick() {
	sm.logger.Debug("Unstable reading", logging.Fields{"state": sm.state.String()})
}

// HandleInput feeds one note symbol to the machine
func (sm *NoteStateMachine) HandleInput(played string) {
	if sm.song == nil {
		return
	}
	if sm.state != StateStarting && sm.state != StateSilentStart && sm.song.Finished() {
		return
	}

	now := sm.clock()

	switch sm.state {
	case StateStarting:
		sm.starting(played, now)
	case StateSilentStart:
		sm.silentStart(played, now)
	case StateWaiting:
		sm.waiting(played, now)
	case StateListening:
		sm.listening(played, now)
	case StateListeningWrongNote:
		sm.listeningWrongNote(played, now)
	case StateIdle:
		sm.idle(played, now)
	}
}

func (sm *NoteStateMachine) starting(played string, now time.Time) {
	if played == Silence {
		sm.startTime = now
		sm.transition(StateSilentStart, now)
	}
}

func (sm *NoteStateMachine) silentStart(played string, now time.Time) {
	if played != Silence {
		sm.transition(StateStarting, now)
		return
	}

	if now.Sub(sm.startTime) < sm.config.MinSilence {
		return
	}

	if err := sm.song.Start(); err != nil {
		sm.logger.Warn("Cannot start song", logging.Fields{"error": err.Error()})
		return
	}
	expected, _ := sm.song.CurrentNote()
	sm.lastAdvance = time.Time{}
	sm.emit(Event{Type: EventSongStarted, Expected: expected.Note, At: now})
	sm.transition(StateWaiting, now)
}

func (sm *NoteStateMachine) waiting(played string, now time.Time) {
	expected, ok := sm.song.CurrentNote()
	if !ok || played == Silence {
		return
	}

	if sm.config.MatchDelay > 0 && !sm.lastAdvance.IsZero() && now.Sub(sm.lastAdvance) < sm.config.MatchDelay {
		return
	}

	sm.startTime = now
	sm.elapsed = 0

	if played == expected.Note {
		sm.transition(StateListening, now)
		return
	}

	sm.setWrongNote(played, expected.Note, now)
	sm.transition(StateListeningWrongNote, now)
}

func (sm *NoteStateMachine) listening(played string, now time.Time) {
	expected, ok := sm.song.CurrentNote()
	if !ok {
		return
	}
	sm.elapsed = now.Sub(sm.startTime)
	held := sm.elapsed >= sm.required(expected)

	switch {
	case played == expected.Note:
		if held {
			sm.transition(StateIdle, now)
		}

	case played == Silence:
		sm.record(expected.Note, expected.Note, now)
		if held {
			sm.advance(now)
		}
		sm.transition(StateWaiting, now)

	default:
		sm.record(expected.Note, expected.Note, now)
		sm.startTime = now
		sm.elapsed = 0
		sm.setWrongNote(played, expected.Note, now)
		sm.transition(StateListeningWrongNote, now)
	}
}

func (sm *NoteStateMachine) listeningWrongNote(played string, now time.Time) {
	expected, ok := sm.song.CurrentNote()
	if !ok {
		return
	}
	wrong := sm.song.WrongNote()
	sm.elapsed = now.Sub(sm.startTime)

	switch played {
	case wrong:
		// still holding the same wrong note

	case expected.Note:
		sm.record(wrong, expected.Note, now)
		sm.setWrongNote("", expected.Note, now)
		sm.startTime = now
		sm.elapsed = 0
		sm.transition(StateListening, now)

	case Silence:
		sm.record(wrong, expected.Note, now)
		sm.setWrongNote("", expected.Note, now)
		sm.transition(StateWaiting, now)

	default:
		sm.record(wrong, expected.Note, now)
		sm.setWrongNote(played, expected.Note, now)
		sm.startTime = now
		sm.elapsed = 0
	}
}

func (sm *NoteStateMachine) idle(played string, now time.Time) {
	expected, ok := sm.song.CurrentNote()
	if !ok {
		return
	}
	sm.elapsed = now.Sub(sm.startTime)

	if played == expected.Note {
		return
	}

	sm.record(expected.Note, expected.Note, now)
	sm.advance(now)
	sm.transition(StateWaiting, now)

	// a new note played without a gap is judged against the next note
	if played != Silence && !sm.song.Finished() {
		sm.waiting(played, now)
	}
}

// required returns how long a note must be held to count
func (sm *NoteStateMachine) required(note SongNote) time.Duration {
	return time.Duration(note.Duration * sm.config.DurationMultiplier * float64(time.Second))
}

func (sm *NoteStateMachine) record(played, expected string, now time.Time) {
	d := sm.elapsed.Seconds()
	sm.feedback.Append(FeedbackRecord{
		Note:     played,
		Duration: d,
		Expected: expected,
		At:       now,
	})

	sm.logger.Debug("Feedback recorded", logging.Fields{
		"note":     played,
		"expected": expected,
		"duration": d,
	})
	sm.emit(Event{Type: EventFeedback, Note: played, Expected: expected, Duration: d, At: now})
}

func (sm *NoteStateMachine) advance(now time.Time) {
	sm.song.NextNote()
	sm.lastAdvance = now

	if next, ok := sm.song.CurrentNote(); ok {
		sm.emit(Event{Type: EventNoteAdvance, Expected: next.Note, At: now})
		return
	}

	sm.logger.Info("Song finished", logging.Fields{"title": sm.song.Title()})
	sm.emit(Event{Type: EventSongFinished, At: now})
}

func (sm *NoteStateMachine) setWrongNote(played, expected string, now time.Time) {
	previous := sm.song.WrongNote()
	sm.song.SetWrongNote(played)

	if previous != "" && previous != played {
		sm.emit(Event{Type: EventWrongNoteOff, Note: previous, Expected: expected, At: now})
	}
	if played != "" {
		sm.emit(Event{Type: EventWrongNoteOn, Note: played, Expected: expected, At: now})
	}
}

func (sm *NoteStateMachine) transition(to State, now time.Time) {
	from := sm.state
	if from == to {
		return
	}
	sm.state = to

	sm.logger.Debug("Transition", logging.Fields{
		"from": from.String(),
		"to":   to.String(),
	})
	sm.emit(Event{Type: EventStateChange, From: from, To: to, At: now})
}

func (sm *NoteStateMachine) emit(e Event) {
	if e.Type != EventStateChange {
		e.From = sm.state
		e.To = sm.state
	}
	for _, listener := range sm.listeners {
		listener(e)
	}
}
