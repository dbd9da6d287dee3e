package trainer

import (
	"fmt"
	"time"
)

// State of the note state machine
type State int

const (
	StateStarting State = iota
	StateSilentStart
	StateWaiting
	StateListening
	StateListeningWrongNote
	StateIdle
)

var stateNames = map[State]string{
	StateStarting:           "starting",
	StateSilentStart:        "silent_start",
	StateWaiting:            "waiting",
	StateListening:          "listening",
	StateListeningWrongNote: "listening_wrong_note",
	StateIdle:               "idle",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// EventType names what happened
type EventType string

const (
	EventStateChange  EventType = "state_change"
	EventFeedback     EventType = "feedback"
	EventWrongNoteOn  EventType = "wrong_note_on"
	EventWrongNoteOff EventType = "wrong_note_off"
	EventNoteAdvance  EventType = "note_advance"
	EventSongStarted  EventType = "song_started"
	EventSongFinished EventType = "song_finished"
)

// Event is emitted by the state machine for every observable change
type Event struct {
	Type     EventType `json:"type"`
	From     State     `json:"from"`
	To       State     `json:"to"`
	Note     string    `json:"note,omitempty"`     // played note
	Expected string    `json:"expected,omitempty"` // note the song asks for
	Duration float64   `json:"duration,omitempty"` // seconds, feedback only
	At       time.Time `json:"at"`
}

// EventListener receives state machine events. Listeners run on the
// pipeline goroutine and must not block.
type EventListener func(Event)
