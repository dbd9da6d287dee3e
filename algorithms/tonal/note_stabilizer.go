package tonal

import (
	"github.com/RyanBlaney/sonido-coach/algorithms/chroma"
)

// SilenceSymbol is the note symbol used for frames without a pitch
const SilenceSymbol = "SILENCE"

// ReadingKind classifies a debounced frame
type ReadingKind int

const (
	// Silence means the detector gated the frame
	Silence ReadingKind = iota
	// Stable means the last StabilityFrames detections agree on one note
	Stable
	// Unstable means detections disagree; no note should be reported yet
	Unstable
)

func (k ReadingKind) String() string {
	switch k {
	case Silence:
		return "silence"
	case Stable:
		return "stable"
	case Unstable:
		return "unstable"
	default:
		return "unknown"
	}
}

// Reading is the classifier output for one frame
type Reading struct {
	Kind      ReadingKind `json:"kind"`
	Note      chroma.Note `json:"note"`      // nearest note of this frame
	Frequency float64     `json:"frequency"` // detected pitch, Hz
	Symbol    string      `json:"symbol"`    // SilenceSymbol or the stable note name
}

// NoteStabilizer maps pitch estimates to note names and only reports a note
// once the last few estimates agree on it.
type NoteStabilizer struct {
	concertPitch float64
	history      []string
	filled       int
	pos          int
}

// NewNoteStabilizer creates a stabilizer requiring frames consecutive
// agreeing detections
func NewNoteStabilizer(frames int, concertPitch float64) *NoteStabilizer {
	if frames < 1 {
		frames = 1
	}
	if concertPitch <= 0 {
		concertPitch = chroma.DefaultConcertPitch
	}
	return &NoteStabilizer{
		concertPitch: concertPitch,
		history:      make([]string, frames),
	}
}

// Classify turns a detection result into a Reading.
// Silent frames leave the history untouched.
func (ns *NoteStabilizer) Classify(result PitchDetectionResult) Reading {
	if result.IsSilent() {
		return Reading{Kind: Silence, Symbol: SilenceSymbol}
	}

	note, ok := chroma.NearestNote(result.Pitch, ns.concertPitch)
	if !ok {
		return Reading{Kind: Silence, Symbol: SilenceSymbol}
	}

	ns.history[ns.pos] = note.Name
	ns.pos = (ns.pos + 1) % len(ns.history)
	if ns.filled < len(ns.history) {
		ns.filled++
	}

	reading := Reading{
		Kind:      Unstable,
		Note:      note,
		Frequency: result.Pitch,
	}
	if ns.agree() {
		reading.Kind = Stable
		reading.Symbol = note.Name
	}
	return reading
}

// Reset forgets all previous detections
func (ns *NoteStabilizer) Reset() {
	for i := range ns.history {
		ns.history[i] = ""
	}
	ns.filled = 0
	ns.pos = 0
}

// Frames returns how many agreeing detections are needed
func (ns *NoteStabilizer) Frames() int {
	return len(ns.history)
}

func (ns *NoteStabilizer) agree() bool {
	if ns.filled < len(ns.history) {
		return false
	}
	for _, name := range ns.history[1:] {
		if name != ns.history[0] {
			return false
		}
	}
	return true
}
