package trainer

import (
	"github.com/RyanBlaney/sonido-coach/trainer/config"
)

// NoLED is passed to StartSequence when the first note has no LED
const NoLED = -1

// NoteType selects the colour palette an LED is lit with
type NoteType int

const (
	Quarter NoteType = iota
	Half
	Whole
)

func (nt NoteType) String() string {
	switch nt {
	case Quarter:
		return "q"
	case Half:
		return "h"
	case Whole:
		return "w"
	default:
		return "?"
	}
}

// ClassifyNoteType maps a duration in seconds to a note type
func ClassifyNoteType(duration float64, thresholds config.NoteTypeThresholds) NoteType {
	switch {
	case duration >= thresholds.Whole:
		return Whole
	case duration >= thresholds.Half:
		return Half
	default:
		return Quarter
	}
}

// LEDController drives the note indicator strip.
// Calls are fire-and-forget; implementations that do I/O should queue.
type LEDController interface {
	// TurnOnLED lights the LED of the expected note, turning off the previous one
	TurnOnLED(led int, noteType NoteType)
	// TurnOnLEDSolo switches the wrong-note indicator of an LED
	TurnOnLEDSolo(led int, on bool)
	// StartSequence plays the intro animation and lights the first note
	StartSequence(led int)
	// EndSequence plays the outro animation and clears the strip
	EndSequence()
}

// LEDMap translates note names to LED indices
type LEDMap map[string]int

// DefaultLEDMap returns the fretboard strip layout
func DefaultLEDMap() LEDMap {
	return LEDMap(config.DefaultLEDMap())
}

// Lookup returns the LED of a note name
func (m LEDMap) Lookup(note string) (int, bool) {
	led, ok := m[note]
	return led, ok
}

type nopLEDs struct{}

func (nopLEDs) TurnOnLED(int, NoteType) {}
func (nopLEDs) TurnOnLEDSolo(int, bool) {}
func (nopLEDs) StartSequence(int)       {}
func (nopLEDs) EndSequence()            {}

// NopLEDController discards every command
func NopLEDController() LEDController {
	return nopLEDs{}
}
