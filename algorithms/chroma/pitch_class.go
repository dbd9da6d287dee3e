package chroma

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultConcertPitch is the reference frequency of A4 in Hz
const DefaultConcertPitch = 440.0

// ErrInvalidNoteName is returned for names that are not a letter, an
// optional accidental and an octave number (e.g. "C4", "F#3", "Bb5")
var ErrInvalidNoteName = errors.New("invalid note name")

// pitchClassNames starts at A because A4 is the tuning reference
var pitchClassNames = [12]string{"A", "A#", "B", "C", "C#", "D", "D#", "E", "F", "F#", "G", "G#"}

// semitones above C for each natural letter
var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// Note is an equal-tempered note
type Note struct {
	Name      string  `json:"name"`      // e.g. "A#4"
	Frequency float64 `json:"frequency"` // Hz
	Semitones int     `json:"semitones"` // offset from A4
}

// PitchClass returns the name without the octave number
func (n Note) PitchClass() string {
	return strings.TrimRightFunc(n.Name, func(r rune) bool {
		return r == '-' || (r >= '0' && r <= '9')
	})
}

// Octave returns the scientific pitch notation octave
func (n Note) Octave() int {
	return 4 + floorDiv(n.Semitones+9, 12)
}

// NearestNote maps a frequency to the closest equal-tempered note.
// ok is false for non-positive or non-finite frequencies.
func NearestNote(frequency, concertPitch float64) (Note, bool) {
	if concertPitch <= 0 {
		concertPitch = DefaultConcertPitch
	}
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return Note{}, false
	}

	i := int(math.Round(12 * math.Log2(frequency/concertPitch)))
	return NoteFromSemitones(i, concertPitch), true
}

// NoteFromSemitones builds the note i semitones away from A4
func NoteFromSemitones(i int, concertPitch float64) Note {
	if concertPitch <= 0 {
		concertPitch = DefaultConcertPitch
	}
	octave := 4 + floorDiv(i+9, 12)
	return Note{
		Name:      pitchClassNames[floorMod(i, 12)] + strconv.Itoa(octave),
		Frequency: concertPitch * math.Pow(2, float64(i)/12),
		Semitones: i,
	}
}

// ParseNoteName parses names such as "C4", "F#3", "Bb5" or "E#2" and
// returns the note in its canonical sharp spelling.
func ParseNoteName(name string, concertPitch float64) (Note, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	offset, ok := letterOffsets[s[0]]
	if !ok {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}
	rest := s[1:]

	switch rest[0] {
	case '#':
		offset++
		rest = rest[1:]
	case 'b':
		offset--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil || rest == "" || rest[0] == '+' {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	// MIDI numbering puts A4 at 69
	midi := (octave+1)*12 + offset
	return NoteFromSemitones(midi-69, concertPitch), nil
}

// CanonicalNoteName returns the sharp spelling of a note name ("Bb4" → "A#4")
func CanonicalNoteName(name string) (string, error) {
	note, err := ParseNoteName(name, DefaultConcertPitch)
	if err != nil {
		return "", err
	}
	return note.Name, nil
}

// IsValidNoteName reports whether name parses as a note
func IsValidNoteName(name string) bool {
	_, err := ParseNoteName(name, DefaultConcertPitch)
	return err == nil
}

// NoteFrequency returns the equal-tempered frequency of a named note
func NoteFrequency(name string, concertPitch float64) (float64, error) {
	note, err := ParseNoteName(name, concertPitch)
	if err != nil {
		return 0, err
	}
	return note.Frequency, nil
}

// MIDINoteName converts a MIDI key number to a note name (60 → "C4")
func MIDINoteName(key int) string {
	return NoteFromSemitones(key-69, DefaultConcertPitch).Name
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
