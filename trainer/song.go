package trainer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-coach/algorithms/chroma"
	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/trainer/config"
)

// Durations at or above this value are taken as milliseconds when a song
// does not name its unit
const millisecondGuess = 20.0

// Duration units accepted in SongData.DurationUnit
const (
	UnitSeconds      = "s"
	UnitMilliseconds = "ms"
	UnitBeats        = "beats"
)

// RawNote is one entry of the song data as it arrives from a file or the
// companion app. Older song files use "name" instead of "note".
type RawNote struct {
	Note     string   `json:"note,omitempty"`
	Name     string   `json:"name,omitempty"`
	Duration *float64 `json:"duration"`
}

// SongData is the unvalidated song payload
type SongData struct {
	Title        string    `json:"title"`
	Key          string    `json:"key,omitempty"`
	Tempo        float64   `json:"tempo,omitempty"` // beats per minute
	DurationUnit string    `json:"duration_unit,omitempty"`
	Notes        []RawNote `json:"notes"`
}

// SongNote is a validated note: canonical sharp name, duration in seconds
type SongNote struct {
	Note     string  `json:"note"`
	Duration float64 `json:"duration"`
}

// Length returns the duration as a time.Duration
func (n SongNote) Length() time.Duration {
	return time.Duration(n.Duration * float64(time.Second))
}

// NewRawNote builds a RawNote, mainly for programmatic songs
func NewRawNote(note string, duration float64) RawNote {
	return RawNote{Note: note, Duration: &duration}
}

// NormalizeSong validates song data and converts every duration to seconds.
// Flats are rewritten to their sharp spelling.
func NormalizeSong(data SongData) ([]SongNote, error) {
	if len(data.Notes) == 0 {
		return nil, ErrEmptySong
	}

	notes := make([]SongNote, len(data.Notes))
	raw := make([]float64, len(data.Notes))

	for i, rn := range data.Notes {
		name := rn.Note
		if name == "" {
			name = rn.Name
		}
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("note %d: %w", i, ErrMissingNote)
		}
		if rn.Duration == nil {
			return nil, fmt.Errorf("note %d (%s): %w", i, name, ErrMissingDuration)
		}

		canonical, err := chroma.CanonicalNoteName(name)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w: %q", i, ErrInvalidNote, name)
		}

		d := *rn.Duration
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("note %d (%s): %w: %v", i, name, ErrInvalidDuration, d)
		}

		notes[i].Note = canonical
		raw[i] = d
	}

	scale, err := durationScale(data, raw)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Duration = raw[i] * scale
	}

	return notes, nil
}

// durationScale returns the factor converting the song's durations to seconds
func durationScale(data SongData, durations []float64) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(data.DurationUnit)) {
	case UnitSeconds, "sec", "seconds":
		return 1.0, nil
	case UnitMilliseconds, "millis", "milliseconds":
		return 0.001, nil
	case UnitBeats, "beat":
		if data.Tempo <= 0 {
			return 0, ErrMissingTempo
		}
		return 60.0 / data.Tempo, nil
	case "":
		// inferred below
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDurationUnit, data.DurationUnit)
	}

	long := 0
	for _, d := range durations {
		if d >= millisecondGuess {
			long++
		}
	}
	switch long {
	case 0:
		return 1.0, nil
	case len(durations):
		return 0.001, nil
	default:
		return 0, ErrMixedDurationUnits
	}
}

// Song is the lesson being played: an ordered note list with a cursor.
//
// Song is not safe for concurrent use; the session serialises access.
type Song struct {
	title    string
	key      string
	tempo    float64
	notes    []SongNote
	cursor   int
	finished bool

	// wrong note currently shown, "" when none
	wrongNote string

	leds       LEDController
	ledMap     LEDMap
	thresholds config.NoteTypeThresholds
	logger     logging.Logger
}

// NewSong creates an empty song bound to an LED controller
func NewSong(leds LEDController, ledMap LEDMap, thresholds config.NoteTypeThresholds) *Song {
	if leds == nil {
		leds = NopLEDController()
	}
	if ledMap == nil {
		ledMap = DefaultLEDMap()
	}
	return &Song{
		leds:       leds,
		ledMap:     ledMap,
		thresholds: thresholds,
		finished:   true,
		logger: logging.WithFields(logging.Fields{
			"component": "song",
		}),
	}
}

// SetSong validates and loads a note sequence and rewinds to its first note.
// On error the previous song is kept.
func (s *Song) SetSong(data SongData) error {
	notes, err := NormalizeSong(data)
	if err != nil {
		return fmt.Errorf("failed to load song %q: %w", data.Title, err)
	}

	s.SetWrongNote("")
	s.title = data.Title
	s.key = data.Key
	s.tempo = data.Tempo
	s.notes = notes
	s.cursor = 0
	s.finished = false

	s.logger.Info("Song loaded", logging.Fields{
		"title": s.title,
		"notes": len(s.notes),
	})
	return nil
}

// Start arms the first note and plays the intro sequence
func (s *Song) Start() error {
	note, ok := s.CurrentNote()
	if !ok {
		return ErrNoSong
	}

	led, found := s.ledMap.Lookup(note.Note)
	if !found {
		led = NoLED
	}
	s.leds.StartSequence(led)
	return nil
}

// CurrentNote returns the note at the cursor. When the cursor is past the
// end the song is marked finished and ok is false.
func (s *Song) CurrentNote() (SongNote, bool) {
	if s.cursor >= len(s.notes) {
		s.finished = true
		return SongNote{}, false
	}
	return s.notes[s.cursor], true
}

// NextNote advances the cursor and lights the new current note.
// After the last note it marks the song finished; further calls do nothing.
func (s *Song) NextNote() {
	if s.finished || s.cursor >= len(s.notes) {
		s.finished = true
		return
	}

	s.cursor++
	note, ok := s.CurrentNote()
	if !ok {
		s.logger.Info("Lesson complete", logging.Fields{"title": s.title})
		return
	}

	if led, found := s.ledMap.Lookup(note.Note); found {
		s.leds.TurnOnLED(led, s.NoteType(note))
	}
}

// SetWrongNote shows note as the wrong-note indicator; "" clears it
func (s *Song) SetWrongNote(note string) {
	if s.wrongNote != "" && note != s.wrongNote {
		if led, found := s.ledMap.Lookup(s.wrongNote); found {
			s.leds.TurnOnLEDSolo(led, false)
		}
	}

	s.wrongNote = note

	if note != "" {
		if led, found := s.ledMap.Lookup(note); found {
			s.leds.TurnOnLEDSolo(led, true)
		}
	}
}

// WrongNote returns the wrong note being shown, "" when none
func (s *Song) WrongNote() string {
	return s.wrongNote
}

// NoteType classifies a note by its duration
func (s *Song) NoteType(note SongNote) NoteType {
	return ClassifyNoteType(note.Duration, s.thresholds)
}

// Finished reports whether every note has been played
func (s *Song) Finished() bool {
	return s.finished
}

// Loaded reports whether a song has been set
func (s *Song) Loaded() bool {
	return len(s.notes) > 0
}

// Cursor returns the index of the current note
func (s *Song) Cursor() int {
	return s.cursor
}

// Len returns the number of notes
func (s *Song) Len() int {
	return len(s.notes)
}

// Title returns the song title
func (s *Song) Title() string {
	return s.title
}

// Key returns the song key, if the payload carried one
func (s *Song) Key() string {
	return s.key
}

// Tempo returns the song tempo in bpm, if the payload carried one
func (s *Song) Tempo() float64 {
	return s.tempo
}

// Notes returns a copy of the normalised notes
func (s *Song) Notes() []SongNote {
	notes := make([]SongNote, len(s.notes))
	copy(notes, s.notes)
	return notes
}
