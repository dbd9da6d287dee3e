package led

import (
	"fmt"
	"io"
	"sync"

	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/trainer"
)

// Colour is an RGB pixel value
type Colour struct {
	R, G, B uint8
}

var (
	Off     = Colour{}
	Red     = Colour{255, 0, 0}
	Rose    = Colour{255, 0, 128}
	Magenta = Colour{255, 0, 255}
	Violet  = Colour{128, 0, 255}
	Blue    = Colour{0, 0, 255}
	Green   = Colour{0, 255, 0}
)

// StripConfig describes the attached strip
type StripConfig struct {
	Brightness      uint8
	RainbowCycles   uint8
	RainbowWaitMs   uint8
	WrongNoteColour Colour
	QuarterPalette  [2]Colour
	HalfPalette     [2]Colour
	WholePalette    [2]Colour
}

// DefaultStripConfig returns the fretboard strip settings
func DefaultStripConfig() StripConfig {
	return StripConfig{
		Brightness:      65,
		RainbowCycles:   1,
		RainbowWaitMs:   20,
		WrongNoteColour: Magenta,
		QuarterPalette:  [2]Colour{Red, Rose},
		HalfPalette:     [2]Colour{Violet, Blue},
		WholePalette:    [2]Colour{Green, Green},
	}
}

// Strip implements trainer.LEDController by writing frames to w.
// Repeated lighting of the same LED alternates between the two colours of
// the note type's palette so consecutive equal notes stay distinguishable.
type Strip struct {
	mu     sync.Mutex
	w      io.Writer
	config StripConfig

	lit         int
	litColour   Colour
	colourIndex int

	writeErrors int64
	logger      logging.Logger
}

var _ trainer.LEDController = (*Strip)(nil)

// NewStrip creates a strip driver and sends the initial brightness
func NewStrip(w io.Writer, config StripConfig) (*Strip, error) {
	s := &Strip{
		w:      w,
		config: config,
		lit:    trainer.NoLED,
		logger: logging.WithFields(logging.Fields{
			"component": "led_strip",
		}),
	}
	if err := s.send(Frame{Cmd: CmdBrightness, Payload: []byte{config.Brightness}}); err != nil {
		return nil, fmt.Errorf("failed to initialise strip: %w", err)
	}
	return s, nil
}

// TurnOnLED lights led in the palette of noteType, turning off the previous LED
func (s *Strip) TurnOnLED(led int, noteType trainer.NoteType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnOn(led, noteType)
}

func (s *Strip) turnOn(led int, noteType trainer.NoteType) {
	if s.lit != trainer.NoLED {
		s.sendLogged(clearPixel(s.lit))
	}

	if s.lit == led {
		s.colourIndex = 1 - s.colourIndex
	} else {
		s.colourIndex = 0
	}

	c := s.palette(noteType)[s.colourIndex]
	s.sendLogged(setPixel(led, c))
	s.lit = led
	s.litColour = c
}

// TurnOnLEDSolo switches the wrong-note colour on led without touching the
// expected-note LED state. Switching it off restores the expected colour if
// led is the lit one.
func (s *Strip) TurnOnLEDSolo(led int, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case on:
		s.sendLogged(setPixel(led, s.config.WrongNoteColour))
	case led == s.lit:
		s.sendLogged(setPixel(led, s.litColour))
	default:
		s.sendLogged(clearPixel(led))
	}
}

// StartSequence clears the strip, plays the rainbow and lights the first note
func (s *Strip) StartSequence(led int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendLogged(Frame{Cmd: CmdClearAll})
	s.sendLogged(s.rainbow())
	s.sendLogged(Frame{Cmd: CmdClearAll})
	s.lit = trainer.NoLED
	if led != trainer.NoLED {
		s.turnOn(led, trainer.Quarter)
	}
}

// EndSequence plays the rainbow and clears the strip
func (s *Strip) EndSequence() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendLogged(s.rainbow())
	s.sendLogged(Frame{Cmd: CmdClearAll})
	s.lit = trainer.NoLED
}

// Wipe turns every LED off
func (s *Strip) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lit = trainer.NoLED
	return s.send(Frame{Cmd: CmdClearAll})
}

// ApplyColour sets one LED
func (s *Strip) ApplyColour(led int, c Colour) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(setPixel(led, c))
}

// Clear turns one LED off
func (s *Strip) Clear(led int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if led == s.lit {
		s.lit = trainer.NoLED
	}
	return s.send(clearPixel(led))
}

// WriteErrors returns the number of frames that failed to send
func (s *Strip) WriteErrors() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErrors
}

func (s *Strip) palette(noteType trainer.NoteType) [2]Colour {
	switch noteType {
	case trainer.Quarter:
		return s.config.QuarterPalette
	case trainer.Half:
		return s.config.HalfPalette
	default:
		return s.config.WholePalette
	}
}

func (s *Strip) rainbow() Frame {
	return Frame{Cmd: CmdRainbow, Payload: []byte{s.config.RainbowCycles, s.config.RainbowWaitMs}}
}

func (s *Strip) send(f Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", f, err)
	}
	return nil
}

// sendLogged is used by the fire-and-forget controller methods
func (s *Strip) sendLogged(f Frame) {
	if err := s.send(f); err != nil {
		s.writeErrors++
		s.logger.Warn("LED frame dropped", logging.Fields{
			"frame": f.String(),
			"error": err.Error(),
		})
	}
}

func setPixel(led int, c Colour) Frame {
	return Frame{Cmd: CmdSetPixel, Payload: []byte{byte(led), c.R, c.G, c.B}}
}

func clearPixel(led int) Frame {
	return Frame{Cmd: CmdClearPixel, Payload: []byte{byte(led)}}
}
