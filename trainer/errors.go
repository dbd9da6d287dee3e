package trainer

import "errors"

// Song loading errors
var (
	ErrEmptySong           = errors.New("song has no notes")
	ErrMissingNote         = errors.New("song note is missing its note name")
	ErrMissingDuration     = errors.New("song note is missing its duration")
	ErrInvalidNote         = errors.New("song note has an invalid note name")
	ErrInvalidDuration     = errors.New("song note has an invalid duration")
	ErrMixedDurationUnits  = errors.New("song mixes millisecond and second durations")
	ErrUnknownDurationUnit = errors.New("unknown duration unit")
	ErrMissingTempo        = errors.New("beat durations need a positive tempo")
)

// Session errors
var (
	ErrNoSong             = errors.New("no song loaded")
	ErrSampleRateMismatch = errors.New("audio source sample rate does not match session")
)
