package led

import (
	"sync"

	"github.com/RyanBlaney/sonido-coach/logging"
)

// Recorder is an in-memory strip link. It decodes every frame written to it,
// which makes it the transport for dry runs and tests.
type Recorder struct {
	mu      sync.Mutex
	pending []byte
	frames  []Frame
	invalid int
	logger  logging.Logger
}

// NewRecorder creates an empty recorder. A nil logger discards frame logs.
func NewRecorder(logger logging.Logger) *Recorder {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Recorder{logger: logger}
}

// Write buffers b and decodes any complete frames
func (r *Recorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, b...)
	for len(r.pending) > 0 {
		f, n, err := DecodeFrame(r.pending)
		switch err {
		case nil:
			r.frames = append(r.frames, f)
			r.pending = r.pending[n:]
			r.logger.Debug("LED frame", logging.Fields{"frame": f.String()})
		case ErrShortFrame:
			return len(b), nil
		default:
			// resync on the next byte
			r.invalid++
			r.pending = r.pending[1:]
		}
	}
	return len(b), nil
}

// Frames returns a copy of the decoded frames
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Invalid returns the number of bytes skipped while resyncing
func (r *Recorder) Invalid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalid
}

// Reset forgets recorded frames
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
	r.frames = nil
	r.invalid = 0
}
