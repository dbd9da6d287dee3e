package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrSourceClosed is returned by ReadBatch after Close
var ErrSourceClosed = errors.New("audio source closed")

// BatchSource replays decoded audio in hop-sized batches.
// When paced, each batch is released one hop interval after the previous one,
// as a live input would deliver it.
type BatchSource struct {
	mu     sync.Mutex
	data   *AudioData
	hop    int
	pos    int
	paced  bool
	ticker *time.Ticker
	closed bool
}

// NewBatchSource creates a source over data delivering at most hop samples per read
func NewBatchSource(data *AudioData, hop int, paced bool) (*BatchSource, error) {
	if data == nil || data.SampleRate <= 0 {
		return nil, fmt.Errorf("audio data needs a positive sample rate")
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", hop)
	}

	s := &BatchSource{
		data:  data,
		hop:   hop,
		paced: paced,
	}
	if paced {
		interval := time.Duration(float64(hop) / float64(data.SampleRate) * float64(time.Second))
		s.ticker = time.NewTicker(max(interval, time.Microsecond))
	}
	return s, nil
}

// SampleRate returns the sample rate of the underlying audio
func (s *BatchSource) SampleRate() int {
	return s.data.SampleRate
}

// ReadBatch copies the next batch into dst. The final batch may be short;
// after it ReadBatch returns io.EOF.
func (s *BatchSource) ReadBatch(ctx context.Context, dst []float64) (int, error) {
	s.mu.Lock()
	closed := s.closed
	ticker := s.ticker
	s.mu.Unlock()

	if closed {
		return 0, ErrSourceClosed
	}
	if ticker != nil {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.data.PCM) {
		return 0, io.EOF
	}
	end := min(s.pos+min(s.hop, len(dst)), len(s.data.PCM))
	n := copy(dst, s.data.PCM[s.pos:end])
	s.pos += n
	return n, nil
}

// Remaining returns the number of samples not yet delivered
func (s *BatchSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.PCM) - s.pos
}

// Close stops pacing; further reads fail
func (s *BatchSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}
