package common

// SampleBuffer is a fixed-length sliding window over a sample stream.
//
// It always holds exactly Size() samples (zeros until enough audio has been
// pushed). Push appends a batch and discards the same number of oldest
// samples in O(len(batch)); Snapshot copies the window out oldest-first.
type SampleBuffer struct {
	buffer   []float64
	size     int
	writePos int // index of the oldest sample, next to be overwritten
	total    int64
}

// NewSampleBuffer creates a zero-filled window of the given size
func NewSampleBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	return &SampleBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Push appends a batch of samples, dropping the oldest ones.
// A batch longer than the window leaves only its last Size() samples.
func (sb *SampleBuffer) Push(batch []float64) {
	sb.total += int64(len(batch))

	if len(batch) >= sb.size {
		copy(sb.buffer, batch[len(batch)-sb.size:])
		sb.writePos = 0
		return
	}

	n := copy(sb.buffer[sb.writePos:], batch)
	if n < len(batch) {
		copy(sb.buffer, batch[n:])
	}
	sb.writePos = (sb.writePos + len(batch)) % sb.size
}

// Snapshot writes the window, oldest sample first, into dst and returns it.
// dst is reallocated when its capacity is smaller than Size().
func (sb *SampleBuffer) Snapshot(dst []float64) []float64 {
	if cap(dst) < sb.size {
		dst = make([]float64, sb.size)
	}
	dst = dst[:sb.size]

	n := copy(dst, sb.buffer[sb.writePos:])
	copy(dst[n:], sb.buffer[:sb.writePos])
	return dst
}

// Size returns the window length
func (sb *SampleBuffer) Size() int {
	return sb.size
}

// TotalPushed returns how many samples have been pushed since creation or Reset
func (sb *SampleBuffer) TotalPushed() int64 {
	return sb.total
}

// Reset zeroes the window
func (sb *SampleBuffer) Reset() {
	for i := range sb.buffer {
		sb.buffer[i] = 0.0
	}
	sb.writePos = 0
	sb.total = 0
}
