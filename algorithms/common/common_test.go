package common

import (
	"math"
	"math/rand"
	"testing"
)

func TestSampleBuffer_StartsZeroFilled(t *testing.T) {
	sb := NewSampleBuffer(4)
	got := sb.Snapshot(nil)
	if len(got) != 4 {
		t.Fatalf("expected length 4, got %d", len(got))
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}

func TestSampleBuffer_KeepsMostRecentInOrder(t *testing.T) {
	const size = 8
	sb := NewSampleBuffer(size)
	rng := rand.New(rand.NewSource(7))

	var history []float64
	next := 1.0
	for range 200 {
		batch := make([]float64, rng.Intn(size+1))
		for i := range batch {
			batch[i] = next
			next++
		}
		sb.Push(batch)
		history = append(history, batch...)

		want := make([]float64, size)
		if len(history) >= size {
			copy(want, history[len(history)-size:])
		} else {
			copy(want[size-len(history):], history)
		}

		got := sb.Snapshot(nil)
		if len(got) != size {
			t.Fatalf("length invariant broken: %d", len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("after %d samples: got %v, want %v", len(history), got, want)
			}
		}
	}
	if sb.TotalPushed() != int64(len(history)) {
		t.Fatalf("TotalPushed = %d, want %d", sb.TotalPushed(), len(history))
	}
}

func TestSampleBuffer_OversizedBatchKeepsTail(t *testing.T) {
	sb := NewSampleBuffer(3)
	sb.Push([]float64{1, 2})
	sb.Push([]float64{3, 4, 5, 6, 7})

	got := sb.Snapshot(make([]float64, 0, 3))
	want := []float64{5, 6, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	sb.Push([]float64{8})
	got = sb.Snapshot(got)
	want = []float64{6, 7, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSampleBuffer_Reset(t *testing.T) {
	sb := NewSampleBuffer(2)
	sb.Push([]float64{1, 2, 3})
	sb.Reset()
	for _, v := range sb.Snapshot(nil) {
		if v != 0 {
			t.Fatalf("expected zeros after reset")
		}
	}
	if sb.TotalPushed() != 0 {
		t.Fatalf("expected counter reset")
	}
}

func TestUpsample_MatchesLinearInterpolation(t *testing.T) {
	data := []float64{0, 10, 5}
	got := Upsample(data, 5, nil)
	if len(got) != 15 {
		t.Fatalf("expected 15 points, got %d", len(got))
	}
	for j, v := range got {
		want := LinearInterpolate(data, float64(j)/5)
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("point %d: got %v, want %v", j, v, want)
		}
	}
	if got[2] != 4 || got[7] != 8 {
		t.Fatalf("unexpected interpolation values %v", got)
	}
	// past the last knot the value is held
	if got[14] != 5 {
		t.Fatalf("expected held tail value 5, got %v", got[14])
	}
}

func TestNormalizeL2(t *testing.T) {
	data := []float64{3, 4}
	norm := NormalizeL2(data)
	if norm != 5 {
		t.Fatalf("norm = %v, want 5", norm)
	}
	if math.Abs(data[0]-0.6) > 1e-12 || math.Abs(data[1]-0.8) > 1e-12 {
		t.Fatalf("unexpected normalized data %v", data)
	}

	zeros := []float64{0, 0}
	if NormalizeL2(zeros) != 0 || !AllZero(zeros) {
		t.Fatalf("zero vector must stay zero")
	}
}

func TestSignalPowerAndArgMax(t *testing.T) {
	if p := SignalPower([]float64{1, -1, 1, -1}); p != 1 {
		t.Fatalf("power = %v, want 1", p)
	}
	if ArgMax(nil) != -1 {
		t.Fatalf("expected -1 for empty input")
	}
	if i := ArgMax([]float64{1, 5, 5, 2}); i != 1 {
		t.Fatalf("ArgMax = %d, want 1", i)
	}
}
