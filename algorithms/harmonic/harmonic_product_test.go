package harmonic

import (
	"math"
	"testing"
)

func TestHarmonicProduct_FindsFundamental(t *testing.T) {
	spectrum := make([]float64, 64)
	spectrum[10] = 1
	spectrum[20] = 1
	spectrum[30] = 1

	hp := NewHarmonicProduct(3)
	hps, ok := hp.ComputeHPS(spectrum)
	if !ok {
		t.Fatalf("expected a product for a non-empty spectrum")
	}
	if len(hps) != 64 {
		t.Fatalf("expected product length 64 after 3 folds, got %d", len(hps))
	}

	// 5 Hz bins, fundamental at bin 10
	freq := hp.PeakFrequency(hps, 640, 128)
	if math.Abs(freq-50) > 1e-9 {
		t.Fatalf("expected 50 Hz, got %v", freq)
	}
	if hp.ResolutionHz(640, 128) != 5.0/3.0 {
		t.Fatalf("unexpected resolution %v", hp.ResolutionHz(640, 128))
	}
}

func TestHarmonicProduct_KeepsLastNonZeroProduct(t *testing.T) {
	// a lone partial has nothing at twice its frequency
	spectrum := make([]float64, 64)
	spectrum[40] = 1

	hp := NewHarmonicProduct(3)
	hps, ok := hp.ComputeHPS(spectrum)
	if !ok {
		t.Fatalf("expected a product")
	}
	if len(hps) != 192 {
		t.Fatalf("expected the squared spectrum to be kept, got length %d", len(hps))
	}
	if freq := hp.PeakFrequency(hps, 640, 128); math.Abs(freq-200) > 1e-9 {
		t.Fatalf("expected 200 Hz, got %v", freq)
	}
}

func TestHarmonicProduct_ZeroSpectrum(t *testing.T) {
	hp := NewHarmonicProduct(5)
	if _, ok := hp.ComputeHPS(make([]float64, 32)); ok {
		t.Fatalf("all-zero spectrum must not produce a product")
	}
	if _, ok := hp.ComputeHPS(nil); ok {
		t.Fatalf("empty spectrum must not produce a product")
	}
}

func TestHarmonicProduct_ReusesBuffersAcrossFrames(t *testing.T) {
	a := make([]float64, 64)
	a[10], a[20] = 1, 1
	b := make([]float64, 64)
	b[12], b[24] = 1, 1

	hp := NewHarmonicProduct(2)
	hps, _ := hp.ComputeHPS(a)
	first := hp.PeakFrequency(hps, 64, 128)
	hps, _ = hp.ComputeHPS(b)
	second := hp.PeakFrequency(hps, 64, 128)

	if math.Abs(first-5) > 1e-9 || math.Abs(second-6) > 1e-9 {
		t.Fatalf("expected 5 Hz then 6 Hz, got %v then %v", first, second)
	}
}
