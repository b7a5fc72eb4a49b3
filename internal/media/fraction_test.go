package media

import (
	"math"
	"testing"
)

func TestFractionCmp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b Fraction
		want int
	}{
		{Fraction{1, 2}, Fraction{2, 4}, 0},
		{Fraction{1, 3}, Fraction{1, 2}, -1},
		{Fraction{10, 1}, Fraction{9999, 1000}, 1},
		{Fraction{math.MaxUint64, 3}, Fraction{math.MaxUint64, 2}, -1},
	}
	for _, tt := range tests {
		if got := tt.a.Cmp(tt.b); got != tt.want {
			t.Errorf("%v cmp %v: got %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFractionAdd(t *testing.T) {
	t.Parallel()
	if got := (Fraction{3, 1000}).Add(Fraction{7, 1000}); got != (Fraction{10, 1000}) {
		t.Errorf("same denominator: got %v", got)
	}
	if got := (Fraction{1, 2}).Add(Fraction{1, 3}); got != (Fraction{5, 6}) {
		t.Errorf("mixed denominators: got %v", got)
	}
}

func TestRescale(t *testing.T) {
	t.Parallel()
	if got := Rescale(48000, 90000, 48000); got != 90000 {
		t.Errorf("got %d, want 90000", got)
	}
	// 1<<62 * 90000 overflows 64 bits but the quotient does not.
	if got := Rescale(1<<62, 90000, 180000); got != 1<<61 {
		t.Errorf("wide product: got %d, want %d", got, uint64(1<<61))
	}
	if got := Rescale(math.MaxUint64, 2, 1); got != math.MaxUint64-1 {
		t.Errorf("overflow should saturate: got %d", got)
	}
}

func TestSamplesBetween(t *testing.T) {
	t.Parallel()
	// Packet at 9.99s on a 1000 timescale, boundary at 10s, 48kHz audio.
	if got := SamplesBetween(9990, 1000, Fraction{10, 1}, 48000); got != 480 {
		t.Errorf("got %d, want 480", got)
	}
	if got := SamplesBetween(10000, 1000, Fraction{10, 1}, 48000); got != 0 {
		t.Errorf("boundary not after ts: got %d, want 0", got)
	}
	// 1/3 s at 44.1kHz is 14700 samples exactly.
	if got := SamplesBetween(0, 90000, Fraction{1, 3}, 44100); got != 14700 {
		t.Errorf("got %d, want 14700", got)
	}
}
