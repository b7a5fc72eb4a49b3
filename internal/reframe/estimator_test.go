package reframe

import "testing"

func ms(v uint64) cutPoint { return cutPoint{ts: v, scale: 1000} }

func TestSizeEstimator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		round    Rounding
		second   uint64
		wantCut  uint64
		wantSize uint64
		wantPrev bool
	}{
		{"before", RoundBefore, 1200, 1000, 600, true},
		{"after", RoundAfter, 1200, 2000, 1200, false},
		{"closest picks after", RoundClosest, 1200, 2000, 1200, false},
		{"closest picks before", RoundClosest, 1500, 1000, 600, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := sizeEstimator{target: 1000, round: tt.round}

			if d, _, _ := e.decide(ms(1000), 600, false); d != sizeWait {
				t.Fatalf("incomplete chunk: got %v, want wait", d)
			}
			if d, _, _ := e.decide(ms(1000), 600, true); d != sizeExtend {
				t.Fatalf("small chunk: got %v, want extend", d)
			}
			if e.depth != 1 {
				t.Errorf("depth: got %d, want 1", e.depth)
			}
			d, cut, prev := e.decide(ms(2000), tt.second, true)
			if d != sizeAccept {
				t.Fatalf("large chunk: got %v, want accept", d)
			}
			if cut.ts != tt.wantCut || e.size != tt.wantSize || prev != tt.wantPrev {
				t.Errorf("got cut %d size %d prev %v, want %d %d %v",
					cut.ts, e.size, prev, tt.wantCut, tt.wantSize, tt.wantPrev)
			}
			if e.depth != 0 || e.prev.valid() {
				t.Error("estimator not reset after accept")
			}
		})
	}
}

func TestSizeEstimatorFirstChunkTooLarge(t *testing.T) {
	t.Parallel()
	e := sizeEstimator{target: 1000, round: RoundBefore}
	d, cut, prev := e.decide(ms(1000), 5000, true)
	if d != sizeAccept || cut.ts != 1000 || prev {
		t.Errorf("got %v cut %d prev %v, want accept at 1000", d, cut.ts, prev)
	}
}

func TestCutPointOffers(t *testing.T) {
	t.Parallel()
	var lo, hi cutPoint
	for _, c := range []cutPoint{{ts: 90000, scale: 90000}, {ts: 500, scale: 1000}, {ts: 96000, scale: 48000}} {
		lo.offerMin(c.ts, c.scale)
		hi.offerMax(c.ts, c.scale)
	}
	if lo.in(1000) != 500 {
		t.Errorf("min: got %d ms, want 500", lo.in(1000))
	}
	if hi.in(1000) != 2000 {
		t.Errorf("max: got %d ms, want 2000", hi.in(1000))
	}
}
