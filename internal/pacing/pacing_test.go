package pacing

import (
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegulator(mode Mode, speed float64) (*Regulator, *manualClock) {
	clk := &manualClock{t: time.Unix(1000, 0)}
	return NewRegulator(mode, speed, clk, nil), clk
}

func TestRegulatorHoldsEarlyPackets(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegulator(PerStream, 1)
	var a Anchor

	r.Begin()
	if !r.Admit(&a, 0) {
		t.Fatal("first packet should anchor and pass")
	}

	clk.Advance(10 * time.Millisecond)
	r.Begin()
	if r.Admit(&a, 40_000) {
		t.Fatal("packet due at 40ms released at 10ms")
	}
	if got, want := r.Wait(), 28*time.Millisecond; got != want {
		t.Errorf("wait: got %v, want %v", got, want)
	}

	clk.Advance(28 * time.Millisecond)
	r.Begin()
	if !r.Admit(&a, 40_000) {
		t.Error("packet within slack of its due time was held")
	}
	if got := r.Wait(); got != 0 {
		t.Errorf("wait after release: got %v, want 0", got)
	}
}

func TestRegulatorSpeed(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegulator(PerStream, -2)
	var a Anchor
	r.Begin()
	r.Admit(&a, 0)
	clk.Advance(20 * time.Millisecond)
	r.Begin()
	if !r.Admit(&a, 40_000) {
		t.Error("at double speed a 40ms packet is due after 20ms")
	}
}

func TestRegulatorShortWaitUsesSlack(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegulator(PerStream, 1)
	var a Anchor
	r.Begin()
	r.Admit(&a, 0)
	clk.Advance(time.Millisecond)
	r.Begin()
	r.Admit(&a, 4_000)
	if got := r.Wait(); got != Slack {
		t.Errorf("got %v, want %v", got, Slack)
	}
}

func TestRegulatorShared(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegulator(Shared, 1)
	var video, audio Anchor
	r.Begin()
	r.Admit(&video, 0)
	if r.Admit(&audio, 1_000_000) {
		t.Fatal("shared anchor should hold a stream starting 1s later")
	}
	clk.Advance(time.Second)
	r.Begin()
	if !r.Admit(&audio, 1_000_000) {
		t.Error("packet not released once due on the shared anchor")
	}
	if audio.set {
		t.Error("second stream should not anchor in shared mode")
	}
}

func TestRegulatorOffAlwaysAdmits(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegulator(Off, 1)
	var a Anchor
	r.Begin()
	r.Admit(&a, 0)
	if !r.Admit(&a, 10_000_000) {
		t.Error("pacing off held a packet")
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Mode{"off": Off, "on": PerStream, "sync": Shared, "": Off} {
		got, ok := ParseMode(in)
		if !ok || got != want {
			t.Errorf("ParseMode(%q): got %v %v, want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseMode("fast"); ok {
		t.Error("expected failure for unknown mode")
	}
}
