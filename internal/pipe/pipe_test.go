package pipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zsiec/reframer/internal/media"
)

func TestInputQueueAndEOS(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	in := NewInput("video", media.Properties{media.PropTimescale: uint64(90000)})
	ctx := context.Background()

	for i := range 3 {
		if err := in.Push(ctx, tr.New(make([]byte, i+1))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if in.IsEOS() {
		t.Fatal("input at EOS with queued packets")
	}
	in.Close()
	if in.IsEOS() {
		t.Fatal("closed input at EOS with queued packets")
	}
	for i := range 3 {
		p := in.Packet()
		if p == nil {
			t.Fatalf("packet %d: got nil", i)
		}
		if len(p.Data) != i+1 {
			t.Errorf("packet %d: got %d bytes, want %d", i, len(p.Data), i+1)
		}
		in.DropPacket()
	}
	if !in.IsEOS() {
		t.Error("drained closed input not at EOS")
	}
	if tr.Live() != 0 {
		t.Errorf("live packets: got %d, want 0", tr.Live())
	}
}

func TestInputWake(t *testing.T) {
	t.Parallel()
	wake := make(chan struct{}, 1)
	in := NewInput("a", nil)
	in.SetWake(wake)
	if err := in.Push(context.Background(), media.New(nil)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-wake:
	default:
		t.Fatal("push did not wake consumer")
	}
	in.Close()
	select {
	case <-wake:
	default:
		t.Fatal("close did not wake consumer")
	}
}

func TestInputBackpressure(t *testing.T) {
	t.Parallel()
	in := NewInput("a", nil)
	in.SetMaxBytes(10)
	ctx := context.Background()

	if err := in.Push(ctx, media.New(make([]byte, 8))); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- in.Push(ctx, media.New(make([]byte, 8))) }()

	select {
	case <-done:
		t.Fatal("push over the bound did not block")
	case <-time.After(20 * time.Millisecond):
	}
	in.DropPacket()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("push not released after drop")
	}
	if in.Len() != 1 {
		t.Errorf("len: got %d, want 1", in.Len())
	}
}

func TestInputPushCanceled(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	in := NewInput("a", nil)
	in.SetMaxBytes(1)
	if err := in.Push(context.Background(), tr.New(make([]byte, 4))); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := in.Push(ctx, tr.New(make([]byte, 4)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if tr.Live() != 1 {
		t.Errorf("live packets: got %d, want 1", tr.Live())
	}
}

func TestInputStopPlayGeneration(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	var seen []media.EventType
	in := NewInput("a", nil)
	in.SetEventHandler(func(ev media.Event) { seen = append(seen, ev.Type) })
	ctx := context.Background()

	gen := in.Generation()
	_ = in.PushGen(ctx, gen, tr.New([]byte{1}))
	in.SendEvent(media.Event{Type: media.EventStop})
	if in.Len() != 0 {
		t.Fatalf("stop kept %d packets", in.Len())
	}
	_ = in.Push(ctx, tr.New([]byte{2}))
	if in.Len() != 0 {
		t.Fatal("stopped input accepted a packet")
	}

	in.SendEvent(media.Event{Type: media.EventPlay, Start: 4})
	_ = in.PushGen(ctx, gen, tr.New([]byte{3}))
	if in.Len() != 0 {
		t.Fatal("stale generation accepted")
	}
	_ = in.PushGen(ctx, in.Generation(), tr.New([]byte{4}))
	if in.Len() != 1 {
		t.Fatalf("len: got %d, want 1", in.Len())
	}
	in.DropPacket()

	if len(seen) != 2 || seen[0] != media.EventStop || seen[1] != media.EventPlay {
		t.Errorf("handler events: got %v", seen)
	}
	if evs := in.Events(); len(evs) != 2 || evs[1].Start != 4 {
		t.Errorf("recorded events: got %+v", evs)
	}
	if tr.Live() != 0 {
		t.Errorf("live packets: got %d, want 0", tr.Live())
	}
}

func TestInputCloseGen(t *testing.T) {
	t.Parallel()
	in := NewInput("a", nil)
	stale := in.Generation()
	in.SendEvent(media.Event{Type: media.EventPlay})

	in.CloseGen(stale)
	if in.IsEOS() {
		t.Fatal("stale producer closed the input")
	}
	in.CloseGen(in.Generation())
	if !in.IsEOS() {
		t.Fatal("current producer did not close the input")
	}
}

func TestInputDiscard(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	in := NewInput("a", nil)
	_ = in.Push(context.Background(), tr.New([]byte{1}))
	in.SetDiscard(true)
	if !in.IsEOS() {
		t.Error("discarding input not at EOS")
	}
	_ = in.Push(context.Background(), tr.New([]byte{2}))
	if tr.Live() != 0 {
		t.Errorf("live packets: got %d, want 0", tr.Live())
	}
}

func TestOutputProps(t *testing.T) {
	t.Parallel()
	o := NewOutput()
	o.CopyProps(media.Properties{"A": 1, media.PropDelay: int64(5)})
	o.SetProp(media.PropDelay, nil)
	o.PushProps(media.Properties{"B": "x"})

	props := o.Props()
	if _, ok := props[media.PropDelay]; ok {
		t.Error("nil SetProp did not remove the property")
	}
	if props["A"] != 1 || props["B"] != "x" {
		t.Errorf("props: got %v", props)
	}
	if len(o.Pushed()) != 1 {
		t.Errorf("pushed: got %d, want 1", len(o.Pushed()))
	}
	o.ResetProps()
	if len(o.Props()) != 0 {
		t.Errorf("reset props: got %v", o.Props())
	}
}

func TestOutputRelease(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	o := NewOutput()
	var n int
	o.SetSendHandler(func(*media.Packet) { n++ })
	o.Send(tr.New([]byte{1}))
	o.Send(tr.New([]byte{2}))
	o.SetEOS()
	if n != 2 || len(o.Packets()) != 2 || !o.EOS() {
		t.Fatalf("got %d handled, %d packets, eos %v", n, len(o.Packets()), o.EOS())
	}
	o.Release()
	if tr.Live() != 0 {
		t.Errorf("live packets: got %d, want 0", tr.Live())
	}
}

func TestOutputTake(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	o := NewOutput()
	o.Send(tr.New([]byte{1}))
	o.Send(tr.New([]byte{2}))

	got := o.Take()
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if len(o.Packets()) != 0 {
		t.Error("output still holds taken packets")
	}
	o.Release()
	if tr.Live() != 2 {
		t.Errorf("live packets after Release: got %d, want 2", tr.Live())
	}
	release(got)
	if tr.Live() != 0 {
		t.Errorf("live packets: got %d, want 0", tr.Live())
	}
}
