package ingest

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, nil)
	s, w, err := r.Register("cam1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if s.Key != "cam1" {
		t.Fatalf("got key %q, want %q", s.Key, "cam1")
	}
	if w == nil {
		t.Fatal("writer is nil")
	}
	got, ok := r.Get("cam1")
	if !ok || got != s {
		t.Fatal("Get did not return the registered session")
	}
}

func TestRegistryRejectsDuplicateKey(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, nil)
	if _, _, err := r.Register("cam1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := r.Register("cam1"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
}

func TestRegistryLimit(t *testing.T) {
	t.Parallel()

	r := NewRegistry(1, nil)
	if _, _, err := r.Register("a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.Full() {
		t.Error("registry with one session of one should be full")
	}
	if _, _, err := r.Register("b"); !errors.Is(err, ErrSessionLimit) {
		t.Fatalf("got %v, want ErrSessionLimit", err)
	}
	r.Unregister("a")
	if _, _, err := r.Register("b"); err != nil {
		t.Fatalf("Register after Unregister: %v", err)
	}
}

func TestRegistryUnregisterEndsSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, nil)
	s, _, _ := r.Register("cam1")
	r.Unregister("cam1")
	// Unknown keys are ignored.
	r.Unregister("cam1")

	if _, ok := r.Get("cam1"); ok {
		t.Fatal("session still found after Unregister")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
	buf := make([]byte, 1)
	if _, err := s.Reader().Read(buf); err != io.EOF {
		t.Fatalf("got %v, want EOF", err)
	}
}

func TestRegistryDispatchesSession(t *testing.T) {
	t.Parallel()

	got := make(chan *Session, 1)
	r := NewRegistry(0, func(s *Session) { got <- s })
	s, w, _ := r.Register("cam1")

	select {
	case d := <-got:
		if d != s {
			t.Fatal("callback got a different session")
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}

	go func() {
		w.Write([]byte("ts"))
		r.Unregister("cam1")
	}()
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "ts" {
		t.Errorf("got %q, want %q", data, "ts")
	}
}

func TestSessionStats(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0, nil)
	s, _, _ := r.Register("cam1")
	s.RecordRead(100)
	s.RecordRead(50)
	s.SetRemoteAddr("10.0.0.1:9000")

	st := s.Stats()
	if st.BytesReceived != 150 {
		t.Errorf("bytes: got %d, want 150", st.BytesReceived)
	}
	if st.ReadCount != 2 {
		t.Errorf("reads: got %d, want 2", st.ReadCount)
	}
	if st.RemoteAddr != "10.0.0.1:9000" {
		t.Errorf("remote: got %q", st.RemoteAddr)
	}
}
