// Package ingest turns MPEG-TS byte streams, read from files or received
// from SRT publishers, into reframer inputs.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Registry errors.
var (
	ErrSessionLimit = errors.New("ingest: session limit reached")
	ErrDuplicateKey = errors.New("ingest: stream key already publishing")
)

// SessionStats captures connection-level counters of a publish session.
type SessionStats struct {
	BytesReceived int64  `json:"bytesReceived"`
	ReadCount     int64  `json:"readCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr"`
}

// Session is one live publisher. Bytes written by the network receiver
// come out of Reader, which the TS source consumes.
type Session struct {
	Key       string
	StartedAt time.Time

	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}

	bytesReceived atomic.Int64
	readCount     atomic.Int64
	remoteAddr    atomic.Value
}

// Reader returns the byte stream of the session. Closing it makes the
// receiver's next write fail, which ends the session.
func (s *Session) Reader() io.ReadCloser {
	return s.pr
}

// Done is closed once the session is unregistered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RecordRead counts one socket read of n bytes.
func (s *Session) RecordRead(n int) {
	s.bytesReceived.Add(int64(n))
	s.readCount.Add(1)
}

func (s *Session) SetRemoteAddr(addr string) {
	s.remoteAddr.Store(addr)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() SessionStats {
	addr, _ := s.remoteAddr.Load().(string)
	return SessionStats{
		BytesReceived: s.bytesReceived.Load(),
		ReadCount:     s.readCount.Load(),
		ConnectedAt:   s.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(s.StartedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}

// Registry tracks publish sessions by stream key and hands each new one
// to the onSession callback. A limit of zero means unlimited.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	limit    int

	onSession func(*Session)
}

// NewRegistry creates a Registry. onSession, if set, runs on its own
// goroutine for every registered session.
func NewRegistry(limit int, onSession func(*Session)) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		limit:     limit,
		onSession: onSession,
	}
}

// Full reports whether a new session would be refused.
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit > 0 && len(r.sessions) >= r.limit
}

// Register opens a session for key and returns the writer the network
// receiver copies into.
func (r *Registry) Register(key string) (*Session, io.Writer, error) {
	r.mu.Lock()
	if _, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	if r.limit > 0 && len(r.sessions) >= r.limit {
		r.mu.Unlock()
		return nil, nil, ErrSessionLimit
	}
	pr, pw := io.Pipe()
	s := &Session{
		Key:       key,
		StartedAt: time.Now(),
		pr:        pr,
		pw:        pw,
		done:      make(chan struct{}),
	}
	r.sessions[key] = s
	r.mu.Unlock()

	if r.onSession != nil {
		go r.onSession(s)
	}
	return s, pw, nil
}

// Unregister ends the session for key: its reader sees EOF and Done is
// closed.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if ok {
		s.pw.Close()
		close(s.done)
	}
}

// Get returns the session publishing key.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}
