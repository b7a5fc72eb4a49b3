package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/reframer/internal/ingest"
)

// readBufferSize is the buffer for SRT socket reads: ten 1316-byte SRT
// payloads of seven TS packets each.
const readBufferSize = 1316 * 10

// latencyNs is the SRT receive latency in nanoseconds (120ms).
const latencyNs = 120_000_000

// Server accepts SRT publish connections and registers them as ingest
// sessions.
type Server struct {
	log      *slog.Logger
	addr     string
	key      string
	registry *ingest.Registry
}

// NewServer creates an SRT listener on addr. If log is nil,
// slog.Default() is used.
func NewServer(addr string, registry *ingest.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:      log.With("component", "srt-server"),
		addr:     addr,
		registry: registry,
	}
}

// SetStreamKey restricts publishing to one stream key. An empty key
// accepts any.
func (s *Server) SetStreamKey(key string) {
	s.key = key
}

// Start accepts connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = latencyNs

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if !s.accepts(req.StreamID) || s.registry.Full() {
			return srtgo.RejPeer
		}
		return 0
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		key := streamKey(conn.StreamID())
		s.log.Info("publish", "stream_key", key, "remote", conn.RemoteAddr())
		go s.handleConnection(ctx, conn, key)
	}
}

func (s *Server) accepts(streamID string) bool {
	if s.key == "" {
		return true
	}
	return streamKey(streamID) == s.key
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn, key string) {
	defer conn.Close()

	sess, w, err := s.registry.Register(key)
	if err != nil {
		s.log.Warn("publish refused", "stream_key", key, "error", err)
		return
	}
	sess.SetRemoteAddr(conn.RemoteAddr().String())
	receive(ctx, conn, sess, w, s.log)
	s.registry.Unregister(key)

	st := sess.Stats()
	s.log.Info("connection closed", "stream_key", key,
		"bytes", st.BytesReceived, "reads", st.ReadCount, "uptime_ms", st.UptimeMs)
}

// receive copies the connection into the session until either side ends.
func receive(ctx context.Context, conn io.Reader, sess *ingest.Session, w io.Writer, log *slog.Logger) {
	buf := make([]byte, readBufferSize)
	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("read error", "stream_key", sess.Key, "error", err)
			}
			return
		}
		sess.RecordRead(n)
		if _, err := w.Write(buf[:n]); err != nil {
			log.Debug("session closed by consumer", "stream_key", sess.Key, "error", err)
			return
		}
	}
}

// streamKey maps an SRT stream id such as "/live/cam1" to "cam1".
func streamKey(streamID string) string {
	streamID = strings.TrimPrefix(streamID, "/")
	streamID = strings.TrimPrefix(streamID, "live/")
	if streamID == "" {
		return "default"
	}
	return streamID
}
