package srt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/reframer/internal/ingest"
)

const dialTimeout = 10 * time.Second

// Pull dials a remote SRT listener and registers the stream it sends as a
// session under the key derived from streamID. Receiving continues in the
// background until ctx ends or the remote closes. If log is nil,
// slog.Default() is used.
func Pull(ctx context.Context, addr, streamID string, registry *ingest.Registry, log *slog.Logger) (*ingest.Session, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-caller")
	if addr == "" {
		return nil, fmt.Errorf("SRT pull: address is required")
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = latencyNs
	cfg.StreamID = streamID

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(addr, cfg)
		ch <- dialResult{conn, err}
	}()
	// A dial that completes after we gave up must still be closed.
	abandon := func() {
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
	}

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	var conn *srtgo.Conn
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("SRT dial %s: %w", addr, res.err)
		}
		conn = res.conn
	case <-timer.C:
		abandon()
		return nil, fmt.Errorf("SRT dial %s timed out after %s", addr, dialTimeout)
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	}

	key := streamKey(streamID)
	sess, w, err := registry.Register(key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sess.SetRemoteAddr(addr)
	log.Info("connected", "address", addr, "stream_key", key)

	go func() {
		defer conn.Close()
		receive(ctx, conn, sess, w, log)
		registry.Unregister(key)
		st := sess.Stats()
		log.Info("pull ended", "stream_key", key,
			"bytes", st.BytesReceived, "reads", st.ReadCount, "uptime_ms", st.UptimeMs)
	}()
	return sess, nil
}
