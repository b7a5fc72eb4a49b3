package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/reframer/internal/config"
	"github.com/zsiec/reframer/internal/ingest"
	"github.com/zsiec/reframer/internal/ingest/srt"
)

var errLiveReopen = errors.New("live stream cannot be reopened")

// inputKind classifies an input URL.
type inputKind int

const (
	inputFile inputKind = iota
	inputListen
	inputPull
)

type inputTarget struct {
	kind     inputKind
	path     string
	addr     string
	streamID string
}

// parseInput maps a file path, "srt://:port" or "srt://host:port" to an
// input. A streamid query parameter takes precedence over fallbackID.
func parseInput(raw, fallbackID string) (inputTarget, error) {
	if !strings.HasPrefix(raw, "srt://") {
		if raw == "" {
			return inputTarget{}, errors.New("input is required")
		}
		return inputTarget{kind: inputFile, path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return inputTarget{}, fmt.Errorf("input %q: %w", raw, err)
	}
	if u.Port() == "" {
		return inputTarget{}, fmt.Errorf("input %q: port is required", raw)
	}
	target := inputTarget{addr: u.Host, streamID: fallbackID}
	if id := u.Query().Get("streamid"); id != "" {
		target.streamID = id
	}
	if u.Hostname() == "" {
		target.kind = inputListen
	} else {
		target.kind = inputPull
	}
	return target, nil
}

// openInput returns the opener of the configured input and whether it can
// be reopened for seeking. Listeners are started on g.
func openInput(ctx context.Context, g *errgroup.Group, cfg *config.Config, log *slog.Logger) (ingest.Opener, bool, error) {
	target, err := parseInput(cfg.Input.URL, cfg.Input.StreamID)
	if err != nil {
		return nil, false, err
	}

	switch target.kind {
	case inputListen:
		sessions := make(chan *ingest.Session, 1)
		var taken atomic.Bool
		registry := ingest.NewRegistry(1, func(s *ingest.Session) {
			// Only the first publisher feeds the run; later ones are cut off.
			if taken.Swap(true) {
				log.Warn("publisher refused, stream already consumed", "stream_key", s.Key)
				s.Reader().Close()
				return
			}
			sessions <- s
		})
		srv := srt.NewServer(target.addr, registry, log)
		srv.SetStreamKey(cfg.Input.StreamKey)
		g.Go(func() error {
			return srv.Start(ctx)
		})
		return liveOpener(ctx, sessions), false, nil

	case inputPull:
		registry := ingest.NewRegistry(1, nil)
		sess, err := srt.Pull(ctx, target.addr, target.streamID, registry, log)
		if err != nil {
			return nil, false, err
		}
		sessions := make(chan *ingest.Session, 1)
		sessions <- sess
		return liveOpener(ctx, sessions), false, nil
	}
	return ingest.FileOpener(target.path), true, nil
}

// liveOpener waits for the first session and hands out its stream once.
func liveOpener(ctx context.Context, sessions <-chan *ingest.Session) ingest.Opener {
	used := false
	return func() (io.ReadCloser, error) {
		if used {
			return nil, errLiveReopen
		}
		select {
		case s := <-sessions:
			used = true
			return s.Reader(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
