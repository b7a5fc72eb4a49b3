// Package pipeline drives one reframing session: it connects the inputs
// of an ingest source to a Reframer, runs the reframer's scheduling loop
// and drains what it emits into a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pipe"
	"github.com/zsiec/reframer/internal/reframe"
	"github.com/zsiec/reframer/internal/sink"
)

// idlePoll bounds how long an idle loop sleeps without a wake-up.
const idlePoll = 250 * time.Millisecond

// Source is the subset of ingest.Source the pipeline drives.
type Source interface {
	Probe(ctx context.Context) error
	Inputs() []*pipe.Input
	// Sync forwards the control events of the last reframer step.
	Sync()
	Run(ctx context.Context) error
}

// Sink is the subset of sink.Sink the pipeline writes to.
type Sink interface {
	Add(name string, out *pipe.Output)
	Drain() error
	Close() error
	Files() []sink.File
}

// Stats receives pipeline level telemetry.
type Stats interface {
	SetFilesWritten(n int)
}

type nopStats struct{}

func (nopStats) SetFilesWritten(int) {}

// Snapshot is a point-in-time view of a running pipeline.
type Snapshot struct {
	Steps   int64 `json:"steps"`
	Waits   int64 `json:"waits"`
	Streams int   `json:"streams"`
	Files   int   `json:"files"`
}

// Pipeline bridges a Source, a Reframer and a Sink.
type Pipeline struct {
	log   *slog.Logger
	src   Source
	sink  Sink
	opts  reframe.Options
	stats Stats

	streams atomic.Int32
	steps   atomic.Int64
	waits   atomic.Int64
	files   atomic.Int32
}

// New creates a Pipeline. If log is nil, slog.Default() is used.
func New(src Source, opts reframe.Options, snk Sink, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:   log.With("component", "pipeline"),
		src:   src,
		sink:  snk,
		opts:  opts,
		stats: nopStats{},
	}
}

// SetStats registers a telemetry receiver.
func (p *Pipeline) SetStats(st Stats) {
	if st == nil {
		st = nopStats{}
	}
	p.stats = st
}

// Snapshot returns the current counters.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Steps:   p.steps.Load(),
		Waits:   p.waits.Load(),
		Streams: int(p.streams.Load()),
		Files:   int(p.files.Load()),
	}
}

// Run probes the source, then reframes it until every stream reaches end
// of stream or ctx is cancelled. The sink is closed before Run returns.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		err = errors.Join(err, p.sink.Close())
		p.updateFiles()
	}()

	if err := p.src.Probe(ctx); err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	r, err := reframe.New(p.opts, p.log)
	if err != nil {
		return err
	}
	defer r.Close()

	wake := make(chan struct{}, 1)
	inputs := p.src.Inputs()
	for _, in := range inputs {
		out := pipe.NewOutput()
		in.SetWake(wake)
		if err := r.Configure(in, out); err != nil {
			return err
		}
		p.sink.Add(in.Name(), out)
	}
	p.streams.Store(int32(len(inputs)))
	for _, in := range inputs {
		if err := r.HandleEvent(in, media.Event{Type: media.EventPlay, Speed: 1}); err != nil {
			return err
		}
	}
	p.src.Sync()
	p.log.Info("pipeline started", "streams", len(inputs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.src.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return p.loop(ctx, r, wake)
	})
	return g.Wait()
}

func (p *Pipeline) loop(ctx context.Context, r *reframe.Reframer, wake <-chan struct{}) error {
	timer := time.NewTimer(idlePoll)
	defer timer.Stop()

	for {
		res, err := r.Process()
		p.steps.Add(1)
		p.src.Sync()
		if derr := p.sink.Drain(); derr != nil {
			return derr
		}
		p.updateFiles()
		if err != nil {
			return fmt.Errorf("reframe: %w", err)
		}

		var wait time.Duration
		switch res.Status {
		case reframe.StatusEOS:
			p.log.Info("pipeline finished", "steps", p.steps.Load(), "files", p.files.Load())
			return nil
		case reframe.StatusAgain:
			if ctx.Err() != nil {
				return nil
			}
			continue
		case reframe.StatusWait:
			p.waits.Add(1)
			wait = res.Wait
		default:
			wait = idlePoll
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-timer.C:
		}
	}
}

func (p *Pipeline) updateFiles() {
	n := len(p.sink.Files())
	p.files.Store(int32(n))
	p.stats.SetFilesWritten(n)
}
