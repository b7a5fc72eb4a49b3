package reframe

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/zsiec/reframer/internal/boundary"
	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pacing"
)

// rangeState is the lifecycle of range extraction.
type rangeState uint8

const (
	// stateNone: no ranges configured, packets pass through.
	stateNone rangeState = iota
	stateClosed
	stateOpen
	// stateDone: every range was produced; remaining input is discarded.
	stateDone
)

func (s rangeState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateDone:
		return "done"
	default:
		return "none"
	}
}

type eosState uint8

const (
	eosNone eosState = iota
	eosDone
	eosUnsupported
)

// Status tells the host what to do after a Process call.
type Status uint8

const (
	// StatusIdle: nothing more can be done until new input arrives.
	StatusIdle Status = iota
	// StatusAgain: call Process again right away.
	StatusAgain
	// StatusWait: call Process again after Result.Wait, or earlier on input.
	StatusWait
	// StatusEOS: every output reached end of stream.
	StatusEOS
)

func (s Status) String() string {
	switch s {
	case StatusAgain:
		return "again"
	case StatusWait:
		return "wait"
	case StatusEOS:
		return "eos"
	default:
		return "idle"
	}
}

// Result is the outcome of a Process call.
type Result struct {
	Status Status
	Wait   time.Duration
}

// Reframer is the stream reframing engine. See the package documentation.
type Reframer struct {
	log   *slog.Logger
	opts  Options
	stats StatsRecorder
	pacer *pacing.Regulator

	streams []*stream

	state      rangeState
	mode       boundary.Mode
	win        window
	rangeIdx   int
	fileIdx    uint32
	extractDur media.Fraction

	// rangeExtraction is set for time, frame and duration ranges, as
	// opposed to access point and size splitting.
	rangeExtraction bool

	seekable   bool
	seeked     bool
	inRange    bool
	hasSeenEOS bool
	waitAdjust bool
	eos        eosState
	nbNonSAPs  int

	cut cutPoint
	est sizeEstimator

	videoFrames             uint64
	videoFramesAtRangeStart uint64

	progress bool
	again    bool
}

// New validates opts and returns a Reframer positioned on its first
// range. If log is nil, slog.Default() is used.
func New(opts Options, log *slog.Logger) (*Reframer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "reframe")
	r := &Reframer{
		log:      log,
		opts:     opts,
		stats:    opts.Stats,
		pacer:    pacing.NewRegulator(opts.RealTime, opts.Speed, opts.Clock, log),
		seekable: true,
	}
	if r.stats == nil {
		r.stats = nopStats{}
	}
	r.est.round = opts.Round
	r.loadRange()
	return r, nil
}

func (r *Reframer) lookup(in Input) *stream {
	for _, st := range r.streams {
		if st.in == in {
			return st
		}
	}
	return nil
}

// Configure adds a stream for in, or refreshes it after a property
// change. out is required the first time an input is configured.
func (r *Reframer) Configure(in Input, out Output) error {
	st := r.lookup(in)
	if st == nil {
		if out == nil {
			return fmt.Errorf("configure %s: %w", in.Name(), ErrBadOption)
		}
		st = newStream(in, out)
		r.streams = append(r.streams, st)
	}
	props := in.Props()
	st.configure(props)
	if !st.allSAPs {
		r.nbNonSAPs--
		st.allSAPs = true
	}
	// Set again once the stream shows predictive coding.
	st.needsAdjust = false
	if props.PlaybackMode() < media.PlaybackSeek {
		r.seekable = false
	}
	r.pushProps(st)
	if r.rangeIdx > 0 && r.rangeIdx <= len(r.opts.Props) {
		st.out.PushProps(r.opts.Props[r.rangeIdx-1])
	}
	if r.state == stateDone {
		st.in.SetDiscard(true)
		r.signalEOS(st)
	}
	r.log.Debug("stream configured", "stream", st.name, "type", st.kind, "codec", st.codec,
		"timescale", st.timescale, "seekable", r.seekable)
	return nil
}

// Remove drops the stream of in and releases every packet it holds.
func (r *Reframer) Remove(in Input) {
	i := slices.IndexFunc(r.streams, func(st *stream) bool { return st.in == in })
	if i < 0 {
		return
	}
	st := r.streams[i]
	st.reset()
	r.pacer.Forget(&st.anchor)
	if !st.allSAPs {
		r.nbNonSAPs--
	}
	r.streams = slices.Delete(r.streams, i, i+1)
}

// Close releases every packet held by every stream.
func (r *Reframer) Close() {
	for _, st := range r.streams {
		st.reset()
	}
	r.streams = nil
}

func (r *Reframer) pushProps(st *stream) {
	st.out.ResetProps()
	st.out.CopyProps(st.in.Props())
	// Packets outside the range are dropped, so the delay no longer applies.
	if r.state != stateNone && st.delay > 0 {
		st.out.SetProp(media.PropDelay, nil)
	}
	if r.opts.sapAllowed(media.SAP1) || r.opts.sapAllowed(media.SAP2) {
		st.out.SetProp(media.PropHasSync, false)
	}
}

func (r *Reframer) signalEOS(st *stream) {
	if st.eosSignaled {
		return
	}
	st.eosSignaled = true
	st.out.SetEOS()
}

// Process runs one scheduling pass: it pulls at most one packet per input
// into the range machinery, then forwards whatever is ready.
func (r *Reframer) Process() (Result, error) {
	switch r.eos {
	case eosUnsupported:
		return Result{Status: StatusEOS}, ErrNotSupported
	case eosDone:
		return Result{Status: StatusEOS}, nil
	}
	if len(r.streams) == 0 {
		return Result{Status: StatusIdle}, nil
	}
	r.progress, r.again = false, false
	if r.pacer.Enabled() {
		r.pacer.Begin()
	}

	if r.state == stateClosed || r.state == stateOpen {
		fr, err := r.fetch()
		if err != nil {
			return Result{Status: StatusEOS}, err
		}
		if fr.checkSplit {
			r.checkSplitPoint()
		}
		if !r.inRange && fr.reached == len(r.streams) && fr.notPlaying < len(r.streams) && r.rangeExtraction {
			switch r.alignRangeStart() {
			case alignRetry:
				return r.result(), nil
			case alignEOS:
				r.eos = eosDone
				return Result{Status: StatusEOS}, nil
			case alignNextRange:
				if r.nextRange() == len(r.streams) || r.state == stateDone {
					r.eos = eosDone
					return Result{Status: StatusEOS}, nil
				}
				return r.result(), nil
			}
			r.progress = true
		}
		if !r.inRange {
			return r.result(), nil
		}
	}

	eos, endOfRange := r.drain()
	if endOfRange+eos == len(r.streams) && r.state != stateNone && r.state != stateDone {
		// A later range may still seek back into the input, so only the
		// streams nextRange closes count.
		if eos = r.nextRange(); eos == len(r.streams) || r.state == stateDone {
			eos = len(r.streams)
			r.eos = eosDone
		}
	}
	if eos == len(r.streams) {
		return Result{Status: StatusEOS}, nil
	}
	return r.result(), nil
}

func (r *Reframer) result() Result {
	if r.again || r.progress {
		return Result{Status: StatusAgain}
	}
	if w := r.pacer.Wait(); w > 0 {
		return Result{Status: StatusWait, Wait: w}
	}
	return Result{Status: StatusIdle}
}

// drain forwards ready packets of every stream. It returns how many
// streams are at end of stream and how many reached the range end.
func (r *Reframer) drain() (eos, endOfRange int) {
	queued := r.state == stateClosed || r.state == stateOpen
	for _, st := range r.streams {
		for {
			var p *media.Packet
			if queued {
				p = st.queue.head()
				if p != nil && !r.rangeExtraction && st.rangeEnd.ok && st.ts(p) >= st.rangeEnd.v {
					endOfRange++
					break
				}
			} else {
				p = st.in.Packet()
			}
			if p == nil {
				switch {
				case st.rangeEnd.ok:
					endOfRange++
				case queued && st.reinsert.get() != nil && st.in.IsEOS():
					// Reinserted at the start of the next range.
					endOfRange++
				case !st.playing:
					eos++
				case st.in.IsEOS():
					r.signalEOS(st)
					eos++
				}
				break
			}
			if reason := r.dropReason(p); reason != "" {
				r.stats.RecordDropped(st.name, reason)
				r.discard(st, queued)
				st.nbFrames++
				continue
			}
			if !r.send(st, p, queued) {
				break
			}
		}
	}
	return eos, endOfRange
}

func (r *Reframer) dropReason(p *media.Packet) string {
	if r.opts.RefsOnly && p.DependedOn() == media.DependedOnByNone {
		return "non_reference"
	}
	if len(r.opts.SAPs) > 0 && !r.opts.sapAllowed(p.SAP) {
		return "sap_filter"
	}
	if r.state == stateDone {
		return "range_done"
	}
	return ""
}

// discard removes the head packet from the queue or the input.
func (r *Reframer) discard(st *stream, queued bool) {
	if queued {
		st.queue.drop()
	} else {
		st.in.DropPacket()
	}
	r.progress = true
}
