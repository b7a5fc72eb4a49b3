package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pipe"
)

// ErrNoTracks is returned by Probe when the program carries no stream
// the source can map.
var ErrNoTracks = errors.New("ingest: no supported elementary stream")

const (
	clockRate       = 90000
	aacFrameSamples = 1024
	// captionHold is the duration of the last caption of a stream.
	captionHold = 2 * clockRate
	// baseLookahead bounds how many packets are held while waiting for
	// every stream to show its first timestamp.
	baseLookahead = 256
)

// Opener returns a reader positioned at the start of the transport stream.
type Opener func() (io.ReadCloser, error)

// FileOpener opens path on every call.
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) { return os.Open(path) }
}

// Stats receives ingest telemetry. The metrics package implements it.
type Stats interface {
	RecordIngested(stream string, bytes int, sync bool)
}

type nopStats struct{}

func (nopStats) RecordIngested(string, int, bool) {}

type track struct {
	pid        uint16
	codec      media.Codec
	sampleRate int
	timescale  uint64
	in         *pipe.Input
	// captions is the CC1 text stream carried in this track's SEI.
	captions *track
}

type request struct {
	play  bool
	start float64
}

// Source demultiplexes an MPEG-TS byte stream into one pipe.Input per
// elementary stream. Play events reopen the stream and skip to the
// requested start; a live source plays once.
type Source struct {
	log      *slog.Logger
	open     Opener
	seekable bool
	captions bool
	maxBytes int
	stats    Stats

	tracks []*track
	byPID  map[uint16]*track

	// probed is the reader left open by Probe for the first play.
	probed   io.ReadCloser
	probedRd *mpegts.Reader

	base     int64
	haveBase bool

	mu      sync.Mutex
	pending *request
	queued  *request
	notify  chan struct{}
}

// NewSource creates a source reading from open. A seekable source must
// return the stream from its beginning each time open is called. If log
// is nil, slog.Default() is used.
func NewSource(open Opener, seekable bool, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		log:      log.With("component", "ts-source"),
		open:     open,
		seekable: seekable,
		stats:    nopStats{},
		byPID:    make(map[uint16]*track),
		notify:   make(chan struct{}, 1),
	}
}

// SetCaptions enables a CEA-608 text stream for every H.264 video stream.
// Call before Probe.
func (s *Source) SetCaptions(enable bool) {
	s.captions = enable
}

// SetMaxBytes bounds the bytes buffered per input. Call before Probe.
func (s *Source) SetMaxBytes(n int) {
	s.maxBytes = n
}

func (s *Source) SetStats(st Stats) {
	if st == nil {
		st = nopStats{}
	}
	s.stats = st
}

// Inputs returns the inputs created by Probe, in program order.
func (s *Source) Inputs() []*pipe.Input {
	var ins []*pipe.Input
	for _, t := range s.tracks {
		ins = append(ins, t.in)
		if t.captions != nil {
			ins = append(ins, t.captions.in)
		}
	}
	return ins
}

// Probe reads the program tables and creates the inputs. It blocks until
// a program map arrives or ctx is cancelled.
func (s *Source) Probe(ctx context.Context) error {
	rc, rd, err := s.openReader(ctx)
	if err != nil {
		return err
	}

	mode := media.PlaybackNone
	if s.seekable {
		mode = media.PlaybackSeek
	}
	for _, tr := range rd.Tracks() {
		t := &track{pid: tr.PID, timescale: clockRate}
		props := media.Properties{media.PropPlaybackMode: mode}
		switch c := tr.Codec.(type) {
		case *mpegts.CodecH264:
			t.codec = media.CodecH264
			props[media.PropStreamType] = media.StreamVisual
		case *mpegts.CodecH265:
			t.codec = media.CodecH265
			props[media.PropStreamType] = media.StreamVisual
		case *mpegts.CodecMPEG4Audio:
			if c.Config.SampleRate <= 0 {
				s.log.Warn("skipping AAC stream without sample rate", "pid", tr.PID)
				continue
			}
			t.codec = media.CodecAAC
			t.sampleRate = c.Config.SampleRate
			t.timescale = uint64(c.Config.SampleRate)
			props[media.PropStreamType] = media.StreamAudio
			props[media.PropSampleRate] = uint64(c.Config.SampleRate)
			props[media.PropChannels] = uint64(c.Config.ChannelCount)
		default:
			s.log.Info("skipping unsupported stream", "pid", tr.PID, "codec", fmt.Sprintf("%T", tr.Codec))
			continue
		}
		props[media.PropCodec] = t.codec
		props[media.PropTimescale] = t.timescale
		t.in = s.newInput(fmt.Sprintf("%s-%d", t.codec, t.pid), props)

		if s.captions && t.codec == media.CodecH264 {
			t.captions = &track{pid: t.pid, codec: media.CodecText, timescale: clockRate}
			t.captions.in = s.newInput(fmt.Sprintf("cc1-%d", t.pid), media.Properties{
				media.PropStreamType:   media.StreamText,
				media.PropCodec:        media.CodecText,
				media.PropTimescale:    uint64(clockRate),
				media.PropPlaybackMode: mode,
			})
		}
		s.tracks = append(s.tracks, t)
		s.byPID[t.pid] = t
		s.log.Info("stream found", "pid", t.pid, "codec", t.codec.String(), "input", t.in.Name())
	}
	if len(s.tracks) == 0 {
		rc.Close()
		return ErrNoTracks
	}
	s.probed, s.probedRd = rc, rd
	return nil
}

func (s *Source) newInput(name string, props media.Properties) *pipe.Input {
	in := pipe.NewInput(name, props)
	in.SetMaxBytes(s.maxBytes)
	in.SetEventHandler(s.onEvent)
	return in
}

func (s *Source) openReader(ctx context.Context) (io.ReadCloser, *mpegts.Reader, error) {
	rc, err := s.open()
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: open: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()

	rd := &mpegts.Reader{R: rc}
	if err := rd.Initialize(); err != nil {
		rc.Close()
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("ingest: read program tables: %w", err)
	}
	rd.OnDecodeError(func(err error) {
		s.log.Warn("decode error", "error", err)
	})
	return rc, rd, nil
}

func (s *Source) onEvent(ev media.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case media.EventPlay:
		if s.pending == nil || !s.pending.play || ev.Start < s.pending.start {
			s.pending = &request{play: true, start: ev.Start}
		}
	case media.EventStop:
		s.pending = &request{}
	}
}

// Sync hands the play and stop events received since the last call to the
// reading goroutine. The pipeline calls it after each reframer step so
// that the events of one step act as a single seek.
func (s *Source) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return
	}
	s.queued, s.pending = s.pending, nil
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Source) take() *request {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.queued
	s.queued = nil
	return req
}

// readRun is one reading goroutine started for a play request.
type readRun struct {
	cancel context.CancelFunc
	done   chan error
}

func (s *Source) startRead(ctx context.Context, start float64) *readRun {
	runCtx, cancel := context.WithCancel(ctx)
	rr := &readRun{cancel: cancel, done: make(chan error, 1)}
	go func() {
		rr.done <- s.read(runCtx, start)
	}()
	return rr
}

// stop cancels the read and waits for it unless it already reported.
func (rr *readRun) stop(reported bool) {
	rr.cancel()
	if !reported {
		<-rr.done
	}
}

// Run reads the stream on behalf of play requests until ctx is cancelled.
// It returns the first read failure.
func (s *Source) Run(ctx context.Context) error {
	var (
		cur      *readRun
		reported bool
		started  bool
	)
	stop := func() {
		if cur != nil {
			cur.stop(reported)
			cur = nil
		}
	}
	defer func() {
		stop()
		if s.probed != nil {
			s.probed.Close()
		}
	}()

	for {
		var done chan error
		if cur != nil && !reported {
			done = cur.done
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			reported = true
			if err != nil {
				return err
			}
		case <-s.notify:
			req := s.take()
			if req == nil {
				continue
			}
			if req.play && started && !s.seekable {
				s.log.Debug("ignoring play on live source", "start", req.start)
				continue
			}
			stop()
			if !req.play {
				s.log.Debug("reading stopped")
				continue
			}
			started = true
			cur, reported = s.startRead(ctx, req.start), false
		}
	}
}

func (s *Source) reader(ctx context.Context) (io.ReadCloser, *mpegts.Reader, error) {
	if s.probed != nil {
		rc, rd := s.probed, s.probedRd
		s.probed, s.probedRd = nil, nil
		return rc, rd, nil
	}
	if !s.seekable {
		return nil, nil, errors.New("ingest: live stream cannot be reopened")
	}
	return s.openReader(ctx)
}

// read demultiplexes the stream from its beginning, delivering packets
// from start seconds on, and closes the inputs at end of stream.
func (s *Source) read(ctx context.Context, start float64) error {
	rc, rd, err := s.reader(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()

	ru := s.newRun(start)
	defer ru.release()
	for _, tr := range rd.Tracks() {
		tk := ru.tracks[tr.PID]
		if tk == nil {
			continue
		}
		switch tr.Codec.(type) {
		case *mpegts.CodecH264:
			rd.OnDataH264(tr, func(pts, dts int64, au [][]byte) error {
				return ru.video(ctx, tk, pts, dts, au)
			})
		case *mpegts.CodecH265:
			rd.OnDataH265(tr, func(pts, dts int64, au [][]byte) error {
				return ru.video(ctx, tk, pts, dts, au)
			})
		case *mpegts.CodecMPEG4Audio:
			rd.OnDataMPEG4Audio(tr, func(pts int64, aus [][]byte) error {
				return ru.audio(ctx, tk, pts, aus)
			})
		}
	}
	s.log.Info("reading", "start", start)

	for {
		err := rd.Read()
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, astits.ErrNoMorePackets) {
			break
		}
		return fmt.Errorf("ingest: read transport stream: %w", err)
	}

	if err := ru.flush(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for _, tk := range ru.all {
		tk.t.in.CloseGen(tk.gen)
	}
	s.log.Info("end of stream")
	return nil
}

func (s *Source) settleBase(ts int64) {
	if !s.haveBase || ts < s.base {
		s.base = ts
	}
}

func (s *Source) rebase(ts int64) uint64 {
	if ts <= s.base {
		return 0
	}
	return uint64(ts - s.base)
}

// trackRun is the per-stream state of one read pass.
type trackRun struct {
	t       *track
	gen     uint64
	startTS uint64
	started bool
	seen    bool

	held    *media.Packet
	lastDur uint32
	// gop collects the packets of the current group of pictures while
	// skipping to the start, so that delivery begins on an access point.
	gop []*media.Packet

	next     uint64
	haveNext bool

	cc    *captionDecoder
	ccRun *trackRun
}

type earlyPacket struct {
	tk       *trackRun
	p        *media.Packet
	pts, dts int64
}

type run struct {
	s      *Source
	tracks map[uint16]*trackRun
	all    []*trackRun
	early  []earlyPacket
}

func (s *Source) newRun(start float64) *run {
	ru := &run{s: s, tracks: make(map[uint16]*trackRun)}
	add := func(t *track) *trackRun {
		tk := &trackRun{
			t:       t,
			gen:     t.in.Generation(),
			startTS: uint64(start * float64(t.timescale)),
		}
		ru.all = append(ru.all, tk)
		return tk
	}
	for _, t := range s.tracks {
		tk := add(t)
		if t.captions != nil {
			tk.ccRun = add(t.captions)
			tk.cc = newCaptionDecoder(1)
		}
		ru.tracks[t.pid] = tk
	}
	return ru
}

func (ru *run) video(ctx context.Context, tk *trackRun, pts, dts int64, au [][]byte) error {
	p := media.New(annexB(au))
	p.SAP, p.Dependency = accessInfo(tk.t.codec, au)

	if tk.cc != nil {
		tk.cc.frame()
		for _, nalu := range au {
			if !isSEI(tk.t.codec, nalu) {
				continue
			}
			if text := tk.cc.decode(nalu); text != "" {
				cue := media.New([]byte(text))
				cue.SAP = media.SAP1
				if err := ru.enqueue(ctx, tk.ccRun, cue, dts, dts); err != nil {
					p.Release()
					return err
				}
			}
		}
	}
	return ru.enqueue(ctx, tk, p, pts, dts)
}

func (ru *run) audio(ctx context.Context, tk *trackRun, pts int64, aus [][]byte) error {
	for i, au := range aus {
		p := media.New(slices.Clone(au))
		p.SAP = media.SAP1
		p.Duration = aacFrameSamples
		ts := pts + int64(i)*aacFrameSamples*clockRate/int64(tk.t.sampleRate)
		if err := ru.enqueue(ctx, tk, p, ts, ts); err != nil {
			return err
		}
	}
	return nil
}

// enqueue delivers a packet with raw 90 kHz timestamps. Until every
// stream has shown a first timestamp, packets are kept so that the
// earliest one across streams becomes time zero.
func (ru *run) enqueue(ctx context.Context, tk *trackRun, p *media.Packet, pts, dts int64) error {
	if ru.s.haveBase {
		return ru.place(ctx, tk, p, pts, dts)
	}
	ru.early = append(ru.early, earlyPacket{tk: tk, p: p, pts: pts, dts: dts})
	tk.seen = true
	if len(ru.early) < baseLookahead && !ru.allSeen() {
		return nil
	}
	return ru.drainEarly(ctx)
}

func (ru *run) allSeen() bool {
	for _, tk := range ru.all {
		if tk.t.codec != media.CodecText && !tk.seen {
			return false
		}
	}
	return true
}

func (ru *run) drainEarly(ctx context.Context) error {
	for _, e := range ru.early {
		ru.s.settleBase(min(e.pts, e.dts))
		ru.s.haveBase = true
	}
	early := ru.early
	ru.early = nil
	for i, e := range early {
		if err := ru.place(ctx, e.tk, e.p, e.pts, e.dts); err != nil {
			for _, rest := range early[i+1:] {
				rest.p.Release()
			}
			return err
		}
	}
	return nil
}

func (ru *run) place(ctx context.Context, tk *trackRun, p *media.Packet, pts, dts int64) error {
	p.DTS = ru.s.rebase(dts)
	p.CTS = ru.s.rebase(pts)
	if tk.t.codec != media.CodecAAC {
		return ru.hold(ctx, tk, p)
	}

	ts := p.DTS * uint64(tk.t.sampleRate) / clockRate
	// Keep frames back to back despite 90 kHz rounding.
	if tk.haveNext && absDiff(ts, tk.next) < aacFrameSamples/2 {
		ts = tk.next
	}
	p.DTS, p.CTS = ts, ts
	tk.next, tk.haveNext = ts+aacFrameSamples, true
	return ru.gate(ctx, tk, p)
}

// hold keeps one packet per stream back until its successor gives it a
// duration.
func (ru *run) hold(ctx context.Context, tk *trackRun, p *media.Packet) error {
	prev := tk.held
	tk.held = p
	if prev == nil {
		return nil
	}
	if p.DTS > prev.DTS {
		tk.lastDur = uint32(p.DTS - prev.DTS)
	}
	prev.Duration = tk.lastDur
	return ru.gate(ctx, tk, prev)
}

// gate drops what precedes the requested start. Video resumes on the
// last access point at or before it.
func (ru *run) gate(ctx context.Context, tk *trackRun, p *media.Packet) error {
	if tk.started {
		return ru.push(ctx, tk, p)
	}
	switch tk.t.codec {
	case media.CodecH264, media.CodecH265:
		if p.SAP != media.SAPNone {
			releaseAll(tk.gop)
			tk.gop = tk.gop[:0]
		} else if len(tk.gop) == 0 {
			p.Release()
			return nil
		}
		tk.gop = append(tk.gop, p)
		if p.CTS < tk.startTS {
			return nil
		}
		tk.started = true
		gop := tk.gop
		tk.gop = nil
		for i, q := range gop {
			if err := ru.push(ctx, tk, q); err != nil {
				releaseAll(gop[i+1:])
				return err
			}
		}
		return nil
	default:
		if p.CTS+uint64(p.Duration) <= tk.startTS {
			p.Release()
			return nil
		}
		tk.started = true
		return ru.push(ctx, tk, p)
	}
}

func (ru *run) push(ctx context.Context, tk *trackRun, p *media.Packet) error {
	n, sync := len(p.Data), p.SAP != media.SAPNone
	if err := tk.t.in.PushGen(ctx, tk.gen, p); err != nil {
		return err
	}
	ru.s.stats.RecordIngested(tk.t.in.Name(), n, sync)
	return nil
}

// flush delivers what is still held at end of stream.
func (ru *run) flush(ctx context.Context) error {
	if len(ru.early) > 0 {
		if err := ru.drainEarly(ctx); err != nil {
			return err
		}
	}
	for _, tk := range ru.all {
		p := tk.held
		if p == nil {
			continue
		}
		tk.held = nil
		switch {
		case tk.t.codec == media.CodecText:
			p.Duration = captionHold
		case tk.lastDur > 0:
			p.Duration = tk.lastDur
		default:
			p.Duration = clockRate / 25
		}
		if err := ru.gate(ctx, tk, p); err != nil {
			return err
		}
	}
	return nil
}

// release frees every packet the run still holds.
func (ru *run) release() {
	for _, e := range ru.early {
		e.p.Release()
	}
	ru.early = nil
	for _, tk := range ru.all {
		if tk.held != nil {
			tk.held.Release()
			tk.held = nil
		}
		releaseAll(tk.gop)
		tk.gop = nil
	}
}

func releaseAll(pkts []*media.Packet) {
	for _, p := range pkts {
		p.Release()
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
