// Package sink stores reframed packets as object files, one per stream and
// file number, so that every extracted range or split chunk lands in its
// own file.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pipe"
)

// File describes one written object file.
type File struct {
	Stream  string
	Number  uint32
	Suffix  string
	Path    string
	Objects int
	Bytes   int64
	// StartUS and EndUS bound the composition times of the stored
	// packets, end exclusive.
	StartUS uint64
	EndUS   uint64
}

// Sink drains pipe outputs into object files under a directory.
type Sink struct {
	log    *slog.Logger
	dir    string
	tracks []*trackWriter
	files  []*File
}

type trackWriter struct {
	alias    uint64
	name     string
	out      *pipe.Output
	f        *os.File
	w        *bufio.Writer
	file     *File
	objectID uint64
	buf      []byte
}

// New creates dir if needed. If log is nil, slog.Default() is used.
func New(dir string, log *slog.Logger) (*Sink, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return &Sink{log: log.With("component", "sink"), dir: dir}, nil
}

// Add registers out under name. Track aliases follow registration order.
func (s *Sink) Add(name string, out *pipe.Output) {
	s.tracks = append(s.tracks, &trackWriter{
		alias: uint64(len(s.tracks)),
		name:  name,
		out:   out,
	})
}

// Drain writes every packet sent to the registered outputs since the last
// call and releases them.
func (s *Sink) Drain() error {
	for _, tw := range s.tracks {
		pkts := tw.out.Take()
		for i, p := range pkts {
			err := s.write(tw, p)
			p.Release()
			if err != nil {
				for _, rest := range pkts[i+1:] {
					rest.Release()
				}
				return err
			}
		}
	}
	return nil
}

func (s *Sink) write(tw *trackWriter, p *media.Packet) error {
	num, tagged := p.Props.Uint(media.PropFileNumber)
	suffix, _ := p.Props.String(media.PropFileSuffix)
	if tagged || tw.f == nil {
		if err := s.rotate(tw, uint32(num), suffix, tagged); err != nil {
			return err
		}
	}

	scale, ok := tw.out.Props().Uint(media.PropTimescale)
	if !ok || scale == 0 {
		scale = 1000
	}
	obj := Object{
		ID:        tw.objectID,
		CaptureUS: toMicros(p.CTS, scale),
		DecodeUS:  toMicros(p.Timestamp(), scale),
		Keyframe:  p.SAP != media.SAPNone,
		Payload:   p.Data,
	}
	if tagged {
		obj.Suffix = suffix
	}
	tw.buf = obj.append(tw.buf[:0])
	if _, err := tw.w.Write(tw.buf); err != nil {
		return fmt.Errorf("sink: write %s: %w", tw.file.Path, err)
	}
	tw.objectID++

	f := tw.file
	if f.Objects == 0 || obj.CaptureUS < f.StartUS {
		f.StartUS = obj.CaptureUS
	}
	f.EndUS = max(f.EndUS, toMicros(p.CTS+uint64(p.Duration), scale))
	f.Objects++
	f.Bytes += int64(len(tw.buf))
	return nil
}

func (s *Sink) rotate(tw *trackWriter, num uint32, suffix string, tagged bool) error {
	if err := tw.close(); err != nil {
		return err
	}
	name := tw.name
	if tagged {
		name = fmt.Sprintf("%s_%03d", name, num)
		if suffix != "" {
			name += "_" + sanitize(suffix)
		}
	}
	path := filepath.Join(s.dir, sanitize(name)+".obj")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	tw.f = f
	tw.w = bufio.NewWriter(f)
	tw.objectID = 0
	tw.file = &File{Stream: tw.name, Number: num, Suffix: suffix, Path: path}
	s.files = append(s.files, tw.file)

	hdr := Header{TrackAlias: tw.alias, Group: uint64(num)}
	if _, err := tw.w.Write(hdr.append(nil)); err != nil {
		return fmt.Errorf("sink: write %s: %w", path, err)
	}
	s.log.Debug("file opened", "stream", tw.name, "number", num, "path", path)
	return nil
}

func (tw *trackWriter) close() error {
	if tw.f == nil {
		return nil
	}
	err := tw.w.Flush()
	if cerr := tw.f.Close(); err == nil {
		err = cerr
	}
	tw.f, tw.w = nil, nil
	if err != nil {
		return fmt.Errorf("sink: close %s: %w", tw.file.Path, err)
	}
	return nil
}

// Close drains the outputs one last time and closes every open file.
func (s *Sink) Close() error {
	err := s.Drain()
	for _, tw := range s.tracks {
		err = errors.Join(err, tw.close())
	}
	return err
}

// Files lists the files written so far, in creation order.
func (s *Sink) Files() []File {
	out := make([]File, len(s.files))
	for i, f := range s.files {
		out[i] = *f
	}
	return out
}

func toMicros(ts, scale uint64) uint64 {
	return ts/scale*1_000_000 + ts%scale*1_000_000/scale
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '.'
		}
		return r
	}, s)
}
