package main

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pipe"
	"github.com/zsiec/reframer/internal/sink"
)

func TestParseInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      string
		kind     inputKind
		addr     string
		streamID string
		wantErr  bool
	}{
		{raw: "clip.ts", kind: inputFile},
		{raw: "srt://:6000", kind: inputListen, addr: ":6000", streamID: "fallback"},
		{raw: "srt://relay.example:9000?streamid=live/cam1", kind: inputPull, addr: "relay.example:9000", streamID: "live/cam1"},
		{raw: "srt://relay.example", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		target, err := parseInput(tt.raw, "fallback")
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseInput(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseInput(%q): %v", tt.raw, err)
			continue
		}
		if target.kind != tt.kind {
			t.Errorf("parseInput(%q) kind: got %d, want %d", tt.raw, target.kind, tt.kind)
		}
		if tt.kind != inputFile && (target.addr != tt.addr || target.streamID != tt.streamID) {
			t.Errorf("parseInput(%q): got %q %q, want %q %q", tt.raw, target.addr, target.streamID, tt.addr, tt.streamID)
		}
	}
}

func TestDescribeRanges(t *testing.T) {
	t.Parallel()
	out, err := describeRanges([]string{"T00:01:00", "F1500"}, []string{"T00:01:30"})
	if err != nil {
		t.Fatalf("describeRanges: %v", err)
	}
	for _, want := range []string{"60s", "90s", "frame 1500", "end of stream"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = describeRanges([]string{"S200MB"}, nil)
	if err != nil {
		t.Fatalf("describeRanges: %v", err)
	}
	if !strings.Contains(out, "size") || !strings.Contains(out, "chunks") {
		t.Errorf("size split not described:\n%s", out)
	}

	if _, err := describeRanges([]string{"nonsense"}, nil); err == nil {
		t.Error("expected error for unparseable start")
	}
	if _, err := describeRanges(nil, nil); err == nil {
		t.Error("expected error without starts")
	}
}

func TestInspectObjects(t *testing.T) {
	t.Parallel()
	var tr media.Tracker
	s, err := sink.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	out := pipe.NewOutput()
	out.SetProp(media.PropTimescale, uint64(1000))
	s.Add("video", out)
	for i := range 4 {
		p := tr.New(make([]byte, 10))
		p.CTS, p.DTS, p.Duration = uint64(i*40), uint64(i*40), 40
		if i == 0 {
			p.SAP = media.SAP1
		}
		out.Send(p)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(s.Files()[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := inspectObjects(bufio.NewReader(bytes.NewReader(data)), 2)
	if err != nil {
		t.Fatalf("inspectObjects: %v", err)
	}
	if !strings.Contains(got, "4 objects") {
		t.Errorf("summary missing object count:\n%s", got)
	}
	if !strings.Contains(got, "40ms") || strings.Contains(got, "80ms") {
		t.Errorf("limit not applied:\n%s", got)
	}

	if files := renderFiles(s.Files()); !strings.Contains(files, "video.obj") {
		t.Errorf("file table missing video.obj:\n%s", files)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != version {
		t.Errorf("version: got %q, want %q", got, version)
	}
}
