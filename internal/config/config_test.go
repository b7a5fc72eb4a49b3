package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zsiec/reframer/internal/pacing"
	"github.com/zsiec/reframer/internal/reframe"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reframer.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
[input]
url = "in.ts"
max_buffer = "2MiB"
captions = true

[reframe]
starts = ["T00:00:10", "T00:00:30"]
ends = ["T00:00:20"]
round = "Closest"
rt = "sync"
splitrange = true
props = ["Title=first", "Title=second"]

[output]
dir = "clips"

[logging]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Input.URL != "in.ts" {
		t.Errorf("url = %q, want in.ts", cfg.Input.URL)
	}
	if got, want := cfg.MaxBufferBytes(), 2<<20; got != want {
		t.Errorf("MaxBufferBytes() = %d, want %d", got, want)
	}
	if !cfg.Input.Captions {
		t.Error("captions not enabled")
	}
	if cfg.Output.Dir != "clips" {
		t.Errorf("dir = %q, want clips", cfg.Output.Dir)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Round != reframe.RoundClosest {
		t.Errorf("round = %v, want closest", opts.Round)
	}
	if opts.RealTime != pacing.Shared {
		t.Errorf("rt = %v, want sync", opts.RealTime)
	}
	if len(opts.Starts) != 2 || len(opts.Ends) != 1 {
		t.Errorf("starts/ends = %v/%v", opts.Starts, opts.Ends)
	}
	if len(opts.Props) != 2 || opts.Props[1]["Title"] != "second" {
		t.Errorf("props = %v", opts.Props)
	}
	if !opts.SplitRange || !opts.TimecodeRewrite {
		t.Errorf("splitrange = %v, tcmdrw = %v, want both true", opts.SplitRange, opts.TimecodeRewrite)
	}
	if opts.SeekSafe != defaultSeekSafe {
		t.Errorf("seeksafe = %v, want %v", opts.SeekSafe, defaultSeekSafe)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[input]\nurl = \"a.ts\"\nbogus = 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"REFRAMER_INPUT":      "srt://:6000",
		"REFRAMER_XS":         "F1, F100 ,",
		"REFRAMER_CAPTIONS":   "true",
		"REFRAMER_OUT_DIR":    "/tmp/out",
		"REFRAMER_LOG_FORMAT": "text",
	}
	cfg := Default()
	cfg.Input.URL = "file.ts"
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Input.URL != "srt://:6000" {
		t.Errorf("url = %q, want env override", cfg.Input.URL)
	}
	if len(cfg.Reframe.Starts) != 2 || cfg.Reframe.Starts[1] != "F100" {
		t.Errorf("starts = %q, want [F1 F100]", cfg.Reframe.Starts)
	}
	if !cfg.Input.Captions {
		t.Error("captions not enabled")
	}
	if cfg.Output.Dir != "/tmp/out" || cfg.Logging.Format != "text" {
		t.Errorf("dir = %q, format = %q", cfg.Output.Dir, cfg.Logging.Format)
	}
}

func TestApplyEnvBadBool(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		return "maybe", k == "REFRAMER_CAPTIONS"
	})
	if err == nil {
		t.Fatal("expected error for REFRAMER_CAPTIONS=maybe")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default with url", func(*Config) {}, true},
		{"missing url", func(c *Config) { c.Input.URL = "" }, false},
		{"bad round", func(c *Config) { c.Reframe.Round = "nearest" }, false},
		{"bad rt", func(c *Config) { c.Reframe.RealTime = "fast" }, false},
		{"bad sap", func(c *Config) { c.Reframe.SAPs = []int{5} }, false},
		{"bad start", func(c *Config) { c.Reframe.Starts = []string{"Q12"} }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"negative seeksafe", func(c *Config) { c.Reframe.SeekSafe = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			cfg.Input.URL = "in.ts"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestNormalizeMaxBuffer(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Input.MaxBuffer = "64 KB"
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	if got, want := cfg.MaxBufferBytes(), 64_000; got != want {
		t.Errorf("MaxBufferBytes() = %d, want %d", got, want)
	}

	cfg.Input.MaxBuffer = "lots"
	if err := cfg.normalize(); err == nil {
		t.Error("expected error for max_buffer=lots")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "[input]\nurl = \"a.ts\"\n[output]\ndir = \"x\"\n")
	cfg, err := Load(path, func(c *Config) {
		c.Input.URL = "b.ts"
		c.Reframe.Starts = []string{"T00:00:05"}
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Input.URL != "b.ts" {
		t.Errorf("url = %q, want b.ts", cfg.Input.URL)
	}
	if cfg.Output.Dir != "x" {
		t.Errorf("dir = %q, want x", cfg.Output.Dir)
	}
}

func TestLoadWithoutFileNeedsInput(t *testing.T) {
	t.Parallel()
	if _, err := Load("", func(c *Config) { c.Input.URL = "" }); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() = %v, want ErrInvalid", err)
	}
}
