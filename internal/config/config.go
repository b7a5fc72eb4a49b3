// Package config loads reframer settings from a TOML file, a .env file and
// REFRAMER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Input describes where the transport stream comes from.
type Input struct {
	// URL is a file path, "srt://:port" to listen for a publisher or
	// "srt://host:port" to pull from a remote listener.
	URL       string `toml:"url"`
	StreamKey string `toml:"stream_key"`
	StreamID  string `toml:"stream_id"`
	Captions  bool   `toml:"captions"`
	// MaxBuffer bounds the bytes queued per stream, e.g. "8MiB".
	MaxBuffer string `toml:"max_buffer"`

	maxBufferBytes int
}

// Reframe mirrors reframe.Options in file form.
type Reframe struct {
	Starts     []string `toml:"starts"`
	Ends       []string `toml:"ends"`
	Round      string   `toml:"round"`
	RealTime   string   `toml:"rt"`
	Speed      float64  `toml:"speed"`
	SAPs       []int    `toml:"saps"`
	RefsOnly   bool     `toml:"refs"`
	Raw        bool     `toml:"raw"`
	Frames     []uint64 `toml:"frames"`
	AdjustEnd  bool     `toml:"xadjust"`
	NoSAP      bool     `toml:"nosap"`
	SplitRange bool     `toml:"splitrange"`
	SeekSafe   float64  `toml:"seeksafe"`
	Timecode   bool     `toml:"tcmdrw"`
	Props      []string `toml:"props"`
}

// Output configures the sink.
type Output struct {
	Dir string `toml:"dir"`
}

// Logging configures the root logger.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Metrics configures the Prometheus endpoint. An empty address disables it.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Config is the complete reframer configuration.
type Config struct {
	Input   Input   `toml:"input"`
	Reframe Reframe `toml:"reframe"`
	Output  Output  `toml:"output"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// Load reads path, applies the environment and then overrides, typically
// command-line flags, before normalizing and validating the result. An
// empty path skips the file.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	for _, apply := range overrides {
		apply(&cfg)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// MaxBufferBytes returns the normalized per-stream buffer bound.
func (c *Config) MaxBufferBytes() int {
	return c.Input.maxBufferBytes
}
