package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

func (c *Config) normalize() error {
	c.Input.URL = strings.TrimSpace(c.Input.URL)
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	if c.Output.Dir == "" {
		c.Output.Dir = defaultOutputDir
	}
	c.Reframe.Round = strings.ToLower(strings.TrimSpace(c.Reframe.Round))
	c.Reframe.RealTime = strings.ToLower(strings.TrimSpace(c.Reframe.RealTime))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Reframe.Speed == 0 {
		c.Reframe.Speed = defaultSpeed
	}

	c.Input.maxBufferBytes = 0
	if s := strings.TrimSpace(c.Input.MaxBuffer); s != "" {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return fmt.Errorf("input.max_buffer: %w", err)
		}
		if n > math.MaxInt32 {
			return fmt.Errorf("input.max_buffer: %s exceeds %s", s, humanize.IBytes(math.MaxInt32))
		}
		c.Input.maxBufferBytes = int(n)
	}
	return nil
}
