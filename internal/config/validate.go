package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zsiec/reframer/internal/boundary"
	"github.com/zsiec/reframer/internal/logging"
	"github.com/zsiec/reframer/internal/pacing"
	"github.com/zsiec/reframer/internal/reframe"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Input.URL == "" {
		add("input.url is required")
	}
	if _, ok := reframe.ParseRounding(c.Reframe.Round); !ok {
		add("reframe.round %q must be before, after or closest", c.Reframe.Round)
	}
	if _, ok := pacing.ParseMode(c.Reframe.RealTime); !ok {
		add("reframe.rt %q must be off, on or sync", c.Reframe.RealTime)
	}
	for _, s := range c.Reframe.SAPs {
		if s < 0 || s > 4 {
			add("reframe.saps: %d not in 0..4", s)
		}
	}
	if c.Reframe.SeekSafe < 0 {
		add("reframe.seeksafe must not be negative")
	}
	for _, expr := range c.Reframe.Starts {
		if _, err := boundary.Parse(expr); err != nil {
			add("reframe.starts: %v", err)
		}
	}
	for _, expr := range c.Reframe.Ends {
		if _, err := boundary.Parse(expr); err != nil {
			add("reframe.ends: %v", err)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		add("logging.format %q must be auto, text or json", c.Logging.Format)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
