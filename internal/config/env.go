package config

import (
	"fmt"
	"strconv"
	"strings"
)

const envPrefix = "REFRAMER_"

type lookupFunc func(string) (string, bool)

// applyEnv overrides file settings with REFRAMER_* variables. List values
// are comma separated.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = splitList(v)
		}
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("INPUT", &c.Input.URL)
	str("STREAM_KEY", &c.Input.StreamKey)
	str("STREAM_ID", &c.Input.StreamID)
	str("MAX_BUFFER", &c.Input.MaxBuffer)
	list("XS", &c.Reframe.Starts)
	list("XE", &c.Reframe.Ends)
	str("XROUND", &c.Reframe.Round)
	str("RT", &c.Reframe.RealTime)
	str("OUT_DIR", &c.Output.Dir)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if err := flag("CAPTIONS", &c.Input.Captions); err != nil {
		return err
	}
	return flag("SPLITRANGE", &c.Reframe.SplitRange)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
