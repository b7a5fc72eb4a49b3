package config

import (
	"fmt"

	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pacing"
	"github.com/zsiec/reframer/internal/reframe"
)

// Options converts the [reframe] section into reframer options. Clock and
// Stats are left for the caller.
func (c *Config) Options() (reframe.Options, error) {
	r := c.Reframe
	opts := reframe.DefaultOptions()

	round, ok := reframe.ParseRounding(r.Round)
	if !ok {
		return opts, fmt.Errorf("%w: round %q", reframe.ErrBadOption, r.Round)
	}
	mode, ok := pacing.ParseMode(r.RealTime)
	if !ok {
		return opts, fmt.Errorf("%w: rt %q", reframe.ErrBadOption, r.RealTime)
	}

	opts.RealTime = mode
	opts.Speed = r.Speed
	opts.SAPs = r.SAPs
	opts.RefsOnly = r.RefsOnly
	opts.Raw = r.Raw
	opts.Frames = r.Frames
	opts.Starts = r.Starts
	opts.Ends = r.Ends
	opts.Round = round
	opts.AdjustEnd = r.AdjustEnd
	opts.NoSAP = r.NoSAP
	opts.SplitRange = r.SplitRange
	opts.SeekSafe = r.SeekSafe
	opts.TimecodeRewrite = r.Timecode

	for _, s := range r.Props {
		p, err := media.ParseProperties(s)
		if err != nil {
			return opts, fmt.Errorf("%w: props: %v", reframe.ErrBadOption, err)
		}
		opts.Props = append(opts.Props, p)
	}
	return opts, opts.Validate()
}
