package reframe

import (
	"fmt"
	"slices"

	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pacing"
)

// Rounding selects which access point a range start or size split snaps to.
type Rounding uint8

const (
	// RoundBefore snaps to the access point at or before the target.
	RoundBefore Rounding = iota
	// RoundAfter snaps to the first access point at or after the target.
	RoundAfter
	// RoundClosest snaps to whichever is nearest, preferring the earlier
	// one on ties.
	RoundClosest
)

func (r Rounding) String() string {
	switch r {
	case RoundAfter:
		return "after"
	case RoundClosest:
		return "closest"
	default:
		return "before"
	}
}

// ParseRounding maps "before", "after" and "closest" to a Rounding.
func ParseRounding(s string) (Rounding, bool) {
	switch s {
	case "", "before":
		return RoundBefore, true
	case "after":
		return RoundAfter, true
	case "closest":
		return RoundClosest, true
	}
	return RoundBefore, false
}

// Options configures a Reframer.
type Options struct {
	RealTime pacing.Mode
	// Speed scales real-time pacing. Negative values are used as absolute.
	Speed float64
	// SAPs restricts output to packets of the listed SAP types. 0 stands
	// for non-SAP packets.
	SAPs []int
	// RefsOnly drops packets no other packet depends on.
	RefsOnly bool
	// Raw forces every packet to be treated as an access point and sets
	// DTS equal to CTS on output.
	Raw bool
	// Frames restricts output to the listed 1-based frame numbers when no
	// range is configured.
	Frames []uint64
	// Starts and Ends are the range boundary expressions, see the
	// boundary package. Ends[i] closes Starts[i]; when absent the next
	// start closes it.
	Starts []string
	Ends   []string
	Round  Rounding
	// AdjustEnd moves a range end to the next access point of streams
	// that do not have access points on every packet.
	AdjustEnd bool
	// NoSAP cuts every stream at the exact requested time.
	NoSAP bool
	// SplitRange tags the first packet of each range with its file
	// number and suffix.
	SplitRange bool
	// SeekSafe is the pre-roll, in seconds, requested when seeking.
	SeekSafe float64
	// TimecodeRewrite offsets tmcd samples by the video frames skipped
	// before the range.
	TimecodeRewrite bool
	// Props lists property overlays, one per range.
	Props []media.Properties

	// Clock drives real-time pacing; nil uses the system clock.
	Clock pacing.Clock
	// Stats receives telemetry; nil disables it.
	Stats StatsRecorder
}

// DefaultOptions returns the options of a pass-through reframer.
func DefaultOptions() Options {
	return Options{
		Speed:           1,
		SeekSafe:        10,
		TimecodeRewrite: true,
	}
}

// Validate checks option values that cannot be corrected silently.
func (o *Options) Validate() error {
	for _, s := range o.SAPs {
		if s < 0 || s > 4 {
			return fmt.Errorf("%w: SAP type %d not in 0..4", ErrBadOption, s)
		}
	}
	if o.SeekSafe < 0 {
		return fmt.Errorf("%w: negative seek safety margin", ErrBadOption)
	}
	if len(o.Ends) > len(o.Starts) {
		return fmt.Errorf("%w: %d range ends for %d starts", ErrBadOption, len(o.Ends), len(o.Starts))
	}
	if slices.Contains(o.Frames, 0) {
		return fmt.Errorf("%w: frame numbers start at 1", ErrBadOption)
	}
	return nil
}

func (o *Options) sapAllowed(sap media.SAPType) bool {
	return slices.Contains(o.SAPs, int(sap))
}
