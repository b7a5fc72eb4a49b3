// Package boundary parses range boundary expressions such as "T00:01:30.5",
// "F120", "RAP", "D5000" or "S10M" into typed values.
package boundary

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zsiec/reframer/internal/media"
)

// Mode is the extraction mode a start boundary selects.
type Mode uint8

const (
	// ModeNone marks an unparseable boundary.
	ModeNone Mode = iota
	// ModeRange extracts explicit time or frame ranges.
	ModeRange
	// ModeSAP splits at every access point.
	ModeSAP
	// ModeSize splits into chunks of an estimated byte size.
	ModeSize
	// ModeDuration splits into chunks of a fixed duration.
	ModeDuration
)

func (m Mode) String() string {
	switch m {
	case ModeRange:
		return "range"
	case ModeSAP:
		return "sap"
	case ModeSize:
		return "size"
	case ModeDuration:
		return "duration"
	default:
		return "none"
	}
}

// Sentinel errors returned inside a ParseError.
var (
	ErrEmpty        = errors.New("boundary: empty expression")
	ErrUnrecognized = errors.New("boundary: unrecognized format, expecting TXX:XX:XX[.XX], INT or FRAC")
	ErrZeroSize     = errors.New("boundary: split size must be positive")
)

// ParseError records which expression failed to parse.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("boundary: parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Boundary is one parsed range boundary. Exactly one of Time, Frame or Size
// is meaningful, depending on Mode and on the expression form.
type Boundary struct {
	Mode Mode
	// Time is the boundary time, or the chunk duration in ModeDuration.
	Time media.Fraction
	// Frame is the 1-based frame index for "F<n>" boundaries, 0 otherwise.
	Frame uint64
	// Size is the target chunk size in bytes for ModeSize.
	Size uint64
}

// IsFrame reports whether b is a frame index rather than a time.
func (b Boundary) IsFrame() bool { return b.Frame > 0 }

// Parse parses a boundary expression. On failure the returned Boundary has
// ModeNone and err is a *ParseError.
func Parse(s string) (Boundary, error) {
	b, err := parse(s)
	if err != nil {
		return Boundary{}, &ParseError{Input: s, Err: err}
	}
	return b, nil
}

func parse(s string) (Boundary, error) {
	if s == "" {
		return Boundary{}, ErrEmpty
	}
	switch {
	case s[0] == 'T':
		t, ok := parseClock(s[1:])
		if !ok {
			return Boundary{}, ErrUnrecognized
		}
		return Boundary{Mode: ModeRange, Time: t}, nil
	case s[0] == 'F' || s[0] == 'f':
		n, err := strconv.ParseUint(s[1:], 10, 64)
		if err != nil {
			return Boundary{}, ErrUnrecognized
		}
		return Boundary{Mode: ModeRange, Frame: n + 1}, nil
	case s == "RAP" || s == "SAP":
		return Boundary{Mode: ModeSAP, Time: media.Fraction{Den: 1000}}, nil
	case s[0] == 'D' || s[0] == 'd':
		if d, ok := parseDuration(s[1:]); ok {
			return Boundary{Mode: ModeDuration, Time: d}, nil
		}
	case s[0] == 'S' || s[0] == 's':
		if n, err := humanize.ParseBytes(s[1:]); err == nil {
			if n == 0 {
				return Boundary{}, ErrZeroSize
			}
			return Boundary{Mode: ModeSize, Size: n}, nil
		}
	}
	if f, ok := parseFraction(s); ok {
		return Boundary{Mode: ModeRange, Time: f}, nil
	}
	return Boundary{}, ErrUnrecognized
}

// parseClock parses "[h:]m:s[.ms]" or "s.ms". A millisecond field of 1000
// or more is ignored.
func parseClock(s string) (media.Fraction, bool) {
	clock, msPart, hasMS := strings.Cut(s, ".")
	fields := strings.Split(clock, ":")
	if len(fields) > 3 || (!hasMS && len(fields) < 2) {
		return media.Fraction{}, false
	}
	var secs uint64
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return media.Fraction{}, false
		}
		secs = secs*60 + v
	}
	var ms uint64
	if hasMS {
		v, err := strconv.ParseUint(msPart, 10, 32)
		if err != nil {
			return media.Fraction{}, false
		}
		if v < 1000 {
			ms = v
		}
	}
	return media.Fraction{Num: secs*1000 + ms, Den: 1000}, true
}

// parseDuration parses "num/den" seconds or an integer number of
// milliseconds.
func parseDuration(s string) (media.Fraction, bool) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseUint(num, 10, 64)
		d, err2 := strconv.ParseUint(den, 10, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return media.Fraction{}, false
		}
		return media.Fraction{Num: n, Den: d}, true
	}
	ms, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return media.Fraction{}, false
	}
	return media.Fraction{Num: ms, Den: 1000}, true
}

// parseFraction parses an integer, decimal or "num/den" number of seconds.
func parseFraction(s string) (media.Fraction, bool) {
	if s == "" || s[0] == '-' || s[0] == '+' {
		return media.Fraction{}, false
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return media.Fraction{}, false
	}
	return media.FromRat(r)
}
