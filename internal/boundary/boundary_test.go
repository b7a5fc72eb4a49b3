package boundary

import (
	"errors"
	"testing"

	"github.com/zsiec/reframer/internal/media"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Boundary
	}{
		{"T00:00:10", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 10000, Den: 1000}}},
		{"T01:02:03.250", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 3723250, Den: 1000}}},
		{"T1:30.5", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 90005, Den: 1000}}},
		{"T12.100", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 12100, Den: 1000}}},
		{"T10.1000", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 10000, Den: 1000}}},
		{"T2:00", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 120000, Den: 1000}}},
		{"F0", Boundary{Mode: ModeRange, Frame: 1}},
		{"f250", Boundary{Mode: ModeRange, Frame: 251}},
		{"RAP", Boundary{Mode: ModeSAP, Time: media.Fraction{Den: 1000}}},
		{"SAP", Boundary{Mode: ModeSAP, Time: media.Fraction{Den: 1000}}},
		{"D5000", Boundary{Mode: ModeDuration, Time: media.Fraction{Num: 5000, Den: 1000}}},
		{"d1001/30000", Boundary{Mode: ModeDuration, Time: media.Fraction{Num: 1001, Den: 30000}}},
		{"S10M", Boundary{Mode: ModeSize, Size: 10_000_000}},
		{"s2MiB", Boundary{Mode: ModeSize, Size: 2 << 20}},
		{"20", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 20, Den: 1}}},
		{"1.5", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 3, Den: 2}}},
		{"90000/3000", Boundary{Mode: ModeRange, Time: media.Fraction{Num: 30, Den: 1}}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q): got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "T10", "Tabc", "Fx", "D", "D3/0", "-5", "soon", "1/0", "T1:2:3:4"} {
		b, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q): expected error, got %+v", in, b)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Input != in {
			t.Errorf("Parse(%q): error %v is not a ParseError for the input", in, err)
		}
		if b.Mode != ModeNone {
			t.Errorf("Parse(%q): mode %v, want none", in, b.Mode)
		}
	}
}

func TestParseZeroSize(t *testing.T) {
	t.Parallel()
	_, err := Parse("S0")
	if !errors.Is(err, ErrZeroSize) {
		t.Errorf("got %v, want ErrZeroSize", err)
	}
}
