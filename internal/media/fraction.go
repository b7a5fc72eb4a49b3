package media

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

// Fraction is a non-negative rational number of seconds, or of whatever
// unit the context gives it. A zero Den marks an unset value.
type Fraction struct {
	Num uint64
	Den uint64
}

// Valid reports whether f holds a value.
func (f Fraction) Valid() bool { return f.Den != 0 }

// Seconds returns f as a float. Unset fractions are zero.
func (f Fraction) Seconds() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// Cmp compares f and g exactly, returning -1, 0 or +1.
func (f Fraction) Cmp(g Fraction) int {
	return cmp128(f.Num, g.Den, g.Num, f.Den)
}

// Less reports whether f < g.
func (f Fraction) Less(g Fraction) bool { return f.Cmp(g) < 0 }

// Add returns f+g in lowest terms. Sums sharing a denominator keep it.
func (f Fraction) Add(g Fraction) Fraction {
	if f.Den == g.Den {
		return Fraction{Num: f.Num + g.Num, Den: f.Den}
	}
	a := new(big.Rat).SetFrac(new(big.Int).SetUint64(f.Num), new(big.Int).SetUint64(f.Den))
	b := new(big.Rat).SetFrac(new(big.Int).SetUint64(g.Num), new(big.Int).SetUint64(g.Den))
	v, _ := FromRat(a.Add(a, b))
	return v
}

// In returns f expressed in ticks of timescale, truncated.
func (f Fraction) In(timescale uint64) uint64 {
	return Rescale(f.Num, timescale, f.Den)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// FromRat converts a non-negative rational whose terms fit in 64 bits.
func FromRat(r *big.Rat) (Fraction, bool) {
	if r.Sign() < 0 || !r.Num().IsUint64() || !r.Denom().IsUint64() {
		return Fraction{}, false
	}
	return Fraction{Num: r.Num().Uint64(), Den: r.Denom().Uint64()}, true
}

// Rescale converts v ticks of timescale from into ticks of timescale to,
// truncating. Results that do not fit saturate just below NoTS.
func Rescale(v, to, from uint64) uint64 {
	if from == 0 {
		return 0
	}
	if from == to {
		return v
	}
	hi, lo := bits.Mul64(v, to)
	if hi >= from {
		return math.MaxUint64 - 1
	}
	q, _ := bits.Div64(hi, lo, from)
	return q
}

// CompareTS compares ts ticks of timescale with f.
func CompareTS(ts, timescale uint64, f Fraction) int {
	return cmp128(ts, f.Den, f.Num, timescale)
}

// CompareTicks compares a/sa with b/sb.
func CompareTicks(a, sa, b, sb uint64) int {
	return cmp128(a, sb, b, sa)
}

// cmp128 compares a*b with c*d without overflow.
func cmp128(a, b, c, d uint64) int {
	h1, l1 := bits.Mul64(a, b)
	h2, l2 := bits.Mul64(c, d)
	switch {
	case h1 < h2, h1 == h2 && l1 < l2:
		return -1
	case h1 == h2 && l1 == l2:
		return 0
	}
	return 1
}

// SamplesBetween returns how many whole samples at sampleRate fit between
// ts ticks of timescale and f. It returns 0 when f is not after ts.
func SamplesBetween(ts, timescale uint64, f Fraction, sampleRate uint64) uint64 {
	if f.Den == 0 || timescale == 0 || CompareTS(ts, timescale, f) >= 0 {
		return 0
	}
	// (f.Num*timescale - ts*f.Den) * sampleRate / (f.Den*timescale)
	n := new(big.Int).Mul(new(big.Int).SetUint64(f.Num), new(big.Int).SetUint64(timescale))
	n.Sub(n, new(big.Int).Mul(new(big.Int).SetUint64(ts), new(big.Int).SetUint64(f.Den)))
	n.Mul(n, new(big.Int).SetUint64(sampleRate))
	d := new(big.Int).Mul(new(big.Int).SetUint64(f.Den), new(big.Int).SetUint64(timescale))
	n.Quo(n, d)
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}
