// Package fixed provides the integer fixed-point types used by the
// monetary policy: Perbill for bid prices (unsigned fraction of one) and
// Fixed64 for supply-adjustment ratios (signed, may exceed one).
// Both use parts-per-billion accuracy. Multiplications against balance
// values go through 256-bit intermediates so they cannot overflow at the
// price boundary.
package fixed

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// Accuracy is the fixed denominator: one billion parts make a whole.
const Accuracy uint64 = 1_000_000_000

// Perbill is a fraction in [0, 1] with parts-per-billion accuracy.
type Perbill uint32

// FromPercent builds a Perbill from a percentage. Values above 100 are
// clamped to 100%.
func FromPercent(p uint32) Perbill {
	if p > 100 {
		p = 100
	}
	return Perbill(p * 10_000_000)
}

// FromParts builds a Perbill directly from parts per billion, clamped to
// one.
func FromParts(parts uint64) Perbill {
	if parts > Accuracy {
		parts = Accuracy
	}
	return Perbill(parts)
}

// One is 100%.
func One() Perbill { return Perbill(Accuracy) }

// Parts returns the raw parts-per-billion value.
func (p Perbill) Parts() uint64 { return uint64(p) }

// Mul multiplies a balance value by the fraction, rounding toward zero.
// The intermediate product is 96 bits at most so it is computed in
// 256-bit space and the result always fits back into a uint64.
func (p Perbill) Mul(v uint64) uint64 {
	prod := new(uint256.Int).Mul(uint256.NewInt(uint64(p)), uint256.NewInt(v))
	prod.Div(prod, uint256.NewInt(Accuracy))
	return prod.Uint64()
}

// DivToInverse computes v / p, i.e. multiplication by the inverse
// fraction, rounding toward zero. Used to convert payment coins back to
// bond payout coins. Returns an error when the result does not fit a
// uint64 or the fraction is zero.
func (p Perbill) DivToInverse(v uint64) (uint64, error) {
	if p == 0 {
		return 0, fmt.Errorf("division by zero perbill")
	}
	num := new(uint256.Int).Mul(uint256.NewInt(v), uint256.NewInt(Accuracy))
	num.Div(num, uint256.NewInt(uint64(p)))
	if !num.IsUint64() {
		return 0, fmt.Errorf("inverse multiplication overflows uint64")
	}
	return num.Uint64(), nil
}

func (p Perbill) String() string {
	whole := uint64(p) / (Accuracy / 100)
	frac := uint64(p) % (Accuracy / 100)
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	return fmt.Sprintf("%d.%07d%%", whole, frac)
}

// Fixed64 is a signed fixed-point number with parts-per-billion accuracy.
// Unlike Perbill it can represent ratios greater than one, which supply
// adjustment needs when the price deviates far from the peg.
type Fixed64 int64

// FromRational builds the ratio n/d as a Fixed64, rounding toward zero.
func FromRational(n int64, d uint64) Fixed64 {
	if d == 0 {
		panic("fixed: zero denominator")
	}
	neg := n < 0
	un := uint64(n)
	if neg {
		un = uint64(-n)
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(un), uint256.NewInt(Accuracy))
	prod.Div(prod, uint256.NewInt(d))
	parts := prod.Uint64()
	if parts > math.MaxInt64 {
		parts = math.MaxInt64
	}
	if neg {
		return Fixed64(-int64(parts))
	}
	return Fixed64(parts)
}

// FromNatural lifts a whole number into fixed-point space.
func FromNatural(n int64) Fixed64 {
	return Fixed64(n) * Fixed64(Accuracy)
}

// Sub subtracts without overflow checking; callers keep operands small.
func (f Fixed64) Sub(other Fixed64) Fixed64 { return f - other }

// SaturatedMul multiplies a balance value by the ratio, saturating at the
// uint64 bounds. Negative ratios saturate to zero.
func (f Fixed64) SaturatedMul(v uint64) uint64 {
	if f <= 0 {
		return 0
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(uint64(f)), uint256.NewInt(v))
	prod.Div(prod, uint256.NewInt(Accuracy))
	if !prod.IsUint64() {
		return math.MaxUint64
	}
	return prod.Uint64()
}

// SaturatedMulAccumulate computes v + f*v saturating at the uint64
// bounds, mirroring the accumulate operation the adjustment math uses for
// payout targets.
func (f Fixed64) SaturatedMulAccumulate(v uint64) uint64 {
	scaled := f.SaturatedMul(v)
	if v > math.MaxUint64-scaled {
		return math.MaxUint64
	}
	return v + scaled
}
