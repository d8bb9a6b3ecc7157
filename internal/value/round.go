package value

import (
	"fmt"
	"math"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
)

// RoundingMode selects how ties are broken when rounding.
type RoundingMode int

const (
	// RoundAwayFromZero rounds halves away from zero (2.5 -> 3, -2.5 -> -3).
	RoundAwayFromZero RoundingMode = iota
	// RoundToEven rounds halves to the nearest even digit (2.5 -> 2, 3.5 -> 4).
	RoundToEven
)

// ParseRoundingMode accepts "AwayFromZero", "away-from-zero", "ToEven", "even", ...
// Matching ignores case, dashes, underscores, and spaces.
func ParseRoundingMode(s string) (RoundingMode, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch key {
	case "awayfromzero", "away", "halfup":
		return RoundAwayFromZero, nil
	case "toeven", "even", "halfeven", "bankers":
		return RoundToEven, nil
	}
	return 0, fmt.Errorf("%w: unknown rounding mode %q", types.ErrCoercionFailed, s)
}

// Round rounds x at the given number of decimal places.
// Integer input with digits >= 0 is returned unchanged.
func Round(x Value, digits int, mode RoundingMode) (Value, error) {
	if x.kind == KindInteger && digits >= 0 {
		return x, nil
	}
	f, ok := x.AsFloat()
	if !ok {
		return Null(), fmt.Errorf("%w: cannot round %s", types.ErrTypeMismatch, x.kind)
	}
	return Float(RoundFloat(f, digits, mode)), nil
}

// RoundFloat rounds f at digits decimal places using mode.
//
// The scaled value is first snapped to 12 significant digits so that binary
// representation noise (1.005*100 = 100.49999...) does not flip a tie.
// Asking for more digits than a float64 carries returns f unchanged.
func RoundFloat(f float64, digits int, mode RoundingMode) float64 {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	if mag := int(math.Floor(math.Log10(math.Abs(f)))); digits >= 15-mag {
		return f
	}
	scale := math.Pow10(digits)
	if scale == 0 {
		return math.Copysign(0, f)
	}
	scaled := f * scale
	if math.IsInf(scaled, 0) {
		return f
	}
	scaled = snap(scaled)
	var r float64
	switch mode {
	case RoundToEven:
		r = math.RoundToEven(scaled)
	default:
		r = math.Round(scaled)
	}
	return r / scale
}

func snap(x float64) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	mag := math.Floor(math.Log10(math.Abs(x)))
	p := math.Pow10(int(11 - mag))
	if math.IsInf(p, 0) || p == 0 {
		return x
	}
	return math.Round(x*p) / p
}
