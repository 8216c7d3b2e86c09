// internal/browser/jsbind/convert.go
package jsbind

import (
	"fmt"
	"math"
	"strings"
)

// Integers crossing into script are kept inside the 31-bit signed range so they
// always fit the engine's small-integer representation.
const (
	MinInt31 = -1 << 30
	MaxInt31 = 1<<30 - 1
)

// OverflowPolicy decides what happens to integer writes outside the 31-bit range.
type OverflowPolicy int

const (
	// OverflowSaturate clamps to the nearest bound.
	OverflowSaturate OverflowPolicy = iota
	// OverflowReject raises a RangeError.
	OverflowReject
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowSaturate:
		return "saturate"
	case OverflowReject:
		return "reject"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses "saturate" or "reject".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "saturate":
		return OverflowSaturate, nil
	case "reject":
		return OverflowReject, nil
	default:
		return OverflowSaturate, fmt.Errorf("unknown overflow policy %q (want saturate or reject)", s)
	}
}

// ClampInt31 saturates v to [MinInt31, MaxInt31].
func ClampInt31(v int64) int32 {
	switch {
	case v > MaxInt31:
		return MaxInt31
	case v < MinInt31:
		return MinInt31
	default:
		return int32(v)
	}
}

// clampFloat31 truncates toward zero and saturates. NaN maps to 0.
func clampFloat31(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	// Bound first so the int64 conversion is defined for infinities.
	f = math.Max(math.Min(math.Trunc(f), MaxInt31+1), MinInt31-1)
	return ClampInt31(int64(f))
}

// layoutWidth converts a layout width to a script integer. Layout values are
// always saturated.
func layoutWidth(w float64) int32 {
	return clampFloat31(w)
}

// toWidth converts a script number for a width write: NaN becomes 0, fractions
// truncate toward zero, and values outside the 31-bit range follow policy.
func toWidth(f float64, policy OverflowPolicy) (int32, error) {
	if math.IsNaN(f) {
		return 0, nil
	}
	t := math.Trunc(f)
	if t > MaxInt31 || t < MinInt31 {
		if policy == OverflowReject {
			return 0, fmt.Errorf("%w: %v is outside [%d, %d]", ErrOutOfRange, f, MinInt31, MaxInt31)
		}
	}
	return clampFloat31(t), nil
}
