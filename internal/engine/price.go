package engine

import (
	"math"

	"lprevert/internal/model"
)

var lnTickBase = math.Log(1.0001)

// TickToPrice converts a pool tick to USD per unit of the base asset.
// Strictly decreasing in tick.
func TickToPrice(tick int64) float64 {
	return math.Exp(-float64(tick) * lnTickBase)
}

// SqrtRatio returns 1.0001^(tick/2), the square-root price at a tick.
func SqrtRatio(tick int64) float64 {
	return math.Pow(1.0001, float64(tick)/2.0)
}

// floorDiv divides flooring toward negative infinity. Ticks on USD-quoted
// pools are typically negative, so truncating division would misalign ranges.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// PlanRange computes a spacing-aligned, strictly one-sided tick range of
// roughly targetPct width that excludes the entry tick. A range collapsed by
// alignment is widened to a single spacing unit.
func PlanRange(entryTick, spacing int64, targetPct float64, dir model.Direction) (int64, int64) {
	width := int64(math.Ceil(math.Log(1.0+targetPct) / lnTickBase))
	if width < spacing {
		width = spacing
	}

	var lower, upper int64
	if dir == model.DirectionBelow {
		upper = floorDiv(entryTick, spacing)*spacing - spacing
		lower = upper - (width/spacing)*spacing
	} else {
		lower = floorDiv(entryTick+spacing, spacing) * spacing
		upper = lower + (width/spacing)*spacing
	}
	if lower >= upper {
		upper = lower + spacing
	}
	return lower, upper
}

// LiquidityFromQuote sizes single-sided liquidity funded entirely with the
// quote asset, for a range below the current tick.
func LiquidityFromQuote(tickLower, tickUpper int64, amount1 float64) float64 {
	sa := SqrtRatio(tickLower)
	sb := SqrtRatio(tickUpper)
	return amount1 / (sb - sa)
}

// LiquidityFromBase sizes single-sided liquidity funded entirely with the
// base asset, for a range above the current tick.
func LiquidityFromBase(tickLower, tickUpper int64, amount0 float64) float64 {
	sa := SqrtRatio(tickLower)
	sb := SqrtRatio(tickUpper)
	return amount0 * (sa * sb) / (sb - sa)
}

// AmountsAtTick returns the base and quote amounts backing liquidity L when
// the pool trades at tickNow. Below the range the value is all base, above
// it all quote, inside it a mix.
func AmountsAtTick(liquidity float64, tickLower, tickUpper, tickNow int64) (float64, float64) {
	sa := SqrtRatio(tickLower)
	sb := SqrtRatio(tickUpper)
	switch {
	case tickNow <= tickLower:
		return liquidity * (sb - sa) / (sa * sb), 0
	case tickNow >= tickUpper:
		return 0, liquidity * (sb - sa)
	default:
		s := SqrtRatio(tickNow)
		return liquidity * (sb - s) / (s * sb), liquidity * (s - sa)
	}
}
