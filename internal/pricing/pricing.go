// Package pricing implements the hybrid price model for binary prediction
// markets. A market's tradeable YES probability is blended from three
// signal sources:
//
//   - AMM: a logistic (softmax) price over the cumulative stake routed to
//     each side, p = exp(qYes/b) / (exp(qYes/b) + exp(qNo/b)), with the
//     liquidity constant b controlling sensitivity (larger b → flatter
//     response). Always contributes, weight 0.5.
//   - Crowd: the share of aggregate position stake committed to YES across
//     all accounts. Contributes only when any stake exists, weight 0.3.
//   - Last trade: the most recent executed YES price, contributing only
//     while strictly inside (0,1), weight 0.2.
//
// Weights are renormalized over the components that contribute. The result
// is clamped to [MinPrice, MaxPrice] while the market is open; resolved
// markets short-circuit to exactly 1 or 0.
//
// Monetary values stay in shopspring/decimal. Internal transcendental math
// uses float64 with max-subtraction for numerical stability, and results
// are converted back to decimal immediately.
//
// Quoting is total: every degenerate input (b <= 0, non-finite
// exponentials, zero stake) has a well-defined fallback, never an error.
// Quote is pure and deterministic so that trade previews and executions
// computed from the same state always agree.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/model"
)

var (
	// MinPrice is the lowest quoted probability for an open market.
	// Prevents degenerate all-or-nothing pricing before resolution.
	MinPrice = decimal.NewFromFloat(0.01)

	// MaxPrice is the highest quoted probability for an open market.
	MaxPrice = decimal.NewFromFloat(0.99)

	// PriceScale is the number of decimal places quotes are rounded to.
	PriceScale int32 = 8
)

// Fixed blend weights. Renormalized over whichever components contribute.
const (
	weightAMM   = 0.5
	weightCrowd = 0.3
	weightLast  = 0.2
)

// AMMYes computes the logistic AMM price for the YES side. Returns 0.5
// when b <= 0 or the exponentials degenerate (the neutral prior).
//
// Uses max-subtraction so the exponentials stay in [0,1] regardless of how
// much stake the market has absorbed; without it exp(q/b) overflows float64
// once q/b exceeds ~709.
func AMMYes(amm model.AMMState) float64 {
	b := amm.B.InexactFloat64()
	if b <= 0 {
		return 0.5
	}

	yOverB := amm.QYes.InexactFloat64() / b
	nOverB := amm.QNo.InexactFloat64() / b
	maxVal := math.Max(yOverB, nOverB)

	expYes := math.Exp(yOverB - maxVal)
	expNo := math.Exp(nOverB - maxVal)

	sum := expYes + expNo
	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum == 0 {
		return 0.5
	}
	return expYes / sum
}

// crowdYes derives the crowd probability from aggregate YES/NO stake.
// Undefined (ok=false) when no stake has been committed.
func crowdYes(yesStake, noStake decimal.Decimal) (float64, bool) {
	total := yesStake.Add(noStake)
	if total.LessThanOrEqual(decimal.Zero) {
		return 0, false
	}
	return yesStake.Div(total).InexactFloat64(), true
}

// lastTraded returns the last executed YES price if it is strictly inside
// (0,1); otherwise it does not contribute.
func lastTraded(p decimal.Decimal) (float64, bool) {
	if p.LessThanOrEqual(decimal.Zero) || p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 0, false
	}
	return p.InexactFloat64(), true
}

// Quote returns the hybrid YES probability for a market given the aggregate
// position stake across all accounts. Pure: identical inputs always produce
// identical output, and no state is touched.
func Quote(m *model.Market, crowdYesStake, crowdNoStake decimal.Decimal) decimal.Decimal {
	if m.Status == model.StatusResolved {
		if m.Outcome == model.SideYes {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	}

	price := AMMYes(m.AMM) * weightAMM
	weight := weightAMM

	if crowd, ok := crowdYes(crowdYesStake, crowdNoStake); ok {
		price += crowd * weightCrowd
		weight += weightCrowd
	}
	if last, ok := lastTraded(m.LastPrice); ok {
		price += last * weightLast
		weight += weightLast
	}

	if weight == 0 {
		return decimal.NewFromFloat(0.5)
	}

	result := decimal.NewFromFloat(price / weight).Round(PriceScale)
	if result.LessThan(MinPrice) {
		return MinPrice
	}
	if result.GreaterThan(MaxPrice) {
		return MaxPrice
	}
	return result
}

// QuoteNo returns the hybrid NO probability: 1 - Quote.
func QuoteNo(m *model.Market, crowdYesStake, crowdNoStake decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(Quote(m, crowdYesStake, crowdNoStake))
}
