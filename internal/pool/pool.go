// Package pool implements share accounting for the shared liquidity pool.
//
// The pool holds seed capital plus every trading fee collected by the
// engine. Depositors are issued LP shares pro rata against pooled capital
// and redeem them for their proportional fraction of the pool. Fee shares
// are minted 1:1 with the fee amount, which slightly dilutes existing LPs'
// proportional claim on trading revenue.
package pool

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/model"
)

// ErrEmpty is returned when redeeming against a pool with no capital or no
// outstanding shares.
var ErrEmpty = errors.New("pool: pool is empty")

var half = decimal.NewFromFloat(0.5)

// SharesForDeposit computes the LP shares minted for depositing amount:
// 1:1 while the pool is empty, otherwise amount/totalLiquidity of the
// outstanding shares.
func SharesForDeposit(p model.LiquidityPool, amount decimal.Decimal) decimal.Decimal {
	if p.TotalShares.IsZero() || p.TotalLiquidity.IsZero() {
		return amount
	}
	return amount.Div(p.TotalLiquidity).Mul(p.TotalShares)
}

// Deposit adds amount to the pool and returns the LP shares minted for it.
func Deposit(p *model.LiquidityPool, amount decimal.Decimal) decimal.Decimal {
	minted := SharesForDeposit(*p, amount)
	p.TotalLiquidity = p.TotalLiquidity.Add(amount)
	p.TotalShares = p.TotalShares.Add(minted)
	return minted
}

// Redeem burns the given LP shares and pays out their proportional fraction
// of pooled capital.
func Redeem(p *model.LiquidityPool, shares decimal.Decimal) (decimal.Decimal, error) {
	if p.TotalShares.LessThanOrEqual(decimal.Zero) || p.TotalLiquidity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrEmpty
	}
	amount := shares.Div(p.TotalShares).Mul(p.TotalLiquidity)
	p.TotalLiquidity = p.TotalLiquidity.Sub(amount)
	p.TotalShares = p.TotalShares.Sub(shares)
	return amount, nil
}

// AccrueFee routes a trading fee into the pool, minting pool shares 1:1
// with the fee amount.
func AccrueFee(p *model.LiquidityPool, fee decimal.Decimal) {
	p.TotalLiquidity = p.TotalLiquidity.Add(fee)
	p.TotalShares = p.TotalShares.Add(fee)
}

// AbsorbSettlement draws down pooled capital by half the realized payout of
// a market resolution, floored at zero. The pool underwrote half the AMM's
// implied exposure; the other half is treated as funded by fees already
// collected.
func AbsorbSettlement(p *model.LiquidityPool, totalPayout decimal.Decimal) {
	p.TotalLiquidity = p.TotalLiquidity.Sub(totalPayout.Mul(half))
	if p.TotalLiquidity.IsNegative() {
		p.TotalLiquidity = decimal.Zero
	}
}

// SharePrice returns pooled capital per outstanding LP share, or zero for
// an empty pool.
func SharePrice(p model.LiquidityPool) decimal.Decimal {
	if p.TotalShares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return p.TotalLiquidity.Div(p.TotalShares)
}
