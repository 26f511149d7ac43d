// Package model defines the core domain types shared across the pricing
// engine. All monetary values use shopspring/decimal; float64 never holds
// money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market status values.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Trade sides / outcomes.
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// AMMState holds the automated-market-maker accumulators for one market:
// cumulative net stake routed to each side plus the liquidity-sensitivity
// constant b. b is fixed at market creation.
type AMMState struct {
	QYes decimal.Decimal `json:"q_yes"`
	QNo  decimal.Decimal `json:"q_no"`
	B    decimal.Decimal `json:"b"`
}

// CrowdVolume mirrors the aggregate net stake committed to each side across
// all accounts. Used as a pricing signal, not as a capital account.
type CrowdVolume struct {
	Yes decimal.Decimal `json:"yes"`
	No  decimal.Decimal `json:"no"`
}

// Market represents one binary prediction market.
//
// Once Status flips to StatusResolved the AMM state and crowd volume are
// frozen and Outcome never changes again.
type Market struct {
	ID             string          `json:"id"`
	Question       string          `json:"question"`
	Category       string          `json:"category"`
	ResolutionDate string          `json:"resolution_date"`
	Liquidity      decimal.Decimal `json:"liquidity"` // display figure, not pool capital
	AMM            AMMState        `json:"amm"`
	CrowdVolume    CrowdVolume     `json:"crowd_volume"`
	LastPrice      decimal.Decimal `json:"last_price"` // zero = no executed trade yet
	Status         string          `json:"status"`
	Outcome        string          `json:"outcome,omitempty"` // "" while open
	CreatedAt      time.Time       `json:"created_at"`
}

// Open reports whether the market still accepts trades.
func (m *Market) Open() bool {
	return m.Status == StatusOpen
}

// Position is one account's aggregate holdings in one market.
// Shares pay 1 unit of value each if their side wins; stakes record the
// net (post-fee) capital historically committed and feed crowd pricing.
type Position struct {
	YesShares decimal.Decimal `json:"yes_shares"`
	NoShares  decimal.Decimal `json:"no_shares"`
	YesStake  decimal.Decimal `json:"yes_stake"`
	NoStake   decimal.Decimal `json:"no_stake"`
	Settled   bool            `json:"settled"`
}

// Close zeroes all share and stake fields and marks the position settled.
// Called exactly once per position when its market resolves.
func (p *Position) Close() {
	p.YesShares = decimal.Zero
	p.NoShares = decimal.Zero
	p.YesStake = decimal.Zero
	p.NoStake = decimal.Zero
	p.Settled = true
}

// Account is one trading identity: spendable balance, per-market positions
// (created lazily on first trade), and a claim on the liquidity pool.
type Account struct {
	ID        string               `json:"id"`
	Balance   decimal.Decimal      `json:"balance"`
	Positions map[string]*Position `json:"positions"` // market id → position
	LPShares  decimal.Decimal      `json:"lp_shares"`
}

// Position returns the account's position in the given market, creating an
// empty one if none exists yet.
func (a *Account) Position(marketID string) *Position {
	if a.Positions == nil {
		a.Positions = make(map[string]*Position)
	}
	pos, ok := a.Positions[marketID]
	if !ok {
		pos = &Position{}
		a.Positions[marketID] = pos
	}
	return pos
}

// LiquidityPool is the process-wide fee pool: pooled capital, outstanding
// LP shares, and the fraction of every trade's stake diverted to the pool.
type LiquidityPool struct {
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	TotalShares    decimal.Decimal `json:"total_shares"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
}

// LedgerEntry is an immutable record of a single trade execution.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	MarketID  string          `json:"market_id"`
	Side      string          `json:"side"` // "YES" or "NO"
	Stake     decimal.Decimal `json:"stake"`
	Fee       decimal.Decimal `json:"fee"`
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"` // pre-trade YES quote
	Timestamp time.Time       `json:"timestamp"`
}
