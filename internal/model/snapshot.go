package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default pool parameters used when a snapshot carries no pool state.
var (
	DefaultPoolLiquidity = decimal.NewFromInt(5000)
	DefaultPoolShares    = decimal.NewFromInt(5000)
	DefaultFeeRate       = decimal.NewFromFloat(0.02)

	// DefaultB is the AMM liquidity-sensitivity constant assigned to
	// markets that were persisted without one.
	DefaultB = decimal.NewFromInt(80)
)

// Snapshot is the full serializable state of the engine: every account,
// every market, the liquidity pool, and the trade ledger. It is what gets
// persisted to and loaded from a Store.
type Snapshot struct {
	Accounts map[string]*Account `json:"accounts"`
	Markets  []*Market           `json:"markets"`
	Pool     LiquidityPool       `json:"pool"`
	Ledger   []LedgerEntry       `json:"ledger,omitempty"`
}

// Normalize backfills defaults into a partially missing snapshot so that a
// stale or hand-edited persisted state never prevents startup: nil maps are
// allocated, an empty market list is replaced with the seed markets, and a
// zeroed pool gets the default parameters. Loading repairs rather than
// rejects.
func (s *Snapshot) Normalize() {
	if s.Accounts == nil {
		s.Accounts = make(map[string]*Account)
	}
	for id, acct := range s.Accounts {
		if acct == nil {
			acct = &Account{}
			s.Accounts[id] = acct
		}
		if acct.ID == "" {
			acct.ID = id
		}
		if acct.Positions == nil {
			acct.Positions = make(map[string]*Position)
		}
	}

	if len(s.Markets) == 0 {
		s.Markets = SeedMarkets()
	}
	for _, m := range s.Markets {
		if m.Status == "" {
			m.Status = StatusOpen
		}
		if m.AMM.B.LessThanOrEqual(decimal.Zero) {
			m.AMM.B = DefaultB
		}
	}

	if s.Pool.TotalLiquidity.IsZero() && s.Pool.TotalShares.IsZero() {
		s.Pool.TotalLiquidity = DefaultPoolLiquidity
		s.Pool.TotalShares = DefaultPoolShares
	}
	if s.Pool.FeeRate.IsZero() {
		s.Pool.FeeRate = DefaultFeeRate
	}
}

// Market returns the market with the given id, or nil.
func (s *Snapshot) Market(id string) *Market {
	for _, m := range s.Markets {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// SeedMarkets returns the initial market set used when no persisted markets
// exist. Last prices seed the order-book component of the hybrid quote.
func SeedMarkets() []*Market {
	now := time.Now().UTC()
	seed := func(id, question, category, date string, liquidity int64, lastPrice float64) *Market {
		return &Market{
			ID:             id,
			Question:       question,
			Category:       category,
			ResolutionDate: date,
			Liquidity:      decimal.NewFromInt(liquidity),
			AMM:            AMMState{B: DefaultB},
			LastPrice:      decimal.NewFromFloat(lastPrice),
			Status:         StatusOpen,
			CreatedAt:      now,
		}
	}
	return []*Market{
		seed("m1", "Will ETH close above $5,000 on Dec 31, 2025?", "Crypto", "2025-12-31", 2000, 0.55),
		seed("m2", "Will the S&P 500 make a new all-time high by June 2025?", "Macro", "2025-06-30", 1500, 0.62),
		seed("m3", "Will Bitcoin trade above $150,000 at any point in 2026?", "Crypto", "2026-12-31", 1800, 0.48),
		seed("m4", "Will Spain win a major international football trophy by 2026?", "Sports", "2026-07-31", 1200, 0.41),
	}
}
