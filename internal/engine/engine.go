// Package engine orchestrates trading, liquidity provision, and market
// resolution against the in-memory ledger state.
//
// The engine is the only mutator of accounts, markets, and the pool. Every
// operation applies as an indivisible unit under one exclusive lock, so no
// partial update is ever observable and concurrent trades against the same
// market serialize. Resolution flips the market status before settling
// positions, so a trade blocked on the lock observes the resolved status
// and fails cleanly.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/model"
	"github.com/hibrida/pricing-engine/internal/pool"
	"github.com/hibrida/pricing-engine/internal/pricing"
	"github.com/hibrida/pricing-engine/internal/store"
)

// balanceEpsilon absorbs float residue in balances accumulated through
// repeated decimal division, so a full spend never fails by a hair.
var balanceEpsilon = decimal.NewFromFloat(1e-8)

// Params are the demo-economy knobs: the balance credited to a newly
// connected account, the top-up applied to near-broke returning accounts,
// and the defaults for user-created markets.
type Params struct {
	InitialCredit   decimal.Decimal
	TopUpThreshold  decimal.Decimal
	TopUpAmount     decimal.Decimal
	MarketB         decimal.Decimal
	MarketLiquidity decimal.Decimal
}

// DefaultParams returns the demo defaults: 100 credit, top-up back to 100
// below a balance of 5, b=80 and display liquidity 1000 for new markets.
func DefaultParams() Params {
	return Params{
		InitialCredit:   decimal.NewFromInt(100),
		TopUpThreshold:  decimal.NewFromInt(5),
		TopUpAmount:     decimal.NewFromInt(100),
		MarketB:         model.DefaultB,
		MarketLiquidity: decimal.NewFromInt(1000),
	}
}

// Engine owns the authoritative state and serializes all mutations.
type Engine struct {
	mu     sync.RWMutex
	state  *model.Snapshot
	store  store.Store
	params Params
}

// New loads the persisted snapshot from st (starting from defaults when
// none exists), backfills missing fields, and returns a ready engine.
func New(ctx context.Context, st store.Store, params Params) (*Engine, error) {
	snap, err := st.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap = &model.Snapshot{}
	case err != nil:
		return nil, err
	}
	snap.Normalize()

	return &Engine{state: snap, store: st, params: params}, nil
}

// persist writes the current state through the store. Persistence failures
// are logged, not propagated: the in-memory state is authoritative and the
// next mutation retries the save.
func (e *Engine) persist(ctx context.Context) {
	if err := e.store.Save(ctx, e.state); err != nil {
		slog.Error("snapshot save failed", "err", err)
	}
}

// --- Views ---

// MarketView is a market plus its current hybrid quote for both sides.
type MarketView struct {
	model.Market
	PriceYes decimal.Decimal `json:"price_yes"`
	PriceNo  decimal.Decimal `json:"price_no"`
}

// TradeResult reports a single executed trade.
type TradeResult struct {
	Entry    model.LedgerEntry `json:"entry"`
	PriceYes decimal.Decimal   `json:"price_yes"` // post-trade quote
	PriceNo  decimal.Decimal   `json:"price_no"`
}

// ResolutionResult reports one market settlement.
type ResolutionResult struct {
	MarketID     string          `json:"market_id"`
	Outcome      string          `json:"outcome"`
	TotalPayout  decimal.Decimal `json:"total_payout"`
	AccountsPaid int             `json:"accounts_paid"`
}

// PositionView is one portfolio row: holdings plus mark-to-market value.
type PositionView struct {
	MarketID  string          `json:"market_id"`
	Question  string          `json:"question"`
	YesShares decimal.Decimal `json:"yes_shares"`
	NoShares  decimal.Decimal `json:"no_shares"`
	EstValue  decimal.Decimal `json:"est_value"`
	Status    string          `json:"status"`
	Outcome   string          `json:"outcome,omitempty"`
	Settled   bool            `json:"settled"`
}

// PortfolioView aggregates an account's balance, positions, and LP stake.
type PortfolioView struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	LPShares  decimal.Decimal `json:"lp_shares"`
	Positions []PositionView  `json:"positions"`
}

// PoolView is the liquidity-pool summary, with the per-account section
// populated when an account id was supplied.
type PoolView struct {
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	TotalShares    decimal.Decimal `json:"total_shares"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
	SharePrice     decimal.Decimal `json:"share_price"`
	AccountShares  decimal.Decimal `json:"account_shares,omitempty"`
	ShareOfPool    decimal.Decimal `json:"share_of_pool_pct,omitempty"`
}

// --- Accounts ---

// Connect registers the account if unknown, crediting the initial demo
// balance, and tops a returning account back up when it is nearly broke.
// Account ids are opaque wallet addresses, normalized to lower case.
func (e *Engine) Connect(ctx context.Context, accountID string) (*model.Account, error) {
	id := normalizeAccountID(accountID)
	if id == "" {
		return nil, ErrAccountIDRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.state.Accounts[id]
	if !ok {
		acct = &model.Account{
			ID:        id,
			Balance:   e.params.InitialCredit,
			Positions: make(map[string]*model.Position),
		}
		e.state.Accounts[id] = acct
		slog.Info("account connected", "account", id, "credit", e.params.InitialCredit.String())
	} else if acct.Balance.LessThanOrEqual(e.params.TopUpThreshold) {
		acct.Balance = e.params.TopUpAmount
		slog.Info("account topped up", "account", id, "balance", acct.Balance.String())
	}

	e.persist(ctx)
	view := *acct
	return &view, nil
}

func normalizeAccountID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// --- Trading ---

// Trade executes a single stake against the market's current hybrid quote.
//
// The price is fixed at trade time from the pre-trade state: the AMM shift
// caused by this stake moves only subsequent quotes, never the executing
// trade's own fill (single-price execution, not a slippage integral). The
// fee is diverted to the pool before share conversion.
func (e *Engine) Trade(ctx context.Context, accountID, marketID, side string, stake decimal.Decimal) (*TradeResult, error) {
	if side != model.SideYes && side != model.SideNo {
		return nil, ErrInvalidSide
	}
	if !stake.IsPositive() {
		return nil, ErrInvalidStake
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.state.Accounts[normalizeAccountID(accountID)]
	if !ok {
		return nil, ErrAccountNotConnected
	}
	m := e.state.Market(marketID)
	if m == nil {
		return nil, ErrMarketNotFound
	}
	if !m.Open() {
		return nil, ErrMarketClosed
	}
	if stake.GreaterThan(acct.Balance.Add(balanceEpsilon)) {
		return nil, ErrInsufficientBalance
	}

	crowdYes, crowdNo := e.crowdTotals(marketID)
	priceYes := pricing.Quote(m, crowdYes, crowdNo)
	priceSide := priceYes
	if side == model.SideNo {
		priceSide = decimal.NewFromInt(1).Sub(priceYes)
	}

	fee := stake.Mul(e.state.Pool.FeeRate)
	netStake := stake.Sub(fee)
	shares := netStake.Div(priceSide)

	acct.Balance = acct.Balance.Sub(stake)
	pool.AccrueFee(&e.state.Pool, fee)

	pos := acct.Position(m.ID)
	if side == model.SideYes {
		pos.YesShares = pos.YesShares.Add(shares)
		pos.YesStake = pos.YesStake.Add(netStake)
		m.AMM.QYes = m.AMM.QYes.Add(netStake)
		m.CrowdVolume.Yes = m.CrowdVolume.Yes.Add(netStake)
	} else {
		pos.NoShares = pos.NoShares.Add(shares)
		pos.NoStake = pos.NoStake.Add(netStake)
		m.AMM.QNo = m.AMM.QNo.Add(netStake)
		m.CrowdVolume.No = m.CrowdVolume.No.Add(netStake)
	}
	m.LastPrice = priceYes

	entry := model.LedgerEntry{
		ID:        uuid.New().String(),
		AccountID: acct.ID,
		MarketID:  m.ID,
		Side:      side,
		Stake:     stake,
		Fee:       fee,
		Shares:    shares,
		Price:     priceYes,
		Timestamp: time.Now().UTC(),
	}
	e.state.Ledger = append(e.state.Ledger, entry)

	e.persist(ctx)

	crowdYes, crowdNo = e.crowdTotals(marketID)
	newYes := pricing.Quote(m, crowdYes, crowdNo)

	slog.Info("trade executed",
		"trade_id", entry.ID,
		"account", acct.ID,
		"market", m.ID,
		"side", side,
		"stake", stake.String(),
		"fee", fee.String(),
		"shares", shares.String(),
		"fill_price", priceSide.String(),
		"new_price_yes", newYes.String(),
	)

	return &TradeResult{
		Entry:    entry,
		PriceYes: newYes,
		PriceNo:  decimal.NewFromInt(1).Sub(newYes),
	}, nil
}

// --- Liquidity provision ---

// Deposit moves amount from the account's balance into the pool and mints
// LP shares for it.
func (e *Engine) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.state.Accounts[normalizeAccountID(accountID)]
	if !ok {
		return decimal.Zero, ErrAccountNotConnected
	}
	if amount.GreaterThan(acct.Balance.Add(balanceEpsilon)) {
		return decimal.Zero, ErrInsufficientBalance
	}

	acct.Balance = acct.Balance.Sub(amount)
	minted := pool.Deposit(&e.state.Pool, amount)
	acct.LPShares = acct.LPShares.Add(minted)

	e.persist(ctx)

	slog.Info("liquidity deposited",
		"account", acct.ID,
		"amount", amount.String(),
		"shares_minted", minted.String(),
	)
	return minted, nil
}

// Withdraw redeems the account's entire LP share balance for its
// proportional fraction of pooled capital. Partial withdrawal is not
// offered.
func (e *Engine) Withdraw(ctx context.Context, accountID string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.state.Accounts[normalizeAccountID(accountID)]
	if !ok {
		return decimal.Zero, ErrAccountNotConnected
	}
	if acct.LPShares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrNoShares
	}

	amount, err := pool.Redeem(&e.state.Pool, acct.LPShares)
	if err != nil {
		return decimal.Zero, err
	}
	acct.LPShares = decimal.Zero
	acct.Balance = acct.Balance.Add(amount)

	e.persist(ctx)

	slog.Info("liquidity withdrawn", "account", acct.ID, "amount", amount.String())
	return amount, nil
}

// --- Resolution ---

// Resolve fixes the market's outcome and settles every outstanding position
// exactly once: winning shares pay 1 unit each, both sides' positions are
// zeroed and marked settled, and the pool absorbs half the realized payout.
// A second call is rejected with ErrMarketResolved and changes nothing.
func (e *Engine) Resolve(ctx context.Context, marketID, outcome string) (*ResolutionResult, error) {
	if outcome != model.SideYes && outcome != model.SideNo {
		return nil, ErrInvalidOutcome
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.state.Market(marketID)
	if m == nil {
		return nil, ErrMarketNotFound
	}
	if !m.Open() {
		return nil, ErrMarketResolved
	}

	// Status flips before settlement so any trade waiting on the lock
	// observes the resolved market and fails cleanly.
	m.Status = model.StatusResolved
	m.Outcome = outcome

	totalPayout := decimal.Zero
	accountsPaid := 0
	for _, acct := range e.state.Accounts {
		pos := acct.Positions[m.ID]
		if pos == nil || pos.Settled {
			continue
		}

		payout := pos.YesShares
		if outcome == model.SideNo {
			payout = pos.NoShares
		}
		if payout.IsPositive() {
			acct.Balance = acct.Balance.Add(payout)
			totalPayout = totalPayout.Add(payout)
			accountsPaid++
		}
		pos.Close()
	}

	pool.AbsorbSettlement(&e.state.Pool, totalPayout)

	e.persist(ctx)

	slog.Info("market resolved",
		"market", m.ID,
		"outcome", outcome,
		"total_payout", totalPayout.String(),
		"accounts_paid", accountsPaid,
	)

	return &ResolutionResult{
		MarketID:     m.ID,
		Outcome:      outcome,
		TotalPayout:  totalPayout,
		AccountsPaid: accountsPaid,
	}, nil
}

// --- Market management ---

// CreateMarket registers a new market. The category defaults to "Custom"
// and the resolution date to "TBD"; an initial probability outside (0,100)
// is coerced to 50. The AMM is seeded so its softmax leans toward the
// requested probability and the last-price signal starts at it.
func (e *Engine) CreateMarket(ctx context.Context, question, category, resolutionDate string, initialProb float64) (*MarketView, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	if category = strings.TrimSpace(category); category == "" {
		category = "Custom"
	}
	if resolutionDate = strings.TrimSpace(resolutionDate); resolutionDate == "" {
		resolutionDate = "TBD"
	}
	if math.IsNaN(initialProb) || initialProb <= 0 || initialProb >= 100 {
		initialProb = 50
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m := &model.Market{
		ID:             uuid.New().String(),
		Question:       question,
		Category:       category,
		ResolutionDate: resolutionDate,
		Liquidity:      e.params.MarketLiquidity,
		AMM: model.AMMState{
			QYes: decimal.NewFromFloat(initialProb),
			QNo:  decimal.NewFromFloat(100 - initialProb),
			B:    e.params.MarketB,
		},
		LastPrice: decimal.NewFromFloat(initialProb / 100),
		Status:    model.StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	e.state.Markets = append(e.state.Markets, m)

	e.persist(ctx)

	slog.Info("market created", "market", m.ID, "question", question, "initial_prob", initialProb)
	view := e.viewMarket(m)
	return &view, nil
}

// ListMarkets returns every market with its current quote.
func (e *Engine) ListMarkets() []MarketView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	views := make([]MarketView, 0, len(e.state.Markets))
	for _, m := range e.state.Markets {
		views = append(views, e.viewMarket(m))
	}
	return views
}

// GetMarket returns one market with its current quote.
func (e *Engine) GetMarket(marketID string) (*MarketView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := e.state.Market(marketID)
	if m == nil {
		return nil, ErrMarketNotFound
	}
	view := e.viewMarket(m)
	return &view, nil
}

// History returns the immutable trade records for one market, oldest first.
func (e *Engine) History(marketID string) ([]model.LedgerEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state.Market(marketID) == nil {
		return nil, ErrMarketNotFound
	}
	entries := make([]model.LedgerEntry, 0)
	for _, entry := range e.state.Ledger {
		if entry.MarketID == marketID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// --- Queries ---

// Portfolio returns the account's balance, LP stake, and positions with
// mark-to-market valuations.
func (e *Engine) Portfolio(accountID string) (*PortfolioView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	acct, ok := e.state.Accounts[normalizeAccountID(accountID)]
	if !ok {
		return nil, ErrAccountNotConnected
	}

	view := &PortfolioView{
		AccountID: acct.ID,
		Balance:   acct.Balance,
		LPShares:  acct.LPShares,
		Positions: make([]PositionView, 0, len(acct.Positions)),
	}

	one := decimal.NewFromInt(1)
	for _, m := range e.state.Markets {
		pos := acct.Positions[m.ID]
		if pos == nil {
			continue
		}

		estValue := decimal.Zero
		if m.Open() {
			crowdYes, crowdNo := e.crowdTotals(m.ID)
			priceYes := pricing.Quote(m, crowdYes, crowdNo)
			estValue = pos.YesShares.Mul(priceYes).Add(pos.NoShares.Mul(one.Sub(priceYes)))
		} else if m.Outcome == model.SideYes {
			estValue = pos.YesShares
		} else {
			estValue = pos.NoShares
		}

		view.Positions = append(view.Positions, PositionView{
			MarketID:  m.ID,
			Question:  m.Question,
			YesShares: pos.YesShares,
			NoShares:  pos.NoShares,
			EstValue:  estValue,
			Status:    m.Status,
			Outcome:   m.Outcome,
			Settled:   pos.Settled,
		})
	}
	return view, nil
}

// Pool returns the pool summary. When accountID names a connected account
// its LP share balance and percentage of the pool are included.
func (e *Engine) Pool(accountID string) PoolView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p := e.state.Pool
	view := PoolView{
		TotalLiquidity: p.TotalLiquidity,
		TotalShares:    p.TotalShares,
		FeeRate:        p.FeeRate,
		SharePrice:     pool.SharePrice(p),
	}
	if acct, ok := e.state.Accounts[normalizeAccountID(accountID)]; ok {
		view.AccountShares = acct.LPShares
		if acct.LPShares.IsPositive() && p.TotalShares.IsPositive() {
			view.ShareOfPool = acct.LPShares.Div(p.TotalShares).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}
	return view
}

// Snapshot returns a JSON-stable copy of the full engine state.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := model.Snapshot{
		Accounts: make(map[string]*model.Account, len(e.state.Accounts)),
		Markets:  make([]*model.Market, 0, len(e.state.Markets)),
		Pool:     e.state.Pool,
		Ledger:   append([]model.LedgerEntry(nil), e.state.Ledger...),
	}
	for id, acct := range e.state.Accounts {
		cp := *acct
		cp.Positions = make(map[string]*model.Position, len(acct.Positions))
		for mid, pos := range acct.Positions {
			pcp := *pos
			cp.Positions[mid] = &pcp
		}
		snap.Accounts[id] = &cp
	}
	for _, m := range e.state.Markets {
		cp := *m
		snap.Markets = append(snap.Markets, &cp)
	}
	return snap
}

// --- internals (callers hold e.mu) ---

// crowdTotals sums YES/NO position stake for one market across every
// account. This is the crowd signal for the hybrid quote; it is derived
// from positions rather than the market's CrowdVolume mirror so that the
// quote reflects exactly what accounts hold.
func (e *Engine) crowdTotals(marketID string) (yes, no decimal.Decimal) {
	for _, acct := range e.state.Accounts {
		pos := acct.Positions[marketID]
		if pos == nil {
			continue
		}
		yes = yes.Add(pos.YesStake)
		no = no.Add(pos.NoStake)
	}
	return yes, no
}

func (e *Engine) viewMarket(m *model.Market) MarketView {
	crowdYes, crowdNo := e.crowdTotals(m.ID)
	priceYes := pricing.Quote(m, crowdYes, crowdNo)
	return MarketView{
		Market:   *m,
		PriceYes: priceYes,
		PriceNo:  decimal.NewFromInt(1).Sub(priceYes),
	}
}
