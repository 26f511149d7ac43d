package model_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/model"
)

func TestNormalize_EmptySnapshotGetsDefaults(t *testing.T) {
	var snap model.Snapshot
	snap.Normalize()

	if snap.Accounts == nil {
		t.Error("accounts map should be allocated")
	}
	if len(snap.Markets) != 4 {
		t.Fatalf("expected 4 seed markets, got %d", len(snap.Markets))
	}
	for _, m := range snap.Markets {
		if m.Status != model.StatusOpen {
			t.Errorf("seed market %s status = %q, want open", m.ID, m.Status)
		}
		if !m.AMM.B.Equal(model.DefaultB) {
			t.Errorf("seed market %s b = %s, want %s", m.ID, m.AMM.B, model.DefaultB)
		}
	}
	if !snap.Pool.TotalLiquidity.Equal(model.DefaultPoolLiquidity) {
		t.Errorf("pool liquidity = %s, want %s", snap.Pool.TotalLiquidity, model.DefaultPoolLiquidity)
	}
	if !snap.Pool.TotalShares.Equal(model.DefaultPoolShares) {
		t.Errorf("pool shares = %s, want %s", snap.Pool.TotalShares, model.DefaultPoolShares)
	}
	if !snap.Pool.FeeRate.Equal(model.DefaultFeeRate) {
		t.Errorf("fee rate = %s, want %s", snap.Pool.FeeRate, model.DefaultFeeRate)
	}
}

func TestNormalize_LenientPartialLoad(t *testing.T) {
	// A hand-edited or stale persisted blob: one bare account, no markets,
	// no pool. Loading must repair, not reject.
	raw := `{"accounts":{"0xabc":{"balance":"42"}}}`

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	snap.Normalize()

	acct := snap.Accounts["0xabc"]
	if acct == nil {
		t.Fatal("account missing after normalize")
	}
	if acct.ID != "0xabc" {
		t.Errorf("account id backfilled to %q, want 0xabc", acct.ID)
	}
	if !acct.Balance.Equal(decimal.NewFromInt(42)) {
		t.Errorf("balance = %s, want 42", acct.Balance)
	}
	if acct.Positions == nil {
		t.Error("positions map should be allocated")
	}
	if len(snap.Markets) != 4 {
		t.Errorf("expected seed markets backfilled, got %d", len(snap.Markets))
	}
}

func TestNormalize_PreservesExistingState(t *testing.T) {
	snap := model.Snapshot{
		Markets: []*model.Market{{
			ID:     "custom",
			Status: model.StatusResolved,
			AMM:    model.AMMState{B: decimal.NewFromInt(40)},
		}},
		Pool: model.LiquidityPool{
			TotalLiquidity: decimal.NewFromInt(777),
			TotalShares:    decimal.NewFromInt(700),
			FeeRate:        decimal.NewFromFloat(0.05),
		},
	}
	snap.Normalize()

	if len(snap.Markets) != 1 || snap.Markets[0].ID != "custom" {
		t.Fatal("existing markets must not be replaced by seeds")
	}
	if snap.Markets[0].Status != model.StatusResolved {
		t.Error("resolved status must be preserved")
	}
	if !snap.Markets[0].AMM.B.Equal(decimal.NewFromInt(40)) {
		t.Error("existing b must be preserved")
	}
	if !snap.Pool.TotalLiquidity.Equal(decimal.NewFromInt(777)) {
		t.Error("existing pool must be preserved")
	}
	if !snap.Pool.FeeRate.Equal(decimal.NewFromFloat(0.05)) {
		t.Error("existing fee rate must be preserved")
	}
}

func TestNormalize_BackfillsMarketDefaults(t *testing.T) {
	snap := model.Snapshot{
		Markets: []*model.Market{{ID: "bare"}},
	}
	snap.Normalize()

	m := snap.Markets[0]
	if m.Status != model.StatusOpen {
		t.Errorf("status = %q, want open", m.Status)
	}
	if !m.AMM.B.Equal(model.DefaultB) {
		t.Errorf("b = %s, want %s", m.AMM.B, model.DefaultB)
	}
}

func TestAccountPosition_CreatedLazily(t *testing.T) {
	acct := &model.Account{ID: "0xabc"}

	pos := acct.Position("m1")
	if pos == nil {
		t.Fatal("position should be created on demand")
	}
	if !pos.YesShares.IsZero() || pos.Settled {
		t.Error("fresh position should be empty and unsettled")
	}
	if acct.Position("m1") != pos {
		t.Error("same position should be returned on repeat access")
	}
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	var snap model.Snapshot
	snap.Normalize()
	snap.Accounts["0xabc"] = &model.Account{
		ID:      "0xabc",
		Balance: decimal.NewFromFloat(99.5),
		Positions: map[string]*model.Position{
			"m1": {YesShares: decimal.NewFromInt(10), YesStake: decimal.NewFromInt(5)},
		},
	}

	data, err := json.Marshal(&snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got model.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !got.Accounts["0xabc"].Balance.Equal(decimal.NewFromFloat(99.5)) {
		t.Error("balance lost precision in round trip")
	}
	if !got.Accounts["0xabc"].Positions["m1"].YesShares.Equal(decimal.NewFromInt(10)) {
		t.Error("position lost in round trip")
	}
	if got.Market("m1") == nil {
		t.Error("markets lost in round trip")
	}
}
