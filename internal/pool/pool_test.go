package pool_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/model"
	"github.com/hibrida/pricing-engine/internal/pool"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestDeposit_EmptyPoolMintsOneToOne(t *testing.T) {
	p := model.LiquidityPool{FeeRate: d(0.02)}

	minted := pool.Deposit(&p, d(100))
	if !minted.Equal(d(100)) {
		t.Errorf("minted = %s, want 100", minted)
	}
	if !p.TotalLiquidity.Equal(d(100)) || !p.TotalShares.Equal(d(100)) {
		t.Errorf("pool = %s/%s, want 100/100", p.TotalLiquidity, p.TotalShares)
	}
}

func TestDeposit_MintsProRata(t *testing.T) {
	// Share price 2: 200 capital over 100 shares. A 50 deposit buys 25.
	p := model.LiquidityPool{TotalLiquidity: d(200), TotalShares: d(100)}

	minted := pool.Deposit(&p, d(50))
	if !minted.Equal(d(25)) {
		t.Errorf("minted = %s, want 25", minted)
	}
	if !p.TotalLiquidity.Equal(d(250)) || !p.TotalShares.Equal(d(125)) {
		t.Errorf("pool = %s/%s, want 250/125", p.TotalLiquidity, p.TotalShares)
	}
}

func TestRedeem_ProportionalPayout(t *testing.T) {
	p := model.LiquidityPool{TotalLiquidity: d(1000), TotalShares: d(500)}

	paid, err := pool.Redeem(&p, d(100)) // 20% of shares → 200
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !paid.Equal(d(200)) {
		t.Errorf("paid = %s, want 200", paid)
	}
	if !p.TotalLiquidity.Equal(d(800)) || !p.TotalShares.Equal(d(400)) {
		t.Errorf("pool = %s/%s, want 800/400", p.TotalLiquidity, p.TotalShares)
	}
}

func TestRedeem_EmptyPool(t *testing.T) {
	p := model.LiquidityPool{}

	if _, err := pool.Redeem(&p, d(10)); err != pool.ErrEmpty {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestDepositRedeem_RoundTrip(t *testing.T) {
	p := model.LiquidityPool{TotalLiquidity: d(5000), TotalShares: d(5000)}

	minted := pool.Deposit(&p, d(40))
	paid, err := pool.Redeem(&p, minted)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if paid.Sub(d(40)).Abs().GreaterThan(d(1e-9)) {
		t.Errorf("round trip paid %s, want ≈ 40", paid)
	}
}

func TestAccrueFee_MintsSharesOneToOne(t *testing.T) {
	p := model.LiquidityPool{TotalLiquidity: d(1000), TotalShares: d(1000)}

	pool.AccrueFee(&p, d(1))
	if !p.TotalLiquidity.Equal(d(1001)) || !p.TotalShares.Equal(d(1001)) {
		t.Errorf("pool = %s/%s, want 1001/1001", p.TotalLiquidity, p.TotalShares)
	}
}

func TestAbsorbSettlement_HalvesPayoutBurden(t *testing.T) {
	p := model.LiquidityPool{TotalLiquidity: d(1001), TotalShares: d(1001)}

	pool.AbsorbSettlement(&p, d(98))
	if !p.TotalLiquidity.Equal(d(952)) {
		t.Errorf("liquidity = %s, want 952", p.TotalLiquidity)
	}
	// Shares are untouched by settlement.
	if !p.TotalShares.Equal(d(1001)) {
		t.Errorf("shares = %s, want 1001", p.TotalShares)
	}
}

func TestAbsorbSettlement_FlooredAtZero(t *testing.T) {
	p := model.LiquidityPool{TotalLiquidity: d(10), TotalShares: d(10)}

	pool.AbsorbSettlement(&p, d(1000))
	if !p.TotalLiquidity.IsZero() {
		t.Errorf("liquidity = %s, want 0", p.TotalLiquidity)
	}
}

func TestSharePrice(t *testing.T) {
	p := model.LiquidityPool{TotalLiquidity: d(200), TotalShares: d(100)}
	if got := pool.SharePrice(p); !got.Equal(d(2)) {
		t.Errorf("share price = %s, want 2", got)
	}

	if got := pool.SharePrice(model.LiquidityPool{}); !got.IsZero() {
		t.Errorf("empty pool share price = %s, want 0", got)
	}
}
