package pricing

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"arbscope/internal/model"
)

func testPool(reserveBase, reserveQuote int64, decBase, decQuote uint8) model.Pool {
	pair, _ := model.NewTokenPair("tokenA", "tokenB")
	return model.Pool{
		Address:       "pool1",
		Venue:         model.VenueRaydium,
		Pair:          pair,
		ReserveA:      big.NewInt(reserveBase),
		ReserveB:      big.NewInt(reserveQuote),
		DecimalsA:     decBase,
		DecimalsB:     decQuote,
		DecimalsKnown: true,
		FeePPM:        3000,
	}
}

func TestMarginalPrice(t *testing.T) {
	// 1.0 base vs 2.0 quote at 6 decimals each.
	price, err := MarginalPrice(testPool(1_000_000, 2_000_000, 6, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(price-2.0) > 1e-12 {
		t.Fatalf("expected price 2.0, got %v", price)
	}
}

func TestMarginalPriceScaleInvariance(t *testing.T) {
	small, err := MarginalPrice(testPool(3_000_000, 6_000_000, 6, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	big1000, err := MarginalPrice(testPool(3_000_000_000, 6_000_000_000, 6, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if small != big1000 {
		t.Fatalf("price changed under proportional reserve scaling: %v vs %v", small, big1000)
	}
}

func TestMarginalPriceDecimalNormalization(t *testing.T) {
	// 1000 base units at 9 decimals, 2000 quote units at 6 decimals.
	price, err := MarginalPrice(testPool(1_000_000_000_000, 2_000_000_000, 9, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(price-2.0) > 1e-12 {
		t.Fatalf("expected price 2.0, got %v", price)
	}
}

func TestMarginalPriceReversed(t *testing.T) {
	// Storage order is (quote, base) when the venue lists tokens against
	// canonical order.
	p := testPool(2_000_000, 1_000_000, 6, 6)
	p.Reversed = true

	price, err := MarginalPrice(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(price-2.0) > 1e-12 {
		t.Fatalf("expected price 2.0 after reorientation, got %v", price)
	}
}

func TestMarginalPriceUnknownDecimals(t *testing.T) {
	p := testPool(1_000_000, 2_000_000, 6, 6)
	p.DecimalsKnown = false

	if _, err := MarginalPrice(p); !errors.Is(err, ErrUnknownDecimals) {
		t.Fatalf("expected ErrUnknownDecimals, got %v", err)
	}
}

func TestMarginalPriceUndefined(t *testing.T) {
	cases := map[string]model.Pool{
		"empty base":   testPool(0, 2_000_000, 6, 6),
		"empty quote":  testPool(1_000_000, 0, 6, 6),
		"both empty":   testPool(0, 0, 6, 6),
		"nil reserves": func() model.Pool { p := testPool(1, 1, 6, 6); p.ReserveA = nil; return p }(),
	}
	for name, p := range cases {
		if _, err := MarginalPrice(p); !errors.Is(err, ErrUndefinedPrice) {
			t.Fatalf("%s: expected ErrUndefinedPrice, got %v", name, err)
		}
	}
}

func TestAmountOutWorseThanMarginal(t *testing.T) {
	reserveIn := big.NewInt(2_000_000)
	reserveOut := big.NewInt(1_000_000)
	amountIn := big.NewInt(10_000)

	out := AmountOut(amountIn, reserveIn, reserveOut, 3000)
	if out.Sign() <= 0 {
		t.Fatalf("expected positive output, got %v", out)
	}
	// The marginal rate is 0.5 out per in; fee plus curve impact must
	// leave the effective rate strictly below it.
	if new(big.Int).Mul(out, big.NewInt(2)).Cmp(amountIn) >= 0 {
		t.Fatalf("effective price not worse than marginal: in=%v out=%v", amountIn, out)
	}
}

func TestAmountOutGrowsWithDepth(t *testing.T) {
	amountIn := big.NewInt(10_000)
	shallow := AmountOut(amountIn, big.NewInt(2_000_000), big.NewInt(1_000_000), 3000)
	deep := AmountOut(amountIn, big.NewInt(2_000_000_000), big.NewInt(1_000_000_000), 3000)
	if deep.Cmp(shallow) <= 0 {
		t.Fatalf("deeper pool must give better output: shallow=%v deep=%v", shallow, deep)
	}
}

func TestAmountOutDegenerate(t *testing.T) {
	if out := AmountOut(big.NewInt(0), big.NewInt(100), big.NewInt(100), 0); out.Sign() != 0 {
		t.Fatalf("zero input must yield zero, got %v", out)
	}
	if out := AmountOut(big.NewInt(10), big.NewInt(0), big.NewInt(100), 0); out.Sign() != 0 {
		t.Fatalf("empty input reserve must yield zero, got %v", out)
	}
	if out := AmountOut(nil, big.NewInt(100), big.NewInt(100), 0); out.Sign() != 0 {
		t.Fatalf("nil input must yield zero, got %v", out)
	}
}

func TestEstimateProfitPositiveSpread(t *testing.T) {
	buy := testPool(1_000_000, 2_000_000, 6, 6)
	sell := testPool(1_000_000, 2_100_000, 6, 6)
	sell.Address = "pool2"
	sell.Venue = model.VenueOrca

	est, err := EstimateProfit(buy, sell, 0.01, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Profit <= 0 {
		t.Fatalf("expected positive profit on a 5%% spread, got %v", est.Profit)
	}
	if est.QuoteOut <= 0.01 {
		t.Fatalf("round trip did not recover the notional: %v", est.QuoteOut)
	}
}

func TestEstimateProfitSpreadTooThin(t *testing.T) {
	// A 0.05% spread cannot clear two 0.3% fee legs.
	buy := testPool(1_000_000, 2_000_000, 6, 6)
	sell := testPool(1_000_000, 2_001_000, 6, 6)
	sell.Address = "pool2"

	est, err := EstimateProfit(buy, sell, 0.01, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Profit > 0 {
		t.Fatalf("thin spread must not be profitable, got %v", est.Profit)
	}
}

func TestEstimateProfitRejects(t *testing.T) {
	buy := testPool(1_000_000, 2_000_000, 6, 6)

	other := testPool(1_000_000, 2_000_000, 6, 6)
	other.Pair, _ = model.NewTokenPair("tokenA", "tokenC")
	if _, err := EstimateProfit(buy, other, 0.01, 0); err == nil {
		t.Fatalf("expected error for mismatched pairs")
	}

	unknown := testPool(1_000_000, 2_000_000, 6, 6)
	unknown.DecimalsKnown = false
	if _, err := EstimateProfit(buy, unknown, 0.01, 0); !errors.Is(err, ErrUnknownDecimals) {
		t.Fatalf("expected ErrUnknownDecimals, got %v", err)
	}

	if _, err := EstimateProfit(buy, testPool(1, 2, 6, 6), 0, 0); err == nil {
		t.Fatalf("expected error for non-positive notional")
	}
}

func TestEstimateProfitCrossDecimalPools(t *testing.T) {
	// Same economics, base token held at 9 decimals on one venue and 6 on
	// the other.
	buy := testPool(1_000_000_000_000, 2_000_000_000, 9, 6)
	sell := testPool(1_000_000_000, 2_100_000_000, 6, 6)
	sell.Address = "pool2"

	est, err := EstimateProfit(buy, sell, 0.01, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Profit <= 0 {
		t.Fatalf("expected positive profit across decimal precisions, got %v", est.Profit)
	}
}
