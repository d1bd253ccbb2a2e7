package pricing

import (
	"fmt"
	"math/big"

	"arbscope/internal/model"
)

// TradeEstimate is the slippage-aware result of simulating both legs of
// a cross-venue round trip for a fixed notional.
type TradeEstimate struct {
	// BaseOut is the base amount acquired on the buy leg, in whole units.
	BaseOut float64
	// QuoteOut is the quote amount recovered on the sell leg, in whole units.
	QuoteOut float64
	// Profit is QuoteOut minus notional minus the slippage allowance,
	// in quote units.
	Profit float64
}

// EstimateProfit simulates spending notionalQuote (whole quote units) on
// the buy pool and selling the acquired base on the sell pool, applying
// each pool's fee once per leg through the constant-product curve, then
// subtracting a slippage allowance. Both pools must be on the same
// canonical pair.
func EstimateProfit(buy, sell model.Pool, notionalQuote, slippagePct float64) (TradeEstimate, error) {
	if buy.Pair != sell.Pair {
		return TradeEstimate{}, fmt.Errorf("pair mismatch: %s vs %s", buy.Pair.Key(), sell.Pair.Key())
	}
	if !buy.DecimalsKnown || !sell.DecimalsKnown {
		return TradeEstimate{}, ErrUnknownDecimals
	}
	if notionalQuote <= 0 {
		return TradeEstimate{}, fmt.Errorf("notional must be positive, got %v", notionalQuote)
	}

	buyBase, buyQuote, buyBaseDec, buyQuoteDec := orient(buy)
	sellBase, sellQuote, sellBaseDec, sellQuoteDec := orient(sell)

	// Buy leg: quote in, base out.
	quoteIn := toRaw(notionalQuote, buyQuoteDec)
	if quoteIn.Sign() <= 0 {
		return TradeEstimate{}, ErrUndefinedPrice
	}
	baseOut := AmountOut(quoteIn, buyQuote, buyBase, buy.FeePPM)
	if baseOut.Sign() <= 0 {
		return TradeEstimate{}, ErrUndefinedPrice
	}

	// Sell leg: base in, quote out. Rescale if the two pools record the
	// base token at different precisions.
	baseIn := rescale(baseOut, buyBaseDec, sellBaseDec)
	quoteOut := AmountOut(baseIn, sellBase, sellQuote, sell.FeePPM)

	baseOutWhole := fromRaw(baseOut, buyBaseDec)
	quoteOutWhole := fromRaw(quoteOut, sellQuoteDec)
	profit := quoteOutWhole - notionalQuote - notionalQuote*slippagePct/100

	return TradeEstimate{
		BaseOut:  baseOutWhole,
		QuoteOut: quoteOutWhole,
		Profit:   profit,
	}, nil
}

// toRaw converts a whole-unit amount to raw integer units at dec
// precision, truncating sub-unit dust.
func toRaw(amount float64, dec uint8) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(amount), new(big.Float).SetInt(pow10(dec)))
	raw, _ := scaled.Int(nil)
	return raw
}

func fromRaw(amount *big.Int, dec uint8) float64 {
	ratio := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(pow10(dec)))
	out, _ := ratio.Float64()
	return out
}

func rescale(amount *big.Int, fromDec, toDec uint8) *big.Int {
	if fromDec == toDec {
		return amount
	}
	if toDec > fromDec {
		return new(big.Int).Mul(amount, pow10(toDec-fromDec))
	}
	return new(big.Int).Div(amount, pow10(fromDec-toDec))
}
