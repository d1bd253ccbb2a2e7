// Package pricing turns pool reserves into prices using the
// constant-product model. Reserve arithmetic stays in the integer domain
// until the final ratio to avoid compounding precision loss.
package pricing

import (
	"errors"
	"math/big"

	"arbscope/internal/model"
)

var (
	// ErrUnknownDecimals is returned when either side's token precision
	// is missing; the engine never infers decimals.
	ErrUnknownDecimals = errors.New("token decimals unknown")
	// ErrUndefinedPrice is returned when a pool's reserves cannot yield
	// a price (degenerate or empty pool). It propagates as "no price
	// available", never as a sentinel numeric value.
	ErrUndefinedPrice = errors.New("price undefined")
)

var (
	ten        = big.NewInt(10)
	ppmDivisor = big.NewInt(model.FeePPMDivisor)
	scaleByDec [19]*big.Int
)

func init() {
	scaleByDec[0] = big.NewInt(1)
	for i := 1; i < len(scaleByDec); i++ {
		scaleByDec[i] = new(big.Int).Mul(scaleByDec[i-1], ten)
	}
}

// pow10 returns 10^dec as a read-only *big.Int.
func pow10(dec uint8) *big.Int {
	if int(dec) < len(scaleByDec) {
		return scaleByDec[dec]
	}
	return new(big.Int).Exp(ten, big.NewInt(int64(dec)), nil)
}

// orient returns the pool's reserves and decimals in canonical order:
// base side first, quote side second.
func orient(p model.Pool) (baseRes, quoteRes *big.Int, baseDec, quoteDec uint8) {
	if p.Reversed {
		return p.ReserveB, p.ReserveA, p.DecimalsB, p.DecimalsA
	}
	return p.ReserveA, p.ReserveB, p.DecimalsA, p.DecimalsB
}

// MarginalPrice computes the pool's constant-product marginal price in
// quote units per base unit, decimal-normalized and oriented by the
// pool's canonical-direction flag. Pure; no side effects.
func MarginalPrice(p model.Pool) (float64, error) {
	if !p.DecimalsKnown {
		return 0, ErrUnknownDecimals
	}
	baseRes, quoteRes, baseDec, quoteDec := orient(p)
	if baseRes == nil || quoteRes == nil || baseRes.Sign() <= 0 || quoteRes.Sign() <= 0 {
		return 0, ErrUndefinedPrice
	}

	// price = (quoteRes / 10^quoteDec) / (baseRes / 10^baseDec)
	//       = quoteRes * 10^baseDec / (baseRes * 10^quoteDec)
	num := new(big.Int).Mul(quoteRes, pow10(baseDec))
	den := new(big.Int).Mul(baseRes, pow10(quoteDec))

	ratio := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den))
	price, _ := ratio.Float64()
	return price, nil
}

// AmountOut computes the constant-product output for amountIn applied to
// (reserveIn, reserveOut) with the given input-side fee. The effective
// price is strictly worse than the marginal price for any positive
// input, with a gap that grows with size and shrinks with depth.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, feePPM uint32) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(model.FeePPMDivisor-feePPM)))
	num := new(big.Int).Mul(reserveOut, amountInWithFee)
	den := new(big.Int).Mul(reserveIn, ppmDivisor)
	den.Add(den, amountInWithFee)
	if den.Sign() == 0 {
		return new(big.Int)
	}
	return num.Div(num, den)
}
