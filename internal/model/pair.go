package model

// TokenPair is a canonically ordered token pair. Base is always the
// lexicographically smaller token identifier, so the same economic pair
// maps to the same TokenPair regardless of on-chain storage order.
type TokenPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// NewTokenPair canonicalizes two token identifiers. The second return is
// true when the inputs arrived in reversed (quote, base) order, which
// matters for price direction.
func NewTokenPair(tokenA, tokenB string) (TokenPair, bool) {
	if tokenB < tokenA {
		return TokenPair{Base: tokenB, Quote: tokenA}, true
	}
	return TokenPair{Base: tokenA, Quote: tokenB}, false
}

// Key returns a stable map key for the pair.
func (p TokenPair) Key() string {
	return p.Base + "/" + p.Quote
}
