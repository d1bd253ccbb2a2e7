package model

// PricePoint is the latest derived price for a (pair, venue) key. It is
// always recomputed from its source pool and overwritten in place; no
// history is retained.
type PricePoint struct {
	Pair        TokenPair `json:"pair"`
	Venue       string    `json:"venue"`
	Price       float64   `json:"price"` // quote units per base unit
	PoolAddress string    `json:"pool_address"`
	Timestamp   uint64    `json:"timestamp"`
}
