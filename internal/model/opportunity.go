package model

// Opportunity is a detected cross-venue price discrepancy that cleared
// both the spread threshold and the net-profit filter. It is handed to a
// sink immediately; the core keeps no ownership of emitted records.
type Opportunity struct {
	Pair        TokenPair `json:"pair"`
	BuyVenue    string    `json:"buy_venue"`
	SellVenue   string    `json:"sell_venue"`
	BuyPool     string    `json:"buy_pool"`
	SellPool    string    `json:"sell_pool"`
	BuyPrice    float64   `json:"buy_price"`
	SellPrice   float64   `json:"sell_price"`
	DiffPct     float64   `json:"diff_pct"`
	// EstProfit is the slippage-aware profit for the configured notional
	// trade size, in quote units, net of both legs' fees and the
	// configured slippage allowance.
	EstProfit float64 `json:"est_profit"`
	Timestamp uint64  `json:"timestamp"`
}
