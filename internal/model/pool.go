package model

import "math/big"

// Known venue tags. New venues are added by defining a new tag and
// registering an account decoder for it in the feed layer.
const (
	VenueRaydium = "raydium"
	VenueOrca    = "orca"
)

// FeePPMDivisor is 100% expressed in parts per million.
const FeePPMDivisor = 1_000_000

// Pool is one observed liquidity pool. The registry is the sole owner;
// no other component mutates a Pool.
type Pool struct {
	Address string    `json:"address"`
	Venue   string    `json:"venue"`
	Pair    TokenPair `json:"pair"`

	// Reversed is true when the pool's on-chain A/B assignment is the
	// opposite of the canonical pair order.
	Reversed bool `json:"reversed"`

	// Reserves in raw on-chain units, sides as stored on-chain.
	ReserveA *big.Int `json:"reserve_a"`
	ReserveB *big.Int `json:"reserve_b"`

	DecimalsA     uint8 `json:"decimals_a"`
	DecimalsB     uint8 `json:"decimals_b"`
	DecimalsKnown bool  `json:"decimals_known"`

	// FeePPM is the input-side fee in parts per million (3000 = 0.3%).
	FeePPM uint32 `json:"fee_ppm"`

	// LastUpdate is an opaque monotonic timestamp (slot number or unix
	// nanos). Updates that do not strictly exceed it are stale.
	LastUpdate uint64 `json:"last_update"`
}

// FeeRate returns the fee as a fraction in [0, 1).
func (p Pool) FeeRate() float64 {
	return float64(p.FeePPM) / FeePPMDivisor
}

// ReserveUpdate is one inbound reserve-change event from the transport
// collaborator.
type ReserveUpdate struct {
	PoolAddress string   `json:"pool_address"`
	Venue       string   `json:"venue"`
	TokenA      string   `json:"token_a"`
	TokenB      string   `json:"token_b"`
	ReserveA    *big.Int `json:"reserve_a"`
	ReserveB    *big.Int `json:"reserve_b"`
	FeeRate     float64  `json:"fee_rate"`
	DecimalsA   uint8    `json:"decimals_a"`
	DecimalsB   uint8    `json:"decimals_b"`
	Timestamp   uint64   `json:"timestamp"`

	// VolumeDelta is an optional traded-notional estimate for this
	// update, in quote units. Zero when the source cannot provide it.
	VolumeDelta float64 `json:"volume_delta,omitempty"`
}

// PoolSeed is the static metadata supplied by a discovery signal or a
// seed file. Decimals are optional; a pool without them yields no price
// until a full update arrives.
type PoolSeed struct {
	Address   string  `json:"address"`
	Venue     string  `json:"venue"`
	TokenA    string  `json:"token_a"`
	TokenB    string  `json:"token_b"`
	DecimalsA *uint8  `json:"decimals_a,omitempty"`
	DecimalsB *uint8  `json:"decimals_b,omitempty"`
	FeeRate   float64 `json:"fee_rate"`
}

// UpdateResult reports how the registry handled a reserve update.
type UpdateResult uint8

const (
	// UpdateRejected means the event failed validation and was dropped.
	UpdateRejected UpdateResult = iota
	// UpdateStale means the event's timestamp was not strictly newer
	// than the pool's; the call was a no-op.
	UpdateStale
	// UpdateCreated means a new pool was registered.
	UpdateCreated
	// UpdateApplied means an existing pool was mutated in place.
	UpdateApplied
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateStale:
		return "stale"
	case UpdateCreated:
		return "created"
	case UpdateApplied:
		return "applied"
	default:
		return "rejected"
	}
}
