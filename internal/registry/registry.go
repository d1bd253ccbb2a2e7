package registry

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"arbscope/internal/model"
)

var (
	// ErrPoolNotFound is returned when a pool address is not registered.
	ErrPoolNotFound = errors.New("pool not found in registry")
	// ErrInvalidUpdate wraps validation failures on inbound events.
	ErrInvalidUpdate = errors.New("invalid reserve update")
)

// Registry is the authoritative in-memory store of every pool under
// observation. It is the sole owner of Pool state; readers receive
// copies that stay valid only until the next update.
type Registry struct {
	mu       sync.RWMutex
	pools    map[string]*entry
	byPair   map[string]map[string]*entry
	halfLife time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type entry struct {
	pool     model.Pool
	activity accumulator
}

// New builds a Registry. halfLife parameterizes activity decay.
func New(halfLife time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		pools:    make(map[string]*entry),
		byPair:   make(map[string]map[string]*entry),
		halfLife: halfLife,
		logger:   logger,
		now:      time.Now,
	}
}

func validate(u model.ReserveUpdate) error {
	if u.PoolAddress == "" {
		return fmt.Errorf("%w: empty pool address", ErrInvalidUpdate)
	}
	if u.Venue == "" {
		return fmt.Errorf("%w: empty venue", ErrInvalidUpdate)
	}
	if u.TokenA == "" || u.TokenB == "" || u.TokenA == u.TokenB {
		return fmt.Errorf("%w: bad token pair (%q, %q)", ErrInvalidUpdate, u.TokenA, u.TokenB)
	}
	if u.ReserveA == nil || u.ReserveB == nil {
		return fmt.Errorf("%w: nil reserve", ErrInvalidUpdate)
	}
	if u.ReserveA.Sign() < 0 || u.ReserveB.Sign() < 0 {
		return fmt.Errorf("%w: negative reserve", ErrInvalidUpdate)
	}
	if u.FeeRate < 0 || u.FeeRate >= 1 {
		return fmt.Errorf("%w: fee rate %v outside [0, 1)", ErrInvalidUpdate, u.FeeRate)
	}
	return nil
}

// ApplyUpdate validates and applies one reserve-change event. On first
// sight of the pool address a new Pool is registered; otherwise the pool
// is mutated in place. Events whose timestamp is not strictly newer than
// the pool's are a no-op returning UpdateStale. Every accepted event
// bumps the pool's activity accumulator.
func (r *Registry) ApplyUpdate(u model.ReserveUpdate) (model.UpdateResult, error) {
	if err := validate(u); err != nil {
		return model.UpdateRejected, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	feePPM := uint32(u.FeeRate * model.FeePPMDivisor)

	e, ok := r.pools[u.PoolAddress]
	if !ok {
		pair, reversed := model.NewTokenPair(u.TokenA, u.TokenB)
		e = &entry{pool: model.Pool{
			Address:       u.PoolAddress,
			Venue:         u.Venue,
			Pair:          pair,
			Reversed:      reversed,
			ReserveA:      new(big.Int).Set(u.ReserveA),
			ReserveB:      new(big.Int).Set(u.ReserveB),
			DecimalsA:     u.DecimalsA,
			DecimalsB:     u.DecimalsB,
			DecimalsKnown: true,
			FeePPM:        feePPM,
			LastUpdate:    u.Timestamp,
		}}
		r.pools[u.PoolAddress] = e
		r.indexPair(e)
		e.activity.bump(now, r.halfLife, u.VolumeDelta)
		return model.UpdateCreated, nil
	}

	if u.Timestamp <= e.pool.LastUpdate {
		return model.UpdateStale, nil
	}

	e.pool.ReserveA.Set(u.ReserveA)
	e.pool.ReserveB.Set(u.ReserveB)
	e.pool.DecimalsA = u.DecimalsA
	e.pool.DecimalsB = u.DecimalsB
	e.pool.DecimalsKnown = true
	e.pool.FeePPM = feePPM
	e.pool.LastUpdate = u.Timestamp
	e.activity.bump(now, r.halfLife, u.VolumeDelta)
	return model.UpdateApplied, nil
}

// Register creates a pool from discovery metadata with empty reserves.
// The pool yields no price until its first full reserve update. Already
// registered addresses are left untouched.
func (r *Registry) Register(seed model.PoolSeed) error {
	if seed.Address == "" || seed.Venue == "" {
		return fmt.Errorf("%w: missing address or venue", ErrInvalidUpdate)
	}
	if seed.TokenA == "" || seed.TokenB == "" || seed.TokenA == seed.TokenB {
		return fmt.Errorf("%w: bad token pair (%q, %q)", ErrInvalidUpdate, seed.TokenA, seed.TokenB)
	}
	if seed.FeeRate < 0 || seed.FeeRate >= 1 {
		return fmt.Errorf("%w: fee rate %v outside [0, 1)", ErrInvalidUpdate, seed.FeeRate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[seed.Address]; ok {
		return nil
	}

	pair, reversed := model.NewTokenPair(seed.TokenA, seed.TokenB)
	pool := model.Pool{
		Address:  seed.Address,
		Venue:    seed.Venue,
		Pair:     pair,
		Reversed: reversed,
		ReserveA: big.NewInt(0),
		ReserveB: big.NewInt(0),
		FeePPM:   uint32(seed.FeeRate * model.FeePPMDivisor),
	}
	if seed.DecimalsA != nil && seed.DecimalsB != nil {
		pool.DecimalsA = *seed.DecimalsA
		pool.DecimalsB = *seed.DecimalsB
		pool.DecimalsKnown = true
	}

	e := &entry{pool: pool}
	r.pools[seed.Address] = e
	r.indexPair(e)
	r.logger.Debug("pool registered",
		zap.String("pool", seed.Address),
		zap.String("venue", seed.Venue),
		zap.String("pair", pair.Key()),
	)
	return nil
}

// Remove evicts a pool. The removed pool is returned so callers can
// invalidate prices keyed to it.
func (r *Registry) Remove(address string) (model.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pools[address]
	if !ok {
		return model.Pool{}, ErrPoolNotFound
	}
	delete(r.pools, address)

	key := e.pool.Pair.Key()
	if pairPools, ok := r.byPair[key]; ok {
		delete(pairPools, address)
		if len(pairPools) == 0 {
			delete(r.byPair, key)
		}
	}
	return copyPool(e.pool), nil
}

// Get returns a copy of the pool at address.
func (r *Registry) Get(address string) (model.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.pools[address]
	if !ok {
		return model.Pool{}, false
	}
	return copyPool(e.pool), true
}

// PoolsForPair returns copies of every pool on the given canonical pair.
// The snapshot is only valid until the next update.
func (r *Registry) PoolsForPair(pair model.TokenPair) []model.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pairPools := r.byPair[pair.Key()]
	if len(pairPools) == 0 {
		return nil
	}
	out := make([]model.Pool, 0, len(pairPools))
	for _, e := range pairPools {
		out = append(out, copyPool(e.pool))
	}
	return out
}

// Len reports the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// ActivitySnapshot returns the decayed activity of every pool as of now,
// keyed by pool address.
func (r *Registry) ActivitySnapshot() map[string]ActivitySample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make(map[string]ActivitySample, len(r.pools))
	for address, e := range r.pools {
		rate, volume := e.activity.sample(now, r.halfLife)
		out[address] = ActivitySample{
			Address:    address,
			Venue:      e.pool.Venue,
			UpdateRate: rate,
			VolumeRate: volume,
			HasVolume:  e.activity.hasVolume,
		}
	}
	return out
}

func (r *Registry) indexPair(e *entry) {
	key := e.pool.Pair.Key()
	pairPools, ok := r.byPair[key]
	if !ok {
		pairPools = make(map[string]*entry)
		r.byPair[key] = pairPools
	}
	pairPools[e.pool.Address] = e
}

func copyPool(p model.Pool) model.Pool {
	out := p
	out.ReserveA = new(big.Int).Set(p.ReserveA)
	out.ReserveB = new(big.Int).Set(p.ReserveB)
	return out
}
