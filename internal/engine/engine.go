// Package engine wires the detection pipeline together: registry
// mutation, price computation, cache write, and detector scan run as a
// strictly serialized sequence per token-pair shard.
package engine

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"arbscope/internal/detector"
	"arbscope/internal/lifecycle"
	"arbscope/internal/model"
	"arbscope/internal/pricecache"
	"arbscope/internal/pricing"
	"arbscope/internal/registry"
	"arbscope/internal/sink"
)

// Config holds engine runtime settings.
type Config struct {
	// Workers is the number of pair shards. All events for one token
	// pair land on the same shard, so mutations to a pool and its
	// cached prices are never concurrent.
	Workers int
	// ScoringInterval drives the lifecycle manager's periodic pass.
	ScoringInterval time.Duration
}

// Engine processes reserve-update events through the pipeline.
type Engine struct {
	cfg       Config
	registry  *registry.Registry
	cache     *pricecache.Cache
	detector  *detector.Detector
	lifecycle *lifecycle.Manager
	sink      sink.Sink
	logger    *zap.Logger

	shards    []chan model.ReserveUpdate
	workerWg  sync.WaitGroup
	scorerWg  sync.WaitGroup
	closeOnce sync.Once
}

// New builds an Engine and hooks lifecycle evictions to registry and
// cache invalidation.
func New(
	cfg Config,
	reg *registry.Registry,
	cache *pricecache.Cache,
	det *detector.Detector,
	manager *lifecycle.Manager,
	opportunitySink sink.Sink,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ScoringInterval <= 0 {
		cfg.ScoringInterval = 5 * time.Second
	}

	e := &Engine{
		cfg:       cfg,
		registry:  reg,
		cache:     cache,
		detector:  det,
		lifecycle: manager,
		sink:      opportunitySink,
		logger:    logger,
	}

	manager.SetEvictionHook(func(seed model.PoolSeed) {
		pool, err := reg.Remove(seed.Address)
		if err != nil {
			return
		}
		cache.Invalidate(pool.Pair, pool.Venue, pool.Address)
	})

	return e
}

// Start launches the shard workers and the lifecycle scoring loop. It
// returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.shards = make([]chan model.ReserveUpdate, e.cfg.Workers)
	for i := range e.shards {
		shard := make(chan model.ReserveUpdate, 256)
		e.shards[i] = shard
		e.workerWg.Add(1)
		go e.runShard(ctx, shard)
	}

	e.scorerWg.Add(1)
	go e.runScoring(ctx)
}

// Close stops event intake and blocks until every queued event has been
// processed. HandleUpdate must not be called after Close.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		for _, shard := range e.shards {
			close(shard)
		}
	})
	e.workerWg.Wait()
}

// Wait blocks until the scoring loop has observed context cancellation.
func (e *Engine) Wait() {
	e.scorerWg.Wait()
}

// HandleUpdate routes one reserve-update event to its pair shard.
func (e *Engine) HandleUpdate(ctx context.Context, u model.ReserveUpdate) {
	pair, _ := model.NewTokenPair(u.TokenA, u.TokenB)
	shard := e.shards[shardIndex(pair.Key(), len(e.shards))]
	select {
	case shard <- u:
	case <-ctx.Done():
	}
}

// HandleDiscovery registers a newly seen pool and hands it to the
// lifecycle manager as a candidate.
func (e *Engine) HandleDiscovery(seed model.PoolSeed) {
	if err := e.registry.Register(seed); err != nil {
		e.logger.Warn("discovery rejected", zap.String("pool", seed.Address), zap.Error(err))
		return
	}
	e.lifecycle.Discover(seed)
}

func (e *Engine) runShard(ctx context.Context, shard <-chan model.ReserveUpdate) {
	defer e.workerWg.Done()
	for u := range shard {
		e.process(ctx, u)
	}
}

// process is the serialized per-event pipeline: registry mutation,
// price computation, cache write, detector scan, sink publish.
func (e *Engine) process(ctx context.Context, u model.ReserveUpdate) {
	result, err := e.registry.ApplyUpdate(u)
	if err != nil {
		e.logger.Warn("reserve update rejected",
			zap.String("pool", u.PoolAddress),
			zap.String("venue", u.Venue),
			zap.Error(err),
		)
		return
	}
	if result == model.UpdateStale {
		e.logger.Debug("stale reserve update",
			zap.String("pool", u.PoolAddress),
			zap.Uint64("ts", u.Timestamp),
		)
		return
	}

	pool, ok := e.registry.Get(u.PoolAddress)
	if !ok {
		return
	}

	price, err := pricing.MarginalPrice(pool)
	if err != nil {
		// No price available: drop any stale cached point so the venue
		// is excluded from scans until a non-degenerate update arrives.
		e.cache.Invalidate(pool.Pair, pool.Venue, pool.Address)
		e.logger.Debug("no price available",
			zap.String("pool", pool.Address),
			zap.String("pair", pool.Pair.Key()),
			zap.Error(err),
		)
		return
	}

	e.cache.Put(model.PricePoint{
		Pair:        pool.Pair,
		Venue:       pool.Venue,
		Price:       price,
		PoolAddress: pool.Address,
		Timestamp:   pool.LastUpdate,
	})

	for _, opp := range e.detector.OnPriceUpdate(pool.Pair) {
		if err := e.sink.Publish(ctx, opp); err != nil {
			e.logger.Warn("opportunity delivery failed",
				zap.String("pair", opp.Pair.Key()),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) runScoring(ctx context.Context) {
	defer e.scorerWg.Done()

	ticker := time.NewTicker(e.cfg.ScoringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.detector.Stats().Log(e.logger)
			return
		case <-ticker.C:
			e.lifecycle.Evaluate(time.Now(), e.registry.ActivitySnapshot())
		}
	}
}

func shardIndex(key string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(shards))
}
