// Package detector compares venue prices for a token pair and emits
// arbitrage opportunities that clear the spread threshold and a
// slippage-aware net-profit filter.
package detector

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"arbscope/internal/model"
	"arbscope/internal/pricecache"
	"arbscope/internal/pricing"
	"arbscope/internal/registry"
)

// Config holds detection parameters.
type Config struct {
	// MinProfitThresholdPct is the minimum cross-venue spread, in
	// percent, before a venue pair is considered at all.
	MinProfitThresholdPct float64
	// NotionalTradeSize is the hypothetical trade size in whole quote
	// units used for profit estimation.
	NotionalTradeSize float64
	// SlippageAllowancePct is deducted from the estimated profit as a
	// fraction of the notional.
	SlippageAllowancePct float64
	// DedupeWindow suppresses re-emission of the same (pair, buy venue,
	// sell venue) inside the window. Zero disables suppression. It never
	// changes the profitability computation.
	DedupeWindow time.Duration
}

// Detector scans the price cache on every successful price write.
type Detector struct {
	cfg      Config
	cache    *pricecache.Cache
	registry *registry.Registry
	logger   *zap.Logger
	stats    *Stats

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

func New(cfg Config, cache *pricecache.Cache, reg *registry.Registry, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		cfg:      cfg,
		cache:    cache,
		registry: reg,
		logger:   logger,
		stats:    &Stats{},
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Stats returns the running detection statistics.
func (d *Detector) Stats() *Stats {
	return d.stats
}

// Scan re-evaluates all venue pairs holding a price for the token pair.
// It is a pure function of current cache and registry state: identical
// inputs yield identical opportunity sets.
func (d *Detector) Scan(pair model.TokenPair) []model.Opportunity {
	points := d.cache.PricesForPair(pair)
	if len(points) < 2 {
		return nil
	}

	var out []model.Opportunity
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			opp, ok := d.evaluate(points[i], points[j])
			if ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

// OnPriceUpdate runs a scan and applies duplicate suppression and stats
// accounting on top of the pure result.
func (d *Detector) OnPriceUpdate(pair model.TokenPair) []model.Opportunity {
	opps := d.Scan(pair)
	if len(opps) == 0 {
		return nil
	}

	now := d.now()
	out := opps[:0]
	for _, opp := range opps {
		d.stats.Record(opp)
		if d.suppressed(opp, now) {
			continue
		}
		out = append(out, opp)
	}
	return out
}

// evaluate compares one unordered venue pair. Equal prices never yield
// an opportunity.
func (d *Detector) evaluate(p1, p2 model.PricePoint) (model.Opportunity, bool) {
	if p1.Price <= 0 || p2.Price <= 0 || p1.Price == p2.Price {
		return model.Opportunity{}, false
	}

	low, high := p1, p2
	if p2.Price < p1.Price {
		low, high = p2, p1
	}

	diffPct := (high.Price - low.Price) / low.Price * 100
	if diffPct < d.cfg.MinProfitThresholdPct {
		return model.Opportunity{}, false
	}

	buyPool, ok := d.registry.Get(low.PoolAddress)
	if !ok {
		return model.Opportunity{}, false
	}
	sellPool, ok := d.registry.Get(high.PoolAddress)
	if !ok {
		return model.Opportunity{}, false
	}

	est, err := pricing.EstimateProfit(buyPool, sellPool, d.cfg.NotionalTradeSize, d.cfg.SlippageAllowancePct)
	if err != nil {
		d.logger.Debug("profit estimate failed",
			zap.String("pair", low.Pair.Key()),
			zap.String("buy_venue", low.Venue),
			zap.String("sell_venue", high.Venue),
			zap.Error(err),
		)
		return model.Opportunity{}, false
	}
	if est.Profit <= 0 {
		return model.Opportunity{}, false
	}

	ts := low.Timestamp
	if high.Timestamp > ts {
		ts = high.Timestamp
	}
	return model.Opportunity{
		Pair:      low.Pair,
		BuyVenue:  low.Venue,
		SellVenue: high.Venue,
		BuyPool:   low.PoolAddress,
		SellPool:  high.PoolAddress,
		BuyPrice:  low.Price,
		SellPrice: high.Price,
		DiffPct:   diffPct,
		EstProfit: est.Profit,
		Timestamp: ts,
	}, true
}

func (d *Detector) suppressed(opp model.Opportunity, now time.Time) bool {
	if d.cfg.DedupeWindow <= 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := opp.Pair.Key() + "|" + opp.BuyVenue + "|" + opp.SellVenue
	if last, ok := d.lastSeen[key]; ok && now.Sub(last) < d.cfg.DedupeWindow {
		return true
	}
	d.lastSeen[key] = now
	return false
}
