// Package pricecache holds the latest derived price per (canonical
// pair, venue) key. It exists so cross-venue comparisons read a defined,
// concurrency-safe index instead of ambient shared state.
package pricecache

import (
	"sort"
	"sync"

	"arbscope/internal/model"
)

// Cache is a latest-price-wins index. Writers for a single token pair
// must be serialized by the caller (single-writer-per-key discipline);
// reads are safe at any time.
type Cache struct {
	mu     sync.RWMutex
	points map[string]map[string]model.PricePoint
}

func New() *Cache {
	return &Cache{points: make(map[string]map[string]model.PricePoint)}
}

// Put overwrites the price point for its (pair, venue) key.
func (c *Cache) Put(pt model.PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pt.Pair.Key()
	venues, ok := c.points[key]
	if !ok {
		venues = make(map[string]model.PricePoint)
		c.points[key] = venues
	}
	venues[pt.Venue] = pt
}

// Get returns the cached price for a (pair, venue) key.
func (c *Cache) Get(pair model.TokenPair, venue string) (model.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pt, ok := c.points[pair.Key()][venue]
	return pt, ok
}

// PricesForPair returns every venue's current price for the pair,
// ordered by venue tag for deterministic iteration.
func (c *Cache) PricesForPair(pair model.TokenPair) []model.PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	venues := c.points[pair.Key()]
	if len(venues) == 0 {
		return nil
	}
	out := make([]model.PricePoint, 0, len(venues))
	for _, pt := range venues {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// Invalidate drops the (pair, venue) entry if it was derived from the
// given pool. Entries sourced from a different pool are left alone so a
// removal cannot clobber a fresher price.
func (c *Cache) Invalidate(pair model.TokenPair, venue, poolAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pair.Key()
	venues, ok := c.points[key]
	if !ok {
		return
	}
	if pt, ok := venues[venue]; ok && pt.PoolAddress == poolAddress {
		delete(venues, venue)
		if len(venues) == 0 {
			delete(c.points, key)
		}
	}
}

// Len reports the total number of cached price points.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, venues := range c.points {
		n += len(venues)
	}
	return n
}
