// Package lifecycle decides which discovered pools are promoted into
// active monitoring and which are demoted, based on a decayed hotness
// score with hysteresis, honoring static allow and deny lists.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"arbscope/internal/model"
	"arbscope/internal/registry"
)

// State is a pool's position in the monitoring state machine. Unknown
// pools have no entry at all.
type State uint8

const (
	// StateCandidate: discovered but not subscribed for live updates.
	StateCandidate State = iota
	// StateMonitored: actively subscribed; updates flow through the
	// detection pipeline.
	StateMonitored
	// StateDemoted: previously monitored, unsubscribed; may become a
	// candidate again when its score recovers.
	StateDemoted
)

func (s State) String() string {
	switch s {
	case StateMonitored:
		return "monitored"
	case StateDemoted:
		return "demoted"
	default:
		return "candidate"
	}
}

// Subscriber receives subscribe/unsubscribe instructions. The manager
// never opens or closes feeds itself; implementations must dispatch
// asynchronously and must not block.
type Subscriber interface {
	Subscribe(poolAddress string)
	Unsubscribe(poolAddress string)
}

// Config holds lifecycle policy parameters.
type Config struct {
	// PromotionThreshold and DemotionThreshold must differ (promotion
	// strictly greater) so borderline pools do not flap.
	PromotionThreshold float64
	DemotionThreshold  float64
	// GracePeriod is how long a monitored pool's score must sit below
	// the demotion threshold before it is demoted.
	GracePeriod time.Duration
	// MaxMonitored caps the monitored set; zero means unbounded. When
	// full, a hotter candidate evicts the least-hot monitored pool.
	MaxMonitored int
	// VolumeWeight scales the traded-notional rate into the hotness
	// score for pools that report volume.
	VolumeWeight float64
	AllowList    []string
	DenyList     []string
}

func (c Config) validate() error {
	if c.PromotionThreshold <= c.DemotionThreshold {
		return fmt.Errorf("promotion threshold %v must exceed demotion threshold %v",
			c.PromotionThreshold, c.DemotionThreshold)
	}
	return nil
}

type entry struct {
	seed       model.PoolSeed
	state      State
	score      float64
	belowSince time.Time
}

// Manager owns the monitoring set. Membership changes, surfaced through
// the Subscriber, are its only externally visible side effect.
type Manager struct {
	cfg    Config
	sub    Subscriber
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
	allow   map[string]struct{}
	deny    map[string]struct{}

	// onEvict, when set, is called after a pool leaves the monitored
	// set so the owner can drop registry and cache state.
	onEvict func(seed model.PoolSeed)
}

// NewManager builds a Manager. Config thresholds are checked for
// hysteresis.
func NewManager(cfg Config, sub Subscriber, logger *zap.Logger) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg:     cfg,
		sub:     sub,
		logger:  logger,
		entries: make(map[string]*entry),
		allow:   make(map[string]struct{}, len(cfg.AllowList)),
		deny:    make(map[string]struct{}, len(cfg.DenyList)),
	}
	for _, address := range cfg.AllowList {
		m.allow[address] = struct{}{}
	}
	for _, address := range cfg.DenyList {
		m.deny[address] = struct{}{}
	}
	return m, nil
}

// SetEvictionHook registers a callback invoked after demotion or
// eviction removes a pool from the monitored set. The hook runs with
// the manager's lock held and must not call back into the Manager.
func (m *Manager) SetEvictionHook(hook func(seed model.PoolSeed)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = hook
}

// Discover registers a newly seen pool as a candidate. Allow-listed
// pools bypass scoring and are promoted immediately; deny-listed pools
// are recorded but never promoted. Rediscovery of a known address is a
// no-op.
func (m *Manager) Discover(seed model.PoolSeed) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[seed.Address]; ok {
		return
	}

	e := &entry{seed: seed, state: StateCandidate}
	m.entries[seed.Address] = e
	m.logger.Debug("pool discovered",
		zap.String("pool", seed.Address),
		zap.String("venue", seed.Venue),
	)

	if _, denied := m.deny[seed.Address]; denied {
		return
	}
	if _, allowed := m.allow[seed.Address]; allowed {
		m.promote(e)
	}
}

// Evaluate runs one scoring pass against an activity snapshot. It is
// driven by a periodic timer decoupled from the update stream; samples
// need only be eventually consistent.
func (m *Manager) Evaluate(now time.Time, samples map[string]registry.ActivitySample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for address, e := range m.entries {
		e.score = m.hotness(samples[address])

		if _, denied := m.deny[address]; denied {
			if e.state == StateMonitored {
				m.demote(e, "deny-listed")
			}
			continue
		}
		if _, allowed := m.allow[address]; allowed {
			if e.state != StateMonitored {
				m.promote(e)
			}
			// Allow-listed pools are never demoted.
			continue
		}

		switch e.state {
		case StateCandidate, StateDemoted:
			if e.score >= m.cfg.PromotionThreshold {
				m.promote(e)
			}
		case StateMonitored:
			if e.score < m.cfg.DemotionThreshold {
				if e.belowSince.IsZero() {
					e.belowSince = now
				} else if now.Sub(e.belowSince) >= m.cfg.GracePeriod {
					m.demote(e, "hotness decayed")
				}
			} else {
				// Recovery supersedes an in-flight demotion.
				e.belowSince = time.Time{}
			}
		}
	}
}

// hotness combines the update-frequency accumulator with the optional
// volume rate. Pools that never reported volume score on frequency only.
func (m *Manager) hotness(sample registry.ActivitySample) float64 {
	score := sample.UpdateRate
	if sample.HasVolume {
		score += m.cfg.VolumeWeight * sample.VolumeRate
	}
	return score
}

// State reports the pool's current lifecycle state; ok is false for
// unknown addresses.
func (m *Manager) State(address string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[address]
	if !ok {
		return StateCandidate, false
	}
	return e.state, true
}

// Monitored returns the addresses of the monitored set.
func (m *Manager) Monitored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for address, e := range m.entries {
		if e.state == StateMonitored {
			out = append(out, address)
		}
	}
	return out
}

// Remove forgets a pool entirely, unsubscribing first if monitored.
func (m *Manager) Remove(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[address]
	if !ok {
		return
	}
	if e.state == StateMonitored {
		m.demote(e, "removed")
	}
	delete(m.entries, address)
}

// promote moves e into the monitored set, evicting the least-hot
// monitored pool when the capacity cap is reached. Promotion is deferred
// when the set is full and no monitored pool scores below the entrant.
// Callers hold m.mu.
func (m *Manager) promote(e *entry) {
	if m.cfg.MaxMonitored > 0 && m.monitoredCount() >= m.cfg.MaxMonitored {
		victim := m.evictionCandidate(e)
		if victim == nil {
			m.logger.Debug("promotion deferred: monitored set full",
				zap.String("pool", e.seed.Address),
				zap.Float64("score", e.score),
			)
			return
		}
		m.demote(victim, "evicted by hotter candidate")
	}

	e.state = StateMonitored
	e.belowSince = time.Time{}
	if m.sub != nil {
		m.sub.Subscribe(e.seed.Address)
	}
	m.logger.Info("pool promoted",
		zap.String("pool", e.seed.Address),
		zap.String("venue", e.seed.Venue),
		zap.Float64("score", e.score),
	)
}

// demote unsubscribes e and marks it demoted. Callers hold m.mu.
func (m *Manager) demote(e *entry, reason string) {
	e.state = StateDemoted
	e.belowSince = time.Time{}
	if m.sub != nil {
		m.sub.Unsubscribe(e.seed.Address)
	}
	if m.onEvict != nil {
		m.onEvict(e.seed)
	}
	m.logger.Info("pool demoted",
		zap.String("pool", e.seed.Address),
		zap.String("venue", e.seed.Venue),
		zap.Float64("score", e.score),
		zap.String("reason", reason),
	)
}

// evictionCandidate finds the least-hot monitored pool scoring strictly
// below the entrant. Allow-listed pools are never eviction candidates;
// an allow-listed entrant may evict regardless of its own score.
func (m *Manager) evictionCandidate(entrant *entry) *entry {
	_, entrantAllowed := m.allow[entrant.seed.Address]

	var victim *entry
	for address, e := range m.entries {
		if e.state != StateMonitored {
			continue
		}
		if _, allowed := m.allow[address]; allowed {
			continue
		}
		if !entrantAllowed && e.score >= entrant.score {
			continue
		}
		if victim == nil || e.score < victim.score {
			victim = e
		}
	}
	return victim
}

func (m *Manager) monitoredCount() int {
	n := 0
	for _, e := range m.entries {
		if e.state == StateMonitored {
			n++
		}
	}
	return n
}
