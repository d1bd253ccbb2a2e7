package registry

import (
	"math"
	"time"
)

// accumulator tracks a pool's recent update activity as an exponentially
// decayed counter, plus an optional decayed traded-notional rate. Decay
// is applied lazily on read and on bump, parameterized by half-life.
type accumulator struct {
	value      float64
	volumeRate float64
	hasVolume  bool
	last       time.Time
}

func decayFactor(elapsed, halfLife time.Duration) float64 {
	if halfLife <= 0 || elapsed <= 0 {
		return 1
	}
	return math.Exp2(-float64(elapsed) / float64(halfLife))
}

// bump decays the accumulator to now and adds one update, plus any
// traded-notional estimate the event carried.
func (a *accumulator) bump(now time.Time, halfLife time.Duration, volume float64) {
	factor := decayFactor(now.Sub(a.last), halfLife)
	a.value = a.value*factor + 1
	a.volumeRate *= factor
	if volume > 0 {
		a.volumeRate += volume
		a.hasVolume = true
	}
	a.last = now
}

// sample returns the decayed values as of now without mutating state.
func (a *accumulator) sample(now time.Time, halfLife time.Duration) (float64, float64) {
	factor := decayFactor(now.Sub(a.last), halfLife)
	return a.value * factor, a.volumeRate * factor
}

// ActivitySample is a point-in-time view of one pool's activity, used by
// the lifecycle manager for hotness scoring. Samples are eventually
// consistent with concurrent reserve updates.
type ActivitySample struct {
	Address    string
	Venue      string
	UpdateRate float64
	VolumeRate float64
	HasVolume  bool
}
