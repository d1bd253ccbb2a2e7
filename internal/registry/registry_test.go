package registry

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"arbscope/internal/model"
)

func testUpdate(addr string, ts uint64, reserveA, reserveB int64) model.ReserveUpdate {
	return model.ReserveUpdate{
		PoolAddress: addr,
		Venue:       model.VenueRaydium,
		TokenA:      "tokenA",
		TokenB:      "tokenB",
		ReserveA:    big.NewInt(reserveA),
		ReserveB:    big.NewInt(reserveB),
		FeeRate:     0.003,
		DecimalsA:   6,
		DecimalsB:   6,
		Timestamp:   ts,
	}
}

func TestApplyUpdateCreateThenApply(t *testing.T) {
	r := New(time.Minute, nil)

	res, err := r.ApplyUpdate(testUpdate("pool1", 10, 1000, 2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != model.UpdateCreated {
		t.Fatalf("expected created, got %s", res)
	}

	res, err = r.ApplyUpdate(testUpdate("pool1", 11, 1100, 1900))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != model.UpdateApplied {
		t.Fatalf("expected applied, got %s", res)
	}

	pool, ok := r.Get("pool1")
	if !ok {
		t.Fatalf("pool missing after updates")
	}
	if pool.ReserveA.Int64() != 1100 || pool.ReserveB.Int64() != 1900 {
		t.Fatalf("reserves not applied: %v / %v", pool.ReserveA, pool.ReserveB)
	}
	if pool.LastUpdate != 11 {
		t.Fatalf("last update not advanced: %d", pool.LastUpdate)
	}
	if pool.FeePPM != 3000 {
		t.Fatalf("fee ppm mismatch: %d", pool.FeePPM)
	}
}

func TestApplyUpdateStaleIsNoOp(t *testing.T) {
	r := New(time.Minute, nil)

	if _, err := r.ApplyUpdate(testUpdate("pool1", 20, 1000, 2000)); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	for _, ts := range []uint64{20, 19, 5} {
		res, err := r.ApplyUpdate(testUpdate("pool1", ts, 9999, 9999))
		if err != nil {
			t.Fatalf("unexpected error at ts %d: %v", ts, err)
		}
		if res != model.UpdateStale {
			t.Fatalf("expected stale at ts %d, got %s", ts, res)
		}
	}

	pool, _ := r.Get("pool1")
	if pool.ReserveA.Int64() != 1000 || pool.ReserveB.Int64() != 2000 {
		t.Fatalf("stale update mutated reserves: %v / %v", pool.ReserveA, pool.ReserveB)
	}
	if pool.LastUpdate != 20 {
		t.Fatalf("stale update advanced timestamp: %d", pool.LastUpdate)
	}
}

func TestApplyUpdateValidation(t *testing.T) {
	r := New(time.Minute, nil)

	cases := map[string]model.ReserveUpdate{
		"empty address": func() model.ReserveUpdate {
			u := testUpdate("", 1, 1, 1)
			return u
		}(),
		"same token twice": func() model.ReserveUpdate {
			u := testUpdate("pool1", 1, 1, 1)
			u.TokenB = u.TokenA
			return u
		}(),
		"nil reserve": func() model.ReserveUpdate {
			u := testUpdate("pool1", 1, 1, 1)
			u.ReserveB = nil
			return u
		}(),
		"negative reserve": testUpdate("pool1", 1, -5, 1),
		"fee out of range": func() model.ReserveUpdate {
			u := testUpdate("pool1", 1, 1, 1)
			u.FeeRate = 1.0
			return u
		}(),
	}

	for name, u := range cases {
		res, err := r.ApplyUpdate(u)
		if !errors.Is(err, ErrInvalidUpdate) {
			t.Fatalf("%s: expected ErrInvalidUpdate, got %v", name, err)
		}
		if res != model.UpdateRejected {
			t.Fatalf("%s: expected rejected, got %s", name, res)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("rejected updates created pools: %d", r.Len())
	}
}

func TestRegisterSeedWithoutDecimals(t *testing.T) {
	r := New(time.Minute, nil)

	dec := uint8(6)
	if err := r.Register(model.PoolSeed{
		Address: "pool1",
		Venue:   model.VenueOrca,
		TokenA:  "tokenA",
		TokenB:  "tokenB",
		FeeRate: 0.003,
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	pool, ok := r.Get("pool1")
	if !ok {
		t.Fatalf("seeded pool missing")
	}
	if pool.DecimalsKnown {
		t.Fatalf("decimals must stay unknown without seed metadata")
	}
	if pool.ReserveA.Sign() != 0 || pool.ReserveB.Sign() != 0 {
		t.Fatalf("seeded pool must start with empty reserves")
	}

	if err := r.Register(model.PoolSeed{
		Address:   "pool2",
		Venue:     model.VenueOrca,
		TokenA:    "tokenA",
		TokenB:    "tokenB",
		DecimalsA: &dec,
		DecimalsB: &dec,
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	pool, _ = r.Get("pool2")
	if !pool.DecimalsKnown || pool.DecimalsA != 6 {
		t.Fatalf("seed decimals not applied: %+v", pool)
	}
}

func TestRemoveAndPairIndex(t *testing.T) {
	r := New(time.Minute, nil)

	if _, err := r.ApplyUpdate(testUpdate("pool1", 1, 10, 20)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := r.ApplyUpdate(testUpdate("pool2", 1, 30, 40)); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	pair, _ := model.NewTokenPair("tokenA", "tokenB")
	if got := len(r.PoolsForPair(pair)); got != 2 {
		t.Fatalf("expected 2 pools on pair, got %d", got)
	}

	removed, err := r.Remove("pool1")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed.Address != "pool1" {
		t.Fatalf("wrong pool returned: %s", removed.Address)
	}
	if got := len(r.PoolsForPair(pair)); got != 1 {
		t.Fatalf("pair index not updated, got %d pools", got)
	}

	if _, err := r.Remove("pool1"); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := New(time.Minute, nil)
	if _, err := r.ApplyUpdate(testUpdate("pool1", 1, 1000, 2000)); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	pool, _ := r.Get("pool1")
	pool.ReserveA.SetInt64(-1)

	again, _ := r.Get("pool1")
	if again.ReserveA.Int64() != 1000 {
		t.Fatalf("caller mutation leaked into registry: %v", again.ReserveA)
	}
}

func TestActivityDecay(t *testing.T) {
	r := New(time.Minute, nil)

	current := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return current }

	for i := 0; i < 4; i++ {
		u := testUpdate("pool1", uint64(i+1), 1000, 2000)
		u.VolumeDelta = 50
		if _, err := r.ApplyUpdate(u); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}

	snap := r.ActivitySnapshot()
	sample, ok := snap["pool1"]
	if !ok {
		t.Fatalf("missing activity sample")
	}
	if sample.UpdateRate < 3.9 || sample.UpdateRate > 4.0 {
		t.Fatalf("unexpected update rate: %v", sample.UpdateRate)
	}
	if !sample.HasVolume {
		t.Fatalf("volume flag not set")
	}

	// One half-life later both rates halve.
	current = current.Add(time.Minute)
	decayed := r.ActivitySnapshot()["pool1"]
	if math.Abs(decayed.UpdateRate-sample.UpdateRate/2) > 1e-9 {
		t.Fatalf("update rate did not halve: %v -> %v", sample.UpdateRate, decayed.UpdateRate)
	}
	if math.Abs(decayed.VolumeRate-sample.VolumeRate/2) > 1e-9 {
		t.Fatalf("volume rate did not halve: %v -> %v", sample.VolumeRate, decayed.VolumeRate)
	}
}
