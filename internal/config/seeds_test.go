package config

import (
	"os"
	"path/filepath"
	"testing"

	"arbscope/internal/model"
)

func writeSeeds(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seeds: %v", err)
	}
	return path
}

func TestLoadSeeds(t *testing.T) {
	path := writeSeeds(t, `[
  {"address": "pool1", "venue": "raydium", "token_a": "tokenA", "token_b": "tokenB", "decimals_a": 9, "decimals_b": 6, "fee_rate": 0.0025},
  {"address": "pool2", "venue": "orca", "token_a": "tokenA", "token_b": "tokenB", "fee_rate": 0.003}
]`)

	seeds, err := LoadSeeds(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("expected 2 seeds, got %d", len(seeds))
	}

	first := seeds[0]
	if first.Address != "pool1" || first.Venue != model.VenueRaydium {
		t.Fatalf("unexpected seed: %+v", first)
	}
	if first.DecimalsA == nil || *first.DecimalsA != 9 {
		t.Fatalf("decimals_a not parsed: %+v", first)
	}
	if seeds[1].DecimalsA != nil {
		t.Fatalf("absent decimals must stay nil: %+v", seeds[1])
	}
}

func TestLoadSeedsRejectsIncomplete(t *testing.T) {
	cases := map[string]string{
		"missing venue":  `[{"address": "pool1", "token_a": "a", "token_b": "b"}]`,
		"missing tokens": `[{"address": "pool1", "venue": "raydium"}]`,
		"bad fee":        `[{"address": "pool1", "venue": "raydium", "token_a": "a", "token_b": "b", "fee_rate": 1.5}]`,
		"not json":       `{`,
	}
	for name, content := range cases {
		if _, err := LoadSeeds(writeSeeds(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := LoadSeeds(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
