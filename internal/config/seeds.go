package config

import (
	"encoding/json"
	"fmt"
	"os"

	"arbscope/internal/model"
)

// LoadSeeds reads a JSON file of pool seeds used to pre-populate the
// candidate set before live discovery takes over.
func LoadSeeds(path string) ([]model.PoolSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []model.PoolSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, seed := range seeds {
		if seed.Address == "" || seed.Venue == "" {
			return nil, fmt.Errorf("seed %d: address and venue are required", i)
		}
		if seed.TokenA == "" || seed.TokenB == "" {
			return nil, fmt.Errorf("seed %d: token pair is required", i)
		}
		if seed.FeeRate < 0 || seed.FeeRate >= 1 {
			return nil, fmt.Errorf("seed %d: fee rate %v outside [0, 1)", i, seed.FeeRate)
		}
	}
	return seeds, nil
}
