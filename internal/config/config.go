package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL   string
	SeedFile string
	Workers  int

	MinProfitThresholdPct float64
	NotionalTradeSize     float64
	SlippageAllowancePct  float64

	PromotionThreshold  float64
	DemotionThreshold   float64
	DemotionGracePeriod time.Duration
	MaxMonitoredPools   int
	VolumeWeight        float64
	AllowList           []string
	DenyList            []string

	ActivityHalfLife time.Duration
	ScoringInterval  time.Duration
	DedupeWindow     time.Duration

	Out      string
	PGDSN    string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("workers", 4)
	v.SetDefault("min-profit-threshold-pct", 0.5)
	v.SetDefault("notional-trade-size", 100.0)
	v.SetDefault("slippage-allowance-pct", 0.5)
	v.SetDefault("promotion-threshold", 5.0)
	v.SetDefault("demotion-threshold", 1.0)
	v.SetDefault("demotion-grace", 2*time.Minute)
	v.SetDefault("max-monitored", 128)
	v.SetDefault("volume-weight", 0.001)
	v.SetDefault("activity-half-life", time.Minute)
	v.SetDefault("scoring-interval", 5*time.Second)
	v.SetDefault("dedupe-window", 30*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:                v.GetString("rpc"),
		SeedFile:              v.GetString("seed"),
		Workers:               v.GetInt("workers"),
		MinProfitThresholdPct: v.GetFloat64("min-profit-threshold-pct"),
		NotionalTradeSize:     v.GetFloat64("notional-trade-size"),
		SlippageAllowancePct:  v.GetFloat64("slippage-allowance-pct"),
		PromotionThreshold:    v.GetFloat64("promotion-threshold"),
		DemotionThreshold:     v.GetFloat64("demotion-threshold"),
		DemotionGracePeriod:   v.GetDuration("demotion-grace"),
		MaxMonitoredPools:     v.GetInt("max-monitored"),
		VolumeWeight:          v.GetFloat64("volume-weight"),
		AllowList:             getStringSlice(v, "allow-list"),
		DenyList:              getStringSlice(v, "deny-list"),
		ActivityHalfLife:      v.GetDuration("activity-half-life"),
		ScoringInterval:       v.GetDuration("scoring-interval"),
		DedupeWindow:          v.GetDuration("dedupe-window"),
		Out:                   v.GetString("out"),
		PGDSN:                 v.GetString("pg-dsn"),
		LogLevel:              v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MinProfitThresholdPct < 0 {
		return fmt.Errorf("min profit threshold must be non-negative")
	}
	if c.NotionalTradeSize <= 0 {
		return fmt.Errorf("notional trade size must be positive")
	}
	if c.PromotionThreshold <= c.DemotionThreshold {
		return fmt.Errorf("promotion threshold must exceed demotion threshold")
	}
	if c.ActivityHalfLife <= 0 {
		return fmt.Errorf("activity half-life must be positive")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
