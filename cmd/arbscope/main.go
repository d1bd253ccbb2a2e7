package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arbscope/internal/config"
	"arbscope/internal/detector"
	"arbscope/internal/engine"
	"arbscope/internal/feed"
	"arbscope/internal/lifecycle"
	"arbscope/internal/model"
	"arbscope/internal/pricecache"
	"arbscope/internal/registry"
	"arbscope/internal/sink"
	"arbscope/internal/sink/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "arbscope",
		Short:        "Cross-venue DEX arbitrage monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live monitor",
		RunE:  runMonitor,
	}
	addCommonFlags(runCmd)
	runCmd.Flags().String("rpc", "", "Solana RPC URL (websocket feed)")
	runCmd.Flags().String("seed", "", "pool seed file (JSON)")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a JSONL file of reserve updates through the pipeline",
		RunE:  runReplay,
	}
	addCommonFlags(replayCmd)
	replayCmd.Flags().String("seed", "", "pool seed file (JSON)")
	replayCmd.Flags().String("in", "", "input reserve updates JSONL")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 4, "token-pair shards")
	cmd.Flags().Float64("min-profit-threshold-pct", 0.5, "minimum cross-venue spread (%)")
	cmd.Flags().Float64("notional-trade-size", 100, "notional trade size (quote units)")
	cmd.Flags().Float64("slippage-allowance-pct", 0.5, "slippage allowance (%)")
	cmd.Flags().Float64("promotion-threshold", 5.0, "hotness score required for monitoring")
	cmd.Flags().Float64("demotion-threshold", 1.0, "hotness score below which pools decay out")
	cmd.Flags().Duration("demotion-grace", 2*time.Minute, "sustained low-hotness period before demotion")
	cmd.Flags().Int("max-monitored", 128, "monitored set capacity (0 = unbounded)")
	cmd.Flags().Float64("volume-weight", 0.001, "traded-notional weight in hotness score")
	cmd.Flags().StringSlice("allow-list", nil, "pool addresses always monitored")
	cmd.Flags().StringSlice("deny-list", nil, "pool addresses never monitored")
	cmd.Flags().Duration("activity-half-life", time.Minute, "activity accumulator half-life")
	cmd.Flags().Duration("scoring-interval", 5*time.Second, "lifecycle scoring interval")
	cmd.Flags().Duration("dedupe-window", 30*time.Second, "duplicate opportunity suppression window")
	cmd.Flags().String("out", "", "opportunity JSONL output path (optional)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for opportunity persistence (optional)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opportunitySink, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	reg := registry.New(cfg.ActivityHalfLife, logger)
	cache := pricecache.New()
	det := detector.New(detector.Config{
		MinProfitThresholdPct: cfg.MinProfitThresholdPct,
		NotionalTradeSize:     cfg.NotionalTradeSize,
		SlippageAllowancePct:  cfg.SlippageAllowancePct,
		DedupeWindow:          cfg.DedupeWindow,
	}, cache, reg, logger)

	var eng *engine.Engine
	client := feed.NewClient(cfg.RPCURL, func(u model.ReserveUpdate) {
		eng.HandleUpdate(ctx, u)
	}, logger)
	client.RegisterDecoder(feed.NewRaydiumDecoder())
	client.RegisterDecoder(feed.NewOrcaDecoder())

	manager, err := lifecycle.NewManager(lifecycle.Config{
		PromotionThreshold: cfg.PromotionThreshold,
		DemotionThreshold:  cfg.DemotionThreshold,
		GracePeriod:        cfg.DemotionGracePeriod,
		MaxMonitored:       cfg.MaxMonitoredPools,
		VolumeWeight:       cfg.VolumeWeight,
		AllowList:          cfg.AllowList,
		DenyList:           cfg.DenyList,
	}, client, logger)
	if err != nil {
		return err
	}

	eng = engine.New(engine.Config{
		Workers:         cfg.Workers,
		ScoringInterval: cfg.ScoringInterval,
	}, reg, cache, det, manager, opportunitySink, logger)

	if cfg.SeedFile != "" {
		seeds, err := config.LoadSeeds(cfg.SeedFile)
		if err != nil {
			return err
		}
		for _, seed := range seeds {
			client.RegisterPool(seed)
			eng.HandleDiscovery(seed)
		}
		logger.Info("pools seeded", zap.Int("count", len(seeds)))
	}

	logger.Info("monitor start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("workers", cfg.Workers),
		zap.Float64("min_profit_threshold_pct", cfg.MinProfitThresholdPct),
		zap.Int("max_monitored", cfg.MaxMonitoredPools),
	)

	eng.Start(ctx)
	err = client.Run(ctx)
	eng.Close()
	eng.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (sink.Sink, func(), error) {
	sinks := sink.MultiSink{sink.NewLogSink(logger)}
	closers := func() {}

	if cfg.Out != "" {
		sinks = append(sinks, sink.NewJsonlSink(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sinks = append(sinks, store)
		closers = store.Close
	}
	return sinks, closers, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
