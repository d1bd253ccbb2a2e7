package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arbscope/internal/config"
	"arbscope/internal/detector"
	"arbscope/internal/engine"
	"arbscope/internal/lifecycle"
	"arbscope/internal/model"
	"arbscope/internal/pricecache"
	"arbscope/internal/registry"
)

// nopSubscriber satisfies the lifecycle Subscriber for offline replay,
// where there is no live transport to instruct.
type nopSubscriber struct{}

func (nopSubscriber) Subscribe(string)   {}
func (nopSubscriber) Unsubscribe(string) {}

func runReplay(cmd *cobra.Command, _ []string) error {
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

	input, _ := cmd.Flags().GetString("in")
	if input == "" {
		return fmt.Errorf("input file is required")
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

	manager, err := lifecycle.NewManager(lifecycle.Config{
		PromotionThreshold: cfg.PromotionThreshold,
		DemotionThreshold:  cfg.DemotionThreshold,
		GracePeriod:        cfg.DemotionGracePeriod,
		MaxMonitored:       cfg.MaxMonitoredPools,
		VolumeWeight:       cfg.VolumeWeight,
		AllowList:          cfg.AllowList,
		DenyList:           cfg.DenyList,
	}, nopSubscriber{}, logger)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Workers:         cfg.Workers,
		ScoringInterval: cfg.ScoringInterval,
	}, reg, cache, det, manager, opportunitySink, logger)

	if cfg.SeedFile != "" {
		seeds, err := config.LoadSeeds(cfg.SeedFile)
		if err != nil {
			return err
		}
		for _, seed := range seeds {
			eng.HandleDiscovery(seed)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eng.Start(runCtx)

	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, failed int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var update model.ReserveUpdate
		if err := json.Unmarshal(line, &update); err != nil {
			failed++
			logger.Warn("decode reserve update", zap.Error(err))
			continue
		}
		eng.HandleUpdate(runCtx, update)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	eng.Close()
	cancel()
	eng.Wait()

	logger.Info("replay complete",
		zap.Int("events", total),
		zap.Int("failed", failed),
		zap.Uint64("opportunities", det.Stats().Total()),
	)
	return nil
}
