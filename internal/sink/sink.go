// Package sink delivers emitted opportunities to external consumers.
// Delivery is fire-and-forget from the core's perspective: failures are
// logged by the caller and never retried.
package sink

import (
	"context"

	"go.uber.org/zap"

	"arbscope/internal/model"
)

// Sink consumes emitted opportunities.
type Sink interface {
	Publish(ctx context.Context, opp model.Opportunity) error
}

// LogSink renders opportunities as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, opp model.Opportunity) error {
	s.logger.Info("arbitrage opportunity",
		zap.String("pair", opp.Pair.Key()),
		zap.String("buy_venue", opp.BuyVenue),
		zap.String("sell_venue", opp.SellVenue),
		zap.Float64("buy_price", opp.BuyPrice),
		zap.Float64("sell_price", opp.SellPrice),
		zap.Float64("diff_pct", opp.DiffPct),
		zap.Float64("est_profit", opp.EstProfit),
		zap.Uint64("ts", opp.Timestamp),
	)
	return nil
}

// MultiSink fans out to several sinks, returning the first error after
// attempting all of them.
type MultiSink []Sink

func (s MultiSink) Publish(ctx context.Context, opp model.Opportunity) error {
	var firstErr error
	for _, sub := range s {
		if err := sub.Publish(ctx, opp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
