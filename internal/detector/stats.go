package detector

import (
	"sync"

	"go.uber.org/zap"

	"arbscope/internal/model"
)

// Stats accumulates running statistics over emitted opportunities.
type Stats struct {
	mu        sync.Mutex
	total     uint64
	avgProfit float64
	maxProfit float64
	best      *model.Opportunity
}

// Record folds one opportunity into the running aggregates.
func (s *Stats) Record(opp model.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.avgProfit += (opp.EstProfit - s.avgProfit) / float64(s.total)
	if opp.EstProfit > s.maxProfit {
		s.maxProfit = opp.EstProfit
		best := opp
		s.best = &best
	}
}

// Total returns the number of recorded opportunities.
func (s *Stats) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Log writes a summary line at info level.
func (s *Stats) Log(logger *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := []zap.Field{
		zap.Uint64("opportunities", s.total),
		zap.Float64("avg_profit", s.avgProfit),
		zap.Float64("max_profit", s.maxProfit),
	}
	if s.best != nil {
		fields = append(fields,
			zap.String("best_pair", s.best.Pair.Key()),
			zap.String("best_route", s.best.BuyVenue+"->"+s.best.SellVenue),
		)
	}
	logger.Info("detection stats", fields...)
}
