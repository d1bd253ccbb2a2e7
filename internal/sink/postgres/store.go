// Package postgres persists emitted opportunities for later analysis.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbscope/internal/model"
)

// Store writes opportunities to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Publish inserts one opportunity row.
func (s *Store) Publish(ctx context.Context, opp model.Opportunity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (
			base_token, quote_token, buy_venue, sell_venue, buy_pool, sell_pool,
			buy_price, sell_price, diff_pct, est_profit, observed_ts, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
	`,
		opp.Pair.Base,
		opp.Pair.Quote,
		opp.BuyVenue,
		opp.SellVenue,
		opp.BuyPool,
		opp.SellPool,
		opp.BuyPrice,
		opp.SellPrice,
		opp.DiffPct,
		opp.EstProfit,
		int64(opp.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}
