package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lprevert/internal/model"
)

// Store provides Postgres persistence for grid runs and trade logs.
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

// UpsertRunMetrics inserts or updates one row per grid cell.
func (s *Store) UpsertRunMetrics(ctx context.Context, label string, metrics []model.RunMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO backtest_runs (
				label, z_entry, window_minutes, range_pct,
				equity_usd, roi, num_closed_trades, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (label, z_entry, window_minutes, range_pct)
			DO UPDATE SET
				equity_usd = EXCLUDED.equity_usd,
				roi = EXCLUDED.roi,
				num_closed_trades = EXCLUDED.num_closed_trades,
				updated_at = now()
		`,
			label,
			m.ZEntry,
			m.WindowMinutes,
			m.RangePct,
			m.EquityUSD,
			m.ROI,
			m.NumClosedTrades,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertTrades replaces the stored trade log for a label with the given one.
func (s *Store) InsertTrades(ctx context.Context, label string, trades []model.TradeRecord) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM backtest_trades WHERE label=$1`, label); err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for seq, t := range trades {
		batch.Queue(`
			INSERT INTO backtest_trades (
				label, seq, pool, direction, action, reason,
				entry_ts, entry_tick, entry_price, tick_lower, tick_upper,
				exit_ts, exit_price, fees_usd, pnl_usd, z_score, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())
		`,
			label,
			seq,
			t.Pool,
			string(t.Direction),
			t.Action,
			t.Reason,
			t.EntryTS,
			t.EntryTick,
			t.EntryPx,
			t.TickLower,
			t.TickUpper,
			t.ExitTS,
			t.ExitPx,
			t.FeesUSD,
			t.PnlUSD,
			t.ZScore,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range trades {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
