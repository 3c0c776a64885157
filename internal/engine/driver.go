package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"lprevert/internal/model"
)

// Params is one grid cell: the signal threshold, lookback window, and range
// width a simulation run is evaluated with.
type Params struct {
	ZEntry        float64
	WindowMinutes int
	RangePct      float64
}

// TierResolver maps a pool identifier to its fee-tier identifier.
type TierResolver func(pool string) (int, error)

// Config carries the run-invariant dependencies shared by every grid cell.
type Config struct {
	Tiers    model.TierTable
	TierOf   TierResolver
	LogEvery int
	Logger   *zap.Logger
}

// Driver replays one ordered event stream through the reference tracker,
// signal engine, and position book for a single parameter combination.
// Drivers share nothing; every grid cell gets a fresh one.
type Driver struct {
	params  Params
	cfg     Config
	refs    *ReferenceTracker
	signals *SignalEngine
	book    *positionBook
	lastTS  map[string]int64
}

func NewDriver(params Params, cfg Config) *Driver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Driver{
		params:  params,
		cfg:     cfg,
		refs:    NewReferenceTracker(MinPoolsForRef),
		signals: NewSignalEngine(int64(params.WindowMinutes)*60, MinWindowSamples),
		book:    newPositionBook(cfg.Tiers),
		lastTS:  make(map[string]int64),
	}
}

// Run replays the event stream and returns the run's metrics and trade log.
// Events must be ordered by non-decreasing timestamp; the stream is never
// mutated, so the same slice can back concurrent runs.
func (d *Driver) Run(events []model.Event) (model.RunResult, error) {
	if d.cfg.TierOf == nil {
		return model.RunResult{}, fmt.Errorf("tier resolver is required")
	}

	for i, ev := range events {
		price := TickToPrice(ev.Tick)
		d.refs.Update(ev.Pool, ev.Tick, price)
		d.lastTS[ev.Pool] = ev.Timestamp

		ref, ok := d.refs.Reference()
		if !ok {
			continue
		}

		z, hasZ := d.signals.Observe(ev.Pool, ev.Timestamp, price-ref)

		d.book.manage(ev, price)

		if hasZ && math.Abs(z) > d.params.ZEntry {
			if err := d.book.tryOpen(ev, price, ref, z, d.cfg.TierOf, d.params.RangePct); err != nil {
				return model.RunResult{}, err
			}
		}

		if d.cfg.LogEvery > 0 && i > 0 && i%d.cfg.LogEvery == 0 {
			d.cfg.Logger.Debug("replay progress",
				zap.Int("events", i),
				zap.Int("total", len(events)),
				zap.Int64("ts", ev.Timestamp),
				zap.Int("pools", d.refs.Pools()),
				zap.Int("open_positions", len(d.book.open)),
				zap.Float64("exposure_usd", d.book.exposure),
				zap.Float64("reference", ref),
			)
		}
	}

	d.book.closeRemaining(d.refs, d.lastTS)

	metrics := model.RunMetrics{
		ZEntry:          d.params.ZEntry,
		WindowMinutes:   d.params.WindowMinutes,
		RangePct:        d.params.RangePct,
		EquityUSD:       d.book.equity,
		ROI:             d.book.equity / CapitalLimitUSD,
		NumClosedTrades: d.book.numClosed,
	}
	return model.RunResult{Metrics: metrics, Trades: d.book.trades}, nil
}
