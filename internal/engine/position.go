package engine

import (
	"fmt"

	"lprevert/internal/model"
)

// Risk parameters of the strategy. These are constants of the engine, not
// tunables of the grid.
const (
	CapitalLimitUSD  = 20_000.0
	PositionSizeUSD  = 1_000.0
	StopLossPct      = 0.02
	MinPoolsForRef   = 3
	MinWindowSamples = 10
)

// Position is one open single-sided liquidity range on a pool.
type Position struct {
	Pool        string
	FeeTier     int
	Direction   model.Direction
	EntryTS     int64
	EntryTick   int64
	EntryPrice  float64
	TickLower   int64
	TickUpper   int64
	Liquidity   float64
	NotionalUSD float64
	FeesUSD     float64
	EverInRange bool
	Open        bool
}

// positionBook owns the per-pool position state machines, equity and
// exposure accounting, and the trade log for one simulation run.
type positionBook struct {
	tiers     model.TierTable
	open      map[string]*Position
	all       []*Position
	equity    float64
	exposure  float64
	trades    []model.TradeRecord
	numClosed int
}

func newPositionBook(tiers model.TierTable) *positionBook {
	return &positionBook{
		tiers: tiers,
		open:  make(map[string]*Position),
	}
}

// manage runs the exit checks for the pool's open position, in order:
// stop-loss, then in-range fee accrual, then passed-range. First matching
// exit wins; fee accrual never exits by itself.
func (b *positionBook) manage(ev model.Event, price float64) {
	pos, ok := b.open[ev.Pool]
	if !ok {
		return
	}

	adverse := (price - pos.EntryPrice) / pos.EntryPrice
	if pos.Direction == model.DirectionBelow && adverse > StopLossPct {
		b.close(pos, ev.Timestamp, ev.Tick, price, model.ReasonStopLoss)
		return
	}
	if pos.Direction == model.DirectionAbove && adverse < -StopLossPct {
		b.close(pos, ev.Timestamp, ev.Tick, price, model.ReasonStopLoss)
		return
	}

	if pos.TickLower <= ev.Tick && ev.Tick < pos.TickUpper {
		pos.EverInRange = true
		feeRate := b.tiers.FeeRate[pos.FeeTier]
		active := 0.0
		if ev.HasLiq {
			active = ev.Liquidity
		}
		share := 0.0
		if active+pos.Liquidity > 0 {
			share = pos.Liquidity / (active + pos.Liquidity)
		}
		pos.FeesUSD += ev.VolumeUSD * feeRate * share
	}

	if !pos.EverInRange {
		return
	}
	if pos.Direction == model.DirectionBelow && ev.Tick < pos.TickLower {
		b.close(pos, ev.Timestamp, ev.Tick, price, model.ReasonPassedRange)
		return
	}
	if pos.Direction == model.DirectionAbove && ev.Tick >= pos.TickUpper {
		b.close(pos, ev.Timestamp, ev.Tick, price, model.ReasonPassedRange)
	}
}

// tryOpen opens a new position when the signal fires, the pool has no open
// position, and the capital limit allows another fixed-size notional. An
// ignored signal is not an error; an unknown fee tier on a position actually
// being opened is. The tier is resolved only past the guards, so a signal
// suppressed by an open position or the capital cap never touches the tier
// tables.
func (b *positionBook) tryOpen(ev model.Event, price, ref, z float64, tierOf TierResolver, rangePct float64) error {
	if _, exists := b.open[ev.Pool]; exists {
		return nil
	}
	if b.exposure+PositionSizeUSD > CapitalLimitUSD {
		return nil
	}

	tier, err := tierOf(ev.Pool)
	if err != nil {
		return fmt.Errorf("resolve fee tier: %w", err)
	}
	_, spacing, err := b.tiers.Lookup(tier)
	if err != nil {
		return fmt.Errorf("pool %s: %w", ev.Pool, err)
	}

	dir := model.DirectionAbove
	if price > ref {
		dir = model.DirectionBelow
	}
	lower, upper := PlanRange(ev.Tick, spacing, rangePct, dir)

	var liquidity float64
	if dir == model.DirectionBelow {
		liquidity = LiquidityFromQuote(lower, upper, PositionSizeUSD/price)
	} else {
		liquidity = LiquidityFromBase(lower, upper, PositionSizeUSD)
	}

	pos := &Position{
		Pool:        ev.Pool,
		FeeTier:     tier,
		Direction:   dir,
		EntryTS:     ev.Timestamp,
		EntryTick:   ev.Tick,
		EntryPrice:  price,
		TickLower:   lower,
		TickUpper:   upper,
		Liquidity:   liquidity,
		NotionalUSD: PositionSizeUSD,
		Open:        true,
	}
	b.open[ev.Pool] = pos
	b.all = append(b.all, pos)
	b.exposure += PositionSizeUSD

	b.trades = append(b.trades, model.TradeRecord{
		Pool:      pos.Pool,
		Direction: pos.Direction,
		Action:    "open",
		Reason:    model.ReasonSignalOpen,
		EntryTS:   pos.EntryTS,
		EntryTick: pos.EntryTick,
		EntryPx:   pos.EntryPrice,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		ZScore:    z,
	})
	return nil
}

// close values the position at the exit tick, realizes pnl into equity,
// releases exposure, and appends the closing trade record.
func (b *positionBook) close(pos *Position, ts, tick int64, price float64, reason string) {
	amt0, amt1 := AmountsAtTick(pos.Liquidity, pos.TickLower, pos.TickUpper, tick)
	value := amt0 + amt1*price
	pnl := (value - pos.NotionalUSD) + pos.FeesUSD

	b.equity += pnl
	b.exposure -= pos.NotionalUSD
	pos.Open = false
	delete(b.open, pos.Pool)
	b.numClosed++

	b.trades = append(b.trades, model.TradeRecord{
		Pool:      pos.Pool,
		Direction: pos.Direction,
		Action:    "close",
		Reason:    reason,
		EntryTS:   pos.EntryTS,
		EntryTick: pos.EntryTick,
		EntryPx:   pos.EntryPrice,
		TickLower: pos.TickLower,
		TickUpper: pos.TickUpper,
		ExitTS:    ts,
		ExitPx:    price,
		FeesUSD:   pos.FeesUSD,
		PnlUSD:    pnl,
	})
}

// closeRemaining force-closes every still-open position at its pool's last
// observed price, tick, and timestamp, in position-open order.
func (b *positionBook) closeRemaining(refs *ReferenceTracker, lastTS map[string]int64) {
	for _, pos := range b.all {
		if !pos.Open {
			continue
		}
		price, tick, ok := refs.Last(pos.Pool)
		if !ok {
			price, tick = pos.EntryPrice, pos.EntryTick
		}
		ts, ok := lastTS[pos.Pool]
		if !ok {
			ts = pos.EntryTS
		}
		b.close(pos, ts, tick, price, model.ReasonEndOfData)
	}
}
