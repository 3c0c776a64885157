package engine

import (
	"fmt"
	"math"
	"testing"

	"lprevert/internal/model"
)

func tier500(string) (int, error) { return 500, nil }

func openTestPosition(t *testing.T, b *positionBook, pool string, tick int64, price float64) {
	t.Helper()
	ev := model.Event{Timestamp: 1000, Pool: pool, Tick: tick}
	if err := b.tryOpen(ev, price, 1.0, 2.0, tier500, 0.001); err != nil {
		t.Fatalf("tryOpen %s: %v", pool, err)
	}
}

func TestCapitalLimitCapsOpenPositions(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())

	maxPositions := int(CapitalLimitUSD / PositionSizeUSD)
	for i := 0; i < maxPositions+5; i++ {
		openTestPosition(t, b, fmt.Sprintf("pool%02d", i), -500, 1.05)
	}

	if got := len(b.open); got != maxPositions {
		t.Fatalf("open positions = %d, want %d", got, maxPositions)
	}
	if b.exposure != CapitalLimitUSD {
		t.Fatalf("exposure = %v, want %v", b.exposure, CapitalLimitUSD)
	}

	var total float64
	for _, pos := range b.open {
		total += pos.NotionalUSD
	}
	if total != b.exposure {
		t.Fatalf("exposure %v does not match sum of open notionals %v", b.exposure, total)
	}
}

func TestCapacityFreesUpAfterClose(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())

	maxPositions := int(CapitalLimitUSD / PositionSizeUSD)
	for i := 0; i < maxPositions; i++ {
		openTestPosition(t, b, fmt.Sprintf("pool%02d", i), -500, 1.05)
	}

	// At the cap: a fresh pool's signal is ignored, not an error.
	openTestPosition(t, b, "late", -500, 1.05)
	if _, ok := b.open["late"]; ok {
		t.Fatal("position opened past the capital limit")
	}

	b.close(b.open["pool00"], 2000, -500, 1.05, model.ReasonStopLoss)
	if b.exposure != CapitalLimitUSD-PositionSizeUSD {
		t.Fatalf("exposure after close = %v", b.exposure)
	}

	openTestPosition(t, b, "late", -500, 1.05)
	if _, ok := b.open["late"]; !ok {
		t.Fatal("pool not eligible again after capacity freed up")
	}
}

func TestAtMostOneOpenPositionPerPool(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	openTestPosition(t, b, "poolA", -500, 1.05)
	openTestPosition(t, b, "poolA", -480, 1.06)

	if got := len(b.all); got != 1 {
		t.Fatalf("positions created = %d, want 1", got)
	}

	var opens int
	for _, tr := range b.trades {
		if tr.Action == "open" {
			opens++
		}
	}
	if opens != 1 {
		t.Fatalf("open trade records = %d, want 1", opens)
	}
}

func TestUnknownFeeTierIsFatal(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	ev := model.Event{Timestamp: 1000, Pool: "weird", Tick: -500}
	unmapped := func(string) (int, error) { return 12345, nil }
	if err := b.tryOpen(ev, 1.05, 1.0, 2.0, unmapped, 0.001); err == nil {
		t.Fatal("expected error for unmapped fee tier")
	}
}

func TestSuppressedSignalSkipsTierResolution(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	broken := func(pool string) (int, error) {
		return 0, fmt.Errorf("no fee tier in pool id %q", pool)
	}

	// A signal suppressed by an existing open position must never resolve
	// the tier, so a broken resolver is not an error here.
	openTestPosition(t, b, "poolA", -500, 1.05)
	ev := model.Event{Timestamp: 1100, Pool: "poolA", Tick: -500}
	if err := b.tryOpen(ev, 1.05, 1.0, 2.0, broken, 0.001); err != nil {
		t.Fatalf("tier resolved for a pool with an open position: %v", err)
	}

	// Same at the capital cap: the signal is ignored, not fatal.
	maxPositions := int(CapitalLimitUSD / PositionSizeUSD)
	for i := 1; i < maxPositions; i++ {
		openTestPosition(t, b, fmt.Sprintf("pool%02d", i), -500, 1.05)
	}
	ev = model.Event{Timestamp: 1200, Pool: "capped", Tick: -500}
	if err := b.tryOpen(ev, 1.05, 1.0, 2.0, broken, 0.001); err != nil {
		t.Fatalf("tier resolved past the capital limit: %v", err)
	}
	if _, ok := b.open["capped"]; ok {
		t.Fatal("position opened past the capital limit")
	}

	// Off the guards the resolver failure is fatal.
	b.close(b.open["poolA"], 2000, -500, 1.05, model.ReasonStopLoss)
	ev = model.Event{Timestamp: 1300, Pool: "fresh", Tick: -500}
	if err := b.tryOpen(ev, 1.05, 1.0, 2.0, broken, 0.001); err == nil {
		t.Fatal("expected error when an opening position cannot resolve its tier")
	}
}

func TestFeeAccrualShare(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	openTestPosition(t, b, "poolA", -500, 1.05)
	pos := b.open["poolA"]

	// Event inside the range with pool liquidity three times the position's.
	ev := model.Event{
		Timestamp: 1100,
		Pool:      "poolA",
		Tick:      pos.TickLower + 1,
		Liquidity: 3 * pos.Liquidity,
		HasLiq:    true,
		VolumeUSD: 1000,
	}
	b.manage(ev, TickToPrice(ev.Tick))

	if !pos.EverInRange {
		t.Fatal("in-range event did not mark ever_in_range")
	}
	want := 1000 * 0.0005 * 0.25
	if math.Abs(pos.FeesUSD-want) > 1e-12 {
		t.Fatalf("fees = %v, want %v", pos.FeesUSD, want)
	}

	// Absent liquidity means the position is the whole pool.
	ev.HasLiq = false
	ev.Liquidity = 0
	b.manage(ev, TickToPrice(ev.Tick))
	want += 1000 * 0.0005
	if math.Abs(pos.FeesUSD-want) > 1e-12 {
		t.Fatalf("fees after absent-liquidity event = %v, want %v", pos.FeesUSD, want)
	}
}

func TestPassedRangeRequiresEverInRange(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	openTestPosition(t, b, "poolA", -500, TickToPrice(-500))
	pos := b.open["poolA"]

	// Jump straight past the range without ever entering it. The adverse
	// move is below the stop so only passed-range could fire, and it must
	// not because the range was never touched.
	past := pos.TickLower - 5
	b.manage(model.Event{Timestamp: 1100, Pool: "poolA", Tick: past}, TickToPrice(past))
	if !pos.Open {
		t.Fatalf("position closed without ever being in range: %+v", b.trades[len(b.trades)-1])
	}

	inRange := pos.TickLower + 1
	b.manage(model.Event{Timestamp: 1200, Pool: "poolA", Tick: inRange}, TickToPrice(inRange))
	if !pos.Open {
		t.Fatal("position closed while in range")
	}

	b.manage(model.Event{Timestamp: 1300, Pool: "poolA", Tick: past}, TickToPrice(past))
	if pos.Open {
		t.Fatal("passed-range exit did not fire after range was entered")
	}
	last := b.trades[len(b.trades)-1]
	if last.Reason != model.ReasonPassedRange {
		t.Fatalf("close reason = %q, want %q", last.Reason, model.ReasonPassedRange)
	}
}

func TestAboveDirectionLifecycle(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())

	// Pool cheap to the reference: price below 1.0 opens an above range
	// funded base-only.
	entryPrice := TickToPrice(500)
	ev := model.Event{Timestamp: 1000, Pool: "poolA", Tick: 500}
	if err := b.tryOpen(ev, entryPrice, 1.0, -2.0, tier500, 0.001); err != nil {
		t.Fatalf("tryOpen: %v", err)
	}

	pos, ok := b.open["poolA"]
	if !ok {
		t.Fatal("no position opened")
	}
	if pos.Direction != model.DirectionAbove {
		t.Fatalf("direction = %s, want above (pool cheap to reference)", pos.Direction)
	}
	if pos.TickLower != 510 || pos.TickUpper != 520 {
		t.Fatalf("range [%d,%d), want [510,520)", pos.TickLower, pos.TickUpper)
	}
	want := LiquidityFromBase(510, 520, PositionSizeUSD)
	if pos.Liquidity != want {
		t.Fatalf("liquidity = %v, want base-funded %v", pos.Liquidity, want)
	}

	// In-range event accrues fees and arms passed-range.
	b.manage(model.Event{
		Timestamp: 1100,
		Pool:      "poolA",
		Tick:      515,
		Liquidity: 3 * pos.Liquidity,
		HasLiq:    true,
		VolumeUSD: 1000,
	}, TickToPrice(515))
	if !pos.EverInRange {
		t.Fatal("in-range event did not mark ever_in_range")
	}
	wantFees := 1000 * 0.0005 * 0.25
	if math.Abs(pos.FeesUSD-wantFees) > 1e-12 {
		t.Fatalf("fees = %v, want %v", pos.FeesUSD, wantFees)
	}

	// The upper bound itself is already past an above range.
	b.manage(model.Event{Timestamp: 1200, Pool: "poolA", Tick: 520}, TickToPrice(520))
	if pos.Open {
		t.Fatal("tick at upper bound did not close an armed above position")
	}
	last := b.trades[len(b.trades)-1]
	if last.Reason != model.ReasonPassedRange {
		t.Fatalf("close reason = %q, want %q", last.Reason, model.ReasonPassedRange)
	}
	if math.Abs(last.FeesUSD-wantFees) > 1e-12 {
		t.Fatalf("close carried fees %v, want %v", last.FeesUSD, wantFees)
	}
}

func TestAboveDirectionStopLoss(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	entryPrice := TickToPrice(500)
	ev := model.Event{Timestamp: 1000, Pool: "poolA", Tick: 500}
	if err := b.tryOpen(ev, entryPrice, 1.0, -2.0, tier500, 0.001); err != nil {
		t.Fatalf("tryOpen: %v", err)
	}
	pos := b.open["poolA"]

	// A >2% price drop breaches the stop on an above position.
	crash := int64(800)
	price := TickToPrice(crash)
	if adverse := (price - entryPrice) / entryPrice; adverse >= -StopLossPct {
		t.Fatalf("test setup: adverse move %v does not breach stop", adverse)
	}
	b.manage(model.Event{Timestamp: 1100, Pool: "poolA", Tick: crash}, price)

	if pos.Open {
		t.Fatal("stop-loss did not close the above position")
	}
	last := b.trades[len(b.trades)-1]
	if last.Reason != model.ReasonStopLoss {
		t.Fatalf("close reason = %q, want %q", last.Reason, model.ReasonStopLoss)
	}
}

func TestStopLossBeatsPassedRange(t *testing.T) {
	b := newPositionBook(model.DefaultTiers())
	entryPrice := TickToPrice(-500)
	openTestPosition(t, b, "poolA", -500, entryPrice)
	pos := b.open["poolA"]

	// Enter the range first so passed-range becomes eligible.
	inRange := pos.TickLower + 1
	b.manage(model.Event{Timestamp: 1100, Pool: "poolA", Tick: inRange}, TickToPrice(inRange))

	// A tick far past the range also breaches the 2% stop; the stop-loss
	// check runs first and wins.
	crash := int64(-800)
	price := TickToPrice(crash)
	if adverse := (price - entryPrice) / entryPrice; adverse <= StopLossPct {
		t.Fatalf("test setup: adverse move %v does not breach stop", adverse)
	}
	b.manage(model.Event{Timestamp: 1200, Pool: "poolA", Tick: crash}, price)

	last := b.trades[len(b.trades)-1]
	if last.Reason != model.ReasonStopLoss {
		t.Fatalf("close reason = %q, want %q", last.Reason, model.ReasonStopLoss)
	}
}
