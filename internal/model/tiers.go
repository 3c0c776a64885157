package model

import "fmt"

// TierTable maps a pool's fee-tier identifier to its swap fee rate and tick
// spacing. Both tables must cover every tier the event stream references; a
// miss is a configuration error, not a runtime condition.
type TierTable struct {
	FeeRate     map[int]float64
	TickSpacing map[int]int64
}

// DefaultTiers covers the standard V3 fee tiers.
func DefaultTiers() TierTable {
	return TierTable{
		FeeRate: map[int]float64{
			100:  0.0001,
			500:  0.0005,
			1000: 0.0010,
			3000: 0.0030,
		},
		TickSpacing: map[int]int64{
			100:  1,
			500:  10,
			1000: 20,
			3000: 60,
		},
	}
}

// Lookup returns the fee rate and tick spacing for a fee tier.
func (t TierTable) Lookup(tier int) (float64, int64, error) {
	rate, ok := t.FeeRate[tier]
	if !ok {
		return 0, 0, fmt.Errorf("unknown fee tier %d", tier)
	}
	spacing, ok := t.TickSpacing[tier]
	if !ok {
		return 0, 0, fmt.Errorf("no tick spacing for fee tier %d", tier)
	}
	return rate, spacing, nil
}
