package engine

import "sort"

// ReferenceTracker keeps each pool's latest observed price and tick and
// derives the cross-pool consensus price as the median over all known pools.
// The median is only meaningful once MinPoolsForRef distinct pools have been
// seen; until then Reference reports no value and callers skip signal
// evaluation while still feeding observations in.
type ReferenceTracker struct {
	minPools int
	price    map[string]float64
	tick     map[string]int64
}

func NewReferenceTracker(minPools int) *ReferenceTracker {
	return &ReferenceTracker{
		minPools: minPools,
		price:    make(map[string]float64),
		tick:     make(map[string]int64),
	}
}

// Update records a pool's latest price and tick unconditionally.
func (r *ReferenceTracker) Update(pool string, tick int64, price float64) {
	r.price[pool] = price
	r.tick[pool] = tick
}

// Reference returns the median of all known pool prices, or false while
// fewer than the minimum number of distinct pools have been observed.
func (r *ReferenceTracker) Reference() (float64, bool) {
	if len(r.price) < r.minPools {
		return 0, false
	}
	vals := make([]float64, 0, len(r.price))
	for _, p := range r.price {
		vals = append(vals, p)
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2], true
	}
	return (vals[n/2-1] + vals[n/2]) / 2, true
}

// Last returns the latest observed price and tick for a pool.
func (r *ReferenceTracker) Last(pool string) (float64, int64, bool) {
	price, ok := r.price[pool]
	if !ok {
		return 0, 0, false
	}
	return price, r.tick[pool], true
}

// Pools returns the number of distinct pools observed so far.
func (r *ReferenceTracker) Pools() int {
	return len(r.price)
}
