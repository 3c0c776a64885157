package model

// Event is one normalized swap observation on a pool. The stream handed to
// the engine is ordered by non-decreasing timestamp with pools interleaved.
type Event struct {
	Timestamp int64   `json:"timestamp"`
	Pool      string  `json:"pool"`
	Tick      int64   `json:"tick"`
	Liquidity float64 `json:"liquidity"`
	HasLiq    bool    `json:"has_liquidity"`
	VolumeUSD float64 `json:"volume_usd"`
}
