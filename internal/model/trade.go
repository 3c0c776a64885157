package model

// Direction marks which side of the entry tick a range sits on.
type Direction string

const (
	// DirectionBelow is a range under the entry tick, funded quote-only,
	// opened when the pool trades rich to the reference.
	DirectionBelow Direction = "below"
	// DirectionAbove is a range over the entry tick, funded base-only,
	// opened when the pool trades cheap to the reference.
	DirectionAbove Direction = "above"
)

// Close reasons recorded on TradeRecord.
const (
	ReasonSignalOpen  = "signal_open"
	ReasonStopLoss    = "stop_loss"
	ReasonPassedRange = "passed_range"
	ReasonEndOfData   = "eod"
)

// TradeRecord is an immutable snapshot appended to the trade log when a
// position opens and again when it closes.
type TradeRecord struct {
	Pool      string    `json:"pool"`
	Direction Direction `json:"direction"`
	Action    string    `json:"action"` // "open" or "close"
	Reason    string    `json:"reason"`
	EntryTS   int64     `json:"entry_ts"`
	EntryTick int64     `json:"entry_tick"`
	EntryPx   float64   `json:"entry_price"`
	TickLower int64     `json:"tick_lower"`
	TickUpper int64     `json:"tick_upper"`
	ExitTS    int64     `json:"exit_ts,omitempty"`
	ExitPx    float64   `json:"exit_price,omitempty"`
	FeesUSD   float64   `json:"fees_usd"`
	PnlUSD    float64   `json:"pnl_usd"`
	ZScore    float64   `json:"z_score,omitempty"`
}

// RunMetrics summarizes one grid cell.
type RunMetrics struct {
	ZEntry          float64 `json:"z_entry"`
	WindowMinutes   int     `json:"window_minutes"`
	RangePct        float64 `json:"range_pct"`
	EquityUSD       float64 `json:"equity_usd"`
	ROI             float64 `json:"roi"`
	NumClosedTrades int     `json:"num_closed_trades"`
}

// RunResult couples a grid cell's metrics with its full trade log.
type RunResult struct {
	Metrics RunMetrics    `json:"metrics"`
	Trades  []TradeRecord `json:"trades"`
}
