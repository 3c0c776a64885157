package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"lprevert/internal/model"
)

// Grid is the candidate parameter space of a search.
type Grid struct {
	WindowsMinutes []int
	ZEntries       []float64
	RangePcts      []float64
}

// DefaultGrid is the candidate space the strategy was tuned over.
func DefaultGrid() Grid {
	return Grid{
		WindowsMinutes: []int{5, 10, 15},
		ZEntries:       []float64{1.25, 1.5, 1.75, 2.0, 2.5},
		RangePcts:      []float64{0.0005, 0.0010},
	}
}

// Cells expands the grid in its fixed nested order: window, then z-entry,
// then range width. Tie-breaking on ROI depends on this order.
func (g Grid) Cells() []Params {
	cells := make([]Params, 0, len(g.WindowsMinutes)*len(g.ZEntries)*len(g.RangePcts))
	for _, w := range g.WindowsMinutes {
		for _, z := range g.ZEntries {
			for _, r := range g.RangePcts {
				cells = append(cells, Params{ZEntry: z, WindowMinutes: w, RangePct: r})
			}
		}
	}
	return cells
}

// SearchResult is the outcome of a grid search.
type SearchResult struct {
	Best    model.RunResult
	BestIdx int
	All     []model.RunMetrics
}

// Search runs one independent driver per grid cell over the same read-only
// event stream and keeps the cell with the strictly largest ROI; ties keep
// the earliest cell in iteration order. Cells are fanned out over workers;
// results are collected per cell index and selected sequentially, so the
// winner is identical to a single-threaded search.
func Search(events []model.Event, grid Grid, cfg Config, workers int) (SearchResult, error) {
	cells := grid.Cells()
	if len(cells) == 0 {
		return SearchResult{}, fmt.Errorf("empty parameter grid")
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(cells) {
		workers = len(cells)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]model.RunResult, len(cells))
	errs := make([]error, len(cells))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx], errs[idx] = NewDriver(cells[idx], cfg).Run(events)
			}
		}()
	}
	for idx := range cells {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return SearchResult{}, err
		}
	}

	out := SearchResult{BestIdx: -1, All: make([]model.RunMetrics, len(cells))}
	bestROI := 0.0
	for idx, res := range results {
		out.All[idx] = res.Metrics
		logger.Info("grid cell",
			zap.Float64("z_entry", res.Metrics.ZEntry),
			zap.Int("window_minutes", res.Metrics.WindowMinutes),
			zap.Float64("range_pct", res.Metrics.RangePct),
			zap.Float64("roi", res.Metrics.ROI),
			zap.Float64("equity_usd", res.Metrics.EquityUSD),
			zap.Int("closed_trades", res.Metrics.NumClosedTrades),
		)
		if out.BestIdx < 0 || res.Metrics.ROI > bestROI {
			out.BestIdx = idx
			out.Best = res
			bestROI = res.Metrics.ROI
		}
	}
	return out, nil
}
