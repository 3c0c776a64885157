package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"lprevert/internal/model"
)

// LoadSwapCSVDir reads every swap CSV under dir into one merged, time-ordered
// event stream. Files matching *_Swap.csv are preferred; when none exist all
// *.csv files are scanned and rows are filtered on their event_name column.
func LoadSwapCSVDir(dir string, logger *zap.Logger) ([]model.Event, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*_Swap.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	if len(paths) == 0 {
		paths, err = filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("scan data dir: %w", err)
		}
		logger.Info("no *_Swap.csv files, falling back to *.csv", zap.Int("files", len(paths)))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no csv files in %s", dir)
	}
	sort.Strings(paths)

	var events []model.Event
	for _, path := range paths {
		fileEvents, err := loadSwapCSV(path)
		if err != nil {
			logger.Warn("skip csv file", zap.String("path", path), zap.Error(err))
			continue
		}
		events = append(events, fileEvents...)
		logger.Info("loaded csv", zap.String("path", filepath.Base(path)), zap.Int("events", len(fileEvents)))
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no usable swap rows under %s", dir)
	}

	SortByTimestamp(events)
	return events, nil
}

func loadSwapCSV(path string) ([]model.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"timestamp", "tick", "contract_name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var events []model.Event
	var tsSamples []int64
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if idx, ok := col["event_name"]; ok && idx < len(row) && row[idx] != "Swap" {
			continue
		}

		ts, err := strconv.ParseInt(field(row, col, "timestamp"), 10, 64)
		if err != nil {
			continue
		}
		tick, err := parseTick(field(row, col, "tick"))
		if err != nil {
			continue
		}
		pool := field(row, col, "contract_name")
		if pool == "" {
			continue
		}

		ev := model.Event{Timestamp: ts, Pool: pool, Tick: tick}
		if liq, err := strconv.ParseFloat(field(row, col, "liquidity"), 64); err == nil {
			ev.Liquidity = liq
			ev.HasLiq = true
		}
		if amount0, err := strconv.ParseFloat(field(row, col, "amount0"), 64); err == nil {
			dec := stableDecimals[stableOf(pool)]
			ev.VolumeUSD = math.Abs(amount0) / math.Pow10(dec)
		}

		events = append(events, ev)
		tsSamples = append(tsSamples, ts)
	}

	// Some exports carry millisecond timestamps; a median above 1e12 can
	// only be ms for any plausible horizon.
	if medianInt64(tsSamples) > 1e12 {
		for i := range events {
			events[i].Timestamp /= 1000
		}
	}
	return events, nil
}

func field(row []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseTick(s string) (int64, error) {
	if tick, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tick, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func medianInt64(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}
