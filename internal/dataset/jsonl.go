package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"lprevert/internal/model"
)

// LoadEventsJSONL reads pre-normalized events from a JSON-lines file and
// returns them sorted by timestamp. Malformed lines are logged and skipped.
func LoadEventsJSONL(path string, logger *zap.Logger) ([]model.Event, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var events []model.Event
	var failed int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			failed++
			logger.Warn("decode event line", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no events in %s", path)
	}
	if failed > 0 {
		logger.Warn("skipped malformed event lines", zap.Int("lines", failed))
	}

	SortByTimestamp(events)
	return events, nil
}

// SortByTimestamp orders events by timestamp, keeping the relative order of
// equal timestamps so per-pool sequences stay intact.
func SortByTimestamp(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}

// ClipHorizon drops events older than lookbackDays before the newest event.
// The input must already be sorted by timestamp.
func ClipHorizon(events []model.Event, lookbackDays int) []model.Event {
	if len(events) == 0 || lookbackDays <= 0 {
		return events
	}
	cutoff := events[len(events)-1].Timestamp - int64(lookbackDays)*24*3600
	idx := sort.Search(len(events), func(i int) bool {
		return events[i].Timestamp >= cutoff
	})
	return events[idx:]
}
