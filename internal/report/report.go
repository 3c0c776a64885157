package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"lprevert/internal/model"
)

// WriteMetricsJSON writes the winning cell's metrics as indented JSON,
// through a temp file so a crash never leaves a truncated report.
func WriteMetricsJSON(path string, metrics model.RunMetrics) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write metrics tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename metrics: %w", err)
	}
	return nil
}

var tradeColumns = []string{
	"pool", "direction", "action", "reason",
	"entry_ts", "entry_tick", "entry_price", "tick_lower", "tick_upper",
	"exit_ts", "exit_price", "fees_usd", "pnl_usd", "z_score",
}

// WriteTradesCSV writes the trade log with a fixed column order.
func WriteTradesCSV(path string, trades []model.TradeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tradeColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.Pool,
			string(t.Direction),
			t.Action,
			t.Reason,
			strconv.FormatInt(t.EntryTS, 10),
			strconv.FormatInt(t.EntryTick, 10),
			formatFloat(t.EntryPx),
			strconv.FormatInt(t.TickLower, 10),
			strconv.FormatInt(t.TickUpper, 10),
			strconv.FormatInt(t.ExitTS, 10),
			formatFloat(t.ExitPx),
			formatFloat(t.FeesUSD),
			formatFloat(t.PnlUSD),
			formatFloat(t.ZScore),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush trades csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
