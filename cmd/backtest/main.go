package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lprevert/internal/config"
	"lprevert/internal/dataset"
	"lprevert/internal/engine"
	"lprevert/internal/model"
	"lprevert/internal/report"
	"lprevert/internal/storage"
	"lprevert/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "backtest",
		Short:        "Contrarian single-sided LP range backtester",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the grid search over an event stream",
		RunE:  runBacktest,
	}

	runCmd.Flags().String("data-dir", "", "directory of *_Swap.csv event files")
	runCmd.Flags().String("in", "", "pre-normalized events JSONL path (alternative to --data-dir)")
	runCmd.Flags().Int("lookback-days", 365, "clip events to this horizon before the newest event")
	runCmd.Flags().IntSlice("windows", []int{5, 10, 15}, "candidate lookback windows (minutes)")
	runCmd.Flags().Float64Slice("z-entries", []float64{1.25, 1.5, 1.75, 2.0, 2.5}, "candidate z-score entry thresholds")
	runCmd.Flags().Float64Slice("range-pcts", []float64{0.0005, 0.0010}, "candidate range widths (fraction)")
	runCmd.Flags().Int("workers", 1, "concurrent grid cells")
	runCmd.Flags().Int("log-every", 100000, "progress heartbeat every N events (0=off)")
	runCmd.Flags().String("out-metrics", "./out/metrics_lp.json", "winning metrics JSON path")
	runCmd.Flags().String("out-trades", "./out/trades_lp.csv", "winning trade log CSV path")
	runCmd.Flags().String("trade-log", "", "optional trade log JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for run persistence")
	runCmd.Flags().String("label", "lp_range", "label for persisted runs")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DataDir == "" && cfg.Input == "" {
		return fmt.Errorf("either data-dir or in is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events []model.Event
	if cfg.Input != "" {
		events, err = dataset.LoadEventsJSONL(cfg.Input, logger)
	} else {
		events, err = dataset.LoadSwapCSVDir(cfg.DataDir, logger)
	}
	if err != nil {
		return err
	}

	events = dataset.ClipHorizon(events, cfg.LookbackDays)
	logger.Info("event stream ready",
		zap.Int("events", len(events)),
		zap.Int64("first_ts", events[0].Timestamp),
		zap.Int64("last_ts", events[len(events)-1].Timestamp),
		zap.Int("lookback_days", cfg.LookbackDays),
	)

	grid := engine.DefaultGrid()
	if len(cfg.Windows) > 0 {
		grid.WindowsMinutes = cfg.Windows
	}
	if len(cfg.ZEntries) > 0 {
		grid.ZEntries = cfg.ZEntries
	}
	if len(cfg.RangePcts) > 0 {
		grid.RangePcts = cfg.RangePcts
	}

	result, err := engine.Search(events, grid, engine.Config{
		Tiers:    model.DefaultTiers(),
		TierOf:   dataset.FeeTierOf,
		LogEvery: cfg.LogEvery,
		Logger:   logger,
	}, cfg.Workers)
	if err != nil {
		return err
	}

	best := result.Best.Metrics
	logger.Info("grid search complete",
		zap.Float64("z_entry", best.ZEntry),
		zap.Int("window_minutes", best.WindowMinutes),
		zap.Float64("range_pct", best.RangePct),
		zap.Float64("roi", best.ROI),
		zap.Float64("equity_usd", best.EquityUSD),
		zap.Int("closed_trades", best.NumClosedTrades),
	)

	if err := report.WriteMetricsJSON(cfg.OutMetrics, best); err != nil {
		return err
	}
	if err := report.WriteTradesCSV(cfg.OutTrades, result.Best.Trades); err != nil {
		return err
	}
	logger.Info("reports written",
		zap.String("metrics", cfg.OutMetrics),
		zap.String("trades", cfg.OutTrades),
	)

	if cfg.TradeLog != "" {
		var sink storage.TradeSink = storage.NewJsonlStorage(cfg.TradeLog)
		if err := sink.PutTradeBatch(result.Best.Trades); err != nil {
			return fmt.Errorf("write trade log: %w", err)
		}
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.UpsertRunMetrics(ctx, cfg.Label, result.All); err != nil {
			return fmt.Errorf("persist run metrics: %w", err)
		}
		if err := store.InsertTrades(ctx, cfg.Label, result.Best.Trades); err != nil {
			return fmt.Errorf("persist trades: %w", err)
		}
		logger.Info("runs persisted", zap.String("label", cfg.Label), zap.Int("cells", len(result.All)))
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
