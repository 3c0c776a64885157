package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	DataDir      string
	Input        string
	LookbackDays int
	Windows      []int
	ZEntries     []float64
	RangePcts    []float64
	Workers      int
	LogEvery     int
	OutMetrics   string
	OutTrades    string
	TradeLog     string
	PGDSN        string
	Label        string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("lookback-days", 365)
	v.SetDefault("workers", 1)
	v.SetDefault("log-every", 100000)
	v.SetDefault("out-metrics", "./out/metrics_lp.json")
	v.SetDefault("out-trades", "./out/trades_lp.csv")
	v.SetDefault("label", "lp_range")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	windows, err := getIntSlice(v, "windows")
	if err != nil {
		return Config{}, fmt.Errorf("parse windows: %w", err)
	}
	zEntries, err := getFloatSlice(v, "z-entries")
	if err != nil {
		return Config{}, fmt.Errorf("parse z-entries: %w", err)
	}
	rangePcts, err := getFloatSlice(v, "range-pcts")
	if err != nil {
		return Config{}, fmt.Errorf("parse range-pcts: %w", err)
	}

	cfg := Config{
		DataDir:      v.GetString("data-dir"),
		Input:        v.GetString("in"),
		LookbackDays: v.GetInt("lookback-days"),
		Windows:      windows,
		ZEntries:     zEntries,
		RangePcts:    rangePcts,
		Workers:      v.GetInt("workers"),
		LogEvery:     v.GetInt("log-every"),
		OutMetrics:   v.GetString("out-metrics"),
		OutTrades:    v.GetString("out-trades"),
		TradeLog:     v.GetString("trade-log"),
		PGDSN:        v.GetString("pg-dsn"),
		Label:        v.GetString("label"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func getIntSlice(v *viper.Viper, key string) ([]int, error) {
	items := getStringSlice(v, key)
	out := make([]int, 0, len(items))
	for _, item := range items {
		val, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", item)
		}
		out = append(out, val)
	}
	return out, nil
}

func getFloatSlice(v *viper.Viper, key string) ([]float64, error) {
	items := getStringSlice(v, key)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		val, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", item)
		}
		out = append(out, val)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []int:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, strconv.Itoa(item))
		}
		return items
	case []float64:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, strconv.FormatFloat(item, 'g', -1, 64))
		}
		return items
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

// splitAndClean also strips the bracketed form pflag slice values print as.
func splitAndClean(input string) []string {
	input = strings.Trim(input, "[]")
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
