package config

import (
	"errors"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Portfolio struct {
		StartingCashUSD     float64 `toml:"starting_cash_usd"`
		DefaultMaxAllocPct  float64 `toml:"default_max_alloc_pct"`
		ModerateMaxAllocPct float64 `toml:"moderate_max_alloc_pct"`
		RecentDecisionHours int     `toml:"recent_decision_hours"`
	} `toml:"portfolio"`

	Gate struct {
		MinMarketCap       float64  `toml:"min_market_cap"`
		MinAvgDollarVol20d float64  `toml:"min_avg_dollar_vol_20d"`
		HardVetoKeywords   []string `toml:"hard_veto_keywords"`
	} `toml:"gate"`

	Watchlist struct {
		Tickers []string `toml:"tickers"`
	} `toml:"watchlist"`

	Metrics struct {
		LookbackDays int `toml:"lookback_days"`
	} `toml:"metrics"`

	News struct {
		TTLSeconds int `toml:"ttl_seconds"`
		Quota      int `toml:"quota"`
	} `toml:"news"`

	Jobs struct {
		Enabled           bool `toml:"enabled"`
		ReserveEveryMin   int  `toml:"reserve_every_min"`
		ReserveMaxQueries int  `toml:"reserve_max_queries"`
		BroadEveryHours   int  `toml:"broad_every_hours"`
		BroadMaxQueries   int  `toml:"broad_max_queries"`
	} `toml:"jobs"`

	Sqlite struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Redis struct {
		Enabled      bool   `toml:"enabled"`
		Addr         string `toml:"addr"`
		Prefix       string `toml:"prefix"`
		SignalStream string `toml:"signal_stream"`
		SignalChan   string `toml:"signal_chan"`
	} `toml:"redis"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Portfolio.StartingCashUSD <= 0 {
		cfg.Portfolio.StartingCashUSD = 100_000.0
	}
	if cfg.Portfolio.DefaultMaxAllocPct <= 0 {
		cfg.Portfolio.DefaultMaxAllocPct = 0.05
	}
	if cfg.Portfolio.ModerateMaxAllocPct <= 0 {
		cfg.Portfolio.ModerateMaxAllocPct = 0.07
	}
	if cfg.Portfolio.RecentDecisionHours <= 0 {
		cfg.Portfolio.RecentDecisionHours = 48
	}
	if cfg.Gate.MinMarketCap <= 0 {
		cfg.Gate.MinMarketCap = 2_000_000_000.0
	}
	if cfg.Gate.MinAvgDollarVol20d <= 0 {
		cfg.Gate.MinAvgDollarVol20d = 20_000_000.0
	}
	if len(cfg.Gate.HardVetoKeywords) == 0 {
		cfg.Gate.HardVetoKeywords = []string{
			"fraud",
			"bankruptcy",
			"accounting irregularity",
			"delisting",
			"material weakness",
		}
	}
	if len(cfg.Watchlist.Tickers) == 0 {
		cfg.Watchlist.Tickers = []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"}
	}
	if cfg.Metrics.LookbackDays <= 0 {
		cfg.Metrics.LookbackDays = 90
	}
	if cfg.News.TTLSeconds <= 0 {
		cfg.News.TTLSeconds = 300
	}
	if cfg.News.Quota <= 0 {
		cfg.News.Quota = 100
	}
	if cfg.Jobs.ReserveEveryMin <= 0 {
		cfg.Jobs.ReserveEveryMin = 60
	}
	if cfg.Jobs.ReserveMaxQueries <= 0 {
		cfg.Jobs.ReserveMaxQueries = 10
	}
	if cfg.Jobs.BroadEveryHours <= 0 {
		cfg.Jobs.BroadEveryHours = 6
	}
	if cfg.Jobs.BroadMaxQueries <= 0 {
		cfg.Jobs.BroadMaxQueries = 50
	}
	if strings.TrimSpace(cfg.Sqlite.Path) == "" {
		cfg.Sqlite.Path = "stocks.db"
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = "stockbot"
	}
}

func validate(cfg *Config) error {
	cfg.Watchlist.Tickers = normalizeTickers(cfg.Watchlist.Tickers)
	if len(cfg.Watchlist.Tickers) == 0 {
		return errors.New("watchlist.tickers is empty")
	}

	if cfg.Portfolio.ModerateMaxAllocPct < cfg.Portfolio.DefaultMaxAllocPct {
		return errors.New("portfolio.moderate_max_alloc_pct below default_max_alloc_pct")
	}
	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

func normalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
