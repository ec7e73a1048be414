package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Portfolio.StartingCashUSD != 100_000 {
		t.Errorf("starting cash default: got %v", cfg.Portfolio.StartingCashUSD)
	}
	if cfg.Gate.MinMarketCap != 2_000_000_000 {
		t.Errorf("min market cap default: got %v", cfg.Gate.MinMarketCap)
	}
	if len(cfg.Watchlist.Tickers) != 5 {
		t.Errorf("watchlist default: got %v", cfg.Watchlist.Tickers)
	}
	if cfg.Jobs.ReserveEveryMin != 60 || cfg.Jobs.BroadEveryHours != 6 {
		t.Errorf("job cadence defaults: %+v", cfg.Jobs)
	}
	if cfg.Sqlite.Path != "stocks.db" {
		t.Errorf("sqlite path default: got %q", cfg.Sqlite.Path)
	}
}

func TestLoadNormalizesWatchlist(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[watchlist]
tickers = [" aapl", "AAPL", "msft ", ""]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Watchlist.Tickers) != 2 || cfg.Watchlist.Tickers[0] != "AAPL" || cfg.Watchlist.Tickers[1] != "MSFT" {
		t.Fatalf("expected [AAPL MSFT], got %v", cfg.Watchlist.Tickers)
	}
}

func TestLoadRejectsEnabledBackendsWithoutAddress(t *testing.T) {
	if _, err := Load(writeConfig(t, "[postgres]\nenabled = true\n")); err == nil {
		t.Error("expected error for enabled postgres without dsn")
	}
	if _, err := Load(writeConfig(t, "[redis]\nenabled = true\n")); err == nil {
		t.Error("expected error for enabled redis without addr")
	}
}

func TestLoadRejectsInvertedAllocCeilings(t *testing.T) {
	_, err := Load(writeConfig(t, `
[portfolio]
default_max_alloc_pct = 0.08
moderate_max_alloc_pct = 0.05
`))
	if err == nil {
		t.Error("expected error for moderate ceiling below default")
	}
}
