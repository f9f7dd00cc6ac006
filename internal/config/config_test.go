package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setBrokerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BROKER_API_KEY", "key")
	t.Setenv("BROKER_CLIENT_CODE", "code")
	t.Setenv("BROKER_PASSWORD", "pw")
	t.Setenv("BROKER_TOTP_SECRET", "secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setBrokerEnv(t)

	cfg := Load()
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want default", cfg.RedisAddr)
	}
	if cfg.MarketTimezone != "America/New_York" {
		t.Errorf("MarketTimezone = %q, want default", cfg.MarketTimezone)
	}
	if cfg.LatenessSeconds != 2 {
		t.Errorf("LatenessSeconds = %d, want 2", cfg.LatenessSeconds)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	setBrokerEnv(t)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("LATENESS_SECONDS", "5")

	cfg := Load()
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("RedisAddr = %q, want override", cfg.RedisAddr)
	}
	if cfg.Lateness().Seconds() != 5 {
		t.Errorf("Lateness() = %v, want 5s", cfg.Lateness())
	}
}

func TestParseTFsSkipsInvalidEntries(t *testing.T) {
	setBrokerEnv(t)
	t.Setenv("ENABLED_TFS", "60, not-a-number ,300,")

	cfg := Load()
	got := cfg.ParseTFs()
	want := []int{60, 300}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ParseTFs() = %v, want %v", got, want)
	}
}

func TestParseSymbolsTrimsAndFilters(t *testing.T) {
	setBrokerEnv(t)
	t.Setenv("SUBSCRIBE_SYMBOLS", " AAPL, MSFT ,,SPY")

	cfg := Load()
	got := cfg.ParseSymbols()
	want := []string{"AAPL", "MSFT", "SPY"}
	if len(got) != len(want) {
		t.Fatalf("ParseSymbols() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseSymbols()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolvedStoreRootFallsBackToDataRoot(t *testing.T) {
	setBrokerEnv(t)
	t.Setenv("DATA_ROOT", "/tmp/marketdata")

	cfg := Load()
	if got := cfg.ResolvedCandleStoreRoot(); got != "/tmp/marketdata" {
		t.Errorf("ResolvedCandleStoreRoot() = %q, want DataRoot fallback", got)
	}
}

func TestResolvedStoreRootHonorsOverride(t *testing.T) {
	setBrokerEnv(t)
	t.Setenv("DATA_ROOT", "/tmp/marketdata")
	t.Setenv("CANDLE_STORE_ROOT", "/tmp/candles-only")

	cfg := Load()
	if got := cfg.ResolvedCandleStoreRoot(); got != "/tmp/candles-only" {
		t.Errorf("ResolvedCandleStoreRoot() = %q, want explicit override", got)
	}
}

func TestLocationFallsBackToUTCOnBadZone(t *testing.T) {
	setBrokerEnv(t)
	t.Setenv("MARKET_TIMEZONE", "Not/AZone")

	cfg := Load()
	if cfg.Location() != nil && cfg.Location().String() != "UTC" {
		t.Errorf("Location() = %v, want UTC fallback", cfg.Location())
	}
}

func TestLoadStrategyConfigMissingFileReturnsEmpty(t *testing.T) {
	cfg, err := LoadStrategyConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadStrategyConfig() error = %v, want nil for missing file", err)
	}
	if len(cfg.Strategies) != 0 {
		t.Errorf("Strategies = %v, want empty", cfg.Strategies)
	}
}

func TestLoadStrategyConfigParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	yaml := `
strategies:
  - id: sma-fast
    symbol: AAPL
    fast_period: 10
    slow_period: 30
    rsi_filter: true
breaker:
  daily_loss_threshold: -0.03
  vix_threshold: 25
  concentration_threshold: 0.15
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadStrategyConfig(path)
	if err != nil {
		t.Fatalf("LoadStrategyConfig() error = %v", err)
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].ID != "sma-fast" {
		t.Fatalf("Strategies = %+v, want one entry with id sma-fast", cfg.Strategies)
	}
	if cfg.Breaker.VIXThreshold != 25 {
		t.Errorf("Breaker.VIXThreshold = %v, want 25", cfg.Breaker.VIXThreshold)
	}
}
