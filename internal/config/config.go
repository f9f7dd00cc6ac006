// Package config loads process configuration from environment
// variables, following the teacher's config.Config + Load() +
// getEnv/mustEnv pattern, generalized from the teacher's single
// Angel-One-and-candle-store surface to every component this module
// wires: the broker market-data stream adapter, Redis, SQLite, the
// NDJSON file roots, market timezone, and the metrics listener.
//
// Safety-specific config (KILL_SWITCH, STALE_THRESHOLD_SECONDS) is
// deliberately not duplicated here — it is sourced through
// internal/safety.ConfigSource, which prefers a file under
// /etc/<app>-safety/<KEY> over the environment per spec.md §4.3, a
// stricter rule than this package's plain getEnv/mustEnv.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-sourced configuration shared by every
// cmd/ entrypoint.
type Config struct {
	// Broker session bootstrap (internal/broker.totp); Load requires all
	// four for every entrypoint.
	BrokerAPIKey     string
	BrokerClientCode string
	BrokerPassword   string
	BrokerTOTPSecret string

	// Broker market-data stream adapter (internal/marketdata/stream).
	StreamAddr string

	// Infrastructure.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string

	// File-backed NDJSON store roots (internal/store/file); all rooted
	// under DataRoot unless independently overridden.
	DataRoot        string
	CandleStoreRoot string
	TickStoreRoot   string
	ProposalRoot    string
	AuditRoot       string

	// Market session.
	MarketTimezone string // IANA name, e.g. "America/New_York"

	// Aggregation.
	SubscribeSymbols string // comma-separated
	EnabledTFs       string // comma-separated seconds, e.g. "60,300,900"
	LatenessSeconds  int

	// Fee terms (internal/feesplit), expressed as fractions of gross fee.
	CreatorShare  float64
	PlatformShare float64

	// Alert delivery (internal/notification), for breaker-trip alerts.
	// All optional; an unset NotifyWebhookURL
	// and unset Telegram pair both leave alerting on LogNotifier.
	NotifyWebhookURL string
	TelegramBotToken string
	TelegramChatID   string

	// Agent identity, stamped onto every intent.IntentLogRecord (spec
	// §4.8). Grounded on original_source's agent_identity.py/
	// build_fingerprint.py, which require these at process startup; this
	// package instead defaults them like every other optional field,
	// since a missing identity shouldn't crash the strategy loop — it
	// just logs as "unknown".
	RepoID    string
	AgentName string
	AgentRole string
	AgentMode string // OFF, OBSERVE, or EXECUTE
	GitSHA    string
}

// Load reads configuration from environment variables with sensible
// defaults. Broker credentials are required (mustEnv) since an
// entrypoint that reaches this far always needs them; every other
// field falls back to a workable local default.
func Load() *Config {
	return &Config{
		BrokerAPIKey:     mustEnv("BROKER_API_KEY"),
		BrokerClientCode: mustEnv("BROKER_CLIENT_CODE"),
		BrokerPassword:   mustEnv("BROKER_PASSWORD"),
		BrokerTOTPSecret: mustEnv("BROKER_TOTP_SECRET"),

		StreamAddr: getEnv("STREAM_ADDR", "wss://stream.example.invalid/ws"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/ledger.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		DataRoot:        getEnv("DATA_ROOT", "data"),
		CandleStoreRoot: getEnv("CANDLE_STORE_ROOT", ""),
		TickStoreRoot:   getEnv("TICK_STORE_ROOT", ""),
		ProposalRoot:    getEnv("PROPOSAL_STORE_ROOT", ""),
		AuditRoot:       getEnv("AUDIT_STORE_ROOT", ""),

		MarketTimezone: getEnv("MARKET_TIMEZONE", "America/New_York"),

		SubscribeSymbols: getEnv("SUBSCRIBE_SYMBOLS", "AAPL"),
		EnabledTFs:       getEnv("ENABLED_TFS", "60,300,900"),
		LatenessSeconds:  getEnvInt("LATENESS_SECONDS", 2),

		CreatorShare:  getEnvFloat("FEE_CREATOR_SHARE", 0.70),
		PlatformShare: getEnvFloat("FEE_PLATFORM_SHARE", 0.30),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		RepoID:    getEnv("REPO_ID", "unknown"),
		AgentName: getEnv("AGENT_NAME", "unknown"),
		AgentRole: getEnv("AGENT_ROLE", "unknown"),
		AgentMode: getEnvAgentMode("AGENT_MODE", "OBSERVE"),
		GitSHA:    getEnv("GIT_SHA", "unknown"),
	}
}

// allowedAgentModes mirrors original_source's ALLOWED_AGENT_MODES.
var allowedAgentModes = map[string]bool{"OFF": true, "OBSERVE": true, "EXECUTE": true}

// getEnvAgentMode reads an agent-mode env var, upper-casing it and
// falling back to fallback (logging) if it's unset or not one of
// OFF/OBSERVE/EXECUTE.
func getEnvAgentMode(key, fallback string) string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	if !allowedAgentModes[v] {
		log.Printf("[config] invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return v
}

// ParseTFs parses EnabledTFs into a slice of timeframe durations in
// seconds, skipping and logging any malformed entry rather than
// failing the whole process — mirrors the teacher's
// Config.ParseTFs.
func (c *Config) ParseTFs() []int {
	parts := strings.Split(c.EnabledTFs, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid TF value: %q", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}

// ParseSymbols parses SubscribeSymbols into a trimmed, non-empty slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.SubscribeSymbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Lateness returns LatenessSeconds as a time.Duration.
func (c *Config) Lateness() time.Duration {
	return time.Duration(c.LatenessSeconds) * time.Second
}

// Location resolves MarketTimezone, falling back to UTC and logging if
// the zone name cannot be loaded (e.g. no tzdata installed).
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.MarketTimezone)
	if err != nil {
		log.Printf("[config] failed to load timezone %q, falling back to UTC: %v", c.MarketTimezone, err)
		return time.UTC
	}
	return loc
}

// ResolvedCandleStoreRoot, ResolvedTickStoreRoot, ResolvedProposalRoot and
// ResolvedAuditRoot resolve a
// per-store override if set, else fall back to DataRoot — each file
// store's NewXStore still appends its own fixed subpath (candles/,
// ticks/, proposals/, audit_artifacts/) on top of this root.
func (c *Config) ResolvedCandleStoreRoot() string { return firstNonEmpty(c.CandleStoreRoot, c.DataRoot) }
func (c *Config) ResolvedTickStoreRoot() string    { return firstNonEmpty(c.TickStoreRoot, c.DataRoot) }
func (c *Config) ResolvedProposalRoot() string     { return firstNonEmpty(c.ProposalRoot, c.DataRoot) }
func (c *Config) ResolvedAuditRoot() string        { return firstNonEmpty(c.AuditRoot, c.DataRoot) }

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s=%q, using default %f", key, v, fallback)
		return fallback
	}
	return f
}
