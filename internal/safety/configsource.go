// Package safety implements the fail-closed readiness evaluator (spec
// §4.3): it decides whether the system is safe to trade from kill-switch,
// trading-enabled, and marketdata-freshness inputs, and classifies service
// heartbeats into a healthy/degraded/down/unknown ladder.
package safety

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultStaleThresholdSeconds is used whenever STALE_THRESHOLD_SECONDS is
// missing, unparseable, or below 1; values above 3600 clamp to 3600.
const DefaultStaleThresholdSeconds = 30

// DefaultSafetyDir is the ConfigMap-volume-style mount point checked before
// falling back to environment variables, matching the teacher's
// getEnv/mustEnv preference order generalized to a file-over-env source.
const DefaultSafetyDir = "/etc/trading-safety"

// ConfigSource reads safety knobs with a file-over-env precedence: a file
// at <dir>/<KEY> wins over the environment variable <KEY>. Unreadable or
// unparseable values always resolve to the fail-closed default, never an
// error — this evaluator must never block on a misconfigured source.
type ConfigSource struct {
	// Dir is the directory checked for <KEY> files. Defaults to
	// DefaultSafetyDir, overridable via the TRADING_SAFETY_DIR env var.
	Dir string
}

// NewConfigSource builds a ConfigSource honoring TRADING_SAFETY_DIR.
func NewConfigSource() ConfigSource {
	dir := strings.TrimSpace(os.Getenv("TRADING_SAFETY_DIR"))
	if dir == "" {
		dir = DefaultSafetyDir
	}
	return ConfigSource{Dir: dir}
}

func (c ConfigSource) get(key string) (string, bool) {
	if c.Dir != "" {
		if b, err := os.ReadFile(filepath.Join(c.Dir, key)); err == nil {
			v := strings.TrimSpace(string(b))
			if v != "" {
				return v, true
			}
		}
	}
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", false
	}
	return v, true
}

// KillSwitch reads KILL_SWITCH. SAFE DEFAULT: missing or unparseable => true
// (halted) — a misconfigured kill switch must never silently permit trading.
func (c ConfigSource) KillSwitch() bool {
	raw, ok := c.get("KILL_SWITCH")
	if !ok {
		return true
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// TradingEnabled reads TRADING_ENABLED, defaulting to true (matching the
// spec's evaluator default) when missing or unparseable.
func (c ConfigSource) TradingEnabled() bool {
	raw, ok := c.get("TRADING_ENABLED")
	if !ok {
		return true
	}
	switch strings.ToLower(raw) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// StaleThresholdSeconds reads STALE_THRESHOLD_SECONDS, clamped to
// [1, 3600] and defaulting to DefaultStaleThresholdSeconds when missing,
// unparseable, or out of range.
func (c ConfigSource) StaleThresholdSeconds() int {
	raw, ok := c.get("STALE_THRESHOLD_SECONDS")
	if !ok {
		return DefaultStaleThresholdSeconds
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultStaleThresholdSeconds
	}
	if n < 1 {
		return DefaultStaleThresholdSeconds
	}
	if n > 3600 {
		return 3600
	}
	return n
}
