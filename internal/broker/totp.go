// Package broker is the thin, swappable session-bootstrap collaborator
// retail broker APIs (Angel One, Zerodha, and similar) require before a
// market-data stream can authenticate: a TOTP code generated from a
// shared secret, handed to a broker-specific login call. Per spec.md's
// "broker SDK adapters are out of scope", this package stops at the
// interface boundary — it generates the code and defines the shape of
// a login round-trip, but never calls a real broker endpoint. Grounded
// on the teacher's cmd/mdengine pre-market login loop (TOTP generation,
// exponential login-retry backoff), generalized from its Angel
// One-specific smartconnect.GenerateSession call to a feed-agnostic
// Authenticator interface.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp/totp"
)

// Session holds the tokens a successful broker login returns: a feed
// token for the market-data stream and an auth token for order/account
// REST calls. Both are opaque to this package.
type Session struct {
	FeedToken string
	AuthToken string
}

// Credentials bundles what a broker login needs, mirroring the
// teacher's config.Config broker fields.
type Credentials struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
}

// Authenticator performs the broker-specific half of a login: exchanging
// a generated TOTP code plus credentials for a Session. Concrete broker
// SDKs are out of scope here — callers supply their own implementation.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials, totpCode string) (Session, error)
}

// GenerateTOTP produces the current TOTP code for secret, the same call
// the teacher's mdengine makes immediately before every login attempt.
func GenerateTOTP(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", fmt.Errorf("broker: generate totp: %w", err)
	}
	return code, nil
}

// LoginConfig controls the retry backoff around a login attempt,
// matching the teacher's 30s->60s->120s->240s->300s doubling-capped-at-5m
// ladder.
type LoginConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *LoginConfig) defaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
}

// Login generates a fresh TOTP code and exchanges it for a Session via
// auth, retrying with doubling backoff (capped at cfg.MaxBackoff) on
// either TOTP generation or login failure, until ctx is cancelled.
func Login(ctx context.Context, auth Authenticator, creds Credentials, cfg LoginConfig) (Session, error) {
	cfg.defaults()
	backoff := cfg.InitialBackoff

	for {
		code, err := GenerateTOTP(creds.TOTPSecret)
		if err == nil {
			sess, loginErr := auth.Login(ctx, creds, code)
			if loginErr == nil {
				return sess, nil
			}
			err = loginErr
		}
		slog.Warn("broker login failed, retrying", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return Session{}, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}
