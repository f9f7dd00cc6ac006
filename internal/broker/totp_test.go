package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func genSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "acct"})
	if err != nil {
		t.Fatalf("totp.Generate: %v", err)
	}
	return key.Secret()
}

func TestGenerateTOTPProducesSixDigitCode(t *testing.T) {
	secret := genSecret(t)

	code, err := GenerateTOTP(secret)
	if err != nil {
		t.Fatalf("GenerateTOTP: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code = %q, want 6 digits", code)
	}
}

type fakeAuthenticator struct {
	failuresBeforeSuccess int
	calls                 int
}

func (f *fakeAuthenticator) Login(ctx context.Context, creds Credentials, code string) (Session, error) {
	f.calls++
	if f.calls <= f.failuresBeforeSuccess {
		return Session{}, errors.New("login rejected")
	}
	return Session{FeedToken: "feed", AuthToken: "auth"}, nil
}

func TestLoginRetriesUntilSuccess(t *testing.T) {
	auth := &fakeAuthenticator{failuresBeforeSuccess: 2}
	creds := Credentials{TOTPSecret: genSecret(t)}

	ctx := context.Background()
	sess, err := Login(ctx, auth, creds, LoginConfig{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.FeedToken != "feed" || sess.AuthToken != "auth" {
		t.Fatalf("sess = %+v, want populated tokens", sess)
	}
	if auth.calls != 3 {
		t.Fatalf("calls = %d, want 3", auth.calls)
	}
}

func TestLoginStopsOnContextCancellation(t *testing.T) {
	auth := &fakeAuthenticator{failuresBeforeSuccess: 1000}
	creds := Credentials{TOTPSecret: genSecret(t)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := Login(ctx, auth, creds, LoginConfig{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
