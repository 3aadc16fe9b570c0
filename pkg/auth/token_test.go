package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Secret: "secret",
		Issuer: "saintpaul-admin",
		TTL:    time.Hour,
	}
}

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := testSessionConfig()
	now := time.Now().UTC()
	sid := NewSessionID()

	token, err := MintSessionToken(cfg, now, sid)
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}

	claims, err := ParseSessionToken(cfg, token)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	if claims.SessionID != sid {
		t.Fatalf("expected sid %s, got %s", sid, claims.SessionID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	diff := claims.ExpiresAt.Sub(now.Add(cfg.TTL))
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("unexpected expiry %v (diff %v)", claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseSessionTokenInvalidSignature(t *testing.T) {
	cfg := testSessionConfig()
	token, err := MintSessionToken(cfg, time.Now(), "sid-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := ParseSessionToken(cfg, strings.Join(parts, ".")); err == nil {
		t.Fatal("expected tampered signature to fail")
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseSessionToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestParseSessionTokenExpired(t *testing.T) {
	cfg := testSessionConfig()
	token, err := MintSessionToken(cfg, time.Now().Add(-2*time.Hour), "sid-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseSessionToken(cfg, token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMintSessionTokenRequiresConfig(t *testing.T) {
	cases := map[string]config.SessionConfig{
		"secret": {Issuer: "i", TTL: time.Hour},
		"issuer": {Secret: "s", TTL: time.Hour},
		"ttl":    {Secret: "s", Issuer: "i"},
	}
	for name, cfg := range cases {
		if _, err := MintSessionToken(cfg, time.Now(), "sid"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := MintSessionToken(testSessionConfig(), time.Now(), "  "); err == nil {
		t.Fatal("expected empty sid to fail")
	}
}

func TestBackendTokenExpired(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	if expired, err := BackendTokenExpired(sign(now.Add(time.Hour)), now); err != nil || expired {
		t.Fatalf("fresh token: expired=%v err=%v", expired, err)
	}
	if expired, err := BackendTokenExpired(sign(now.Add(-time.Minute)), now); err != nil || !expired {
		t.Fatalf("old token: expired=%v err=%v", expired, err)
	}
	if _, err := BackendTokenExpired("opaque-token", now); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}
