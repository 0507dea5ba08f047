package service

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

func testAuthService(t *testing.T) *AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return &AuthService{
		privateKey:  key,
		publicKey:   &key.PublicKey,
		validity:    365 * 24 * time.Hour,
		sysAccount:  "ums-admin",
		sysDeviceID: "ABCDEF12-34567890ABCDEF12",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := testAuthService(t)

	signed, err := a.signToken("13800138000", "device-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	claims, err := a.parseToken(signed)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Account != "13800138000" || claims.DeviceID != "device-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenExpiryLeeway(t *testing.T) {
	a := testAuthService(t)

	// Expired half an hour ago: inside the one-hour leeway, still accepted.
	signed, err := a.signToken("13800138000", "device-1", time.Now().Add(-a.validity-30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.parseToken(signed); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}

	// Expired two hours ago: past the leeway.
	signed, err = a.signToken("13800138000", "device-1", time.Now().Add(-a.validity-2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.parseToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	a := testAuthService(t)
	other := testAuthService(t)

	signed, err := other.signToken("13800138000", "device-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.parseToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestIsSystem(t *testing.T) {
	a := testAuthService(t)
	if !a.IsSystem("ums-admin", "ABCDEF12-34567890ABCDEF12") {
		t.Fatal("system credential not recognised")
	}
	if a.IsSystem("ums-admin", "other-device") {
		t.Fatal("wrong device accepted as system")
	}
	if a.IsSystem("13800138000", "ABCDEF12-34567890ABCDEF12") {
		t.Fatal("wrong account accepted as system")
	}
}
