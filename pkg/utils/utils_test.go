package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestEncryptRoundTrip(t *testing.T) {
	secrets := []string{"short", "exactly-sixteen!", strings.Repeat("k", 64)}
	for _, secret := range secrets {
		sealed, err := Encrypt([]byte("page-token"), []byte(secret))
		if err != nil {
			t.Fatalf("Encrypt with %d byte secret: %v", len(secret), err)
		}
		got, err := Decrypt(sealed, []byte(secret))
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != "page-token" {
			t.Errorf("Decrypt = %q, want page-token", got)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	a, _ := Encrypt([]byte("same"), []byte("secret"))
	b, _ := Encrypt([]byte("same"), []byte("secret"))
	if a == b {
		t.Error("two encryptions of the same value are identical")
	}
}

func TestDecryptRejects(t *testing.T) {
	sealed, err := Encrypt([]byte("token"), []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decrypt(sealed, []byte("other")); err == nil {
		t.Error("Decrypt with the wrong secret succeeded")
	}
	if _, err := Decrypt("not base64!", []byte("secret")); err == nil {
		t.Error("Decrypt of invalid base64 succeeded")
	}
	if _, err := Decrypt("AAAA", []byte("secret")); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("Decrypt short input = %v, want ErrCiphertextTooShort", err)
	}
	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Error("Encrypt with empty secret succeeded")
	}
}

var sessionStart = time.Date(2024, 2, 14, 14, 7, 0, 0, time.UTC)

func TestSessionRoundTrip(t *testing.T) {
	token, err := IssueSession("secret", 42, sessionStart, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseSession("secret", token, sessionStart.Add(59*time.Minute))
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if id, err := claims.ID(); err != nil || id != 42 {
		t.Errorf("ID() = %d, %v, want 42", id, err)
	}
	if claims.Issuer != SessionIssuer || claims.Subject != "42" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(sessionStart.Add(time.Hour)) {
		t.Errorf("expires at %s", claims.ExpiresAt)
	}
}

func TestParseSessionRejects(t *testing.T) {
	valid, err := IssueSession("secret", 42, sessionStart, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ParseSession("secret", valid, sessionStart.Add(2*time.Hour)); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("expired token error = %v, want ErrTokenExpired", err)
	}
	if _, err := ParseSession("other", valid, sessionStart); err == nil {
		t.Error("token signed with another secret was accepted")
	}
	if _, err := ParseSession("secret", "garbage", sessionStart); err == nil {
		t.Error("garbage token was accepted")
	}

	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(sessionStart.Add(time.Hour)),
	}).SignedString([]byte("secret"))
	if _, err := ParseSession("secret", foreign, sessionStart); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Errorf("foreign issuer error = %v, want ErrTokenInvalidIssuer", err)
	}

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     SessionIssuer,
		"user_id": "42",
	}).SignedString([]byte("secret"))
	if _, err := ParseSession("secret", noExpiry, sessionStart); err == nil {
		t.Error("token without expiry was accepted")
	}

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": SessionIssuer,
		"exp": sessionStart.Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if _, err := ParseSession("secret", noUser, sessionStart); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("missing user error = %v, want ErrInvalidSession", err)
	}

	if _, err := IssueSession("secret", 0, sessionStart, time.Hour); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("IssueSession(0) = %v, want ErrInvalidSession", err)
	}
}
