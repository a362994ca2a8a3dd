package token

import (
	"encoding/base64"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestValidRejectsMalformedInput(t *testing.T) {
	v := &Validator{}
	cases := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"literal undefined", "undefined"},
		{"literal null", "null"},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"bad base64 payload", "aaa.!!!.ccc"},
		{"non-json payload", "aaa." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".ccc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Valid(tc.tok) {
				t.Fatalf("expected %q to be invalid", tc.tok)
			}
		})
	}
}

func TestValidRejectsMissingOrPastExpiry(t *testing.T) {
	v := &Validator{}

	noExp := signedToken(t, jwt.RegisteredClaims{Subject: "user-1"})
	if v.Valid(noExp) {
		t.Fatalf("token without exp must be invalid")
	}

	expired := signedToken(t, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	if v.Valid(expired) {
		t.Fatalf("expired token must be invalid")
	}
}

func TestValidRejectsExpiryEqualToNow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := &Validator{Now: func() time.Time { return now }}

	atNow := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now)})
	if v.Valid(atNow) {
		t.Fatalf("exp == now must be invalid")
	}

	justAfter := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Second))})
	if !v.Valid(justAfter) {
		t.Fatalf("exp > now must be valid")
	}
}

func TestExpiresAtReturnsClaim(t *testing.T) {
	v := &Validator{}
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

	got, ok := v.ExpiresAt(tok)
	if !ok {
		t.Fatalf("expected expiry to be extracted")
	}
	if !got.Equal(exp) {
		t.Fatalf("expiry mismatch: got %v want %v", got, exp)
	}
	if !v.Valid(tok) {
		t.Fatalf("future token must be valid")
	}
}
