package token

import (
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// Validator answers whether a token is worth sending to the backend.
// It inspects the exp claim without verifying the signature, so this is
// a local freshness hint only, not a security boundary: the backend
// independently re-validates every authorized call.
type Validator struct {
	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Valid reports whether tok is structurally well-formed and not yet
// expired. It fails closed: any decode failure degrades to false.
func (v *Validator) Valid(tok string) bool {
	exp, ok := v.ExpiresAt(tok)
	if !ok {
		return false
	}
	return exp.After(v.clock())
}

// ExpiresAt extracts the exp claim without verifying the signature.
// Returns false for anything that does not decode to a claim set with
// an expiry, including the literal "undefined"/"null" strings a broken
// persistence layer may have stored.
func (v *Validator) ExpiresAt(tok string) (time.Time, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" || tok == "undefined" || tok == "null" {
		return time.Time{}, false
	}
	if strings.Count(tok, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (v *Validator) clock() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
