package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenClaims carries the claims decoded from a compact token payload. The
// decode is structural only; nothing here proves the token is genuine.
type TokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// UserID returns the subject claim.
func (c *TokenClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the absolute expiry carried by the exp claim. The second
// return is false when the claim is absent, which callers must treat as
// "cannot determine validity".
func (c *TokenClaims) Expires() (time.Time, bool) {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.RegisteredClaims.ExpiresAt.Time, true
}

// DecodeToken splits a compact three-segment token and decodes its payload
// claims without verifying the signature. Signature verification is the
// server's job; the client only needs the expiry and identity claims.
func DecodeToken(raw string) (*TokenClaims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, goerrors.New("token does not have 3 segments", ErrTokenMalformed.Category).
			WithTextCode(TextCodeTokenMalformed)
	}

	for _, part := range parts {
		if part == "" {
			return nil, goerrors.New("token has an empty segment", ErrTokenMalformed.Category).
				WithTextCode(TextCodeTokenMalformed)
		}
	}

	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(TextCodeTokenMalformed)
	}

	return claims, nil
}
