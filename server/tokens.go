package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	session "github.com/goliatone/go-session"
)

// ErrTokenExpired is returned when a presented token's expiry has passed.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid is returned for malformed or mis-signed tokens.
var ErrTokenInvalid = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// TokenService mints and verifies the HS256 access tokens issued at login.
// Verification happens here and only here; clients never check signatures.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	logger     session.Logger
}

// NewTokenService returns a TokenService signing with signingKey and issuing
// tokens valid for ttl.
func NewTokenService(signingKey []byte, ttl time.Duration, logger session.Logger) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		logger:     logger,
	}
}

// Generate mints a signed token for user. It returns the compact token and
// its lifetime in seconds.
func (ts *TokenService) Generate(user *User) (string, int64, error) {
	now := time.Now()
	claims := &session.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, int64(ts.ttl.Seconds()), nil
}

// Validate parses and verifies a token string, returning its claims.
func (ts *TokenService) Validate(raw string) (*session.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &session.TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	})

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message)
	}

	claims, ok := token.Claims.(*session.TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
