package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	return signed
}

func TestDecodeToken(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)

	raw := mintToken(t, jwt.MapClaims{
		"sub":      "u1",
		"username": "alice123",
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	})

	claims, err := session.DecodeToken(raw)
	require.NoError(t, err)

	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "alice123", claims.Username)

	expiry, ok := claims.Expires()
	require.True(t, ok)
	assert.WithinDuration(t, exp, expiry, time.Second)
}

func TestDecodeTokenMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty string", token: ""},
		{name: "two segments", token: "aaaa.bbbb"},
		{name: "four segments", token: "aa.bb.cc.dd"},
		{name: "empty payload segment", token: "aaaa..cccc"},
		{name: "empty signature segment", token: "aaaa.bbbb."},
		{name: "payload is not base64", token: "aaaa.\x00\x01\x02.cccc"},
		{name: "payload is not an object", token: "aaaa.bm90LWpzb24.cccc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := session.DecodeToken(tt.token)
			assert.Nil(t, claims)
			assert.Error(t, err)
		})
	}
}

func TestDecodeTokenWithoutExpiry(t *testing.T) {
	raw := mintToken(t, jwt.MapClaims{
		"sub":      "u1",
		"username": "alice123",
	})

	claims, err := session.DecodeToken(raw)
	require.NoError(t, err)

	_, ok := claims.Expires()
	assert.False(t, ok, "missing exp must report no expiry")
}
