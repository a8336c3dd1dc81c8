package session

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// User is the profile returned by the authentication service. It is opaque
// beyond identifier and username.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// APIClient is the outbound surface the Manager needs from the request
// gateway. *Client satisfies it.
type APIClient interface {
	Post(ctx context.Context, path string, body, out any) error
	SetAuthToken(token string)
}

// Store is durable key-value persistence for the session mirror. A missing
// key reports ErrRecordNotFound.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
