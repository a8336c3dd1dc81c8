package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAPIClient records outbound calls and plays back canned responses.
type stubAPIClient struct {
	mu      sync.Mutex
	calls   []string
	token   string
	respond func(path string, body, out any) error
}

func (s *stubAPIClient) Post(_ context.Context, path string, body, out any) error {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	s.mu.Unlock()

	if s.respond == nil {
		return nil
	}
	return s.respond(path, body, out)
}

func (s *stubAPIClient) SetAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *stubAPIClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubAPIClient) authToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// fakeClock is a mutable clock for driving the freshness rule.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func respondJSON(out, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func loginStub(t *testing.T, token string, user *session.User) *stubAPIClient {
	t.Helper()

	return &stubAPIClient{
		respond: func(path string, _, out any) error {
			switch path {
			case "/auth/login":
				return respondJSON(out, map[string]any{
					"access_token": token,
					"token_type":   "Bearer",
					"expires_in":   3600,
					"user":         user,
				})
			case "/auth/register":
				return respondJSON(out, map[string]any{
					"user":    user,
					"message": "User registered successfully",
				})
			}
			return nil
		},
	}
}

func countEvents(m *session.Manager, name session.EventName, counter *int) {
	m.On(name, func(session.Event) { *counter++ })
}

func TestLoginValidationFailsLocally(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "short username", username: "ab", password: "password123"},
		{name: "empty username", username: "", password: "password123"},
		{name: "short password", username: "alice123", password: "short"},
		{name: "empty password", username: "alice123", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAPIClient{}
			manager := session.New(stub)

			loginErrors := 0
			countEvents(manager, session.EventLoginError, &loginErrors)

			user, err := manager.Login(context.Background(), tt.username, tt.password)

			assert.Nil(t, user)
			require.Error(t, err)
			assert.True(t, session.IsValidationError(err))
			assert.Zero(t, stub.callCount(), "validation failures never reach the network")
			assert.Zero(t, loginErrors, "validation failures do not publish events")
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	clock := newFakeClock()
	user := &session.User{ID: "u1", Username: "alice123"}
	token := mintToken(t, jwt.MapClaims{
		"sub":      "u1",
		"username": "alice123",
		"exp":      clock.Now().Add(time.Hour).Unix(),
	})

	stub := loginStub(t, token, user)
	store := session.NewMemoryStore()
	manager := session.New(stub,
		session.WithStore(store),
		session.WithClock(clock.Now),
	)

	logins := 0
	countEvents(manager, session.EventLogin, &logins)

	got, err := manager.Login(context.Background(), "alice123", "password123")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, manager.IsAuthenticated())
	assert.Equal(t, "alice123", manager.CurrentUser().Username)
	assert.Equal(t, token, manager.Token())
	assert.Equal(t, token, stub.authToken(), "token propagated to the gateway")
	assert.Equal(t, 1, logins, "login event fired exactly once")

	persisted, err := store.Get(context.Background(), "auth_token")
	require.NoError(t, err)
	assert.Equal(t, token, persisted)
}

func TestLoginEventSeesUpdatedAccessors(t *testing.T) {
	clock := newFakeClock()
	user := &session.User{ID: "u1", Username: "alice123"}
	token := mintToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": clock.Now().Add(time.Hour).Unix(),
	})

	manager := session.New(loginStub(t, token, user), session.WithClock(clock.Now))

	var observed *session.User
	manager.On(session.EventLogin, func(session.Event) {
		observed = manager.CurrentUser()
	})

	_, err := manager.Login(context.Background(), "alice123", "password123")
	require.NoError(t, err)

	require.NotNil(t, observed, "observer must see a fully updated session")
	assert.Equal(t, "alice123", observed.Username)
}

func TestLoginRejectedByServer(t *testing.T) {
	stub := &stubAPIClient{
		respond: func(path string, _, _ any) error {
			return loginRejection()
		},
	}
	manager := session.New(stub)

	loginErrors := 0
	countEvents(manager, session.EventLoginError, &loginErrors)

	user, err := manager.Login(context.Background(), "alice123", "password123")

	assert.Nil(t, user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid username or password")
	assert.Equal(t, 1, loginErrors)
	assert.False(t, manager.IsAuthenticated(), "failed login leaves the session unchanged")
}

func TestExpiryDemotesSession(t *testing.T) {
	clock := newFakeClock()
	exp := clock.Now().Add(time.Hour)
	user := &session.User{ID: "u1", Username: "alice123"}
	token := mintToken(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})

	store := session.NewMemoryStore()
	manager := session.New(loginStub(t, token, user),
		session.WithStore(store),
		session.WithClock(clock.Now),
	)

	expirations := 0
	countEvents(manager, session.EventTokenExpired, &expirations)

	_, err := manager.Login(context.Background(), "alice123", "password123")
	require.NoError(t, err)
	require.True(t, manager.IsAuthenticated())

	// inside the 5 minute buffer: 200s before true expiry
	clock.Set(exp.Add(-200 * time.Second))

	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.CurrentUser())
	assert.Empty(t, manager.Token())
	assert.Equal(t, 1, expirations, "exactly one tokenExpired per transition")

	_, err = store.Get(context.Background(), "auth_token")
	assert.True(t, session.IsRecordNotFound(err), "persisted record cleared on expiry")

	// checks against an already unauthenticated session are no-ops
	assert.False(t, manager.IsAuthenticated())
	assert.Equal(t, 1, expirations)
}

func TestExpiryBoundaryIsStale(t *testing.T) {
	clock := newFakeClock()
	user := &session.User{ID: "u1", Username: "alice123"}
	// exp lands exactly on the buffer boundary
	token := mintToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": clock.Now().Add(5 * time.Minute).Unix(),
	})

	manager := session.New(loginStub(t, token, user), session.WithClock(clock.Now))

	_, err := manager.Login(context.Background(), "alice123", "password123")
	require.NoError(t, err)

	assert.False(t, manager.IsAuthenticated(), "the boundary itself is treated as expired")
}

func TestRestoreFromPersistedRecord(t *testing.T) {
	clock := newFakeClock()
	token := mintToken(t, jwt.MapClaims{
		"sub":      "u1",
		"username": "alice123",
		"exp":      clock.Now().Add(time.Hour).Unix(),
	})

	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "auth_token", token))
	require.NoError(t, store.Set(ctx, "auth_user", `{"id":"u1","username":"alice123"}`))

	stub := &stubAPIClient{}
	manager := session.New(stub,
		session.WithStore(store),
		session.WithClock(clock.Now),
	)
	manager.Start(ctx)
	defer manager.Destroy()

	assert.True(t, manager.IsAuthenticated())
	assert.Equal(t, "alice123", manager.CurrentUser().Username)
	assert.Equal(t, token, stub.authToken())
	assert.Zero(t, stub.callCount(), "restoration is purely local")
}

func TestRestoreExpiredRecordStaysUnauthenticated(t *testing.T) {
	clock := newFakeClock()
	token := mintToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": clock.Now().Add(-time.Hour).Unix(),
	})

	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "auth_token", token))
	require.NoError(t, store.Set(ctx, "auth_user", `{"id":"u1","username":"alice123"}`))

	manager := session.New(&stubAPIClient{},
		session.WithStore(store),
		session.WithClock(clock.Now),
	)

	expirations := 0
	countEvents(manager, session.EventTokenExpired, &expirations)

	manager.Start(ctx)
	defer manager.Destroy()

	assert.False(t, manager.IsAuthenticated())
	assert.Zero(t, expirations, "never authenticated this run, so no expiry event")

	_, err := store.Get(ctx, "auth_token")
	assert.True(t, session.IsRecordNotFound(err), "stale record cleared at startup")
}

func TestRestoreMalformedTokenClearsRecord(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "auth_token", "not-a-token"))
	require.NoError(t, store.Set(ctx, "auth_user", `{"id":"u1"}`))

	manager := session.New(&stubAPIClient{}, session.WithStore(store))
	manager.Start(ctx)
	defer manager.Destroy()

	assert.False(t, manager.IsAuthenticated())

	_, err := store.Get(ctx, "auth_token")
	assert.True(t, session.IsRecordNotFound(err))
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		confirm  string
	}{
		{name: "mismatched confirmation", username: "alice123", password: "password123", confirm: "password124"},
		{name: "short username", username: "ab", password: "password123", confirm: "password123"},
		{name: "short password", username: "alice123", password: "short", confirm: "short"},
		{name: "invalid username characters", username: "alice 123", password: "password123", confirm: "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAPIClient{}
			manager := session.New(stub)

			registerErrors := 0
			countEvents(manager, session.EventRegisterError, &registerErrors)

			user, err := manager.Register(context.Background(), tt.username, tt.password, tt.confirm)

			assert.Nil(t, user)
			require.Error(t, err)
			assert.True(t, session.IsValidationError(err))
			assert.Zero(t, stub.callCount())
			assert.Zero(t, registerErrors, "local validation short-circuits before events")
		})
	}
}

func TestRegisterDoesNotAuthenticate(t *testing.T) {
	user := &session.User{ID: "u1", Username: "alice123"}
	token := mintToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	manager := session.New(loginStub(t, token, user))

	registrations := 0
	countEvents(manager, session.EventRegister, &registrations)

	created, err := manager.Register(context.Background(), "alice123", "password123", "password123")
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, 1, registrations)
	assert.False(t, manager.IsAuthenticated(), "registration is not auto-login")
}

func TestLogoutIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	user := &session.User{ID: "u1", Username: "alice123"}
	token := mintToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": clock.Now().Add(time.Hour).Unix(),
	})

	store := session.NewMemoryStore()
	stub := loginStub(t, token, user)
	manager := session.New(stub,
		session.WithStore(store),
		session.WithClock(clock.Now),
	)

	logouts := 0
	countEvents(manager, session.EventLogout, &logouts)

	_, err := manager.Login(context.Background(), "alice123", "password123")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		manager.Logout()
		manager.Logout()
	})

	assert.Equal(t, 2, logouts)
	assert.Nil(t, manager.CurrentUser())
	assert.Empty(t, manager.Token())
	assert.Empty(t, stub.authToken(), "gateway token cleared")

	_, err = store.Get(context.Background(), "auth_token")
	assert.True(t, session.IsRecordNotFound(err))
	_, err = store.Get(context.Background(), "auth_user")
	assert.True(t, session.IsRecordNotFound(err))
}

func TestCustomStoreKeys(t *testing.T) {
	clock := newFakeClock()
	user := &session.User{ID: "u1", Username: "alice123"}
	token := mintToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": clock.Now().Add(time.Hour).Unix(),
	})

	store := session.NewMemoryStore()
	manager := session.New(loginStub(t, token, user),
		session.WithStore(store),
		session.WithClock(clock.Now),
		session.WithTokenKey("app.token"),
		session.WithUserKey("app.user"),
	)

	_, err := manager.Login(context.Background(), "alice123", "password123")
	require.NoError(t, err)

	persisted, err := store.Get(context.Background(), "app.token")
	require.NoError(t, err)
	assert.Equal(t, token, persisted)
}

// loginRejection simulates the gateway error for a 401 response.
func loginRejection() error {
	return goerrors.New("Invalid credentials", goerrors.CategoryAuth).
		WithTextCode(session.TextCodeAuthRejected).
		WithMetadata(map[string]any{"status": 401})
}
