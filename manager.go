package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	defaultTokenKey      = "auth_token"
	defaultUserKey       = "auth_user"
	defaultCheckInterval = 60 * time.Second
	defaultExpiryBuffer  = 5 * time.Minute
)

// Manager owns the in-memory session and drives every transition between
// the unauthenticated and authenticated states. It mirrors the token and
// user profile into a Store, pushes the token to the request gateway, and
// publishes lifecycle events on its Bus. The mirror is never authoritative
// over the in-memory state except during Start's restoration.
type Manager struct {
	client APIClient
	store  Store
	bus    *Bus
	logger Logger
	now    func() time.Time

	tokenKey      string
	userKey       string
	checkInterval time.Duration
	buffer        time.Duration

	mu            sync.Mutex
	authenticated bool
	user          *User
	token         string
	expiry        time.Time

	monitor *monitor
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithStore sets the durable mirror. Defaults to an in-memory store.
func WithStore(store Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithBus sets a shared event bus. Defaults to a fresh Bus.
func WithBus(bus *Bus) Option {
	return func(m *Manager) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithTokenKey names the mirrored token entry.
func WithTokenKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.tokenKey = key
		}
	}
}

// WithUserKey names the mirrored user profile entry.
func WithUserKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.userKey = key
		}
	}
}

// WithCheckInterval sets the periodic freshness check cadence.
func WithCheckInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.checkInterval = interval
		}
	}
}

// WithExpiryBuffer sets the safety margin subtracted from a token's true
// expiry, so the session is never left acting on a token about to lapse
// mid-request.
func WithExpiryBuffer(buffer time.Duration) Option {
	return func(m *Manager) {
		if buffer >= 0 {
			m.buffer = buffer
		}
	}
}

// New returns a Manager in the unauthenticated state. Call Start to restore
// a persisted session and begin expiry monitoring.
func New(client APIClient, opts ...Option) *Manager {
	m := &Manager{
		client:        client,
		store:         NewMemoryStore(),
		logger:        defLogger{},
		now:           time.Now,
		tokenKey:      defaultTokenKey,
		userKey:       defaultUserKey,
		checkInterval: defaultCheckInterval,
		buffer:        defaultExpiryBuffer,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.bus == nil {
		m.bus = NewBus(WithBusLogger(m.logger))
	}

	return m
}

// Start attempts to restore a persisted session and starts the expiry
// monitor. Restoration failures are never fatal: any decode, staleness or
// storage problem clears the mirror and leaves the session unauthenticated.
func (m *Manager) Start(ctx context.Context) {
	m.restore(ctx)

	if m.monitor == nil {
		m.monitor = newMonitor(m.checkInterval, m.revalidate)
		m.monitor.start()
	}
}

// Destroy stops the expiry monitor, clears all subscriptions and resets the
// in-memory session without emitting events. The persisted mirror is left
// untouched so a later Start can restore it.
func (m *Manager) Destroy() {
	if m.monitor != nil {
		m.monitor.stop()
		m.monitor = nil
	}

	m.mu.Lock()
	m.authenticated = false
	m.user = nil
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()

	m.bus.Reset()
}

// On subscribes handler to a session lifecycle event.
func (m *Manager) On(name EventName, handler Handler) {
	m.bus.Subscribe(name, handler)
}

// Off removes the first matching subscription.
func (m *Manager) Off(name EventName, handler Handler) {
	m.bus.Unsubscribe(name, handler)
}

// Wake triggers an immediate freshness check, for host applications that
// regain the foreground after being backgrounded.
func (m *Manager) Wake() {
	if m.monitor != nil {
		m.monitor.wakeUp()
	}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}

type registerResponse struct {
	User    *User  `json:"user"`
	Message string `json:"message"`
}

// Login authenticates against the remote service. Preconditions are checked
// locally first and fail without a network call or an event. On success the
// session transitions to authenticated as one unit: token and expiry stored,
// mirror written, gateway token pushed, and only then the login event
// published, so observers always see fully updated accessors.
func (m *Manager) Login(ctx context.Context, username, password string) (*User, error) {
	payload := loginPayload{Username: username, Password: password}
	if err := payload.Validate(); err != nil {
		return nil, wrapValidation(err)
	}

	var resp loginResponse
	if err := m.client.Post(ctx, "/auth/login", payload, &resp); err != nil {
		return nil, m.failLogin(NormalizeAuthError(err))
	}

	if resp.AccessToken == "" || resp.User == nil {
		return nil, m.failLogin(ErrMalformedResponse)
	}

	claims, err := DecodeToken(resp.AccessToken)
	if err != nil {
		return nil, m.failLogin(err)
	}

	expiry, ok := claims.Expires()
	if !ok {
		// a token without exp can never be validated; refuse it
		return nil, m.failLogin(ErrTokenMalformed)
	}

	m.mu.Lock()
	m.authenticated = true
	m.user = resp.User
	m.token = resp.AccessToken
	m.expiry = expiry
	m.mu.Unlock()

	m.persist(ctx, resp.AccessToken, resp.User)
	m.client.SetAuthToken(resp.AccessToken)

	m.bus.Publish(Event{Name: EventLogin, User: resp.User})

	return resp.User, nil
}

func (m *Manager) failLogin(err error) error {
	m.bus.Publish(Event{Name: EventLoginError, Err: err, Message: err.Error()})
	return err
}

// Register creates an account. It does not transition the session:
// registration is not auto-login. Local validation failures return without a
// network call or an event.
func (m *Manager) Register(ctx context.Context, username, password, confirmPassword string) (*User, error) {
	payload := registerPayload{
		Username:        username,
		Password:        password,
		ConfirmPassword: confirmPassword,
	}
	if err := payload.Validate(); err != nil {
		return nil, wrapValidation(err)
	}

	var resp registerResponse
	if err := m.client.Post(ctx, "/auth/register", payload, &resp); err != nil {
		norm := NormalizeAuthError(err)
		m.bus.Publish(Event{Name: EventRegisterError, Err: norm, Message: norm.Message})
		return nil, norm
	}

	if resp.User == nil {
		m.bus.Publish(Event{Name: EventRegisterError, Err: ErrMalformedResponse, Message: ErrMalformedResponse.Message})
		return nil, ErrMalformedResponse
	}

	m.bus.Publish(Event{Name: EventRegister, User: resp.User})

	return resp.User, nil
}

// Logout unconditionally clears the session, the mirror and the gateway
// token, then emits logout. Local invalidation is never blocked by failing
// sub-steps; storage problems are logged and swallowed. Calling Logout on an
// unauthenticated session is safe.
func (m *Manager) Logout() {
	m.clear(context.Background())
	m.bus.Publish(Event{Name: EventLogout})
}

// IsAuthenticated forces a freshness check before answering, demoting the
// session and emitting tokenExpired when the token has gone stale. Every
// authentication check is therefore self-healing.
func (m *Manager) IsAuthenticated() bool {
	return m.revalidate(context.Background())
}

// CurrentUser returns the authenticated user, or nil after the self-healing
// freshness check fails.
func (m *Manager) CurrentUser() *User {
	if !m.IsAuthenticated() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated {
		return nil
	}
	return m.user
}

// Token returns the current bearer token, or an empty string after the
// self-healing freshness check fails.
func (m *Manager) Token() string {
	if !m.IsAuthenticated() {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated {
		return ""
	}
	return m.token
}

// revalidate is the shared idempotent freshness check. Demotion from
// authenticated to unauthenticated happens under the session lock, so racing
// checks emit exactly one tokenExpired per actual transition.
func (m *Manager) revalidate(ctx context.Context) bool {
	m.mu.Lock()

	if !m.authenticated {
		m.mu.Unlock()
		return false
	}

	if m.fresh(m.expiry) {
		m.mu.Unlock()
		return true
	}

	m.authenticated = false
	m.user = nil
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()

	m.unpersist(ctx)
	m.client.SetAuthToken("")

	m.bus.Publish(Event{Name: EventTokenExpired})

	return false
}

// fresh applies the validity rule: the boundary itself is stale.
func (m *Manager) fresh(expiry time.Time) bool {
	return m.now().Before(expiry.Add(-m.buffer))
}

func (m *Manager) restore(ctx context.Context) {
	token, err := m.store.Get(ctx, m.tokenKey)
	if err != nil {
		if !IsRecordNotFound(err) {
			m.logger.Warn("session restore read failed: %v", err)
			m.unpersist(ctx)
		}
		return
	}

	rawUser, err := m.store.Get(ctx, m.userKey)
	if err != nil {
		m.logger.Warn("session restore missing user profile: %v", err)
		m.unpersist(ctx)
		return
	}

	claims, err := DecodeToken(token)
	if err != nil {
		m.logger.Warn("session restore token decode failed: %v", err)
		m.unpersist(ctx)
		return
	}

	expiry, ok := claims.Expires()
	if !ok || !m.fresh(expiry) {
		m.logger.Info("persisted session is stale, clearing")
		m.unpersist(ctx)
		return
	}

	user := &User{}
	if err := json.Unmarshal([]byte(rawUser), user); err != nil {
		m.logger.Warn("session restore user decode failed: %v", err)
		m.unpersist(ctx)
		return
	}

	m.mu.Lock()
	m.authenticated = true
	m.user = user
	m.token = token
	m.expiry = expiry
	m.mu.Unlock()

	m.client.SetAuthToken(token)
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.authenticated = false
	m.user = nil
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()

	m.unpersist(ctx)
	m.client.SetAuthToken("")
}

// persist writes the durable mirror. The mirror is best effort: a write
// failure is logged and the in-memory session stays authoritative.
func (m *Manager) persist(ctx context.Context, token string, user *User) {
	if err := m.store.Set(ctx, m.tokenKey, token); err != nil {
		m.logger.Warn("failed to persist token: %v", err)
		return
	}

	raw, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn("failed to encode user profile: %v", err)
		return
	}

	if err := m.store.Set(ctx, m.userKey, string(raw)); err != nil {
		m.logger.Warn("failed to persist user profile: %v", err)
	}
}

func (m *Manager) unpersist(ctx context.Context) {
	if err := m.store.Delete(ctx, m.tokenKey); err != nil {
		m.logger.Warn("failed to clear persisted token: %v", err)
	}
	if err := m.store.Delete(ctx, m.userKey); err != nil {
		m.logger.Warn("failed to clear persisted user profile: %v", err)
	}
}
