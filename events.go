package session

import (
	"reflect"
	"sync"
)

// EventName identifies a session lifecycle signal.
type EventName string

const (
	EventLogin         EventName = "login"
	EventLogout        EventName = "logout"
	EventRegister      EventName = "register"
	EventLoginError    EventName = "loginError"
	EventRegisterError EventName = "registerError"
	EventTokenExpired  EventName = "tokenExpired"
)

// Event is the payload delivered to subscribers. Fire and forget: events are
// not persisted and are delivered at most once per subscriber per emission.
type Event struct {
	Name    EventName
	User    *User
	Err     error
	Message string
}

// Handler receives published events.
type Handler func(Event)

// Bus is a synchronous in-process publish/subscribe channel. Handlers run on
// the publishing goroutine in registration order, and a panicking handler
// never prevents the remaining handlers from running.
type Bus struct {
	mu       sync.Mutex
	logger   Logger
	handlers map[EventName][]Handler
}

// BusOption customizes Bus construction.
type BusOption func(*Bus)

// WithBusLogger overrides the logger used for handler panics.
func WithBusLogger(logger Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus returns an empty event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger:   defLogger{},
		handlers: map[EventName][]Handler{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Subscribe registers handler for name. Duplicate registrations produce
// duplicate invocations.
func (b *Bus) Subscribe(name EventName, handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Unsubscribe removes the first registration matching handler. Unknown
// event names or handlers are a silent no-op.
func (b *Bus) Unsubscribe(name EventName, handler Handler) {
	if handler == nil {
		return
	}

	target := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()

	registered := b.handlers[name]
	for i, h := range registered {
		if reflect.ValueOf(h).Pointer() == target {
			b.handlers[name] = append(registered[:i:i], registered[i+1:]...)
			return
		}
	}
}

// Publish invokes all current subscribers for the event's name, in
// registration order, on the calling goroutine.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	registered := b.handlers[evt.Name]
	handlers := make([]Handler, len(registered))
	copy(handlers, registered)
	b.mu.Unlock()

	for _, h := range handlers {
		b.invoke(h, evt)
	}
}

func (b *Bus) invoke(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic for %q: %v", evt.Name, r)
		}
	}()
	h(evt)
}

// Reset drops all subscriptions.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[EventName][]Handler{}
}
