package session_test

import (
	"testing"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
)

func TestBusPublishOrder(t *testing.T) {
	bus := session.NewBus()

	order := []string{}
	bus.Subscribe(session.EventLogin, func(session.Event) {
		order = append(order, "first")
	})
	bus.Subscribe(session.EventLogin, func(session.Event) {
		order = append(order, "second")
	})

	bus.Publish(session.Event{Name: session.EventLogin})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBusDuplicateRegistrations(t *testing.T) {
	bus := session.NewBus()

	count := 0
	handler := func(session.Event) { count++ }

	bus.Subscribe(session.EventLogout, handler)
	bus.Subscribe(session.EventLogout, handler)

	bus.Publish(session.Event{Name: session.EventLogout})
	assert.Equal(t, 2, count, "duplicate registrations produce duplicate invocations")

	bus.Unsubscribe(session.EventLogout, handler)
	count = 0
	bus.Publish(session.Event{Name: session.EventLogout})
	assert.Equal(t, 1, count, "unsubscribe removes the first matching registration only")
}

func TestBusUnsubscribeUnknown(t *testing.T) {
	bus := session.NewBus()

	assert.NotPanics(t, func() {
		bus.Unsubscribe(session.EventLogin, func(session.Event) {})
		bus.Unsubscribe("unknown", nil)
	})
}

func TestBusHandlerPanicIsolation(t *testing.T) {
	bus := session.NewBus()

	reached := false
	bus.Subscribe(session.EventTokenExpired, func(session.Event) {
		panic("handler exploded")
	})
	bus.Subscribe(session.EventTokenExpired, func(session.Event) {
		reached = true
	})

	assert.NotPanics(t, func() {
		bus.Publish(session.Event{Name: session.EventTokenExpired})
	})
	assert.True(t, reached, "a panicking handler must not stop the rest")
}

func TestBusReset(t *testing.T) {
	bus := session.NewBus()

	count := 0
	bus.Subscribe(session.EventLogin, func(session.Event) { count++ })

	bus.Reset()
	bus.Publish(session.Event{Name: session.EventLogin})

	assert.Zero(t, count)
}
