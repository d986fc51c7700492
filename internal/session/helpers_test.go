// ABOUTME: Test helpers for the session coordinator
// ABOUTME: Provides an in-memory connection and store setup shared by the tests

package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/dedupe"
	"github.com/2389/support-gateway/internal/rooms"
	"github.com/2389/support-gateway/internal/store"
)

var connSeq atomic.Int64

// testConn is a Conn that buffers delivered events.
type testConn struct {
	id       string
	identity *auth.Identity
	events   chan rooms.Event
}

func newTestConn(identity *auth.Identity) *testConn {
	return &testConn{
		id:       fmt.Sprintf("conn-%d", connSeq.Add(1)),
		identity: identity,
		events:   make(chan rooms.Event, 128),
	}
}

func (c *testConn) ID() string               { return c.id }
func (c *testConn) Identity() *auth.Identity { return c.identity }

func (c *testConn) Deliver(ev rooms.Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// drain returns every buffered event.
func (c *testConn) drain() []rooms.Event {
	var out []rooms.Event
	for {
		select {
		case ev := <-c.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countEvents(events []rooms.Event, name string) int {
	n := 0
	for _, ev := range events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func messagesOf(events []rooms.Event) []MessagePayload {
	var out []MessagePayload
	for _, ev := range events {
		if p, ok := ev.Data.(MessagePayload); ok {
			out = append(out, p)
		}
	}
	return out
}

// harness wires a coordinator to a store and a fresh registry.
type harness struct {
	coord    *Coordinator
	registry *rooms.Registry
	store    store.Store
}

func newHarness(t *testing.T, s store.Store) *harness {
	t.Helper()

	cache := dedupe.New(time.Minute, 1000)
	t.Cleanup(cache.Close)

	registry := rooms.NewRegistry(nil)
	return &harness{
		coord:    New(s, registry, cache, nil),
		registry: registry,
		store:    s,
	}
}

func newSQLiteHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return newHarness(t, s)
}

// addUser registers a user and returns its identity.
func (h *harness) addUser(t *testing.T, name string, support bool) *auth.Identity {
	t.Helper()

	u := &store.User{
		Email:     name + "@example.com",
		FirstName: name,
		LastName:  "Test",
		IsSupport: support,
		IsActive:  true,
	}
	require.NoError(t, h.store.CreateUser(context.Background(), u))
	return auth.IdentityFromUser(u)
}

// connect opens a connection for the identity and runs the connect handler.
func (h *harness) connect(identity *auth.Identity) *testConn {
	conn := newTestConn(identity)
	h.coord.Connect(conn)
	return conn
}

func (h *harness) send(conn *testConn, session int64, body string) bool {
	return h.coord.SendMessage(context.Background(), conn, SendRequest{Session: ID(session), Message: body})
}

func updateEvent() rooms.Event {
	return rooms.Event{Name: EventUpdate, Data: UpdatePayload{}}
}
