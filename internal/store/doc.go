// Package store provides persistent storage for the support gateway using SQLite.
//
// # Architecture
//
// The package is interface driven. Callers depend on the narrowest surface
// they need:
//
//   - ConversationStore: conversation lifecycle and message appends, used by
//     the session coordinator
//   - UserStore: registration and active-user lookup, used by identity resolution
//   - QueryStore: read-only session list and history, used by the REST API
//
// Store composes all three plus Ping and Close. SQLiteStore implements Store
// and MockStore provides an in-memory version for tests.
//
// # Data Model
//
//   - User: a client or a support agent, soft-deletable and deactivatable
//   - Conversation: a chat session owned by one client, assigned to at most
//     one agent, closed at most once
//   - Message: an append-only line with a monotonically increasing id
//
// # Concurrency
//
// Agent assignment is a single conditional UPDATE, so concurrent replies from
// several agents produce exactly one winner. Closing is idempotent. Message
// ids come from the INTEGER PRIMARY KEY, giving a total order per conversation.
//
// # Database Configuration
//
// SQLite is opened with foreign keys enabled and a busy timeout so concurrent
// writers wait instead of failing. File databases use WAL mode. The ":memory:"
// path is limited to a single connection so every query sees the same database.
package store
