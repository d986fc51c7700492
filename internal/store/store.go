// ABOUTME: Store interfaces and data types for support-gateway persistence
// ABOUTME: Defines User, Conversation, Message and the read-side session/history rows

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when creating a user whose email is already taken
var ErrDuplicateUser = errors.New("user already exists")

// User is a registered person: either a client or a support agent.
type User struct {
	ID                int64
	Email             string
	FirstName         string
	LastName          string
	PreferredLanguage string
	IsSupport         bool
	IsActive          bool
	IsDeleted         bool
	CreatedAt         time.Time
}

// Conversation is the durable unit of a client/support interaction.
// AgentID stays nil until the first agent reply is recorded.
type Conversation struct {
	ID        int64
	ClientID  int64
	AgentID   *int64
	IsChat    bool
	IsClosed  bool
	CreatedAt time.Time
}

// Message is a single append-only chat line. IDs are assigned by the store
// and grow monotonically.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Body           string
	SentAt         time.Time
}

// SessionSummary is one row of the "my sessions" list.
// Counterpart names are the client's for support users and the agent's for clients.
type SessionSummary struct {
	ID                int64
	FirstName         *string
	LastName          *string
	AgentID           *int64
	LastMessageSender *int64
	LastMessageSentAt *time.Time
}

// HistoryEntry is a message joined with its sender, ordered by message id.
type HistoryEntry struct {
	ConversationID int64
	MessageID      int64
	Body           string
	SentAt         time.Time
	Sender         User
}

// ConversationStore is the persistence surface the session coordinator uses.
// Every call is synchronous and may block on I/O.
type ConversationStore interface {
	CreateConversation(ctx context.Context, clientID int64) (int64, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// ConversationOwnedByClient is true only for a non-closed conversation
	// whose client matches.
	ConversationOwnedByClient(ctx context.Context, id, clientID int64) (bool, error)

	// AssignAgentIfUnset is a compare-and-set on agent_id IS NULL. Exactly one
	// concurrent caller observes assigned == true.
	AssignAgentIfUnset(ctx context.Context, conversationID, agentID int64) (clientID int64, assigned bool, err error)

	// CloseConversation is idempotent and returns the conversation's client.
	CloseConversation(ctx context.Context, id int64) (clientID int64, err error)

	AppendMessage(ctx context.Context, conversationID, senderID int64, body string) (*Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int, error)
	CountMessagesBySender(ctx context.Context, conversationID, senderID int64) (int, error)
}

// UserStore resolves and registers users.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	// GetActiveUser returns ErrNotFound for missing, inactive or deleted users.
	GetActiveUser(ctx context.Context, id int64) (*User, error)
	// DeleteUser soft-deletes a user. Returns ErrNotFound for unknown ids.
	DeleteUser(ctx context.Context, id int64) error
}

// QueryStore is the read-only surface behind the session list and history API.
type QueryStore interface {
	ListSessions(ctx context.Context, userID int64, isSupport bool) ([]*SessionSummary, error)
	IsConversationClient(ctx context.Context, id, clientID int64) (bool, error)
	GetHistory(ctx context.Context, conversationID int64) ([]*HistoryEntry, error)
}

// Store is everything the gateway needs from persistence.
type Store interface {
	ConversationStore
	UserStore
	QueryStore

	Ping(ctx context.Context) error
	Close() error
}
