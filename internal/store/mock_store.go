// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject store failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
// Set Err* fields to make the matching calls fail.
type MockStore struct {
	mu            sync.RWMutex
	users         map[int64]*User
	conversations map[int64]*Conversation
	messages      []*Message
	nextUserID    int64
	nextConvID    int64
	nextMessageID int64

	ErrAppend error
	ErrAssign error
	ErrClose  error
	ErrCount  error
	ErrOwner  error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[int64]*User),
		conversations: make(map[int64]*Conversation),
	}
}

// CreateUser stores a copy of the user and assigns its ID.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicateUser
		}
	}

	m.nextUserID++
	user.ID = m.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u := *user
	m.users[u.ID] = &u
	return nil
}

// GetActiveUser returns an active, non-deleted user.
func (m *MockStore) GetActiveUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok || !u.IsActive || u.IsDeleted {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// DeleteUser flags a user as deleted.
func (m *MockStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsDeleted = true
	return nil
}

// CreateConversation opens a chat conversation for the client.
func (m *MockStore) CreateConversation(ctx context.Context, clientID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextConvID++
	m.conversations[m.nextConvID] = &Conversation{
		ID:        m.nextConvID,
		ClientID:  clientID,
		IsChat:    true,
		CreatedAt: time.Now().UTC(),
	}
	return m.nextConvID, nil
}

// GetConversation retrieves a copy of a conversation.
func (m *MockStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	if c.AgentID != nil {
		agentID := *c.AgentID
		cp.AgentID = &agentID
	}
	return &cp, nil
}

// ConversationOwnedByClient reports whether an open conversation belongs to clientID.
func (m *MockStore) ConversationOwnedByClient(ctx context.Context, id, clientID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ErrOwner != nil {
		return false, m.ErrOwner
	}
	c, ok := m.conversations[id]
	return ok && c.ClientID == clientID && !c.IsClosed, nil
}

// IsConversationClient reports ownership regardless of the closed flag.
func (m *MockStore) IsConversationClient(ctx context.Context, id, clientID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	return ok && c.ClientID == clientID, nil
}

// AssignAgentIfUnset sets the agent under the store lock, so only one caller wins.
func (m *MockStore) AssignAgentIfUnset(ctx context.Context, conversationID, agentID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrAssign != nil {
		return 0, false, m.ErrAssign
	}
	c, ok := m.conversations[conversationID]
	if !ok || c.AgentID != nil || c.IsClosed {
		return 0, false, nil
	}
	c.AgentID = &agentID
	return c.ClientID, true, nil
}

// CloseConversation marks a conversation closed.
func (m *MockStore) CloseConversation(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrClose != nil {
		return 0, m.ErrClose
	}
	c, ok := m.conversations[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.IsClosed = true
	return c.ClientID, nil
}

// AppendMessage records a message with the next sequence id.
func (m *MockStore) AppendMessage(ctx context.Context, conversationID, senderID int64, body string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ErrAppend != nil {
		return nil, m.ErrAppend
	}
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}

	m.nextMessageID++
	msg := &Message{
		ID:             m.nextMessageID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         time.Now().UTC(),
	}
	m.messages = append(m.messages, msg)
	cp := *msg
	return &cp, nil
}

// CountMessages counts messages in a conversation.
func (m *MockStore) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	return m.count(conversationID, func(*Message) bool { return true })
}

// CountMessagesBySender counts a sender's messages in a conversation.
func (m *MockStore) CountMessagesBySender(ctx context.Context, conversationID, senderID int64) (int, error) {
	return m.count(conversationID, func(msg *Message) bool { return msg.SenderID == senderID })
}

func (m *MockStore) count(conversationID int64, match func(*Message) bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ErrCount != nil {
		return 0, m.ErrCount
	}
	n := 0
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && match(msg) {
			n++
		}
	}
	return n, nil
}

// ListSessions mirrors the SQLite role scoping.
func (m *MockStore) ListSessions(ctx context.Context, userID int64, isSupport bool) ([]*SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*SessionSummary
	for _, c := range m.conversations {
		if !c.IsChat || c.IsClosed {
			continue
		}
		var counterpart *User
		if isSupport {
			if c.AgentID != nil && *c.AgentID != userID {
				continue
			}
			counterpart = m.users[c.ClientID]
		} else {
			if c.ClientID != userID {
				continue
			}
			if c.AgentID != nil {
				counterpart = m.users[*c.AgentID]
			}
		}

		summary := &SessionSummary{ID: c.ID, AgentID: c.AgentID}
		if counterpart != nil {
			summary.FirstName = &counterpart.FirstName
			summary.LastName = &counterpart.LastName
		}
		for _, msg := range m.messages {
			if msg.ConversationID == c.ID {
				sender, sentAt := msg.SenderID, msg.SentAt
				summary.LastMessageSender = &sender
				summary.LastMessageSentAt = &sentAt
			}
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetHistory returns a conversation's messages in id order.
func (m *MockStore) GetHistory(ctx context.Context, conversationID int64) ([]*HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*HistoryEntry
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		entry := &HistoryEntry{
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			Body:           msg.Body,
			SentAt:         msg.SentAt,
		}
		if u, ok := m.users[msg.SenderID]; ok {
			entry.Sender = *u
		}
		out = append(out, entry)
	}
	return out, nil
}

// Messages returns a snapshot of every stored message.
func (m *MockStore) Messages() []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var _ Store = (*MockStore)(nil)
var _ Store = (*SQLiteStore)(nil)
