// ABOUTME: Conversation and message persistence for the SQLite store
// ABOUTME: Holds the atomic agent assignment and the idempotent close transition

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateConversation opens a new chat conversation for the client.
func (s *SQLiteStore) CreateConversation(ctx context.Context, clientID int64) (int64, error) {
	query := `
		INSERT INTO conversations (client_id, is_chat, is_closed, created_at)
		VALUES (?, 1, 0, ?)
	`
	result, err := s.db.ExecContext(ctx, query, clientID, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("inserting conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading conversation id: %w", err)
	}

	s.logger.Debug("created conversation", "id", id, "client_id", clientID)
	return id, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	query := `
		SELECT id, client_id, agent_id, is_chat, is_closed, created_at
		FROM conversations
		WHERE id = ?
	`

	var conv Conversation
	var agentID sql.NullInt64
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.ClientID,
		&agentID,
		&conv.IsChat,
		&conv.IsClosed,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if agentID.Valid {
		conv.AgentID = &agentID.Int64
	}
	conv.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ConversationOwnedByClient reports whether an open conversation belongs to clientID.
func (s *SQLiteStore) ConversationOwnedByClient(ctx context.Context, id, clientID int64) (bool, error) {
	query := `
		SELECT COUNT(id) FROM conversations
		WHERE id = ? AND client_id = ? AND is_closed = 0
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, id, clientID).Scan(&n); err != nil {
		return false, fmt.Errorf("checking conversation owner: %w", err)
	}
	return n > 0, nil
}

// IsConversationClient reports whether clientID owns the conversation, closed or not.
func (s *SQLiteStore) IsConversationClient(ctx context.Context, id, clientID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(id) FROM conversations WHERE id = ? AND client_id = ?`,
		id, clientID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking conversation client: %w", err)
	}
	return n > 0, nil
}

// AssignAgentIfUnset binds agentID to an open, unassigned conversation.
// The WHERE clause is the compare-and-set: of several concurrent callers only
// the first update matches a row, every later one sees assigned == false.
func (s *SQLiteStore) AssignAgentIfUnset(ctx context.Context, conversationID, agentID int64) (int64, bool, error) {
	query := `
		UPDATE conversations
		SET agent_id = ?
		WHERE id = ? AND agent_id IS NULL AND is_closed = 0
		RETURNING client_id
	`

	var clientID int64
	err := s.db.QueryRowContext(ctx, query, agentID, conversationID).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("assigning agent: %w", err)
	}

	s.logger.Debug("assigned agent", "conversation_id", conversationID, "agent_id", agentID)
	return clientID, true, nil
}

// CloseConversation marks the conversation closed. Closing twice is not an error.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) CloseConversation(ctx context.Context, id int64) (int64, error) {
	query := `
		UPDATE conversations
		SET is_closed = 1
		WHERE id = ?
		RETURNING client_id
	`

	var clientID int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("closing conversation: %w", err)
	}

	s.logger.Debug("closed conversation", "id", id)
	return clientID, nil
}

// AppendMessage records a message and returns it with its store-assigned id.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, senderID int64, body string) (*Message, error) {
	sentAt := time.Now().UTC()
	query := `
		INSERT INTO messages (conversation_id, sender_id, message, sent_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, conversationID, senderID, body, sentAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         sentAt,
	}, nil
}

// CountMessages returns the number of messages in a conversation.
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// CountMessagesBySender returns how many messages senderID wrote in a conversation.
func (s *SQLiteStore) CountMessagesBySender(ctx context.Context, conversationID, senderID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND sender_id = ?`,
		conversationID, senderID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting sender messages: %w", err)
	}
	return n, nil
}
