// ABOUTME: Read-side queries behind the session list and history endpoints
// ABOUTME: Scoped by role: support sees unassigned and own sessions, clients see their own

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const sessionListColumns = `
	SELECT c.id, u.first_name, u.last_name, c.agent_id,
		(SELECT m.sender_id FROM messages m WHERE m.conversation_id = c.id ORDER BY m.id DESC LIMIT 1),
		(SELECT m.sent_at FROM messages m WHERE m.conversation_id = c.id ORDER BY m.id DESC LIMIT 1)
	FROM conversations c
`

// ListSessions returns open chat conversations visible to the user.
// Support users get every unassigned conversation plus the ones assigned to
// them, named after the client. Clients get their own, named after the agent.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID int64, isSupport bool) ([]*SessionSummary, error) {
	var query string
	if isSupport {
		query = sessionListColumns + `
			INNER JOIN users u ON c.client_id = u.id
			WHERE (c.agent_id = ? OR c.agent_id IS NULL) AND c.is_chat = 1 AND c.is_closed = 0
			ORDER BY c.id ASC
		`
	} else {
		query = sessionListColumns + `
			LEFT JOIN users u ON c.agent_id = u.id
			WHERE c.client_id = ? AND c.is_chat = 1 AND c.is_closed = 0
			ORDER BY c.id ASC
		`
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*SessionSummary
	for rows.Next() {
		var (
			summary    SessionSummary
			firstName  sql.NullString
			lastName   sql.NullString
			agentID    sql.NullInt64
			lastSender sql.NullInt64
			lastSentAt sql.NullString
		)
		if err := rows.Scan(&summary.ID, &firstName, &lastName, &agentID, &lastSender, &lastSentAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		if firstName.Valid {
			summary.FirstName = &firstName.String
		}
		if lastName.Valid {
			summary.LastName = &lastName.String
		}
		if agentID.Valid {
			summary.AgentID = &agentID.Int64
		}
		if lastSender.Valid {
			summary.LastMessageSender = &lastSender.Int64
		}
		if lastSentAt.Valid {
			t, err := parseTime(lastSentAt.String)
			if err != nil {
				return nil, err
			}
			summary.LastMessageSentAt = &t
		}
		sessions = append(sessions, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetHistory returns every message of a conversation in store-sequence order.
func (s *SQLiteStore) GetHistory(ctx context.Context, conversationID int64) ([]*HistoryEntry, error) {
	query := `
		SELECT m.conversation_id, m.id, m.message, m.sent_at,
			u.id, u.first_name, u.last_name, u.is_support
		FROM messages m
		INNER JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = ?
		ORDER BY m.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var history []*HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var sentAt string
		if err := rows.Scan(
			&entry.ConversationID,
			&entry.MessageID,
			&entry.Body,
			&sentAt,
			&entry.Sender.ID,
			&entry.Sender.FirstName,
			&entry.Sender.LastName,
			&entry.Sender.IsSupport,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		entry.SentAt, err = parseTime(sentAt)
		if err != nil {
			return nil, err
		}
		history = append(history, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	return history, nil
}
