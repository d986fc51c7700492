// ABOUTME: Wire event names, room naming and payload types for the chat channel
// ABOUTME: Shared by the coordinator and the WebSocket transport

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RoomSupport is the pool room every connected support identity joins.
const RoomSupport = "support"

// Client to server events.
const (
	EventJoinSession       = "client:join_session"
	EventClientSendMessage = "client:send_message"
	EventClientTerminate   = "client:terminate"
)

// Server to client events.
const (
	EventSendMessage = "server:send_message"
	EventTerminate   = "server:terminate"
	EventUpdate      = "server:update"
	EventError       = "server:error"
)

// UserRoom names the personal room shared by every connection of a user.
func UserRoom(userID int64) string {
	return "user_" + strconv.FormatInt(userID, 10)
}

// SessionRoom names the room of a conversation.
func SessionRoom(id ID) string {
	return strconv.FormatInt(int64(id), 10)
}

// ID is a conversation id as it appears on the wire. Clients may send it as
// a JSON number or as a decimal string.
type ID int64

// UnmarshalJSON accepts 42 and "42". null leaves the id unchanged.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", b)
	}
	*id = ID(n)
	return nil
}

// JoinRequest is the data of client:join_session.
type JoinRequest struct {
	Session ID `json:"session" validate:"required,gt=0"`
}

// SendRequest is the data of client:send_message. ClientMessageID is an
// optional client-chosen id used to drop retries.
type SendRequest struct {
	Session         ID     `json:"session" validate:"required,gt=0"`
	Message         string `json:"message" validate:"required"`
	ClientMessageID string `json:"client_message_id,omitempty" validate:"omitempty,max=128"`
}

// TerminateRequest is the data of client:terminate.
type TerminateRequest struct {
	Session ID `json:"session" validate:"required,gt=0"`
}

// Sender describes the author of a delivered message.
type Sender struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsSupport bool   `json:"is_support"`
}

// MessagePayload is the data of server:send_message.
type MessagePayload struct {
	Session ID        `json:"session"`
	Message string    `json:"message"`
	ID      int64     `json:"id"`
	SentAt  time.Time `json:"sent_at"`
	User    Sender    `json:"user"`
	Support bool      `json:"support"`
}

// TerminatePayload is the data of server:terminate.
type TerminatePayload struct {
	Session ID `json:"session"`
}

// UpdatePayload is the empty data of server:update.
type UpdatePayload struct{}

// ErrorPayload is the data of server:error. It is only sent for frames the
// server could not parse, never for authorization outcomes.
type ErrorPayload struct {
	Message string `json:"message"`
}
