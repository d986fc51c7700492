// ABOUTME: Read-side HTTP API for the chat front end
// ABOUTME: Session bootstrap, session list, history, support pool status and dev token issuance

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/session"
	"github.com/2389/support-gateway/internal/store"
)

// TokenResponse is the JSON response for GET /users/token/{id}.
type TokenResponse struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	PreferredLanguage string `json:"preferred_language"`
	IsSupport         bool   `json:"is_support"`
	Token             string `json:"token"`
}

// InitSessionResponse is the JSON response for GET /chats/init.
type InitSessionResponse struct {
	SessionID int64 `json:"sessionId"`
}

// SessionResponse is one entry of GET /chats/my. Names belong to the
// counterpart: the client for support users, the agent for clients.
type SessionResponse struct {
	ID        int64      `json:"id"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	AgentID   *int64     `json:"agent_id"`
	SenderID  *int64     `json:"sender_id"`
	SentAt    *time.Time `json:"sent_at"`
}

// ListSessionsResponse is the JSON response for GET /chats/my.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// HistoryMessage is one entry of GET /chats/history/{sessionId}.
type HistoryMessage struct {
	Session int64          `json:"session"`
	ID      int64          `json:"id"`
	Message string         `json:"message"`
	SentAt  time.Time      `json:"sent_at"`
	User    session.Sender `json:"user"`
}

// HistoryResponse is the JSON response for GET /chats/history/{sessionId}.
type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

// PoolResponse is the JSON response for GET /support/pool.
type PoolResponse struct {
	SupportConnections int `json:"support_connections"`
	Connections        int `json:"connections"`
}

// handleDevToken handles GET /users/token/{id}.
// Issues a token for any active user. Only mounted when auth.dev_tokens is set.
func (g *Gateway) handleDevToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := g.store.GetActiveUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusUnauthorized, "user not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to look up user", "user_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := g.verifier.Generate(user.ID, g.config.Auth.TokenTTL)
	if err != nil {
		g.logger.Error("failed to sign token", "user_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.logger.Info("issued dev token", "user_id", user.ID, "support", user.IsSupport)
	g.sendJSON(w, TokenResponse{
		ID:                user.ID,
		Email:             user.Email,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		PreferredLanguage: user.PreferredLanguage,
		IsSupport:         user.IsSupport,
		Token:             token,
	})
}

// handleInitSession handles GET /chats/init by opening a conversation for the caller.
func (g *Gateway) handleInitSession(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	id, err := g.coord.InitSession(r.Context(), identity)
	if err != nil {
		g.logger.Error("failed to open session", "user_id", identity.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	g.sendJSON(w, InitSessionResponse{SessionID: id})
}

// handleMySessions handles GET /chats/my.
func (g *Gateway) handleMySessions(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	sessions, err := g.store.ListSessions(r.Context(), identity.ID, identity.IsSupport)
	if err != nil {
		g.logger.Error("failed to list sessions", "user_id", identity.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	g.sendJSON(w, ListSessionsResponse{
		Sessions: lo.Map(sessions, func(s *store.SessionSummary, _ int) SessionResponse {
			return SessionResponse{
				ID:        s.ID,
				FirstName: s.FirstName,
				LastName:  s.LastName,
				AgentID:   s.AgentID,
				SenderID:  s.LastMessageSender,
				SentAt:    s.LastMessageSentAt,
			}
		}),
	})
}

// handleHistory handles GET /chats/history/{sessionId}.
// Callers that are neither support nor the conversation's client get an
// empty list, so the response does not reveal whether the session exists.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	sessionID, err := strconv.ParseInt(r.PathValue("sessionId"), 10, 64)
	if err != nil || sessionID <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if !identity.IsSupport {
		owner, err := g.store.IsConversationClient(r.Context(), sessionID, identity.ID)
		if err != nil {
			g.logger.Error("failed to check session owner", "session", sessionID, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		if !owner {
			g.sendJSON(w, HistoryResponse{Messages: []HistoryMessage{}})
			return
		}
	}

	history, err := g.store.GetHistory(r.Context(), sessionID)
	if err != nil {
		g.logger.Error("failed to load history", "session", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	g.sendJSON(w, HistoryResponse{
		Messages: lo.Map(history, func(h *store.HistoryEntry, _ int) HistoryMessage {
			return HistoryMessage{
				Session: h.ConversationID,
				ID:      h.MessageID,
				Message: h.Body,
				SentAt:  h.SentAt,
				User: session.Sender{
					ID:        h.Sender.ID,
					FirstName: h.Sender.FirstName,
					LastName:  h.Sender.LastName,
					IsSupport: h.Sender.IsSupport,
				},
			}
		}),
	})
}

// handlePool handles GET /support/pool. Support only.
func (g *Gateway) handlePool(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, PoolResponse{
		SupportConnections: g.registry.Count(session.RoomSupport),
		Connections:        g.realtime.Connections(),
	})
}

func (g *Gateway) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
