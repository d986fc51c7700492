// ABOUTME: Session coordinator: per-event handlers for the support chat lifecycle
// ABOUTME: Authorization failures are silent drops expressed as authorized == false

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/dedupe"
	"github.com/2389/support-gateway/internal/rooms"
	"github.com/2389/support-gateway/internal/store"
)

// Conn is a live, authenticated connection.
type Conn interface {
	rooms.Member
	Identity() *auth.Identity
}

// Coordinator runs the handlers for connection events. Handlers for one
// connection must be called sequentially; handlers for different connections
// may run concurrently.
//
// Conversation state moves open/unassigned -> open/assigned -> closed. The
// store is the source of truth for that state; the coordinator only reads it
// and issues the two transitions.
type Coordinator struct {
	store  store.ConversationStore
	rooms  *rooms.Registry
	dedupe *dedupe.Cache
	logger *slog.Logger
}

// New creates a Coordinator. dedupe may be nil to disable retry detection.
// Pass nil logger for default.
func New(s store.ConversationStore, registry *rooms.Registry, dedupe *dedupe.Cache, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:  s,
		rooms:  registry,
		dedupe: dedupe,
		logger: logger.With("component", "coordinator"),
	}
}

// InitSession opens a new conversation owned by the identity.
func (c *Coordinator) InitSession(ctx context.Context, identity *auth.Identity) (int64, error) {
	id, err := c.store.CreateConversation(ctx, identity.ID)
	if err != nil {
		return 0, fmt.Errorf("creating conversation: %w", err)
	}
	c.logger.Info("session opened", "session", id, "client_id", identity.ID)
	return id, nil
}

// Connect places a freshly authenticated connection in its personal room and,
// for support identities, in the support pool.
func (c *Coordinator) Connect(conn Conn) {
	identity := conn.Identity()
	c.rooms.Join(conn, UserRoom(identity.ID))
	if identity.IsSupport {
		c.rooms.Join(conn, RoomSupport)
	}
	c.logger.Debug("connected",
		"conn", conn.ID(),
		"user_id", identity.ID,
		"support", identity.IsSupport)
}

// Disconnect removes the connection from every room.
func (c *Coordinator) Disconnect(conn Conn) {
	c.rooms.LeaveAll(conn)
	c.logger.Debug("disconnected", "conn", conn.ID(), "user_id", conn.Identity().ID)
}

// JoinSession adds the connection to the session room if allowed. Support may
// join any session; a client only an open session it owns. Returns whether
// the connection joined.
func (c *Coordinator) JoinSession(ctx context.Context, conn Conn, session ID) bool {
	identity := conn.Identity()

	authorized, err := c.canJoin(ctx, identity, session)
	if err != nil {
		c.logger.Error("join check failed", "session", session, "user_id", identity.ID, "error", err)
		return false
	}
	if !authorized {
		c.logger.Debug("join dropped", "session", session, "user_id", identity.ID)
		return false
	}

	c.rooms.Join(conn, SessionRoom(session))
	return true
}

func (c *Coordinator) canJoin(ctx context.Context, identity *auth.Identity, session ID) (bool, error) {
	if identity.IsSupport {
		return true, nil
	}
	return c.store.ConversationOwnedByClient(ctx, int64(session), identity.ID)
}

// SendMessage persists a message and fans it out to the session room.
// Returns whether the message was stored.
//
// Preconditions, each a silent drop: the connection is in the session room;
// a client owns the open conversation. The first reply of a support identity
// attempts the assignment transition before the message is stored.
func (c *Coordinator) SendMessage(ctx context.Context, conn Conn, req SendRequest) bool {
	identity := conn.Identity()
	room := SessionRoom(req.Session)
	log := c.logger.With("session", req.Session, "user_id", identity.ID)

	if !c.rooms.Has(conn, room) {
		log.Debug("message dropped: not in session room")
		return false
	}

	if identity.IsSupport {
		if err := c.assignOnFirstReply(ctx, identity, req.Session); err != nil {
			log.Error("assignment failed", "error", err)
			return false
		}
	} else {
		authorized, err := c.store.ConversationOwnedByClient(ctx, int64(req.Session), identity.ID)
		if err != nil {
			log.Error("owner check failed", "error", err)
			return false
		}
		if !authorized {
			log.Debug("message dropped: not owner of open session")
			return false
		}
	}

	var dedupeKey string
	if req.ClientMessageID != "" && c.dedupe != nil {
		dedupeKey = dedupe.Key(identity.ID, int64(req.Session), req.ClientMessageID)
		if c.dedupe.CheckAndMark(dedupeKey) {
			log.Debug("message dropped: duplicate", "client_message_id", req.ClientMessageID)
			return false
		}
	}

	msg, err := c.store.AppendMessage(ctx, int64(req.Session), identity.ID, req.Message)
	if err != nil {
		if dedupeKey != "" {
			c.dedupe.Forget(dedupeKey)
		}
		log.Error("storing message failed", "error", err)
		return false
	}

	total, err := c.store.CountMessages(ctx, int64(req.Session))
	if err != nil {
		log.Error("counting messages failed", "error", err)
		return true
	}
	if total == 1 {
		c.rooms.Broadcast(RoomSupport, rooms.Event{Name: EventUpdate, Data: UpdatePayload{}})
	}

	c.rooms.Broadcast(room, rooms.Event{
		Name: EventSendMessage,
		Data: MessagePayload{
			Session: req.Session,
			Message: msg.Body,
			ID:      msg.ID,
			SentAt:  msg.SentAt,
			User: Sender{
				ID:        identity.ID,
				FirstName: identity.FirstName,
				LastName:  identity.LastName,
				IsSupport: identity.IsSupport,
			},
			Support: identity.IsSupport,
		},
	})

	log.Debug("message delivered", "message_id", msg.ID)
	return true
}

// assignOnFirstReply binds the agent to the conversation when this is the
// agent's first message in it. Only the caller whose conditional update wins
// notifies the client and the pool.
func (c *Coordinator) assignOnFirstReply(ctx context.Context, identity *auth.Identity, session ID) error {
	prior, err := c.store.CountMessagesBySender(ctx, int64(session), identity.ID)
	if err != nil {
		return fmt.Errorf("counting agent messages: %w", err)
	}
	if prior > 0 {
		return nil
	}

	clientID, assigned, err := c.store.AssignAgentIfUnset(ctx, int64(session), identity.ID)
	if err != nil {
		return err
	}
	if !assigned {
		return nil
	}

	c.logger.Info("session assigned", "session", session, "agent_id", identity.ID, "client_id", clientID)
	update := rooms.Event{Name: EventUpdate, Data: UpdatePayload{}}
	c.rooms.Broadcast(UserRoom(clientID), update)
	c.rooms.Broadcast(RoomSupport, update)
	return nil
}

// Terminate closes the session. Only support identities reach the close
// transition and the client notification; the session room and the support
// pool are told about the termination whoever asked.
func (c *Coordinator) Terminate(ctx context.Context, conn Conn, session ID) {
	identity := conn.Identity()
	ev := rooms.Event{Name: EventTerminate, Data: TerminatePayload{Session: session}}

	if identity.IsSupport {
		clientID, err := c.store.CloseConversation(ctx, int64(session))
		if err != nil {
			c.logger.Error("closing session failed", "session", session, "user_id", identity.ID, "error", err)
			return
		}
		c.logger.Info("session closed", "session", session, "agent_id", identity.ID)
		c.rooms.Broadcast(UserRoom(clientID), ev)
	}

	c.rooms.Broadcast(SessionRoom(session), ev)
	c.rooms.Broadcast(RoomSupport, ev)
}
