// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user lookup, conversation lifecycle, atomic assignment and message ordering

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, email string, support bool) *User {
	t.Helper()

	u := &User{
		Email:     email,
		FirstName: "First " + email,
		LastName:  "Last",
		IsSupport: support,
		IsActive:  true,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	u := &User{Email: "mem@example.com", FirstName: "Mem", LastName: "Ory", IsActive: true}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetActiveUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "mem@example.com", got.Email)
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	createTestUser(t, s, "dup@example.com", false)

	err := s.CreateUser(context.Background(), &User{Email: "dup@example.com", IsActive: true})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestGetActiveUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := createTestUser(t, s, "agent@example.com", true)

	got, err := s.GetActiveUser(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.True(t, got.IsSupport)
	assert.Equal(t, "en", got.PreferredLanguage)

	t.Run("missing", func(t *testing.T) {
		_, err := s.GetActiveUser(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive", func(t *testing.T) {
		require.NoError(t, s.SetUserActive(ctx, agent.ID, false))
		_, err := s.GetActiveUser(ctx, agent.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deleted", func(t *testing.T) {
		deleted := &User{Email: "gone@example.com", IsActive: true, IsDeleted: true}
		require.NoError(t, s.CreateUser(ctx, deleted))
		_, err := s.GetActiveUser(ctx, deleted.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("soft deleted", func(t *testing.T) {
		u := createTestUser(t, s, "leaving@example.com", false)
		require.NoError(t, s.DeleteUser(ctx, u.ID))
		_, err := s.GetActiveUser(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.DeleteUser(ctx, 9999), ErrNotFound)
	})
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestUser(t, s, "client@example.com", false)
	other := createTestUser(t, s, "other@example.com", false)
	agent := createTestUser(t, s, "agent@example.com", true)

	id, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)

	conv, err := s.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, client.ID, conv.ClientID)
	assert.Nil(t, conv.AgentID)
	assert.True(t, conv.IsChat)
	assert.False(t, conv.IsClosed)

	owned, err := s.ConversationOwnedByClient(ctx, id, client.ID)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = s.ConversationOwnedByClient(ctx, id, other.ID)
	require.NoError(t, err)
	assert.False(t, owned)

	clientID, assigned, err := s.AssignAgentIfUnset(ctx, id, agent.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.Equal(t, client.ID, clientID)

	_, assigned, err = s.AssignAgentIfUnset(ctx, id, other.ID)
	require.NoError(t, err)
	assert.False(t, assigned, "second assignment must not win")

	conv, err = s.GetConversation(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, conv.AgentID)
	assert.Equal(t, agent.ID, *conv.AgentID)

	// Closing is idempotent
	for i := 0; i < 2; i++ {
		clientID, err = s.CloseConversation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, client.ID, clientID)
	}

	owned, err = s.ConversationOwnedByClient(ctx, id, client.ID)
	require.NoError(t, err)
	assert.False(t, owned, "closed conversation is no longer owned for authorization")

	isClient, err := s.IsConversationClient(ctx, id, client.ID)
	require.NoError(t, err)
	assert.True(t, isClient)
}

func TestGetConversation_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetConversation(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CloseConversation(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignAgentIfUnset_ClosedConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestUser(t, s, "client@example.com", false)
	agent := createTestUser(t, s, "agent@example.com", true)

	id, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)
	_, err = s.CloseConversation(ctx, id)
	require.NoError(t, err)

	_, assigned, err := s.AssignAgentIfUnset(ctx, id, agent.ID)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestAssignAgentIfUnset_ConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestUser(t, s, "client@example.com", false)
	id, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)

	const agents = 8
	agentIDs := make([]int64, agents)
	for i := range agentIDs {
		agentIDs[i] = createTestUser(t, s, fmt.Sprintf("agent%d@example.com", i), true).ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, agentID := range agentIDs {
		wg.Add(1)
		go func(agentID int64) {
			defer wg.Done()
			_, assigned, err := s.AssignAgentIfUnset(ctx, id, agentID)
			if !assert.NoError(t, err) {
				return
			}
			if assigned {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(agentID)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)

	conv, err := s.GetConversation(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, conv.AgentID)
	assert.Contains(t, agentIDs, *conv.AgentID)
}

func TestAppendMessage_CountsAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestUser(t, s, "client@example.com", false)
	agent := createTestUser(t, s, "agent@example.com", true)
	id, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := client.ID
			if i%2 == 0 {
				sender = agent.ID
			}
			_, err := s.AppendMessage(ctx, id, sender, fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := s.CountMessages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = s.CountMessagesBySender(ctx, id, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	history, err := s.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 10)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].MessageID, history[i-1].MessageID)
	}
	assert.NotEmpty(t, history[0].Sender.FirstName)
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	s := newTestStore(t)
	client := createTestUser(t, s, "client@example.com", false)

	_, err := s.AppendMessage(context.Background(), 404, client.ID, "hello")
	assert.Error(t, err, "foreign key must reject messages without a conversation")
}

func TestListSessions_RoleScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestUser(t, s, "client@example.com", false)
	agent1 := createTestUser(t, s, "agent1@example.com", true)
	agent2 := createTestUser(t, s, "agent2@example.com", true)

	unassigned, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)
	mine, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)
	theirs, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)
	closed, err := s.CreateConversation(ctx, client.ID)
	require.NoError(t, err)

	_, _, err = s.AssignAgentIfUnset(ctx, mine, agent1.ID)
	require.NoError(t, err)
	_, _, err = s.AssignAgentIfUnset(ctx, theirs, agent2.ID)
	require.NoError(t, err)
	_, err = s.CloseConversation(ctx, closed)
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, mine, client.ID, "hello")
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx, agent1.ID, true)
	require.NoError(t, err)
	ids := make([]int64, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []int64{unassigned, mine}, ids)

	// Support sees the client's name and the last message metadata
	require.NotNil(t, sessions[1].FirstName)
	assert.Equal(t, client.FirstName, *sessions[1].FirstName)
	require.NotNil(t, sessions[1].LastMessageSender)
	assert.Equal(t, client.ID, *sessions[1].LastMessageSender)
	assert.NotNil(t, sessions[1].LastMessageSentAt)
	assert.Nil(t, sessions[0].LastMessageSender)

	sessions, err = s.ListSessions(ctx, client.ID, false)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Nil(t, sessions[0].FirstName, "unassigned session has no agent name")
	require.NotNil(t, sessions[1].FirstName)
	assert.Equal(t, agent1.FirstName, *sessions[1].FirstName)
}
