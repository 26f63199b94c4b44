package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcqlab/mcq-review/internal/hub"
	"github.com/mcqlab/mcq-review/internal/model"
	"github.com/mcqlab/mcq-review/internal/protocol"
	"github.com/mcqlab/mcq-review/internal/store"
)

func newWSTestServer(t *testing.T) (string, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.New(zerolog.Nop())
	st := store.New(h, zerolog.Nop())
	ws := NewWSHandler(st, h, zerolog.Nop(), nil)

	router := gin.New()
	router.GET("/ws", ws.Stream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", st
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamPushesInitialState(t *testing.T) {
	url, _ := newWSTestServer(t)
	conn := dialWS(t, url)

	msg := readServerMessage(t, conn)
	assert.Equal(t, protocol.MessageInitialState, msg.Type)
	require.Len(t, msg.State.Collections, 1)
	assert.Equal(t, model.DefaultCollectionName, msg.State.Collections[0].Name)
	assert.NotZero(t, msg.Timestamp)
}

func TestStreamAppliesCommandsAndBroadcasts(t *testing.T) {
	url, st := newWSTestServer(t)
	connA := dialWS(t, url)
	connB := dialWS(t, url)
	readServerMessage(t, connA)
	readServerMessage(t, connB)

	require.NoError(t, connA.WriteJSON(protocol.LockQuestion{
		Type:     protocol.TypeLockQuestion,
		Index:    0,
		ClientID: "client-a",
		Username: "alice",
	}))

	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readServerMessage(t, conn)
		assert.Equal(t, protocol.MessageStateUpdate, msg.Type)
		require.Contains(t, msg.State.Collections[0].Locks, 0)
		assert.Equal(t, "client-a", msg.State.Collections[0].Locks[0].ClientID)
	}

	lock, held := st.Snapshot().Collections[0].Locks[0]
	require.True(t, held)
	assert.Equal(t, "alice", lock.Username)
}

func TestStreamDropsMalformedWithoutReply(t *testing.T) {
	url, _ := newWSTestServer(t)
	conn := dialWS(t, url)
	readServerMessage(t, conn)

	// Garbage, then an unknown type, then a valid command. The connection must
	// survive the first two and the only reply is the valid command's broadcast.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "MERGE_STATE"}))
	require.NoError(t, conn.WriteJSON(protocol.LockQuestion{
		Type:     protocol.TypeLockQuestion,
		Index:    3,
		ClientID: "c",
		Username: "u",
	}))

	msg := readServerMessage(t, conn)
	assert.Equal(t, protocol.MessageStateUpdate, msg.Type)
	assert.Contains(t, msg.State.Collections[0].Locks, 3)
}

func TestStreamUnauthorizedEditIsSilent(t *testing.T) {
	url, st := newWSTestServer(t)
	st.AddQuestions(protocol.AddQuestions{
		Questions:       []model.Question{{Question: "q", Choices: []string{"a", "b", "c", "d"}}},
		CollectionIndex: 0,
		Filename:        "seed.txt",
		Username:        "seeder",
	})

	conn := dialWS(t, url)
	readServerMessage(t, conn)

	// Update without holding the lock: no broadcast, no error frame.
	require.NoError(t, conn.WriteJSON(protocol.UpdateQuestion{
		Type:     protocol.TypeUpdateQuestion,
		Index:    0,
		Question: model.Question{Question: "hijacked"},
		ClientID: "intruder",
		Username: "mallory",
	}))

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray protocol.ServerMessage
	assert.Error(t, conn.ReadJSON(&stray))
	assert.Equal(t, "q", st.Snapshot().Collections[0].Questions[0].Question)
}

func TestStreamAnswersRequestStateDirectly(t *testing.T) {
	url, _ := newWSTestServer(t)
	connA := dialWS(t, url)
	connB := dialWS(t, url)
	readServerMessage(t, connA)
	readServerMessage(t, connB)

	require.NoError(t, connA.WriteJSON(protocol.RequestState{
		Type:     protocol.TypeRequestState,
		ClientID: "client-a",
	}))

	msg := readServerMessage(t, connA)
	assert.Equal(t, protocol.MessageFullState, msg.Type)

	// FULL_STATE is a direct reply, not a broadcast.
	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var stray protocol.ServerMessage
	assert.Error(t, connB.ReadJSON(&stray))
}
