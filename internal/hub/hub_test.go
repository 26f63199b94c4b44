package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcqlab/mcq-review/internal/model"
	"github.com/mcqlab/mcq-review/internal/protocol"
)

// dialPair spins up a throwaway WebSocket endpoint and returns the two ends
// of one upgraded connection.
func dialPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-serverConns:
		t.Cleanup(func() { serverConn.Close() })
		return serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("server side of connection never arrived")
		return nil, nil
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRegisterAndUnregister(t *testing.T) {
	h := New(zerolog.Nop())
	serverConn, _ := dialPair(t)

	subscriber := h.Register(serverConn)
	assert.Equal(t, 1, h.Count())

	h.Unregister(subscriber)
	assert.Equal(t, 0, h.Count())

	// Unregistering twice is harmless.
	h.Unregister(subscriber)
	assert.Equal(t, 0, h.Count())
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := New(zerolog.Nop())

	serverA, clientA := dialPair(t)
	serverB, clientB := dialPair(t)
	h.Register(serverA)
	h.Register(serverB)

	state := model.NewAppState()
	state.Collections[0].Questions = []model.Question{{Question: "q1", Choices: []string{"a", "b", "c", "d"}}}
	h.StateChanged(state, 1717243200000)

	for _, conn := range []*websocket.Conn{clientA, clientB} {
		msg := readMessage(t, conn)
		assert.Equal(t, protocol.MessageStateUpdate, msg.Type)
		assert.EqualValues(t, 1717243200000, msg.Timestamp)
		require.Len(t, msg.State.Collections, 1)
		assert.Len(t, msg.State.Collections[0].Questions, 1)
	}
}

func TestBroadcastSkipsUnregistered(t *testing.T) {
	h := New(zerolog.Nop())

	serverA, clientA := dialPair(t)
	serverB, clientB := dialPair(t)
	subscriberA := h.Register(serverA)
	h.Register(serverB)
	h.Unregister(subscriberA)

	h.StateChanged(model.NewAppState(), 1)

	msg := readMessage(t, clientB)
	assert.Equal(t, protocol.MessageStateUpdate, msg.Type)

	clientA.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var stray protocol.ServerMessage
	assert.Error(t, clientA.ReadJSON(&stray))
}

func TestSubscriberSendDirect(t *testing.T) {
	h := New(zerolog.Nop())
	serverConn, clientConn := dialPair(t)
	subscriber := h.Register(serverConn)

	require.NoError(t, subscriber.Send(protocol.ServerMessage{
		Type:  protocol.MessageInitialState,
		State: model.NewAppState(),
	}))

	msg := readMessage(t, clientConn)
	assert.Equal(t, protocol.MessageInitialState, msg.Type)
}

func TestBroadcastToDeadConnectionDoesNotBlockOthers(t *testing.T) {
	h := New(zerolog.Nop())

	serverA, clientA := dialPair(t)
	serverB, clientB := dialPair(t)
	h.Register(serverA)
	h.Register(serverB)

	// Kill A's transport; the broadcast should still reach B.
	clientA.Close()
	serverA.Close()

	h.StateChanged(model.NewAppState(), 2)
	msg := readMessage(t, clientB)
	assert.Equal(t, protocol.MessageStateUpdate, msg.Type)
}
