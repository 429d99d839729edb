package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/events/journal"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func recv(t *testing.T, conn *Connection) StreamMessage {
	t.Helper()
	select {
	case data := <-conn.SendChannel:
		var msg StreamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return StreamMessage{}
	}
}

func TestBroadcastReachesSubscribedStreams(t *testing.T) {
	hub := NewHub()
	userConn := NewConnection("c1", 16)
	boomConn := NewConnection("c2", 16)
	hub.AddConnection(userConn)
	hub.AddConnection(boomConn)
	hub.Subscribe(userConn, UserStream(1))
	hub.Subscribe(boomConn, BoomStream(7))

	b := NewBroadcaster(hub, nil, nil)

	b.Publish(pipeline.Event{
		Type: pipeline.EventBalanceUpdate, UserID: 1,
		Payload: map[string]interface{}{"balance": "8950.00"}, At: testTime,
	})
	msg := recv(t, userConn)
	assert.Equal(t, "balance_update", msg.Type)
	assert.Equal(t, UserStream(1), msg.Stream)
	assert.Empty(t, boomConn.SendChannel)

	b.Publish(pipeline.Event{
		Type: pipeline.EventSocialValueUpdate, BoomID: 7,
		Payload: map[string]interface{}{"market_value": "1002.00"}, At: testTime,
	})
	msg = recv(t, boomConn)
	assert.Equal(t, "social_value_update", msg.Type)
	assert.Equal(t, BoomStream(7), msg.Stream)
	assert.Empty(t, userConn.SendChannel)
}

func TestEventScopedToUserAndBoomHitsBothStreams(t *testing.T) {
	hub := NewHub()
	userConn := NewConnection("c1", 16)
	boomConn := NewConnection("c2", 16)
	hub.AddConnection(userConn)
	hub.AddConnection(boomConn)
	hub.Subscribe(userConn, UserStream(3))
	hub.Subscribe(boomConn, BoomStream(9))

	NewBroadcaster(hub, nil, nil).Publish(pipeline.Event{
		Type: pipeline.EventSocialEvent, UserID: 3, BoomID: 9, At: testTime,
	})

	assert.Equal(t, "social_event", recv(t, userConn).Type)
	assert.Equal(t, "social_event", recv(t, boomConn).Type)
}

func TestTreasuryEventsStayOnAdminStream(t *testing.T) {
	hub := NewHub()
	userConn := NewConnection("c1", 16)
	adminConn := NewConnection("c2", 16)
	hub.AddConnection(userConn)
	hub.AddConnection(adminConn)
	hub.Subscribe(userConn, UserStream(1))
	hub.Subscribe(adminConn, StreamTreasury)

	NewBroadcaster(hub, nil, nil).Publish(pipeline.Event{
		Type:    pipeline.EventTreasuryUpdate,
		Payload: map[string]interface{}{"balance": "150.00"}, At: testTime,
	})

	msg := recv(t, adminConn)
	assert.Equal(t, StreamTreasury, msg.Stream)
	assert.Empty(t, userConn.SendChannel)
}

func TestBroadcastJournalsWithSequences(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	hub := NewHub()
	conn := NewConnection("c1", 16)
	hub.AddConnection(conn)
	hub.Subscribe(conn, UserStream(1))

	b := NewBroadcaster(hub, j, nil)
	for i := 0; i < 2; i++ {
		b.Publish(pipeline.Event{Type: pipeline.EventBalanceUpdate, UserID: 1, At: testTime})
	}

	assert.Equal(t, uint64(1), recv(t, conn).Seq)
	assert.Equal(t, uint64(2), recv(t, conn).Seq)

	last, err := j.LastSeq(string(UserStream(1)))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last)
}

func TestSlowSubscriberIsSkippedNotBlocked(t *testing.T) {
	hub := NewHub()
	conn := NewConnection("c1", 1)
	hub.AddConnection(conn)
	hub.Subscribe(conn, UserStream(1))

	b := NewBroadcaster(hub, nil, nil)
	for i := 0; i < 5; i++ {
		b.Publish(pipeline.Event{Type: pipeline.EventBalanceUpdate, UserID: 1, At: testTime})
	}

	// Buffer holds one; the rest were dropped without blocking Publish.
	assert.Len(t, conn.SendChannel, 1)
}

func TestSubscriberCountTracksRemoval(t *testing.T) {
	hub := NewHub()
	conn := NewConnection("c1", 16)
	hub.AddConnection(conn)
	hub.Subscribe(conn, BoomStream(4))

	assert.Equal(t, 1, hub.SubscriberCount(BoomStream(4)))
	hub.RemoveConnection("c1")
	assert.Equal(t, 0, hub.SubscriberCount(BoomStream(4)))
}

func dialTest(t *testing.T, ws *WebSocketServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn, out interface{}) {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestWebSocketDeliversUserStream(t *testing.T) {
	hub := NewHub()
	b := NewBroadcaster(hub, nil, nil)
	ws := NewWebSocketServer(hub, nil, func(*http.Request) (int64, bool, error) {
		return 42, false, nil
	}, nil)

	conn := dialTest(t, ws)

	// The ping round trip proves the connection is registered.
	require.NoError(t, conn.WriteJSON(command{Command: "ping"}))
	var reply commandReply
	readWire(t, conn, &reply)
	assert.Equal(t, "success", reply.Status)

	b.Publish(pipeline.Event{
		Type: pipeline.EventUserNotification, UserID: 42,
		Payload: map[string]interface{}{"message": "Depot credite"}, At: testTime,
	})

	var msg StreamMessage
	readWire(t, conn, &msg)
	assert.Equal(t, "user_notification", msg.Type)
	assert.Equal(t, UserStream(42), msg.Stream)
}

func TestWebSocketBoomSubscription(t *testing.T) {
	hub := NewHub()
	b := NewBroadcaster(hub, nil, nil)
	ws := NewWebSocketServer(hub, nil, func(*http.Request) (int64, bool, error) {
		return 1, false, nil
	}, nil)

	conn := dialTest(t, ws)

	require.NoError(t, conn.WriteJSON(command{Command: "subscribe", Booms: []int64{7}}))
	var reply commandReply
	readWire(t, conn, &reply)
	require.Equal(t, "success", reply.Status)

	b.Publish(pipeline.Event{Type: pipeline.EventSocialValueUpdate, BoomID: 7, At: testTime})

	var msg StreamMessage
	readWire(t, conn, &msg)
	assert.Equal(t, BoomStream(7), msg.Stream)
}

func TestWebSocketTreasuryRequiresAdmin(t *testing.T) {
	hub := NewHub()
	ws := NewWebSocketServer(hub, nil, func(*http.Request) (int64, bool, error) {
		return 1, false, nil
	}, nil)

	conn := dialTest(t, ws)

	require.NoError(t, conn.WriteJSON(command{Command: "subscribe", Treasury: true}))
	var reply commandReply
	readWire(t, conn, &reply)
	assert.Equal(t, "error", reply.Status)
	assert.Contains(t, reply.Error, "admin")
}

func TestWebSocketRejectsUnauthenticated(t *testing.T) {
	hub := NewHub()
	ws := NewWebSocketServer(hub, nil, func(*http.Request) (int64, bool, error) {
		return 0, false, assert.AnError
	}, nil)

	srv := httptest.NewServer(ws)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketReplay(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	hub := NewHub()
	b := NewBroadcaster(hub, j, nil)

	// Journal three events before the client connects.
	for i := 0; i < 3; i++ {
		b.Publish(pipeline.Event{Type: pipeline.EventBalanceUpdate, UserID: 5, At: testTime})
	}

	ws := NewWebSocketServer(hub, j, func(*http.Request) (int64, bool, error) {
		return 5, false, nil
	}, nil)
	conn := dialTest(t, ws)

	require.NoError(t, conn.WriteJSON(command{Command: "replay", FromSeq: 2}))

	var first, second StreamMessage
	readWire(t, conn, &first)
	readWire(t, conn, &second)
	assert.Equal(t, uint64(2), first.Seq)
	assert.Equal(t, uint64(3), second.Seq)

	var reply commandReply
	readWire(t, conn, &reply)
	assert.Equal(t, "success", reply.Status)
}
