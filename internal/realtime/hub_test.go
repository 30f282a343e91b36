package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/models"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestHub_NotifyBroadcastsInOrder(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := dial(t, h)
	b := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 2 }, time.Second, 10*time.Millisecond)

	h.Notify(context.Background(), &intake.Result{
		Message: models.Message{ID: "m1", Content: "Completed Humana invoice", RelatedTaskIDs: []string{"t1", "t2"}},
		Created: []models.Task{{ID: "t2", Title: "Acme invoice"}},
		Updated: []models.Task{{ID: "t1", Title: "Humana invoice", Status: models.StatusCompleted}},
	})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventMessageNew, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "m1", ev.Message.ID)
		assert.Nil(t, ev.Task)

		ev = readEvent(t, conn)
		assert.Equal(t, EventTaskCreated, ev.Type)
		require.NotNil(t, ev.Task)
		assert.Equal(t, "t2", ev.Task.ID)

		ev = readEvent(t, conn)
		assert.Equal(t, EventTaskUpdated, ev.Type)
		assert.Equal(t, models.StatusCompleted, ev.Task.Status)
	}
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsFramesForSlowClients(t *testing.T) {
	h := NewHub(zerolog.Nop(), WithBuffer(1))
	slow := &client{send: make(chan []byte, 1)}
	require.True(t, h.add(slow))

	for i := 0; i < 3; i++ {
		h.Broadcast(Event{Type: EventMessageNew})
	}
	assert.Len(t, slow.send, 1)
	assert.Equal(t, int64(2), h.Dropped())
}

func TestHub_CloseRefusesNewClients(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	h.Close()
	assert.Zero(t, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	assert.False(t, h.add(&client{send: make(chan []byte, 1)}))
	h.Broadcast(Event{Type: EventMessageNew})
}
