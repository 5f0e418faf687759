package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Our client against a gorilla server: fragmented replies, pings and close codes.
func TestInteropGorillaServer(t *testing.T) {
	pongs := make(chan string, 1)
	upgrader := websocket.Upgrader{WriteBufferSize: 64}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		ws.SetPongHandler(func(data string) error {
			pongs <- data
			return nil
		})

		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}

		ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(time.Second))
		// Larger than the write buffer, so gorilla sends it in fragments.
		ws.WriteMessage(websocket.TextMessage, []byte(strings.Repeat(string(msg), 40)))

		// Drives the pong handler.
		ws.ReadMessage()
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Connect(ctx, wsURL(srv, "/"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(TextMessage, []byte("abc")))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TextMessage, mt)
	assert.Equal(t, strings.Repeat("abc", 40), string(data))

	require.NoError(t, conn.WriteMessage(TextMessage, []byte("done")))
	assert.Equal(t, "keepalive", <-pongs)

	_, _, err = conn.ReadMessage()
	var ce *CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseGoingAway, ce.Code)
	assert.Equal(t, "bye", ce.Reason)
}

// A gorilla client against our handler.
func TestInteropGorillaClient(t *testing.T) {
	srv := httptest.NewServer(NewHandler(func(conn *Conn) error {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		return conn.WriteMessage(TextMessage, append([]byte("Echo: "), data...))
	}))
	defer srv.Close()

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/chat"), nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	payload := `{"message":"Hello, how are you?","timestamp":"2023-04-27T00:00:00Z"}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(payload)))

	mt, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "Echo: "+payload, string(data))

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
