package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dot-pattern-editor/internal/domain"
	"dot-pattern-editor/internal/editor"
	wshandler "dot-pattern-editor/internal/handler/websocket"
	"dot-pattern-editor/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(func(string) *editor.Editor { return editor.New() })
	r := gin.New()
	r.GET("/ws/sessions/:sessionId", wshandler.NewWebSocketHandler(h, "").HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) hub.OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg hub.OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketHandler_UnknownSession(t *testing.T) {
	_, srv := newWSServer(t)

	resp, err := http.Get(srv.URL + "/ws/sessions/missing")

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketHandler_StrokeIsBroadcast(t *testing.T) {
	h, srv := newWSServer(t)
	_, err := h.CreateSession("live")
	require.NoError(t, err)
	_, err = h.Do(context.Background(), "live", func(e *editor.Editor) (bool, error) {
		if err := e.CreateGrid(3); err != nil {
			return false, err
		}
		return true, e.SelectColor(domain.Blue)
	})
	require.NoError(t, err)

	painter := dial(t, srv, "live")
	watcher := dial(t, srv, "live")
	initial := readState(t, painter)
	require.NotNil(t, initial.State)
	assert.Equal(t, 3, initial.State.Size)
	readState(t, watcher)

	require.NoError(t, painter.WriteJSON(editor.InputEvent{Type: editor.PointerDown, Row: 1, Col: 1}))

	for _, conn := range []*websocket.Conn{painter, watcher} {
		msg := readState(t, conn)
		require.Equal(t, "state", msg.Type)
		require.NotNil(t, msg.State)
		assert.Equal(t, domain.Blue, msg.State.Cells[4])
		assert.True(t, msg.State.Drawing)
	}
}

func TestWebSocketHandler_DisconnectEndsStroke(t *testing.T) {
	h, srv := newWSServer(t)
	_, err := h.CreateSession("drop")
	require.NoError(t, err)
	_, err = h.Do(context.Background(), "drop", func(e *editor.Editor) (bool, error) {
		return true, e.CreateGrid(3)
	})
	require.NoError(t, err)

	conn := dial(t, srv, "drop")
	readState(t, conn)
	require.NoError(t, conn.WriteJSON(editor.InputEvent{Type: editor.TouchStart, Row: 0, Col: 0}))
	readState(t, conn)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		state, err := h.Do(context.Background(), "drop", func(*editor.Editor) (bool, error) { return false, nil })
		return err == nil && !state.Drawing
	}, 2*time.Second, 10*time.Millisecond)
}
