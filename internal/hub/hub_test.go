package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dot-pattern-editor/internal/domain"
	"dot-pattern-editor/internal/editor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(func(string) *editor.Editor { return editor.New() })
}

// testClient 构造一个没有真实连接的客户端，只用于观察 send 通道
func testClient(s *Session) *Client {
	return &Client{session: s, send: make(chan []byte, 64)}
}

func readMessage(t *testing.T, c *Client) OutboundMessage {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send 通道不应已关闭")
		var msg OutboundMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return OutboundMessage{}
	}
}

func createGrid(size int) Command {
	return func(e *editor.Editor) (bool, error) {
		return true, e.CreateGrid(size)
	}
}

func TestHub_CreateAndLookupSession(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	s, err := h.CreateSession("a")
	require.NoError(t, err)
	assert.Equal(t, "a", s.ID())

	_, err = h.CreateSession("a")
	assert.True(t, errors.Is(err, ErrSessionExists))
	assert.Equal(t, 1, h.SessionCount())

	_, err = h.Do(context.Background(), "missing", createGrid(3))
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestHub_DoReturnsStateAfterCommand(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	_, err := h.CreateSession("s1")
	require.NoError(t, err)

	state, err := h.Do(context.Background(), "s1", createGrid(4))

	require.NoError(t, err)
	assert.True(t, state.HasGrid)
	assert.Equal(t, 4, state.Size)
	assert.Len(t, state.Cells, 16)
}

func TestHub_CommandsRunSequentially(t *testing.T) {
	// Arrange
	h := newTestHub()
	defer h.Shutdown()
	_, err := h.CreateSession("order")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = h.Do(ctx, "order", createGrid(2))
	require.NoError(t, err)

	// Act: 并发提交 50 条命令，每条在执行时记录自己的序号
	var mu sync.Mutex
	var seen []int
	var wg sync.WaitGroup
	running := 0
	maxRunning := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.Do(ctx, "order", func(e *editor.Editor) (bool, error) {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				seen = append(seen, i)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return false, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Assert: 所有命令都执行过，且从未并发执行
	assert.Len(t, seen, 50)
	assert.Equal(t, 1, maxRunning, "同一会话的命令不应并发执行")
}

func TestHub_CloseSession(t *testing.T) {
	h := newTestHub()
	s, err := h.CreateSession("bye")
	require.NoError(t, err)

	assert.True(t, h.CloseSession("bye"))
	assert.False(t, h.CloseSession("bye"))

	_, err = s.Do(context.Background(), createGrid(3))
	assert.True(t, errors.Is(err, ErrSessionClosed))
	_, err = h.Do(context.Background(), "bye", createGrid(3))
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestHub_ShutdownRejectsNewSessions(t *testing.T) {
	h := newTestHub()
	_, err := h.CreateSession("x")
	require.NoError(t, err)

	h.Shutdown()

	assert.Equal(t, 0, h.SessionCount())
	_, err = h.CreateSession("y")
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestSession_RegisteredClientReceivesStateAndBroadcasts(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	s, err := h.CreateSession("ws")
	require.NoError(t, err)
	c := testClient(s)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, c))
	initial := readMessage(t, c)
	assert.Equal(t, "state", initial.Type)
	require.NotNil(t, initial.State)
	assert.False(t, initial.State.HasGrid)

	_, err = s.Do(ctx, createGrid(3))
	require.NoError(t, err)
	update := readMessage(t, c)
	require.NotNil(t, update.State)
	assert.Equal(t, 3, update.State.Size)
}

func TestSession_ClientEventsDriveStroke(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	s, err := h.CreateSession("events")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Do(ctx, func(e *editor.Editor) (bool, error) {
		if err := e.CreateGrid(3); err != nil {
			return false, err
		}
		return true, e.SelectColor(domain.Red)
	})
	require.NoError(t, err)
	c := testClient(s)
	require.NoError(t, s.Register(ctx, c))
	readMessage(t, c)

	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgEvent, Client: c, RawData: []byte(`{"type":"pointerdown","row":1,"col":2,"button":0}`)}))
	painted := readMessage(t, c)
	require.NotNil(t, painted.State)
	assert.Equal(t, domain.Red, painted.State.Cells[1*3+2])
	assert.True(t, painted.State.Drawing)
	assert.True(t, painted.State.CanUndo)

	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgEvent, Client: c, RawData: []byte(`not json`)}))
	bad := readMessage(t, c)
	assert.Equal(t, "error", bad.Type)

	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgEvent, Client: c, RawData: []byte(`{"type":"scroll"}`)}))
	unknown := readMessage(t, c)
	assert.Equal(t, "error", unknown.Type)
}

func TestSession_UnregisterEndsOpenStroke(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	s, err := h.CreateSession("drop")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Do(ctx, createGrid(3))
	require.NoError(t, err)
	c := testClient(s)
	require.NoError(t, s.Register(ctx, c))
	readMessage(t, c)
	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgEvent, Client: c, RawData: []byte(`{"type":"touchstart","row":0,"col":0}`)}))
	readMessage(t, c)

	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgUnregister, Client: c}))

	state, err := s.Do(ctx, func(*editor.Editor) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.False(t, state.Drawing, "断开连接应结束笔画")
	_, ok := <-c.send
	assert.False(t, ok, "注销后 send 通道应被关闭")
}

func TestSession_DoHonoursContext(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	s, err := h.CreateSession("slow")
	require.NoError(t, err)
	release := make(chan struct{})
	go func() {
		_, _ = s.Do(context.Background(), func(*editor.Editor) (bool, error) {
			<-release
			return false, nil
		})
	}()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// 等待第一条命令开始执行
	time.Sleep(10 * time.Millisecond)
	_, err = s.Do(ctx, createGrid(3))

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSession_OtherClientLeavingKeepsStroke(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	s, err := h.CreateSession("shared")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Do(ctx, func(e *editor.Editor) (bool, error) {
		if err := e.CreateGrid(5); err != nil {
			return false, err
		}
		return true, e.SelectColor(domain.Red)
	})
	require.NoError(t, err)
	a, b := testClient(s), testClient(s)
	require.NoError(t, s.Register(ctx, a))
	require.NoError(t, s.Register(ctx, b))
	readMessage(t, a)
	readMessage(t, b)

	// A 开始笔画，B 断开
	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgEvent, Client: a, RawData: []byte(`{"type":"pointerdown","row":0,"col":0,"button":0}`)}))
	readMessage(t, a)
	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgUnregister, Client: b}))
	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgEvent, Client: a, RawData: []byte(`{"type":"pointerenter","row":0,"col":1}`)}))

	dragged := readMessage(t, a)
	require.NotNil(t, dragged.State)
	assert.True(t, dragged.State.Drawing, "其他客户端断开不应结束笔画")
	assert.Equal(t, domain.Red, dragged.State.Cells[1])

	// A 自己断开才结束笔画
	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgUnregister, Client: a}))
	state, err := s.Do(ctx, func(*editor.Editor) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.False(t, state.Drawing)
}

func TestSession_ClientLeavingKeepsHTTPStroke(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	s, err := h.CreateSession("http-stroke")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Do(ctx, createGrid(3))
	require.NoError(t, err)
	c := testClient(s)
	require.NoError(t, s.Register(ctx, c))
	readMessage(t, c)

	_, err = s.Do(ctx, func(e *editor.Editor) (bool, error) {
		return e.HandleEvent(editor.InputEvent{Type: editor.PointerDown, Row: 1, Col: 1}), nil
	})
	require.NoError(t, err)
	require.NoError(t, s.enqueue(ctx, sessionMessage{Type: msgUnregister, Client: c}))

	state, err := s.Do(ctx, func(*editor.Editor) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.True(t, state.Drawing)
}

func TestHub_ReapIdleClosesOnlyIdleSessions(t *testing.T) {
	h := NewHub(func(string) *editor.Editor { return editor.New() }, WithIdleTimeout(time.Hour))
	defer h.Shutdown()
	idle, err := h.CreateSession("idle")
	require.NoError(t, err)
	watched, err := h.CreateSession("watched")
	require.NoError(t, err)
	_, err = h.CreateSession("fresh")
	require.NoError(t, err)
	ctx := context.Background()
	c := testClient(watched)
	require.NoError(t, watched.Register(ctx, c))
	readMessage(t, c)

	// 让 fresh 在一小时后仍有活动
	later := time.Now().Add(90 * time.Minute)
	fresh, ok := h.Session("fresh")
	require.True(t, ok)
	fresh.touch(later.Add(-time.Minute))

	reaped := h.reapIdle(later)

	assert.Equal(t, 1, reaped)
	assert.Equal(t, 2, h.SessionCount())
	_, ok = h.Session("idle")
	assert.False(t, ok)
	select {
	case <-idle.Done():
	default:
		t.Fatal("idle session should be closed")
	}
	_, ok = h.Session("watched")
	assert.True(t, ok, "有客户端连接的会话不应被回收")
}

func TestHub_IdleSessionsAreReapedInBackground(t *testing.T) {
	h := NewHub(func(string) *editor.Editor { return editor.New() }, WithIdleTimeout(40*time.Millisecond))
	defer h.Shutdown()
	for _, id := range []string{"a", "b", "c"} {
		_, err := h.CreateSession(id)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return h.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_NoIdleTimeoutKeepsSessions(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()
	_, err := h.CreateSession("kept")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, h.SessionCount())
}
