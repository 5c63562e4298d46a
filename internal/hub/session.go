package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"dot-pattern-editor/internal/editor"

	"github.com/sirupsen/logrus"
)

// Command 在会话 goroutine 内操作编辑器，返回可观察状态是否改变。
type Command func(e *editor.Editor) (changed bool, err error)

type messageType string

const (
	msgRegister   messageType = "register"
	msgUnregister messageType = "unregister"
	msgEvent      messageType = "event"
	msgCommand    messageType = "command"
)

// sessionMessage 是会话收件箱中的一条消息
type sessionMessage struct {
	Type messageType
	// register/unregister/event 时的来源客户端
	Client *Client
	// event: 原始 WebSocket 文本帧
	RawData []byte
	Command Command
	reply   chan commandResult
}

type commandResult struct {
	state editor.State
	err   error
}

// OutboundMessage 是推送给 WebSocket 客户端的消息
type OutboundMessage struct {
	Type    string        `json:"type"` // "state" 或 "error"
	State   *editor.State `json:"state,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Session 拥有一个编辑器。编辑器和客户端集合只在 run goroutine 内访问，不需要加锁。
type Session struct {
	id      string
	editor  *editor.Editor
	inbox   chan sessionMessage
	clients map[*Client]bool
	// 发起当前笔画的客户端；笔画来自 HTTP 或没有笔画时为 nil
	strokeOwner *Client

	// 以下两个字段供 Hub 的回收 goroutine 读取
	lastActive  atomic.Int64 // UnixNano
	clientCount atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
	log       *logrus.Entry
}

func newSession(id string, e *editor.Editor) *Session {
	if e == nil {
		panic("Editor cannot be nil for Session")
	}
	s := &Session{
		id:      id,
		editor:  e,
		inbox:   make(chan sessionMessage, inboxSize),
		clients: make(map[*Client]bool),
		done:    make(chan struct{}),
		log:     logrus.WithFields(logrus.Fields{"component": "session", "session_id": id}),
	}
	s.touch(time.Now())
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// idleFor 返回会话在 now 时刻已空闲的时长。有客户端连接时不算空闲。
func (s *Session) idleFor(now time.Time) time.Duration {
	if s.clientCount.Load() > 0 {
		return 0
	}
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

func (s *Session) ID() string { return s.id }

// Done 在会话关闭后被关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// Close 停止会话 goroutine。可重复调用。
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Do 把命令放入收件箱并等待执行结果。
// ctx 取消只影响等待；已入队的命令仍会执行。
func (s *Session) Do(ctx context.Context, fn Command) (editor.State, error) {
	reply := make(chan commandResult, 1)
	if err := s.enqueue(ctx, sessionMessage{Type: msgCommand, Command: fn, reply: reply}); err != nil {
		return editor.State{}, err
	}
	select {
	case res := <-reply:
		return res.state, res.err
	case <-s.done:
		// 关闭前可能已经写入结果
		select {
		case res := <-reply:
			return res.state, res.err
		default:
			return editor.State{}, ErrSessionClosed
		}
	case <-ctx.Done():
		return editor.State{}, ctx.Err()
	}
}

// Register 把客户端加入会话，注册后客户端会立即收到当前状态
func (s *Session) Register(ctx context.Context, c *Client) error {
	return s.enqueue(ctx, sessionMessage{Type: msgRegister, Client: c})
}

func (s *Session) enqueue(ctx context.Context, msg sessionMessage) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run 是会话的事件循环，每条消息执行完才处理下一条。
func (s *Session) run() {
	s.log.Debug("Session loop running")
	for {
		select {
		case msg := <-s.inbox:
			s.handle(msg)
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientCount.Store(0)
			s.log.Debug("Session loop stopped")
			return
		}
	}
}

func (s *Session) handle(msg sessionMessage) {
	s.touch(time.Now())
	switch msg.Type {
	case msgRegister:
		s.registerClient(msg.Client)
	case msgUnregister:
		s.unregisterClient(msg.Client)
	case msgEvent:
		s.handleClientEvent(msg.Client, msg.RawData)
	case msgCommand:
		wasDrawing := s.editor.Drawing()
		changed, err := msg.Command(s.editor)
		s.trackStroke(nil, wasDrawing)
		msg.reply <- commandResult{state: s.editor.State(), err: err}
		if changed {
			s.broadcastState()
		}
	default:
		s.log.Warnf("Session: Received unknown message type: %s", msg.Type)
	}
}

func (s *Session) registerClient(c *Client) {
	if c == nil {
		s.log.Error("Session: Attempted to register a nil client")
		return
	}
	s.clients[c] = true
	s.clientCount.Store(int32(len(s.clients)))
	s.log.WithField("clients", len(s.clients)).Info("Client registered to session")

	state := s.editor.State()
	s.sendTo(c, OutboundMessage{Type: "state", State: &state})
}

func (s *Session) unregisterClient(c *Client) {
	if _, ok := s.clients[c]; !ok {
		s.log.Debug("Client not found in session during unregister")
		return
	}
	delete(s.clients, c)
	s.clientCount.Store(int32(len(s.clients)))
	close(c.send)
	s.log.WithField("clients", len(s.clients)).Info("Client unregistered from session")

	// 发起笔画的客户端断开等同于松开指针，其他客户端断开不影响笔画
	if s.strokeOwner != c {
		return
	}
	s.strokeOwner = nil
	if s.editor.HandleEvent(editor.InputEvent{Type: editor.PointerUp}) {
		s.broadcastState()
	}
}

// trackStroke 在事件或命令执行后更新笔画归属
func (s *Session) trackStroke(c *Client, wasDrawing bool) {
	switch {
	case !s.editor.Drawing():
		s.strokeOwner = nil
	case !wasDrawing:
		s.strokeOwner = c
	}
}

// handleClientEvent 解析并执行一条输入事件
func (s *Session) handleClientEvent(c *Client, raw []byte) {
	if !s.clients[c] {
		return
	}
	var ev editor.InputEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.log.WithError(err).Warn("Failed to unmarshal input event from client")
		s.sendTo(c, OutboundMessage{Type: "error", Message: "malformed input event"})
		return
	}
	if err := ev.Validate(); err != nil {
		s.log.WithError(err).Warn("Rejected input event")
		s.sendTo(c, OutboundMessage{Type: "error", Message: err.Error()})
		return
	}

	wasDrawing := s.editor.Drawing()
	changed := s.editor.HandleEvent(ev)
	s.trackStroke(c, wasDrawing)
	if changed {
		s.broadcastState()
	}
}

func (s *Session) broadcastState() {
	if len(s.clients) == 0 {
		return
	}
	state := s.editor.State()
	payload, err := json.Marshal(OutboundMessage{Type: "state", State: &state})
	if err != nil {
		s.log.WithError(err).Error("Failed to marshal state message")
		return
	}
	for client := range s.clients {
		s.deliver(client, payload)
	}
}

func (s *Session) sendTo(c *Client, msg OutboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.WithError(err).Error("Failed to marshal outbound message")
		return
	}
	s.deliver(c, payload)
}

// deliver 非阻塞发送，慢客户端不会拖住会话
func (s *Session) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		s.log.Warn("Client send channel full, message dropped")
	}
}
