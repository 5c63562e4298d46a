package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"dot-pattern-editor/internal/editor"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 单条输入事件的最大字节数
	maxMessageSize = 1024

	// 每个会话收件箱的缓冲大小
	inboxSize = 256

	// 空闲会话扫描间隔的上限
	maxReapInterval = time.Minute
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionClosed   = errors.New("session closed")
)

// EditorFactory 为新会话创建编辑器
type EditorFactory func(sessionID string) *editor.Editor

// Hub 维护所有编辑会话。每个会话有自己的 goroutine，
// 该会话的所有命令都在这个 goroutine 里按到达顺序逐条执行。
type Hub struct {
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	newEditor   EditorFactory
	closed      bool
	idleTimeout time.Duration
	stopReaper  chan struct{}
	stopOnce    sync.Once
}

// Option 配置 Hub
type Option func(*Hub)

// WithIdleTimeout 设置空闲会话的回收时间。
// 没有客户端连接且超过 d 没有任何消息的会话会被关闭。d <= 0 时不回收。
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) { h.idleTimeout = d }
}

// NewHub 创建 Hub。factory 不能为 nil。
func NewHub(factory EditorFactory, opts ...Option) *Hub {
	if factory == nil {
		panic("EditorFactory cannot be nil for Hub")
	}
	h := &Hub{
		sessions:   make(map[string]*Session),
		newEditor:  factory,
		stopReaper: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.idleTimeout > 0 {
		go h.reapLoop()
	}
	return h
}

// reapLoop 定期关闭空闲会话，直到 Shutdown
func (h *Hub) reapLoop() {
	interval := h.idleTimeout / 2
	if interval > maxReapInterval {
		interval = maxReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			h.reapIdle(now)
		case <-h.stopReaper:
			return
		}
	}
}

// reapIdle 关闭在 now 时刻已空闲超过 idleTimeout 的会话，返回关闭的数量
func (h *Hub) reapIdle(now time.Time) int {
	h.sessionsMu.RLock()
	var idle []string
	for id, s := range h.sessions {
		if s.idleFor(now) >= h.idleTimeout {
			idle = append(idle, id)
		}
	}
	h.sessionsMu.RUnlock()

	reaped := 0
	for _, id := range idle {
		if h.CloseSession(id) {
			reaped++
		}
	}
	if reaped > 0 {
		logrus.WithFields(logrus.Fields{"reaped": reaped, "idle_timeout": h.idleTimeout}).Info("Idle sessions closed")
	}
	return reaped
}

// CreateSession 创建并启动一个新会话
func (h *Hub) CreateSession(id string) (*Session, error) {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	if h.closed {
		return nil, ErrSessionClosed
	}
	if _, ok := h.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	s := newSession(id, h.newEditor(id))
	h.sessions[id] = s
	go s.run()

	logrus.WithFields(logrus.Fields{"session_id": id, "active_sessions": len(h.sessions)}).Info("Session created")
	return s, nil
}

// Session 查找会话
func (h *Hub) Session(id string) (*Session, bool) {
	h.sessionsMu.RLock()
	defer h.sessionsMu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Do 在会话 goroutine 中执行 fn 并返回执行后的状态。
func (h *Hub) Do(ctx context.Context, id string, fn Command) (editor.State, error) {
	s, ok := h.Session(id)
	if !ok {
		return editor.State{}, ErrSessionNotFound
	}
	return s.Do(ctx, fn)
}

// CloseSession 停止会话并断开其所有客户端
func (h *Hub) CloseSession(id string) bool {
	h.sessionsMu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	remaining := len(h.sessions)
	h.sessionsMu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	logrus.WithFields(logrus.Fields{"session_id": id, "active_sessions": remaining}).Info("Session closed")
	return true
}

// SessionCount 返回活跃会话数
func (h *Hub) SessionCount() int {
	h.sessionsMu.RLock()
	defer h.sessionsMu.RUnlock()
	return len(h.sessions)
}

// Shutdown 关闭所有会话，之后不再接受新会话
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.stopReaper) })

	h.sessionsMu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.sessionsMu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	logrus.WithField("closed_sessions", len(sessions)).Info("Hub shut down")
}
