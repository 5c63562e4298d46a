package websocket

import (
	"context"
	"net/http"
	"time"

	"dot-pattern-editor/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// SessionLookup 按 ID 查找会话，由 hub.Hub 实现
type SessionLookup interface {
	Session(id string) (*hub.Session, bool)
}

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	sessions SessionLookup
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空时接受任意来源。
func NewWebSocketHandler(sessions SessionLookup, allowedOrigin string) *WebSocketHandler {
	if sessions == nil {
		panic("SessionLookup cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		sessions: sessions,
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/sessions/{sessionId}，Auth 中间件已校验 token 与会话匹配
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	sessionID := c.Param("sessionId")
	logCtx := logrus.WithField("session_id", sessionID)

	// 1. 在升级前确认会话存在，这样还能返回普通的 HTTP 错误
	session, ok := h.sessions.Session(sessionID)
	if !ok {
		logCtx.Warn("WS Handler: Session not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 3. 注册客户端，注册后会话会推送一次当前状态
	client := hub.NewClient(session, conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Register(ctx, client); err != nil {
		logCtx.WithError(err).Error("WS Handler: Failed to register client")
		client.CloseConn()
		return
	}

	// 4. 启动读写 goroutine
	client.Run()
	logCtx.Debug("WS Handler: Client read/write pumps started")
}
