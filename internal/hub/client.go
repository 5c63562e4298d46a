package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到会话的 WebSocket 客户端。
type Client struct {
	session *Session
	conn    *websocket.Conn
	send    chan []byte // 会话向此客户端推送消息的缓冲通道
	log     *logrus.Entry
}

// NewClient 创建一个新的 Client 实例
func NewClient(session *Session, conn *websocket.Conn) *Client {
	return &Client{
		session: session,
		conn:    conn,
		send:    make(chan []byte, 256),
		log:     logrus.WithFields(logrus.Fields{"component": "ws_client", "session_id": session.ID()}),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump 把 WebSocket 文本帧作为输入事件送入会话收件箱。
func (c *Client) ReadPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := c.session.enqueue(ctx, sessionMessage{Type: msgUnregister, Client: c}); err != nil {
			c.log.WithError(err).Debug("Could not queue unregister message")
		}
		cancel()
		c.conn.Close()
		c.log.Info("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.log.Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debugf("Received non-text message type: %d", messageType)
			continue
		}

		// 输入事件必须按顺序处理，这里阻塞等待入队而不是丢弃
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = c.session.enqueue(ctx, sessionMessage{Type: msgEvent, Client: c, RawData: message})
		cancel()
		if err != nil {
			c.log.WithError(err).Warn("Failed to queue input event, closing connection")
			return
		}
	}
}

// WritePump 把 send 通道里的消息写到 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 会话关闭了 send 通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) CloseConn() { c.conn.Close() }
