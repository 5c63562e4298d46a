package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// SessionIDKey 是 gin.Context 中保存已认证会话 ID 的键
const SessionIDKey = "session_id"

// TokenValidator 校验 token 并返回其绑定的会话 ID，由 service.TokenService 实现
type TokenValidator interface {
	SessionID(token string) (string, error)
}

// ErrMissingAuthHeader 定义一个自定义错误，用于表示缺少 token
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，用于验证会话 token。
// 路由带 :sessionId 参数时，token 必须属于该会话。
func Auth(tokens TokenValidator) gin.HandlerFunc {
	if tokens == nil {
		panic("TokenValidator cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		// 1. 提取 Token
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		// 2. 验证 Token
		sessionID, err := tokens.SessionID(tokenStr)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: Invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. token 只能操作自己的会话
		if param := c.Param("sessionId"); param != "" && param != sessionID {
			logrus.WithFields(logrus.Fields{"token_session": sessionID, "path_session": param}).
				Warn("Auth middleware: Token does not grant access to this session")
			c.JSON(http.StatusForbidden, gin.H{"error": "Token does not grant access to this session"})
			c.Abort()
			return
		}

		c.Set(SessionIDKey, sessionID)
		logrus.WithField("session_id", sessionID).Debug("Auth middleware: Session authenticated via JWT")

		c.Next()
	}
}

// extractToken 从 Authorization 头提取 Bearer Token。
// 浏览器的 WebSocket API 无法设置请求头，因此也接受 ?token= 查询参数。
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}
