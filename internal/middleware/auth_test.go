package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dot-pattern-editor/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// stubTokens 把 token 字符串本身当作会话 ID，"bad" 视为无效
type stubTokens struct{}

func (stubTokens) SessionID(token string) (string, error) {
	if token == "bad" {
		return "", errors.New("invalid token")
	}
	return token, nil
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sessions/:sessionId", middleware.Auth(stubTokens{}), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.SessionIDKey))
	})
	return r
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "bearer header", url: "/sessions/abc", header: "Bearer abc", wantCode: http.StatusOK, wantBody: "abc"},
		{name: "bearer is case insensitive", url: "/sessions/abc", header: "bearer abc", wantCode: http.StatusOK, wantBody: "abc"},
		{name: "query token", url: "/sessions/abc?token=abc", wantCode: http.StatusOK, wantBody: "abc"},
		{name: "missing token", url: "/sessions/abc", wantCode: http.StatusUnauthorized},
		{name: "malformed header", url: "/sessions/abc", header: "Token abc", wantCode: http.StatusUnauthorized},
		{name: "invalid token", url: "/sessions/abc", header: "Bearer bad", wantCode: http.StatusUnauthorized},
		{name: "other session", url: "/sessions/abc", header: "Bearer xyz", wantCode: http.StatusForbidden},
	}

	r := newAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
