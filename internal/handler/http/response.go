package http

import (
	"dot-pattern-editor/internal/editor"

	"github.com/gin-gonic/gin"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// StateResponse 包装编辑器状态
type StateResponse struct {
	SessionID string       `json:"session_id"`
	State     editor.State `json:"state"`
}
