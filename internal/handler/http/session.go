package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"dot-pattern-editor/internal/editor"
	"dot-pattern-editor/internal/service"
	"dot-pattern-editor/internal/tasks"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EditorAPI 是 SessionHandler 依赖的服务接口，由 service.EditorService 实现
type EditorAPI interface {
	CreateSession(ctx context.Context) (*service.SessionInfo, error)
	CloseSession(ctx context.Context, sessionID string) error
	State(ctx context.Context, sessionID string) (editor.State, error)
	SubmitGridSize(ctx context.Context, sessionID, input string) (editor.State, error)
	SelectColor(ctx context.Context, sessionID, name string) (editor.State, error)
	Undo(ctx context.Context, sessionID string) (editor.State, error)
	GenerateMaze(ctx context.Context, sessionID string) (editor.State, error)
	Reset(ctx context.Context, sessionID string) (editor.State, error)
	HandleEvent(ctx context.Context, sessionID string, ev editor.InputEvent) (editor.State, error)
	ExportPNG(ctx context.Context, sessionID string, scale int) (*service.ExportFile, error)
	EnqueueExport(ctx context.Context, sessionID string, scale int) (string, error)
	ExportStatus(ctx context.Context, sessionID, taskID string) (*tasks.ExportStatus, error)
}

// SessionHandler 封装了编辑会话相关的 HTTP 处理逻辑
type SessionHandler struct {
	editors EditorAPI
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(editors EditorAPI) *SessionHandler {
	if editors == nil {
		panic("EditorAPI cannot be nil for SessionHandler")
	}
	return &SessionHandler{editors: editors}
}

// CreateSessionResponse 定义创建会话成功的响应结构体
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GridRequest 携带用户在尺寸输入框中输入的原始文本
type GridRequest struct {
	Size SizeInput `json:"size"`
}

// SizeInput 接受 JSON 字符串或数字。其他类型保留原始文本，交给服务层按无效尺寸处理。
type SizeInput string

func (s *SizeInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SizeInput(str)
		return nil
	default:
		*s = SizeInput(data)
		return nil
	}
}

// ColorRequest 定义选色请求
type ColorRequest struct {
	Color string `json:"color" binding:"required"`
}

// ExportTaskResponse 定义异步导出的响应
type ExportTaskResponse struct {
	TaskID string `json:"task_id"`
}

// CreateSession 创建新的编辑会话
func (h *SessionHandler) CreateSession(c *gin.Context) {
	info, err := h.editors.CreateSession(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: info.ID,
		Token:     info.Token,
		ExpiresAt: info.ExpiresAt,
	})
}

// GetState 返回会话当前状态
func (h *SessionHandler) GetState(c *gin.Context) {
	h.respondState(c, func(ctx context.Context, id string) (editor.State, error) {
		return h.editors.State(ctx, id)
	})
}

// SubmitGrid 处理网格尺寸提交
func (h *SessionHandler) SubmitGrid(c *gin.Context) {
	var req GridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.SubmitGrid: Invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.respondState(c, func(ctx context.Context, id string) (editor.State, error) {
		return h.editors.SubmitGridSize(ctx, id, string(req.Size))
	})
}

// SelectColor 切换画笔颜色
func (h *SessionHandler) SelectColor(c *gin.Context) {
	var req ColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.SelectColor: Invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.respondState(c, func(ctx context.Context, id string) (editor.State, error) {
		return h.editors.SelectColor(ctx, id, req.Color)
	})
}

func (h *SessionHandler) Undo(c *gin.Context) {
	h.respondState(c, h.editors.Undo)
}

func (h *SessionHandler) GenerateMaze(c *gin.Context) {
	h.respondState(c, h.editors.GenerateMaze)
}

func (h *SessionHandler) Reset(c *gin.Context) {
	h.respondState(c, h.editors.Reset)
}

// HandleEvent 接收一条输入事件，供不使用 WebSocket 的客户端
func (h *SessionHandler) HandleEvent(c *gin.Context) {
	var ev editor.InputEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		logrus.WithError(err).Warn("Handler.HandleEvent: Invalid request body")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.respondState(c, func(ctx context.Context, id string) (editor.State, error) {
		return h.editors.HandleEvent(ctx, id, ev)
	})
}

// ExportPNG 以附件形式返回 PNG
func (h *SessionHandler) ExportPNG(c *gin.Context) {
	scale, ok := parseScale(c)
	if !ok {
		return
	}
	file, err := h.editors.ExportPNG(c.Request.Context(), c.Param("sessionId"), scale)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, "image/png", file.Data)
}

// EnqueueExport 提交后台导出任务
func (h *SessionHandler) EnqueueExport(c *gin.Context) {
	scale, ok := parseScale(c)
	if !ok {
		return
	}
	taskID, err := h.editors.EnqueueExport(c.Request.Context(), c.Param("sessionId"), scale)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ExportTaskResponse{TaskID: taskID})
}

// ExportStatus 查询后台导出任务的状态
func (h *SessionHandler) ExportStatus(c *gin.Context) {
	status, err := h.editors.ExportStatus(c.Request.Context(), c.Param("sessionId"), c.Param("taskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, status)
}

// CloseSession 结束会话
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.editors.CloseSession(c.Request.Context(), c.Param("sessionId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) respondState(c *gin.Context, fn func(ctx context.Context, id string) (editor.State, error)) {
	id := c.Param("sessionId")
	state, err := fn(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, StateResponse{SessionID: id, State: state})
}

// parseScale 读取 ?scale=，缺省为 1
func parseScale(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("scale", "1")
	scale, err := strconv.Atoi(raw)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidScale.Error())
		return 0, false
	}
	return scale, true
}
