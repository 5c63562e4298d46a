package service

import (
	"context"
	"fmt"
	"time"

	"dot-pattern-editor/internal/domain"
	"dot-pattern-editor/internal/editor"
	"dot-pattern-editor/internal/export"
	"dot-pattern-editor/internal/hub"
	"dot-pattern-editor/internal/tasks"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionRunner 在会话自己的 goroutine 中执行编辑命令，由 hub.Hub 实现
type SessionRunner interface {
	CreateSession(id string) (*hub.Session, error)
	Do(ctx context.Context, id string, fn hub.Command) (editor.State, error)
	CloseSession(id string) bool
}

// ExportQueue 投递后台导出任务，由 tasks.Queue 实现
type ExportQueue interface {
	EnqueueExport(ctx context.Context, payload tasks.ExportPayload) (string, error)
	ExportStatus(ctx context.Context, taskID string) (*tasks.ExportStatus, error)
}

// SessionInfo 是新建会话后返回给客户端的信息
type SessionInfo struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// ExportFile 是一次同步导出的结果
type ExportFile struct {
	Name string
	Data []byte
}

// EditorService 把 HTTP 层的请求转换为会话命令。
// 所有对编辑器的读写都经过 SessionRunner，不直接持有编辑器。
type EditorService struct {
	sessions SessionRunner
	tokens   *TokenService
	exports  ExportQueue // 可为 nil，表示未配置后台导出
	now      func() time.Time
}

// NewEditorService 创建 EditorService。queue 可以为 nil。
func NewEditorService(sessions SessionRunner, tokens *TokenService, queue ExportQueue) *EditorService {
	if sessions == nil {
		panic("SessionRunner cannot be nil for EditorService")
	}
	if tokens == nil {
		panic("TokenService cannot be nil for EditorService")
	}
	return &EditorService{
		sessions: sessions,
		tokens:   tokens,
		exports:  queue,
		now:      time.Now,
	}
}

// CreateSession 创建一个空白编辑会话并签发访问 token
func (s *EditorService) CreateSession(ctx context.Context) (*SessionInfo, error) {
	id := uuid.NewString()
	logCtx := logrus.WithField("session_id", id)

	if _, err := s.sessions.CreateSession(id); err != nil {
		logCtx.WithError(err).Error("Failed to create editing session")
		return nil, mapError(err)
	}
	token, expiresAt, err := s.tokens.Issue(id)
	if err != nil {
		logCtx.WithError(err).Error("Failed to issue session token")
		s.sessions.CloseSession(id)
		return nil, ErrInternalServer
	}

	logCtx.Info("Editing session created")
	return &SessionInfo{ID: id, Token: token, ExpiresAt: expiresAt}, nil
}

// CloseSession 结束会话并断开所有 WebSocket 客户端
func (s *EditorService) CloseSession(ctx context.Context, sessionID string) error {
	if !s.sessions.CloseSession(sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// State 返回会话当前状态
func (s *EditorService) State(ctx context.Context, sessionID string) (editor.State, error) {
	return s.do(ctx, sessionID, "state", func(*editor.Editor) (bool, error) {
		return false, nil
	})
}

// SubmitGridSize 解析用户输入的尺寸并创建新网格。输入无效时网格保持不变。
func (s *EditorService) SubmitGridSize(ctx context.Context, sessionID, input string) (editor.State, error) {
	return s.do(ctx, sessionID, "create_grid", func(e *editor.Editor) (bool, error) {
		if err := e.SubmitGridSize(input); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SelectColor 切换画笔颜色
func (s *EditorService) SelectColor(ctx context.Context, sessionID, name string) (editor.State, error) {
	c, err := domain.ParseColor(name)
	if err != nil {
		return editor.State{}, mapError(err)
	}
	return s.do(ctx, sessionID, "select_color", func(e *editor.Editor) (bool, error) {
		if err := e.SelectColor(c); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Undo 撤销一步。没有可撤销的历史时返回未改变的状态，不报错。
func (s *EditorService) Undo(ctx context.Context, sessionID string) (editor.State, error) {
	return s.do(ctx, sessionID, "undo", func(e *editor.Editor) (bool, error) {
		return e.Undo(), nil
	})
}

// GenerateMaze 在当前网格上生成迷宫
func (s *EditorService) GenerateMaze(ctx context.Context, sessionID string) (editor.State, error) {
	return s.do(ctx, sessionID, "generate_maze", func(e *editor.Editor) (bool, error) {
		if err := e.GenerateMaze(); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Reset 清除网格和历史
func (s *EditorService) Reset(ctx context.Context, sessionID string) (editor.State, error) {
	return s.do(ctx, sessionID, "reset", func(e *editor.Editor) (bool, error) {
		e.Reset()
		return true, nil
	})
}

// HandleEvent 处理一条通过 HTTP 提交的输入事件
func (s *EditorService) HandleEvent(ctx context.Context, sessionID string, ev editor.InputEvent) (editor.State, error) {
	if err := ev.Validate(); err != nil {
		return editor.State{}, mapError(err)
	}
	return s.do(ctx, sessionID, "input_event", func(e *editor.Editor) (bool, error) {
		return e.HandleEvent(ev), nil
	})
}

// ExportPNG 同步生成 PNG。快照在会话 goroutine 中取得，编码在调用方 goroutine 中进行。
func (s *EditorService) ExportPNG(ctx context.Context, sessionID string, scale int) (*ExportFile, error) {
	if scale < 1 || scale > export.MaxScale {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}
	snap, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	data, err := export.Bytes(snap, scale)
	if err != nil {
		logrus.WithFields(logrus.Fields{"session_id": sessionID, "size": snap.Size()}).WithError(err).Error("Failed to encode PNG")
		return nil, mapError(err)
	}
	return &ExportFile{Name: export.FileName(snap.Size(), s.now()), Data: data}, nil
}

// EnqueueExport 把当前网格的快照交给后台 worker 编码保存，返回任务 ID
func (s *EditorService) EnqueueExport(ctx context.Context, sessionID string, scale int) (string, error) {
	if s.exports == nil {
		return "", ErrExportUnavailable
	}
	if scale < 1 || scale > export.MaxScale {
		return "", fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}
	snap, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return "", err
	}
	taskID, err := s.exports.EnqueueExport(ctx, tasks.NewExportPayload(sessionID, snap, scale, s.now()))
	if err != nil {
		logrus.WithField("session_id", sessionID).WithError(err).Error("Failed to enqueue export task")
		return "", ErrInternalServer
	}
	return taskID, nil
}

// ExportStatus 查询后台导出任务。任务只对发起它的会话可见。
func (s *EditorService) ExportStatus(ctx context.Context, sessionID, taskID string) (*tasks.ExportStatus, error) {
	if s.exports == nil {
		return nil, ErrExportUnavailable
	}
	status, err := s.exports.ExportStatus(ctx, taskID)
	if err != nil {
		return nil, mapError(err)
	}
	if status.SessionID != sessionID {
		logrus.WithFields(logrus.Fields{"session_id": sessionID, "task_id": taskID}).Warn("Export task belongs to another session")
		return nil, ErrExportNotFound
	}
	return status, nil
}

func (s *EditorService) snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	_, err := s.do(ctx, sessionID, "snapshot", func(e *editor.Editor) (bool, error) {
		var err error
		snap, err = e.Snapshot()
		return false, err
	})
	return snap, err
}

// do 执行命令并统一处理错误映射和日志
func (s *EditorService) do(ctx context.Context, sessionID, op string, fn hub.Command) (editor.State, error) {
	state, err := s.sessions.Do(ctx, sessionID, fn)
	if err != nil {
		mapped := mapError(err)
		logrus.WithFields(logrus.Fields{"session_id": sessionID, "op": op}).WithError(err).Debug("Editor command rejected")
		return state, mapped
	}
	return state, nil
}
