package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"dot-pattern-editor/internal/export"
	"dot-pattern-editor/internal/tasks"
)

// ExportHandler 处理后台 PNG 导出任务
type ExportHandler struct {
	sink export.Sink
}

// NewExportHandler 创建 Handler 实例
func NewExportHandler(sink export.Sink) *ExportHandler {
	if sink == nil {
		panic("export Sink cannot be nil for ExportHandler")
	}
	return &ExportHandler{sink: sink}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *ExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	logCtx.Info("Processing export task...")

	payload, err := tasks.ParseExportPayload(t)
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"session_id": payload.SessionID, "size": payload.Size})

	snap, err := payload.Snapshot()
	if err != nil {
		logCtx.WithError(err).Error("Export payload does not describe a valid grid")
		return fmt.Errorf("invalid export payload: %v: %w", err, asynq.SkipRetry)
	}
	data, err := export.Bytes(snap, payload.Scale)
	if err != nil {
		// 编码失败重试也不会成功
		logCtx.WithError(err).Error("Failed to encode export image")
		return fmt.Errorf("failed to encode export: %v: %w", err, asynq.SkipRetry)
	}

	name := fmt.Sprintf("%s_%s", payload.SessionID, export.FileName(payload.Size, payload.RequestedAt))
	path, err := h.sink.Save(ctx, name, data)
	if err != nil {
		logCtx.WithError(err).Error("Failed to save export file")
		return fmt.Errorf("failed to save export %s: %w", name, err)
	}

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write([]byte(path)); err != nil {
			logCtx.WithError(err).Warn("Failed to write task result")
		}
	}
	logCtx.WithFields(logrus.Fields{"path": path, "bytes": len(data)}).Info("Export task processed successfully")
	return nil
}

// Pruner 删除过期的导出文件，由 export.DirSink 实现
type Pruner interface {
	Prune(olderThan time.Duration, now time.Time) (int, error)
}

// CleanupHandler 周期性清理导出目录
type CleanupHandler struct {
	pruner    Pruner
	retention time.Duration
	now       func() time.Time
}

// NewCleanupHandler 创建 Handler 实例。retention <= 0 时使用 24 小时。
func NewCleanupHandler(pruner Pruner, retention time.Duration) *CleanupHandler {
	if pruner == nil {
		panic("Pruner cannot be nil for CleanupHandler")
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &CleanupHandler{pruner: pruner, retention: retention, now: time.Now}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	removed, err := h.pruner.Prune(h.retention, h.now())
	if err != nil {
		logCtx.WithError(err).Error("Failed to prune export directory")
		return err
	}
	logCtx.WithField("removed", removed).Info("Export cleanup finished")
	return nil
}

// taskLogger 构造带任务上下文的日志条目
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}
