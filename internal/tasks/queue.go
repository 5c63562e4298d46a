package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// ErrTaskNotFound 表示任务不存在或已过了保留期
var ErrTaskNotFound = errors.New("export task not found")

// ExportStatus 是一次后台导出的当前状态
type ExportStatus struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Path      string `json:"path,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Queue 把导出任务投递到 asynq，并通过 Inspector 查询任务状态
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

// NewQueue 创建 Queue。client 不能为 nil；inspector 为 nil 时不支持状态查询。
func NewQueue(client *asynq.Client, inspector *asynq.Inspector) *Queue {
	if client == nil {
		panic("asynq client cannot be nil for Queue")
	}
	return &Queue{client: client, inspector: inspector, queue: "default"}
}

// EnqueueExport 投递导出任务，返回任务 ID
func (q *Queue) EnqueueExport(ctx context.Context, payload ExportPayload) (string, error) {
	task, err := NewExportTask(payload)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, task, asynq.Queue(q.queue))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue export task: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"task_id":    info.ID,
		"session_id": payload.SessionID,
		"size":       payload.Size,
	}).Info("Export task enqueued")
	return info.ID, nil
}

// ExportStatus 查询导出任务。完成后 Path 为 worker 写入的文件路径。
func (q *Queue) ExportStatus(ctx context.Context, taskID string) (*ExportStatus, error) {
	if q.inspector == nil {
		return nil, fmt.Errorf("export status lookup is not configured")
	}
	info, err := q.inspector.GetTaskInfo(q.queue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to inspect export task %s: %w", taskID, err)
	}
	if info.Type != TypeExportPNG {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	payload, err := ParseExportPayload(asynq.NewTask(info.Type, info.Payload))
	if err != nil {
		return nil, err
	}
	return &ExportStatus{
		TaskID:    info.ID,
		SessionID: payload.SessionID,
		State:     info.State.String(),
		Path:      string(info.Result),
		LastError: info.LastErr,
	}, nil
}
