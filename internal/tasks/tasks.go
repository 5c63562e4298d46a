package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"dot-pattern-editor/internal/domain"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeExportPNG     = "export:png"     // 后台编码并保存 PNG
	TypeExportCleanup = "export:cleanup" // 周期性清理过期导出文件
)

// ResultRetention 是导出任务完成后结果的保留时间
const ResultRetention = time.Hour

// ExportPayload 携带导出时刻网格的完整副本，worker 不会接触实时网格
type ExportPayload struct {
	SessionID   string         `json:"session_id"`
	Size        int            `json:"size"`
	Cells       []domain.Color `json:"cells"`
	Scale       int            `json:"scale"`
	RequestedAt time.Time      `json:"requested_at"`
}

// NewExportPayload 从快照构造导出任务数据
func NewExportPayload(sessionID string, snap domain.Snapshot, scale int, now time.Time) ExportPayload {
	return ExportPayload{
		SessionID:   sessionID,
		Size:        snap.Size(),
		Cells:       snap.Cells(),
		Scale:       scale,
		RequestedAt: now.UTC(),
	}
}

// Snapshot 把 payload 还原为快照
func (p ExportPayload) Snapshot() (domain.Snapshot, error) {
	return domain.NewSnapshot(p.Size, p.Cells)
}

// NewExportTask 创建导出任务
func NewExportTask(payload ExportPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export payload: %w", err)
	}
	// 保留已完成任务一段时间，客户端可以查询结果路径
	return asynq.NewTask(TypeExportPNG, payloadBytes,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Retention(ResultRetention),
	), nil
}

// ParseExportPayload 解析任务数据
func ParseExportPayload(t *asynq.Task) (ExportPayload, error) {
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal export payload: %w", err)
	}
	return payload, nil
}

// NewExportCleanupTask 创建周期清理任务 (无 payload)
func NewExportCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeExportCleanup, nil)
}
