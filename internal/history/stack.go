// Package history 实现网格快照的有界撤销栈。
package history

import (
	"dot-pattern-editor/internal/domain"
)

// DefaultLimit 是保留的最大历史条数
const DefaultLimit = 30

// Stack 保存最近的网格快照，最新的在末尾。
// 达到上限后自动静默丢弃最旧的一条 (FIFO)，
// 最旧的那条即 baseline，Undo 永远不会弹出它。
type Stack struct {
	entries []domain.Snapshot
	limit   int
}

// New 创建容量为 limit 的历史栈，limit <= 0 时使用 DefaultLimit。
func New(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{
		entries: make([]domain.Snapshot, 0, limit),
		limit:   limit,
	}
}

// Record 拍摄 grid 的快照并压栈
func (s *Stack) Record(grid *domain.Grid) {
	if len(s.entries) >= s.limit {
		// 丢弃最旧条目，复用底层数组
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, grid.Snapshot())
}

// Undo 弹出最新条目并用新的栈顶恢复 grid。
// 只剩 baseline (<=1 条) 时不做任何事并返回 false。
func (s *Stack) Undo(grid *domain.Grid) bool {
	if !s.CanUndo() {
		return false
	}
	s.entries = s.entries[:len(s.entries)-1]
	grid.Restore(s.entries[len(s.entries)-1])
	return true
}

// Reset 清空所有条目。调用方随后必须立刻记录新的 baseline。
func (s *Stack) Reset() {
	s.entries = s.entries[:0]
}

func (s *Stack) CanUndo() bool { return len(s.entries) > 1 }

func (s *Stack) Len() int { return len(s.entries) }

func (s *Stack) Limit() int { return s.limit }

// Oldest 返回 baseline 快照
func (s *Stack) Oldest() (domain.Snapshot, bool) {
	if len(s.entries) == 0 {
		return domain.Snapshot{}, false
	}
	return s.entries[0], true
}

func (s *Stack) Newest() (domain.Snapshot, bool) {
	if len(s.entries) == 0 {
		return domain.Snapshot{}, false
	}
	return s.entries[len(s.entries)-1], true
}
