package editor

// DrawSession 是笔画状态机: Idle <-> Stroke。
// 每个连续手势只在开始时记录一次历史，所以 undo 撤销的是"整笔"而不是单个格子。
type DrawSession struct {
	stroking bool
}

// Begin 进入 Stroke 状态。只有从 Idle 转入时返回 true，调用方据此记录历史。
func (s *DrawSession) Begin() bool {
	if s.stroking {
		return false
	}
	s.stroking = true
	return true
}

// End 无条件回到 Idle。笔画只是结束，不会回滚。
func (s *DrawSession) End() {
	s.stroking = false
}

// Active 报告当前是否处于 Stroke 状态
func (s *DrawSession) Active() bool {
	return s.stroking
}
