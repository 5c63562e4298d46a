package editor

import "dot-pattern-editor/internal/domain"

// ApplyColor 把 (row, col) 涂成 c，返回是否真的发生了修改。
// 颜色已相同时直接返回 false，拖过已经是目标色的格子不会产生多余工作。
func ApplyColor(grid *domain.Grid, row, col int, c domain.Color) bool {
	if grid.Get(row, col) == c {
		return false
	}
	grid.Set(row, col, c)
	return true
}
