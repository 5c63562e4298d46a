package domain

import (
	"fmt"
)

// Grid 是 N×N 的像素网格，按行优先存储每个格子的颜色。
// 颜色直接保存在类型化字段中，渲染层只从这里派生样式。
type Grid struct {
	size  int
	cells []Color
}

// NewGrid 创建一个全部为墙颜色的 N×N 网格。size 必须 >= 1。
func NewGrid(size int) *Grid {
	if size < 1 {
		panic(fmt.Sprintf("domain: grid size must be positive, got %d", size))
	}
	// Black 是零值，make 之后即为全墙状态
	return &Grid{
		size:  size,
		cells: make([]Color, size*size),
	}
}

// Size 返回边长 N
func (g *Grid) Size() int { return g.size }

// Contains 报告 (row, col) 是否落在网格内
func (g *Grid) Contains(row, col int) bool {
	return row >= 0 && row < g.size && col >= 0 && col < g.size
}

// Index 返回 (row, col) 的扁平下标 row*N+col
func (g *Grid) Index(row, col int) int {
	if !g.Contains(row, col) {
		panic(fmt.Sprintf("domain: cell (%d,%d) out of bounds for %dx%d grid", row, col, g.size, g.size))
	}
	return row*g.size + col
}

func (g *Grid) Get(row, col int) Color {
	return g.cells[g.Index(row, col)]
}

// Set 无条件覆盖格子颜色，除越界外不做任何校验。
func (g *Grid) Set(row, col int, c Color) {
	g.cells[g.Index(row, col)] = c
}

// Fill 将所有格子设为 c
func (g *Grid) Fill(c Color) {
	for i := range g.cells {
		g.cells[i] = c
	}
}

// Snapshot 返回当前颜色状态的独立深拷贝。
func (g *Grid) Snapshot() Snapshot {
	cells := make([]Color, len(g.cells))
	copy(cells, g.cells)
	return Snapshot{size: g.size, cells: cells}
}

// Restore 用快照覆盖全部格子。
// 历史在 N 变化时总会被重置，所以尺寸不一致属于调用方违约，直接 panic。
func (g *Grid) Restore(s Snapshot) {
	if len(s.cells) != len(g.cells) {
		panic(fmt.Sprintf("domain: snapshot of %d cells cannot restore %dx%d grid", len(s.cells), g.size, g.size))
	}
	copy(g.cells, s.cells)
}

// Snapshot 是某一时刻网格颜色的不可变副本。
type Snapshot struct {
	size  int
	cells []Color
}

// NewSnapshot 从行优先的颜色切片构造快照 (会复制输入)。
func NewSnapshot(size int, cells []Color) (Snapshot, error) {
	if size < 1 || len(cells) != size*size {
		return Snapshot{}, fmt.Errorf("domain: %d cells do not form a %dx%d snapshot", len(cells), size, size)
	}
	owned := make([]Color, len(cells))
	copy(owned, cells)
	return Snapshot{size: size, cells: owned}, nil
}

func (s Snapshot) Size() int { return s.size }

// Len 返回格子总数 N²
func (s Snapshot) Len() int { return len(s.cells) }

func (s Snapshot) At(row, col int) Color {
	return s.cells[row*s.size+col]
}

// Cells 返回行优先颜色切片的拷贝
func (s Snapshot) Cells() []Color {
	out := make([]Color, len(s.cells))
	copy(out, s.cells)
	return out
}

// Equal 报告两个快照的尺寸和内容是否完全一致
func (s Snapshot) Equal(other Snapshot) bool {
	if s.size != other.size || len(s.cells) != len(other.cells) {
		return false
	}
	for i := range s.cells {
		if s.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}
