// Package maze 用"穴掘り法"(随机深度优先挖洞) 在网格上生成完美迷宫。
package maze

import (
	"errors"
	"math/rand/v2"

	"dot-pattern-editor/internal/domain"
)

// MinSize 是能生成迷宫的最小边长
const MinSize = 3

// PassageColor 是挖开的通路颜色
const PassageColor = domain.White

// ErrTooSmall 表示网格边长小于 MinSize
var ErrTooSmall = errors.New("grid must be at least 3x3 to generate a maze")

// Rand 是生成器唯一的非确定性来源。*rand.Rand (math/rand/v2) 满足此接口。
type Rand interface {
	IntN(n int) int
}

// NewRand 返回一个可复现的随机源；seed 为 0 时使用随机种子。
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type point struct{ r, c int }

// 顺序: 右、左、下、上
var directions = [...]point{
	{0, 2},
	{0, -2},
	{2, 0},
	{-2, 0},
}

// Generate 就地覆盖 grid 为迷宫图案。
// 只有奇数坐标 (行、列都在 [1, N-2]) 的格子是"房间"，相邻房间之间隔一格墙。
// 从 (1,1) 出发用显式栈回溯挖洞，最后把最外一圈强制涂成墙。
// N 为偶数时最后一行/列会被外框覆盖，靠近该边的结构可能被截断。
// 调用方负责在调用前记录历史。
func Generate(grid *domain.Grid, rnd Rand) error {
	n := grid.Size()
	if n < MinSize {
		return ErrTooSmall
	}

	grid.Fill(domain.WallColor)

	limit := n - 1 // 房间坐标必须 < limit
	visited := make([]bool, n*n)
	start := point{1, 1}
	grid.Set(start.r, start.c, PassageColor)
	visited[grid.Index(start.r, start.c)] = true
	stack := []point{start}

	neighbors := make([]point, 0, len(directions))
	for len(stack) > 0 {
		current := stack[len(stack)-1]

		neighbors = neighbors[:0]
		for _, d := range directions {
			next := point{current.r + d.r, current.c + d.c}
			if next.r < 1 || next.r >= limit || next.c < 1 || next.c >= limit {
				continue
			}
			if visited[next.r*n+next.c] {
				continue
			}
			neighbors = append(neighbors, d)
		}

		if len(neighbors) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		d := neighbors[rnd.IntN(len(neighbors))]
		// 打通当前房间与邻居之间的那一格墙
		grid.Set(current.r+d.r/2, current.c+d.c/2, PassageColor)
		next := point{current.r + d.r, current.c + d.c}
		grid.Set(next.r, next.c, PassageColor)
		visited[next.r*n+next.c] = true
		stack = append(stack, next)
	}

	enclose(grid)
	return nil
}

// enclose 把外圈全部设为墙
func enclose(grid *domain.Grid) {
	n := grid.Size()
	for i := 0; i < n; i++ {
		grid.Set(0, i, domain.WallColor)
		grid.Set(n-1, i, domain.WallColor)
		grid.Set(i, 0, domain.WallColor)
		grid.Set(i, n-1, domain.WallColor)
	}
}
