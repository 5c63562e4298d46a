package maze_test

import (
	"errors"
	"testing"

	"dot-pattern-editor/internal/domain"
	"dot-pattern-editor/internal/maze"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstChoice 总是选择第一个候选邻居
type firstChoice struct{ calls int }

func (f *firstChoice) IntN(n int) int {
	f.calls++
	return 0
}

func passable(g *domain.Grid, r, c int) bool {
	return g.Contains(r, c) && g.Get(r, c) != domain.WallColor
}

// reachableFrom 返回从 (r,c) 出发经由非墙格子可达的格子集合
func reachableFrom(g *domain.Grid, r, c int) map[[2]int]bool {
	seen := map[[2]int]bool{{r, c}: true}
	queue := [][2]int{{r, c}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range [][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}} {
			next := [2]int{cur[0] + d[0], cur[1] + d[1]}
			if !seen[next] && passable(g, next[0], next[1]) {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// assertPerfectMaze 检查外框全墙、所有房间连通且通路图无环 (边数 = 点数 - 1)
func assertPerfectMaze(t *testing.T, g *domain.Grid) {
	t.Helper()
	n := g.Size()
	for i := 0; i < n; i++ {
		assert.Equal(t, domain.WallColor, g.Get(0, i), "top border")
		assert.Equal(t, domain.WallColor, g.Get(n-1, i), "bottom border")
		assert.Equal(t, domain.WallColor, g.Get(i, 0), "left border")
		assert.Equal(t, domain.WallColor, g.Get(i, n-1), "right border")
	}

	reach := reachableFrom(g, 1, 1)
	vertices, edges := 0, 0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if !passable(g, r, c) {
				continue
			}
			vertices++
			assert.True(t, reach[[2]int{r, c}], "通路格 (%d,%d) 应可从 (1,1) 到达", r, c)
			if passable(g, r, c+1) {
				edges++
			}
			if passable(g, r+1, c) {
				edges++
			}
		}
	}
	for r := 1; r <= n-2; r += 2 {
		for c := 1; c <= n-2; c += 2 {
			assert.True(t, reach[[2]int{r, c}], "房间 (%d,%d) 应可从 (1,1) 到达", r, c)
		}
	}
	assert.Equal(t, vertices-1, edges, "连通且无环的通路图应满足 E = V - 1")
}

func TestGenerate_FiveByFiveIsPerfect(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		g := domain.NewGrid(5)
		g.Fill(domain.Red)

		require.NoError(t, maze.Generate(g, maze.NewRand(seed)))

		assertPerfectMaze(t, g)
		for _, p := range [][2]int{{1, 1}, {1, 3}, {3, 1}, {3, 3}} {
			assert.Equal(t, maze.PassageColor, g.Get(p[0], p[1]))
		}
	}
}

func TestGenerate_LargeOddGridIsPerfect(t *testing.T) {
	g := domain.NewGrid(31)

	require.NoError(t, maze.Generate(g, maze.NewRand(42)))

	assertPerfectMaze(t, g)
}

func TestGenerate_ScriptedChoicesAreDeterministic(t *testing.T) {
	// Arrange: 永远选第一个候选 (右、左、下、上 的顺序)
	g := domain.NewGrid(5)
	rnd := &firstChoice{}

	// Act
	require.NoError(t, maze.Generate(g, rnd))

	// Assert: (1,1)→(1,3)→(3,3)→(3,1)
	want := []string{
		"#####",
		"#...#",
		"###.#",
		"#...#",
		"#####",
	}
	for r, row := range want {
		for c, ch := range row {
			expected := domain.WallColor
			if ch == '.' {
				expected = maze.PassageColor
			}
			assert.Equal(t, expected, g.Get(r, c), "cell (%d,%d)", r, c)
		}
	}
	assert.Equal(t, 3, rnd.calls)
}

func TestGenerate_SameSeedSameMaze(t *testing.T) {
	a := domain.NewGrid(15)
	b := domain.NewGrid(15)

	require.NoError(t, maze.Generate(a, maze.NewRand(7)))
	require.NoError(t, maze.Generate(b, maze.NewRand(7)))

	assert.True(t, a.Snapshot().Equal(b.Snapshot()))
}

func TestGenerate_TooSmallLeavesGridUntouched(t *testing.T) {
	g := domain.NewGrid(2)
	g.Set(0, 0, domain.Blue)
	before := g.Snapshot()

	err := maze.Generate(g, maze.NewRand(1))

	assert.True(t, errors.Is(err, maze.ErrTooSmall))
	assert.True(t, before.Equal(g.Snapshot()))
}

func TestGenerate_EvenSizeDoesNotPanic(t *testing.T) {
	for _, n := range []int{4, 6, 10} {
		g := domain.NewGrid(n)

		require.NoError(t, maze.Generate(g, maze.NewRand(3)))

		for i := 0; i < n; i++ {
			assert.Equal(t, domain.WallColor, g.Get(n-1, i))
			assert.Equal(t, domain.WallColor, g.Get(i, n-1))
		}
		assert.Equal(t, maze.PassageColor, g.Get(1, 1))
	}
}

func TestGenerate_ThreeByThreeHasSingleChamber(t *testing.T) {
	g := domain.NewGrid(3)

	require.NoError(t, maze.Generate(g, &firstChoice{}))

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if r == 1 && c == 1 {
				assert.Equal(t, maze.PassageColor, g.Get(r, c))
				continue
			}
			assert.Equal(t, domain.WallColor, g.Get(r, c))
		}
	}
}
