package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"dot-pattern-editor/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid_AllWall(t *testing.T) {
	g := domain.NewGrid(4)

	assert.Equal(t, 4, g.Size())
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			assert.Equal(t, domain.WallColor, g.Get(r, c), "新网格应全部为墙颜色")
		}
	}
}

func TestGrid_SnapshotRestoreRoundTrip(t *testing.T) {
	g := domain.NewGrid(3)
	g.Set(0, 1, domain.Red)
	g.Set(2, 2, domain.Blue)
	before := g.Snapshot()

	g.Restore(g.Snapshot())

	assert.True(t, before.Equal(g.Snapshot()), "restore(snapshot(g)) 不应改变网格")
}

func TestGrid_SnapshotIsIndependent(t *testing.T) {
	g := domain.NewGrid(2)
	snap := g.Snapshot()

	g.Set(1, 1, domain.White)

	assert.Equal(t, domain.Black, snap.At(1, 1), "修改网格不应影响已拍摄的快照")
	cells := snap.Cells()
	cells[0] = domain.Red
	assert.Equal(t, domain.Black, snap.At(0, 0), "Cells 应返回拷贝")
}

func TestGrid_RestoreSizeMismatchPanics(t *testing.T) {
	small := domain.NewGrid(2)
	big := domain.NewGrid(3)

	assert.Panics(t, func() { big.Restore(small.Snapshot()) })
}

func TestGrid_IndexOutOfBoundsPanics(t *testing.T) {
	g := domain.NewGrid(2)

	assert.False(t, g.Contains(2, 0))
	assert.False(t, g.Contains(0, -1))
	assert.Panics(t, func() { g.Set(2, 0, domain.Red) })
	assert.Equal(t, 3, g.Index(1, 1))
}

func TestNewSnapshot_ValidatesLength(t *testing.T) {
	_, err := domain.NewSnapshot(2, []domain.Color{domain.Red})
	assert.Error(t, err)

	s, err := domain.NewSnapshot(1, []domain.Color{domain.Blue})
	require.NoError(t, err)
	assert.Equal(t, domain.Blue, s.At(0, 0))
}

func TestParseColor(t *testing.T) {
	c, err := domain.ParseColor(" Red ")
	require.NoError(t, err)
	assert.Equal(t, domain.Red, c)

	_, err = domain.ParseColor("green")
	assert.True(t, errors.Is(err, domain.ErrUnknownColor))
}

func TestColor_RGBA(t *testing.T) {
	assert.Equal(t, uint8(0xff), domain.White.RGBA().G)
	assert.Equal(t, uint8(0x00), domain.Blue.RGBA().R)
	assert.Equal(t, uint8(0xff), domain.Blue.RGBA().B)
	assert.Equal(t, uint8(0xff), domain.Red.RGBA().R)
	assert.Equal(t, uint8(0x00), domain.Red.RGBA().G)
}

func TestColor_JSONUsesNames(t *testing.T) {
	data, err := json.Marshal([]domain.Color{domain.Black, domain.Blue})
	require.NoError(t, err)
	assert.JSONEq(t, `["black","blue"]`, string(data))

	var back []domain.Color
	require.NoError(t, json.Unmarshal([]byte(`["white","red"]`), &back))
	assert.Equal(t, []domain.Color{domain.White, domain.Red}, back)

	assert.Error(t, json.Unmarshal([]byte(`["purple"]`), &back))
}
