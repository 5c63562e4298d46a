// Package editor 持有一个像素网格编辑器的全部状态:
// 当前网格、撤销历史、笔画状态和所选颜色。
// Editor 不是并发安全的，同一时刻只能由一个 goroutine 驱动 (见 hub 包)。
package editor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dot-pattern-editor/internal/domain"
	"dot-pattern-editor/internal/history"
	"dot-pattern-editor/internal/maze"

	"github.com/sirupsen/logrus"
)

// DefaultMaxSize 是默认允许的最大网格边长
const DefaultMaxSize = 512

var (
	ErrInvalidSize  = errors.New("grid size must be a number of at least 1")
	ErrNoGrid       = errors.New("no grid has been created")
	ErrInvalidEvent = errors.New("invalid input event")
)

// Editor 是单个编辑会话的应用状态对象。
type Editor struct {
	grid     *domain.Grid // 尚未提交尺寸时为 nil
	history  *history.Stack
	session  DrawSession
	selected domain.Color

	maxSize int
	rnd     maze.Rand
	log     *logrus.Entry
}

// Option 用于定制 Editor
type Option func(*Editor)

// WithMaxSize 限制可提交的最大边长
func WithMaxSize(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// WithRand 指定迷宫生成使用的随机源
func WithRand(r maze.Rand) Option {
	return func(e *Editor) {
		if r != nil {
			e.rnd = r
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Editor) {
		if log != nil {
			e.log = log
		}
	}
}

// New 创建尚无网格的编辑器，所选颜色为黑色。
func New(opts ...Option) *Editor {
	e := &Editor{
		history:  history.New(history.DefaultLimit),
		selected: domain.WallColor,
		maxSize:  DefaultMaxSize,
		log:      logrus.WithField("component", "editor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = maze.NewRand(0)
	}
	return e
}

// SubmitGridSize 解析用户输入的边长并重建网格。
// 非数字、小于 1 或超过上限时返回 ErrInvalidSize，状态不变。
func (e *Editor) SubmitGridSize(input string) error {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSize, input)
	}
	return e.CreateGrid(n)
}

// CreateGrid 丢弃旧网格，新建全墙的 N×N 网格，重置历史并记录 baseline。
func (e *Editor) CreateGrid(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}
	if n > e.maxSize {
		return fmt.Errorf("%w: %d exceeds the maximum of %d", ErrInvalidSize, n, e.maxSize)
	}

	e.grid = domain.NewGrid(n)
	e.history.Reset()
	e.session.End()
	e.history.Record(e.grid)

	e.log.WithField("size", n).Debug("Grid created")
	return nil
}

// SelectColor 更新当前画笔颜色
func (e *Editor) SelectColor(c domain.Color) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrUnknownColor, uint8(c))
	}
	e.selected = c
	return nil
}

// HandleEvent 把一条输入事件交给笔画状态机。返回可观察状态是否发生了变化。
func (e *Editor) HandleEvent(ev InputEvent) bool {
	switch {
	case ev.isUndoShortcut():
		// 与笔画状态无关，也不会重置笔画
		return e.Undo()

	case ev.endsStroke():
		// 在任何位置松开都会结束笔画，包括网格之外
		wasActive := e.session.Active()
		e.session.End()
		return wasActive

	case e.grid == nil || !e.grid.Contains(ev.Row, ev.Col):
		return false

	case ev.startsStroke():
		began := e.session.Begin()
		if began {
			// 每笔只在开始、第一次上色之前记录一次
			e.history.Record(e.grid)
		}
		painted := ApplyColor(e.grid, ev.Row, ev.Col, e.selected)
		return began || painted

	case ev.continuesStroke():
		if !e.session.Active() {
			return false
		}
		return ApplyColor(e.grid, ev.Row, ev.Col, e.selected)
	}
	return false
}

// Undo 撤销最近一笔 (或一次迷宫生成)。只剩 baseline 时静默忽略。
func (e *Editor) Undo() bool {
	if e.grid == nil {
		return false
	}
	return e.history.Undo(e.grid)
}

func (e *Editor) CanUndo() bool {
	return e.grid != nil && e.history.CanUndo()
}

// GenerateMaze 记录一条历史后把网格覆盖为迷宫。
func (e *Editor) GenerateMaze() error {
	if e.grid == nil {
		return ErrNoGrid
	}
	if e.grid.Size() < maze.MinSize {
		return maze.ErrTooSmall
	}

	e.history.Record(e.grid)
	if err := maze.Generate(e.grid, e.rnd); err != nil {
		// 尺寸已检查过，走到这里说明生成器自身出错
		return fmt.Errorf("editor: maze generation failed: %w", err)
	}
	e.log.WithField("size", e.grid.Size()).Debug("Maze generated")
	return nil
}

// Reset 回到创建网格之前的状态: 无网格、无历史、颜色恢复为黑色。
func (e *Editor) Reset() {
	e.grid = nil
	e.history.Reset()
	e.session.End()
	e.selected = domain.WallColor
}

// Snapshot 返回当前网格的快照，用于导出。
func (e *Editor) Snapshot() (domain.Snapshot, error) {
	if e.grid == nil {
		return domain.Snapshot{}, ErrNoGrid
	}
	return e.grid.Snapshot(), nil
}

// State 是发给客户端的只读视图
type State struct {
	HasGrid    bool           `json:"has_grid"`
	Size       int            `json:"size"`
	Cells      []domain.Color `json:"cells"`
	Selected   domain.Color   `json:"selected"`
	CanUndo    bool           `json:"can_undo"`
	Drawing    bool           `json:"drawing"`
	HistoryLen int            `json:"history_len"`
}

func (e *Editor) State() State {
	st := State{
		Selected:   e.selected,
		CanUndo:    e.CanUndo(),
		Drawing:    e.session.Active(),
		HistoryLen: e.history.Len(),
		Cells:      []domain.Color{},
	}
	if e.grid != nil {
		snap := e.grid.Snapshot()
		st.HasGrid = true
		st.Size = snap.Size()
		st.Cells = snap.Cells()
	}
	return st
}

// Selected 返回当前画笔颜色
func (e *Editor) Selected() domain.Color { return e.selected }

func (e *Editor) Drawing() bool { return e.session.Active() }
