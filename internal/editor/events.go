package editor

import (
	"fmt"
	"strings"
)

// EventType 是输入源送来的离散事件种类
type EventType string

const (
	PointerDown  EventType = "pointerdown"
	PointerEnter EventType = "pointerenter"
	PointerUp    EventType = "pointerup"
	TouchStart   EventType = "touchstart"
	TouchMove    EventType = "touchmove"
	TouchEnd     EventType = "touchend"
	TouchCancel  EventType = "touchcancel"
	KeyDown      EventType = "keydown"
)

// PrimaryButton 是鼠标主键 (左键) 的编号
const PrimaryButton = 0

// InputEvent 是一条来自浏览器的输入事件。
// Row/Col 只对指向格子的事件有意义，Key/Ctrl/Meta 只对 keydown 有意义。
type InputEvent struct {
	Type   EventType `json:"type"`
	Row    int       `json:"row"`
	Col    int       `json:"col"`
	Button int       `json:"button"`
	Key    string    `json:"key,omitempty"`
	Ctrl   bool      `json:"ctrl,omitempty"`
	Meta   bool      `json:"meta,omitempty"`
}

// Validate 检查事件类型是否已知
func (e InputEvent) Validate() error {
	switch e.Type {
	case PointerDown, PointerEnter, PointerUp, TouchStart, TouchMove, TouchEnd, TouchCancel, KeyDown:
		return nil
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, e.Type)
	}
}

// startsStroke 报告事件是否为笔画起点 (主键按下或触摸开始)
func (e InputEvent) startsStroke() bool {
	return (e.Type == PointerDown && e.Button == PrimaryButton) || e.Type == TouchStart
}

func (e InputEvent) continuesStroke() bool {
	return e.Type == PointerEnter || e.Type == TouchMove
}

func (e InputEvent) endsStroke() bool {
	return e.Type == PointerUp || e.Type == TouchEnd || e.Type == TouchCancel
}

// isUndoShortcut 对应 Ctrl+Z / Cmd+Z
func (e InputEvent) isUndoShortcut() bool {
	return e.Type == KeyDown && (e.Ctrl || e.Meta) && strings.EqualFold(e.Key, "z")
}
