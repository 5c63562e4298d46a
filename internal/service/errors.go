package service

import (
	"context"
	"errors"
	"fmt"

	"dot-pattern-editor/internal/domain"
	"dot-pattern-editor/internal/editor"
	"dot-pattern-editor/internal/export"
	"dot-pattern-editor/internal/hub"
	"dot-pattern-editor/internal/maze"
	"dot-pattern-editor/internal/tasks"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidSize       = errors.New("please enter a valid size (a number of at least 1)")
	ErrMazeTooSmall      = errors.New("the grid must be at least 3x3 to generate a maze")
	ErrNoGrid            = errors.New("create a grid first")
	ErrUnknownColor      = errors.New("unknown color")
	ErrInvalidEvent      = errors.New("invalid input event")
	ErrInvalidScale      = errors.New("invalid export scale")
	ErrExportFailed      = errors.New("failed to generate the image")
	ErrExportUnavailable = errors.New("background export is not configured")
	ErrExportNotFound    = errors.New("export task not found")
	ErrInternalServer    = errors.New("internal server error")
)

// mapError 把下层包的错误映射为服务层错误，保留原始错误作为细节。
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var target error
	switch {
	case errors.Is(err, hub.ErrSessionNotFound), errors.Is(err, hub.ErrSessionClosed):
		target = ErrSessionNotFound
	case errors.Is(err, editor.ErrInvalidSize):
		target = ErrInvalidSize
	case errors.Is(err, maze.ErrTooSmall):
		target = ErrMazeTooSmall
	case errors.Is(err, editor.ErrNoGrid):
		target = ErrNoGrid
	case errors.Is(err, domain.ErrUnknownColor):
		target = ErrUnknownColor
	case errors.Is(err, editor.ErrInvalidEvent):
		target = ErrInvalidEvent
	case errors.Is(err, export.ErrScale):
		target = ErrInvalidScale
	case errors.Is(err, export.ErrEncode):
		target = ErrExportFailed
	case errors.Is(err, tasks.ErrTaskNotFound):
		target = ErrExportNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrInternalServer, err)
	}
	return fmt.Errorf("%w: %v", target, err)
}
