// Package export 把网格快照渲染成 PNG 图像。
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"dot-pattern-editor/internal/domain"

	xdraw "golang.org/x/image/draw"
)

// MaxScale 是预览放大倍数的上限
const MaxScale = 32

var (
	// ErrEncode 表示图像数据生成失败，网格状态不受影响
	ErrEncode = errors.New("export: failed to encode image")
	ErrScale  = errors.New("export: scale out of range")
)

// Image 为每个格子生成一个像素 (1:1，行优先)，颜色映射为字面 RGB 值。
func Image(s domain.Snapshot) *image.RGBA {
	n := s.Size()
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			img.SetRGBA(col, row, s.At(row, col).RGBA())
		}
	}
	return img
}

// EncodePNG 将快照编码为 PNG 写入 w。
// scale == 1 为标准导出；scale > 1 用最近邻放大，方便预览。
func EncodePNG(w io.Writer, s domain.Snapshot, scale int) error {
	if scale < 1 || scale > MaxScale {
		return fmt.Errorf("%w: %d (allowed 1..%d)", ErrScale, scale, MaxScale)
	}
	if s.Len() == 0 {
		return fmt.Errorf("%w: empty snapshot", ErrEncode)
	}

	var img image.Image = Image(s)
	if scale > 1 {
		n := s.Size() * scale
		scaled := image.NewRGBA(image.Rect(0, 0, n, n))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		img = scaled
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

// Bytes 是 EncodePNG 的便捷版本
func Bytes(s domain.Snapshot, scale int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, s, scale); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName 返回 dot_pattern_<N>x<N>_<YYYY-MM-DD>.png
func FileName(size int, t time.Time) string {
	return fmt.Sprintf("dot_pattern_%dx%d_%s.png", size, size, t.UTC().Format("2006-01-02"))
}
