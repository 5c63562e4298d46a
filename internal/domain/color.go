package domain

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
)

// Color 表示调色板中的一种颜色。零值 Black 同时也是迷宫的"墙"颜色。
type Color uint8

const (
	Black Color = iota // 默认色 / 墙
	White              // 通路
	Red
	Blue
)

// WallColor 是网格初始化、迷宫外框使用的颜色。
const WallColor = Black

// ErrUnknownColor 表示颜色名称不在固定调色板内
var ErrUnknownColor = errors.New("unknown color")

var colorNames = [...]string{
	Black: "black",
	White: "white",
	Red:   "red",
	Blue:  "blue",
}

var colorRGBA = [...]color.RGBA{
	Black: {R: 0x00, G: 0x00, B: 0x00, A: 0xff},
	White: {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	Red:   {R: 0xff, G: 0x00, B: 0x00, A: 0xff},
	Blue:  {R: 0x00, G: 0x00, B: 0xff, A: 0xff},
}

// Palette 按固定顺序返回所有可选颜色
func Palette() []Color {
	return []Color{Black, White, Red, Blue}
}

// Valid 报告 c 是否属于调色板
func (c Color) Valid() bool {
	return int(c) < len(colorNames)
}

func (c Color) String() string {
	if !c.Valid() {
		return fmt.Sprintf("color(%d)", uint8(c))
	}
	return colorNames[c]
}

// RGBA 返回颜色对应的字面 RGB 值 (不透明)。
func (c Color) RGBA() color.RGBA {
	if !c.Valid() {
		return colorRGBA[WallColor]
	}
	return colorRGBA[c]
}

// ParseColor 将颜色名称 (不区分大小写) 解析为 Color。
func ParseColor(name string) (Color, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range colorNames {
		if candidate == n {
			return Color(i), nil
		}
	}
	return WallColor, fmt.Errorf("%w: %q", ErrUnknownColor, name)
}

// MarshalText 让 Color 在 JSON 中以名称出现
func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownColor, uint8(c))
	}
	return []byte(colorNames[c]), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
