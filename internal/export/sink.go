package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink 接收编码好的导出文件，负责保存
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// DirSink 把导出文件写入本地目录
type DirSink struct {
	dir string
}

// NewDirSink 创建 DirSink，目录不存在时自动创建。
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("export: directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: failed to create directory %s: %w", dir, err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Dir() string { return s.dir }

// Save 先写临时文件再重命名，读者不会看到半截文件。返回最终路径。
func (s *DirSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("export: invalid file name %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("export: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("export: failed to write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("export: failed to close %s: %w", base, err)
	}

	final := filepath.Join(s.dir, base)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("export: failed to move %s into place: %w", base, err)
	}
	return final, nil
}

// Prune 删除修改时间早于 now-olderThan 的 PNG 文件，返回删除数量。
func (s *DirSink) Prune(olderThan time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("export: failed to list %s: %w", s.dir, err)
	}
	cutoff := now.Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				logrus.WithError(err).WithField("path", path).Warn("Failed to prune export file")
				continue
			}
			removed++
		}
	}
	return removed, nil
}
