// Package backup 提供基于本地文件的旧版平铺备份
package backup

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"novel-series-rag/internal/domain/entity"
)

// FileSource JSON 文件形式的备份列表
type FileSource struct {
	path string
	mu   sync.Mutex
}

// NewFileSource 创建文件备份源
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load 读取全部原始记录；文件不存在时 exists 为 false
func (f *FileSource) Load(ctx context.Context) ([]map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read backup file: %w", err)
	}
	if len(data) == 0 {
		return nil, true, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, true, fmt.Errorf("failed to decode backup file %s: %w", f.path, err)
	}
	return records, true, nil
}

// Save 原子覆盖写入（临时文件 + rename）
func (f *FileSource) Save(ctx context.Context, chapters []*entity.Chapter) error {
	records := make([]map[string]any, 0, len(chapters))
	for _, c := range chapters {
		records = append(records, c.ToLegacyMap())
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".saved_stories-*")
	if err != nil {
		return fmt.Errorf("failed to create temp backup: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close backup: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
