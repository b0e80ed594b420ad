package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"novel-series-rag/internal/domain/entity"
)

// BackupList 旧版平铺备份（单个 JSON 字符串，等价于浏览器 localStorage 的 saved_stories）
type BackupList struct {
	client *Client
	key    string
}

// NewBackupList 创建备份列表
func NewBackupList(client *Client, key string) *BackupList {
	return &BackupList{client: client, key: key}
}

// Load 读取全部原始记录；键不存在时 exists 为 false
func (b *BackupList) Load(ctx context.Context) ([]map[string]any, bool, error) {
	raw, err := b.client.Get(ctx, b.key)
	if IsNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read backup %s: %w", b.key, err)
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, true, fmt.Errorf("failed to decode backup %s: %w", b.key, err)
	}
	return records, true, nil
}

// Save 覆盖写入备份
func (b *BackupList) Save(ctx context.Context, chapters []*entity.Chapter) error {
	records := make([]map[string]any, 0, len(chapters))
	for _, c := range chapters {
		records = append(records, c.ToLegacyMap())
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return b.client.Set(ctx, b.key, data, 0)
}
