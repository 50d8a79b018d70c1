package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
)

// DatasetInfo 数据集缓存元信息（不含内容）
type DatasetInfo struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	RawSize    int64     `json:"rawSize"`
	StoredSize int64     `json:"storedSize"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// SaveDataset 保存上传文件原始字节（snappy 压缩），同一 id 只刷新使用时间
func (s *Store) SaveDataset(ctx context.Context, id, fileName string, content []byte) error {
	compressed := snappy.Encode(nil, content)
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (id, file_name, raw_size, stored_size, content, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET file_name = excluded.file_name, last_used_at = excluded.last_used_at
	`, id, fileName, len(content), len(compressed), compressed, now, now)
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// LoadDataset 读取并解压数据集，同时刷新使用时间
func (s *Store) LoadDataset(ctx context.Context, id string) (string, []byte, error) {
	var fileName string
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT file_name, content FROM datasets WHERE id = ?`, id).Scan(&fileName, &compressed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
		}
		return "", nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	content, err := snappy.Decode(nil, compressed)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decompress dataset %s: %w", id, err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE datasets SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id); err != nil {
		return "", nil, fmt.Errorf("failed to touch dataset: %w", err)
	}
	return fileName, content, nil
}

// ListDatasets 按最近使用时间倒序列出数据集
func (s *Store) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, raw_size, stored_size, created_at, last_used_at
		FROM datasets
		ORDER BY last_used_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var created, used int64
		if err := rows.Scan(&info.ID, &info.FileName, &info.RawSize, &info.StoredSize, &created, &used); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		info.CreatedAt = time.Unix(created, 0).UTC()
		info.LastUsedAt = time.Unix(used, 0).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// PruneDatasets 删除 before 之前未被使用的数据集，返回删除条数
func (s *Store) PruneDatasets(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE last_used_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune datasets: %w", err)
	}
	return res.RowsAffected()
}
