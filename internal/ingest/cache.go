package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trendcast/internal/model"
)

// ErrUnknownDataset 缓存和存储中都找不到该数据集
var ErrUnknownDataset = errors.New("unknown dataset")

// BlobStore 原始文件持久化（由 SQLite store 实现）
type BlobStore interface {
	SaveDataset(ctx context.Context, id, fileName string, content []byte) error
	LoadDataset(ctx context.Context, id string) (fileName string, content []byte, err error)
}

// Loader 带缓存的数据集加载器：相同内容的文件只解析一次
type Loader struct {
	blobs BlobStore

	mu      sync.RWMutex
	entries map[string]*model.Dataset
	parses  int
}

// NewLoader 创建加载器，blobs 可以为 nil（仅内存缓存）
func NewLoader(blobs BlobStore) *Loader {
	return &Loader{
		blobs:   blobs,
		entries: make(map[string]*model.Dataset),
	}
}

// Load 解析上传文件；命中缓存时 cached 为 true，不会重新解析
func (l *Loader) Load(ctx context.Context, fileName string, data []byte) (ds *model.Dataset, cached bool, err error) {
	id := Fingerprint(data)

	l.mu.RLock()
	ds, ok := l.entries[id]
	l.mu.RUnlock()
	if ok {
		return ds, true, nil
	}

	ds, err = l.parse(fileName, data)
	if err != nil {
		return nil, false, err
	}

	if l.blobs != nil {
		if err := l.blobs.SaveDataset(ctx, id, ds.FileName, data); err != nil {
			return nil, false, fmt.Errorf("persist dataset: %w", err)
		}
	}
	return ds, false, nil
}

// Open 按 ID 重新打开数据集：先查内存缓存，再从存储加载原始文件解析
func (l *Loader) Open(ctx context.Context, id string) (*model.Dataset, error) {
	l.mu.RLock()
	ds, ok := l.entries[id]
	l.mu.RUnlock()
	if ok {
		return ds, nil
	}
	if l.blobs == nil {
		return nil, ErrUnknownDataset
	}

	fileName, content, err := l.blobs.LoadDataset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownDataset, err)
	}
	return l.parse(fileName, content)
}

func (l *Loader) parse(fileName string, data []byte) (*model.Dataset, error) {
	ds, err := Parse(fileName, data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.parses++
	if existing, ok := l.entries[ds.ID]; ok {
		return existing, nil
	}
	l.entries[ds.ID] = ds
	return ds, nil
}

// Clear 清空内存缓存（页面 "Clear cache" 按钮）
func (l *Loader) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	l.entries = make(map[string]*model.Dataset)
	return n
}

// Len 缓存条目数
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Parses 实际解析次数（用于观察缓存命中）
func (l *Loader) Parses() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.parses
}
