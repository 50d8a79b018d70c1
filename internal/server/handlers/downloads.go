package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// downloadTTL 工作簿下载链接有效期
	downloadTTL = 10 * time.Minute
	// maxPendingDownloads 未领取的工作簿上限，超出时淘汰最早的
	maxPendingDownloads = 32
)

// pendingDownload 已写入临时目录、等待领取的工作簿
type pendingDownload struct {
	token     string
	filePath  string
	fileName  string
	expiresAt time.Time
}

// downloadStore 一次性下载令牌，领取或过期后删除临时文件
type downloadStore struct {
	mu      sync.Mutex
	pending []pendingDownload
	now     func() time.Time
}

func newDownloadStore() *downloadStore {
	return &downloadStore{now: time.Now}
}

func (s *downloadStore) put(filePath, fileName string, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)
	for len(s.pending) >= maxPendingDownloads {
		removeQuietly(s.pending[0].filePath)
		s.pending = s.pending[1:]
	}

	item := pendingDownload{
		token:     uuid.NewString(),
		filePath:  filePath,
		fileName:  fileName,
		expiresAt: now.Add(ttl),
	}
	s.pending = append(s.pending, item)
	return item.token
}

// take 领取令牌对应的文件，令牌随即失效
func (s *downloadStore) take(token string) (pendingDownload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())
	for i, item := range s.pending {
		if item.token == token {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return item, true
		}
	}
	return pendingDownload{}, false
}

// expireLocked 按加入顺序清掉已过期的条目
func (s *downloadStore) expireLocked(now time.Time) {
	kept := s.pending[:0]
	for _, item := range s.pending {
		if now.After(item.expiresAt) {
			removeQuietly(item.filePath)
			continue
		}
		kept = append(kept, item)
	}
	s.pending = kept
}
