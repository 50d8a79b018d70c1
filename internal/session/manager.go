// Package session 管理浏览器会话：创建、过期清理与事件推送。
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"trendcast/internal/pipeline"
	"trendcast/internal/store"
)

// ErrNotFound 会话不存在或已过期
var ErrNotFound = errors.New("session not found")

// Journal 运行记录与数据集缓存的持久化（*store.Store）
type Journal interface {
	CreateRun(ctx context.Context, run store.RunLog) (int64, error)
	PruneDatasets(ctx context.Context, before time.Time) (int64, error)
}

// Config 会话管理配置
type Config struct {
	TTL              time.Duration
	SweepInterval    time.Duration
	DatasetRetention time.Duration
	Pipeline         pipeline.Options
}

// Manager 会话注册表
type Manager struct {
	cfg     Config
	journal Journal
	hub     *Hub

	mu       sync.RWMutex
	sessions map[string]*pipeline.Session

	scheduler *gocron.Scheduler
	now       func() time.Time
}

// NewManager 创建会话管理器；journal 可为空
func NewManager(cfg Config, journal Journal, hub *Hub) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Manager{
		cfg:      cfg,
		journal:  journal,
		hub:      hub,
		sessions: make(map[string]*pipeline.Session),
		now:      time.Now,
	}
}

// Hub 事件推送中心
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Create 新建会话
func (m *Manager) Create() *pipeline.Session {
	id := uuid.New().String()
	s := pipeline.NewSession(id, m.cfg.Pipeline, m)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Printf("[session] %s created", id)
	return s
}

// Get 获取会话
func (m *Manager) Get(id string) (*pipeline.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Touch()
	return s, nil
}

// Delete 删除会话并断开其事件连接
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.hub.CloseSession(id)
	log.Printf("[session] %s deleted", id)
	return nil
}

// Len 活跃会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs 活跃会话 id（排序）
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sweep 删除超过 TTL 未活动的会话，并清理过期的数据集缓存
func (m *Manager) Sweep(ctx context.Context) (sessions int, datasets int64) {
	now := m.now()
	var expired []string

	// 不在注册表锁内判断过期
	m.mu.RLock()
	candidates := make(map[string]*pipeline.Session, len(m.sessions))
	for id, s := range m.sessions {
		candidates[id] = s
	}
	m.mu.RUnlock()

	for id, s := range candidates {
		if now.Sub(s.UpdatedAt()) <= m.cfg.TTL {
			continue
		}
		m.mu.Lock()
		if m.sessions[id] == s {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
		m.mu.Unlock()
	}

	for _, id := range expired {
		m.hub.CloseSession(id)
		log.Printf("[session] %s expired", id)
	}

	if m.journal != nil && m.cfg.DatasetRetention > 0 {
		n, err := m.journal.PruneDatasets(ctx, now.Add(-m.cfg.DatasetRetention))
		if err != nil {
			log.Printf("[session] prune datasets failed: %v", err)
		}
		datasets = n
	}
	return len(expired), datasets
}

// Start 启动定时清理任务
func (m *Manager) Start() error {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(m.cfg.SweepInterval).Do(func() {
		n, pruned := m.Sweep(context.Background())
		if n > 0 || pruned > 0 {
			log.Printf("[session] sweep: %d sessions expired, %d datasets pruned", n, pruned)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	s.StartAsync()
	m.scheduler = s
	return nil
}

// Stop 停止定时任务
func (m *Manager) Stop() {
	if m.scheduler != nil {
		m.scheduler.Stop()
		m.scheduler = nil
	}
}
