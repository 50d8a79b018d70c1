package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"

	"trendcast/internal/config"
	"trendcast/internal/ingest"
	"trendcast/internal/pipeline"
	"trendcast/internal/server/handlers"
	"trendcast/internal/session"
	"trendcast/internal/store"
)

//go:embed all:dist
var staticFiles embed.FS

// Server HTTP服务器
type Server struct {
	router   *gin.Engine
	store    *store.Store
	sessions *session.Manager
	handlers *handlers.Handlers

	mu   sync.Mutex
	http *http.Server
}

// NewServer 创建服务器：打开数据库、创建会话管理器并注册路由
func NewServer(cfg *config.AppConfig) (*Server, error) {
	devMode := cfg.Server.DevMode
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}
	dbPath := filepath.Join(dataDir, "trendcast.db")

	sqliteStore, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sessions := session.NewManager(session.Config{
		TTL:              cfg.SessionTTL(),
		SweepInterval:    cfg.SweepInterval(),
		DatasetRetention: cfg.DatasetRetention(),
		Pipeline:         opts,
	}, sqliteStore, session.NewHub())
	if err := sessions.Start(); err != nil {
		sqliteStore.Close()
		return nil, err
	}

	loader := ingest.NewLoader(sqliteStore)
	s := &Server{
		router:   gin.Default(),
		store:    sqliteStore,
		sessions: sessions,
		handlers: handlers.NewHandlers(sessions, loader, sqliteStore, cfg.MaxUploadBytes()),
	}
	s.router.MaxMultipartMemory = cfg.MaxUploadBytes()

	s.setupRoutes(devMode)

	log.Printf("[server] database %s, session ttl %s", sqliteStore.Path(), cfg.SessionTTL())
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(devMode bool) {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		s.handlers.RegisterRoutes(api)
	}

	if devMode {
		// 开发模式：代理到前端开发服务器
		s.router.NoRoute(func(c *gin.Context) {
			c.Redirect(http.StatusTemporaryRedirect, "http://localhost:5173"+c.Request.URL.Path)
		})
		return
	}

	sub, _ := fs.Sub(staticFiles, "dist")
	index := func(c *gin.Context) {
		data, err := fs.ReadFile(sub, "index.html")
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	}
	s.router.GET("/", index)
	s.router.NoRoute(index)
}

// Handler 路由（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，Shutdown 后返回 nil
func (s *Server) Run(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接收请求、停止定时任务并关闭数据库
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		errs = append(errs, srv.Shutdown(ctx))
	}
	s.sessions.Stop()
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
