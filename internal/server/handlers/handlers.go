package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trendcast/internal/ingest"
	"trendcast/internal/pipeline"
	"trendcast/internal/session"
	"trendcast/internal/store"
)

// RunLister 运行记录查询（*store.Store）
type RunLister interface {
	ListRuns(ctx context.Context, sessionID string, limit int) ([]store.RunLog, error)
	ListDatasets(ctx context.Context) ([]store.DatasetInfo, error)
}

// Handlers API处理器
type Handlers struct {
	sessions  *session.Manager
	loader    *ingest.Loader
	runs      RunLister
	downloads *downloadStore

	maxUpload int64
	startedAt time.Time
}

// NewHandlers 创建处理器；runs 可为空
func NewHandlers(sessions *session.Manager, loader *ingest.Loader, runs RunLister, maxUpload int64) *Handlers {
	return &Handlers{
		sessions:  sessions,
		loader:    loader,
		runs:      runs,
		downloads: newDownloadStore(),
		maxUpload: maxUpload,
		startedAt: time.Now(),
	}
}

// Response 通用响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 错误码
const (
	CodeBadRequest             = 1001
	CodeInvalidInput           = 1002
	CodeFileTooLarge           = 1003
	CodeInvalidConfiguration   = 2001
	CodeNotFitted              = 2002
	CodeNoForecast             = 2003
	CodeNoMetrics              = 2004
	CodeInvalidCrossValidation = 2005
	CodeNotFound               = 4004
	CodeCanceled               = 4999
	CodeInternal               = 5000
)

var kindCodes = map[pipeline.Kind]int{
	pipeline.KindInvalidInput:           CodeInvalidInput,
	pipeline.KindInvalidConfiguration:   CodeInvalidConfiguration,
	pipeline.KindNotFitted:              CodeNotFitted,
	pipeline.KindNoForecast:             CodeNoForecast,
	pipeline.KindNoMetrics:              CodeNoMetrics,
	pipeline.KindInvalidCrossValidation: CodeInvalidCrossValidation,
	pipeline.KindNotFound:               CodeNotFound,
	pipeline.KindCanceled:               CodeCanceled,
	pipeline.KindInternal:               CodeInternal,
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// fail 按错误分类返回错误码与页面提示
func fail(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		errorResponse(c, CodeNotFound, "session not found")
		return
	}
	code, ok := kindCodes[pipeline.KindOf(err)]
	if !ok {
		code = CodeInternal
	}
	errorResponse(c, code, pipeline.MessageOf(err))
}

// lookup 取路径中的会话，不存在时直接写错误响应
func (h *Handlers) lookup(c *gin.Context) (*pipeline.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return s, true
}

// RegisterRoutes 注册 API 路由
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	// 系统
	router.GET("/status", h.GetStatus)
	router.GET("/options", h.GetOptions)
	router.GET("/holidays", h.GetHolidays)
	router.POST("/cache/clear", h.ClearCache)
	router.GET("/runs", h.ListRuns)
	router.GET("/datasets", h.ListDatasets)

	// 会话
	router.POST("/sessions", h.CreateSession)
	router.GET("/sessions/:id", h.GetSession)
	router.DELETE("/sessions/:id", h.DeleteSession)
	router.GET("/sessions/:id/events", h.Events)

	// 数据
	router.POST("/sessions/:id/dataset", h.UploadDataset)
	router.GET("/sessions/:id/dataset", h.GetDataset)
	router.POST("/sessions/:id/mapping", h.SetMapping)
	router.GET("/sessions/:id/series", h.GetSeries)
	router.PUT("/sessions/:id/settings", h.UpdateSettings)

	// 模型
	router.POST("/sessions/:id/fit", h.Fit)
	router.POST("/sessions/:id/predict", h.Predict)
	router.GET("/sessions/:id/forecast", h.GetForecast)
	router.GET("/sessions/:id/components", h.GetComponents)

	// 交叉验证
	router.POST("/sessions/:id/validate", h.Validate)
	router.POST("/sessions/:id/validate/stream", h.ValidateStream)
	router.GET("/sessions/:id/metrics", h.GetMetrics)
	router.GET("/sessions/:id/metrics/plot", h.GetMetricPlot)

	// 导出
	router.GET("/sessions/:id/export/:table", h.ExportLink)
	router.GET("/sessions/:id/download/:file", h.Download)
	router.POST("/sessions/:id/export/stream", h.ExportStream)
	router.GET("/downloads/:token", h.DownloadExport)
}

// finite JSON 不支持 NaN / Inf，用 null 表示
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
