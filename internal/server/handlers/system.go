package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trendcast/internal/holidays"
	"trendcast/internal/model"
	"trendcast/internal/settings"
)

// StatusResponse 系统状态
type StatusResponse struct {
	Sessions       int       `json:"sessions"`
	CachedDatasets int       `json:"cachedDatasets"`
	Parses         int       `json:"parses"`
	StartedAt      time.Time `json:"startedAt"`
	Uptime         string    `json:"uptime"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handlers) GetStatus(c *gin.Context) {
	success(c, StatusResponse{
		Sessions:       h.sessions.Len(),
		CachedDatasets: h.loader.Len(),
		Parses:         h.loader.Parses(),
		StartedAt:      h.startedAt,
		Uptime:         time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// GetOptions 页面控件定义与默认值
// GET /api/options
func (h *Handlers) GetOptions(c *gin.Context) {
	success(c, settings.Options())
}

// GetHolidays 节假日列表
// GET /api/holidays?country=Italy&from=2020&to=2021
func (h *Handlers) GetHolidays(c *gin.Context) {
	country := strings.TrimSpace(c.Query("country"))
	if country == "" || country == model.CountryPlaceholder {
		errorResponse(c, CodeBadRequest, settings.MsgPickCountry)
		return
	}

	year := time.Now().Year()
	from, err := queryInt(c, "from", year)
	if err != nil {
		errorResponse(c, CodeBadRequest, "invalid from year")
		return
	}
	to, err := queryInt(c, "to", from)
	if err != nil || to < from || to-from > 50 {
		errorResponse(c, CodeBadRequest, "invalid to year")
		return
	}

	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	list, err := holidays.ForYears(country, years...)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{
		"country":  country,
		"holidays": list,
	})
}

// ClearCache 清空数据集内存缓存
// POST /api/cache/clear
func (h *Handlers) ClearCache(c *gin.Context) {
	success(c, gin.H{"cleared": h.loader.Clear()})
}

// ListRuns 阶段运行记录
// GET /api/runs?session=<id>&limit=50
func (h *Handlers) ListRuns(c *gin.Context) {
	if h.runs == nil {
		success(c, []struct{}{})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		errorResponse(c, CodeBadRequest, "invalid limit")
		return
	}
	runs, err := h.runs.ListRuns(c.Request.Context(), c.Query("session"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, runs)
}

// ListDatasets 已持久化的上传文件
// GET /api/datasets
func (h *Handlers) ListDatasets(c *gin.Context) {
	if h.runs == nil {
		success(c, []struct{}{})
		return
	}
	list, err := h.runs.ListDatasets(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	success(c, list)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
