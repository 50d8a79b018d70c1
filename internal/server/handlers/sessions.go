package handlers

import (
	"bytes"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"trendcast/internal/model"
	"trendcast/internal/pipeline"
	"trendcast/internal/series"
)

// previewRows 数据预览行数
const previewRows = 5

// CreateSession 新建会话
// POST /api/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	success(c, s.Snapshot())
}

// GetSession 会话状态
// GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	success(c, s.Snapshot())
}

// DeleteSession 结束会话
// DELETE /api/sessions/:id
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"deleted": true})
}

// DatasetResponse 上传结果
type DatasetResponse struct {
	Dataset      *model.Dataset `json:"dataset"`
	Cached       bool           `json:"cached"`
	Preview      [][]string     `json:"preview"`
	DateColumn   string         `json:"dateColumn"`
	ValueColumn  string         `json:"valueColumn"`
	MappingError string         `json:"mappingError,omitempty"`
}

// UploadDataset 上传 CSV / xlsx 文件，或按 datasetId 重新打开已缓存的数据集。
// 上传后按默认列（第一列日期、第二列数值）完成映射。
// POST /api/sessions/:id/dataset
func (h *Handlers) UploadDataset(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var (
		ds     *model.Dataset
		cached bool
		err    error
	)
	if id := c.PostForm("datasetId"); id != "" {
		ds, err = h.loader.Open(c.Request.Context(), id)
		cached = err == nil
	} else {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			errorResponse(c, CodeBadRequest, "please upload a file")
			return
		}
		defer file.Close()

		if h.maxUpload > 0 && header.Size > h.maxUpload {
			errorResponse(c, CodeFileTooLarge, "file too large, limit is "+strconv.FormatInt(h.maxUpload>>20, 10)+"MB")
			return
		}
		var buf bytes.Buffer
		if _, ferr := io.Copy(&buf, file); ferr != nil {
			errorResponse(c, CodeBadRequest, "failed to read file")
			return
		}
		ds, cached, err = h.loader.Load(c.Request.Context(), header.Filename, buf.Bytes())
	}
	if err != nil {
		fail(c, err)
		return
	}

	if err := s.Load(ds); err != nil {
		fail(c, err)
		return
	}

	resp := DatasetResponse{
		Dataset: ds,
		Cached:  cached,
		Preview: ds.Preview(previewRows),
	}
	resp.DateColumn, resp.ValueColumn = series.DefaultColumns(ds)
	if _, err := s.MapColumns(resp.DateColumn, resp.ValueColumn); err != nil {
		resp.MappingError = pipeline.MessageOf(err)
	}
	success(c, resp)
}

// GetDataset 当前数据集及预览
// GET /api/sessions/:id/dataset?rows=5
func (h *Handlers) GetDataset(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	ds, err := s.Dataset()
	if err != nil {
		fail(c, err)
		return
	}
	n, err := queryInt(c, "rows", previewRows)
	if err != nil || n < 0 {
		errorResponse(c, CodeBadRequest, "invalid rows")
		return
	}
	success(c, gin.H{
		"dataset": ds,
		"preview": ds.Preview(n),
	})
}

// MappingRequest 列映射请求
type MappingRequest struct {
	DateColumn  string `json:"dateColumn"`
	ValueColumn string `json:"valueColumn"`
}

// SetMapping 选择日期列与数值列
// POST /api/sessions/:id/mapping
func (h *Handlers) SetMapping(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req MappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, CodeBadRequest, "invalid request body")
		return
	}
	ser, err := s.MapColumns(req.DateColumn, req.ValueColumn)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{
		"dateColumn":  ser.DateColumn,
		"valueColumn": ser.ValueColumn,
		"points":      ser.Len(),
	})
}

// GetSeries 规范序列及描述统计
// GET /api/sessions/:id/series
func (h *Handlers) GetSeries(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	ser, desc, err := s.Series()
	if err != nil {
		fail(c, err)
		return
	}

	points := make([]gin.H, len(ser.Points))
	for i, p := range ser.Points {
		points[i] = gin.H{"ds": p.DS, "y": finite(p.Y)}
	}
	success(c, gin.H{
		"dateColumn":  ser.DateColumn,
		"valueColumn": ser.ValueColumn,
		"points":      points,
		"description": describeJSON(desc),
	})
}

func describeJSON(d series.Description) gin.H {
	return gin.H{
		"count": d.Count,
		"mean":  finite(d.Mean),
		"std":   finite(d.Std),
		"min":   finite(d.Min),
		"25%":   finite(d.P25),
		"50%":   finite(d.P50),
		"75%":   finite(d.P75),
		"max":   finite(d.Max),
		"first": d.First,
		"last":  d.Last,
	}
}

// UpdateSettings 更新页面选择；返回解析后的配置与提示
// PUT /api/sessions/:id/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	current, _ := s.Settings()
	sel := current
	if err := c.ShouldBindJSON(&sel); err != nil {
		errorResponse(c, CodeBadRequest, "invalid request body")
		return
	}
	resolved, err := s.Configure(sel)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{
		"selections": sel,
		"settings":   resolved,
	})
}
