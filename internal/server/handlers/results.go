package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trendcast/internal/diagnostics"
	"trendcast/internal/pipeline"
)

// Fit 拟合模型
// POST /api/sessions/:id/fit
func (h *Handlers) Fit(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	summary, err := s.Fit(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	success(c, summary)
}

// Predict 生成预测
// POST /api/sessions/:id/predict
func (h *Handlers) Predict(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	res, err := s.Predict(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{
		"rows": res.Len(),
		"tail": encodeRows(res.Tail(previewRows)),
	})
}

// GetForecast 预测结果；tail>0 时只返回最后 tail 行
// GET /api/sessions/:id/forecast?tail=10
func (h *Handlers) GetForecast(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	res, err := s.Forecast()
	if err != nil {
		fail(c, err)
		return
	}
	tail, err := queryInt(c, "tail", 0)
	if err != nil || tail < 0 {
		errorResponse(c, CodeBadRequest, "invalid tail")
		return
	}
	if tail > 0 {
		success(c, gin.H{"rows": encodeRows(res.Tail(tail))})
		return
	}
	success(c, encodeForecast(res))
}

// GetComponents 趋势与季节分解
// GET /api/sessions/:id/components
func (h *Handlers) GetComponents(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	comps, err := s.Components()
	if err != nil {
		fail(c, err)
		return
	}
	success(c, encodeDecomposition(comps))
}

// metricsJSON 指标表；缺失或非有限值输出为 null
func metricsJSON(m *diagnostics.Metrics) gin.H {
	rows := make([]gin.H, len(m.Rows))
	for i, r := range m.Rows {
		row := gin.H{
			"horizon":     diagnostics.FormatHorizon(r.Horizon),
			"horizonDays": r.Horizon.Hours() / 24,
		}
		for _, name := range m.Columns {
			v, _ := r.Value(name)
			row[name] = finite(v)
		}
		rows[i] = row
	}
	return gin.H{
		"columns": append([]string{"horizon"}, m.Columns...),
		"rows":    rows,
		"window":  m.Window,
	}
}

// Validate 交叉验证（同步）
// POST /api/sessions/:id/validate
func (h *Handlers) Validate(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	m, err := s.Validate(c.Request.Context(), nil)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, metricsJSON(m))
}

type progressEvent struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// streamer SSE 输出
type streamer struct {
	c       *gin.Context
	flusher http.Flusher
}

func newStreamer(c *gin.Context) (*streamer, bool) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		errorResponse(c, CodeInternal, "streaming not supported")
		return nil, false
	}
	return &streamer{c: c, flusher: flusher}, true
}

func (s *streamer) send(typ, message string, data interface{}) {
	b, err := json.Marshal(progressEvent{
		Type:      typ,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	fmt.Fprintf(s.c.Writer, "data: %s\n\n", b)
	s.flusher.Flush()
}

// ValidateStream 交叉验证（SSE 推送每个 cutoff 的进度，完成后推送指标）
// POST /api/sessions/:id/validate/stream
func (h *Handlers) ValidateStream(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	st, ok := newStreamer(c)
	if !ok {
		return
	}

	st.send("start", "Cross-validating", gin.H{"sessionId": s.ID()})
	m, err := s.Validate(c.Request.Context(), func(p diagnostics.Progress) {
		percent := 0
		if p.Total > 0 {
			percent = p.Done * 100 / p.Total
		}
		st.send("progress", "cutoff "+p.Cutoff.Format("2006-01-02"), gin.H{
			"done":    p.Done,
			"total":   p.Total,
			"percent": percent,
		})
	})
	if err != nil {
		st.send("error", pipeline.MessageOf(err), gin.H{"kind": pipeline.KindOf(err)})
		return
	}
	st.send("done", "success", metricsJSON(m))
}

// GetMetrics 最近一次交叉验证指标
// GET /api/sessions/:id/metrics
func (h *Handlers) GetMetrics(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	m, err := s.Metrics()
	if err != nil {
		fail(c, err)
		return
	}
	success(c, metricsJSON(m))
}

// GetMetricPlot 指标图数据
// GET /api/sessions/:id/metrics/plot?metric=mae
func (h *Handlers) GetMetricPlot(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	metric := c.DefaultQuery("metric", diagnostics.MetricMSE)
	plot, err := s.MetricPlot(metric)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, plot)
}
