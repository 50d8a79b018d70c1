package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"trendcast/internal/exporter"
	"trendcast/internal/pipeline"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportLink 返回 CSV 的 data 链接（页面直接渲染为 <a>）
// GET /api/sessions/:id/export/:table   table = forecast | metrics
func (h *Handlers) ExportLink(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var (
		link exporter.Link
		err  error
	)
	switch c.Param("table") {
	case "forecast":
		link, _, err = s.ExportForecast()
	case "metrics":
		link, _, err = s.ExportMetrics()
	default:
		errorResponse(c, CodeBadRequest, "unknown table")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	success(c, link)
}

// Download 直接下载导出文件
// GET /api/sessions/:id/download/:file   file = forecast.csv | metrics.csv | forecast.xlsx
func (h *Handlers) Download(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	file := c.Param("file")
	switch file {
	case exporter.ForecastFileName, exporter.MetricsFileName:
		var (
			content []byte
			err     error
		)
		if file == exporter.ForecastFileName {
			_, content, err = s.ExportForecast()
		} else {
			_, content, err = s.ExportMetrics()
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Content-Disposition", contentDisposition(file))
		c.Data(http.StatusOK, csvContentType, content)
	case exporter.WorkbookFileName:
		f, err := s.ExportWorkbook(nil)
		if err != nil {
			fail(c, err)
			return
		}
		defer f.Close()
		c.Header("Content-Disposition", contentDisposition(file))
		c.Header("Content-Type", xlsxContentType)
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	default:
		errorResponse(c, CodeNotFound, "unknown file")
	}
}

// ExportStream 导出工作簿（SSE 进度 + 完成后提供一次性下载地址）
// POST /api/sessions/:id/export/stream
func (h *Handlers) ExportStream(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	st, ok := newStreamer(c)
	if !ok {
		return
	}

	st.send("start", "Exporting", gin.H{"sessionId": s.ID()})

	lastPercent := -1
	file, err := s.ExportWorkbook(func(p exporter.ProgressEvent) {
		if p.Percent == lastPercent {
			return
		}
		lastPercent = p.Percent
		st.send("progress", p.Stage, gin.H{"percent": p.Percent})
	})
	if err != nil {
		st.send("error", pipeline.MessageOf(err), gin.H{"kind": pipeline.KindOf(err)})
		return
	}
	defer file.Close()

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("trendcast_export_%d_%d.xlsx", time.Now().UnixNano(), os.Getpid()))
	if err := file.SaveAs(tempPath); err != nil {
		st.send("error", "failed to write export file: "+err.Error(), gin.H{})
		removeQuietly(tempPath)
		return
	}

	token := h.downloads.put(tempPath, exporter.WorkbookFileName, downloadTTL)
	st.send("done", "success", gin.H{
		"percent":     100,
		"downloadUrl": "/api/downloads/" + token,
	})
}

// DownloadExport 下载导出的工作簿（一次性）
// GET /api/downloads/:token
func (h *Handlers) DownloadExport(c *gin.Context) {
	item, ok := h.downloads.take(c.Param("token"))
	if !ok {
		errorResponse(c, CodeNotFound, "download link expired")
		return
	}
	defer removeQuietly(item.filePath)

	if _, err := os.Stat(item.filePath); err != nil {
		errorResponse(c, CodeNotFound, "export file missing")
		return
	}
	c.Header("Content-Disposition", contentDisposition(item.fileName))
	c.Header("Content-Type", xlsxContentType)
	c.File(item.filePath)
}

func contentDisposition(fileName string) string {
	return fmt.Sprintf("attachment; filename=\"%s\"", fileName)
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
