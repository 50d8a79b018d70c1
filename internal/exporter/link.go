package exporter

import (
	"encoding/base64"
	"fmt"
)

// 下载文件名与链接提示
const (
	ForecastFileName = "forecast.csv"
	MetricsFileName  = "metrics.csv"
	WorkbookFileName = "forecast.xlsx"

	ForecastLinkHint = "(click to download csv file **forecast.csv**)"
	MetricsLinkHint  = "(click derecho > guardar como **metrics.csv**)"
)

// Link base64 内嵌的 CSV 下载链接
type Link struct {
	FileName string `json:"fileName"`
	Href     string `json:"href"`
	HTML     string `json:"html"`
	Hint     string `json:"hint"`
	Size     int    `json:"size"`
}

// DataLink 将 CSV 内容编码为 data URI 链接
func DataLink(content []byte, fileName, hint string) Link {
	href := "data:file/csv;base64," + base64.StdEncoding.EncodeToString(content)
	return Link{
		FileName: fileName,
		Href:     href,
		HTML:     fmt.Sprintf(`<a href="%s">Download CSV File</a>`, href),
		Hint:     hint,
		Size:     len(content),
	}
}

// ForecastLink 预测表下载链接
func ForecastLink(content []byte) Link {
	return DataLink(content, ForecastFileName, ForecastLinkHint)
}

// MetricsLink 指标表下载链接
func MetricsLink(content []byte) Link {
	return DataLink(content, MetricsFileName, MetricsLinkHint)
}
