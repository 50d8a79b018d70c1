package exporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"trendcast/internal/diagnostics"
	"trendcast/internal/forecast"
)

var (
	// ErrNoForecast 没有可导出的预测结果
	ErrNoForecast = errors.New("no forecast to export")
	// ErrNoMetrics 没有可导出的评估指标
	ErrNoMetrics = errors.New("no metrics to export")
)

// 预测表与指标表的小数点
const (
	ForecastDecimal = '.'
	MetricsDecimal  = ','
)

// ForecastColumns 预测导出列
var ForecastColumns = []string{"ds", "yhat_lower", "yhat", "yhat_upper"}

// Table 导出用二维表：首列为标签（日期或预测跨度），其余为数值列
type Table struct {
	Name    string
	Columns []string
	Labels  []string
	Values  [][]float64 // Values[row][col]，列数 = len(Columns)-1
}

// ForecastTable 预测结果 → ds, yhat_lower, yhat, yhat_upper
func ForecastTable(res *forecast.Result) (*Table, error) {
	if res == nil || res.Len() == 0 {
		return nil, ErrNoForecast
	}

	ds := make([]time.Time, res.Len())
	values := make([][]float64, res.Len())
	for i, row := range res.Rows {
		ds[i] = row.DS
		values[i] = []float64{row.YhatLower, row.Yhat, row.YhatUpper}
	}
	return &Table{
		Name:    "Forecast",
		Columns: append([]string(nil), ForecastColumns...),
		Labels:  formatTimes(ds),
		Values:  values,
	}, nil
}

// MetricsTable 评估指标 → horizon + 各指标列
func MetricsTable(m *diagnostics.Metrics) (*Table, error) {
	if m == nil || len(m.Rows) == 0 {
		return nil, ErrNoMetrics
	}

	t := &Table{
		Name:    "Metrics",
		Columns: append([]string{"horizon"}, m.Columns...),
		Labels:  make([]string, len(m.Rows)),
		Values:  make([][]float64, len(m.Rows)),
	}
	for i, row := range m.Rows {
		t.Labels[i] = diagnostics.FormatHorizon(row.Horizon)
		vals := make([]float64, len(m.Columns))
		for j, name := range m.Columns {
			v, ok := row.Value(name)
			if !ok {
				return nil, fmt.Errorf("unknown metric column %q", name)
			}
			vals[j] = v
		}
		t.Values[i] = vals
	}
	return t, nil
}

// CSV 将表格序列化为 CSV，数值使用指定的小数点
func (t *Table) CSV(decimal rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, label := range t.Labels {
		record[0] = label
		for j, v := range t.Values[i] {
			record[j+1] = formatFloat(v, decimal)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ForecastCSV 预测表 CSV（小数点 "."）
func ForecastCSV(res *forecast.Result) ([]byte, error) {
	t, err := ForecastTable(res)
	if err != nil {
		return nil, err
	}
	return t.CSV(ForecastDecimal)
}

// MetricsCSV 指标表 CSV（小数点 ","）
func MetricsCSV(m *diagnostics.Metrics) ([]byte, error) {
	t, err := MetricsTable(m)
	if err != nil {
		return nil, err
	}
	return t.CSV(MetricsDecimal)
}
