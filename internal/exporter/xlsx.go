package exporter

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"trendcast/internal/diagnostics"
	"trendcast/internal/forecast"
)

const progressEvery = 100

// Workbook 生成包含 Forecast 与 Metrics 两个 sheet 的工作簿
// metrics 为空时 Metrics sheet 只写表头
func Workbook(res *forecast.Result, metrics *diagnostics.Metrics, progress func(ProgressEvent)) (*excelize.File, error) {
	ft, err := ForecastTable(res)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	newPhase(progress, "prepare", 0, 5).at(0, 0)

	if err := f.SetSheetName("Sheet1", ft.Name); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeTable(f, ft, newPhase(progress, "write "+ft.Name, 5, 70)); err != nil {
		_ = f.Close()
		return nil, err
	}

	mt, err := MetricsTable(metrics)
	if err != nil {
		mt = &Table{Name: "Metrics", Columns: append([]string{"horizon"}, diagnostics.AllMetrics...)}
	}
	if _, err := f.NewSheet(mt.Name); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create sheet %s: %w", mt.Name, err)
	}
	if err := writeTable(f, mt, newPhase(progress, "write "+mt.Name, 70, 95)); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	newPhase(progress, "done", 100, 100).at(0, 0)
	return f, nil
}

func writeTable(f *excelize.File, t *Table, p phase) error {
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", t.Name, err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(t.Name, "A1", lastCol, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", t.Name, err)
	}
	if err := f.SetColWidth(t.Name, "A", "A", 22); err != nil {
		return err
	}

	total := len(t.Labels)
	for i, label := range t.Labels {
		row := make([]interface{}, 0, len(t.Columns))
		row = append(row, label)
		for _, v := range t.Values[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", t.Name, i+1, err)
		}
		if (i+1)%progressEvery == 0 {
			p.at(i+1, total)
		}
	}
	p.at(total, total)
	return nil
}
