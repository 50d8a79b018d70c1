// Package series 把原始数据表映射为规范序列 (ds, y)。
package series

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"trendcast/internal/model"
)

var (
	// ErrColumnNotFound 选择的列不存在
	ErrColumnNotFound = errors.New("column not found")
	// ErrSameColumn 日期列与数值列选择了同一列
	ErrSameColumn = errors.New("date and value columns must differ")
	// ErrBadCell 单元格无法解析为日期或数值
	ErrBadCell = errors.New("unparseable cell")
	// ErrNoRows 数据表没有数据行
	ErrNoRows = errors.New("dataset has no rows")
)

// DefaultColumns 默认选择：第 0 列为日期，第 1 列为数值
func DefaultColumns(ds *model.Dataset) (dateCol, valueCol string) {
	names := ds.ColumnNames()
	if len(names) > 0 {
		dateCol = names[0]
	}
	if len(names) > 1 {
		valueCol = names[1]
	}
	return dateCol, valueCol
}

// Normalize 重命名并投影为 (ds, y) 两列，按 ds 升序（稳定排序）
func Normalize(ds *model.Dataset, dateCol, valueCol string) (*model.Series, error) {
	if dateCol == valueCol {
		return nil, fmt.Errorf("%w: %q", ErrSameColumn, dateCol)
	}
	di := ds.ColumnIndex(dateCol)
	if di < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, dateCol)
	}
	vi := ds.ColumnIndex(valueCol)
	if vi < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, valueCol)
	}
	if ds.RowCount() == 0 {
		return nil, ErrNoRows
	}

	points := make([]model.Point, 0, ds.RowCount())
	for r, row := range ds.Rows {
		dsCell, yCell := cell(row, di), cell(row, vi)
		t, err := ParseDate(dsCell)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d column %q: %q", ErrBadCell, r+2, dateCol, dsCell)
		}
		y, err := ParseValue(yCell)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d column %q: %q", ErrBadCell, r+2, valueCol, yCell)
		}
		points = append(points, model.Point{DS: t, Y: y})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].DS.Before(points[j].DS)
	})

	return &model.Series{
		DateColumn:  dateCol,
		ValueColumn: valueCol,
		Points:      points,
	}, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseDate 推断格式解析日期，统一为 UTC
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrBadCell
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseValue 解析数值；空单元格视为缺失值 (NaN)
func ParseValue(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
