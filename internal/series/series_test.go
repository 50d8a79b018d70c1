package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"trendcast/internal/model"
)

func dataset(rows [][]string, cols ...string) *model.Dataset {
	columns := make([]model.Column, len(cols))
	for i, c := range cols {
		columns[i] = model.Column{Name: c}
	}
	return &model.Dataset{Columns: columns, Rows: rows}
}

func TestNormalizeProjectsAndSorts(t *testing.T) {
	ds := dataset([][]string{
		{"x", "2020-03-01", "3"},
		{"y", "2020-01-01", "1"},
		{"z", "2020-02-01", "2"},
	}, "id", "Month", "Sales")

	s, err := Normalize(ds, "Month", "Sales")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	for i := 1; i < s.Len(); i++ {
		if s.Points[i].DS.Before(s.Points[i-1].DS) {
			t.Fatalf("series not sorted at %d", i)
		}
	}
	wantY := []float64{1, 2, 3}
	for i, y := range s.Values() {
		if y != wantY[i] {
			t.Fatalf("y[%d] = %v, want %v", i, y, wantY[i])
		}
	}
	if s.Points[0].DS != time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("first ds = %v", s.Points[0].DS)
	}
}

// 任意两列（A != B）都能得到按日期升序的两列序列
func TestNormalizeAnyColumnPair(t *testing.T) {
	ds := dataset([][]string{
		{"2021-05-01", "2020-01-03", "5"},
		{"2021-04-01", "2020-01-01", "4"},
		{"2021-06-01", "2020-01-02", "6"},
	}, "a", "b", "c")

	pairs := [][2]string{{"a", "c"}, {"b", "c"}, {"a", "b"}}
	for _, p := range pairs {
		if p[1] == "b" {
			// b 是日期列，作为数值列应当报错
			if _, err := Normalize(ds, p[0], p[1]); !errors.Is(err, ErrBadCell) {
				t.Fatalf("pair %v: err = %v, want ErrBadCell", p, err)
			}
			continue
		}
		s, err := Normalize(ds, p[0], p[1])
		if err != nil {
			t.Fatalf("pair %v: %v", p, err)
		}
		for i := 1; i < s.Len(); i++ {
			if s.Points[i].DS.Before(s.Points[i-1].DS) {
				t.Fatalf("pair %v not sorted", p)
			}
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	ds := dataset([][]string{{"2020-01-01", "1"}}, "ds", "y")

	if _, err := Normalize(ds, "ds", "ds"); !errors.Is(err, ErrSameColumn) {
		t.Fatalf("same column: err = %v", err)
	}
	if _, err := Normalize(ds, "missing", "y"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("missing date column: err = %v", err)
	}
	if _, err := Normalize(ds, "ds", "missing"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("missing value column: err = %v", err)
	}
	empty := dataset(nil, "ds", "y")
	if _, err := Normalize(empty, "ds", "y"); !errors.Is(err, ErrNoRows) {
		t.Fatalf("empty: err = %v", err)
	}
}

func TestNormalizeBlankValueIsMissing(t *testing.T) {
	ds := dataset([][]string{{"2020-01-01", ""}, {"2020-01-02", "2"}}, "ds", "y")
	s, err := Normalize(ds, "ds", "y")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !math.IsNaN(s.Points[0].Y) {
		t.Fatalf("blank value should be NaN, got %v", s.Points[0].Y)
	}
}

func TestDefaultColumns(t *testing.T) {
	ds := dataset(nil, "when", "what", "other")
	d, v := DefaultColumns(ds)
	if d != "when" || v != "what" {
		t.Fatalf("defaults = %q %q", d, v)
	}
}

func TestDescribe(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &model.Series{}
	for i, v := range []float64{1, 2, 3, 4, math.NaN()} {
		s.Points = append(s.Points, model.Point{DS: base.AddDate(0, i, 0), Y: v})
	}
	d := Describe(s)
	if d.Count != 4 {
		t.Fatalf("count = %d, want 4", d.Count)
	}
	if d.Mean != 2.5 || d.Min != 1 || d.Max != 4 {
		t.Fatalf("mean/min/max = %v %v %v", d.Mean, d.Min, d.Max)
	}
	if d.P25 != 1.75 || d.P50 != 2.5 || d.P75 != 3.25 {
		t.Fatalf("quartiles = %v %v %v", d.P25, d.P50, d.P75)
	}
	if math.Abs(d.Std-1.2909944487) > 1e-9 {
		t.Fatalf("std = %v", d.Std)
	}
}
