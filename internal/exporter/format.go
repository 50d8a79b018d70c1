package exporter

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// formatFloat 按最短可还原表示输出浮点数，整数值保留 ".0"，
// 指数小于 -4 或不小于 16 时使用科学计数法
func formatFloat(v float64, decimal rune) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	var s string
	exp := 0
	if v != 0 {
		exp = int(math.Floor(math.Log10(math.Abs(v))))
	}
	if exp < -4 || exp >= 16 {
		s = strconv.FormatFloat(v, 'e', -1, 64)
	} else {
		s = strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
	}
	if decimal != '.' {
		s = strings.Replace(s, ".", string(decimal), 1)
	}
	return s
}

// formatTimes 全部为零点时只输出日期
func formatTimes(ts []time.Time) []string {
	layout := "2006-01-02"
	for _, t := range ts {
		h, m, s := t.Clock()
		if h != 0 || m != 0 || s != 0 || t.Nanosecond() != 0 {
			layout = "2006-01-02 15:04:05"
			break
		}
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format(layout)
	}
	return out
}
