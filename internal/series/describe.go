package series

import (
	"math"
	"sort"
	"time"

	"trendcast/internal/model"
)

// Description y 列的描述统计（缺失值不参与计算）
type Description struct {
	Count int       `json:"count"`
	Mean  float64   `json:"mean"`
	Std   float64   `json:"std"`
	Min   float64   `json:"min"`
	P25   float64   `json:"p25"`
	P50   float64   `json:"p50"`
	P75   float64   `json:"p75"`
	Max   float64   `json:"max"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Describe 计算描述统计
func Describe(s *model.Series) Description {
	values := make([]float64, 0, s.Len())
	for _, p := range s.Points {
		if !math.IsNaN(p.Y) {
			values = append(values, p.Y)
		}
	}
	d := Description{Count: len(values)}
	d.First, d.Last = s.Span()
	if len(values) == 0 {
		d.Mean, d.Std, d.Min, d.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		d.P25, d.P50, d.P75 = math.NaN(), math.NaN(), math.NaN()
		return d
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	d.Mean = sum / float64(len(values))

	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			diff := v - d.Mean
			ss += diff * diff
		}
		d.Std = math.Sqrt(ss / float64(len(values)-1))
	} else {
		d.Std = math.NaN()
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	d.Min = sorted[0]
	d.Max = sorted[len(sorted)-1]
	d.P25 = quantile(sorted, 0.25)
	d.P50 = quantile(sorted, 0.50)
	d.P75 = quantile(sorted, 0.75)
	return d
}

// quantile 线性插值分位数，sorted 需已升序
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
