package model

import "time"

// Point 规范序列中的一个观测点 (ds, y)
type Point struct {
	DS time.Time `json:"ds"`
	Y  float64   `json:"y"`
}

// Series 规范时间序列：日期列重命名为 ds，数值列重命名为 y，按 ds 升序
type Series struct {
	DateColumn  string  `json:"dateColumn"`
	ValueColumn string  `json:"valueColumn"`
	Points      []Point `json:"points"`
}

// Len 观测点数量
func (s *Series) Len() int {
	return len(s.Points)
}

// Dates 返回所有 ds
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.DS
	}
	return out
}

// Values 返回所有 y
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Y
	}
	return out
}

// Span 返回首尾日期
func (s *Series) Span() (first, last time.Time) {
	if len(s.Points) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Points[0].DS, s.Points[len(s.Points)-1].DS
}
