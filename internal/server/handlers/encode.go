package handlers

import (
	"time"

	"trendcast/internal/forecast"
	"trendcast/internal/pipeline"
)

// 预测相关 JSON 输出，NaN / Inf 编码为 null

type rowJSON struct {
	DS         time.Time `json:"ds"`
	Trend      *float64  `json:"trend"`
	TrendLower *float64  `json:"trend_lower"`
	TrendUpper *float64  `json:"trend_upper"`
	YhatLower  *float64  `json:"yhat_lower"`
	Yhat       *float64  `json:"yhat"`
	YhatUpper  *float64  `json:"yhat_upper"`
}

type componentJSON struct {
	Name   string        `json:"name"`
	Mode   forecast.Mode `json:"mode"`
	Values []*float64    `json:"values"`
}

type changepointJSON struct {
	DS    time.Time `json:"ds"`
	Delta *float64  `json:"delta"`
}

type forecastJSON struct {
	Rows       []rowJSON       `json:"rows"`
	Components []componentJSON `json:"components,omitempty"`
}

type componentsJSON struct {
	DS           []time.Time       `json:"ds"`
	Trend        []*float64        `json:"trend"`
	TrendLower   []*float64        `json:"trendLower"`
	TrendUpper   []*float64        `json:"trendUpper"`
	Components   []componentJSON   `json:"components"`
	Changepoints []changepointJSON `json:"changepoints,omitempty"`
}

func finiteSlice(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = finite(v)
	}
	return out
}

func encodeRows(rows []forecast.Row) []rowJSON {
	out := make([]rowJSON, len(rows))
	for i, r := range rows {
		out[i] = rowJSON{
			DS:         r.DS,
			Trend:      finite(r.Trend),
			TrendLower: finite(r.TrendLower),
			TrendUpper: finite(r.TrendUpper),
			YhatLower:  finite(r.YhatLower),
			Yhat:       finite(r.Yhat),
			YhatUpper:  finite(r.YhatUpper),
		}
	}
	return out
}

func encodeComponents(comps []forecast.Component) []componentJSON {
	out := make([]componentJSON, len(comps))
	for i, c := range comps {
		out[i] = componentJSON{Name: c.Name, Mode: c.Mode, Values: finiteSlice(c.Values)}
	}
	return out
}

func encodeForecast(res *forecast.Result) forecastJSON {
	return forecastJSON{
		Rows:       encodeRows(res.Rows),
		Components: encodeComponents(res.Components),
	}
}

func encodeDecomposition(c *pipeline.Components) componentsJSON {
	out := componentsJSON{
		DS:         c.DS,
		Trend:      finiteSlice(c.Trend),
		TrendLower: finiteSlice(c.TrendLower),
		TrendUpper: finiteSlice(c.TrendUpper),
		Components: encodeComponents(c.Components),
	}
	for _, cp := range c.Changepoints {
		out.Changepoints = append(out.Changepoints, changepointJSON{DS: cp.DS, Delta: finite(cp.Delta)})
	}
	return out
}
