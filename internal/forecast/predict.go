package forecast

import (
	"context"
	"math"
	"time"
)

// Row is one forecast row. Values are in the units of y.
type Row struct {
	DS         time.Time `json:"ds"`
	Trend      float64   `json:"trend"`
	TrendLower float64   `json:"trend_lower"`
	TrendUpper float64   `json:"trend_upper"`
	YhatLower  float64   `json:"yhat_lower"`
	Yhat       float64   `json:"yhat"`
	YhatUpper  float64   `json:"yhat_upper"`
}

// Component is one additive or multiplicative term of the forecast.
// Additive values are in units of y; multiplicative values are fractions
// of the trend.
type Component struct {
	Name   string    `json:"name"`
	Mode   Mode      `json:"mode"`
	Values []float64 `json:"values"`
}

// Additive and multiplicative totals reported with every forecast.
const (
	AdditiveTerms       = "additive_terms"
	MultiplicativeTerms = "multiplicative_terms"
)

// Result is the output of Predict.
type Result struct {
	Rows       []Row       `json:"rows"`
	Components []Component `json:"components"`
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// Component returns a component by name.
func (r *Result) Component(name string) (Component, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Tail returns the last n rows.
func (r *Result) Tail(n int) []Row {
	if n >= len(r.Rows) {
		return r.Rows
	}
	if n <= 0 {
		return nil
	}
	return r.Rows[len(r.Rows)-n:]
}

// MakeFutureFrame extends the history by periods timestamps of the given
// frequency. Saturation columns are left for the caller to fill.
func (m *Model) MakeFutureFrame(periods int, freq Freq, includeHistory bool) (*Frame, error) {
	if m.fit == nil {
		return nil, ErrNotFitted
	}
	if freq == "" {
		freq = defaultFrequency
	}
	hist := m.fit.historyDates
	dates := FutureDates(hist[len(hist)-1], periods, freq)
	if includeHistory {
		dates = append(append([]time.Time(nil), hist...), dates...)
	}
	return &Frame{DS: dates}, nil
}

// Predict evaluates the fitted model on future. A nil frame predicts the history.
func (m *Model) Predict(ctx context.Context, future *Frame) (*Result, error) {
	if m.fit == nil {
		return nil, ErrNotFitted
	}
	if future == nil {
		future = m.fit.history
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := future.sorted(false)
	st := m.fit
	n := f.Len()

	floor, capValues, err := m.saturation(f)
	if err != nil {
		return nil, err
	}
	x, err := m.features(st, f.DS)
	if err != nil {
		return nil, err
	}

	comps := make([]Component, 0, len(st.layout.blocks)+2)
	for _, b := range st.layout.blocks {
		comps = append(comps, Component{Name: b.name, Mode: b.mode, Values: make([]float64, n)})
	}
	additive := Component{Name: AdditiveTerms, Mode: ModeAdditive, Values: make([]float64, n)}
	multiplicative := Component{Name: MultiplicativeTerms, Mode: ModeMultiplicative, Values: make([]float64, n)}

	z := math.Sqrt2 * math.Erfinv(m.opts.IntervalWidth)
	rate := changepointRate(st.delta)
	nc := float64(len(st.changepointsT))

	rows := make([]Row, n)
	for i, ds := range f.DS {
		t := st.scaleTime(ds)
		g := st.k*t + st.m
		for j, s := range st.changepointsT {
			if t > s {
				g += st.delta[j] * (t - s)
			}
		}

		trend, dTrend := g, 1.0
		if m.opts.Growth == GrowthLogistic {
			capScaled := (capValues[i] - floor[i]) / st.yScale
			sig := sigmoid(g)
			trend = capScaled * sig
			dTrend = capScaled * sig * (1 - sig)
		}

		add, mul := 0.0, 0.0
		for bi, b := range st.layout.blocks {
			v := 0.0
			for j := b.start; j < b.end; j++ {
				v += x[i][j] * st.beta[j]
			}
			if b.mode == ModeMultiplicative {
				mul += v
				comps[bi].Values[i] = v
			} else {
				add += v
				comps[bi].Values[i] = v * st.yScale
			}
		}
		additive.Values[i] = add * st.yScale
		multiplicative.Values[i] = mul

		// Future trend changes follow a compound Poisson process with
		// nc changes per unit of scaled time and Laplace(rate) sizes.
		trendVar := 0.0
		if h := t - 1; h > 0 && nc > 0 {
			trendVar = nc * 2 * rate * rate * h * h * h / 3
		}
		trendSD := math.Sqrt(trendVar) * math.Abs(dTrend)
		yhatSD := math.Sqrt(st.sigma*st.sigma + (1+mul)*(1+mul)*trendSD*trendSD)

		trendY := trend*st.yScale + floor[i]
		yhat := (trend*(1+mul)+add)*st.yScale + floor[i]
		rows[i] = Row{
			DS:         ds,
			Trend:      trendY,
			TrendLower: trendY - z*trendSD*st.yScale,
			TrendUpper: trendY + z*trendSD*st.yScale,
			YhatLower:  yhat - z*yhatSD*st.yScale,
			Yhat:       yhat,
			YhatUpper:  yhat + z*yhatSD*st.yScale,
		}
	}

	comps = append(comps, additive, multiplicative)
	return &Result{Rows: rows, Components: comps}, nil
}

func changepointRate(delta []float64) float64 {
	if len(delta) == 0 {
		return 1e-8
	}
	sum := 0.0
	for _, d := range delta {
		sum += math.Abs(d)
	}
	return sum/float64(len(delta)) + 1e-8
}
