package diagnostics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrNoRows            = errors.New("cross-validation produced no rows")
	ErrUnknownMetric     = errors.New("unknown metric")
	ErrMetricUnavailable = errors.New("metric not available for this data")
)

// Metric names in report order.
const (
	MetricMSE      = "mse"
	MetricRMSE     = "rmse"
	MetricMAE      = "mae"
	MetricMAPE     = "mape"
	MetricMDAPE    = "mdape"
	MetricSMAPE    = "smape"
	MetricCoverage = "coverage"
)

// AllMetrics lists every metric PerformanceMetrics can compute.
var AllMetrics = []string{MetricMSE, MetricRMSE, MetricMAE, MetricMAPE, MetricMDAPE, MetricSMAPE, MetricCoverage}

// PlotMetrics lists the metrics offered for plotting.
var PlotMetrics = []string{MetricMSE, MetricMAE, MetricMAPE}

// DefaultRollingWindow is the share of rows averaged per horizon.
const DefaultRollingWindow = 0.1

// mapeFloor is the smallest |y| for which mape and mdape are reported.
const mapeFloor = 1e-8

// MetricRow holds the metrics of one horizon.
type MetricRow struct {
	Horizon  time.Duration `json:"horizon"`
	MSE      float64       `json:"mse"`
	RMSE     float64       `json:"rmse"`
	MAE      float64       `json:"mae"`
	MAPE     float64       `json:"mape"`
	MDAPE    float64       `json:"mdape"`
	SMAPE    float64       `json:"smape"`
	Coverage float64       `json:"coverage"`
}

// Value returns a metric by name.
func (r MetricRow) Value(name string) (float64, bool) {
	switch name {
	case MetricMSE:
		return r.MSE, true
	case MetricRMSE:
		return r.RMSE, true
	case MetricMAE:
		return r.MAE, true
	case MetricMAPE:
		return r.MAPE, true
	case MetricMDAPE:
		return r.MDAPE, true
	case MetricSMAPE:
		return r.SMAPE, true
	case MetricCoverage:
		return r.Coverage, true
	}
	return 0, false
}

// Metrics is the performance table. Columns lists the metrics present;
// mape is left out when some |y| is close to zero.
type Metrics struct {
	Columns []string    `json:"columns"`
	Rows    []MetricRow `json:"rows"`
	Window  int         `json:"window"`
}

// pointErrors are the per-row errors sorted by horizon.
type pointErrors struct {
	h       []time.Duration
	se      []float64
	ae      []float64
	ape     []float64
	sape    []float64
	covered []float64
	minAbsY float64
}

func newPointErrors(cv *CVResult) pointErrors {
	rows := append([]CVRow(nil), cv.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Horizon() < rows[j].Horizon() })

	n := len(rows)
	p := pointErrors{
		h:       make([]time.Duration, n),
		se:      make([]float64, n),
		ae:      make([]float64, n),
		ape:     make([]float64, n),
		sape:    make([]float64, n),
		covered: make([]float64, n),
		minAbsY: math.Inf(1),
	}
	for i, r := range rows {
		diff := r.Y - r.Yhat
		p.h[i] = r.Horizon()
		p.se[i] = diff * diff
		p.ae[i] = math.Abs(diff)
		p.ape[i] = math.Abs(diff / r.Y)
		sm := math.Abs(diff) / ((math.Abs(r.Y) + math.Abs(r.Yhat)) / 2)
		if math.IsNaN(sm) {
			sm = 0
		}
		p.sape[i] = sm
		if r.Y >= r.YhatLower && r.Y <= r.YhatUpper {
			p.covered[i] = 1
		}
		p.minAbsY = math.Min(p.minAbsY, math.Abs(r.Y))
	}
	return p
}

// window converts the rolling share into a row count.
func window(rollingWindow float64, n int) int {
	w := int(rollingWindow * float64(n))
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}
	return w
}

// PerformanceMetrics reduces cross-validation rows to metrics by horizon,
// each averaged over a trailing window of rollingWindow * rows points.
func PerformanceMetrics(cv *CVResult, rollingWindow float64) (*Metrics, error) {
	if cv == nil || len(cv.Rows) == 0 {
		return nil, ErrNoRows
	}
	p := newPointErrors(cv)
	n := len(p.h)
	w := window(rollingWindow, n)

	columns := append([]string(nil), AllMetrics...)
	percentOK := p.minAbsY >= mapeFloor
	if !percentOK {
		columns = removeString(columns, MetricMAPE)
		columns = removeString(columns, MetricMDAPE)
	}

	hs, mse := rollingMeanByH(p.se, p.h, w)
	_, mae := rollingMeanByH(p.ae, p.h, w)
	_, mape := rollingMeanByH(p.ape, p.h, w)
	_, smape := rollingMeanByH(p.sape, p.h, w)
	_, coverage := rollingMeanByH(p.covered, p.h, w)
	mdH, mdape := rollingMedianByH(p.ape, p.h, w)
	mdByH := make(map[time.Duration]float64, len(mdH))
	for i, h := range mdH {
		mdByH[h] = mdape[i]
	}

	out := &Metrics{Columns: columns, Window: w, Rows: make([]MetricRow, len(hs))}
	for i, h := range hs {
		row := MetricRow{
			Horizon:  h,
			MSE:      mse[i],
			RMSE:     math.Sqrt(mse[i]),
			MAE:      mae[i],
			SMAPE:    smape[i],
			Coverage: coverage[i],
		}
		if percentOK {
			row.MAPE = mape[i]
			row.MDAPE = mdByH[h]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// rollingMeanByH averages x over trailing windows of w points, grouped by
// horizon. h must be sorted. Working from the longest horizon backwards, each
// horizon's window takes all of its own points plus points of shorter
// horizons, the last contributing horizon weighted by the share needed to
// reach w. Horizons without w points at or below them are dropped.
func rollingMeanByH(x []float64, h []time.Duration, w int) ([]time.Duration, []float64) {
	var hs []time.Duration
	var xs []float64
	var ns []int
	for i := range x {
		if len(hs) == 0 || h[i] != hs[len(hs)-1] {
			hs = append(hs, h[i])
			xs = append(xs, 0)
			ns = append(ns, 0)
		}
		xs[len(xs)-1] += x[i]
		ns[len(ns)-1]++
	}
	if w < 1 {
		w = 1
	}

	res := make([]float64, len(hs))
	trailing := len(hs) - 1
	xSum, nSum := 0.0, 0
	for i := len(hs) - 1; i >= 0; i-- {
		xSum += xs[i]
		nSum += ns[i]
		for nSum >= w {
			excessN := nSum - w
			excessX := float64(excessN) * xs[i] / float64(ns[i])
			res[trailing] = (xSum - excessX) / float64(w)
			xSum -= xs[trailing]
			nSum -= ns[trailing]
			trailing--
		}
	}
	return hs[trailing+1:], res[trailing+1:]
}

// rollingMedianByH is the median counterpart of rollingMeanByH: each
// horizon takes its own points and then the nearest shorter-horizon points
// one at a time until it has w of them.
func rollingMedianByH(x []float64, h []time.Duration, w int) ([]time.Duration, []float64) {
	type group struct {
		h          time.Duration
		start, end int
	}
	var groups []group
	for i := range x {
		if len(groups) == 0 || h[i] != groups[len(groups)-1].h {
			groups = append(groups, group{h: h[i], start: i})
		}
		groups[len(groups)-1].end = i + 1
	}

	var outH []time.Duration
	var outX []float64
	for gi := len(groups) - 1; gi >= 0; gi-- {
		g := groups[gi]
		vals := append([]float64(nil), x[g.start:g.end]...)
		for next := g.start - 1; len(vals) < w && next >= 0; next-- {
			vals = append(vals, x[next])
		}
		if len(vals) < w {
			break
		}
		outH = append(outH, g.h)
		outX = append(outX, median(vals))
	}

	for i, j := 0, len(outH)-1; i < j; i, j = i+1, j-1 {
		outH[i], outH[j] = outH[j], outH[i]
		outX[i], outX[j] = outX[j], outX[i]
	}
	return outH, outX
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// PlotPoint is one point of a metric plot, with the horizon in days.
type PlotPoint struct {
	Horizon float64 `json:"horizon"`
	Value   float64 `json:"value"`
}

// MetricPlot holds per-prediction errors and their rolling mean by horizon.
type MetricPlot struct {
	Metric  string      `json:"metric"`
	Unit    string      `json:"unit"`
	Points  []PlotPoint `json:"points"`
	Rolling []PlotPoint `json:"rolling"`
}

// PlotData prepares a cross-validation metric plot for mse, mae or mape.
func PlotData(cv *CVResult, metric string, rollingWindow float64) (*MetricPlot, error) {
	if cv == nil || len(cv.Rows) == 0 {
		return nil, ErrNoRows
	}
	p := newPointErrors(cv)

	var x []float64
	switch metric {
	case MetricMSE:
		x = p.se
	case MetricMAE:
		x = p.ae
	case MetricMAPE:
		if p.minAbsY < mapeFloor {
			return nil, fmt.Errorf("%w: %s, y is close to zero", ErrMetricUnavailable, metric)
		}
		x = p.ape
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	plot := &MetricPlot{Metric: metric, Unit: "days", Points: make([]PlotPoint, len(x))}
	for i := range x {
		plot.Points[i] = PlotPoint{Horizon: days(p.h[i]), Value: x[i]}
	}
	hs, rolled := rollingMeanByH(x, p.h, window(rollingWindow, len(x)))
	for i, h := range hs {
		plot.Rolling = append(plot.Rolling, PlotPoint{Horizon: days(h), Value: rolled[i]})
	}
	return plot, nil
}

func days(d time.Duration) float64 {
	return float64(d) / float64(Day)
}
