package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"trendcast/internal/holidays"
)

var (
	// ErrTooFewRows is returned when the history has fewer than two usable rows.
	ErrTooFewRows = errors.New("dataframe has less than 2 non-NaN rows")
	// ErrNotFitted is returned by operations that need a fitted model.
	ErrNotFitted = errors.New("model has not been fit")
	// ErrAlreadyFitted is returned when a model is fit twice or changed after fitting.
	ErrAlreadyFitted = errors.New("model can only be fit once")
	// ErrMissingCap is returned when logistic growth has no usable cap column.
	ErrMissingCap = errors.New("capacities must be supplied for logistic growth")
)

// Growth selects the trend shape.
type Growth string

const (
	GrowthLinear   Growth = "linear"
	GrowthLogistic Growth = "logistic"
)

// Mode selects how a component combines with the trend.
type Mode string

const (
	ModeAdditive       Mode = "additive"
	ModeMultiplicative Mode = "multiplicative"
)

// Toggle controls a built-in seasonality.
type Toggle int

const (
	Auto Toggle = iota
	On
	Off
)

// Options configures a model before fitting.
type Options struct {
	Growth                Growth
	SeasonalityMode       Mode
	NChangepoints         int
	ChangepointRange      float64
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	HolidaysPriorScale    float64
	IntervalWidth         float64
	YearlySeasonality     Toggle
	WeeklySeasonality     Toggle
	DailySeasonality      Toggle
	MaxIterations         int
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Growth:                GrowthLinear,
		SeasonalityMode:       ModeAdditive,
		NChangepoints:         25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		HolidaysPriorScale:    10,
		IntervalWidth:         0.8,
		MaxIterations:         200,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Growth == "" {
		o.Growth = def.Growth
	}
	if o.SeasonalityMode == "" {
		o.SeasonalityMode = def.SeasonalityMode
	}
	if o.NChangepoints < 0 {
		o.NChangepoints = 0
	}
	if o.ChangepointRange <= 0 || o.ChangepointRange > 1 {
		o.ChangepointRange = def.ChangepointRange
	}
	if o.ChangepointPriorScale <= 0 {
		o.ChangepointPriorScale = def.ChangepointPriorScale
	}
	if o.SeasonalityPriorScale <= 0 {
		o.SeasonalityPriorScale = def.SeasonalityPriorScale
	}
	if o.HolidaysPriorScale <= 0 {
		o.HolidaysPriorScale = def.HolidaysPriorScale
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		o.IntervalWidth = def.IntervalWidth
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	return o
}

// Seasonality is a periodic component expressed as a Fourier series.
type Seasonality struct {
	Name         string  `json:"name"`
	Period       float64 `json:"period"` // days
	FourierOrder int     `json:"fourierOrder"`
	PriorScale   float64 `json:"priorScale"` // 0 uses the model's seasonality prior scale
	Mode         Mode    `json:"mode"`       // empty uses the model's seasonality mode
}

// Changepoint is a potential trend change and its fitted rate adjustment.
type Changepoint struct {
	DS    time.Time `json:"ds"`
	Delta float64   `json:"delta"`
}

// Model is an additive regression forecaster. A Model is fit once; use
// Fresh to obtain an unfitted copy with the same configuration.
type Model struct {
	opts    Options
	custom  []Seasonality
	country string

	fit *fitState
}

// fitState holds everything learned by Fit.
type fitState struct {
	history *Frame
	// dates of every input row, including rows with missing y
	historyDates []time.Time
	start   time.Time
	tScale  float64 // seconds
	yScale  float64

	changepoints  []time.Time
	changepointsT []float64

	seasonalities []Seasonality
	holidayNames  []string
	layout        layout

	k, m  float64
	delta []float64
	beta  []float64
	sigma float64 // scaled observation noise
}

// New creates an unfitted model.
func New(opts Options) *Model {
	return &Model{opts: opts.normalized()}
}

// Options returns the model configuration.
func (m *Model) Options() Options {
	return m.opts
}

// Fitted reports whether Fit succeeded.
func (m *Model) Fitted() bool {
	return m.fit != nil
}

// AddSeasonality registers a custom seasonality. It must be called before Fit.
func (m *Model) AddSeasonality(s Seasonality) error {
	if m.fit != nil {
		return ErrAlreadyFitted
	}
	if s.Name == "" {
		return errors.New("seasonality name is required")
	}
	if s.Period <= 0 {
		return fmt.Errorf("seasonality %q: period must be positive", s.Name)
	}
	if s.FourierOrder <= 0 {
		return fmt.Errorf("seasonality %q: fourier order must be positive", s.Name)
	}
	if s.Mode != "" && s.Mode != ModeAdditive && s.Mode != ModeMultiplicative {
		return fmt.Errorf("seasonality %q: unknown mode %q", s.Name, s.Mode)
	}
	for _, existing := range m.custom {
		if existing.Name == s.Name {
			return fmt.Errorf("seasonality %q already exists", s.Name)
		}
	}
	m.custom = append(m.custom, s)
	return nil
}

// AddCountryHolidays attaches the built-in holiday calendar of a country.
func (m *Model) AddCountryHolidays(country string) error {
	if m.fit != nil {
		return ErrAlreadyFitted
	}
	if !holidays.Supported(country) {
		return fmt.Errorf("%w: %s", holidays.ErrUnknownCountry, country)
	}
	m.country = country
	return nil
}

// Country returns the attached holiday country, if any.
func (m *Model) Country() string {
	return m.country
}

// Fresh returns an unfitted model with the same configuration.
func (m *Model) Fresh() *Model {
	return &Model{
		opts:    m.opts,
		custom:  append([]Seasonality(nil), m.custom...),
		country: m.country,
	}
}

// History returns the frame the model was fit on.
func (m *Model) History() (*Frame, error) {
	if m.fit == nil {
		return nil, ErrNotFitted
	}
	return m.fit.history, nil
}

// HistoryDates returns the sorted distinct timestamps passed to Fit,
// including those whose y was missing.
func (m *Model) HistoryDates() ([]time.Time, error) {
	if m.fit == nil {
		return nil, ErrNotFitted
	}
	return m.fit.historyDates, nil
}

// Seasonalities returns the seasonalities used by the fitted model.
func (m *Model) Seasonalities() []Seasonality {
	if m.fit == nil {
		return nil
	}
	return append([]Seasonality(nil), m.fit.seasonalities...)
}

// Changepoints returns the fitted changepoints in time order.
func (m *Model) Changepoints() []Changepoint {
	if m.fit == nil {
		return nil
	}
	out := make([]Changepoint, len(m.fit.changepoints))
	for i, t := range m.fit.changepoints {
		out[i] = Changepoint{DS: t, Delta: m.fit.delta[i]}
	}
	return out
}

// SignificantChangepoints returns changepoints whose |delta| is at least threshold.
func (m *Model) SignificantChangepoints(threshold float64) []Changepoint {
	var out []Changepoint
	for _, cp := range m.Changepoints() {
		if math.Abs(cp.Delta) >= threshold {
			out = append(out, cp)
		}
	}
	return out
}

// Fit estimates the model parameters from history. Rows with a NaN y are ignored.
func (m *Model) Fit(ctx context.Context, history *Frame) error {
	if m.fit != nil {
		return ErrAlreadyFitted
	}
	if history == nil {
		return ErrTooFewRows
	}

	h := history.sorted(true)
	if h.Len() < 2 {
		return ErrTooFewRows
	}
	for i, y := range h.Y {
		if math.IsInf(y, 0) {
			return fmt.Errorf("y is infinite at %s", h.DS[i].Format(time.RFC3339))
		}
	}

	st := &fitState{history: h, start: h.DS[0], historyDates: uniqueDates(history.DS)}
	st.tScale = secondsBetween(st.start, h.DS[h.Len()-1])
	if st.tScale <= 0 {
		return fmt.Errorf("%w: history must span more than one timestamp", ErrTooFewRows)
	}

	floor, capScaled, err := m.saturation(h)
	if err != nil {
		return err
	}
	st.yScale = 0
	for i, y := range h.Y {
		st.yScale = math.Max(st.yScale, math.Abs(y-floor[i]))
	}
	if st.yScale == 0 {
		st.yScale = 1
	}
	if capScaled != nil {
		for i := range capScaled {
			capScaled[i] = (capScaled[i] - floor[i]) / st.yScale
		}
	}

	n := h.Len()
	t := make([]float64, n)
	yScaled := make([]float64, n)
	for i := range h.DS {
		t[i] = st.scaleTime(h.DS[i])
		yScaled[i] = (h.Y[i] - floor[i]) / st.yScale
	}

	st.changepoints, st.changepointsT = m.placeChangepoints(h, st)
	st.seasonalities = m.resolveSeasonalities(h)
	if m.country != "" {
		st.holidayNames, err = holidayNames(m.country, h.DS[0], h.DS[n-1])
		if err != nil {
			return err
		}
	}
	st.layout = buildLayout(m.opts, st.seasonalities, st.holidayNames)

	x, err := m.features(st, h.DS)
	if err != nil {
		return err
	}

	eval := st.evaluator(t, capScaled, x, m.opts.Growth)
	theta0 := m.initialParams(st, t, yScaled, capScaled)
	prob := lmProblem{y: yScaled, eval: eval, maxIter: m.opts.MaxIterations}

	// First pass with a nominal noise level, second with the estimated one.
	sigma2 := 0.05 * 0.05
	theta := theta0
	for pass := 0; pass < 2; pass++ {
		prob.penalty = st.penalties(m.opts, sigma2)
		res, err := solveLM(ctx, prob, theta)
		if err != nil {
			return err
		}
		theta = res.theta

		yhat := make([]float64, n)
		eval(theta, yhat, newMatrix(n, len(theta)))
		sse := 0.0
		for i := range yhat {
			d := yScaled[i] - yhat[i]
			sse += d * d
		}
		sigma2 = math.Max(sse/float64(n), 1e-6)
	}
	for _, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameters diverged", ErrSingular)
		}
	}

	st.k, st.m = theta[0], theta[1]
	nc := len(st.changepointsT)
	st.delta = append([]float64(nil), theta[2:2+nc]...)
	st.beta = append([]float64(nil), theta[2+nc:]...)
	st.sigma = math.Sqrt(sigma2)

	m.fit = st
	return nil
}

// saturation returns the floor per row and a copy of the cap column
// (nil for linear growth).
func (m *Model) saturation(f *Frame) (floor, capValues []float64, err error) {
	n := f.Len()
	if m.opts.Growth != GrowthLogistic {
		return make([]float64, n), nil, nil
	}
	if len(f.Cap) != n {
		return nil, nil, ErrMissingCap
	}
	floor = make([]float64, n)
	if len(f.Floor) == n {
		copy(floor, f.Floor)
	}
	capValues = append([]float64(nil), f.Cap...)
	for i := range capValues {
		if math.IsNaN(capValues[i]) || capValues[i] <= floor[i] {
			return nil, nil, fmt.Errorf("%w: cap must be greater than floor", ErrMissingCap)
		}
	}
	return floor, capValues, nil
}

// placeChangepoints spreads potential changepoints uniformly over the first
// ChangepointRange share of the history.
func (m *Model) placeChangepoints(h *Frame, st *fitState) ([]time.Time, []float64) {
	histSize := int(math.Floor(float64(h.Len()) * m.opts.ChangepointRange))
	count := m.opts.NChangepoints
	if count+1 > histSize {
		count = histSize - 1
	}
	if count <= 0 {
		return nil, nil
	}

	dates := make([]time.Time, 0, count)
	ts := make([]float64, 0, count)
	step := float64(histSize-1) / float64(count)
	for i := 1; i <= count; i++ {
		idx := int(math.RoundToEven(step * float64(i)))
		dates = append(dates, h.DS[idx])
		ts = append(ts, st.scaleTime(h.DS[idx]))
	}
	return dates, ts
}

// resolveSeasonalities decides which built-in seasonalities apply to the
// history and appends the custom ones.
func (m *Model) resolveSeasonalities(h *Frame) []Seasonality {
	first, last := h.DS[0], h.DS[h.Len()-1]
	span := last.Sub(first)
	minDt := time.Duration(math.MaxInt64)
	for i := 1; i < h.Len(); i++ {
		if d := h.DS[i].Sub(h.DS[i-1]); d > 0 && d < minDt {
			minDt = d
		}
	}

	day := 24 * time.Hour
	enabled := func(toggle Toggle, auto bool) bool {
		switch toggle {
		case On:
			return true
		case Off:
			return false
		}
		return auto
	}

	var out []Seasonality
	if enabled(m.opts.YearlySeasonality, span >= 730*day) {
		out = append(out, Seasonality{Name: "yearly", Period: 365.25, FourierOrder: 10})
	}
	if enabled(m.opts.WeeklySeasonality, span >= 14*day && minDt < 7*day) {
		out = append(out, Seasonality{Name: "weekly", Period: 7, FourierOrder: 3})
	}
	if enabled(m.opts.DailySeasonality, span >= 2*day && minDt < day) {
		out = append(out, Seasonality{Name: "daily", Period: 1, FourierOrder: 4})
	}

	for _, s := range m.custom {
		replaced := false
		for i := range out {
			if out[i].Name == s.Name {
				out[i] = s
				replaced = true
			}
		}
		if !replaced {
			out = append(out, s)
		}
	}
	for i := range out {
		if out[i].PriorScale <= 0 {
			out[i].PriorScale = m.opts.SeasonalityPriorScale
		}
		if out[i].Mode == "" {
			out[i].Mode = m.opts.SeasonalityMode
		}
	}
	return out
}

func (m *Model) initialParams(st *fitState, t, y, capScaled []float64) []float64 {
	theta := make([]float64, 2+len(st.changepointsT)+st.layout.width())
	n := len(y)
	span := t[n-1] - t[0]

	if m.opts.Growth != GrowthLogistic {
		k := (y[n-1] - y[0]) / span
		theta[0] = k
		theta[1] = y[0] - k*t[0]
		return theta
	}

	c0, c1 := capScaled[0], capScaled[n-1]
	y0 := math.Max(0.01*c0, math.Min(0.99*c0, y[0]))
	y1 := math.Max(0.01*c1, math.Min(0.99*c1, y[n-1]))
	r0, r1 := c0/y0, c1/y1
	if math.Abs(r0-r1) <= 0.01 {
		r0 *= 1.05
	}
	l0, l1 := math.Log(r0-1), math.Log(r1-1)
	k := (l0 - l1) / span
	theta[0] = k
	theta[1] = -l0 - k*t[0]
	return theta
}

func (st *fitState) scaleTime(ds time.Time) float64 {
	return secondsBetween(st.start, ds) / st.tScale
}

// secondsBetween is to - from in seconds. Unlike time.Sub it does not
// saturate after ~292 years.
func secondsBetween(from, to time.Time) float64 {
	return float64(to.Unix()-from.Unix()) + float64(to.Nanosecond()-from.Nanosecond())/1e9
}

// penalties returns the quadratic prior weights sigma^2 / tau^2 for every parameter.
func (st *fitState) penalties(opts Options, sigma2 float64) []float64 {
	out := make([]float64, 0, 2+len(st.changepointsT)+st.layout.width())
	out = append(out, sigma2/25, sigma2/25)
	cp := opts.ChangepointPriorScale
	for range st.changepointsT {
		out = append(out, sigma2/(cp*cp))
	}
	for _, col := range st.layout.columns {
		out = append(out, sigma2/(col.priorScale*col.priorScale))
	}
	return out
}
