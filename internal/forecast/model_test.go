package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func dailyFrame(start time.Time, n int, fn func(i int, ts time.Time) float64) *Frame {
	ds := make([]time.Time, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		ds[i] = start.AddDate(0, 0, i)
		y[i] = fn(i, ds[i])
	}
	return &Frame{DS: ds, Y: y}
}

func noSeasonality() Options {
	opts := DefaultOptions()
	opts.YearlySeasonality = Off
	opts.WeeklySeasonality = Off
	opts.DailySeasonality = Off
	return opts
}

func TestFitRecoversLinearTrend(t *testing.T) {
	ctx := context.Background()
	history := dailyFrame(day(2021, 1, 1), 100, func(i int, _ time.Time) float64 {
		return 10 + 2*float64(i)
	})

	m := New(noSeasonality())
	if err := m.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	future, err := m.MakeFutureFrame(10, FreqDay, true)
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	if future.Len() != 110 {
		t.Fatalf("future rows = %d, want 110", future.Len())
	}
	res, err := m.Predict(ctx, future)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i, row := range res.Rows {
		want := 10 + 2*float64(i)
		if math.Abs(row.Yhat-want) > 0.5 {
			t.Fatalf("row %d (%s): yhat = %.3f, want %.3f", i, row.DS.Format("2006-01-02"), row.Yhat, want)
		}
		if row.YhatLower > row.Yhat || row.Yhat > row.YhatUpper {
			t.Fatalf("row %d: interval [%v, %v] does not contain %v", i, row.YhatLower, row.YhatUpper, row.Yhat)
		}
	}
}

func TestFitRecoversSeasonalAmplitude(t *testing.T) {
	ctx := context.Background()
	history := dailyFrame(day(2019, 1, 1), 3*365, func(_ int, ts time.Time) float64 {
		days := float64(ts.Unix()) / 86400
		return 10 + 5*math.Sin(2*math.Pi*days/365.25)
	})

	opts := noSeasonality()
	opts.YearlySeasonality = On
	m := New(opts)
	if err := m.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	res, err := m.Predict(ctx, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	yearly, ok := res.Component("yearly")
	if !ok {
		t.Fatalf("yearly component missing")
	}
	peak := 0.0
	for _, v := range yearly.Values {
		peak = math.Max(peak, math.Abs(v))
	}
	if math.Abs(peak-5) > 0.25 {
		t.Fatalf("yearly amplitude = %.3f, want about 5", peak)
	}
	for i, row := range res.Rows {
		if math.Abs(row.Yhat-history.Y[i]) > 0.25 {
			t.Fatalf("row %d: yhat = %.3f, y = %.3f", i, row.Yhat, history.Y[i])
		}
	}
}

func TestLogisticForecastStaysWithinBounds(t *testing.T) {
	ctx := context.Background()
	history := dailyFrame(day(2021, 1, 1), 200, func(i int, _ time.Time) float64 {
		return 2 + 8/(1+math.Exp(-(float64(i)-100)/20))
	})
	history.SetSaturation(10, 2)

	opts := noSeasonality()
	opts.Growth = GrowthLogistic
	m := New(opts)
	if err := m.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	future, err := m.MakeFutureFrame(300, FreqDay, true)
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	future.SetSaturation(10, 2)
	res, err := m.Predict(ctx, future)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i, row := range res.Rows {
		if row.Yhat < 2 || row.Yhat > 10 {
			t.Fatalf("row %d: yhat = %v outside [2, 10]", i, row.Yhat)
		}
	}
	last := res.Rows[len(res.Rows)-1]
	if last.Yhat < 9 {
		t.Fatalf("long-range forecast %v should approach the cap", last.Yhat)
	}
}

func TestMultiplicativeSeasonality(t *testing.T) {
	ctx := context.Background()
	history := dailyFrame(day(2019, 1, 1), 3*365, func(i int, ts time.Time) float64 {
		days := float64(ts.Unix()) / 86400
		return (100 + 0.05*float64(i)) * (1 + 0.2*math.Sin(2*math.Pi*days/365.25))
	})

	opts := noSeasonality()
	opts.YearlySeasonality = On
	opts.SeasonalityMode = ModeMultiplicative
	m := New(opts)
	if err := m.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	res, err := m.Predict(ctx, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	yearly, _ := res.Component("yearly")
	if yearly.Mode != ModeMultiplicative {
		t.Fatalf("yearly mode = %q", yearly.Mode)
	}
	for i, row := range res.Rows {
		if rel := math.Abs(row.Yhat-history.Y[i]) / history.Y[i]; rel > 0.03 {
			t.Fatalf("row %d: yhat = %.3f, y = %.3f", i, row.Yhat, history.Y[i])
		}
	}
}

func TestCountryHolidaysEffect(t *testing.T) {
	ctx := context.Background()
	history := dailyFrame(day(2020, 1, 1), 731, func(_ int, ts time.Time) float64 {
		if ts.Month() == time.December && ts.Day() == 25 {
			return 30
		}
		return 10
	})

	m := New(noSeasonality())
	if err := m.AddCountryHolidays("Italy"); err != nil {
		t.Fatalf("add holidays: %v", err)
	}
	if err := m.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	res, err := m.Predict(ctx, nil)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	hol, ok := res.Component(HolidaysComponent)
	if !ok {
		t.Fatalf("holidays component missing")
	}
	for i, row := range res.Rows {
		if row.DS.Equal(day(2021, 12, 25)) && hol.Values[i] < 15 {
			t.Fatalf("christmas effect = %.3f, want about 20", hol.Values[i])
		}
	}

	if err := New(noSeasonality()).AddCountryHolidays("Atlantis"); err == nil {
		t.Fatalf("expected unknown country error")
	}
}

func TestChangepointPlacement(t *testing.T) {
	ctx := context.Background()
	history := dailyFrame(day(2021, 1, 1), 100, func(i int, _ time.Time) float64 { return float64(i) })
	m := New(noSeasonality())
	if err := m.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	cps := m.Changepoints()
	if len(cps) != 25 {
		t.Fatalf("changepoints = %d, want 25", len(cps))
	}
	limit := history.DS[79]
	for _, cp := range cps {
		if cp.DS.After(limit) || !cp.DS.After(history.DS[0]) {
			t.Fatalf("changepoint %s outside first 80%% of history", cp.DS)
		}
	}

	short := dailyFrame(day(2021, 1, 1), 10, func(i int, _ time.Time) float64 { return float64(i) })
	ms := New(noSeasonality())
	if err := ms.Fit(ctx, short); err != nil {
		t.Fatalf("fit short: %v", err)
	}
	if got := len(ms.Changepoints()); got != 7 {
		t.Fatalf("short changepoints = %d, want 7", got)
	}
}

func TestModelLifecycleErrors(t *testing.T) {
	ctx := context.Background()
	m := New(DefaultOptions())
	if _, err := m.Predict(ctx, nil); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("predict before fit: %v", err)
	}
	if _, err := m.MakeFutureFrame(3, FreqMonthEnd, true); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("future before fit: %v", err)
	}

	one := &Frame{DS: []time.Time{day(2021, 1, 1)}, Y: []float64{1}}
	if err := m.Fit(ctx, one); !errors.Is(err, ErrTooFewRows) {
		t.Fatalf("fit one row: %v", err)
	}

	nan := &Frame{DS: []time.Time{day(2021, 1, 1), day(2021, 1, 2)}, Y: []float64{1, math.NaN()}}
	if err := m.Fit(ctx, nan); !errors.Is(err, ErrTooFewRows) {
		t.Fatalf("fit with NaN row: %v", err)
	}

	opts := DefaultOptions()
	opts.Growth = GrowthLogistic
	history := dailyFrame(day(2021, 1, 1), 30, func(i int, _ time.Time) float64 { return float64(i) })
	if err := New(opts).Fit(ctx, history); !errors.Is(err, ErrMissingCap) {
		t.Fatalf("logistic without cap: %v", err)
	}

	lin := New(noSeasonality())
	if err := lin.Fit(ctx, history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := lin.Fit(ctx, history); !errors.Is(err, ErrAlreadyFitted) {
		t.Fatalf("second fit: %v", err)
	}
	if err := lin.AddSeasonality(Seasonality{Name: "monthly", Period: 30.4375, FourierOrder: 5}); !errors.Is(err, ErrAlreadyFitted) {
		t.Fatalf("add seasonality after fit: %v", err)
	}
}

func TestFreshCopiesConfiguration(t *testing.T) {
	m := New(noSeasonality())
	if err := m.AddSeasonality(Seasonality{Name: "monthly", Period: 30.4375, FourierOrder: 5}); err != nil {
		t.Fatalf("add seasonality: %v", err)
	}
	if err := m.AddSeasonality(Seasonality{Name: "monthly", Period: 30, FourierOrder: 5}); err == nil {
		t.Fatalf("expected duplicate seasonality error")
	}
	if err := m.AddCountryHolidays("Spain"); err != nil {
		t.Fatalf("add holidays: %v", err)
	}

	history := dailyFrame(day(2021, 1, 1), 90, func(i int, _ time.Time) float64 { return float64(i % 30) })
	if err := m.Fit(context.Background(), history); err != nil {
		t.Fatalf("fit: %v", err)
	}

	fresh := m.Fresh()
	if fresh.Fitted() {
		t.Fatalf("fresh model should be unfitted")
	}
	if fresh.Country() != "Spain" {
		t.Fatalf("country = %q", fresh.Country())
	}
	if err := fresh.Fit(context.Background(), history); err != nil {
		t.Fatalf("fit fresh: %v", err)
	}
	names := map[string]bool{}
	for _, s := range fresh.Seasonalities() {
		names[s.Name] = true
	}
	if !names["monthly"] {
		t.Fatalf("fresh model lost the monthly seasonality: %v", names)
	}
}

func TestSignificantChangepoints(t *testing.T) {
	// slope changes sharply at day 50
	history := dailyFrame(day(2021, 1, 1), 100, func(i int, _ time.Time) float64 {
		if i < 50 {
			return float64(i)
		}
		return 50 + 5*float64(i-50)
	})
	opts := noSeasonality()
	opts.ChangepointPriorScale = 0.5
	m := New(opts)
	if err := m.Fit(context.Background(), history); err != nil {
		t.Fatalf("fit: %v", err)
	}
	sig := m.SignificantChangepoints(0.01)
	if len(sig) == 0 {
		t.Fatalf("expected at least one significant changepoint")
	}
	for _, cp := range sig {
		if math.Abs(cp.Delta) < 0.01 {
			t.Fatalf("changepoint %s delta %v below threshold", cp.DS, cp.Delta)
		}
	}
}

func TestLongMonthlyHorizonKeepsSeasonAndTrend(t *testing.T) {
	ctx := context.Background()
	n := 72
	ds := make([]time.Time, n)
	y := make([]float64, n)
	for i := range ds {
		ds[i] = time.Date(2015, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC)
		days := float64(ds[i].Unix()) / 86400
		y[i] = 100 + 2*float64(i) + 5*math.Sin(2*math.Pi*days/365.25)
	}

	opts := noSeasonality()
	opts.YearlySeasonality = On
	m := New(opts)
	if err := m.Fit(ctx, &Frame{DS: ds, Y: y}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	future, err := m.MakeFutureFrame(3660, FreqMonthEnd, true)
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	res, err := m.Predict(ctx, future)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	last := res.Rows[len(res.Rows)-1].DS
	if last.Year() != 2325 || last.Month() != time.December {
		t.Fatalf("last date = %s, want 2325-12-31", last.Format("2006-01-02"))
	}

	yearly, ok := res.Component("yearly")
	if !ok {
		t.Fatalf("yearly component missing")
	}
	ref := math.NaN()
	for i, row := range res.Rows {
		if row.DS.Month() != time.December {
			continue
		}
		if math.IsNaN(ref) {
			ref = yearly.Values[i]
			continue
		}
		if math.Abs(yearly.Values[i]-ref) > 1 {
			t.Fatalf("%s: december yearly = %.3f, first december %.3f", row.DS.Format("2006-01-02"), yearly.Values[i], ref)
		}
	}

	for i := n; i < len(res.Rows); i++ {
		if res.Rows[i].Trend <= res.Rows[i-1].Trend {
			t.Fatalf("%s: trend %.3f not above previous %.3f", res.Rows[i].DS.Format("2006-01-02"), res.Rows[i].Trend, res.Rows[i-1].Trend)
		}
	}
}

func TestSecondsBetweenBeyondDurationRange(t *testing.T) {
	from := time.Date(2015, 1, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2325, 12, 31, 0, 0, 0, 0, time.UTC)
	want := float64(to.Unix() - from.Unix())
	if got := secondsBetween(from, to); got != want {
		t.Fatalf("secondsBetween = %v, want %v", got, want)
	}
	if to.Sub(from).Seconds() == want {
		t.Fatalf("expected time.Sub to saturate for this span")
	}
}
