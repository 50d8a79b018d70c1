package handlers

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"trendcast/internal/forecast"
	"trendcast/internal/pipeline"
)

func TestForecastJSONNullsNonFinite(t *testing.T) {
	ds := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)
	res := &forecast.Result{
		Rows: []forecast.Row{
			{DS: ds, Trend: 1, TrendLower: 0.5, TrendUpper: 1.5, YhatLower: math.Inf(-1), Yhat: math.NaN(), YhatUpper: math.Inf(1)},
		},
		Components: []forecast.Component{
			{Name: "yearly", Mode: forecast.ModeAdditive, Values: []float64{math.NaN()}},
		},
	}

	data, err := json.Marshal(encodeForecast(res))
	if err != nil {
		t.Fatalf("marshal forecast: %v", err)
	}
	body := string(data)
	for _, want := range []string{`"yhat":null`, `"yhat_lower":null`, `"yhat_upper":null`, `"trend":1`, `"values":[null]`} {
		if !strings.Contains(body, want) {
			t.Fatalf("forecast json missing %s: %s", want, body)
		}
	}

	if _, err := json.Marshal(encodeRows(res.Tail(1))); err != nil {
		t.Fatalf("marshal tail: %v", err)
	}
}

func TestComponentsJSONNullsNonFinite(t *testing.T) {
	ds := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)
	comps := &pipeline.Components{
		DS:           []time.Time{ds},
		Trend:        []float64{math.Inf(1)},
		TrendLower:   []float64{0},
		TrendUpper:   []float64{math.NaN()},
		Components:   []forecast.Component{{Name: "holidays", Mode: forecast.ModeAdditive, Values: []float64{2}}},
		Changepoints: []forecast.Changepoint{{DS: ds, Delta: math.NaN()}},
	}
	data, err := json.Marshal(encodeDecomposition(comps))
	if err != nil {
		t.Fatalf("marshal components: %v", err)
	}
	body := string(data)
	for _, want := range []string{`"trend":[null]`, `"trendLower":[0]`, `"trendUpper":[null]`, `"values":[2]`, `"delta":null`} {
		if !strings.Contains(body, want) {
			t.Fatalf("components json missing %s: %s", want, body)
		}
	}
}
