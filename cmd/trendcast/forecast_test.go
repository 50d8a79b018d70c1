package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"trendcast/internal/settings"
)

type fakePrompter struct {
	answers []string
	asked   []string
}

func (p *fakePrompter) SelectColumn(message string, options []string, def string) (string, error) {
	p.asked = append(p.asked, message)
	ans := p.answers[0]
	p.answers = p.answers[1:]
	return ans, nil
}

func writeSales(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("store;value;date\n")
	for i := 0; i < 48; i++ {
		d := time.Date(2019, time.Month(i+2), 0, 0, 0, 0, 0, time.UTC)
		fmt.Fprintf(&b, "north;%.2f;%s\n", 20+0.5*float64(i)+3*math.Cos(2*math.Pi*float64(i)/12), d.Format("2006-01-02"))
	}
	path := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRunForecastWithPrompts(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.toml")
	input := writeSales(t, dir)

	f := forecastFlags{
		sel:        settings.Defaults(),
		validate:   true,
		out:        filepath.Join(dir, "forecast.csv"),
		metricsOut: filepath.Join(dir, "metrics.csv"),
		xlsx:       filepath.Join(dir, "forecast.xlsx"),
	}
	f.sel.Periods = 12
	f.sel.CVInitialMonths = 12
	f.sel.CVHorizonMonths = 6

	prompt := &fakePrompter{answers: []string{"date", "value"}}
	summary, err := runForecast(context.Background(), input, f, prompt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(prompt.asked) != 2 {
		t.Fatalf("prompts = %v", prompt.asked)
	}
	if summary.DateColumn != "date" || summary.ValueColumn != "value" || summary.Points != 48 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.ForecastRows != 60 || summary.ForecastTo != "2023-12-31 00:00:00" {
		t.Fatalf("forecast rows %d to %s", summary.ForecastRows, summary.ForecastTo)
	}
	if summary.Validation == nil || len(summary.Validation.Metrics) == 0 {
		t.Fatalf("missing validation summary")
	}
	if summary.Validation.Initial != "12 Months" || summary.Validation.Horizon != "6 Months" {
		t.Fatalf("validation = %+v", summary.Validation)
	}
	for _, p := range []string{f.out, f.metricsOut, f.xlsx} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing output %s: %v", p, err)
		}
	}
	content, err := os.ReadFile(f.out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(content), "ds,yhat_lower,yhat,yhat_upper\n") {
		t.Fatalf("forecast header: %q", strings.SplitN(string(content), "\n", 2)[0])
	}

	var buf bytes.Buffer
	if err := writeSummary(summary, "", &buf); err != nil {
		t.Fatalf("summary: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if decoded["date_column"] != "date" || decoded["points"] != 48 {
		t.Fatalf("decoded = %v", decoded)
	}
}

func TestRunForecastFlagsSkipPrompts(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.toml")
	input := writeSales(t, dir)

	f := forecastFlags{
		sel:      settings.Defaults(),
		dateCol:  "date",
		valueCol: "value",
		out:      filepath.Join(dir, "out.csv"),
	}
	prompt := &fakePrompter{}
	summary, err := runForecast(context.Background(), input, f, prompt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(prompt.asked) != 0 {
		t.Fatalf("should not prompt when columns are given")
	}
	if summary.Validation != nil {
		t.Fatalf("validation ran without --validate")
	}
}

func TestRunForecastErrors(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.toml")
	input := writeSales(t, dir)

	// 不提示时使用前两列：store 不是日期列
	f := forecastFlags{sel: settings.Defaults()}
	if _, err := runForecast(context.Background(), input, f, nil); err == nil {
		t.Fatalf("expected mapping error for default columns")
	}

	f = forecastFlags{sel: settings.Defaults(), dateCol: "date", valueCol: "value", metricsOut: filepath.Join(dir, "m.csv")}
	if _, err := runForecast(context.Background(), input, f, nil); err == nil {
		t.Fatalf("expected error exporting metrics without validation")
	}

	if _, err := runForecast(context.Background(), filepath.Join(dir, "nope.csv"), f, nil); err == nil {
		t.Fatalf("expected read error")
	}
}
