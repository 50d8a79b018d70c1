package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trendcast/internal/config"
	"trendcast/internal/diagnostics"
	"trendcast/internal/ingest"
	"trendcast/internal/model"
	"trendcast/internal/pipeline"
	"trendcast/internal/series"
	"trendcast/internal/settings"
	"trendcast/internal/util"
)

// errAborted 用户在交互提示中按下 Ctrl+C
var errAborted = errors.New("aborted")

type forecastFlags struct {
	dateCol    string
	valueCol   string
	sel        model.Selections
	validate   bool
	out        string
	metricsOut string
	xlsx       string
	summary    string
	noPrompt   bool
}

func newForecastCmd() *cobra.Command {
	f := forecastFlags{sel: settings.Defaults()}
	cmd := &cobra.Command{
		Use:   "forecast <file>",
		Short: "Fit, predict and optionally cross-validate a CSV/xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var prompt columnPrompter
			if !f.noPrompt && isTerminal(os.Stdin) {
				prompt = surveyPrompter{}
			}
			summary, err := runForecast(ctx, args[0], f, prompt)
			if err != nil {
				return err
			}
			return writeSummary(summary, f.summary, cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dateCol, "date-col", "", "date column (prompted on a terminal when empty)")
	fl.StringVar(&f.valueCol, "value-col", "", "value column (prompted on a terminal when empty)")
	fl.IntVar(&f.sel.Periods, "periods", f.sel.Periods, "forecast horizon in periods (1-3660)")
	fl.StringVar((*string)(&f.sel.Growth), "growth", string(f.sel.Growth), "trend growth: linear or logistic")
	fl.Float64Var(&f.sel.Cap, "cap", f.sel.Cap, "logistic cap (0-1)")
	fl.Float64Var(&f.sel.Floor, "floor", f.sel.Floor, "logistic floor (0-1)")
	fl.StringVar((*string)(&f.sel.Seasonality), "seasonality", string(f.sel.Seasonality), "seasonality mode: additive or multiplicative")
	fl.BoolVar(&f.sel.Monthly, "monthly", false, "add monthly seasonality")
	fl.BoolVar(&f.sel.Yearly, "yearly", false, "force yearly seasonality (auto-detected otherwise)")
	fl.StringVar(&f.sel.Country, "country", "", "holiday country: Italy, Spain, United States, France, Germany, UK")
	fl.BoolVar(&f.sel.IncludeHolidays, "holidays", false, "add the country's holidays")
	fl.Float64Var(&f.sel.ChangepointScale, "changepoint-scale", f.sel.ChangepointScale, "changepoint prior scale: 0.01, 0.1, 0.5, 1.0")
	fl.Float64Var(&f.sel.SeasonalityScale, "seasonality-scale", f.sel.SeasonalityScale, "seasonality prior scale: 0.1, 1.0, 5.0, 10.0")
	fl.BoolVar(&f.validate, "validate", false, "run cross-validation and compute metrics")
	fl.IntVar(&f.sel.CVInitialMonths, "initial", f.sel.CVInitialMonths, "cross-validation initial window in months")
	fl.IntVar(&f.sel.CVPeriodMonths, "period", f.sel.CVPeriodMonths, "cross-validation period in months")
	fl.IntVar(&f.sel.CVHorizonMonths, "horizon", f.sel.CVHorizonMonths, "cross-validation horizon in months")
	fl.StringVarP(&f.out, "out", "o", "forecast.csv", "forecast CSV output path")
	fl.StringVar(&f.metricsOut, "metrics-out", "", "metrics CSV output path (requires --validate)")
	fl.StringVar(&f.xlsx, "xlsx", "", "forecast workbook output path")
	fl.StringVar(&f.summary, "summary", "", "write the YAML run summary to this path instead of stdout")
	fl.BoolVar(&f.noPrompt, "no-prompt", false, "never prompt, use the first two columns when not given")
	return cmd
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// columnPrompter 交互选择列
type columnPrompter interface {
	SelectColumn(message string, options []string, def string) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) SelectColumn(message string, options []string, def string) (string, error) {
	var out string
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if def != "" {
		prompt.Default = def
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", errAborted
		}
		return "", err
	}
	return out, nil
}

// runSummary 批处理结果摘要（YAML）
type runSummary struct {
	File          string            `yaml:"file"`
	Encoding      string            `yaml:"encoding"`
	Delimiter     string            `yaml:"delimiter,omitempty"`
	Rows          int               `yaml:"rows"`
	DateColumn    string            `yaml:"date_column"`
	ValueColumn   string            `yaml:"value_column"`
	Points        int               `yaml:"points"`
	Growth        model.GrowthMode  `yaml:"growth"`
	Seasonality   string            `yaml:"seasonality_mode"`
	Seasonalities []string          `yaml:"seasonalities"`
	Holidays      string            `yaml:"holidays,omitempty"`
	Changepoints  int               `yaml:"changepoints"`
	ForecastTo    string            `yaml:"forecast_to"`
	ForecastRows  int               `yaml:"forecast_rows"`
	Warnings      []string          `yaml:"warnings,omitempty"`
	Validation    *validationResult `yaml:"validation,omitempty"`
	Outputs       []string          `yaml:"outputs"`
}

type validationResult struct {
	Initial string          `yaml:"initial"`
	Period  string          `yaml:"period"`
	Horizon string          `yaml:"horizon"`
	Metrics []metricSummary `yaml:"metrics"`
}

type metricSummary struct {
	Horizon string            `yaml:"horizon"`
	Values  map[string]string `yaml:"values"`
}

func runForecast(ctx context.Context, path string, f forecastFlags, prompt columnPrompter) (*runSummary, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("加载配置失败，使用默认配置: %v", err)
		cfg = config.DefaultConfig()
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ds, err := ingest.Parse(path, data)
	if err != nil {
		return nil, err
	}

	dateCol, valueCol := f.dateCol, f.valueCol
	defDate, defValue := series.DefaultColumns(ds)
	if prompt != nil {
		names := ds.ColumnNames()
		if dateCol == "" {
			if dateCol, err = prompt.SelectColumn("Date column:", names, defDate); err != nil {
				return nil, err
			}
		}
		if valueCol == "" {
			if valueCol, err = prompt.SelectColumn("Value column:", names, defValue); err != nil {
				return nil, err
			}
		}
	}

	s := pipeline.NewSession("cli", opts, nil)
	if err := s.Load(ds); err != nil {
		return nil, err
	}
	ser, err := s.MapColumns(dateCol, valueCol)
	if err != nil {
		return nil, err
	}
	resolved, err := s.Configure(f.sel)
	if err != nil {
		return nil, err
	}
	for _, w := range resolved.Warnings {
		log.Printf("warning: %s", w)
	}

	fit, err := s.Fit(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.Predict(ctx)
	if err != nil {
		return nil, err
	}

	summary := &runSummary{
		File:         path,
		Encoding:     ds.Encoding,
		Delimiter:    ds.Delimiter,
		Rows:         ds.RowCount(),
		DateColumn:   ser.DateColumn,
		ValueColumn:  ser.ValueColumn,
		Points:       ser.Len(),
		Growth:       resolved.Growth.Mode,
		Seasonality:  string(resolved.Model.SeasonalityMode),
		Changepoints: fit.Changepoints,
		ForecastTo:   fit.ForecastTo.Format("2006-01-02 15:04:05"),
		ForecastRows: res.Len(),
		Warnings:     resolved.Warnings,
	}
	for _, sea := range fit.Seasonality {
		summary.Seasonalities = append(summary.Seasonalities, sea.Name)
	}
	if resolved.Model.HolidaysEnabled() {
		summary.Holidays = resolved.Model.HolidayCountry
	}

	if f.validate {
		m, err := s.Validate(ctx, func(p diagnostics.Progress) {
			log.Printf("cross-validation: cutoff %s (%d/%d)", p.Cutoff.Format("2006-01-02"), p.Done, p.Total)
		})
		if err != nil {
			return nil, err
		}
		summary.Validation = summarizeMetrics(resolved.CV, m)
	}

	if f.out != "" {
		_, content, err := s.ExportForecast()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(f.out, content, 0644); err != nil {
			return nil, fmt.Errorf("write forecast: %w", err)
		}
		summary.Outputs = append(summary.Outputs, f.out)
	}
	if f.metricsOut != "" {
		_, content, err := s.ExportMetrics()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(f.metricsOut, content, 0644); err != nil {
			return nil, fmt.Errorf("write metrics: %w", err)
		}
		summary.Outputs = append(summary.Outputs, f.metricsOut)
	}
	if f.xlsx != "" {
		wb, err := s.ExportWorkbook(nil)
		if err != nil {
			return nil, err
		}
		err = wb.SaveAs(f.xlsx)
		wb.Close()
		if err != nil {
			return nil, fmt.Errorf("write workbook: %w", err)
		}
		summary.Outputs = append(summary.Outputs, f.xlsx)
	}
	return summary, nil
}

func summarizeMetrics(cv model.CVConfig, m *diagnostics.Metrics) *validationResult {
	out := &validationResult{Initial: cv.Initial, Period: cv.Period, Horizon: cv.Horizon}
	for _, row := range m.Rows {
		values := make(map[string]string, len(m.Columns))
		for _, name := range m.Columns {
			v, _ := row.Value(name)
			if name == diagnostics.MetricCoverage {
				values[name] = util.FormatPercent(v)
			} else {
				values[name] = util.FormatNumber(v)
			}
		}
		out.Metrics = append(out.Metrics, metricSummary{
			Horizon: diagnostics.FormatHorizon(row.Horizon),
			Values:  values,
		})
	}
	return out
}

func writeSummary(summary *runSummary, path string, stdout io.Writer) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
