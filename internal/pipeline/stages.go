package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"trendcast/internal/diagnostics"
	"trendcast/internal/exporter"
	"trendcast/internal/forecast"
	"trendcast/internal/model"
	"trendcast/internal/series"
	"trendcast/internal/settings"
)

// MonthlyPeriod 自定义月度季节项周期（天）
const (
	MonthlyPeriod       = 30.4375
	MonthlyFourierOrder = 5
)

// changepointThreshold 变点显著性阈值（线性增长时在图上标出）
const changepointThreshold = 0.01

// Load 载入新数据集，清空列映射及之后的全部状态
func (s *Session) Load(ds *model.Dataset) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("load", time.Now(), &err)

	if ds == nil {
		return newError(KindInvalidInput, MsgNoDataset, ErrNoDataset)
	}
	s.clearAfter(StageUnconfigured)
	s.dataset = ds
	s.stage = StageLoaded
	return nil
}

// Dataset 当前数据集
func (s *Session) Dataset() (*model.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil {
		return nil, newError(KindInvalidInput, MsgNoDataset, ErrNoDataset)
	}
	return s.dataset, nil
}

// MapColumns 选择日期列与数值列，生成规范序列；列名为空时使用默认列
func (s *Session) MapColumns(dateCol, valueCol string) (_ *model.Series, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("map", time.Now(), &err)

	if s.dataset == nil {
		return nil, newError(KindInvalidInput, MsgNoDataset, ErrNoDataset)
	}
	defDate, defValue := series.DefaultColumns(s.dataset)
	if dateCol == "" {
		dateCol = defDate
	}
	if valueCol == "" {
		valueCol = defValue
	}

	ser, err := series.Normalize(s.dataset, dateCol, valueCol)
	if err != nil {
		return nil, newError(KindInvalidInput, err.Error(), err)
	}
	s.clearAfter(StageLoaded)
	s.series = ser
	s.stage = StageMapped
	return ser, nil
}

// Series 当前规范序列及其统计描述
func (s *Session) Series() (*model.Series, series.Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series == nil {
		return nil, series.Description{}, newError(KindInvalidInput, MsgNotMapped, ErrNotMapped)
	}
	return s.series, series.Describe(s.series), nil
}

// Configure 更新页面选择；配置变化会丢弃已拟合的模型及之后的结果
func (s *Session) Configure(sel model.Selections) (_ *model.Settings, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("configure", time.Now(), &err)

	resolved, err := settings.Resolve(sel)
	if err != nil {
		return nil, newError(KindInvalidInput, err.Error(), err)
	}
	s.selection = sel
	s.settings = resolved
	s.clearAfter(StageMapped)
	return resolved, nil
}

// Settings 当前配置
func (s *Session) Settings() (model.Selections, *model.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection, s.settings
}

// FitSummary 拟合结果摘要
type FitSummary struct {
	Points       int                    `json:"points"`
	Seasonality  []forecast.Seasonality `json:"seasonalities"`
	Changepoints int                    `json:"changepoints"`
	ForecastTo   time.Time              `json:"forecastTo"`
	FuturePoints int                    `json:"futurePoints"`
	Message      string                 `json:"message"`
}

// Fit 按当前配置构建并拟合模型，同时生成未来日期表
func (s *Session) Fit(ctx context.Context) (_ *FitSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("fit", time.Now(), &err)

	if s.series == nil {
		return nil, newError(KindInvalidInput, MsgNotMapped, ErrNotMapped)
	}
	cfg := s.settings
	if cfg == nil || !cfg.Growth.Complete() {
		return nil, newError(KindInvalidConfiguration, MsgInvalidConfiguration, ErrInvalidConfiguration)
	}

	s.clearAfter(StageMapped)

	m, err := BuildModel(cfg, s.opts)
	if err != nil {
		return nil, newError(KindInvalidConfiguration, MsgInvalidConfiguration, err)
	}
	history := SeriesFrame(s.series, cfg.Growth)
	if err := m.Fit(ctx, history); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(KindCanceled, "canceled", err)
		}
		return nil, newError(KindInvalidConfiguration, MsgInvalidConfiguration, err)
	}

	future, err := m.MakeFutureFrame(cfg.Periods, s.opts.Frequency, true)
	if err != nil {
		return nil, newError(KindInternal, "failed to build future dates", err)
	}
	if cfg.Growth.Mode == model.GrowthLogistic {
		future.SetSaturation(cfg.Growth.Cap, cfg.Growth.Floor)
	}

	s.model = m
	s.future = future
	s.stage = StageFitted

	fitted, err := m.History()
	if err != nil {
		return nil, newError(KindInternal, "fitted history missing", err)
	}
	historyDates, err := m.HistoryDates()
	if err != nil {
		return nil, newError(KindInternal, "fitted history missing", err)
	}

	last := future.Last()
	return &FitSummary{
		Points:       fitted.Len(),
		Seasonality:  m.Seasonalities(),
		Changepoints: len(m.Changepoints()),
		ForecastTo:   last,
		FuturePoints: future.Len() - len(historyDates),
		Message:      "The model will produce forecast up to " + last.Format("2006-01-02 15:04:05"),
	}, nil
}

// Predict 在未来日期表上生成预测
func (s *Session) Predict(ctx context.Context) (_ *forecast.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("predict", time.Now(), &err)

	if s.model == nil || s.future == nil {
		return nil, newError(KindNotFitted, MsgFitFirst, ErrNotFitted)
	}
	res, err := s.model.Predict(ctx, s.future)
	if err != nil {
		return nil, newError(KindInternal, "prediction failed", err)
	}
	s.forecast = res
	if stageRank(s.stage) < stageRank(StagePredicted) {
		s.stage = StagePredicted
	}
	return res, nil
}

// Forecast 最近一次预测
func (s *Session) Forecast() (*forecast.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forecast == nil {
		return nil, newError(KindNoForecast, MsgRequiresForecast, ErrNoForecast)
	}
	return s.forecast, nil
}

// Components 预测分解（趋势、季节项、节假日）及显著变点
type Components struct {
	DS           []time.Time            `json:"ds"`
	Trend        []float64              `json:"trend"`
	TrendLower   []float64              `json:"trendLower"`
	TrendUpper   []float64              `json:"trendUpper"`
	Components   []forecast.Component   `json:"components"`
	Changepoints []forecast.Changepoint `json:"changepoints,omitempty"`
}

// Components 需要先生成预测
func (s *Session) Components() (*Components, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forecast == nil || s.model == nil {
		return nil, newError(KindNoForecast, MsgRequiresForecast, ErrNoForecast)
	}
	n := s.forecast.Len()
	out := &Components{
		DS:         make([]time.Time, n),
		Trend:      make([]float64, n),
		TrendLower: make([]float64, n),
		TrendUpper: make([]float64, n),
		Components: s.forecast.Components,
	}
	for i, row := range s.forecast.Rows {
		out.DS[i] = row.DS
		out.Trend[i] = row.Trend
		out.TrendLower[i] = row.TrendLower
		out.TrendUpper[i] = row.TrendUpper
	}
	if s.settings.Growth.Mode == model.GrowthLinear {
		out.Changepoints = s.model.SignificantChangepoints(changepointThreshold)
	}
	return out, nil
}

// Validate 交叉验证并计算评估指标；任何失败都不保留部分结果
func (s *Session) Validate(ctx context.Context, onProgress func(diagnostics.Progress)) (_ *diagnostics.Metrics, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("validate", time.Now(), &err)

	if s.forecast == nil || s.model == nil {
		return nil, newError(KindNoForecast, MsgCreateForecastForMetric, ErrNoForecast)
	}
	s.cv = nil
	s.metrics = nil

	invalid := func(err error) error {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return newError(KindCanceled, "canceled", err)
		}
		return newError(KindInvalidCrossValidation, MsgInvalidCrossValidation, fmt.Errorf("%w: %v", ErrInvalidCrossValidation, err))
	}

	initial, err := diagnostics.ParseDuration(s.settings.CV.Initial)
	if err != nil {
		return nil, invalid(err)
	}
	period, err := diagnostics.ParseDuration(s.settings.CV.Period)
	if err != nil {
		return nil, invalid(err)
	}
	horizon, err := diagnostics.ParseDuration(s.settings.CV.Horizon)
	if err != nil {
		return nil, invalid(err)
	}

	cv, err := diagnostics.CrossValidate(ctx, s.model, diagnostics.CVOptions{
		Initial:    initial,
		Period:     period,
		Horizon:    horizon,
		Workers:    s.opts.Workers,
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, invalid(err)
	}
	metrics, err := diagnostics.PerformanceMetrics(cv, s.opts.RollingWindow)
	if err != nil {
		return nil, invalid(err)
	}

	s.cv = cv
	s.metrics = metrics
	if stageRank(s.stage) < stageRank(StageValidated) {
		s.stage = StageValidated
	}
	return metrics, nil
}

// Metrics 最近一次交叉验证指标
func (s *Session) Metrics() (*diagnostics.Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics == nil {
		return nil, newError(KindNoMetrics, MsgNoMetrics, ErrNoMetrics)
	}
	return s.metrics, nil
}

// MetricPlot 交叉验证指标图数据（mse / mae / mape）
func (s *Session) MetricPlot(metric string) (*diagnostics.MetricPlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cv == nil {
		return nil, newError(KindNoMetrics, MsgNoMetrics, ErrNoMetrics)
	}
	plot, err := diagnostics.PlotData(s.cv, metric, s.opts.RollingWindow)
	if err != nil {
		return nil, newError(KindInvalidInput, err.Error(), err)
	}
	return plot, nil
}

// ExportForecast 预测表 CSV 及其 data 链接
func (s *Session) ExportForecast() (_ exporter.Link, _ []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("export_forecast", time.Now(), &err)

	if s.forecast == nil {
		return exporter.Link{}, nil, newError(KindNoForecast, MsgGenerateForecast, ErrNoForecast)
	}
	content, err := exporter.ForecastCSV(s.forecast)
	if err != nil {
		return exporter.Link{}, nil, newError(KindInternal, "export failed", err)
	}
	s.stage = StageExported
	return exporter.ForecastLink(content), content, nil
}

// ExportMetrics 指标表 CSV（小数点为逗号）及其 data 链接
func (s *Session) ExportMetrics() (_ exporter.Link, _ []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("export_metrics", time.Now(), &err)

	if s.forecast == nil {
		return exporter.Link{}, nil, newError(KindNoForecast, MsgGenerateForecast, ErrNoForecast)
	}
	if s.metrics == nil {
		return exporter.Link{}, nil, newError(KindNoMetrics, MsgNoMetrics, ErrNoMetrics)
	}
	content, err := exporter.MetricsCSV(s.metrics)
	if err != nil {
		return exporter.Link{}, nil, newError(KindNoMetrics, MsgNoMetrics, err)
	}
	s.stage = StageExported
	return exporter.MetricsLink(content), content, nil
}

// ExportWorkbook 预测与指标工作簿
func (s *Session) ExportWorkbook(progress func(exporter.ProgressEvent)) (_ *excelize.File, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.track("export_workbook", time.Now(), &err)

	if s.forecast == nil {
		return nil, newError(KindNoForecast, MsgGenerateForecast, ErrNoForecast)
	}
	f, err := exporter.Workbook(s.forecast, s.metrics, progress)
	if err != nil {
		return nil, newError(KindInternal, "export failed", err)
	}
	s.stage = StageExported
	return f, nil
}
