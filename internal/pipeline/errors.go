package pipeline

import (
	"context"
	"errors"

	"trendcast/internal/diagnostics"
	"trendcast/internal/exporter"
	"trendcast/internal/forecast"
	"trendcast/internal/holidays"
	"trendcast/internal/ingest"
	"trendcast/internal/series"
	"trendcast/internal/settings"
	"trendcast/internal/store"
)

var (
	ErrNoDataset              = errors.New("no dataset loaded")
	ErrNotMapped              = errors.New("columns not mapped")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrNotFitted              = errors.New("model not fitted")
	ErrNoForecast             = errors.New("no forecast")
	ErrNoMetrics              = errors.New("no metrics")
	ErrInvalidCrossValidation = errors.New("invalid cross-validation")
)

// Kind 错误分类，决定响应码与提示
type Kind string

const (
	KindInvalidInput           Kind = "invalid_input"
	KindInvalidConfiguration   Kind = "invalid_configuration"
	KindNotFitted              Kind = "not_fitted"
	KindNoForecast             Kind = "no_forecast"
	KindNoMetrics              Kind = "no_metrics"
	KindInvalidCrossValidation Kind = "invalid_cross_validation"
	KindNotFound               Kind = "not_found"
	KindCanceled               Kind = "canceled"
	KindInternal               Kind = "internal"
)

// 页面提示文案
const (
	MsgNoDataset               = "Upload a dataset to start"
	MsgNotMapped               = "Select the date and value columns"
	MsgInvalidConfiguration    = "Invalid configuration"
	MsgFitFirst                = "Fit the model before generating a forecast"
	MsgRequiresForecast        = "Requires forecast generation.."
	MsgCreateForecastForMetric = "Create a forecast to see metrics"
	MsgInvalidCrossValidation  = "Invalid configuration. Try other parameters."
	MsgNoMetrics               = "No metrics to export"
	MsgGenerateForecast        = "Generate a forecast to download."
)

// Error 带分类与用户提示的阶段错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf 错误分类；非本包错误按来源包的哨兵错误归类
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ingest.ErrUnknownDataset), errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ingest.ErrParse),
		errors.Is(err, ingest.ErrTooFewColumns),
		errors.Is(err, ingest.ErrEmpty),
		errors.Is(err, series.ErrColumnNotFound),
		errors.Is(err, series.ErrSameColumn),
		errors.Is(err, series.ErrBadCell),
		errors.Is(err, series.ErrNoRows),
		errors.Is(err, settings.ErrOutOfRange),
		errors.Is(err, settings.ErrUnknownOption),
		errors.Is(err, holidays.ErrUnknownCountry),
		errors.Is(err, diagnostics.ErrUnknownMetric),
		errors.Is(err, diagnostics.ErrMetricUnavailable):
		return KindInvalidInput
	case errors.Is(err, forecast.ErrNotFitted):
		return KindNotFitted
	case errors.Is(err, exporter.ErrNoForecast):
		return KindNoForecast
	case errors.Is(err, exporter.ErrNoMetrics):
		return KindNoMetrics
	}
	return KindInternal
}

// MessageOf 用户可见提示
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
