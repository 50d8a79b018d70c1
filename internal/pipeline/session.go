// Package pipeline 会话级预测流水线：加载 → 列映射 → 配置 → 拟合 → 预测 → 交叉验证 → 导出。
// 每个会话持有自己的状态，上游变更会显式清空下游结果。
package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trendcast/internal/config"
	"trendcast/internal/diagnostics"
	"trendcast/internal/forecast"
	"trendcast/internal/model"
	"trendcast/internal/settings"
)

// Stage 流水线阶段
type Stage string

const (
	StageUnconfigured Stage = "unconfigured"
	StageLoaded       Stage = "loaded"
	StageMapped       Stage = "mapped"
	StageFitted       Stage = "fitted"
	StagePredicted    Stage = "predicted"
	StageValidated    Stage = "validated"
	StageExported     Stage = "exported"
)

// Options 引擎默认参数（来自 config.toml）
type Options struct {
	Frequency          forecast.Freq
	NChangepoints      int
	ChangepointRange   float64
	IntervalWidth      float64
	HolidaysPriorScale float64
	Workers            int
	RollingWindow      float64
}

// DefaultOptions 默认引擎参数
func DefaultOptions() Options {
	def := forecast.DefaultOptions()
	return Options{
		Frequency:          forecast.FreqMonthEnd,
		NChangepoints:      def.NChangepoints,
		ChangepointRange:   def.ChangepointRange,
		IntervalWidth:      def.IntervalWidth,
		HolidaysPriorScale: def.HolidaysPriorScale,
		RollingWindow:      diagnostics.DefaultRollingWindow,
	}
}

// OptionsFromConfig 从应用配置构造引擎参数；未设置的项使用默认值
func OptionsFromConfig(cfg *config.AppConfig) (Options, error) {
	opts := DefaultOptions()
	freq, err := forecast.ParseFreq(cfg.Forecast.Frequency)
	if err != nil {
		return Options{}, fmt.Errorf("forecast.frequency: %w", err)
	}
	opts.Frequency = freq
	if cfg.Forecast.NChangepoints > 0 {
		opts.NChangepoints = cfg.Forecast.NChangepoints
	}
	if r := cfg.Forecast.ChangepointRange; r > 0 && r <= 1 {
		opts.ChangepointRange = r
	}
	if w := cfg.Forecast.IntervalWidth; w > 0 && w < 1 {
		opts.IntervalWidth = w
	}
	if cfg.Forecast.HolidaysPriorScale > 0 {
		opts.HolidaysPriorScale = cfg.Forecast.HolidaysPriorScale
	}
	if cfg.Validation.Workers > 0 {
		opts.Workers = cfg.Validation.Workers
	}
	if w := cfg.Validation.RollingWindow; w >= 0 && w <= 1 {
		opts.RollingWindow = w
	}
	return opts, nil
}

// Event 一次阶段操作完成后的通知
type Event struct {
	SessionID string        `json:"sessionId"`
	DatasetID string        `json:"datasetId,omitempty"`
	Op        string        `json:"op"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
	Snapshot  Snapshot      `json:"snapshot"`
}

// Observer 接收阶段事件；在会话锁内调用，不能回调会话
type Observer interface {
	Observe(Event)
}

// ObserverFunc 函数适配器
type ObserverFunc func(Event)

// Observe 实现 Observer
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// Session 单个用户会话的流水线状态
type Session struct {
	id       string
	opts     Options
	observer Observer

	mu        sync.Mutex
	stage     Stage
	dataset   *model.Dataset
	series    *model.Series
	selection model.Selections
	settings  *model.Settings
	model     *forecast.Model
	future    *forecast.Frame
	forecast  *forecast.Result
	cv        *diagnostics.CVResult
	metrics   *diagnostics.Metrics

	// 最近活动时间（UnixNano），不经 mu 读取，清理任务不必等待进行中的阶段
	lastUsed atomic.Int64
}

// NewSession 创建会话，配置取页面默认值
func NewSession(id string, opts Options, observer Observer) *Session {
	sel := settings.Defaults()
	resolved, err := settings.Resolve(sel)
	if err != nil {
		// 默认值必须合法
		panic(err)
	}
	s := &Session{
		id:        id,
		opts:      opts,
		observer:  observer,
		stage:     StageUnconfigured,
		selection: sel,
		settings:  resolved,
	}
	s.Touch()
	return s
}

// ID 会话 ID
func (s *Session) ID() string {
	return s.id
}

// Touch 记录一次活动
func (s *Session) Touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// UpdatedAt 最近一次活动时间（用于过期清理），不等待会话锁
func (s *Session) UpdatedAt() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Stage 当前阶段
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// track 在持锁状态下记录一次操作并通知观察者
func (s *Session) track(op string, start time.Time, err *error) {
	s.Touch()
	if s.observer == nil {
		return
	}
	ev := Event{
		SessionID: s.id,
		Op:        op,
		Duration:  time.Since(start),
		Snapshot:  s.snapshotLocked(),
	}
	if s.dataset != nil {
		ev.DatasetID = s.dataset.ID
	}
	if err != nil {
		ev.Err = *err
	}
	s.observer.Observe(ev)
}

// clearAfter 丢弃 stage 之后的所有结果
func (s *Session) clearAfter(stage Stage) {
	switch stage {
	case StageUnconfigured:
		s.dataset = nil
		fallthrough
	case StageLoaded:
		s.series = nil
		fallthrough
	case StageMapped:
		s.model = nil
		s.future = nil
		fallthrough
	case StageFitted:
		s.forecast = nil
		fallthrough
	case StagePredicted:
		s.cv = nil
		s.metrics = nil
	}
	if stageRank(s.stage) > stageRank(stage) {
		s.stage = stage
	}
}

func stageRank(st Stage) int {
	switch st {
	case StageLoaded:
		return 1
	case StageMapped:
		return 2
	case StageFitted:
		return 3
	case StagePredicted:
		return 4
	case StageValidated:
		return 5
	case StageExported:
		return 6
	}
	return 0
}

// Snapshot 会话状态摘要（页面渲染 / websocket 推送）
type Snapshot struct {
	ID          string           `json:"id"`
	Stage       Stage            `json:"stage"`
	Dataset     *DatasetSummary  `json:"dataset,omitempty"`
	DateColumn  string           `json:"dateColumn,omitempty"`
	ValueColumn string           `json:"valueColumn,omitempty"`
	Points      int              `json:"points"`
	Selections  model.Selections `json:"selections"`
	Settings    *model.Settings  `json:"settings,omitempty"`
	Fitted      bool             `json:"fitted"`
	ForecastTo  *time.Time       `json:"forecastTo,omitempty"`
	HasForecast bool             `json:"hasForecast"`
	HasMetrics  bool             `json:"hasMetrics"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// DatasetSummary 数据集概要
type DatasetSummary struct {
	ID        string         `json:"id"`
	FileName  string         `json:"fileName"`
	Delimiter string         `json:"delimiter"`
	Encoding  string         `json:"encoding"`
	Columns   []model.Column `json:"columns"`
	Rows      int            `json:"rows"`
}

// Snapshot 当前状态摘要
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		Stage:       s.stage,
		Selections:  s.selection,
		Settings:    s.settings,
		Fitted:      s.model != nil,
		HasForecast: s.forecast != nil,
		HasMetrics:  s.metrics != nil,
		UpdatedAt:   s.UpdatedAt(),
	}
	if s.dataset != nil {
		snap.Dataset = &DatasetSummary{
			ID:        s.dataset.ID,
			FileName:  s.dataset.FileName,
			Delimiter: s.dataset.Delimiter,
			Encoding:  s.dataset.Encoding,
			Columns:   s.dataset.Columns,
			Rows:      s.dataset.RowCount(),
		}
	}
	if s.series != nil {
		snap.DateColumn = s.series.DateColumn
		snap.ValueColumn = s.series.ValueColumn
		snap.Points = s.series.Len()
	}
	if s.future != nil {
		last := s.future.Last()
		snap.ForecastTo = &last
	}
	return snap
}
