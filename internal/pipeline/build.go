package pipeline

import (
	"trendcast/internal/forecast"
	"trendcast/internal/model"
)

// BuildModel 将解析后的配置转换为未拟合的预测模型
func BuildModel(cfg *model.Settings, opts Options) (*forecast.Model, error) {
	fo := forecast.DefaultOptions()
	fo.Growth = forecast.Growth(cfg.Growth.Mode)
	fo.SeasonalityMode = forecast.Mode(cfg.Model.SeasonalityMode)
	fo.ChangepointPriorScale = cfg.Model.ChangepointPriorScale
	fo.SeasonalityPriorScale = cfg.Model.SeasonalityPriorScale
	if opts.NChangepoints > 0 {
		fo.NChangepoints = opts.NChangepoints
	}
	if opts.ChangepointRange > 0 {
		fo.ChangepointRange = opts.ChangepointRange
	}
	if opts.IntervalWidth > 0 {
		fo.IntervalWidth = opts.IntervalWidth
	}
	if opts.HolidaysPriorScale > 0 {
		fo.HolidaysPriorScale = opts.HolidaysPriorScale
	}
	// 勾选时强制年季节项，未勾选时按数据跨度自动判断
	if cfg.Model.YearlySeasonality {
		fo.YearlySeasonality = forecast.On
	}

	m := forecast.New(fo)
	if cfg.Model.MonthlySeasonality {
		err := m.AddSeasonality(forecast.Seasonality{
			Name:         "monthly",
			Period:       MonthlyPeriod,
			FourierOrder: MonthlyFourierOrder,
		})
		if err != nil {
			return nil, err
		}
	}
	if cfg.Model.HolidaysEnabled() {
		if err := m.AddCountryHolidays(cfg.Model.HolidayCountry); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SeriesFrame 规范序列 → 模型输入；逻辑增长时注入 cap / floor 列
func SeriesFrame(s *model.Series, growth model.GrowthConfig) *forecast.Frame {
	f := &forecast.Frame{DS: s.Dates(), Y: s.Values()}
	if growth.Mode == model.GrowthLogistic {
		f.SetSaturation(growth.Cap, growth.Floor)
	}
	return f
}
