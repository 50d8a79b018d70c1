package settings

import (
	"trendcast/internal/holidays"
	"trendcast/internal/model"
)

// 控件取值范围
const (
	MinPeriods     = 1
	MaxPeriods     = 3660
	DefaultPeriods = 24

	MinCVWindowMonths  = 1
	MaxCVWindowMonths  = 108
	MinCVHorizonMonths = 1
	MaxCVHorizonMonths = 500

	DefaultCVInitialMonths = 6
	DefaultCVPeriodMonths  = 6
	DefaultCVHorizonMonths = 24

	SaturationStep = 0.05
)

// ChangepointScales 趋势变点先验尺度可选值
var ChangepointScales = []float64{0.01, 0.1, 0.5, 1.0}

// SeasonalityScales 季节先验尺度可选值
var SeasonalityScales = []float64{0.1, 1.0, 5.0, 10.0}

// Range 数值输入范围
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

// WidgetOptions 页面控件定义
type WidgetOptions struct {
	Periods           Range                   `json:"periods"`
	SeasonalityModes  []model.SeasonalityMode `json:"seasonalityModes"`
	GrowthModes       []model.GrowthMode      `json:"growthModes"`
	Cap               Range                   `json:"cap"`
	Floor             Range                   `json:"floor"`
	Countries         []string                `json:"countries"`
	ChangepointScales []float64               `json:"changepointScales"`
	SeasonalityScales []float64               `json:"seasonalityScales"`
	CVInitial         Range                   `json:"cvInitial"`
	CVPeriod          Range                   `json:"cvPeriod"`
	CVHorizon         Range                   `json:"cvHorizon"`
	Defaults          model.Selections        `json:"defaults"`
}

// Options 返回控件定义；国家列表第一项为占位符
func Options() WidgetOptions {
	return WidgetOptions{
		Periods:           Range{Min: MinPeriods, Max: MaxPeriods, Step: 1, Default: DefaultPeriods},
		SeasonalityModes:  []model.SeasonalityMode{model.SeasonalityAdditive, model.SeasonalityMultiplicative},
		GrowthModes:       []model.GrowthMode{model.GrowthLinear, model.GrowthLogistic},
		Cap:               Range{Min: 0, Max: 1, Step: SaturationStep, Default: 0},
		Floor:             Range{Min: 0, Max: 1, Step: SaturationStep, Default: 0},
		Countries:         append([]string{model.CountryPlaceholder}, holidays.Countries()...),
		ChangepointScales: append([]float64(nil), ChangepointScales...),
		SeasonalityScales: append([]float64(nil), SeasonalityScales...),
		CVInitial:         Range{Min: MinCVWindowMonths, Max: MaxCVWindowMonths, Step: 1, Default: DefaultCVInitialMonths},
		CVPeriod:          Range{Min: MinCVWindowMonths, Max: MaxCVWindowMonths, Step: 1, Default: DefaultCVPeriodMonths},
		CVHorizon:         Range{Min: MinCVHorizonMonths, Max: MaxCVHorizonMonths, Step: 1, Default: DefaultCVHorizonMonths},
		Defaults:          Defaults(),
	}
}

// Defaults 页面初始选择
func Defaults() model.Selections {
	return model.Selections{
		Periods:          DefaultPeriods,
		Seasonality:      model.SeasonalityAdditive,
		Growth:           model.GrowthLinear,
		Country:          model.CountryPlaceholder,
		ChangepointScale: ChangepointScales[0],
		SeasonalityScale: SeasonalityScales[0],
		CVInitialMonths:  DefaultCVInitialMonths,
		CVPeriodMonths:   DefaultCVPeriodMonths,
		CVHorizonMonths:  DefaultCVHorizonMonths,
	}
}
