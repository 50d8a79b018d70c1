// Package settings 把页面控件选择解析为模型配置，并校验增长/季节参数。
package settings

import (
	"errors"
	"fmt"
	"math"

	"trendcast/internal/holidays"
	"trendcast/internal/model"
)

var (
	// ErrOutOfRange 数值超出控件范围
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnknownOption 取值不在可选集合中
	ErrUnknownOption = errors.New("unknown option")
)

// 用户可见提示
const (
	MsgCapBelowFloor  = "Invalid settings. Cap must be higher then floor."
	MsgCapEqualsFloor = "Cap must be higher than floor"
	MsgPickCountry    = "Select a country to add holidays"
)

// Resolve 解析页面选择。
// 增长配置不完整（floor >= cap）不返回错误，而是通过 Growth.Status 阻止拟合；
// 数值越界或选项非法返回错误。
func Resolve(sel model.Selections) (*model.Settings, error) {
	if sel.Periods < MinPeriods || sel.Periods > MaxPeriods {
		return nil, fmt.Errorf("%w: periods %d not in [%d, %d]", ErrOutOfRange, sel.Periods, MinPeriods, MaxPeriods)
	}

	mode := sel.Seasonality
	if mode == "" {
		mode = model.SeasonalityAdditive
	}
	if mode != model.SeasonalityAdditive && mode != model.SeasonalityMultiplicative {
		return nil, fmt.Errorf("%w: seasonality mode %q", ErrUnknownOption, mode)
	}

	if !contains(ChangepointScales, sel.ChangepointScale) {
		return nil, fmt.Errorf("%w: changepoint prior scale %v", ErrUnknownOption, sel.ChangepointScale)
	}
	if !contains(SeasonalityScales, sel.SeasonalityScale) {
		return nil, fmt.Errorf("%w: seasonality prior scale %v", ErrUnknownOption, sel.SeasonalityScale)
	}

	out := &model.Settings{Periods: sel.Periods}

	growth, warnings, err := ResolveGrowth(sel.Growth, sel.Cap, sel.Floor)
	if err != nil {
		return nil, err
	}
	out.Growth = growth
	out.Warnings = append(out.Warnings, warnings...)

	country := ""
	switch {
	case sel.Country == "" || sel.Country == model.CountryPlaceholder:
	case holidays.Supported(sel.Country):
		country = sel.Country
	default:
		return nil, fmt.Errorf("%w: country %q", ErrUnknownOption, sel.Country)
	}
	if sel.IncludeHolidays && country == "" {
		out.Warnings = append(out.Warnings, MsgPickCountry)
	}

	out.Model = model.ModelConfig{
		SeasonalityMode:       mode,
		ChangepointPriorScale: sel.ChangepointScale,
		SeasonalityPriorScale: sel.SeasonalityScale,
		MonthlySeasonality:    sel.Monthly,
		YearlySeasonality:     sel.Yearly,
		HolidayCountry:        country,
		IncludeHolidays:       sel.IncludeHolidays,
	}

	cv, err := ResolveCV(sel.CVInitialMonths, sel.CVPeriodMonths, sel.CVHorizonMonths)
	if err != nil {
		return nil, err
	}
	out.CV = cv
	return out, nil
}

// ResolveGrowth 线性增长固定 cap=1, floor=0，总是可以拟合；
// 逻辑增长 cap/floor 取 [0,1] 且为 0.05 的整数倍：floor > cap 为非法，floor == cap 给出警告且不可拟合。
func ResolveGrowth(mode model.GrowthMode, capValue, floor float64) (model.GrowthConfig, []string, error) {
	switch mode {
	case "", model.GrowthLinear:
		return model.GrowthConfig{
			Mode:   model.GrowthLinear,
			Cap:    1,
			Floor:  0,
			Status: model.GrowthComplete,
		}, nil, nil
	case model.GrowthLogistic:
	default:
		return model.GrowthConfig{}, nil, fmt.Errorf("%w: growth %q", ErrUnknownOption, mode)
	}

	if !inUnit(capValue) || !inUnit(floor) {
		return model.GrowthConfig{}, nil, fmt.Errorf("%w: cap %v / floor %v not in [0, 1]", ErrOutOfRange, capValue, floor)
	}
	var ok bool
	if capValue, ok = snapSaturation(capValue); !ok {
		return model.GrowthConfig{}, nil, fmt.Errorf("%w: cap %v is not a multiple of %v", ErrOutOfRange, capValue, SaturationStep)
	}
	if floor, ok = snapSaturation(floor); !ok {
		return model.GrowthConfig{}, nil, fmt.Errorf("%w: floor %v is not a multiple of %v", ErrOutOfRange, floor, SaturationStep)
	}

	g := model.GrowthConfig{Mode: model.GrowthLogistic, Cap: capValue, Floor: floor}
	switch {
	case floor > capValue:
		g.Status = model.GrowthInvalid
		return g, []string{MsgCapBelowFloor}, nil
	case floor == capValue:
		g.Status = model.GrowthIncomplete
		return g, []string{MsgCapEqualsFloor}, nil
	}
	g.Status = model.GrowthComplete
	return g, nil, nil
}

// ResolveCV 把月数转为 "N Months" 字符串
func ResolveCV(initial, period, horizon int) (model.CVConfig, error) {
	if initial < MinCVWindowMonths || initial > MaxCVWindowMonths {
		return model.CVConfig{}, fmt.Errorf("%w: initial %d months", ErrOutOfRange, initial)
	}
	if period < MinCVWindowMonths || period > MaxCVWindowMonths {
		return model.CVConfig{}, fmt.Errorf("%w: period %d months", ErrOutOfRange, period)
	}
	if horizon < MinCVHorizonMonths || horizon > MaxCVHorizonMonths {
		return model.CVConfig{}, fmt.Errorf("%w: horizon %d months", ErrOutOfRange, horizon)
	}
	return model.CVConfig{
		Initial: MonthsString(initial),
		Period:  MonthsString(period),
		Horizon: MonthsString(horizon),
	}, nil
}

// MonthsString 6 -> "6 Months"
func MonthsString(n int) string {
	return fmt.Sprintf("%d Months", n)
}

// snapSaturation 把 cap/floor 对齐到 SaturationStep 网格，偏离网格的值返回 false
func snapSaturation(v float64) (float64, bool) {
	steps := 1 / SaturationStep
	k := math.Round(v * steps)
	if math.Abs(v*steps-k) > 1e-6 {
		return v, false
	}
	return k / steps, true
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func contains(set []float64, v float64) bool {
	for _, s := range set {
		if math.Abs(s-v) < 1e-12 {
			return true
		}
	}
	return false
}
