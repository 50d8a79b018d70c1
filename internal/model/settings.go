package model

// GrowthMode 趋势增长模型
type GrowthMode string

const (
	GrowthLinear   GrowthMode = "linear"
	GrowthLogistic GrowthMode = "logistic"
)

// SeasonalityMode 季节项叠加方式
type SeasonalityMode string

const (
	SeasonalityAdditive       SeasonalityMode = "additive"
	SeasonalityMultiplicative SeasonalityMode = "multiplicative"
)

// GrowthStatus 增长配置校验状态
type GrowthStatus string

const (
	GrowthComplete   GrowthStatus = "complete"   // 可以拟合
	GrowthIncomplete GrowthStatus = "incomplete" // floor == cap，给出警告但不可拟合
	GrowthInvalid    GrowthStatus = "invalid"    // floor > cap，直接拒绝
)

// CountryPlaceholder 国家选择框的占位项，选中时不添加任何节假日
const CountryPlaceholder = "Country name"

// Selections 页面控件的原始选择值
type Selections struct {
	Periods          int             `json:"periods"`
	Seasonality      SeasonalityMode `json:"seasonality"`
	Monthly          bool            `json:"monthly"`
	Yearly           bool            `json:"yearly"`
	Growth           GrowthMode      `json:"growth"`
	Cap              float64         `json:"cap"`
	Floor            float64         `json:"floor"`
	Country          string          `json:"country"`
	IncludeHolidays  bool            `json:"includeHolidays"`
	ChangepointScale float64         `json:"changepointScale"`
	SeasonalityScale float64         `json:"seasonalityScale"`
	CVInitialMonths  int             `json:"cvInitialMonths"`
	CVPeriodMonths   int             `json:"cvPeriodMonths"`
	CVHorizonMonths  int             `json:"cvHorizonMonths"`
}

// GrowthConfig 增长配置 {mode, cap, floor}
type GrowthConfig struct {
	Mode   GrowthMode   `json:"mode"`
	Cap    float64      `json:"cap"`
	Floor  float64      `json:"floor"`
	Status GrowthStatus `json:"status"`
}

// Complete 是否满足拟合前置条件
func (g GrowthConfig) Complete() bool {
	return g.Status == GrowthComplete
}

// ModelConfig 模型配置
type ModelConfig struct {
	SeasonalityMode       SeasonalityMode `json:"seasonalityMode"`
	ChangepointPriorScale float64         `json:"changepointPriorScale"`
	SeasonalityPriorScale float64         `json:"seasonalityPriorScale"`
	MonthlySeasonality    bool            `json:"monthlySeasonality"`
	YearlySeasonality     bool            `json:"yearlySeasonality"`
	HolidayCountry        string          `json:"holidayCountry,omitempty"` // 空表示未选择
	IncludeHolidays       bool            `json:"includeHolidays"`
}

// HolidaysEnabled 国家已选择且开关打开时才加入节假日
func (m ModelConfig) HolidaysEnabled() bool {
	return m.IncludeHolidays && m.HolidayCountry != ""
}

// CVConfig 交叉验证参数（"N Months" 格式）
type CVConfig struct {
	Initial string `json:"initial"`
	Period  string `json:"period"`
	Horizon string `json:"horizon"`
}

// Settings 解析后的完整配置
type Settings struct {
	Periods  int          `json:"periods"`
	Growth   GrowthConfig `json:"growth"`
	Model    ModelConfig  `json:"model"`
	CV       CVConfig     `json:"cv"`
	Warnings []string     `json:"warnings,omitempty"`
}
