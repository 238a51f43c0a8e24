package models

// GeoLocation identifies a query point
type GeoLocation struct {
	Lat  float64 `json:"lat" yaml:"latitude"`
	Lon  float64 `json:"lon" yaml:"longitude"`
	Name string  `json:"name,omitempty" yaml:"name"`
}

// WindData is one point-in-time wind reading. Speeds are km/h, direction is
// normalized into [0,360) and Timestamp is epoch milliseconds.
type WindData struct {
	Speed     float64 `json:"speed"`
	Direction float64 `json:"direction"`
	Gust      float64 `json:"gust"`
	Timestamp int64   `json:"timestamp"`
	Provider  string  `json:"provider"`
}

// HourlyForecastEntry is a WindData for one forecast hour
type HourlyForecastEntry struct {
	WindData
	DateTime string `json:"dateTime"`
	// Probability is not provided by the upstream model and stays zero.
	Probability float64 `json:"probability,omitempty"`
	FeelsLike   float64 `json:"feelsLike"`
}

// DailyForecastSummary rolls up the hourly entries of one UTC date
type DailyForecastSummary struct {
	Date         string  `json:"date"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	AvgDirection float64 `json:"avgDirection"`
	MaxGust      float64 `json:"maxGust"`
}

// WindForecast is a read-only snapshot regenerated on every successful fetch
type WindForecast struct {
	Location   GeoLocation            `json:"location"`
	Current    WindData               `json:"current"`
	Hourly     []HourlyForecastEntry  `json:"hourly"`
	Daily      []DailyForecastSummary `json:"daily"`
	UpdateTime int64                  `json:"updateTime"`
	Source     string                 `json:"source"`
}

// BeaufortEntry is one row of the Beaufort scale
type BeaufortEntry struct {
	Force       int     `json:"force"`
	Name        string  `json:"name"`
	MinSpeed    float64 `json:"minSpeed"`
	MaxSpeed    float64 `json:"maxSpeed"`
	Description string  `json:"description"`
}

// Thresholds are warning and danger wind speeds in km/h
type Thresholds struct {
	Warning float64 `json:"warning" yaml:"warning"`
	Danger  float64 `json:"danger" yaml:"danger"`
}

type SafetyLevel string

const (
	SafetyLevelSafe    SafetyLevel = "safe"
	SafetyLevelCaution SafetyLevel = "caution"
	SafetyLevelWarning SafetyLevel = "warning"
	SafetyLevelDanger  SafetyLevel = "danger"
)

// SafetyAssessment is the verdict for one wind reading
type SafetyAssessment struct {
	SafetyLevel    SafetyLevel   `json:"safetyLevel"`
	Recommendation string        `json:"recommendation"`
	Beaufort       BeaufortEntry `json:"beaufort"`
	Speed          float64       `json:"speed"`
	Gust           float64       `json:"gust"`
	Direction      float64       `json:"direction"`
	DirectionName  string        `json:"directionName"`
}

type WarningLevel string

const (
	WarningLevelInfo    WarningLevel = "info"
	WarningLevelWarning WarningLevel = "warning"
	WarningLevelDanger  WarningLevel = "danger"
)

// WindWarning is issued to subscribers when alert thresholds are crossed.
// ExpiresAt is advisory; nothing purges expired warnings.
type WindWarning struct {
	Level     WarningLevel `json:"level"`
	Message   string       `json:"message"`
	Speed     float64      `json:"speed"`
	Gust      float64      `json:"gust"`
	ColID     string       `json:"colId,omitempty"`
	Location  GeoLocation  `json:"location"`
	Timestamp int64        `json:"timestamp"`
	ExpiresAt int64        `json:"expiresAt"`
}

// Expired reports whether the warning is stale at nowMs
func (w WindWarning) Expired(nowMs int64) bool {
	return nowMs >= w.ExpiresAt
}

// SafetyRecommendation is returned by the safety recommendation orchestration
type SafetyRecommendation struct {
	SafeToRide     bool         `json:"safeToRide"`
	WindData       WindData     `json:"windData"`
	Recommendation string       `json:"recommendation"`
	WarningLevel   WarningLevel `json:"warningLevel"`
	SafetyLevel    SafetyLevel  `json:"safetyLevel"`
}

// MountainPassReport extends a recommendation with col specific checks
type MountainPassReport struct {
	SafetyRecommendation
	ColID         string   `json:"colId"`
	AltitudeSpeed *float64 `json:"altitudeSpeed,omitempty"`
}
