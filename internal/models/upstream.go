package models

// ParamValue is one entry of an upstream parameter series. Any field may be
// absent from the payload.
type ParamValue struct {
	Value     *float64 `json:"value,omitempty"`
	Direction *float64 `json:"direction,omitempty"`
}

// PointResponse is the payload of the upstream /point endpoint
type PointResponse struct {
	Wind     []ParamValue `json:"wind"`
	WindGust []ParamValue `json:"windGust"`
}

// ForecastResponse is the payload of the upstream /forecast endpoint.
// Hours are epoch milliseconds, wind values m/s and temperatures °C.
type ForecastResponse struct {
	Hours    []int64      `json:"hours"`
	Wind     []ParamValue `json:"wind"`
	WindGust []ParamValue `json:"windGust"`
	Temp     []ParamValue `json:"temp"`
}
