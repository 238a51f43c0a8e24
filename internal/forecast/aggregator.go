package forecast

import (
	"math"
	"time"

	"velowind/internal/models"
	"velowind/internal/safety"
)

// Provider is stamped on every entry built from the upstream series
const Provider = "windy"

// hourSample is one fully populated hour of the upstream series. Absent
// upstream fields are already zero here, so no arithmetic below needs to
// guard against missing data.
type hourSample struct {
	Timestamp int64
	WindMs    float64
	Direction float64
	GustMs    float64
	TempC     float64
}

// parseSeries aligns the parallel upstream arrays on the hours index
func parseSeries(raw models.ForecastResponse) []hourSample {
	samples := make([]hourSample, len(raw.Hours))
	for i, ts := range raw.Hours {
		wind := valueAt(raw.Wind, i)
		samples[i] = hourSample{
			Timestamp: ts,
			WindMs:    deref(wind.Value),
			Direction: deref(wind.Direction),
			GustMs:    deref(valueAt(raw.WindGust, i).Value),
			TempC:     deref(valueAt(raw.Temp, i).Value),
		}
	}
	return samples
}

func valueAt(series []models.ParamValue, i int) models.ParamValue {
	if i < len(series) {
		return series[i]
	}
	return models.ParamValue{}
}

func deref(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

// ProcessHourlyForecast converts the upstream series into hourly entries.
// Wind values are converted from m/s to km/h; mismatched array lengths are
// padded with zeros.
func ProcessHourlyForecast(raw models.ForecastResponse) []models.HourlyForecastEntry {
	samples := parseSeries(raw)
	entries := make([]models.HourlyForecastEntry, 0, len(samples))

	for _, s := range samples {
		speed := math.Max(0, safety.MsToKmh(s.WindMs))
		gust := math.Max(0, safety.MsToKmh(s.GustMs))

		entries = append(entries, models.HourlyForecastEntry{
			WindData: models.WindData{
				Speed:     speed,
				Direction: safety.NormalizeDirection(s.Direction),
				Gust:      gust,
				Timestamp: s.Timestamp,
				Provider:  Provider,
			},
			DateTime:  time.UnixMilli(s.Timestamp).UTC().Format(time.RFC3339),
			FeelsLike: safety.CalculateWindChill(s.TempC, speed),
		})
	}

	return entries
}

// AggregateDailyForecast groups hourly entries by UTC date and reduces each
// group. Summaries are returned in the order their dates first appear.
func AggregateDailyForecast(hourly []models.HourlyForecastEntry) []models.DailyForecastSummary {
	type group struct {
		summary    models.DailyForecastSummary
		directions []float64
	}

	var order []string
	groups := make(map[string]*group)

	for _, h := range hourly {
		date := dateOf(h.DateTime)
		g, ok := groups[date]
		if !ok {
			g = &group{summary: models.DailyForecastSummary{
				Date:    date,
				Min:     h.Speed,
				Max:     h.Speed,
				MaxGust: h.Gust,
			}}
			groups[date] = g
			order = append(order, date)
		}

		g.summary.Min = math.Min(g.summary.Min, h.Speed)
		g.summary.Max = math.Max(g.summary.Max, h.Speed)
		g.summary.MaxGust = math.Max(g.summary.MaxGust, h.Gust)
		g.directions = append(g.directions, h.Direction)
	}

	daily := make([]models.DailyForecastSummary, 0, len(order))
	for _, date := range order {
		g := groups[date]
		g.summary.AvgDirection = safety.CircularMean(g.directions)
		daily = append(daily, g.summary)
	}

	return daily
}

// dateOf returns the UTC calendar date of an RFC 3339 timestamp
func dateOf(dateTime string) string {
	if t, err := time.Parse(time.RFC3339, dateTime); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	if len(dateTime) >= 10 {
		return dateTime[:10]
	}
	return dateTime
}
