package wind

import (
	"velowind/internal/models"
	"velowind/internal/safety"
)

func (s *Service) imperial() bool {
	return s.opts.Units == "imperial"
}

func (s *Service) speed(kmh float64) float64 {
	if s.imperial() {
		return safety.KmhToMph(kmh)
	}
	return kmh
}

func (s *Service) windInUnits(w models.WindData) models.WindData {
	w.Speed = s.speed(w.Speed)
	w.Gust = s.speed(w.Gust)
	return w
}

func (s *Service) forecastInUnits(fc models.WindForecast) models.WindForecast {
	if !s.imperial() {
		return fc
	}

	fc.Current = s.windInUnits(fc.Current)

	hourly := make([]models.HourlyForecastEntry, len(fc.Hourly))
	for i, h := range fc.Hourly {
		h.WindData = s.windInUnits(h.WindData)
		hourly[i] = h
	}
	fc.Hourly = hourly

	daily := make([]models.DailyForecastSummary, len(fc.Daily))
	for i, d := range fc.Daily {
		d.Min = s.speed(d.Min)
		d.Max = s.speed(d.Max)
		d.MaxGust = s.speed(d.MaxGust)
		daily[i] = d
	}
	fc.Daily = daily

	return fc
}
