package safety

import (
	"math"
)

var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSO", "SO", "OSO", "O", "ONO", "NO", "NNO",
}

var compassNames = map[string]string{
	"N":   "Nord",
	"NNE": "Nord-Nord-Est",
	"NE":  "Nord-Est",
	"ENE": "Est-Nord-Est",
	"E":   "Est",
	"ESE": "Est-Sud-Est",
	"SE":  "Sud-Est",
	"SSE": "Sud-Sud-Est",
	"S":   "Sud",
	"SSO": "Sud-Sud-Ouest",
	"SO":  "Sud-Ouest",
	"OSO": "Ouest-Sud-Ouest",
	"O":   "Ouest",
	"ONO": "Ouest-Nord-Ouest",
	"NO":  "Nord-Ouest",
	"NNO": "Nord-Nord-Ouest",
}

// NormalizeDirection wraps any bearing into [0,360)
func NormalizeDirection(degrees float64) float64 {
	d := math.Mod(math.Mod(degrees, 360)+360, 360)
	if d >= 360 {
		return 0
	}
	return d
}

// CompassPoint returns the abbreviation of the nearest of 16 sectors
func CompassPoint(degrees float64) string {
	index := int(math.Round(NormalizeDirection(degrees)/22.5)) % len(compassPoints)
	return compassPoints[index]
}

// GetDirectionName returns the French name of the compass sector for degrees
func GetDirectionName(degrees float64) string {
	return compassNames[CompassPoint(degrees)]
}

// CircularMean averages bearings as unit vectors. The result is rounded to
// one decimal and lies in [0,360). An empty input yields 0.
func CircularMean(bearings []float64) float64 {
	if len(bearings) == 0 {
		return 0
	}

	var sinSum, cosSum float64
	for _, b := range bearings {
		rad := b * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	n := float64(len(bearings))
	mean := math.Atan2(sinSum/n, cosSum/n) * 180 / math.Pi
	mean = Round1(NormalizeDirection(mean))
	if mean >= 360 {
		mean = 0
	}
	return mean
}

// CalculateWindChill returns the apparent temperature in °C. Outside the
// formula's domain (above 10°C or below 4.8 km/h) tempC is returned unchanged.
func CalculateWindChill(tempC, windSpeedKmh float64) float64 {
	if tempC > 10 || windSpeedKmh < 4.8 {
		return tempC
	}
	v := math.Pow(windSpeedKmh, 0.16)
	return Round1(13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v)
}

// MsToKmh converts m/s to km/h rounded to one decimal
func MsToKmh(ms float64) float64 {
	return Round1(ms * 3.6)
}

// KmhToMph converts km/h to mph rounded to one decimal
func KmhToMph(kmh float64) float64 {
	return Round1(kmh / 1.609344)
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
