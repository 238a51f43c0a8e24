package safety

import (
	"fmt"
	"math"
	"strings"

	"velowind/internal/models"
)

const (
	// gustAnomalyDelta is the gust excess over sustained speed that marks
	// irregular, gusty conditions.
	gustAnomalyDelta = 15.0
	// gustMargin is added to a threshold before a gust alone crosses it.
	gustMargin = 10.0
	// cautionRatio of the warning threshold starts the caution band.
	cautionRatio = 0.7
)

// ClassifyWind applies the two-threshold rule shared by the assessor and the
// alert path. It returns danger, warning or an empty level.
func ClassifyWind(speed, gust float64, t models.Thresholds) models.SafetyLevel {
	switch {
	case speed >= t.Danger || gust >= t.Danger+gustMargin:
		return models.SafetyLevelDanger
	case speed >= t.Warning || gust >= t.Warning+gustMargin:
		return models.SafetyLevelWarning
	}
	return ""
}

// IsGustAnomaly reports whether gusts exceed sustained speed by more than 15 km/h
func IsGustAnomaly(speed, gust float64) bool {
	return gust-speed > gustAnomalyDelta
}

// AssessWindSafety derives a four-level verdict for the given reading
func AssessWindSafety(wind models.WindData, experience Experience, terrain Terrain) models.SafetyAssessment {
	thresholds := GetWindThresholds(experience, terrain)
	beaufort := GetBeaufortScale(wind.Speed)

	level := ClassifyWind(wind.Speed, wind.Gust, thresholds)
	if level == "" {
		if wind.Speed >= cautionRatio*thresholds.Warning {
			level = models.SafetyLevelCaution
		} else {
			level = models.SafetyLevelSafe
		}
	}

	return models.SafetyAssessment{
		SafetyLevel:    level,
		Recommendation: buildRecommendation(level, beaufort, terrain, wind),
		Beaufort:       beaufort,
		Speed:          wind.Speed,
		Gust:           wind.Gust,
		Direction:      wind.Direction,
		DirectionName:  GetDirectionName(wind.Direction),
	}
}

func buildRecommendation(level models.SafetyLevel, beaufort models.BeaufortEntry, terrain Terrain, wind models.WindData) string {
	var b strings.Builder

	switch level {
	case models.SafetyLevelDanger:
		fmt.Fprintf(&b, "Conditions dangereuses (%s) : %s. Sortie fortement déconseillée.", beaufort.Name, beaufort.Description)
	case models.SafetyLevelWarning:
		fmt.Fprintf(&b, "Vent fort (%s) : %s. Prudence recommandée.", beaufort.Name, beaufort.Description)
	case models.SafetyLevelCaution:
		fmt.Fprintf(&b, "Vent modéré (%s) : %s. Restez attentif.", beaufort.Name, beaufort.Description)
	default:
		fmt.Fprintf(&b, "Conditions favorables (%s) : %s.", beaufort.Name, beaufort.Description)
	}

	if level == models.SafetyLevelWarning || level == models.SafetyLevelDanger {
		switch terrain {
		case TerrainMountainDescent:
			b.WriteString(" Réduisez fortement votre vitesse dans les descentes.")
		case TerrainMountainCol:
			b.WriteString(" Attention aux rafales au passage des cols.")
		case TerrainExposedRoad:
			b.WriteString(" Évitez les routes exposées et les zones dégagées.")
		}
	}

	if level != models.SafetyLevelDanger && IsGustAnomaly(wind.Speed, wind.Gust) {
		fmt.Fprintf(&b, " Rafales irrégulières : jusqu'à %.0f km/h pour un vent moyen de %.0f km/h.", wind.Gust, wind.Speed)
	}

	fmt.Fprintf(&b, " Vent de %s (%.0f°).", GetDirectionName(wind.Direction), math.Round(wind.Direction))

	return b.String()
}
