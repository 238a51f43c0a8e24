package safety

import (
	"math"
	"strings"

	"velowind/internal/models"
)

// Experience is the rider experience level
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// Terrain is the kind of road being ridden
type Terrain string

const (
	TerrainMountainDescent Terrain = "mountain_descent"
	TerrainMountainCol     Terrain = "mountain_col"
	TerrainExposedRoad     Terrain = "exposed_road"
	TerrainFlat            Terrain = "flat"
)

var experienceThresholds = map[Experience]models.Thresholds{
	ExperienceBeginner:     {Warning: 20, Danger: 30},
	ExperienceIntermediate: {Warning: 30, Danger: 45},
	ExperienceAdvanced:     {Warning: 40, Danger: 55},
}

// flat has no cap
var terrainCaps = map[Terrain]models.Thresholds{
	TerrainMountainDescent: {Warning: 25, Danger: 35},
	TerrainMountainCol:     {Warning: 30, Danger: 40},
	TerrainExposedRoad:     {Warning: 35, Danger: 50},
}

// ParseExperience maps free text to an Experience, defaulting to intermediate
func ParseExperience(s string) Experience {
	e := Experience(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := experienceThresholds[e]; ok {
		return e
	}
	return ExperienceIntermediate
}

// ParseTerrain maps free text to a Terrain, defaulting to flat
func ParseTerrain(s string) Terrain {
	t := Terrain(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := terrainCaps[t]; ok {
		return t
	}
	return TerrainFlat
}

// GetWindThresholds combines the experience base table with the terrain cap.
// Each threshold is the minimum of the two, so terrain never raises a limit.
func GetWindThresholds(experience Experience, terrain Terrain) models.Thresholds {
	base, ok := experienceThresholds[experience]
	if !ok {
		base = experienceThresholds[ExperienceIntermediate]
	}

	limit, capped := terrainCaps[terrain]
	if !capped {
		return base
	}

	return models.Thresholds{
		Warning: math.Min(base.Warning, limit.Warning),
		Danger:  math.Min(base.Danger, limit.Danger),
	}
}
