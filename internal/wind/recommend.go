package wind

import (
	"context"
	"fmt"

	"velowind/internal/models"
	"velowind/internal/safety"
)

const (
	// passEscalationSpeed escalates info to warning on mountain passes (km/h)
	passEscalationSpeed = 25.0
	// altitudeExcessRatio flags altitude wind stronger than surface by 30%
	altitudeExcessRatio = 1.3
)

// GetWindSafetyRecommendation assesses current wind at location. Empty
// experience and terrain default to intermediate on flat roads.
func (s *Service) GetWindSafetyRecommendation(ctx context.Context, location models.GeoLocation, experience safety.Experience, terrain safety.Terrain) (*models.SafetyRecommendation, error) {
	rec, _, err := s.recommend(ctx, location, experience, terrain, "")
	if err != nil {
		return nil, fmt.Errorf("GetWindSafetyRecommendation: %w", err)
	}
	return rec, nil
}

// recommend also returns the km/h wind the verdict was computed from
func (s *Service) recommend(ctx context.Context, location models.GeoLocation, experience safety.Experience, terrain safety.Terrain, colID string) (*models.SafetyRecommendation, models.WindData, error) {
	if experience == "" {
		experience = safety.ExperienceIntermediate
	}
	if terrain == "" {
		terrain = safety.TerrainFlat
	}

	wind, err := s.surfaceWind(ctx, location, colID)
	if err != nil {
		return nil, models.WindData{}, err
	}

	assessment := safety.AssessWindSafety(wind, experience, terrain)

	return &models.SafetyRecommendation{
		SafeToRide:     assessment.SafetyLevel != models.SafetyLevelDanger,
		WindData:       s.windInUnits(wind),
		Recommendation: assessment.Recommendation,
		WarningLevel:   warningLevelFor(assessment.SafetyLevel),
		SafetyLevel:    assessment.SafetyLevel,
	}, wind, nil
}

// CheckMountainPassWindConditions assesses a col more conservatively than a
// plain recommendation and probes wind at altitude. The altitude probe is
// best effort; its failure never fails the call.
func (s *Service) CheckMountainPassWindConditions(ctx context.Context, colID string, location models.GeoLocation) (*models.MountainPassReport, error) {
	rec, surface, err := s.recommend(ctx, location, safety.ExperienceIntermediate, safety.TerrainMountainCol, colID)
	if err != nil {
		return nil, fmt.Errorf("CheckMountainPassWindConditions: %w", err)
	}

	report := &models.MountainPassReport{
		SafetyRecommendation: *rec,
		ColID:                colID,
	}

	if report.WarningLevel == models.WarningLevelInfo && surface.Speed >= passEscalationSpeed {
		report.WarningLevel = models.WarningLevelWarning
	}

	altitude, err := s.altitudeWind(ctx, location)
	if err != nil {
		s.logger.Warn("altitude wind probe failed", "col", colID, "error", err)
		return report, nil
	}

	altitudeSpeed := s.speed(altitude.Speed)
	report.AltitudeSpeed = &altitudeSpeed

	if altitude.Speed > surface.Speed*altitudeExcessRatio {
		report.Recommendation += fmt.Sprintf(" Vent nettement plus fort en altitude (%.0f %s) : prudence au sommet du col.",
			altitudeSpeed, s.speedUnit())
		if report.WarningLevel == models.WarningLevelInfo {
			report.WarningLevel = models.WarningLevelWarning
		}
	}

	return report, nil
}

func (s *Service) speedUnit() string {
	if s.imperial() {
		return "mph"
	}
	return "km/h"
}

func warningLevelFor(level models.SafetyLevel) models.WarningLevel {
	switch level {
	case models.SafetyLevelDanger:
		return models.WarningLevelDanger
	case models.SafetyLevelWarning:
		return models.WarningLevelWarning
	}
	return models.WarningLevelInfo
}
