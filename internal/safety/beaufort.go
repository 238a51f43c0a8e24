package safety

import (
	"math"

	"velowind/internal/models"
)

// beaufortScale is contiguous over [0, +Inf); bounds are km/h.
var beaufortScale = []models.BeaufortEntry{
	{Force: 0, Name: "Calme", MinSpeed: 0, MaxSpeed: 1, Description: "La fumée monte verticalement"},
	{Force: 1, Name: "Très légère brise", MinSpeed: 1, MaxSpeed: 6, Description: "La fumée indique la direction du vent"},
	{Force: 2, Name: "Légère brise", MinSpeed: 6, MaxSpeed: 12, Description: "On sent le vent sur le visage"},
	{Force: 3, Name: "Petite brise", MinSpeed: 12, MaxSpeed: 20, Description: "Les feuilles et petites branches s'agitent"},
	{Force: 4, Name: "Jolie brise", MinSpeed: 20, MaxSpeed: 29, Description: "Le vent soulève la poussière, vent de face sensible"},
	{Force: 5, Name: "Bonne brise", MinSpeed: 29, MaxSpeed: 39, Description: "Les arbustes se balancent, pédalage nettement freiné"},
	{Force: 6, Name: "Vent frais", MinSpeed: 39, MaxSpeed: 50, Description: "Les grosses branches s'agitent, tenue du vélo difficile"},
	{Force: 7, Name: "Grand frais", MinSpeed: 50, MaxSpeed: 62, Description: "Les arbres entiers s'agitent, marcher contre le vent est pénible"},
	{Force: 8, Name: "Coup de vent", MinSpeed: 62, MaxSpeed: 75, Description: "Des branches se cassent, rouler est dangereux"},
	{Force: 9, Name: "Fort coup de vent", MinSpeed: 75, MaxSpeed: 89, Description: "Dégâts légers aux bâtiments"},
	{Force: 10, Name: "Tempête", MinSpeed: 89, MaxSpeed: 103, Description: "Arbres déracinés, dégâts importants"},
	{Force: 11, Name: "Violente tempête", MinSpeed: 103, MaxSpeed: 118, Description: "Ravages étendus"},
	{Force: 12, Name: "Ouragan", MinSpeed: 118, MaxSpeed: math.Inf(1), Description: "Dévastation"},
}

// GetBeaufortScale returns the first scale entry whose [MinSpeed, MaxSpeed]
// contains speedKmh, or the highest force if none does. Negative speeds are
// not validated and also fall through to the highest force.
func GetBeaufortScale(speedKmh float64) models.BeaufortEntry {
	for _, entry := range beaufortScale {
		if speedKmh >= entry.MinSpeed && speedKmh <= entry.MaxSpeed {
			return entry
		}
	}
	return beaufortScale[len(beaufortScale)-1]
}

// BeaufortScale returns a copy of the full scale
func BeaufortScale() []models.BeaufortEntry {
	out := make([]models.BeaufortEntry, len(beaufortScale))
	copy(out, beaufortScale)
	return out
}
