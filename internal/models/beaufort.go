package models

import (
	"encoding/json"
	"math"
)

// beaufortJSON is the wire form of BeaufortEntry; a null maxSpeed is the
// open upper bound of the top force
type beaufortJSON struct {
	Force       int      `json:"force"`
	Name        string   `json:"name"`
	MinSpeed    float64  `json:"minSpeed"`
	MaxSpeed    *float64 `json:"maxSpeed"`
	Description string   `json:"description"`
}

func (b BeaufortEntry) MarshalJSON() ([]byte, error) {
	out := beaufortJSON{
		Force:       b.Force,
		Name:        b.Name,
		MinSpeed:    b.MinSpeed,
		Description: b.Description,
	}
	if !math.IsInf(b.MaxSpeed, 1) {
		max := b.MaxSpeed
		out.MaxSpeed = &max
	}
	return json.Marshal(out)
}

func (b *BeaufortEntry) UnmarshalJSON(data []byte) error {
	var in beaufortJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*b = BeaufortEntry{
		Force:       in.Force,
		Name:        in.Name,
		MinSpeed:    in.MinSpeed,
		MaxSpeed:    math.Inf(1),
		Description: in.Description,
	}
	if in.MaxSpeed != nil {
		b.MaxSpeed = *in.MaxSpeed
	}
	return nil
}
