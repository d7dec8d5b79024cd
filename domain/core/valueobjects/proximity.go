package valueobjects

import (
	"encoding/json"
	"strings"

	pkgerrors "relmap/pkg/errors"
)

// Proximity is an ordinal closeness level
type Proximity string

const (
	ProximityStrong Proximity = "fort"
	ProximityMedium Proximity = "moyen"
	ProximityWeak   Proximity = "faible"
)

// DefaultProximity is used wherever an input carries no recognizable level
const DefaultProximity = ProximityMedium

// AllProximities lists the levels from closest to farthest
var AllProximities = []Proximity{ProximityStrong, ProximityMedium, ProximityWeak}

// ParseProximity parses a proximity literal strictly
func ParseProximity(s string) (Proximity, error) {
	p := Proximity(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", pkgerrors.NewValidationError("proximity must be one of: fort, moyen, faible")
	}
	return p, nil
}

// ProximityOrDefault parses a proximity literal and falls back to moyen
func ProximityOrDefault(s string) Proximity {
	p, err := ParseProximity(s)
	if err != nil {
		return DefaultProximity
	}
	return p
}

// IsValid reports whether p is one of the three levels
func (p Proximity) IsValid() bool {
	switch p {
	case ProximityStrong, ProximityMedium, ProximityWeak:
		return true
	}
	return false
}

// Rank orders proximities, 0 being the closest
func (p Proximity) Rank() int {
	for i, candidate := range AllProximities {
		if candidate == p {
			return i
		}
	}
	return len(AllProximities)
}

func (p Proximity) String() string {
	return string(p)
}

// UnmarshalJSON rejects unknown levels
func (p *Proximity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProximity(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
