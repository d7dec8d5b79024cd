package valueobjects

import (
	"math"

	pkgerrors "relmap/pkg/errors"
)

// Position is a 2D canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition rejects coordinates that cannot be rendered or stored
func NewPosition(x, y float64) (Position, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Position{}, pkgerrors.NewValidationError("position coordinates must be finite numbers")
	}
	return Position{X: x, Y: y}, nil
}

// Equals compares two positions
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Ptr returns a heap copy, convenient for optional fields
func (p Position) Ptr() *Position {
	return &p
}
