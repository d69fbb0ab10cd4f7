// Package opt holds the clustering and tour heuristics used to split delivery
// points between agents and order each agent's stops.
package opt

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DepotID is reserved for the shared start/end location.
const DepotID = -1

// Point is a delivery location on the map plane.
type Point struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Centroid is the mean position of a cluster's members.
type Centroid struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var (
	ErrNonFiniteCoordinate = errors.New("non-finite coordinate")
	ErrDuplicatePointID    = errors.New("duplicate point id")
	ErrReservedPointID     = errors.New("point id reserved for the depot")
)

func (p Point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

func centroidOf(v r2.Vec) Centroid { return Centroid{X: v.X, Y: v.Y} }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(a.vec(), b.vec()))
}

// ValidatePoints rejects NaN/Inf coordinates, repeated ids and the depot id.
// The heuristics never fail on such input but their results are meaningless.
func ValidatePoints(points []Point) error {
	seen := make(map[int]struct{}, len(points))
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("point %d (id %d): %w", i, p.ID, ErrNonFiniteCoordinate)
		}
		if p.ID == DepotID {
			return fmt.Errorf("point %d: %w", i, ErrReservedPointID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("point %d: id %d: %w", i, p.ID, ErrDuplicatePointID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// ValidateDepot checks the depot coordinates.
func ValidateDepot(d Point) error {
	if !finite(d.X) || !finite(d.Y) {
		return fmt.Errorf("depot: %w", ErrNonFiniteCoordinate)
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
