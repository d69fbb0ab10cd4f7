// Package source produces delivery points for a plan: scattered at random
// over the map or read from CSV.
package source

import (
	"context"
	"errors"

	"routeplan/internal/opt"
)

var ErrMalformed = errors.New("malformed point data")

// PointSource yields the points of a new plan.
type PointSource interface {
	Name() string
	Points(ctx context.Context) ([]opt.Point, error)
}
