package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"routeplan/internal/opt"
)

// Uniform scatters Count points over a Width x Height map, keeping Margin
// clear on every side. Ids run 0..Count-1.
type Uniform struct {
	Count  int
	Width  float64
	Height float64
	Margin float64
	Rand   *rand.Rand
}

// NewUniform uses a time-based seed when seed is 0.
func NewUniform(count int, width, height, margin float64, seed int64) Uniform {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Uniform{Count: count, Width: width, Height: height, Margin: margin, Rand: rand.New(rand.NewSource(seed))}
}

func (u Uniform) Name() string { return "uniform" }

func (u Uniform) Points(ctx context.Context) ([]opt.Point, error) {
	if u.Count < 0 {
		return nil, fmt.Errorf("%w: negative point count %d", ErrMalformed, u.Count)
	}
	spanX := u.Width - 2*u.Margin
	spanY := u.Height - 2*u.Margin
	if spanX <= 0 || spanY <= 0 {
		return nil, fmt.Errorf("%w: margin %g leaves no room on a %gx%g map", ErrMalformed, u.Margin, u.Width, u.Height)
	}
	rng := u.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	pts := make([]opt.Point, u.Count)
	for i := range pts {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		pts[i] = opt.Point{ID: i, X: rng.Float64()*spanX + u.Margin, Y: rng.Float64()*spanY + u.Margin}
	}
	return pts, nil
}
