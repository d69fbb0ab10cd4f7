// Package config holds optimizer defaults. They come from an optional YAML
// file named by OPTIMIZER_CONFIG and may be overlaid per tenant.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"routeplan/internal/opt"
)

var ErrInvalid = errors.New("invalid optimizer config")

// Optimizer is the effective set of planning defaults and limits.
type Optimizer struct {
	MapWidth          float64 `yaml:"mapWidth" json:"mapWidth"`
	MapHeight         float64 `yaml:"mapHeight" json:"mapHeight"`
	Margin            float64 `yaml:"margin" json:"margin"`
	DefaultPoints     int     `yaml:"defaultPoints" json:"defaultPoints"`
	MaxPoints         int     `yaml:"maxPoints" json:"maxPoints"`
	DefaultK          int     `yaml:"defaultK" json:"defaultK"`
	MaxClusters       int     `yaml:"maxClusters" json:"maxClusters"`
	MaxIterations     int     `yaml:"maxIterations" json:"maxIterations"`
	Improve           bool    `yaml:"improve" json:"improve"`
	ImproveIterations int     `yaml:"improveIterations" json:"improveIterations"`
}

func Default() Optimizer {
	return Optimizer{
		MapWidth:          opt.MapWidth,
		MapHeight:         opt.MapHeight,
		Margin:            10,
		DefaultPoints:     50,
		MaxPoints:         5000,
		DefaultK:          5,
		MaxClusters:       64,
		MaxIterations:     opt.DefaultMaxIterations,
		ImproveIterations: 50,
	}
}

// Load reads YAML from path over the defaults.
func Load(path string) (Optimizer, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read optimizer config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse optimizer config %s: %w", path, err)
	}
	return c, c.Validate()
}

// FromEnv loads OPTIMIZER_CONFIG when set, else returns the defaults.
func FromEnv() (Optimizer, error) {
	if p := os.Getenv("OPTIMIZER_CONFIG"); p != "" {
		return Load(p)
	}
	return Default(), nil
}

// Overlay applies a tenant override document (camelCase keys) on top of c.
// Unknown keys are ignored.
func (c Optimizer) Overlay(m map[string]any) (Optimizer, error) {
	if len(m) == 0 {
		return c, nil
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	out := c
	if err := yaml.Unmarshal(b, &out); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

// Depot is the map centre.
func (c Optimizer) Depot() opt.Point {
	return opt.Point{ID: opt.DepotID, X: c.MapWidth / 2, Y: c.MapHeight / 2}
}

func (c Optimizer) Validate() error {
	switch {
	case c.MapWidth <= 0 || c.MapHeight <= 0:
		return fmt.Errorf("%w: map extent must be positive", ErrInvalid)
	case c.Margin < 0 || 2*c.Margin >= c.MapWidth || 2*c.Margin >= c.MapHeight:
		return fmt.Errorf("%w: margin %g does not fit the map", ErrInvalid, c.Margin)
	case c.MaxPoints < 1:
		return fmt.Errorf("%w: maxPoints must be at least 1", ErrInvalid)
	case c.DefaultPoints < 0 || c.DefaultPoints > c.MaxPoints:
		return fmt.Errorf("%w: defaultPoints out of range", ErrInvalid)
	case c.MaxClusters < 1:
		return fmt.Errorf("%w: maxClusters must be at least 1", ErrInvalid)
	case c.DefaultK < 1 || c.DefaultK > c.MaxClusters:
		return fmt.Errorf("%w: defaultK out of range", ErrInvalid)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: maxIterations must be at least 1", ErrInvalid)
	case c.ImproveIterations < 0:
		return fmt.Errorf("%w: improveIterations must not be negative", ErrInvalid)
	}
	return nil
}
