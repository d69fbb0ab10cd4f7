package model

import (
	"time"

	"routeplan/internal/opt"
)

// Plan stages, in lifecycle order.
const (
	StagePoints    = "points"
	StageClustered = "clustered"
	StageRouted    = "routed"
)

// Plan is one tenant's working set: points, then clusters, then routes.
type Plan struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenantId"`
	Stage         string        `json:"stage"`
	Depot         opt.Point     `json:"depot"`
	Points        []opt.Point   `json:"points"`
	PointSeed     int64         `json:"pointSeed,omitempty"`
	K             int           `json:"k,omitempty"`
	Seed          int64         `json:"seed,omitempty"`
	Iterations    int           `json:"iterations,omitempty"`
	Converged     bool          `json:"converged,omitempty"`
	Clusters      []opt.Cluster `json:"clusters,omitempty"`
	Routes        []opt.Route   `json:"routes,omitempty"`
	TotalDistance float64       `json:"totalDistance"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// PlanSummary is the list view of a plan.
type PlanSummary struct {
	ID            string    `json:"id"`
	Stage         string    `json:"stage"`
	Points        int       `json:"points"`
	K             int       `json:"k,omitempty"`
	Routes        int       `json:"routes"`
	TotalDistance float64   `json:"totalDistance"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GenerateSpec asks the server to scatter Count random points over the map.
type GenerateSpec struct {
	Count int   `json:"count"`
	Seed  int64 `json:"seed,omitempty"`
}

type CreatePlanRequest struct {
	TenantID string        `json:"tenantId,omitempty"`
	Points   []opt.Point   `json:"points,omitempty"`
	CSV      string        `json:"csv,omitempty"`
	Generate *GenerateSpec `json:"generate,omitempty"`
	Depot    *opt.Point    `json:"depot,omitempty"`
}

type ClusterRequest struct {
	K             int   `json:"k"`
	MaxIterations int   `json:"maxIterations,omitempty"`
	Seed          int64 `json:"seed,omitempty"`
}

type RouteRequest struct {
	Improve           *bool `json:"improve,omitempty"`
	ImproveIterations int   `json:"improveIterations,omitempty"`
}

// OptimizeRequest runs clustering and routing in one call without keeping a plan.
type OptimizeRequest struct {
	TenantID          string        `json:"tenantId,omitempty"`
	Points            []opt.Point   `json:"points,omitempty"`
	Generate          *GenerateSpec `json:"generate,omitempty"`
	Depot             *opt.Point    `json:"depot,omitempty"`
	K                 int           `json:"k"`
	MaxIterations     int           `json:"maxIterations,omitempty"`
	Seed              int64         `json:"seed,omitempty"`
	Improve           *bool         `json:"improve,omitempty"`
	ImproveIterations int           `json:"improveIterations,omitempty"`
}

type OptimizeResult struct {
	Depot         opt.Point     `json:"depot"`
	Clusters      []opt.Cluster `json:"clusters"`
	Routes        []opt.Route   `json:"routes"`
	TotalDistance float64       `json:"totalDistance"`
	Iterations    int           `json:"iterations"`
	Converged     bool          `json:"converged"`
	Seed          int64         `json:"seed"`
}

// TourRequest orders a single group of points from a start location.
type TourRequest struct {
	Points  []opt.Point `json:"points"`
	Start   *opt.Point  `json:"start,omitempty"`
	Improve bool        `json:"improve,omitempty"`
}

type TourResult struct {
	Points   []opt.Point `json:"points"`
	Distance float64     `json:"distance"`
}

// PlanMetrics is one persisted clustering or routing run.
type PlanMetrics struct {
	opt.RunStats
	TenantID  string    `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
