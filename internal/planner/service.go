// Package planner runs the staged plan lifecycle: points, then clusters,
// then one route per cluster.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"routeplan/internal/config"
	"routeplan/internal/metrics"
	"routeplan/internal/model"
	"routeplan/internal/opt"
	"routeplan/internal/source"
	"routeplan/internal/store"
	"routeplan/internal/webhooks"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrStage        = errors.New("operation not allowed in the plan's current stage")
	ErrInvalid      = errors.New("invalid request")
)

// Notifier is told about every plan state change.
type Notifier interface {
	PlanEvent(ctx context.Context, eventType string, p model.Plan)
}

type Service struct {
	Store    store.Store
	Cache    *Cache
	Defaults config.Optimizer
	Notifier Notifier
	Runs     *RunLog

	now   func() time.Time
	lmu   sync.Mutex
	locks map[string]*planLock
}

// planLock is a per-plan mutex, dropped once no caller holds or waits on it.
type planLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(st store.Store, cache *Cache, defaults config.Optimizer, n Notifier) *Service {
	if cache == nil {
		cache = NewCache(0)
	}
	return &Service{Store: st, Cache: cache, Defaults: defaults, Notifier: n, Runs: NewRunLog(0), now: time.Now, locks: map[string]*planLock{}}
}

// Settings returns the defaults overlaid with the tenant's stored overrides.
func (s *Service) Settings(ctx context.Context, tenantID string) (config.Optimizer, error) {
	if s.Store == nil {
		return s.Defaults, nil
	}
	over, err := s.Store.GetOptimizerConfig(ctx, tenantID)
	if err != nil {
		return s.Defaults, fmt.Errorf("load optimizer config: %w", err)
	}
	return s.Defaults.Overlay(over)
}

func (s *Service) Create(ctx context.Context, tenantID string, req model.CreatePlanRequest) (model.Plan, error) {
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return model.Plan{}, err
	}
	pts, pointSeed, err := s.resolvePoints(ctx, cfg, req.Points, req.CSV, req.Generate)
	if err != nil {
		return model.Plan{}, err
	}
	depot, err := resolveDepot(cfg, req.Depot)
	if err != nil {
		return model.Plan{}, err
	}
	now := s.clock()
	p := model.Plan{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Stage:     model.StagePoints,
		Depot:     depot,
		Points:    pts,
		PointSeed: pointSeed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Cache.Put(p)
	metrics.PlanRuns.WithLabelValues(model.StagePoints).Inc()
	log.Printf("[plan] created id=%s tenant=%s points=%d", p.ID, tenantID, len(pts))
	s.notify(ctx, webhooks.EventPlanCreated, p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (model.Plan, error) {
	p, ok := s.Cache.Get(tenantID, id)
	if !ok {
		return model.Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, tenantID string) []model.PlanSummary {
	plans := s.Cache.List(tenantID)
	out := make([]model.PlanSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, Summarize(p))
	}
	return out
}

// Delete waits for any in-flight stage change on the plan before removing it.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	unlock := s.lock(tenantID, id)
	defer unlock()
	if !s.Cache.Delete(tenantID, id) {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return nil
}

// Cluster partitions the plan's points. Any existing routes are dropped.
func (s *Service) Cluster(ctx context.Context, tenantID, id string, req model.ClusterRequest) (model.Plan, error) {
	unlock := s.lock(tenantID, id)
	defer unlock()
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return model.Plan{}, err
	}
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return model.Plan{}, err
	}
	start := time.Now()
	res, seed, err := s.runKMeans(cfg, p.Points, req.K, req.MaxIterations, req.Seed)
	if err != nil {
		return model.Plan{}, err
	}
	elapsed := time.Since(start)

	p.Stage = model.StageClustered
	p.K = len(res.Clusters)
	p.Seed = seed
	p.Iterations = res.Iterations
	p.Converged = res.Converged
	p.Clusters = res.Clusters
	p.Routes = nil
	p.TotalDistance = 0
	p.UpdatedAt = s.clock()
	if !s.Cache.Replace(p) {
		return model.Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}

	s.record(ctx, tenantID, opt.RunStats{
		PlanID: p.ID, Stage: model.StageClustered, Points: len(p.Points), K: p.K,
		Iterations: res.Iterations, Converged: res.Converged, Reseeds: res.Reseeds, Seed: seed,
	}, elapsed)
	log.Printf("[plan] clustered id=%s k=%d iterations=%d converged=%t reseeds=%d", p.ID, p.K, res.Iterations, res.Converged, res.Reseeds)
	s.notify(ctx, webhooks.EventPlanClustered, p)
	return p, nil
}

// Route builds one depot-to-depot tour per cluster.
func (s *Service) Route(ctx context.Context, tenantID, id string, req model.RouteRequest) (model.Plan, error) {
	unlock := s.lock(tenantID, id)
	defer unlock()
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return model.Plan{}, err
	}
	if p.Stage == model.StagePoints {
		return model.Plan{}, fmt.Errorf("%w: plan %s has not been clustered", ErrStage, id)
	}
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return model.Plan{}, err
	}
	improve, iters, err := resolveImprove(cfg, req.Improve, req.ImproveIterations)
	if err != nil {
		return model.Plan{}, err
	}
	start := time.Now()
	routes, err := BuildRoutes(ctx, p.Clusters, p.Depot, improve, iters)
	if err != nil {
		return model.Plan{}, err
	}
	elapsed := time.Since(start)

	p.Stage = model.StageRouted
	p.Routes = routes
	p.TotalDistance = opt.TotalDistance(routes)
	p.UpdatedAt = s.clock()
	if !s.Cache.Replace(p) {
		return model.Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}

	metrics.RouteDistance.Observe(p.TotalDistance)
	s.record(ctx, tenantID, opt.RunStats{
		PlanID: p.ID, Stage: model.StageRouted, Points: len(p.Points), K: p.K,
		Routes: len(routes), TotalDistance: p.TotalDistance, Improved: improve, Seed: p.Seed,
	}, elapsed)
	log.Printf("[plan] routed id=%s routes=%d total=%.2f improved=%t", p.ID, len(routes), p.TotalDistance, improve)
	s.notify(ctx, webhooks.EventPlanRouted, p)
	return p, nil
}

// Optimize clusters and routes in one call. Nothing is cached.
func (s *Service) Optimize(ctx context.Context, tenantID string, req model.OptimizeRequest) (model.OptimizeResult, error) {
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return model.OptimizeResult{}, err
	}
	pts, _, err := s.resolvePoints(ctx, cfg, req.Points, "", req.Generate)
	if err != nil {
		return model.OptimizeResult{}, err
	}
	depot, err := resolveDepot(cfg, req.Depot)
	if err != nil {
		return model.OptimizeResult{}, err
	}
	improve, iters, err := resolveImprove(cfg, req.Improve, req.ImproveIterations)
	if err != nil {
		return model.OptimizeResult{}, err
	}
	start := time.Now()
	res, seed, err := s.runKMeans(cfg, pts, req.K, req.MaxIterations, req.Seed)
	if err != nil {
		return model.OptimizeResult{}, err
	}
	routes, err := BuildRoutes(ctx, res.Clusters, depot, improve, iters)
	if err != nil {
		return model.OptimizeResult{}, err
	}
	total := opt.TotalDistance(routes)
	metrics.RouteDistance.Observe(total)
	s.record(ctx, tenantID, opt.RunStats{
		Stage: "optimize", Points: len(pts), K: len(res.Clusters), Iterations: res.Iterations,
		Converged: res.Converged, Reseeds: res.Reseeds, Routes: len(routes), TotalDistance: total,
		Improved: improve, Seed: seed,
	}, time.Since(start))
	return model.OptimizeResult{
		Depot:         depot,
		Clusters:      res.Clusters,
		Routes:        routes,
		TotalDistance: total,
		Iterations:    res.Iterations,
		Converged:     res.Converged,
		Seed:          seed,
	}, nil
}

// Tour orders a single group of points from start (the depot by default).
func (s *Service) Tour(ctx context.Context, tenantID string, req model.TourRequest) (model.TourResult, error) {
	cfg, err := s.Settings(ctx, tenantID)
	if err != nil {
		return model.TourResult{}, err
	}
	if len(req.Points) > cfg.MaxPoints {
		return model.TourResult{}, fmt.Errorf("%w: at most %d points", ErrInvalid, cfg.MaxPoints)
	}
	if err := opt.ValidatePoints(req.Points); err != nil {
		return model.TourResult{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	start, err := resolveDepot(cfg, req.Start)
	if err != nil {
		return model.TourResult{}, err
	}
	tour := opt.BuildTour(req.Points, start)
	if req.Improve {
		tour = opt.ImproveTour2Opt(tour, cfg.ImproveIterations)
	}
	return model.TourResult{Points: tour, Distance: opt.Route{Points: tour}.Length()}, nil
}

// BuildRoutes builds the tours concurrently; routes[i] belongs to clusters[i].
func BuildRoutes(ctx context.Context, clusters []opt.Cluster, depot opt.Point, improve bool, iterations int) ([]opt.Route, error) {
	routes := make([]opt.Route, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range clusters {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := opt.NewRoute(c, depot)
			if improve {
				r.Points = opt.ImproveTour2Opt(r.Points, iterations)
				r.Distance = r.Length()
			}
			routes[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return routes, nil
}

func Summarize(p model.Plan) model.PlanSummary {
	return model.PlanSummary{
		ID:            p.ID,
		Stage:         p.Stage,
		Points:        len(p.Points),
		K:             p.K,
		Routes:        len(p.Routes),
		TotalDistance: p.TotalDistance,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (s *Service) runKMeans(cfg config.Optimizer, pts []opt.Point, k, maxIter int, seed int64) (opt.KMeansResult, int64, error) {
	if k == 0 {
		k = cfg.DefaultK
	}
	if k < 0 || k > cfg.MaxClusters {
		return opt.KMeansResult{}, 0, fmt.Errorf("%w: k must be between 1 and %d", ErrInvalid, cfg.MaxClusters)
	}
	if maxIter == 0 {
		maxIter = cfg.MaxIterations
	}
	if maxIter < 0 {
		return opt.KMeansResult{}, 0, fmt.Errorf("%w: maxIterations must not be negative", ErrInvalid)
	}
	if seed == 0 {
		seed = s.clock().UnixNano()
	}
	res := opt.KMeans(pts, k, opt.KMeansOptions{MaxIterations: maxIter, Rand: rand.New(rand.NewSource(seed))})
	if len(res.Clusters) > 0 {
		metrics.KMeansIterations.Observe(float64(res.Iterations))
		metrics.KMeansReseeds.Add(float64(res.Reseeds))
		if !res.Converged {
			metrics.KMeansNotConverged.Inc()
		}
	}
	return res, seed, nil
}

// resolvePoints takes exactly one of explicit points, CSV text or a generate
// request; with none it generates the configured default count.
func (s *Service) resolvePoints(ctx context.Context, cfg config.Optimizer, pts []opt.Point, csvText string, gen *model.GenerateSpec) ([]opt.Point, int64, error) {
	given := 0
	if len(pts) > 0 {
		given++
	}
	if csvText != "" {
		given++
	}
	if gen != nil {
		given++
	}
	if given > 1 {
		return nil, 0, fmt.Errorf("%w: give only one of points, csv or generate", ErrInvalid)
	}

	var seed int64
	var err error
	switch {
	case csvText != "":
		pts, err = source.CSV{R: strings.NewReader(csvText), MaxRows: cfg.MaxPoints}.Points(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	case len(pts) == 0:
		count := cfg.DefaultPoints
		if gen != nil {
			if gen.Count < 0 {
				return nil, 0, fmt.Errorf("%w: generate.count must not be negative", ErrInvalid)
			}
			if gen.Count > 0 {
				count = gen.Count
			}
			seed = gen.Seed
		}
		if count > cfg.MaxPoints {
			return nil, 0, fmt.Errorf("%w: at most %d points", ErrInvalid, cfg.MaxPoints)
		}
		if seed == 0 {
			seed = s.clock().UnixNano()
		}
		pts, err = source.NewUniform(count, cfg.MapWidth, cfg.MapHeight, cfg.Margin, seed).Points(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if len(pts) > cfg.MaxPoints {
		return nil, 0, fmt.Errorf("%w: at most %d points", ErrInvalid, cfg.MaxPoints)
	}
	if err := opt.ValidatePoints(pts); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return pts, seed, nil
}

func resolveDepot(cfg config.Optimizer, d *opt.Point) (opt.Point, error) {
	if d == nil {
		return cfg.Depot(), nil
	}
	depot := opt.Point{ID: opt.DepotID, X: d.X, Y: d.Y}
	if err := opt.ValidateDepot(depot); err != nil {
		return opt.Point{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return depot, nil
}

func resolveImprove(cfg config.Optimizer, improve *bool, iterations int) (bool, int, error) {
	on := cfg.Improve
	if improve != nil {
		on = *improve
	}
	if iterations < 0 {
		return false, 0, fmt.Errorf("%w: improveIterations must not be negative", ErrInvalid)
	}
	if iterations == 0 {
		iterations = cfg.ImproveIterations
	}
	return on, iterations, nil
}

func (s *Service) record(ctx context.Context, tenantID string, st opt.RunStats, elapsed time.Duration) {
	st.DurationMs = elapsed.Milliseconds()
	if s.Runs != nil {
		s.Runs.Record(tenantID, st)
	}
	metrics.PlanRuns.WithLabelValues(st.Stage).Inc()
	metrics.PlanDuration.WithLabelValues(st.Stage).Observe(elapsed.Seconds())
	if s.Store == nil {
		return
	}
	if err := s.Store.SavePlanMetrics(ctx, model.PlanMetrics{RunStats: st, TenantID: tenantID, CreatedAt: s.clock().UTC()}); err != nil {
		log.Printf("[plan] save metrics plan=%s stage=%s: %v", st.PlanID, st.Stage, err)
	}
}

func (s *Service) notify(ctx context.Context, eventType string, p model.Plan) {
	if s.Notifier != nil {
		s.Notifier.PlanEvent(ctx, eventType, p)
	}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// lock serialises stage changes and deletion of one plan.
func (s *Service) lock(tenantID, id string) func() {
	key := cacheKey(tenantID, id)
	s.lmu.Lock()
	l := s.locks[key]
	if l == nil {
		l = &planLock{}
		s.locks[key] = l
	}
	l.refs++
	s.lmu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.lmu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.lmu.Unlock()
	}
}

func (s *Service) heldLocks() int {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	return len(s.locks)
}
