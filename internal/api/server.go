package api

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"routeplan/internal/auth"
	"routeplan/internal/config"
	"routeplan/internal/model"
	"routeplan/internal/planner"
	"routeplan/internal/store"
	"routeplan/internal/webhooks"
)

type Server struct {
	Store   store.Store
	Planner *planner.Service
	Pub     *webhooks.Publisher
	Auth    *auth.Verifier
	Broker  EventBroker
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Printf("[migrate] %v", err)
			}
		}
		s = sp
	}
	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	defaults, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	cacheSize := 0
	if v := os.Getenv("PLAN_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cacheSize = n
		}
	}
	srv := &Server{Store: s, Pub: webhooks.NewPublisher(s), Auth: auth.NewVerifierFromEnv(), Broker: broker}
	srv.Planner = planner.NewService(s, planner.NewCache(cacheSize), defaults, srv)
	return srv, nil
}

// PlanEvent fans a plan change out to live subscribers and webhook subscriptions.
func (s *Server) PlanEvent(ctx context.Context, eventType string, p model.Plan) {
	data := planEventData(p)
	s.Broker.Publish(p.ID, SSEEvent{Type: eventType, Data: data})
	if s.Pub != nil {
		s.Pub.Emit(ctx, p.TenantID, eventType, data)
	}
}

func planEventData(p model.Plan) map[string]any {
	sum := planner.Summarize(p)
	return map[string]any{
		"planId":        p.ID,
		"stage":         sum.Stage,
		"points":        sum.Points,
		"k":             sum.K,
		"routes":        sum.Routes,
		"totalDistance": sum.TotalDistance,
		"ts":            sum.UpdatedAt,
	}
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
