package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"routeplan/internal/buildinfo"
	"routeplan/internal/store"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 os.Getenv("PORT"),
			"AUTH_MODE":            os.Getenv("AUTH_MODE"),
			"RATE_RPS":             os.Getenv("RATE_RPS"),
			"RATE_BURST":           os.Getenv("RATE_BURST"),
			"WEBHOOK_MAX_ATTEMPTS": os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
			"OPTIMIZER_CONFIG":     os.Getenv("OPTIMIZER_CONFIG"),
			"PLAN_CACHE_SIZE":      os.Getenv("PLAN_CACHE_SIZE"),
			"HAS_DATABASE_URL":     os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":        os.Getenv("REDIS_URL") != "",
		},
	}
	switch s.Store.(type) {
	case *store.Postgres:
		info["store"] = "postgres"
	case *store.Memory:
		info["store"] = "memory"
	}
	if _, ok := s.Broker.(*RedisBroker); ok {
		info["broker"] = "redis"
	} else {
		info["broker"] = "memory"
	}
	if s.Planner != nil {
		info["optimizer"] = s.Planner.Defaults
		info["plansCached"] = s.Planner.Cache.Len()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
