//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"routeplan/internal/model"
	"routeplan/internal/opt"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	// second run is a no-op
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir again: %v", err)
	}

	tenant := "t_it_" + opt.ColorFor(1)[1:]
	if err := p.SavePlanMetrics(t.Context(), model.PlanMetrics{TenantID: tenant, RunStats: opt.RunStats{PlanID: "p1", Stage: "clustered", K: 3, Iterations: 4}}); err != nil {
		t.Fatalf("SavePlanMetrics: %v", err)
	}
	items, err := p.ListPlanMetrics(t.Context(), tenant, "p1", 10)
	if err != nil || len(items) == 0 {
		t.Fatalf("ListPlanMetrics: %v %d", err, len(items))
	}
	if items[0].K != 3 || items[0].Iterations != 4 {
		t.Fatalf("unexpected metrics %+v", items[0])
	}

	if err := p.SaveOptimizerConfig(t.Context(), tenant, map[string]any{"defaultK": 4}); err != nil {
		t.Fatalf("SaveOptimizerConfig: %v", err)
	}
	cfg, err := p.GetOptimizerConfig(t.Context(), tenant)
	if err != nil || cfg["defaultK"] != float64(4) {
		t.Fatalf("GetOptimizerConfig: %v %v", err, cfg)
	}
}
