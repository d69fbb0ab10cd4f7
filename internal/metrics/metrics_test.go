package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterDefaultIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	PlanRuns.WithLabelValues("clustered").Inc()
	if got := testutil.ToFloat64(PlanRuns.WithLabelValues("clustered")); got < 1 {
		t.Fatalf("plan run counter not incremented: %v", got)
	}
	mfs, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "plan_runs_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("plan_runs_total not registered")
	}
}
