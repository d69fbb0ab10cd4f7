package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"routeplan/internal/model"
	"routeplan/internal/opt"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("OPTIMIZER_CONFIG", "")
	s, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodePlan(t *testing.T, rr *httptest.ResponseRecorder) model.Plan {
	t.Helper()
	var p model.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode plan: %v; body=%s", err, rr.Body.String())
	}
	return p
}

var samplePoints = []opt.Point{
	{ID: 0, X: 100, Y: 100}, {ID: 1, X: 110, Y: 105}, {ID: 2, X: 95, Y: 120},
	{ID: 3, X: 700, Y: 500}, {ID: 4, X: 690, Y: 510}, {ID: 5, X: 710, Y: 480},
}

func createPlan(t *testing.T, s *Server, tenant string) model.Plan {
	t.Helper()
	rr := doJSON(t, s.PlansHandler, http.MethodPost, "/v1/plans", tenant, map[string]any{"points": samplePoints})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create plan: got %d body=%s", rr.Code, rr.Body.String())
	}
	return decodePlan(t, rr)
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestPlanLifecycle(t *testing.T) {
	s := newTestServer(t)
	p := createPlan(t, s, "t_test")
	if p.Stage != model.StagePoints || len(p.Points) != len(samplePoints) {
		t.Fatalf("created plan: %+v", p)
	}
	if p.Depot.ID != opt.DepotID || p.Depot.X != 400 || p.Depot.Y != 300 {
		t.Fatalf("default depot: %+v", p.Depot)
	}

	rr := doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/cluster", "t_test", map[string]any{"k": 2, "seed": 7})
	if rr.Code != 200 {
		t.Fatalf("cluster: got %d body=%s", rr.Code, rr.Body.String())
	}
	p = decodePlan(t, rr)
	if p.Stage != model.StageClustered || len(p.Clusters) != 2 {
		t.Fatalf("clustered plan: stage=%s clusters=%d", p.Stage, len(p.Clusters))
	}
	total := 0
	for i, c := range p.Clusters {
		if c.Color != opt.ColorFor(i) {
			t.Fatalf("cluster %d color %s", i, c.Color)
		}
		if len(c.Points) != 3 {
			t.Fatalf("cluster %d has %d points, want 3", i, len(c.Points))
		}
		total += len(c.Points)
	}
	if total != len(samplePoints) {
		t.Fatalf("points across clusters: %d", total)
	}

	rr = doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/routes", "t_test", nil)
	if rr.Code != 200 {
		t.Fatalf("routes: got %d body=%s", rr.Code, rr.Body.String())
	}
	p = decodePlan(t, rr)
	if p.Stage != model.StageRouted || len(p.Routes) != 2 {
		t.Fatalf("routed plan: stage=%s routes=%d", p.Stage, len(p.Routes))
	}
	sum := 0.0
	for i, rt := range p.Routes {
		if len(rt.Points) != 5 {
			t.Fatalf("route %d has %d stops, want 5", i, len(rt.Points))
		}
		if rt.Points[0].ID != opt.DepotID || rt.Points[len(rt.Points)-1].ID != opt.DepotID {
			t.Fatalf("route %d not closed at depot: %+v", i, rt.Points)
		}
		if rt.Color != p.Clusters[i].Color {
			t.Fatalf("route %d color %s, cluster color %s", i, rt.Color, p.Clusters[i].Color)
		}
		if math.Abs(rt.Distance-rt.Length()) > 1e-9 {
			t.Fatalf("route %d distance %v, length %v", i, rt.Distance, rt.Length())
		}
		sum += rt.Distance
	}
	if math.Abs(sum-p.TotalDistance) > 1e-9 || p.TotalDistance <= 0 {
		t.Fatalf("total distance %v, sum of routes %v", p.TotalDistance, sum)
	}

	rr = doJSON(t, s.PlansHandler, http.MethodGet, "/v1/plans", "t_test", nil)
	var list struct{ Items []model.PlanSummary `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != p.ID || list.Items[0].Routes != 2 {
		t.Fatalf("list: %+v", list.Items)
	}

	rr = doJSON(t, s.PlanByIDHandler, http.MethodDelete, "/v1/plans/"+p.ID, "t_test", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	rr = doJSON(t, s.PlanByIDHandler, http.MethodGet, "/v1/plans/"+p.ID, "t_test", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rr.Code)
	}
}

func TestRouteBeforeClusterConflicts(t *testing.T) {
	s := newTestServer(t)
	p := createPlan(t, s, "t_test")
	rr := doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/routes", "t_test", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("routes before cluster: got %d", rr.Code)
	}
	var prob Problem
	_ = json.Unmarshal(rr.Body.Bytes(), &prob)
	if prob.Status != http.StatusConflict || prob.Instance == "" {
		t.Fatalf("problem body: %+v", prob)
	}
}

func TestCreatePlanGenerateAndCSV(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.PlansHandler, http.MethodPost, "/v1/plans", "t_test", map[string]any{"generate": map[string]any{"count": 25, "seed": 42}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: got %d body=%s", rr.Code, rr.Body.String())
	}
	p := decodePlan(t, rr)
	if len(p.Points) != 25 || p.PointSeed != 42 {
		t.Fatalf("generated %d points seed %d", len(p.Points), p.PointSeed)
	}
	for _, pt := range p.Points {
		if pt.X < 10 || pt.X >= 790 || pt.Y < 10 || pt.Y >= 590 {
			t.Fatalf("point outside margins: %+v", pt)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader("id,x,y\n1,10,20\n2,30,40\n"))
	req.Header.Set("Content-Type", "text/csv")
	rr = httptest.NewRecorder()
	s.PlansHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("csv: got %d body=%s", rr.Code, rr.Body.String())
	}
	p = decodePlan(t, rr)
	if len(p.Points) != 2 || p.Points[1].X != 30 {
		t.Fatalf("csv points: %+v", p.Points)
	}
}

func TestInvalidPlanRequests(t *testing.T) {
	s := newTestServer(t)
	p := createPlan(t, s, "t_test")
	cases := []struct {
		name string
		h    http.HandlerFunc
		path string
		body any
	}{
		{"negative k", s.PlanByIDHandler, "/v1/plans/" + p.ID + "/cluster", map[string]any{"k": -1}},
		{"k above max", s.PlanByIDHandler, "/v1/plans/" + p.ID + "/cluster", map[string]any{"k": 1000}},
		{"unknown field", s.PlansHandler, "/v1/plans", `{"pointz":[]}`},
		{"reserved depot id", s.PlansHandler, "/v1/plans", map[string]any{"points": []opt.Point{{ID: opt.DepotID, X: 1, Y: 1}}}},
		{"points and generate", s.PlansHandler, "/v1/plans", map[string]any{"points": samplePoints, "generate": map[string]any{"count": 3}}},
		{"bad optimize", s.OptimizeHandler, "/v1/optimize", map[string]any{"k": -2}},
	}
	for _, c := range cases {
		rr := doJSON(t, c.h, http.MethodPost, c.path, "t_test", c.body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d body=%s", c.name, rr.Code, rr.Body.String())
		}
	}
}

func TestTenantIsolationAndRoles(t *testing.T) {
	s := newTestServer(t)
	p := createPlan(t, s, "t_one")
	rr := doJSON(t, s.PlanByIDHandler, http.MethodGet, "/v1/plans/"+p.ID, "t_two", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant get: got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(`{"generate":{"count":3}}`))
	req.Header.Set("X-Role", "viewer")
	rr = httptest.NewRecorder()
	s.PlansHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer create: got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(`{"generate":{"count":3}}`))
	req.Header.Set("X-Role", "planner")
	rr = httptest.NewRecorder()
	s.PlansHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("planner create: got %d", rr.Code)
	}
}

func TestOptimizeAndTour(t *testing.T) {
	s := newTestServer(t)
	pts := []opt.Point{{ID: 1, X: 400, Y: 100}, {ID: 2, X: 400, Y: 500}, {ID: 3, X: 100, Y: 300}}
	rr := doJSON(t, s.OptimizeHandler, http.MethodPost, "/v1/optimize", "t_test", map[string]any{"points": pts, "k": 3, "seed": 1})
	if rr.Code != 200 {
		t.Fatalf("optimize: got %d body=%s", rr.Code, rr.Body.String())
	}
	var res model.OptimizeResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode optimize: %v", err)
	}
	if len(res.Routes) != 3 {
		t.Fatalf("routes: %d", len(res.Routes))
	}
	// every point sits alone in its cluster: 2*(200+200+300)
	if math.Abs(res.TotalDistance-1400) > 1e-9 {
		t.Fatalf("total distance: %v", res.TotalDistance)
	}
	if n := len(s.Planner.List(context.Background(), "t_test")); n != 0 {
		t.Fatalf("optimize must not cache plans, got %d", n)
	}

	tour := []opt.Point{{ID: 1, X: 410, Y: 300}, {ID: 2, X: 500, Y: 300}, {ID: 3, X: 405, Y: 300}}
	rr = doJSON(t, s.TourHandler, http.MethodPost, "/v1/tour", "t_test", map[string]any{"points": tour})
	if rr.Code != 200 {
		t.Fatalf("tour: got %d body=%s", rr.Code, rr.Body.String())
	}
	var tr model.TourResult
	if err := json.Unmarshal(rr.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode tour: %v", err)
	}
	var ids []int
	for _, pt := range tr.Points {
		ids = append(ids, pt.ID)
	}
	want := []int{opt.DepotID, 3, 1, 2, opt.DepotID}
	if len(ids) != len(want) {
		t.Fatalf("tour ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("tour ids: got %v want %v", ids, want)
		}
	}
	if math.Abs(tr.Distance-200) > 1e-9 {
		t.Fatalf("tour distance: %v", tr.Distance)
	}
}

func TestPaletteHandler(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.PaletteHandler, http.MethodGet, "/v1/palette", "", nil)
	var body struct{ Colors []string `json:"colors"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode palette: %v", err)
	}
	if len(body.Colors) != len(opt.Palette) || body.Colors[0] != opt.Palette[0] {
		t.Fatalf("palette: %v", body.Colors)
	}
}

func TestAdminOptimizerConfig(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.AdminOptimizerConfigHandler, http.MethodPut, "/v1/admin/optimizer/config", "t_cfg", map[string]any{"config": map[string]any{"defaultK": 3}})
	if rr.Code != 200 {
		t.Fatalf("put config: got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, s.AdminOptimizerConfigHandler, http.MethodPut, "/v1/admin/optimizer/config", "t_cfg", map[string]any{"config": map[string]any{"defaultK": 1000}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid config: got %d", rr.Code)
	}

	rr = doJSON(t, s.OptimizerConfigHandler, http.MethodGet, "/v1/optimizer/config", "t_cfg", nil)
	var body struct{ Defaults struct{ DefaultK int `json:"defaultK"` } `json:"defaults"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if body.Defaults.DefaultK != 3 {
		t.Fatalf("effective defaultK: %d", body.Defaults.DefaultK)
	}

	// k=0 now falls back to the tenant's defaultK
	p := createPlan(t, s, "t_cfg")
	rr = doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/cluster", "t_cfg", map[string]any{"seed": 3})
	if rr.Code != 200 {
		t.Fatalf("cluster: got %d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodePlan(t, rr); len(got.Clusters) != 3 {
		t.Fatalf("clusters with tenant default: %d", len(got.Clusters))
	}

	rr = doJSON(t, s.PlanMetricsHandler, http.MethodGet, "/v1/admin/plan-metrics?planId="+p.ID, "t_cfg", nil)
	var pm struct{ Items []model.PlanMetrics `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &pm); err != nil {
		t.Fatalf("decode plan metrics: %v", err)
	}
	if len(pm.Items) != 1 || pm.Items[0].Stage != model.StageClustered || pm.Items[0].K != 3 {
		t.Fatalf("plan metrics: %+v", pm.Items)
	}
}

func TestSubscriptionEnqueuesPlanWebhooks(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", "t_test", map[string]any{"url": "https://example.invalid/webhook", "events": []string{"plan.created", "plan.clustered"}, "secret": "shh"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create sub: got %d body=%s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)

	rr = doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", "t_test", map[string]any{"url": "https://example.invalid/webhook", "events": []string{"stop.advanced"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown event type: got %d", rr.Code)
	}

	p := createPlan(t, s, "t_test")
	doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/cluster", "t_test", map[string]any{"k": 2})

	rr = doJSON(t, s.WebhookDeliveriesHandler, http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", "t_test", nil)
	if rr.Code != 200 {
		t.Fatalf("deliveries: got %d", rr.Code)
	}
	var dres struct{ Items []map[string]any `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil {
		t.Fatalf("decode deliveries: %v", err)
	}
	if len(dres.Items) != 2 {
		t.Fatalf("deliveries: got %d, want 2", len(dres.Items))
	}
	if dres.Items[0]["eventType"] != "plan.created" || dres.Items[1]["eventType"] != "plan.clustered" {
		t.Fatalf("event types: %+v", dres.Items)
	}

	rr = doJSON(t, s.SubscriptionByIDHandler, http.MethodDelete, "/v1/subscriptions/"+sub.ID, "t_test", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete sub: got %d", rr.Code)
	}
	rr = doJSON(t, s.SubscriptionByIDHandler, http.MethodDelete, "/v1/subscriptions/"+sub.ID, "t_test", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing sub: got %d", rr.Code)
	}
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
	mu   sync.Mutex
	hdr  http.Header
	buf  bytes.Buffer
	code int
}

func (r *sseRecorder) Header() http.Header {
	if r.hdr == nil {
		r.hdr = http.Header{}
	}
	return r.hdr
}

func (r *sseRecorder) WriteHeader(c int) { r.code = c }

func (r *sseRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *sseRecorder) Flush() {}

func (r *sseRecorder) contains(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Contains(r.buf.String(), s)
}

func (r *sseRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func TestPlanEventsSSE(t *testing.T) {
	s := newTestServer(t)
	p := createPlan(t, s, "t_test")

	sseReq := httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/events/stream", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sseReq = sseReq.WithContext(ctx)
	sseReq.Header.Set("X-Tenant-Id", "t_test")

	rec := &sseRecorder{}
	done := make(chan struct{})
	go func() {
		s.PlanByIDHandler(rec, sseReq)
		close(done)
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && !rec.contains("event: plan.snapshot") {
		time.Sleep(10 * time.Millisecond)
	}
	if !rec.contains("event: plan.snapshot") {
		t.Fatalf("missing snapshot. Body: %s", rec.String())
	}

	rr := doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/cluster", "t_test", map[string]any{"k": 2})
	if rr.Code != 200 {
		t.Fatalf("cluster: got %d", rr.Code)
	}

	deadline = time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && !rec.contains("event: plan.clustered") {
		time.Sleep(10 * time.Millisecond)
	}
	if !rec.contains("event: plan.clustered") {
		t.Fatalf("SSE did not contain expected event. Body: %s", rec.String())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("handler did not exit after cancel")
	}
}

func TestPlanEventsSSEUnknownPlan(t *testing.T) {
	s := newTestServer(t)
	rec := &sseRecorder{}
	s.PlanByIDHandler(rec, httptest.NewRequest(http.MethodGet, "/v1/plans/nope/events/stream", nil))
	if rec.code != http.StatusNotFound {
		t.Fatalf("unknown plan stream: got %d", rec.code)
	}
}

func TestOptimizerRunsNewestFirst(t *testing.T) {
	s := newTestServer(t)
	tenant := "t_runs_" + time.Now().Format("150405.000000000")
	p := createPlan(t, s, tenant)
	doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/cluster", tenant, map[string]any{"k": 2})
	doJSON(t, s.PlanByIDHandler, http.MethodPost, "/v1/plans/"+p.ID+"/routes", tenant, nil)
	rr := doJSON(t, s.OptimizerRunsHandler, http.MethodGet, "/v1/optimizer/runs", tenant, nil)
	var body struct{ Items []opt.RunStats `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(body.Items) != 2 || body.Items[0].Stage != model.StageRouted || body.Items[1].Stage != model.StageClustered {
		t.Fatalf("runs: %+v", body.Items)
	}
}

func TestDebugJSON(t *testing.T) {
	s := newTestServer(t)
	createPlan(t, s, "t_dbg")
	rr := httptest.NewRecorder()
	s.DebugJSON(rr, httptest.NewRequest(http.MethodGet, "/debug/info", nil))
	var body struct {
		Build       map[string]string `json:"build"`
		Store       string            `json:"store"`
		Broker      string            `json:"broker"`
		PlansCached int               `json:"plansCached"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Store != "memory" || body.Broker != "memory" || body.PlansCached != 1 {
		t.Fatalf("debug info: %+v", body)
	}
	if body.Build["version"] == "" || body.Build["goVersion"] == "" {
		t.Fatalf("build info: %+v", body.Build)
	}
}
