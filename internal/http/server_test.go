package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/budget"
	"pocketpilot/internal/core"
	"pocketpilot/internal/events"
	"pocketpilot/internal/graph"
	applog "pocketpilot/internal/log"
	"pocketpilot/internal/middleware/trace"
)

type fakePublisher struct {
	mu      sync.Mutex
	msgs    []*events.AssessmentCompleted
	err     error
	healthy bool
}

func (p *fakePublisher) Publish(_ context.Context, msg *events.AssessmentCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) Healthy() bool { return p.healthy }
func (p *fakePublisher) Close() error  { return nil }

type failingAssessor struct{ err error }

func (f failingAssessor) Assess(context.Context, core.FinanceState) (budget.Assessment, error) {
	return budget.Assessment{}, f.err
}
func (failingAssessor) Provider() string { return "test" }

func newTestServer(t *testing.T, cfg Config, assessor Assessor) *Server {
	t.Helper()
	if assessor == nil {
		wf, err := budget.New(advice.Unconfigured{}, budget.WithLogger(applog.Discard()))
		if err != nil {
			t.Fatalf("budget.New: %v", err)
		}
		assessor = wf
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	srv := NewServer(cfg, assessor)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	rec := do(srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["message"] != "AI Personal Finance Copilot API is running" {
		t.Fatalf("body = %v", body)
	}
}

func TestFinance(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSavings int64
		wantBanner  string
		wantBody    string
		wantPlan    bool
		condition   string
	}{
		{
			name:        "overspending",
			body:        `{"income": 1000, "expenses": {"rent": 1200, "fun": 100}, "goal": "travel"}`,
			wantSavings: -300,
			wantBanner:  budget.OverspendingBanner,
			wantBody:    budget.MockAdvice,
			condition:   "reduce_expenses",
		},
		{
			name:        "on track",
			body:        `{"income": 3000, "expenses": {"rent": 1000, "food": 500}, "goal": "emergency fund"}`,
			wantSavings: 1500,
			wantBanner:  budget.OnTrackBanner,
			wantBody:    "Mock Savings Plan: Allocate 50% of your $1,500 to your emergency fund",
			wantPlan:    true,
			condition:   "generate_savings_plan",
		},
		{
			name:        "zero savings is on track",
			body:        `{"income": 500, "expenses": {"rent": 500}, "goal": "x", "extra": true}`,
			wantSavings: 0,
			wantBanner:  budget.OnTrackBanner,
			wantPlan:    true,
			condition:   "generate_savings_plan",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{healthy: true}
			srv := newTestServer(t, Config{Publisher: pub}, nil)

			rec := do(srv, http.MethodPost, "/api/finance", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
			}
			resp := decode[financeResponse](t, rec)
			if resp.Savings != tt.wantSavings {
				t.Errorf("savings = %d, want %d", resp.Savings, tt.wantSavings)
			}
			if !strings.HasPrefix(resp.Advice, tt.wantBanner) {
				t.Errorf("advice = %q", resp.Advice)
			}
			if !strings.Contains(resp.Advice, tt.wantBody) || !strings.HasSuffix(resp.Advice, budget.Disclaimer) {
				t.Errorf("advice = %q", resp.Advice)
			}
			if (resp.SavingsPlan != "") != tt.wantPlan {
				t.Errorf("savings_plan = %q", resp.SavingsPlan)
			}
			if !strings.HasPrefix(resp.Analysis, "Total Monthly Income:") {
				t.Errorf("analysis = %q", resp.Analysis)
			}

			runID := rec.Header().Get(runIDHeader)
			if runID == "" {
				t.Fatal("missing run id header")
			}
			if len(pub.msgs) != 1 {
				t.Fatalf("published %d messages", len(pub.msgs))
			}
			msg := pub.msgs[0]
			if msg.RunID != runID || msg.Condition != tt.condition || msg.GeneratorOutcome != "unavailable" {
				t.Errorf("message = %+v", msg)
			}
			if msg.RequestID != rec.Header().Get(trace.RequestIDHeader) {
				t.Errorf("request id = %q, header = %q", msg.RequestID, rec.Header().Get(trace.RequestIDHeader))
			}
		})
	}
}

func TestFinanceKeepsExpenseOrder(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	rec := do(srv, http.MethodPost, "/api/finance", `{"income": 10, "expenses": {"zeta": 1, "alpha": 2}, "goal": ""}`)
	resp := decode[financeResponse](t, rec)
	if strings.Index(resp.Analysis, "Zeta") > strings.Index(resp.Analysis, "Alpha") {
		t.Fatalf("breakdown out of order:\n%s", resp.Analysis)
	}
}

func TestFinanceValidation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        string
	}{
		{"empty body", "", "application/json", "request body is empty"},
		{"malformed", `{"income": `, "application/json", "invalid JSON"},
		{"array", `[1, 2]`, "application/json", "must be a JSON object"},
		{"missing income", `{"expenses": {}, "goal": ""}`, "application/json", "income: field required"},
		{"missing expenses", `{"income": 1, "goal": ""}`, "application/json", "expenses: field required"},
		{"missing goal", `{"income": 1, "expenses": {}}`, "application/json", "goal: field required"},
		{"null goal", `{"income": 1, "expenses": {}, "goal": null}`, "application/json", "goal: field required"},
		{"float income", `{"income": 10.5, "expenses": {}, "goal": ""}`, "application/json", "income: must be an integer"},
		{"bool income", `{"income": true, "expenses": {}, "goal": ""}`, "application/json", "income: invalid type bool"},
		{"negative income", `{"income": -1, "expenses": {}, "goal": ""}`, "application/json", "income: must be greater than or equal to 0"},
		{"negative amount", `{"income": 1, "expenses": {"rent": -5}, "goal": ""}`, "application/json", "expenses.rent"},
		{"string amount", `{"income": 1, "expenses": {"rent": "5"}, "goal": ""}`, "application/json", "must be an integer"},
		{"expenses not object", `{"income": 1, "expenses": [1], "goal": ""}`, "application/json", "must be an object"},
		{"blank category", `{"income": 1, "expenses": {"  ": 5}, "goal": ""}`, "application/json", "category name cannot be empty"},
		{"trailing data", `{"income": 1, "expenses": {}, "goal": ""} {}`, "application/json", "unexpected data"},
		{"wrong content type", `{"income": 1, "expenses": {}, "goal": ""}`, "text/plain", "content type must be application/json"},
		{"long goal", `{"income": 1, "expenses": {}, "goal": "` + strings.Repeat("g", core.MaxGoalLength+1) + `"}`, "application/json", "goal"},
		{"huge income", `{"income": 99999999999999999999, "expenses": {}, "goal": ""}`, "application/json", "income: out of range"},
		{"exponent income", `{"income": 1e30, "expenses": {}, "goal": ""}`, "application/json", "income: must be an integer"},
		{"huge amount", `{"income": 1, "expenses": {"rent": 99999999999999999999}, "goal": ""}`, "application/json", "expenses.rent: out of range"},
		{"total overflows", `{"income": 0, "expenses": {"rent": 9223372036854775807, "food": 9223372036854775807}, "goal": ""}`, "application/json", "expenses: total out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Config{}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/finance", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
			}
			resp := decode[errorResponse](t, rec)
			if !strings.Contains(resp.Detail, tt.want) {
				t.Fatalf("detail = %q, want it to contain %q", resp.Detail, tt.want)
			}
		})
	}
}

func TestFinanceBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	body := `{"income": 1, "expenses": {}, "goal": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := do(srv, http.MethodPost, "/api/finance", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFinanceInternalError(t *testing.T) {
	srv := newTestServer(t, Config{}, failingAssessor{err: &graph.NodeError{Node: "analyze_budget", Err: errors.New("boom")}})
	rec := do(srv, http.MethodPost, "/api/finance", `{"income": 1, "expenses": {}, "goal": ""}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Detail != "internal error" {
		t.Fatalf("detail = %q", resp.Detail)
	}
	if !strings.Contains(do(srv, http.MethodGet, "/metrics", "").Body.String(), "assessment_failures_total 1") {
		t.Fatal("failure not counted")
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed"), healthy: false}
	srv := newTestServer(t, Config{Publisher: pub}, nil)

	rec := do(srv, http.MethodPost, "/api/finance", `{"income": 1, "expenses": {}, "goal": ""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	metrics := do(srv, http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(metrics, "events_publish_failures_total 1") {
		t.Fatalf("metrics:\n%s", metrics)
	}

	ready := decode[map[string]any](t, do(srv, http.MethodGet, "/readyz", ""))
	if ready["status"] != "degraded" {
		t.Fatalf("ready = %v", ready)
	}
}

func TestRateLimitAppliesToPOST(t *testing.T) {
	srv := newTestServer(t, Config{RateLimitPerMinute: 2}, nil)
	body := `{"income": 1, "expenses": {}, "goal": ""}`

	for i := 0; i < 2; i++ {
		if rec := do(srv, http.MethodPost, "/api/finance", body); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := do(srv, http.MethodPost, "/api/finance", body)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("status = %d headers = %v", rec.Code, rec.Header())
	}
	if rec := do(srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET limited: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Config{AllowedOrigins: []string{"http://localhost:3000"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/finance", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/finance", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)

	rec := do(srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["status"] != "ok" {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	ready := decode[struct {
		Status string `json:"status"`
		Checks struct {
			Generator map[string]string `json:"generator"`
			Events    string            `json:"events"`
		} `json:"checks"`
	}](t, do(srv, http.MethodGet, "/readyz", ""))
	if ready.Status != "ready" || ready.Checks.Generator["mode"] != "mock" || ready.Checks.Events != "disabled" {
		t.Fatalf("ready = %+v", ready)
	}
}

func TestMetricsCountsAssessments(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	do(srv, http.MethodPost, "/api/finance", `{"income": 1, "expenses": {"a": 2}, "goal": ""}`)
	do(srv, http.MethodPost, "/api/finance", `{"income": -1, "expenses": {}, "goal": ""}`)

	body := do(srv, http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{
		`assessments_total{condition="reduce_expenses"} 1`,
		`assessments_total{condition="generate_savings_plan"} 0`,
		`generator_outcomes_total{outcome="unavailable"} 1`,
		"invalid_requests_total 1",
		"http_requests_total 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	if rec := do(srv, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound || decode[errorResponse](t, rec).Detail != "Not Found" {
		t.Fatalf("404 = %d %s", rec.Code, rec.Body)
	}
	if rec := do(srv, http.MethodGet, "/api/finance", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("405 = %d", rec.Code)
	}
}

func TestPanicRecovered(t *testing.T) {
	srv := newTestServer(t, Config{}, panicAssessor{})
	rec := do(srv, http.MethodPost, "/api/finance", `{"income": 1, "expenses": {}, "goal": ""}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

type panicAssessor struct{}

func (panicAssessor) Assess(context.Context, core.FinanceState) (budget.Assessment, error) {
	panic("unexpected")
}
func (panicAssessor) Provider() string { return "test" }

func TestWriteTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{"default", Config{}, DefaultWriteTimeout},
		{"short budget keeps default", Config{WriteTimeout: WriteTimeoutFor(10 * time.Second)}, DefaultWriteTimeout},
		{"long budget extends deadline", Config{WriteTimeout: WriteTimeoutFor(30*time.Minute + 25*time.Second)}, 30*time.Minute + 55*time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.cfg, nil)
			if srv.WriteTimeout != tt.want {
				t.Fatalf("WriteTimeout = %v, want %v", srv.WriteTimeout, tt.want)
			}
		})
	}
}
