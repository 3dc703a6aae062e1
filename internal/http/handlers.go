package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/core"
	"pocketpilot/internal/events"
)

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AI Personal Finance Copilot API is running"})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady reports the generator mode and event publisher state. A
// broken publisher degrades the service but never makes it unready, since
// assessments do not depend on it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	provider := s.assessor.Provider()

	eventsState := "ok"
	switch {
	case isNoop(s.publisher):
		eventsState = "disabled"
	case !s.publisher.Healthy():
		eventsState = "disconnected"
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": map[string]any{
			"generator": map[string]string{
				"provider": provider,
				"mode":     generatorMode(provider),
			},
			"events": eventsState,
			"rate_limiter": map[string]any{
				"active_clients": s.rateLimiter.ActiveClients(),
			},
		},
	})
}

func isNoop(p events.Publisher) bool {
	_, ok := p.(events.Noop)
	return ok
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	m := s.appMetrics
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP assessments_total Completed assessments by condition\n")
	fmt.Fprintf(w, "# TYPE assessments_total counter\n")
	for _, c := range core.Conditions() {
		fmt.Fprintf(w, "assessments_total{condition=%q} %d\n", c.String(), atomic.LoadInt64(&m.byCondition[c]))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP generator_outcomes_total Advice generator outcomes\n")
	fmt.Fprintf(w, "# TYPE generator_outcomes_total counter\n")
	for _, k := range []advice.Kind{advice.Generated, advice.Unavailable, advice.Failed} {
		fmt.Fprintf(w, "generator_outcomes_total{outcome=%q} %d\n", k.String(), atomic.LoadInt64(&m.byOutcome[k]))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP assessment_failures_total Assessments that failed with an internal error\n")
	fmt.Fprintf(w, "# TYPE assessment_failures_total counter\n")
	fmt.Fprintf(w, "assessment_failures_total %d\n\n", atomic.LoadInt64(&m.failedAssessments))

	fmt.Fprintf(w, "# HELP invalid_requests_total Requests rejected by validation\n")
	fmt.Fprintf(w, "# TYPE invalid_requests_total counter\n")
	fmt.Fprintf(w, "invalid_requests_total %d\n\n", atomic.LoadInt64(&m.invalidRequests))

	fmt.Fprintf(w, "# HELP events_published_total Outcome events published\n")
	fmt.Fprintf(w, "# TYPE events_published_total counter\n")
	fmt.Fprintf(w, "events_published_total %d\n\n", atomic.LoadInt64(&m.publishedOutcomes))

	fmt.Fprintf(w, "# HELP events_publish_failures_total Outcome events that failed to publish\n")
	fmt.Fprintf(w, "# TYPE events_publish_failures_total counter\n")
	fmt.Fprintf(w, "events_publish_failures_total %d\n\n", atomic.LoadInt64(&m.publishFailures))

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(m.uptime).Seconds())
}
