// Package http exposes the budget workflow over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/budget"
	"pocketpilot/internal/core"
	"pocketpilot/internal/events"
	applog "pocketpilot/internal/log"
	"pocketpilot/internal/middleware/ratelimit"
	"pocketpilot/internal/middleware/security"
	"pocketpilot/internal/middleware/trace"
)

// Assessor runs one budget assessment. *budget.Workflow implements it.
type Assessor interface {
	Assess(ctx context.Context, in core.FinanceState) (budget.Assessment, error)
	Provider() string
}

// DefaultWriteTimeout covers the default generator timeout and one retry.
const DefaultWriteTimeout = 2 * time.Minute

// generatorSlack is the write time left after the generator worst case for
// the workflow and the response.
const generatorSlack = 30 * time.Second

// WriteTimeoutFor returns a write deadline that outlasts a generator budget.
func WriteTimeoutFor(budget time.Duration) time.Duration {
	return max(budget+generatorSlack, DefaultWriteTimeout)
}

type Config struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	// WriteTimeout bounds a whole request. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	Logger       *applog.Logger
	// Publisher receives an outcome event per assessment. Nil disables
	// publishing.
	Publisher events.Publisher
}

type Server struct {
	http.Server
	assessor  Assessor
	publisher events.Publisher
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime            time.Time
	byCondition       [3]int64 // indexed by core.Condition
	byOutcome         [4]int64 // indexed by advice.Kind
	failedAssessments int64
	invalidRequests   int64
	publishFailures   int64
	publishedOutcomes int64
}

func (m *appMetrics) recordAssessment(a budget.Assessment) {
	if c := int(a.Condition); c > 0 && c < len(m.byCondition) {
		atomic.AddInt64(&m.byCondition[c], 1)
	}
	if k := int(a.Outcome); k > 0 && k < len(m.byOutcome) {
		atomic.AddInt64(&m.byOutcome[k], 1)
	}
}

// NewServer builds the router and returns a ready-to-run server.
func NewServer(cfg Config, assessor Assessor) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	detector := security.NewDetector()
	s := &Server{
		assessor:         assessor,
		publisher:        publisher,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	r := chi.NewRouter()
	r.Use(applog.Middleware(logger))
	r.Use(s.traceMiddleware.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders: []string{trace.RequestIDHeader, runIDHeader},
		MaxAge:         300,
	}))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)
	r.Use(s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited, http.MethodPost))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", handleRoot)
	r.Post("/api/finance", s.handleFinance)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// generatorMode reports whether assessments consult a live backend.
func generatorMode(provider string) string {
	if provider == advice.ProviderMock {
		return "mock"
	}
	return "live"
}
