package http

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"pocketpilot/internal/budget"
	"pocketpilot/internal/core"
	"pocketpilot/internal/events"
	applog "pocketpilot/internal/log"
	"pocketpilot/internal/middleware/trace"
)

// handleFinance runs one assessment for the posted budget.
func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	state, err := parseFinanceRequest(w, r)
	if err != nil {
		s.writeRequestError(w, r, err)
		return
	}

	a, err := s.assessor.Assess(ctx, state)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			s.writeRequestError(w, r, err)
			return
		}
		atomic.AddInt64(&s.appMetrics.failedAssessments, 1)
		applog.NewStructuredLogger(logger).LogError(ctx, "Assessment failed", err, applog.OpAssess,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.appMetrics.recordAssessment(a)
	applog.NewStructuredLogger(logger).LogAssessment(ctx, a.RunID, a.Condition.String(), a.Outcome.String(), a.Provider, a.Duration.Milliseconds())
	s.publish(ctx, a)

	w.Header().Set(runIDHeader, a.RunID)
	writeJSON(w, http.StatusOK, financeResponse{
		Analysis:    a.State.Analysis,
		Advice:      a.State.Advice,
		SavingsPlan: a.State.SavingsPlan,
		Savings:     a.State.Savings,
	})
}

func (s *Server) writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	atomic.AddInt64(&s.appMetrics.invalidRequests, 1)

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Rejected finance request",
		applog.FieldError, err.Error(),
		applog.FieldErrorType, applog.ErrorTypeValidation)
	writeDetail(w, http.StatusUnprocessableEntity, err.Error())
}

// publish sends the anonymous outcome event. Failures are logged and never
// affect the response.
func (s *Server) publish(ctx context.Context, a budget.Assessment) {
	if isNoop(s.publisher) {
		return
	}
	msg := events.NewAssessmentCompleted(a, trace.GetRequestID(ctx))
	if err := s.publisher.Publish(context.WithoutCancel(ctx), msg); err != nil {
		atomic.AddInt64(&s.appMetrics.publishFailures, 1)
		applog.FromContext(ctx).WithComponent(applog.ComponentEvents).WarnContext(ctx, "Failed to publish assessment outcome",
			applog.FieldRunID, a.RunID,
			applog.FieldError, err.Error(),
			applog.FieldOperation, applog.OpPublish)
		return
	}
	atomic.AddInt64(&s.appMetrics.publishedOutcomes, 1)
}
