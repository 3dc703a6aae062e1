package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pocketpilot/internal/events"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func outcome(runID, condition, kind string, ms int64, at time.Time) *events.AssessmentCompleted {
	return &events.AssessmentCompleted{
		RunID:             runID,
		Condition:         condition,
		GeneratorOutcome:  kind,
		GeneratorProvider: "mock",
		Nodes:             []string{"analyze_budget", condition, "final_advice"},
		DurationMs:        ms,
		Timestamp:         at,
	}
}

func TestRecordIgnoresDuplicates(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	msg := outcome("run-1", "reduce_expenses", "unavailable", 10, time.Now())

	inserted, err := l.Record(ctx, msg)
	if err != nil || !inserted {
		t.Fatalf("first Record = %v, %v", inserted, err)
	}
	inserted, err = l.Record(ctx, msg)
	if err != nil || inserted {
		t.Fatalf("duplicate Record = %v, %v", inserted, err)
	}
	if err := l.Handle(ctx, msg); err != nil {
		t.Fatalf("Handle duplicate: %v", err)
	}

	s, err := l.Summary(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 1 {
		t.Fatalf("total = %d, want 1", s.Total)
	}
}

func TestSummary(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	records := []*events.AssessmentCompleted{
		outcome("a", "reduce_expenses", "generated", 100, now),
		outcome("b", "generate_savings_plan", "generated", 300, now),
		outcome("c", "generate_savings_plan", "failed", 200, now),
		outcome("old", "reduce_expenses", "unavailable", 9000, old),
	}
	for _, r := range records {
		if _, err := l.Record(ctx, r); err != nil {
			t.Fatalf("Record %s: %v", r.RunID, err)
		}
	}

	s, err := l.Summary(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 3 {
		t.Fatalf("total = %d, want 3", s.Total)
	}
	if s.ByCondition["generate_savings_plan"] != 2 || s.ByCondition["reduce_expenses"] != 1 {
		t.Fatalf("by condition = %v", s.ByCondition)
	}
	if s.ByOutcome["generated"] != 2 || s.ByOutcome["failed"] != 1 || s.ByOutcome["unavailable"] != 0 {
		t.Fatalf("by outcome = %v", s.ByOutcome)
	}
	if s.ByProvider["mock"] != 3 {
		t.Fatalf("by provider = %v", s.ByProvider)
	}
	if s.MeanDurationMs != 200 {
		t.Fatalf("mean duration = %v, want 200", s.MeanDurationMs)
	}

	all, err := l.Summary(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 4 {
		t.Fatalf("total since zero = %d, want 4", all.Total)
	}
}

func TestSummaryEmpty(t *testing.T) {
	s, err := openTest(t).Summary(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 0 || s.MeanDurationMs != 0 || len(s.ByCondition) != 0 {
		t.Fatalf("unexpected empty summary %+v", s)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Record(context.Background(), outcome("x", "reduce_expenses", "failed", 1, time.Now())); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()
	s, err := l.Summary(context.Background(), time.Time{})
	if err != nil || s.Total != 1 {
		t.Fatalf("after reopen total = %d, %v", s.Total, err)
	}
}
