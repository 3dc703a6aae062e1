package render

import (
	"strings"
	"testing"
	"time"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/budget"
	"pocketpilot/internal/core"
	"pocketpilot/internal/ledger"
)

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Title:   "Spend",
		Headers: []string{"Category", "Amount"},
		Rows: [][]string{
			{"Rent", "$1,000"},
			Separator,
			{"Total", "$1,500"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// title, top border, header, header rule, Rent, separator, Total, bottom border
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Spend") {
		t.Errorf("title line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "╭") || !strings.HasPrefix(lines[7], "╰") {
		t.Errorf("missing borders:\n%s", out)
	}
	if !strings.Contains(lines[3], "├") || !strings.Contains(lines[5], "├") {
		t.Errorf("missing separators:\n%s", out)
	}
	if !strings.Contains(lines[2], "Category") || !strings.Contains(lines[2], "Amount") {
		t.Errorf("header = %q", lines[2])
	}
	if !strings.Contains(lines[4], "Rent") || !strings.Contains(lines[4], "$1,000") {
		t.Errorf("row = %q", lines[4])
	}
	if !strings.Contains(lines[6], "Total") {
		t.Errorf("total row = %q", lines[6])
	}
}

func TestRenderTableEmpty(t *testing.T) {
	if out := RenderTable(Table{}); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestAssessment(t *testing.T) {
	state := core.NewFinanceState(1000, core.NewExpenses(
		core.ExpenseItem{Category: "rent", Amount: 1200},
		core.ExpenseItem{Category: "eating out", Amount: 100},
	), "travel")
	state.Savings = -300
	state.Advice = budget.OverspendingBanner + "\n\n" + budget.MockAdvice + budget.Disclaimer

	out := Assessment(budget.Assessment{
		State:     state,
		Condition: core.Overspending,
		Outcome:   advice.Unavailable,
		Provider:  advice.ProviderMock,
		Duration:  3 * time.Millisecond,
	})

	for _, want := range []string{"Rent", "Eating out", "$1,200", "-$300", "overspending", "unavailable via mock", "DISCLAIMER"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummary(t *testing.T) {
	out := Summary(ledger.Summary{
		Total:          4,
		ByCondition:    map[string]int{"reduce_expenses": 1, "generate_savings_plan": 3},
		ByOutcome:      map[string]int{"generated": 4},
		ByProvider:     map[string]int{"gemini": 4},
		MeanDurationMs: 812,
	})

	for _, want := range []string{"all time", "812 ms", "75.0%", "25.0%", "100.0%", "gemini"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "generate_savings_plan") > strings.Index(out, "reduce_expenses") {
		t.Error("expected larger counts first")
	}
}

func TestSummaryEmpty(t *testing.T) {
	out := Summary(ledger.Summary{Since: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)})
	if !strings.Contains(out, "No assessments recorded yet.") || !strings.Contains(out, "since 2025-01-02 03:04") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
