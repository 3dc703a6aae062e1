package budget

import (
	"context"
	"fmt"
	"strings"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/core"
	applog "pocketpilot/internal/log"
)

// Node names.
const (
	NodeAnalyzeBudget       = "analyze_budget"
	NodeReduceExpenses      = "reduce_expenses"
	NodeGenerateSavingsPlan = "generate_savings_plan"
	NodeFinalAdvice         = "final_advice"
)

// Fixed texts used when the generator is unconfigured or fails.
const (
	MockAdvice     = "Mock Advice: 1. Cook at home more. 2. Cancel unused subscriptions. 3. Look for cheaper utility plans."
	FallbackAdvice = "I'm having trouble connecting to my AI core right now, but generally, consider reducing non-essential subscriptions or dining out temporarily."

	OverspendingBanner = "⚠️ WARNING: You are currently spending more than you earn."
	OnTrackBanner      = "✅ Great job! You have a positive savings balance."
	Disclaimer         = "\n\nDISCLAIMER: This analysis is for educational purposes only and does not constitute professional financial advice."
)

// MockSavingsPlan is the plan returned when no generator is configured.
func MockSavingsPlan(savings int64, goal string) string {
	return fmt.Sprintf("Mock Savings Plan: Allocate 50%% of your %s to your %s and 50%% to an emergency fund.", core.FormatCurrency(savings), goal)
}

// FallbackSavingsPlan is the plan returned when the generator call fails.
func FallbackSavingsPlan(savings int64, goal string) string {
	return fmt.Sprintf("I'm experiencing some technical difficulties, but I suggest putting most of your %s into your %s for now.", core.FormatCurrency(savings), goal)
}

// AnalyzeBudget computes savings and the textual breakdown.
func AnalyzeBudget(_ context.Context, s core.FinanceState) (core.FinanceState, error) {
	total := s.Expenses.Total()
	savings := s.Income - total

	var b strings.Builder
	fmt.Fprintf(&b, "Total Monthly Income: %s\n", core.FormatCurrency(s.Income))
	fmt.Fprintf(&b, "Total Monthly Expenses: %s\n", core.FormatCurrency(total))
	fmt.Fprintf(&b, "Initial Monthly Savings: %s\n", core.FormatCurrency(savings))
	b.WriteString("Breakdown:\n")
	for _, item := range s.Expenses.Items() {
		fmt.Fprintf(&b, "- %s: %s\n", core.Capitalize(item.Category), core.FormatCurrency(item.Amount))
	}

	s.Analysis = b.String()
	s.Savings = savings
	return s, nil
}

// CheckOverspending routes on the sign of the computed savings.
func CheckOverspending(s core.FinanceState) core.Condition {
	return core.ConditionOf(s.Savings)
}

// FinalAdvice prefixes the banner and appends the disclaimer. SavingsPlan is
// left as produced.
func FinalAdvice(_ context.Context, s core.FinanceState) (core.FinanceState, error) {
	banner := OnTrackBanner
	if s.Savings < 0 {
		banner = OverspendingBanner
	}
	body := s.Advice
	if body == "" {
		body = s.SavingsPlan
	}
	s.Advice = banner + "\n\n" + body + Disclaimer
	return s, nil
}

// advisor holds the generator consulted by the two branch nodes.
type advisor struct {
	gen    advice.Generator
	logger *applog.Logger
}

func (a *advisor) consult(ctx context.Context, node, prompt string) advice.Result {
	res := advice.Consult(ctx, a.gen, prompt)
	if rec := recordFrom(ctx); rec != nil {
		rec.outcome = res.Kind
	}

	switch res.Kind {
	case advice.Failed:
		a.logger.WarnContext(ctx, "Advice generator failed, using fallback",
			applog.FieldNode, node,
			applog.FieldProvider, advice.ProviderOf(a.gen),
			applog.FieldError, res.Reason)
	case advice.Unavailable:
		a.logger.DebugContext(ctx, "Advice generator unavailable, using mock text", applog.FieldNode, node)
	}
	return res
}

// ReduceExpenses asks for three expense cuts. It never fails.
func (a *advisor) ReduceExpenses(ctx context.Context, s core.FinanceState) (core.FinanceState, error) {
	res := a.consult(ctx, NodeReduceExpenses, advice.OverspendingPrompt(s))
	switch res.Kind {
	case advice.Generated:
		s.Advice = res.Text
	case advice.Unavailable:
		s.Advice = MockAdvice
	default:
		s.Advice = FallbackAdvice
	}
	return s, nil
}

// GenerateSavingsPlan asks for an allocation of the savings. It never fails.
func (a *advisor) GenerateSavingsPlan(ctx context.Context, s core.FinanceState) (core.FinanceState, error) {
	res := a.consult(ctx, NodeGenerateSavingsPlan, advice.SavingsPlanPrompt(s))
	switch res.Kind {
	case advice.Generated:
		s.SavingsPlan = res.Text
	case advice.Unavailable:
		s.SavingsPlan = MockSavingsPlan(s.Savings, s.Goal)
	default:
		s.SavingsPlan = FallbackSavingsPlan(s.Savings, s.Goal)
	}
	return s, nil
}

type recordKey struct{}

// record collects per-run facts that are not part of FinanceState.
type record struct {
	outcome advice.Kind
}

func withRecord(ctx context.Context, rec *record) context.Context {
	return context.WithValue(ctx, recordKey{}, rec)
}

func recordFrom(ctx context.Context) *record {
	rec, _ := ctx.Value(recordKey{}).(*record)
	return rec
}
