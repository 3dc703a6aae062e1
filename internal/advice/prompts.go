package advice

import (
	"fmt"
	"strings"

	"pocketpilot/internal/core"
)

// OverspendingPromptTemplate asks for expense cuts when savings are negative.
// Arguments: overspent amount, income, expense breakdown, goal.
const OverspendingPromptTemplate = `User is overspending by %s.
Monthly Income: %s
Monthly Expenses: %s
Goal: %s

Suggest 3 realistic and non-judgmental expense cuts to help them reach a positive savings balance.
Keep it practical and supportive.`

// SavingsPlanPromptTemplate asks for an allocation of non-negative savings.
// Arguments: savings, income, expense breakdown, goal, goal, savings.
const SavingsPlanPromptTemplate = `User has %s in monthly savings.
Monthly Income: %s
Monthly Expenses: %s
Goal: %s

Generate a monthly savings plan to help them achieve their goal: %s.
Focus on allocation of their %s savings.
Do NOT provide investment or trading advice.`

// OverspendingPrompt renders OverspendingPromptTemplate for s.
func OverspendingPrompt(s core.FinanceState) string {
	over := s.Savings
	if over < 0 {
		over = -over
	}
	return fmt.Sprintf(OverspendingPromptTemplate,
		core.FormatCurrency(over),
		core.FormatCurrency(s.Income),
		breakdown(s.Expenses),
		s.Goal)
}

// SavingsPlanPrompt renders SavingsPlanPromptTemplate for s.
func SavingsPlanPrompt(s core.FinanceState) string {
	savings := core.FormatCurrency(s.Savings)
	return fmt.Sprintf(SavingsPlanPromptTemplate,
		savings,
		core.FormatCurrency(s.Income),
		breakdown(s.Expenses),
		s.Goal,
		s.Goal,
		savings)
}

func breakdown(e core.Expenses) string {
	if e.Len() == 0 {
		return "none"
	}
	parts := make([]string, 0, e.Len())
	for _, item := range e.Items() {
		parts = append(parts, item.Category+": "+core.FormatCurrency(item.Amount))
	}
	return strings.Join(parts, ", ")
}
