package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	MaxCategories     = 100
	MaxCategoryLength = 100
	MaxGoalLength     = 500
)

// Condition is the financial condition derived from a computed savings value.
// The zero value is not a valid condition.
type Condition int

const (
	Overspending Condition = iota + 1
	OnTrack
)

// Conditions returns every valid Condition.
func Conditions() []Condition {
	return []Condition{Overspending, OnTrack}
}

func (c Condition) String() string {
	switch c {
	case Overspending:
		return "reduce_expenses"
	case OnTrack:
		return "generate_savings_plan"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// ConditionOf classifies a savings value. Zero savings is on track.
func ConditionOf(savings int64) Condition {
	if savings < 0 {
		return Overspending
	}
	return OnTrack
}

type (
	// FinanceState is the record threaded through the budget workflow.
	// Nodes receive it by value and return an updated copy.
	FinanceState struct {
		Income      int64
		Expenses    Expenses
		Goal        string
		Analysis    string
		Savings     int64
		Advice      string
		SavingsPlan string
	}

	// ValidationError reports malformed assessment input.
	ValidationError struct {
		Field   string
		Message string
	}
)

var ErrValidation = errors.New("validation error")

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewFinanceState builds a fresh state from validated input. Every derived
// field starts blank.
func NewFinanceState(income int64, expenses Expenses, goal string) FinanceState {
	return FinanceState{
		Income:   income,
		Expenses: expenses,
		Goal:     goal,
	}
}

// TotalExpenses returns the sum of all expense amounts.
func (s FinanceState) TotalExpenses() int64 {
	return s.Expenses.Total()
}

// Condition reports the condition implied by the current Savings value.
func (s FinanceState) Condition() Condition {
	return ConditionOf(s.Savings)
}

func (s FinanceState) Validate() error {
	if s.Income < 0 {
		return &ValidationError{Field: "income", Message: "must be greater than or equal to 0"}
	}
	if s.Expenses.Len() > MaxCategories {
		return &ValidationError{Field: "expenses", Message: fmt.Sprintf("too many categories (max %d)", MaxCategories)}
	}
	var total int64
	for _, item := range s.Expenses.Items() {
		name := strings.TrimSpace(item.Category)
		if name == "" {
			return &ValidationError{Field: "expenses", Message: "category name cannot be empty"}
		}
		if len(item.Category) > MaxCategoryLength {
			return &ValidationError{Field: "expenses." + name, Message: fmt.Sprintf("category name too long (max %d characters)", MaxCategoryLength)}
		}
		if item.Amount < 0 {
			return &ValidationError{Field: "expenses." + name, Message: "must be greater than or equal to 0"}
		}
		// Savings is income minus this total; both stay in int64 only while
		// the running sum does.
		if total > math.MaxInt64-item.Amount {
			return &ValidationError{Field: "expenses", Message: "total out of range"}
		}
		total += item.Amount
	}
	if len(s.Goal) > MaxGoalLength {
		return &ValidationError{Field: "goal", Message: fmt.Sprintf("too long (max %d characters)", MaxGoalLength)}
	}
	return nil
}
