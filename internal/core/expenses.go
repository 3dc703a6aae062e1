package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ExpenseItem is a single expense category and its monthly amount.
type ExpenseItem struct {
	Category string
	Amount   int64
}

// Expenses is an ordered mapping from category to amount. Iteration order is
// insertion order; re-setting an existing category keeps its position.
type Expenses struct {
	items []ExpenseItem
	index map[string]int
}

// NewExpenses builds Expenses from items in order. Later duplicates
// overwrite earlier amounts.
func NewExpenses(items ...ExpenseItem) Expenses {
	var e Expenses
	for _, it := range items {
		e.Set(it.Category, it.Amount)
	}
	return e
}

// Set adds or replaces the amount for category.
func (e *Expenses) Set(category string, amount int64) {
	// Copy on write: FinanceState values share Expenses by assignment.
	items := make([]ExpenseItem, len(e.items), len(e.items)+1)
	copy(items, e.items)
	if i, ok := e.index[category]; ok {
		items[i].Amount = amount
		e.items = items
		return
	}
	index := make(map[string]int, len(e.index)+1)
	for k, v := range e.index {
		index[k] = v
	}
	index[category] = len(items)
	e.items = append(items, ExpenseItem{Category: category, Amount: amount})
	e.index = index
}

// Get returns the amount recorded for category.
func (e Expenses) Get(category string) (int64, bool) {
	i, ok := e.index[category]
	if !ok {
		return 0, false
	}
	return e.items[i].Amount, true
}

// Len returns the number of categories.
func (e Expenses) Len() int {
	return len(e.items)
}

// Items returns a copy of the items in order.
func (e Expenses) Items() []ExpenseItem {
	out := make([]ExpenseItem, len(e.items))
	copy(out, e.items)
	return out
}

// Total returns the sum of all amounts.
func (e Expenses) Total() int64 {
	var total int64
	for _, it := range e.items {
		total += it.Amount
	}
	return total
}

// MarshalJSON encodes the expenses as a JSON object in insertion order.
func (e Expenses) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, it := range e.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(it.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(it.Amount, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of integer amounts, preserving key
// order. Values must be integers and not negative.
func (e *Expenses) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return &ValidationError{Field: "expenses", Message: "invalid JSON"}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &ValidationError{Field: "expenses", Message: "must be an object mapping category to amount"}
	}

	var out Expenses
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return &ValidationError{Field: "expenses", Message: "invalid JSON"}
		}
		key, ok := keyTok.(string)
		if !ok {
			return &ValidationError{Field: "expenses", Message: "invalid category key"}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return &ValidationError{Field: "expenses." + key, Message: "invalid JSON"}
		}
		amount, err := strconv.ParseInt(string(raw), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return &ValidationError{Field: "expenses." + key, Message: "out of range"}
		}
		if err != nil {
			return &ValidationError{Field: "expenses." + key, Message: fmt.Sprintf("must be an integer, got %s", raw)}
		}
		if amount < 0 {
			return &ValidationError{Field: "expenses." + key, Message: "must be greater than or equal to 0"}
		}
		out.Set(key, amount)
	}
	if _, err := dec.Token(); err != nil {
		return &ValidationError{Field: "expenses", Message: "invalid JSON"}
	}

	*e = out
	return nil
}
