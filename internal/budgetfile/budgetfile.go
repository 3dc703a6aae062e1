// Package budgetfile reads assessment input from TOML files such as
//
//	income = 3000
//	goal = "emergency fund"
//
//	[expenses]
//	rent = 1000
//	food = 500
package budgetfile

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"pocketpilot/internal/core"
)

type document struct {
	Income   int64            `toml:"income"`
	Goal     string           `toml:"goal"`
	Expenses map[string]int64 `toml:"expenses"`
}

// Load reads and validates the budget file at path.
func Load(path string) (core.FinanceState, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.FinanceState{}, fmt.Errorf("open budget file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a budget document. Expense categories keep the order in
// which they appear.
func Decode(r io.Reader) (core.FinanceState, error) {
	var doc document
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return core.FinanceState{}, &core.ValidationError{Message: fmt.Sprintf("invalid budget file: %v", err)}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return core.FinanceState{}, &core.ValidationError{Message: "unknown keys: " + strings.Join(keys, ", ")}
	}

	var expenses core.Expenses
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "expenses" {
			continue
		}
		expenses.Set(key[1], doc.Expenses[key[1]])
	}

	state := core.NewFinanceState(doc.Income, expenses, doc.Goal)
	if err := state.Validate(); err != nil {
		return core.FinanceState{}, err
	}
	return state, nil
}
