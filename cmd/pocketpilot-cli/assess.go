package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"pocketpilot/internal/budget"
	"pocketpilot/internal/budgetfile"
	"pocketpilot/internal/cli"
	"pocketpilot/internal/core"
	"pocketpilot/internal/render"
	"pocketpilot/internal/telemetry"
)

var (
	flagIncome      int64
	flagExpenses    []string
	flagGoal        string
	flagFile        string
	flagInteractive bool
	flagJSON        bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess a monthly budget and print advice",
	Example: `  pocketpilot assess --income 3000 --expense rent=1200 --expense food=400 --goal "emergency fund"
  pocketpilot assess --file budget.toml --json
  pocketpilot assess --interactive`,
	Args: cobra.NoArgs,
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().Int64Var(&flagIncome, "income", 0, "Monthly income in whole currency units")
	assessCmd.Flags().StringArrayVarP(&flagExpenses, "expense", "e", nil, "Expense as category=amount (repeatable)")
	assessCmd.Flags().StringVar(&flagGoal, "goal", "", "Savings goal")
	assessCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read the budget from a TOML file")
	assessCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "Enter the budget in a form")
	assessCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the result as JSON")
	assessCmd.MarkFlagsMutuallyExclusive("file", "interactive")
	assessCmd.MarkFlagsMutuallyExclusive("file", "income")
	assessCmd.MarkFlagsMutuallyExclusive("file", "expense")
	rootCmd.AddCommand(assessCmd)
}

type assessOutput struct {
	RunID       string   `json:"run_id"`
	Condition   string   `json:"condition"`
	Analysis    string   `json:"analysis"`
	Advice      string   `json:"advice"`
	SavingsPlan string   `json:"savings_plan"`
	Savings     int64    `json:"savings"`
	Outcome     string   `json:"generator_outcome"`
	Provider    string   `json:"generator_provider"`
	Path        []string `json:"nodes"`
	DurationMs  int64    `json:"duration_ms"`
}

func runAssess(cmd *cobra.Command, _ []string) error {
	state, err := readBudget()
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	shutdownTracing, err := telemetry.Setup(telemetry.Config{StdoutTraces: cfg.TracesStdout, Output: os.Stderr})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.WithoutCancel(ctx))

	wf, err := cli.NewWorkflow(ctx, cfg, logger)
	if err != nil {
		return err
	}

	a, err := wf.Assess(ctx, state)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(toOutput(a))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), render.Assessment(a))
	return nil
}

func toOutput(a budget.Assessment) assessOutput {
	return assessOutput{
		RunID:       a.RunID,
		Condition:   a.Condition.String(),
		Analysis:    a.State.Analysis,
		Advice:      a.State.Advice,
		SavingsPlan: a.State.SavingsPlan,
		Savings:     a.State.Savings,
		Outcome:     a.Outcome.String(),
		Provider:    a.Provider,
		Path:        a.Path,
		DurationMs:  a.Duration.Milliseconds(),
	}
}

// readBudget collects the input from whichever source the flags select.
func readBudget() (core.FinanceState, error) {
	switch {
	case flagFile != "":
		return budgetfile.Load(flagFile)
	case flagInteractive:
		return promptBudget()
	default:
		expenses, err := parseExpenseFlags(flagExpenses)
		if err != nil {
			return core.FinanceState{}, err
		}
		state := core.NewFinanceState(flagIncome, expenses, flagGoal)
		return state, state.Validate()
	}
}

// parseExpenseFlags turns category=amount pairs into ordered expenses. A
// repeated category keeps its first position and takes the last amount.
func parseExpenseFlags(values []string) (core.Expenses, error) {
	var expenses core.Expenses
	for _, v := range values {
		i := strings.LastIndex(v, "=")
		if i <= 0 {
			return core.Expenses{}, fmt.Errorf("invalid expense %q: want category=amount", v)
		}
		category := strings.TrimSpace(v[:i])
		amount, err := strconv.ParseInt(strings.TrimSpace(v[i+1:]), 10, 64)
		if err != nil {
			return core.Expenses{}, fmt.Errorf("invalid expense %q: amount must be an integer", v)
		}
		expenses.Set(category, amount)
	}
	return expenses, nil
}

func parseExpenseLines(text string) (core.Expenses, error) {
	var pairs []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			pairs = append(pairs, line)
		}
	}
	return parseExpenseFlags(pairs)
}

func promptBudget() (core.FinanceState, error) {
	var income, expenses, goal string
	if flagIncome != 0 {
		income = strconv.FormatInt(flagIncome, 10)
	}
	expenses = strings.Join(flagExpenses, "\n")
	goal = flagGoal

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Monthly income").
				Value(&income).
				Validate(func(s string) error {
					n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
					if err != nil {
						return errors.New("enter a whole number")
					}
					if n < 0 {
						return errors.New("income cannot be negative")
					}
					return nil
				}),
			huh.NewText().
				Title("Expenses").
				Description("One per line as category=amount").
				Value(&expenses).
				Validate(func(s string) error {
					_, err := parseExpenseLines(s)
					return err
				}),
			huh.NewInput().
				Title("Savings goal").
				Value(&goal),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			os.Exit(130)
		}
		return core.FinanceState{}, err
	}

	n, _ := strconv.ParseInt(strings.TrimSpace(income), 10, 64)
	exp, _ := parseExpenseLines(expenses)
	state := core.NewFinanceState(n, exp, strings.TrimSpace(goal))
	return state, state.Validate()
}
