// Package budget assembles the personal finance assessment workflow.
//
//	analyze_budget -> check_overspending
//	    Overspending -> reduce_expenses       -> final_advice -> END
//	    OnTrack      -> generate_savings_plan -> final_advice -> END
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/core"
	"pocketpilot/internal/graph"
	applog "pocketpilot/internal/log"
)

// GraphName identifies the workflow in traces and logs.
const GraphName = "budget"

// Workflow is the compiled assessment graph. It is safe for concurrent use.
type Workflow struct {
	graph    *graph.Compiled[core.FinanceState, core.Condition]
	provider string
	logger   *applog.Logger
}

// Assessment is the result of one workflow run.
type Assessment struct {
	RunID     string
	State     core.FinanceState
	Condition core.Condition
	Outcome   advice.Kind
	Provider  string
	Path      []string
	Duration  time.Duration
}

type options struct {
	logger *applog.Logger
	tracer trace.Tracer
}

type Option func(*options)

func WithLogger(l *applog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// New compiles the workflow around gen. A nil gen behaves like
// advice.Unconfigured. A compile error means the topology below is wrong.
func New(gen advice.Generator, opts ...Option) (*Workflow, error) {
	o := options{logger: applog.FromContext(context.Background())}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.WithComponent(applog.ComponentWorkflow)

	a := &advisor{gen: gen, logger: logger}
	compiled, err := graph.New[core.FinanceState, core.Condition](GraphName).
		AddNode(NodeAnalyzeBudget, AnalyzeBudget).
		AddNode(NodeReduceExpenses, a.ReduceExpenses).
		AddNode(NodeGenerateSavingsPlan, a.GenerateSavingsPlan).
		AddNode(NodeFinalAdvice, FinalAdvice).
		SetEntry(NodeAnalyzeBudget).
		AddBranch(NodeAnalyzeBudget, CheckOverspending, map[core.Condition]string{
			core.Overspending: NodeReduceExpenses,
			core.OnTrack:      NodeGenerateSavingsPlan,
		}, core.Conditions()).
		AddEdge(NodeReduceExpenses, NodeFinalAdvice).
		AddEdge(NodeGenerateSavingsPlan, NodeFinalAdvice).
		AddEdge(NodeFinalAdvice, graph.END).
		Compile(graph.WithTracer(o.tracer), graph.WithLogger(logger.Slog()))
	if err != nil {
		return nil, fmt.Errorf("compile budget workflow: %w", err)
	}

	return &Workflow{
		graph:    compiled,
		provider: advice.ProviderOf(gen),
		logger:   logger,
	}, nil
}

// Assess validates the input and runs the workflow once. Derived fields of
// in are ignored and recomputed.
func (w *Workflow) Assess(ctx context.Context, in core.FinanceState) (Assessment, error) {
	state := core.NewFinanceState(in.Income, in.Expenses, in.Goal)
	if err := state.Validate(); err != nil {
		return Assessment{}, err
	}

	rec := &record{}
	start := time.Now()
	run, err := w.graph.Run(withRecord(ctx, rec), state)
	a := Assessment{
		RunID:     uuid.NewString(),
		State:     run.State,
		Condition: run.State.Condition(),
		Outcome:   rec.outcome,
		Provider:  w.provider,
		Path:      run.Path,
		Duration:  time.Since(start),
	}
	if err != nil {
		return a, fmt.Errorf("run budget workflow: %w", err)
	}

	w.logger.DebugContext(ctx, "Budget workflow finished",
		applog.FieldRunID, a.RunID,
		applog.FieldCondition, a.Condition.String(),
		applog.FieldCategories, state.Expenses.Len(),
		applog.FieldSavings, a.State.Savings)
	return a, nil
}

// Graph exposes the compiled graph for description.
func (w *Workflow) Graph() *graph.Compiled[core.FinanceState, core.Condition] {
	return w.graph
}

// Provider names the generator backend the workflow consults.
func (w *Workflow) Provider() string {
	return w.provider
}
