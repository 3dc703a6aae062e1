package graph

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Compiled is a validated, immutable graph.
type Compiled[S any, L comparable] struct {
	name     string
	entry    string
	order    []string
	nodes    map[string]NodeFunc[S]
	next     map[string]transition[S, L]
	settings settings
}

// Decision records one branch evaluation.
type Decision[L comparable] struct {
	Node   string
	Label  L
	Target string
}

// Run is the outcome of one invocation.
type Run[S any, L comparable] struct {
	State     S
	Path      []string
	Decisions []Decision[L]
}

// Invoke runs the graph to completion and returns the final state.
func (c *Compiled[S, L]) Invoke(ctx context.Context, state S) (S, error) {
	run, err := c.Run(ctx, state)
	return run.State, err
}

// Run executes the graph from the entry node until END. Each node runs at
// most once. On error the returned Run holds the state and path reached so
// far.
func (c *Compiled[S, L]) Run(ctx context.Context, state S) (Run[S, L], error) {
	ctx, span := c.settings.tracer.Start(ctx, "graph.run",
		trace.WithAttributes(attribute.String("graph.name", c.name)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	run := Run[S, L]{State: state, Path: make([]string, 0, len(c.order))}
	visited := make(map[string]bool, len(c.order))

	fail := func(err error) (Run[S, L], error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return run, err
	}

	current := c.entry
	for current != END {
		if visited[current] {
			return fail(&GraphDefinitionError{Graph: c.name, Problems: []string{fmt.Sprintf("node %q revisited", current)}})
		}
		visited[current] = true

		next, err := c.runNode(ctx, current, run.State)
		run.Path = append(run.Path, current)
		if err != nil {
			return fail(err)
		}
		run.State = next

		t := c.next[current]
		if t.branch == nil {
			current = t.to
			continue
		}

		label, err := route(current, t.branch.router, run.State)
		if err != nil {
			return fail(err)
		}
		target, ok := t.branch.targets[label]
		if !ok {
			return fail(&GraphDefinitionError{Graph: c.name, Problems: []string{fmt.Sprintf("branch from %q: router returned unmapped label %v", current, label)}})
		}
		span.AddEvent("graph.branch", trace.WithAttributes(
			attribute.String("graph.node", current),
			attribute.String("graph.branch.label", fmt.Sprint(label)),
			attribute.String("graph.branch.target", target),
		))
		run.Decisions = append(run.Decisions, Decision[L]{Node: current, Label: label, Target: target})
		current = target
	}

	span.SetStatus(codes.Ok, "")
	return run, nil
}

func (c *Compiled[S, L]) runNode(ctx context.Context, name string, state S) (out S, err error) {
	ctx, span := c.settings.tracer.Start(ctx, "graph.node."+name,
		trace.WithAttributes(
			attribute.String("graph.name", c.name),
			attribute.String("graph.node", name),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Node: name, Value: r, Stack: debug.Stack()}
			out = state
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		c.settings.logger.DebugContext(ctx, "Graph node finished",
			"graph", c.name,
			"node", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"success", err == nil)
	}()

	out, err = c.nodes[name](ctx, state)
	if err != nil {
		return state, &NodeError{Node: name, Err: err}
	}
	return out, nil
}

func route[S any, L comparable](node string, router Router[S, L], state S) (label L, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Node: node + " (router)", Value: r, Stack: debug.Stack()}
		}
	}()
	return router(state), nil
}

// Name returns the graph name.
func (c *Compiled[S, L]) Name() string {
	return c.name
}

// Entry returns the entry node name.
func (c *Compiled[S, L]) Entry() string {
	return c.entry
}

// Nodes returns node names in declaration order.
func (c *Compiled[S, L]) Nodes() []string {
	return append([]string(nil), c.order...)
}

// Describe renders the topology as indented text, one line per node.
func (c *Compiled[S, L]) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %q (entry: %s)\n", c.name, c.entry)
	for _, name := range c.order {
		t := c.next[name]
		if t.branch == nil {
			fmt.Fprintf(&b, "  %s -> %s\n", name, display(t.to))
			continue
		}
		parts := make([]string, 0, len(t.branch.labels))
		for _, label := range t.branch.labels {
			parts = append(parts, fmt.Sprintf("%v => %s", label, display(t.branch.targets[label])))
		}
		fmt.Fprintf(&b, "  %s -> branch [%s]\n", name, strings.Join(parts, ", "))
	}
	return b.String()
}

func display(name string) string {
	if name == END {
		return "END"
	}
	return name
}
