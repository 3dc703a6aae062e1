// Package graph builds and runs small acyclic workflows.
//
// A Graph is a set of named nodes joined by unconditional edges and
// conditional branches. Compile validates the topology once; the resulting
// Compiled graph is immutable and safe for concurrent use. Each node takes
// the current state by value and returns the next state.
//
//	g := graph.New[State, Label]("checkout").
//	    AddNode("price", price).
//	    AddNode("charge", charge).
//	    AddNode("reject", reject).
//	    AddBranch("price", route, map[Label]string{Ok: "charge", Bad: "reject"}, []Label{Ok, Bad}).
//	    AddEdge("charge", graph.END).
//	    AddEdge("reject", graph.END).
//	    SetEntry("price")
//	compiled, err := g.Compile()
package graph

import (
	"context"
	"fmt"
	"sort"
)

// END is the terminal pseudo-node.
const END = "__end__"

// NodeFunc is one computation step. It must not retain or mutate shared
// data reachable from its input.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Router selects a branch label from the state produced by its node.
type Router[S any, L comparable] func(state S) L

type branch[S any, L comparable] struct {
	router  Router[S, L]
	targets map[L]string
	labels  []L
}

type edge struct {
	from, to string
}

// Graph is a workflow definition under construction. It is not safe for
// concurrent use.
type Graph[S any, L comparable] struct {
	name     string
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    []edge
	branches map[string][]branch[S, L]
	entry    string
	problems []string
}

// New starts an empty graph definition.
func New[S any, L comparable](name string) *Graph[S, L] {
	return &Graph[S, L]{
		name:     name,
		nodes:    make(map[string]NodeFunc[S]),
		branches: make(map[string][]branch[S, L]),
	}
}

// AddNode declares a node.
func (g *Graph[S, L]) AddNode(name string, fn NodeFunc[S]) *Graph[S, L] {
	switch {
	case name == "" || name == END:
		g.problems = append(g.problems, fmt.Sprintf("invalid node name %q", name))
	case fn == nil:
		g.problems = append(g.problems, fmt.Sprintf("node %q has nil function", name))
	case g.nodes[name] != nil:
		g.problems = append(g.problems, fmt.Sprintf("duplicate node %q", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// AddEdge declares an unconditional transition. to may be END.
func (g *Graph[S, L]) AddEdge(from, to string) *Graph[S, L] {
	g.edges = append(g.edges, edge{from: from, to: to})
	return g
}

// AddBranch declares a conditional fork after from. labels is the complete
// set of values router can return; each must be mapped in targets.
func (g *Graph[S, L]) AddBranch(from string, router Router[S, L], targets map[L]string, labels []L) *Graph[S, L] {
	t := make(map[L]string, len(targets))
	for k, v := range targets {
		t[k] = v
	}
	g.branches[from] = append(g.branches[from], branch[S, L]{
		router:  router,
		targets: t,
		labels:  append([]L(nil), labels...),
	})
	return g
}

// SetEntry sets the first node to run.
func (g *Graph[S, L]) SetEntry(name string) *Graph[S, L] {
	g.entry = name
	return g
}

type transition[S any, L comparable] struct {
	to     string
	branch *branch[S, L]
}

func (t transition[S, L]) successors() []string {
	if t.branch == nil {
		return []string{t.to}
	}
	seen := make(map[string]bool)
	var out []string
	for _, label := range t.branch.labels {
		if to, ok := t.branch.targets[label]; ok && !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	return out
}

// Compile validates the definition. Every problem found is reported in a
// single *GraphDefinitionError.
func (g *Graph[S, L]) Compile(opts ...Option) (*Compiled[S, L], error) {
	problems := append([]string(nil), g.problems...)
	declared := func(name string) bool {
		return name == END || g.nodes[name] != nil
	}

	if g.entry == "" {
		problems = append(problems, "no entry node")
	} else if g.nodes[g.entry] == nil {
		problems = append(problems, fmt.Sprintf("entry node %q is not declared", g.entry))
	}

	outgoing := make(map[string][]transition[S, L])
	for _, e := range g.edges {
		if e.from == END || g.nodes[e.from] == nil {
			problems = append(problems, fmt.Sprintf("edge %q -> %q: unknown source node", e.from, e.to))
			continue
		}
		if !declared(e.to) {
			problems = append(problems, fmt.Sprintf("edge %q -> %q: unknown target node", e.from, e.to))
			continue
		}
		outgoing[e.from] = append(outgoing[e.from], transition[S, L]{to: e.to})
	}

	for _, from := range sortedKeys(g.branches) {
		for i := range g.branches[from] {
			b := g.branches[from][i]
			if g.nodes[from] == nil {
				problems = append(problems, fmt.Sprintf("branch from %q: unknown source node", from))
				continue
			}
			ok := true
			if b.router == nil {
				problems = append(problems, fmt.Sprintf("branch from %q has nil router", from))
				ok = false
			}
			if len(b.labels) == 0 {
				problems = append(problems, fmt.Sprintf("branch from %q declares no labels", from))
				ok = false
			}
			for _, label := range b.labels {
				to, mapped := b.targets[label]
				if !mapped {
					problems = append(problems, fmt.Sprintf("branch from %q: label %v has no target", from, label))
					ok = false
					continue
				}
				if !declared(to) {
					problems = append(problems, fmt.Sprintf("branch from %q: label %v targets unknown node %q", from, label, to))
					ok = false
				}
			}
			if ok {
				outgoing[from] = append(outgoing[from], transition[S, L]{branch: &b})
			}
		}
	}

	next := make(map[string]transition[S, L], len(g.nodes))
	for _, name := range g.order {
		ts := outgoing[name]
		switch len(ts) {
		case 0:
			problems = append(problems, fmt.Sprintf("node %q has no outgoing transition", name))
		case 1:
			next[name] = ts[0]
		default:
			problems = append(problems, fmt.Sprintf("node %q has %d outgoing transitions", name, len(ts)))
		}
	}

	if g.nodes[g.entry] != nil {
		problems = append(problems, checkTopology(g.entry, g.order, next)...)
	}

	if len(problems) > 0 {
		return nil, &GraphDefinitionError{Graph: g.name, Problems: problems}
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	return &Compiled[S, L]{
		name:     g.name,
		entry:    g.entry,
		order:    append([]string(nil), g.order...),
		nodes:    nodes,
		next:     next,
		settings: s,
	}, nil
}

// checkTopology reports unreachable nodes, cycles and a missing path to END.
func checkTopology[S any, L comparable](entry string, order []string, next map[string]transition[S, L]) []string {
	var problems []string

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	endReached := false
	cycles := make(map[string]bool)

	var visit func(n string)
	visit = func(n string) {
		if n == END {
			endReached = true
			return
		}
		color[n] = grey
		t, ok := next[n]
		if ok {
			for _, succ := range t.successors() {
				switch color[succ] {
				case grey:
					cycles[succ] = true
				case white:
					visit(succ)
				}
			}
		}
		color[n] = black
	}
	visit(entry)

	for _, name := range order {
		if color[name] == white {
			problems = append(problems, fmt.Sprintf("node %q is unreachable from entry %q", name, entry))
		}
	}
	for _, name := range order {
		if cycles[name] {
			problems = append(problems, fmt.Sprintf("cycle through node %q", name))
		}
	}
	if !endReached {
		problems = append(problems, "END is not reachable from entry")
	}
	return problems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
