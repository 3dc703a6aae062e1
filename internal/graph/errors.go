package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph is matched by every GraphDefinitionError.
var ErrInvalidGraph = errors.New("invalid graph definition")

// GraphDefinitionError reports a misconfigured topology. It is returned by
// Compile, and by Run only when a router returns a label the branch does not
// map, which means the declared label set was wrong.
type GraphDefinitionError struct {
	Graph    string
	Problems []string
}

func (e *GraphDefinitionError) Error() string {
	return fmt.Sprintf("graph %q: %s: %s", e.Graph, ErrInvalidGraph, strings.Join(e.Problems, "; "))
}

func (e *GraphDefinitionError) Is(target error) bool {
	return target == ErrInvalidGraph
}

// NodeError wraps an error returned by a node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError is returned when a node or router panics.
type PanicError struct {
	Node  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %q panicked: %v", e.Node, e.Value)
}
