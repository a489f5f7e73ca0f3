// SPDX-License-Identifier: MPL-2.0

// Package dag orders the nodes of a dependency graph so that every node
// comes after the nodes it depends on. The resolver tolerates cycles, so a
// cyclic graph is not fatal here: Sort reports the members of the cycle and
// Order falls back to insertion order for them.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError lists the nodes that could not be ordered because they sit
	// on or behind a cycle, in insertion order.
	CycleError[K comparable] struct {
		Nodes []K
	}

	// Graph is a directed graph whose edges point from a dependency to its
	// dependent. Node order is the order of first insertion.
	Graph[K comparable] struct {
		dependents map[K][]K
		edges      map[[2]K]bool
		nodes      []K
		known      map[K]bool
	}
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		parts[i] = fmt.Sprint(n)
	}
	return "dependency cycle among: " + strings.Join(parts, ", ")
}

// New returns an empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		dependents: map[K][]K{},
		edges:      map[[2]K]bool{},
		known:      map[K]bool{},
	}
}

// Add registers a node. Adding a known node is a no-op.
func (g *Graph[K]) Add(n K) {
	if g.known[n] {
		return
	}
	g.known[n] = true
	g.nodes = append(g.nodes, n)
}

// DependsOn records that dependent needs dependency first. Both nodes are
// added if missing; repeated edges are ignored.
func (g *Graph[K]) DependsOn(dependent, dependency K) {
	g.Add(dependency)
	g.Add(dependent)
	key := [2]K{dependency, dependent}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.dependents[dependency] = append(g.dependents[dependency], dependent)
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int { return len(g.nodes) }

// Sort returns the nodes with dependencies first (Kahn's algorithm). Nodes of
// equal rank keep insertion order. A cycle yields a *CycleError.
func (g *Graph[K]) Sort() ([]K, error) {
	order, rest := g.kahn()
	if len(rest) > 0 {
		return nil, &CycleError[K]{Nodes: rest}
	}
	return order, nil
}

// Order is Sort that never fails: nodes that cannot be ranked are appended
// in insertion order. The second result lists those nodes.
func (g *Graph[K]) Order() (order, cyclic []K) {
	order, cyclic = g.kahn()
	return append(order, cyclic...), cyclic
}

func (g *Graph[K]) kahn() (order, rest []K) {
	if len(g.nodes) == 0 {
		return nil, nil
	}
	pending := make(map[K]int, len(g.nodes))
	for _, deps := range g.dependents {
		for _, d := range deps {
			pending[d]++
		}
	}

	queue := make([]K, 0, len(g.nodes))
	for _, n := range g.nodes {
		if pending[n] == 0 {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, d := range g.dependents[n] {
			pending[d]--
			if pending[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}
	for _, n := range g.nodes {
		if pending[n] > 0 {
			rest = append(rest, n)
		}
	}
	return order, rest
}
