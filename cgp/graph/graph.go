// Package graph is a memoizing expression-graph evaluator. Nodes live in an
// arena owned by a Graph and refer to each other by NodeID, both for their
// inputs and for the consumer back-references used to invalidate caches.
package graph

import (
	"fmt"
	"slices"
)

// Func computes a node's value from its evaluated inputs. A returned error
// makes the node fall back to its default value.
type Func func(inputs []float64) (float64, error)

// NodeID is a handle into a Graph's arena.
type NodeID int

type node struct {
	def       float64
	fn        Func
	inputs    []NodeID
	consumers []NodeID // sorted, de-duplicated
	value     float64
	valid     bool
}

// Graph owns every node. It is not safe for concurrent use.
type Graph struct {
	nodes []node
}

// New creates an empty graph with room for capacity nodes.
func New(capacity int) *Graph {
	return &Graph{nodes: make([]node, 0, capacity)}
}

// AddNode appends a constant node with value 0.
func (g *Graph) AddNode() NodeID {
	g.nodes = append(g.nodes, node{})
	return NodeID(len(g.nodes) - 1)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) check(id NodeID) {
	if id < 0 || int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("graph: node %d out of range [0, %d)", id, len(g.nodes)))
	}
}

// AddInput appends input to id's inputs and registers id as a consumer of input.
func (g *Graph) AddInput(id, input NodeID) {
	g.check(id)
	g.check(input)
	n := &g.nodes[id]
	n.inputs = append(n.inputs, input)

	src := &g.nodes[input]
	if pos, found := slices.BinarySearch(src.consumers, id); !found {
		src.consumers = slices.Insert(src.consumers, pos, id)
	}
	g.invalidate(id)
}

// SetFunction replaces the node's function.
func (g *Graph) SetFunction(id NodeID, fn Func) {
	g.check(id)
	g.nodes[id].fn = fn
	g.invalidate(id)
}

// SetOutput turns the node into a constant producing v.
func (g *Graph) SetOutput(id NodeID, v float64) {
	g.check(id)
	n := &g.nodes[id]
	n.fn = nil
	n.def = v
	g.invalidate(id)
}

// SetDefault sets the value a function node falls back to when its function
// fails. It keeps the function.
func (g *Graph) SetDefault(id NodeID, v float64) {
	g.check(id)
	g.nodes[id].def = v
	g.invalidate(id)
}

// Valid reports whether the node's cached value is current.
func (g *Graph) Valid(id NodeID) bool {
	g.check(id)
	return g.nodes[id].valid
}

// Inputs returns a copy of the node's inputs in wiring order.
func (g *Graph) Inputs(id NodeID) []NodeID {
	g.check(id)
	return slices.Clone(g.nodes[id].inputs)
}

// Consumers returns a copy of the nodes that read id.
func (g *Graph) Consumers(id NodeID) []NodeID {
	g.check(id)
	return slices.Clone(g.nodes[id].consumers)
}

// invalidate clears the cache of id and of everything downstream of it.
// A node whose cache is already invalid cannot have a valid consumer, because
// reading a consumer validates its inputs first, so the walk stops there.
func (g *Graph) invalidate(id NodeID) {
	g.nodes[id].valid = false
	work := append([]NodeID(nil), g.nodes[id].consumers...)
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		n := &g.nodes[cur]
		if !n.valid {
			continue
		}
		n.valid = false
		work = append(work, n.consumers...)
	}
}

// Output returns the node's value, evaluating stale inputs first. Each node
// is evaluated at most once between invalidations.
func (g *Graph) Output(id NodeID) float64 {
	g.check(id)
	if g.nodes[id].valid {
		return g.nodes[id].value
	}

	const (
		unvisited = iota
		onStack
	)
	state := make(map[NodeID]int)
	stack := []NodeID{id}
	var args []float64

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		n := &g.nodes[cur]
		if n.valid {
			stack = stack[:len(stack)-1]
			continue
		}
		if n.fn == nil {
			n.value = n.def
			n.valid = true
			stack = stack[:len(stack)-1]
			continue
		}

		if state[cur] == unvisited {
			state[cur] = onStack
			pending := false
			for i := len(n.inputs) - 1; i >= 0; i-- {
				in := n.inputs[i]
				if !g.nodes[in].valid && state[in] != onStack {
					stack = append(stack, in)
					pending = true
				}
			}
			if pending {
				continue
			}
		}

		args = args[:0]
		for _, in := range n.inputs {
			src := &g.nodes[in]
			if src.valid {
				args = append(args, src.value)
			} else {
				// Only reachable through a cycle.
				args = append(args, src.def)
			}
		}
		v, err := n.fn(args)
		if err != nil {
			v = n.def
		}
		n.value = v
		n.valid = true
		delete(state, cur)
		stack = stack[:len(stack)-1]
	}
	return g.nodes[id].value
}
