package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumFn(inputs []float64) (float64, error) {
	total := 0.0
	for _, v := range inputs {
		total += v
	}
	return total, nil
}

func gateFn(inputs []float64) (float64, error) {
	if len(inputs) < 2 {
		return 0, errors.New("gate needs two inputs")
	}
	if inputs[0] > 0 {
		return inputs[1], nil
	}
	return 0, nil
}

func TestDiamondInvalidation(t *testing.T) {
	g := New(3)
	a := g.AddNode()
	b := g.AddNode()
	c := g.AddNode()
	g.SetOutput(a, 2)
	g.SetFunction(b, sumFn)
	g.SetFunction(c, sumFn)
	g.AddInput(b, a)
	g.AddInput(c, a)

	assert.Equal(t, 2.0, g.Output(b))
	assert.True(t, g.Valid(a))
	assert.True(t, g.Valid(b))
	assert.False(t, g.Valid(c))

	g.SetOutput(a, 5)
	assert.False(t, g.Valid(a))
	assert.False(t, g.Valid(b))
	assert.False(t, g.Valid(c))

	assert.Equal(t, 5.0, g.Output(c))
	assert.True(t, g.Valid(a))
	assert.True(t, g.Valid(c))
	assert.False(t, g.Valid(b))
	assert.Equal(t, 5.0, g.Output(b))
}

func TestFunctionFailureFallsBackToDefault(t *testing.T) {
	g := New(2)
	in := g.AddNode()
	gate := g.AddNode()
	g.SetOutput(in, 1)
	g.SetFunction(gate, gateFn)
	g.AddInput(gate, in)

	assert.Equal(t, 0.0, g.Output(gate), "unset default is 0")

	g.SetDefault(gate, -3)
	assert.False(t, g.Valid(gate))
	assert.Equal(t, -3.0, g.Output(gate))
}

func TestEachNodeEvaluatedOncePerInvalidation(t *testing.T) {
	g := New(0)
	calls := map[NodeID]int{}
	counting := func(id NodeID) Func {
		return func(inputs []float64) (float64, error) {
			calls[id]++
			return sumFn(inputs)
		}
	}

	// A lattice where path count grows exponentially with depth.
	root := g.AddNode()
	g.SetOutput(root, 1)
	prev := []NodeID{root, root}
	for depth := 0; depth < 20; depth++ {
		left, right := g.AddNode(), g.AddNode()
		for _, id := range []NodeID{left, right} {
			g.SetFunction(id, counting(id))
			g.AddInput(id, prev[0])
			g.AddInput(id, prev[1])
		}
		prev = []NodeID{left, right}
	}
	top := g.AddNode()
	g.SetFunction(top, counting(top))
	g.AddInput(top, prev[0])

	assert.Equal(t, float64(1<<20), g.Output(top))
	for id, n := range calls {
		assert.Equal(t, 1, n, "node %d", id)
	}

	g.Output(top)
	for id, n := range calls {
		assert.Equal(t, 1, n, "cached node %d", id)
	}

	g.SetOutput(root, 2)
	assert.Equal(t, float64(1<<21), g.Output(top))
	for id, n := range calls {
		assert.Equal(t, 2, n, "node %d", id)
	}
}

func TestAddInputAfterReadInvalidatesConsumers(t *testing.T) {
	g := New(4)
	a, b, mid, out := g.AddNode(), g.AddNode(), g.AddNode(), g.AddNode()
	g.SetOutput(a, 1)
	g.SetOutput(b, 10)
	g.SetFunction(mid, sumFn)
	g.SetFunction(out, sumFn)
	g.AddInput(mid, a)
	g.AddInput(out, mid)

	require.Equal(t, 1.0, g.Output(out))
	g.AddInput(mid, b)
	assert.False(t, g.Valid(mid))
	assert.False(t, g.Valid(out))
	assert.True(t, g.Valid(a))
	assert.Equal(t, 11.0, g.Output(out))
}

func TestConsumersAreDeduplicated(t *testing.T) {
	g := New(2)
	a, b := g.AddNode(), g.AddNode()
	g.SetFunction(b, sumFn)
	g.AddInput(b, a)
	g.AddInput(b, a)
	g.SetOutput(a, 3)

	assert.Equal(t, []NodeID{b}, g.Consumers(a))
	assert.Equal(t, []NodeID{a, a}, g.Inputs(b))
	assert.Equal(t, 6.0, g.Output(b))
}

func TestDeepChainDoesNotRecurse(t *testing.T) {
	const depth = 200000
	g := New(depth)
	prev := g.AddNode()
	g.SetOutput(prev, 1)
	for i := 0; i < depth; i++ {
		id := g.AddNode()
		g.SetFunction(id, sumFn)
		g.AddInput(id, prev)
		prev = id
	}
	assert.Equal(t, 1.0, g.Output(prev))
}

func TestCycleReadsDefault(t *testing.T) {
	g := New(2)
	a, b := g.AddNode(), g.AddNode()
	g.SetFunction(a, sumFn)
	g.SetFunction(b, sumFn)
	g.SetDefault(a, 4)
	g.AddInput(a, b)
	g.AddInput(b, a)

	assert.Equal(t, 4.0, g.Output(a))
	assert.True(t, g.Valid(b))
	assert.Equal(t, 4.0, g.Output(b))
}

func TestOutOfRangeNodePanics(t *testing.T) {
	g := New(0)
	assert.Panics(t, func() { g.Output(0) })
}
