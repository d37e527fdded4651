package cgp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogOrderIsStable(t *testing.T) {
	want := []string{
		"sum", "and", "or", "not", "equal_any", "gate", "select", "product",
		"subtract", "divide", "min", "max", "mean", "sin", "cos", "tanh",
		"clamp", "abs", "greater", "negate",
	}
	require.Equal(t, len(want), NumFunctions())
	for i, name := range want {
		assert.Equal(t, name, FunctionName(i))
		idx, err := FunctionByName(name)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	assert.Equal(t, "unknown", FunctionName(-1))
	assert.Equal(t, "unknown", FunctionName(NumFunctions()))

	_, err := FunctionByName("log")
	assert.Error(t, err)
	_, err = Function(NumFunctions())
	assert.Error(t, err)
}

func TestCatalogValues(t *testing.T) {
	cases := []struct {
		name   string
		inputs []float64
		want   float64
	}{
		{"sum", []float64{1, 2, 3.5}, 6.5},
		{"sum", nil, 0},
		{"and", []float64{1, 2}, 1},
		{"and", []float64{1, 0}, 0},
		{"and", nil, 0},
		{"or", []float64{0, -1, 0.1}, 1},
		{"or", nil, 0},
		{"not", []float64{0}, 1},
		{"not", []float64{3}, 0},
		{"not", nil, 1},
		{"equal_any", []float64{2, 1, 2}, 1},
		{"equal_any", []float64{2, 1, 3}, 0},
		{"gate", []float64{1, 7}, 7},
		{"gate", []float64{-1, 7}, 0},
		{"select", []float64{1, 4, 5}, 4},
		{"select", []float64{0, 4, 5}, 5},
		{"product", []float64{2, 3, 4}, 24},
		{"product", nil, 0},
		{"subtract", []float64{10, 3, 2}, 5},
		{"divide", []float64{6, 3}, 2},
		{"divide", []float64{6, 0}, 1},
		{"min", []float64{3, -2, 5}, -2},
		{"max", []float64{3, -2, 5}, 5},
		{"mean", []float64{1, 2, 3}, 2},
		{"mean", nil, 0},
		{"sin", []float64{0}, 0},
		{"cos", []float64{0}, 1},
		{"tanh", []float64{0}, 0},
		{"clamp", []float64{4}, 1},
		{"clamp", []float64{-4}, -1},
		{"abs", []float64{-2.5}, 2.5},
		{"greater", []float64{3, 2}, 1},
		{"greater", []float64{2, 3}, 0},
		{"negate", []float64{2}, -2},
	}
	for _, c := range cases {
		idx, err := FunctionByName(c.name)
		require.NoError(t, err)
		fn, err := Function(idx)
		require.NoError(t, err)
		got, err := fn(c.inputs)
		require.NoError(t, err, "%s(%v)", c.name, c.inputs)
		assert.InDelta(t, c.want, got, 1e-12, "%s(%v)", c.name, c.inputs)
	}
}

func TestCatalogInsufficientInputs(t *testing.T) {
	cases := map[string][]float64{
		"gate":      {1},
		"select":    {1, 2},
		"equal_any": {1},
		"divide":    {1},
		"greater":   nil,
		"sin":       nil,
		"negate":    nil,
	}
	for name, inputs := range cases {
		idx, err := FunctionByName(name)
		require.NoError(t, err)
		fn, err := Function(idx)
		require.NoError(t, err)
		_, err = fn(inputs)
		assert.ErrorIs(t, err, ErrInsufficientInputs, name)
	}
}

func TestStatFunctions(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 2.5, StatFunctions["mean"](values))
	assert.Equal(t, 10.0, StatFunctions["sum"](values))
	assert.Equal(t, 4.0, StatFunctions["max"](values))
	assert.Equal(t, 1.0, StatFunctions["min"](values))
	assert.Equal(t, 2.5, StatFunctions["median"](values))
	assert.InDelta(t, math.Sqrt(5.0/3.0), StatFunctions["stdev"](values), 1e-12)
	assert.True(t, math.IsNaN(Median(nil)))
}
