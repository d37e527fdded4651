package cgp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientInputs is returned by a NodeFunction that was given fewer
// inputs than it needs to produce a meaningful value.
var ErrInsufficientInputs = errors.New("insufficient inputs")

// NodeFunction is the payload of a functional node. It must only read inputs.
type NodeFunction func(inputs []float64) (float64, error)

// namedFunction pairs a catalog entry with the name used in configs and logs.
type namedFunction struct {
	Name string
	Fn   NodeFunction
}

// catalog is the ordered function table. The position of every entry is part
// of the genotype wire format: appending is safe, reordering is not.
var catalog = []namedFunction{
	{"sum", Sum},
	{"and", And},
	{"or", Or},
	{"not", Not},
	{"equal_any", EqualAny},
	{"gate", Gate},
	{"select", Select},
	{"product", Product},
	{"subtract", Subtract},
	{"divide", Divide},
	{"min", MinOf},
	{"max", MaxOf},
	{"mean", MeanOf},
	{"sin", Sin},
	{"cos", Cos},
	{"tanh", Tanh},
	{"clamp", Clamp},
	{"abs", Abs},
	{"greater", Greater},
	{"negate", Negate},
}

// NumFunctions returns the size of the function catalog.
func NumFunctions() int {
	return len(catalog)
}

// Function retrieves a catalog function by index.
func Function(index int) (NodeFunction, error) {
	if index < 0 || index >= len(catalog) {
		return nil, fmt.Errorf("unknown function index: %d", index)
	}
	return catalog[index].Fn, nil
}

// FunctionName returns the catalog name for index, or "unknown".
func FunctionName(index int) string {
	if index < 0 || index >= len(catalog) {
		return "unknown"
	}
	return catalog[index].Name
}

// FunctionByName retrieves the catalog index of a function by name.
func FunctionByName(name string) (int, error) {
	for i, f := range catalog {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown node function: %s", name)
}

// --- Catalog Implementations ---

// Sum adds all inputs. No inputs yields 0.
func Sum(inputs []float64) (float64, error) {
	return sum(inputs), nil
}

// And yields 1 when every input is positive. No inputs yields 0.
func And(inputs []float64) (float64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	for _, v := range inputs {
		if v <= 0 {
			return 0, nil
		}
	}
	return 1, nil
}

// Or yields 1 when any input is positive.
func Or(inputs []float64) (float64, error) {
	for _, v := range inputs {
		if v > 0 {
			return 1, nil
		}
	}
	return 0, nil
}

// Not negates the first input. With no inputs there is no information, which
// is treated as true.
func Not(inputs []float64) (float64, error) {
	if len(inputs) == 0 {
		return 1, nil
	}
	return boolValue(inputs[0] <= 0), nil
}

// EqualAny yields 1 if any of inputs[1:] equals inputs[0].
func EqualAny(inputs []float64) (float64, error) {
	if len(inputs) < 2 {
		return 0, ErrInsufficientInputs
	}
	for _, v := range inputs[1:] {
		if v == inputs[0] {
			return 1, nil
		}
	}
	return 0, nil
}

// Gate passes inputs[1] through when inputs[0] is positive, otherwise 0.
func Gate(inputs []float64) (float64, error) {
	if len(inputs) < 2 {
		return 0, ErrInsufficientInputs
	}
	if inputs[0] > 0 {
		return inputs[1], nil
	}
	return 0, nil
}

// Select picks inputs[1] when inputs[0] is positive, otherwise inputs[2].
func Select(inputs []float64) (float64, error) {
	if len(inputs) < 3 {
		return 0, ErrInsufficientInputs
	}
	if inputs[0] > 0 {
		return inputs[1], nil
	}
	return inputs[2], nil
}

// Product multiplies all inputs. No inputs yields 0.
func Product(inputs []float64) (float64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	p := 1.0
	for _, v := range inputs {
		p *= v
	}
	return p, nil
}

// Subtract yields inputs[0] minus the remaining inputs.
func Subtract(inputs []float64) (float64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	return inputs[0] - sum(inputs[1:]), nil
}

// Divide is protected division; a near-zero denominator yields 1.
func Divide(inputs []float64) (float64, error) {
	if len(inputs) < 2 {
		return 0, ErrInsufficientInputs
	}
	if math.Abs(inputs[1]) < 1e-9 {
		return 1, nil
	}
	return inputs[0] / inputs[1], nil
}

// MinOf yields the smallest input, 0 for none.
func MinOf(inputs []float64) (float64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	return MinFloat(inputs), nil
}

// MaxOf yields the largest input, 0 for none.
func MaxOf(inputs []float64) (float64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	return MaxFloat(inputs), nil
}

// MeanOf yields the average input, 0 for none.
func MeanOf(inputs []float64) (float64, error) {
	return Mean(inputs), nil
}

// Sin yields the sine of the first input.
func Sin(inputs []float64) (float64, error) {
	return unary(inputs, math.Sin)
}

// Cos yields the cosine of the first input.
func Cos(inputs []float64) (float64, error) {
	return unary(inputs, math.Cos)
}

// Tanh yields the hyperbolic tangent of the first input.
func Tanh(inputs []float64) (float64, error) {
	return unary(inputs, math.Tanh)
}

// Clamp limits the first input to [-1, 1].
func Clamp(inputs []float64) (float64, error) {
	return unary(inputs, func(x float64) float64 { return clamp(x, -1.0, 1.0) })
}

// Abs yields the absolute value of the first input.
func Abs(inputs []float64) (float64, error) {
	return unary(inputs, math.Abs)
}

// Greater yields 1 when inputs[0] > inputs[1].
func Greater(inputs []float64) (float64, error) {
	if len(inputs) < 2 {
		return 0, ErrInsufficientInputs
	}
	return boolValue(inputs[0] > inputs[1]), nil
}

// Negate flips the sign of the first input.
func Negate(inputs []float64) (float64, error) {
	return unary(inputs, func(x float64) float64 { return -x })
}

func unary(inputs []float64, fn func(float64) float64) (float64, error) {
	if len(inputs) == 0 {
		return 0, ErrInsufficientInputs
	}
	return fn(inputs[0]), nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
