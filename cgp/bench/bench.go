// Package bench provides boolean benchmark tasks that score genotypes by
// running them as CGP agents.
package bench

import (
	"fmt"
	"math"

	"github.com/baldhumanity/cgp-go/cgp"
	"github.com/baldhumanity/cgp-go/cgp/agent"
)

// Case is one row of a truth table.
type Case struct {
	Inputs []float64
	Target float64
}

// Task is a truth table over Inputs boolean inputs with a single output.
type Task struct {
	Name   string
	Inputs int
	Cases  []Case
}

// XOR returns the two input exclusive-or task.
func XOR() Task {
	return Parity(2)
}

// Parity returns the even parity task over bits inputs: the target is 1 when
// an odd number of inputs are set.
func Parity(bits int) Task {
	t := Task{Name: fmt.Sprintf("parity-%d", bits), Inputs: bits}
	if bits == 2 {
		t.Name = "xor"
	}
	for row := 0; row < 1<<bits; row++ {
		c := Case{Inputs: make([]float64, bits)}
		ones := 0
		for b := 0; b < bits; b++ {
			if row&(1<<(bits-1-b)) != 0 {
				c.Inputs[b] = 1
				ones++
			}
		}
		c.Target = float64(ones % 2)
		t.Cases = append(t.Cases, c)
	}
	return t
}

// ByName resolves "xor" or "parity"; bits is only used by parity.
func ByName(name string, bits int) (Task, error) {
	switch name {
	case "xor":
		return XOR(), nil
	case "parity":
		if bits < 1 {
			return Task{}, fmt.Errorf("parity needs at least one bit, got %d", bits)
		}
		return Parity(bits), nil
	default:
		return Task{}, fmt.Errorf("unknown task: %s", name)
	}
}

// MaxFitness is the score of a genotype that solves every case.
func (t Task) MaxFitness() float64 {
	return float64(len(t.Cases))
}

// Score runs the genotype as an agent over every case. Each case contributes
// 1 minus its squared error on the first output, floored at 0.
func (t Task) Score(g *cgp.Genotype) (float64, error) {
	if p := g.Parameters(); p.Inputs != t.Inputs {
		return 0, fmt.Errorf("task %s needs %d inputs, genotype has %d", t.Name, t.Inputs, p.Inputs)
	}
	a := agent.NewCGPAgent(g)
	score := 0.0
	for _, c := range t.Cases {
		out, err := a.Outputs(c.Inputs)
		if err != nil {
			return 0, err
		}
		e := out[0] - c.Target
		if math.IsNaN(e) {
			continue
		}
		score += math.Max(0, 1-e*e)
	}
	return score, nil
}

// FitnessFunc scores a whole generation with t.
func (t Task) FitnessFunc() cgp.FitnessFunc {
	return func(individuals map[int]*cgp.Individual) error {
		for key, ind := range individuals {
			fitness, err := t.Score(ind.Genotype)
			if err != nil {
				return fmt.Errorf("individual %d: %w", key, err)
			}
			ind.Fitness = fitness
		}
		return nil
	}
}
