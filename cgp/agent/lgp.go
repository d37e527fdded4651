package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baldhumanity/cgp-go/cgp"
	"github.com/baldhumanity/cgp-go/cgp/graph"
)

// Instruction computes Function over the Sources registers and writes the
// result to Dest.
type Instruction struct {
	Dest     int
	Function int
	Sources  []int
}

// Program is a linear GP genotype. Registers 0..Inputs-1 are loaded with the
// observations before the first instruction; every other register starts at
// 0. Registers 0..Outputs-1 are read as the outputs after the last one.
type Program struct {
	Inputs       int
	Outputs      int
	Registers    int
	Instructions []Instruction
}

// Validate checks register bounds and function indices.
func (p Program) Validate() error {
	if p.Inputs <= 0 || p.Outputs <= 0 {
		return errors.New("program needs at least one input and one output")
	}
	if p.Registers < p.Inputs || p.Registers < p.Outputs {
		return fmt.Errorf("program needs at least %d registers, has %d", max(p.Inputs, p.Outputs), p.Registers)
	}
	for i, ins := range p.Instructions {
		if ins.Dest < 0 || ins.Dest >= p.Registers {
			return fmt.Errorf("instruction %d: destination register %d out of range", i, ins.Dest)
		}
		if _, err := cgp.Function(ins.Function); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		for _, s := range ins.Sources {
			if s < 0 || s >= p.Registers {
				return fmt.Errorf("instruction %d: source register %d out of range", i, s)
			}
		}
	}
	return nil
}

// Copy creates a deep copy of the program.
func (p Program) Copy() Program {
	out := p
	out.Instructions = make([]Instruction, len(p.Instructions))
	for i, ins := range p.Instructions {
		ins.Sources = append([]int(nil), ins.Sources...)
		out.Instructions[i] = ins
	}
	return out
}

// Equal reports whether both programs are identical.
func (p Program) Equal(other Program) bool {
	if p.Inputs != other.Inputs || p.Outputs != other.Outputs || p.Registers != other.Registers ||
		len(p.Instructions) != len(other.Instructions) {
		return false
	}
	for i, ins := range p.Instructions {
		o := other.Instructions[i]
		if ins.Dest != o.Dest || ins.Function != o.Function || len(ins.Sources) != len(o.Sources) {
			return false
		}
		for j := range ins.Sources {
			if ins.Sources[j] != o.Sources[j] {
				return false
			}
		}
	}
	return true
}

// String renders one instruction per line, e.g. "r2 = sum(r0, r1)".
func (p Program) String() string {
	var b strings.Builder
	for _, ins := range p.Instructions {
		srcs := make([]string, len(ins.Sources))
		for i, s := range ins.Sources {
			srcs[i] = fmt.Sprintf("r%d", s)
		}
		fmt.Fprintf(&b, "r%d = %s(%s)\n", ins.Dest, cgp.FunctionName(ins.Function), strings.Join(srcs, ", "))
	}
	return b.String()
}

// RandomProgram draws a program of length instructions with arity sources each.
func RandomProgram(rng *rand.Rand, inputs, outputs, registers, length, arity int) Program {
	p := Program{Inputs: inputs, Outputs: outputs, Registers: registers}
	for i := 0; i < length; i++ {
		ins := Instruction{
			Dest:     rng.Intn(registers),
			Function: rng.Intn(cgp.NumFunctions()),
			Sources:  make([]int, arity),
		}
		for j := range ins.Sources {
			ins.Sources[j] = rng.Intn(registers)
		}
		p.Instructions = append(p.Instructions, ins)
	}
	return p
}

// LGPAgent evaluates a linear program through the same graph engine as the
// CGP agent: every instruction becomes a node that reads the node currently
// held by each source register.
type LGPAgent struct {
	id      string
	program Program
	net     *Network
	opts    options
	rng     *rand.Rand
}

// NewLGPAgent creates an agent around a copy of program.
func NewLGPAgent(program Program, opts ...Option) (*LGPAgent, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}
	return &LGPAgent{
		id:      uuid.NewString(),
		program: program.Copy(),
		opts:    buildOptions(opts),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// ID returns the agent's unique identifier.
func (a *LGPAgent) ID() string {
	return a.id
}

// SetSeed reseeds the mutation stream.
func (a *LGPAgent) SetSeed(seed int64) {
	a.rng = rand.New(rand.NewSource(seed))
}

// Program returns a deep copy of the agent's program.
func (a *LGPAgent) Program() Program {
	return a.program.Copy()
}

// Copy replaces this agent's program with a deep copy of other's.
func (a *LGPAgent) Copy(other *LGPAgent) {
	a.program = other.program.Copy()
	a.net = nil
}

// MutateAgent visits every instruction and, with probability rate, redraws
// one of its function, destination or a source register.
func (a *LGPAgent) MutateAgent(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("%w: got %v", cgp.ErrInvalidRate, rate)
	}
	p := &a.program
	for i := range p.Instructions {
		if a.rng.Float64() >= rate {
			continue
		}
		ins := &p.Instructions[i]
		switch a.rng.Intn(3) {
		case 0:
			ins.Function = a.rng.Intn(cgp.NumFunctions())
		case 1:
			ins.Dest = a.rng.Intn(p.Registers)
		default:
			if len(ins.Sources) > 0 {
				ins.Sources[a.rng.Intn(len(ins.Sources))] = a.rng.Intn(p.Registers)
			}
		}
	}
	a.net = nil
	return nil
}

// Outputs evaluates the program for one decision step.
func (a *LGPAgent) Outputs(observations []float64) ([]float64, error) {
	if a.net == nil {
		net, err := BuildProgramNetwork(a.program)
		if err != nil {
			return nil, err
		}
		a.net = net
	}
	return a.net.Evaluate(observations)
}

// Decide maps the outputs for observations to an action id.
func (a *LGPAgent) Decide(observations []float64) (int, error) {
	out, err := a.Outputs(observations)
	if err != nil {
		return 0, err
	}
	return selectAction(out, a.opts), nil
}

// BuildProgramNetwork decodes a linear program into a graph by register renaming.
func BuildProgramNetwork(p Program) (*Network, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	gr := graph.New(p.Registers + len(p.Instructions))
	regs := make([]graph.NodeID, p.Registers)
	for r := range regs {
		regs[r] = gr.AddNode()
	}
	inputs := append([]graph.NodeID(nil), regs[:p.Inputs]...)

	for _, ins := range p.Instructions {
		fn, err := cgp.Function(ins.Function)
		if err != nil {
			return nil, err
		}
		id := gr.AddNode()
		gr.SetFunction(id, graph.Func(fn))
		for _, s := range ins.Sources {
			gr.AddInput(id, regs[s])
		}
		regs[ins.Dest] = id
	}
	outputs := append([]graph.NodeID(nil), regs[:p.Outputs]...)
	return &Network{graph: gr, inputs: inputs, outputs: outputs}, nil
}
