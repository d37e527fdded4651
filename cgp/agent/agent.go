// Package agent turns genotypes into live graphs and uses them to pick
// discrete actions from numeric observations.
package agent

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/baldhumanity/cgp-go/cgp"
	"github.com/baldhumanity/cgp-go/cgp/graph"
)

// Agent is the decision interface consumed by a world or trainer.
type Agent interface {
	ID() string
	Decide(observations []float64) (int, error)
	MutateAgent(rate float64) error
}

// DecisionMode maps output values to an action id.
type DecisionMode int

const (
	// ArgMax picks the index of the largest output, lowest index on ties.
	ArgMax DecisionMode = iota
	// DirectIndex uses floor(output[0]) clamped to [0, actions).
	DirectIndex
)

// Option configures an agent.
type Option func(*options)

type options struct {
	mode    DecisionMode
	actions int
}

// WithDecisionMode selects how outputs map to actions. actions bounds the
// DirectIndex range and is ignored for ArgMax.
func WithDecisionMode(mode DecisionMode, actions int) Option {
	return func(o *options) {
		o.mode = mode
		o.actions = actions
	}
}

func buildOptions(opts []Option) options {
	o := options{mode: ArgMax}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Network is a built graph with the handles an agent reads and writes.
type Network struct {
	graph   *graph.Graph
	inputs  []graph.NodeID
	outputs []graph.NodeID
}

// Graph returns the underlying graph.
func (n *Network) Graph() *graph.Graph {
	return n.graph
}

// OutputNodes returns the ids of the output nodes.
func (n *Network) OutputNodes() []graph.NodeID {
	return append([]graph.NodeID(nil), n.outputs...)
}

// Evaluate writes observations into the input nodes and reads every output.
func (n *Network) Evaluate(observations []float64) ([]float64, error) {
	if len(observations) != len(n.inputs) {
		return nil, fmt.Errorf("mismatch between observation count (%d) and network inputs (%d)", len(observations), len(n.inputs))
	}
	for i, id := range n.inputs {
		n.graph.SetOutput(id, observations[i])
	}
	out := make([]float64, len(n.outputs))
	for i, id := range n.outputs {
		out[i] = n.graph.Output(id)
	}
	return out, nil
}

// CGPAgent evaluates the graph encoded by a CGP genotype. It is not safe for
// concurrent use.
type CGPAgent struct {
	id       string
	genotype *cgp.Genotype
	net      *Network // nil until built, and after every genotype change
	opts     options
}

// NewCGPAgent creates an agent around a copy of genotype.
func NewCGPAgent(genotype *cgp.Genotype, opts ...Option) *CGPAgent {
	return &CGPAgent{
		id:       uuid.NewString(),
		genotype: genotype.Copy(),
		opts:     buildOptions(opts),
	}
}

// ID returns the agent's unique identifier.
func (a *CGPAgent) ID() string {
	return a.id
}

// Genotype returns a deep copy of the agent's genotype.
func (a *CGPAgent) Genotype() *cgp.Genotype {
	return a.genotype.Copy()
}

// Copy replaces this agent's genotype with a deep copy of other's. The graph
// is rebuilt on the next evaluation.
func (a *CGPAgent) Copy(other *CGPAgent) {
	a.genotype = other.genotype.Copy()
	a.net = nil
}

// MutateAgent applies connection then function mutation at rate.
func (a *CGPAgent) MutateAgent(rate float64) error {
	if err := a.genotype.MutateConnections(rate); err != nil {
		return err
	}
	if err := a.genotype.MutateFunctions(rate, cgp.NumFunctions()); err != nil {
		return err
	}
	a.net = nil
	return nil
}

// Outputs evaluates the graph for one decision step.
func (a *CGPAgent) Outputs(observations []float64) ([]float64, error) {
	if a.net == nil {
		net, err := BuildNetwork(a.genotype)
		if err != nil {
			return nil, err
		}
		a.net = net
	}
	return a.net.Evaluate(observations)
}

// Decide maps the outputs for observations to an action id.
func (a *CGPAgent) Decide(observations []float64) (int, error) {
	out, err := a.Outputs(observations)
	if err != nil {
		return 0, err
	}
	return selectAction(out, a.opts), nil
}

// BuildNetwork decodes a genotype into a fresh graph. Node ids follow the
// genotype layout: inputs first, then every gene in order.
func BuildNetwork(g *cgp.Genotype) (*Network, error) {
	p := g.Parameters()
	gr := graph.New(p.Inputs + g.Len())

	// layerStart[l] is the id of the first node of layer l.
	layerStart := make([]graph.NodeID, p.Layers+2)
	inputs := make([]graph.NodeID, p.Inputs)
	for i := range inputs {
		inputs[i] = gr.AddNode()
	}
	for l := 1; l <= p.Layers+1; l++ {
		layerStart[l] = graph.NodeID(p.Inputs + (l-1)*p.NodesPerLayer)
	}

	outputs := make([]graph.NodeID, 0, p.Outputs)
	for gi := 0; gi < g.Len(); gi++ {
		gene := g.Gene(gi)
		fn, err := cgp.Function(gene.Function)
		if err != nil {
			return nil, fmt.Errorf("failed to decode gene %d: %w", gi, err)
		}
		id := gr.AddNode()
		gr.SetFunction(id, graph.Func(fn))

		layer, _ := p.LayerOf(gi)
		for bit, src := range p.Sources(layer) {
			if gene.Connections[bit] {
				gr.AddInput(id, layerStart[src.Layer]+graph.NodeID(src.Index))
			}
		}
		if layer == p.Layers+1 {
			outputs = append(outputs, id)
		}
	}
	return &Network{graph: gr, inputs: inputs, outputs: outputs}, nil
}

func selectAction(out []float64, o options) int {
	switch o.mode {
	case DirectIndex:
		if len(out) == 0 || o.actions <= 0 {
			return 0
		}
		v := math.Floor(out[0])
		if math.IsNaN(v) || v < 0 {
			return 0
		}
		if v >= float64(o.actions) {
			return o.actions - 1
		}
		return int(v)
	default:
		best := 0
		for i := 1; i < len(out); i++ {
			if out[i] > out[best] {
				best = i
			}
		}
		return best
	}
}
