package cgp

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	// ErrInvalidParameters reports parameters that cannot describe a topology.
	ErrInvalidParameters = errors.New("invalid cgp parameters")
	// ErrInvalidRate reports a mutation rate outside [0, 1].
	ErrInvalidRate = errors.New("mutation rate must be within [0, 1]")
	// ErrNoFunctions reports a function mutation with nothing to draw from.
	ErrNoFunctions = errors.New("number of functions must be positive")
	// ErrParameterMismatch reports an operation on genotypes with different topologies.
	ErrParameterMismatch = errors.New("genotype parameters differ")
)

// Genotype is the CGP encoding of a layered computation graph. Input nodes
// are implicit; genes holds the middle layer nodes layer by layer followed by
// the output nodes.
type Genotype struct {
	params Parameters
	genes  []NodeGene
	rng    *rand.Rand
}

// NewGenotype creates a genotype with every connection cleared and every
// function set to the first catalog entry.
func NewGenotype(params Parameters) (*Genotype, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	g := &Genotype{params: params}
	g.InitGenotype()
	return g, nil
}

// InitGenotype (re)builds the gene sequence from the parameters.
func (g *Genotype) InitGenotype() {
	genes := make([]NodeGene, 0, g.params.FunctionalNodes())
	for layer := 1; layer <= g.params.Layers+1; layer++ {
		conns := g.params.ConnectionCount(layer)
		for i := 0; i < g.params.LayerSize(layer); i++ {
			genes = append(genes, newNodeGene(conns))
		}
	}
	g.genes = genes
}

// SetSeed reseeds the random stream used by every mutation operator.
func (g *Genotype) SetSeed(seed int64) {
	g.rng = rand.New(rand.NewSource(seed))
}

// random returns the genotype's stream, creating a time-seeded one for
// genotypes that were decoded rather than constructed.
func (g *Genotype) random() *rand.Rand {
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g.rng
}

// Parameters returns the topology parameters.
func (g *Genotype) Parameters() Parameters {
	return g.params
}

// Len returns the number of functional genes.
func (g *Genotype) Len() int {
	return len(g.genes)
}

// Gene returns a copy of the gene at index i.
func (g *Genotype) Gene(i int) NodeGene {
	return g.genes[i].Copy()
}

// Genes returns a deep copy of the gene sequence.
func (g *Genotype) Genes() []NodeGene {
	out := make([]NodeGene, len(g.genes))
	for i, gene := range g.genes {
		out[i] = gene.Copy()
	}
	return out
}

// SetGene replaces the gene at index i. The connection count must match the
// gene's position.
func (g *Genotype) SetGene(i int, gene NodeGene) error {
	if i < 0 || i >= len(g.genes) {
		return fmt.Errorf("gene index %d out of range [0, %d)", i, len(g.genes))
	}
	if want := len(g.genes[i].Connections); len(gene.Connections) != want {
		return fmt.Errorf("gene %d needs %d connection bits, got %d", i, want, len(gene.Connections))
	}
	if gene.Function < 0 {
		return fmt.Errorf("gene %d has negative function index %d", i, gene.Function)
	}
	g.genes[i] = gene.Copy()
	return nil
}

// ConnectionBits returns the total number of connection bits.
func (g *Genotype) ConnectionBits() int {
	n := 0
	for _, gene := range g.genes {
		n += len(gene.Connections)
	}
	return n
}

// MutateConnections flips every connection bit independently with probability rate.
func (g *Genotype) MutateConnections(rate float64) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	for _, gene := range g.genes {
		gene.mutateConnections(g.random(), rate)
	}
	return nil
}

// MutateFunctions reassigns each gene's function with probability rate to a
// uniform draw from [0, numFunctions).
func (g *Genotype) MutateFunctions(rate float64, numFunctions int) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if numFunctions <= 0 {
		return ErrNoFunctions
	}
	for i := range g.genes {
		g.genes[i].mutateFunction(g.random(), rate, numFunctions, nil)
	}
	return nil
}

// MutateFunctionsFrom is MutateFunctions restricted to a set of catalog indices.
func (g *Genotype) MutateFunctionsFrom(rate float64, options []int) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if len(options) == 0 {
		return ErrNoFunctions
	}
	for i := range g.genes {
		g.genes[i].mutateFunction(g.random(), rate, len(options), options)
	}
	return nil
}

func checkRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, rate)
	}
	return nil
}

// Equal reports whether both genotypes share parameters and every gene.
func (g *Genotype) Equal(other *Genotype) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.params != other.params || len(g.genes) != len(other.genes) {
		return false
	}
	for i := range g.genes {
		if !g.genes[i].Equal(other.genes[i]) {
			return false
		}
	}
	return true
}

// Copy creates a deep copy. The source's random stream is not touched; the
// copy starts without one and is clock seeded on its first mutation unless
// SetSeed is called.
func (g *Genotype) Copy() *Genotype {
	return &Genotype{
		params: g.params,
		genes:  g.Genes(),
	}
}

// Crossover builds a child by taking every gene from either parent with equal
// probability. Both parents must share parameters.
func (g *Genotype) Crossover(other *Genotype, rng *rand.Rand) (*Genotype, error) {
	if g.params != other.params {
		return nil, fmt.Errorf("%w: %s vs %s", ErrParameterMismatch, g.params, other.params)
	}
	child := g.Copy()
	for i := range child.genes {
		if rng.Float64() < 0.5 {
			child.genes[i] = other.genes[i].Copy()
		}
	}
	return child, nil
}

// Distance returns the fraction of differing loci (connection bits plus
// function indices) between two genotypes, in [0, 1]. Genotypes with
// different parameters are maximally distant.
func (g *Genotype) Distance(other *Genotype) float64 {
	if g.params != other.params {
		return 1.0
	}
	loci := g.ConnectionBits() + len(g.genes)
	if loci == 0 {
		return 0.0
	}
	diff := 0
	for i := range g.genes {
		diff += g.genes[i].distance(other.genes[i])
	}
	return float64(diff) / float64(loci)
}

// ActiveNodes returns, in ascending order, the gene indices that can
// influence an output through set connection bits. Output genes are always
// active.
func (g *Genotype) ActiveNodes() []int {
	active := make([]bool, len(g.genes))
	middle := g.params.Layers * g.params.NodesPerLayer
	stack := make([]int, 0, len(g.genes))
	for i := middle; i < len(g.genes); i++ {
		active[i] = true
		stack = append(stack, i)
	}
	for len(stack) > 0 {
		gi := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		layer, _ := g.params.LayerOf(gi)
		for bit, src := range g.params.Sources(layer) {
			if !g.genes[gi].Connections[bit] || src.Layer == 0 {
				continue
			}
			si := (src.Layer-1)*g.params.NodesPerLayer + src.Index
			if !active[si] {
				active[si] = true
				stack = append(stack, si)
			}
		}
	}
	out := []int{}
	for i, a := range active {
		if a {
			out = append(out, i)
		}
	}
	return out
}

// String returns a short description of the genotype.
func (g *Genotype) String() string {
	return fmt.Sprintf("Genotype(%s, genes: %d, bits: %d)", g.params, len(g.genes), g.ConnectionBits())
}
