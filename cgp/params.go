package cgp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parameters fully determine the topology of a CGP genotype. Input nodes sit
// in layer 0, middle layers are 1..Layers and the output layer is Layers+1.
type Parameters struct {
	Inputs        int
	Outputs       int
	Layers        int
	NodesPerLayer int
	LayersBack    int
}

// Source addresses a node that a gene may connect to. Layer 0 is the input
// layer.
type Source struct {
	Layer int
	Index int
}

// Validate checks that the parameters describe a buildable topology.
func (p Parameters) Validate() error {
	switch {
	case p.Inputs <= 0:
		return fmt.Errorf("%w: inputs must be positive, got %d", ErrInvalidParameters, p.Inputs)
	case p.Outputs <= 0:
		return fmt.Errorf("%w: outputs must be positive, got %d", ErrInvalidParameters, p.Outputs)
	case p.Layers < 0:
		return fmt.Errorf("%w: layers cannot be negative, got %d", ErrInvalidParameters, p.Layers)
	case p.Layers > 0 && p.NodesPerLayer <= 0:
		return fmt.Errorf("%w: nodes_per_layer must be positive, got %d", ErrInvalidParameters, p.NodesPerLayer)
	case p.LayersBack <= 0:
		return fmt.Errorf("%w: layers_back must be positive, got %d", ErrInvalidParameters, p.LayersBack)
	}
	return nil
}

// String renders the parameters as the comma separated header of the wire format.
func (p Parameters) String() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d", p.Inputs, p.Outputs, p.Layers, p.NodesPerLayer, p.LayersBack)
}

// ParseParameters parses "inputs,outputs,layers,nodes_per_layer,layers_back".
func ParseParameters(s string) (Parameters, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 5 {
		return Parameters{}, fmt.Errorf("%w: header needs 5 fields, got %d", ErrFormat, len(fields))
	}
	var vals [5]int
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return Parameters{}, fmt.Errorf("%w: header field %d: %v", ErrFormat, i, err)
		}
		vals[i] = v
	}
	p := Parameters{
		Inputs:        vals[0],
		Outputs:       vals[1],
		Layers:        vals[2],
		NodesPerLayer: vals[3],
		LayersBack:    vals[4],
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// FunctionalNodes is the number of genes: every middle layer node plus the outputs.
func (p Parameters) FunctionalNodes() int {
	return p.Layers*p.NodesPerLayer + p.Outputs
}

// LayerSize returns the number of nodes in a layer.
func (p Parameters) LayerSize(layer int) int {
	switch {
	case layer == 0:
		return p.Inputs
	case layer == p.Layers+1:
		return p.Outputs
	default:
		return p.NodesPerLayer
	}
}

// ConnectionCount is the number of connection bits carried by a gene in the
// given 1-based layer.
func (p Parameters) ConnectionCount(layer int) int {
	valid := min(p.LayersBack, layer)
	count := valid * p.NodesPerLayer
	if layer <= p.LayersBack {
		// The backward budget runs past the first middle layer, so the
		// oldest block is the input layer.
		count = count - p.NodesPerLayer + p.Inputs
	}
	return count
}

// TotalConnections sums ConnectionCount over every gene.
func (p Parameters) TotalConnections() int {
	total := 0
	for layer := 1; layer <= p.Layers+1; layer++ {
		total += p.LayerSize(layer) * p.ConnectionCount(layer)
	}
	return total
}

// wireSize returns the gene count and total connection bits, or false when
// either does not fit in an int. maxGenes bounds the gene count before any
// per-layer work is done.
func (p Parameters) wireSize(maxGenes int) (genes, bits int, ok bool) {
	genes, ok = checkedMul(p.Layers, p.NodesPerLayer)
	if ok {
		genes, ok = checkedAdd(genes, p.Outputs)
	}
	if !ok || genes > maxGenes {
		return 0, 0, false
	}
	for layer := 1; layer <= p.Layers+1; layer++ {
		count, ok := checkedMul(min(p.LayersBack, layer), p.NodesPerLayer)
		if ok && layer <= p.LayersBack {
			count, ok = checkedAdd(count-p.NodesPerLayer, p.Inputs)
		}
		if ok {
			count, ok = checkedMul(p.LayerSize(layer), count)
		}
		if ok {
			bits, ok = checkedAdd(bits, count)
		}
		if !ok {
			return 0, 0, false
		}
	}
	return genes, bits, true
}

// checkedMul and checkedAdd operate on non-negative ints.
func checkedMul(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

func checkedAdd(a, b int) (int, bool) {
	if a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// LayerOf returns the 1-based layer and the in-layer index of a gene.
func (p Parameters) LayerOf(gene int) (layer, index int) {
	middle := p.Layers * p.NodesPerLayer
	if gene >= middle {
		return p.Layers + 1, gene - middle
	}
	return gene/p.NodesPerLayer + 1, gene % p.NodesPerLayer
}

// Sources lists, in connection-bit order, the nodes a gene in layer may read
// from: nearest predecessor layer first, by node index within a layer, with
// the input layer as the last block when it is reachable.
func (p Parameters) Sources(layer int) []Source {
	sources := make([]Source, 0, p.ConnectionCount(layer))
	valid := min(p.LayersBack, layer)
	for back := 1; back <= valid; back++ {
		src := layer - back
		size := p.NodesPerLayer
		if src == 0 {
			size = p.Inputs
		}
		for i := 0; i < size; i++ {
			sources = append(sources, Source{Layer: src, Index: i})
		}
	}
	return sources
}
