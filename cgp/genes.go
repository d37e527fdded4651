package cgp

import (
	"fmt"
	"math/rand"
	"strings"
)

// NodeGene encodes one functional node: a connection flag per reachable
// source (see Parameters.Sources for the order) and a catalog function index.
type NodeGene struct {
	Connections []bool
	Function    int
}

// newNodeGene creates a gene with every connection cleared and function 0.
func newNodeGene(connections int) NodeGene {
	return NodeGene{Connections: make([]bool, connections)}
}

// String returns a string representation of the NodeGene.
func (ng NodeGene) String() string {
	return fmt.Sprintf("NodeGene(Bits: %s, Function: %s)", ng.bits(), FunctionName(ng.Function))
}

// bits renders the connection flags as '0'/'1' bytes.
func (ng NodeGene) bits() string {
	var b strings.Builder
	b.Grow(len(ng.Connections))
	for _, c := range ng.Connections {
		if c {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Copy creates a deep copy of the NodeGene.
func (ng NodeGene) Copy() NodeGene {
	conns := make([]bool, len(ng.Connections))
	copy(conns, ng.Connections)
	return NodeGene{Connections: conns, Function: ng.Function}
}

// Equal reports whether both genes carry the same bits and function.
func (ng NodeGene) Equal(other NodeGene) bool {
	if ng.Function != other.Function || len(ng.Connections) != len(other.Connections) {
		return false
	}
	for i := range ng.Connections {
		if ng.Connections[i] != other.Connections[i] {
			return false
		}
	}
	return true
}

// ActiveCount returns the number of set connection bits.
func (ng NodeGene) ActiveCount() int {
	n := 0
	for _, c := range ng.Connections {
		if c {
			n++
		}
	}
	return n
}

// mutateConnections flips each bit with probability rate, drawing once per bit.
func (ng NodeGene) mutateConnections(rng *rand.Rand, rate float64) {
	for i := range ng.Connections {
		if rng.Float64() < rate {
			ng.Connections[i] = !ng.Connections[i]
		}
	}
}

// mutateFunction reassigns the function with probability rate. options, when
// non-empty, restricts the draw to the listed catalog indices.
func (ng *NodeGene) mutateFunction(rng *rand.Rand, rate float64, numFunctions int, options []int) {
	if rng.Float64() >= rate {
		return
	}
	if len(options) > 0 {
		ng.Function = options[rng.Intn(len(options))]
		return
	}
	ng.Function = rng.Intn(numFunctions)
}

// distance counts differing bits plus one for a differing function.
func (ng NodeGene) distance(other NodeGene) int {
	d := 0
	for i := range ng.Connections {
		if i >= len(other.Connections) || ng.Connections[i] != other.Connections[i] {
			d++
		}
	}
	if len(other.Connections) > len(ng.Connections) {
		d += len(other.Connections) - len(ng.Connections)
	}
	if ng.Function != other.Function {
		d++
	}
	return d
}
