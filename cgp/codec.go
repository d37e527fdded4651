package cgp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrFormat reports a malformed genotype string.
var ErrFormat = errors.New("malformed genotype encoding")

const (
	headerTerminator = ';'
	geneSeparator    = ','
	geneTerminator   = ':'

	minGeneOverhead = len(",0:")
)

// Export encodes the genotype as
//
//	<inputs>,<outputs>,<layers>,<nodes_per_layer>,<layers_back>;<bits>,<fn>:<bits>,<fn>:...
//
// where <bits> holds one '0'/'1' byte per connection bit in Sources order.
// The format is not self describing per gene: decoding recomputes each gene's
// width from the header.
func (g *Genotype) Export() string {
	var b strings.Builder
	b.Grow(g.ConnectionBits() + 4*len(g.genes) + 32)
	b.WriteString(g.params.String())
	b.WriteByte(headerTerminator)
	for _, gene := range g.genes {
		b.WriteString(gene.bits())
		b.WriteByte(geneSeparator)
		b.WriteString(strconv.Itoa(gene.Function))
		b.WriteByte(geneTerminator)
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler using Export.
func (g *Genotype) MarshalText() ([]byte, error) {
	return []byte(g.Export()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Configure.
func (g *Genotype) UnmarshalText(text []byte) error {
	return g.Configure(string(text))
}

// Configure replaces the genotype with the one encoded in text. On error the
// receiver is left untouched.
func (g *Genotype) Configure(text string) error {
	head, body, found := strings.Cut(text, string(headerTerminator))
	if !found {
		return fmt.Errorf("%w: missing header terminator %q", ErrFormat, headerTerminator)
	}
	params, err := ParseParameters(head)
	if err != nil {
		return err
	}

	// Every gene takes at least its bits plus ",0:", so the body length bounds
	// the topology before anything is allocated.
	genes, bits, ok := params.wireSize(len(body) / minGeneOverhead)
	if !ok || bits > len(body)-minGeneOverhead*genes {
		return fmt.Errorf("%w: body of %d bytes is too short for parameters %s", ErrFormat, len(body), params)
	}

	scratch := &Genotype{params: params}
	scratch.InitGenotype()

	rest := body
	for i := range scratch.genes {
		want := len(scratch.genes[i].Connections)
		gene, remaining, err := decodeGene(rest, want)
		if err != nil {
			return fmt.Errorf("gene %d: %w", i, err)
		}
		scratch.genes[i] = gene
		rest = remaining
	}
	if rest != "" {
		return fmt.Errorf("%w: %d trailing bytes after %d genes", ErrFormat, len(rest), len(scratch.genes))
	}
	if len(scratch.genes) != params.FunctionalNodes() {
		panic(fmt.Sprintf("cgp: decoded %d functional nodes, parameters %s require %d",
			len(scratch.genes), params, params.FunctionalNodes()))
	}

	g.params = params
	g.genes = scratch.genes
	return nil
}

// decodeGene consumes one "<bits>,<fn>:" record of exactly width bits.
func decodeGene(s string, width int) (NodeGene, string, error) {
	if len(s) < width+1 {
		return NodeGene{}, "", fmt.Errorf("%w: truncated gene, need %d bits", ErrFormat, width)
	}
	gene := newNodeGene(width)
	for i := 0; i < width; i++ {
		switch s[i] {
		case '0':
		case '1':
			gene.Connections[i] = true
		default:
			return NodeGene{}, "", fmt.Errorf("%w: invalid connection bit %q at %d", ErrFormat, s[i], i)
		}
	}
	if s[width] != geneSeparator {
		return NodeGene{}, "", fmt.Errorf("%w: expected %q after %d bits, got %q", ErrFormat, geneSeparator, width, s[width])
	}
	fnText, rest, found := strings.Cut(s[width+1:], string(geneTerminator))
	if !found {
		return NodeGene{}, "", fmt.Errorf("%w: missing gene terminator %q", ErrFormat, geneTerminator)
	}
	fn, err := strconv.Atoi(fnText)
	if err != nil || fn < 0 {
		return NodeGene{}, "", fmt.Errorf("%w: invalid function index %q", ErrFormat, fnText)
	}
	gene.Function = fn
	return gene, rest, nil
}

// Decode builds a new genotype from its Export encoding.
func Decode(text string) (*Genotype, error) {
	g := &Genotype{}
	if err := g.Configure(text); err != nil {
		return nil, err
	}
	return g, nil
}
