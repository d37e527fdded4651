package bench

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/cgp-go/cgp"
)

func TestParityTable(t *testing.T) {
	task := Parity(3)
	require.Len(t, task.Cases, 8)
	assert.Equal(t, "parity-3", task.Name)
	for _, c := range task.Cases {
		ones := 0
		for _, v := range c.Inputs {
			ones += int(v)
		}
		assert.Equal(t, float64(ones%2), c.Target)
	}

	xor := XOR()
	assert.Equal(t, "xor", xor.Name)
	assert.Equal(t, []float64{0, 1, 1, 0}, []float64{xor.Cases[0].Target, xor.Cases[1].Target, xor.Cases[2].Target, xor.Cases[3].Target})
	assert.Equal(t, 4.0, xor.MaxFitness())
}

func TestByName(t *testing.T) {
	task, err := ByName("parity", 4)
	require.NoError(t, err)
	assert.Len(t, task.Cases, 16)

	_, err = ByName("parity", 0)
	assert.Error(t, err)
	_, err = ByName("maze", 2)
	assert.Error(t, err)
}

func index(t *testing.T, name string) int {
	t.Helper()
	idx, err := cgp.FunctionByName(name)
	require.NoError(t, err)
	return idx
}

// handXOR builds xor(a, b) = or(a, b) - and(a, b).
func handXOR(t *testing.T) *cgp.Genotype {
	t.Helper()
	g, err := cgp.NewGenotype(cgp.Parameters{Inputs: 2, Outputs: 1, Layers: 1, NodesPerLayer: 2, LayersBack: 1})
	require.NoError(t, err)
	require.NoError(t, g.SetGene(0, cgp.NodeGene{Connections: []bool{true, true}, Function: index(t, "or")}))
	require.NoError(t, g.SetGene(1, cgp.NodeGene{Connections: []bool{true, true}, Function: index(t, "and")}))
	require.NoError(t, g.SetGene(2, cgp.NodeGene{Connections: []bool{true, true}, Function: index(t, "subtract")}))
	return g
}

func TestScore(t *testing.T) {
	task := XOR()
	score, err := task.Score(handXOR(t))
	require.NoError(t, err)
	assert.Equal(t, task.MaxFitness(), score)

	blank, err := cgp.NewGenotype(cgp.Parameters{Inputs: 2, Outputs: 1, LayersBack: 1})
	require.NoError(t, err)
	score, err = task.Score(blank)
	require.NoError(t, err)
	assert.Equal(t, 2.0, score, "a constant 0 output solves half the table")

	wrong, err := cgp.NewGenotype(cgp.Parameters{Inputs: 3, Outputs: 1, LayersBack: 1})
	require.NoError(t, err)
	_, err = task.Score(wrong)
	assert.Error(t, err)
}

func TestFitnessFuncDrivesPopulation(t *testing.T) {
	cfg, err := cgp.ParseConfig([]byte(`
[CGP]
num_inputs       = 2
num_outputs      = 1
num_layers       = 1
nodes_per_layer  = 4
layers_back      = 1
function_options = or and subtract

[Evolution]
pop_size                = 20
fitness_threshold       = 4
connection_mutate_rate  = 0.1
function_mutate_rate    = 0.2
initial_connection_rate = 0.5
seed                    = 3
`))
	require.NoError(t, err)
	p, err := cgp.NewPopulation(cfg, cgp.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	fitness := XOR().FitnessFunc()
	for i := 0; i < 3; i++ {
		if _, err := p.RunGeneration(fitness); err != nil {
			t.Fatalf("generation %d: %v", p.Generation, err)
		}
	}
	require.NotNil(t, p.Best)
	assert.GreaterOrEqual(t, p.Best.Fitness, 0.0)
	assert.LessOrEqual(t, p.Best.Fitness, 4.0)
}
