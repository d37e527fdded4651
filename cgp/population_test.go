package cgp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/cgp-go/cgp/archive"
)

const trainerConfig = `
[CGP]
num_inputs       = 3
num_outputs      = 2
num_layers       = 2
nodes_per_layer  = 4
layers_back      = 2
function_options = sum product negate greater

[Evolution]
pop_size                = 30
fitness_threshold       = 0.99
no_fitness_termination  = true
connection_mutate_rate  = 0.05
function_mutate_rate    = 0.1
initial_connection_rate = 0.3
crossover_rate          = 0.5
seed                    = 7

[Reproduction]
elitism = 2

[SpeciesSet]
compatibility_threshold = 0.2

[Stagnation]
species_fitness_func = max
max_stagnation       = 5
species_elitism      = 1
`

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func loadTrainerConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(trainerConfig))
	require.NoError(t, err)
	return cfg
}

// bitFraction scores an individual by the share of its connection bits that are set.
func bitFraction(individuals map[int]*Individual) error {
	for _, ind := range individuals {
		set, total := 0, 0
		for _, gene := range ind.Genotype.Genes() {
			set += gene.ActiveCount()
			total += len(gene.Connections)
		}
		ind.Fitness = float64(set) / float64(total)
	}
	return nil
}

func TestNewPopulation(t *testing.T) {
	cfg := loadTrainerConfig(t)
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)

	require.Len(t, p.Population, 30)
	assert.NotEmpty(t, p.RunID)
	allowed := map[int]bool{}
	for _, idx := range cfg.CGP.FunctionIndices {
		allowed[idx] = true
	}
	for key, ind := range p.Population {
		assert.Equal(t, key, ind.Key)
		assert.Equal(t, cfg.CGP.Parameters(), ind.Genotype.Parameters())
		for _, gene := range ind.Genotype.Genes() {
			assert.True(t, allowed[gene.Function], "function %d not allowed", gene.Function)
		}
	}
}

func TestRunGenerationTracksBestAndArchives(t *testing.T) {
	ctx := context.Background()
	store := archive.NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	before := testutil.ToFloat64(generationsTotal)
	p, err := NewPopulation(loadTrainerConfig(t), WithLogger(quietLogger), WithArchive(store), WithRunID("run-1"))
	require.NoError(t, err)

	previous := -1.0
	for i := 0; i < 6; i++ {
		winner, err := p.RunGeneration(bitFraction)
		require.NoError(t, err)
		assert.Nil(t, winner, "no_fitness_termination is set")
		require.NotNil(t, p.Best)
		assert.GreaterOrEqual(t, p.Best.Fitness, previous)
		previous = p.Best.Fitness
		assert.NotEmpty(t, p.Population)
	}

	assert.Equal(t, 6, p.Generation)
	assert.Equal(t, 6.0, testutil.ToFloat64(generationsTotal)-before)
	assert.Equal(t, p.Best.Fitness, testutil.ToFloat64(bestFitness))
	assert.Positive(t, testutil.ToFloat64(speciesCount))

	records, err := store.Best(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, p.Best.Fitness, records[0].Fitness)
	decoded, err := Decode(records[0].Genotype)
	require.NoError(t, err)
	assert.Equal(t, p.Config.CGP.Parameters(), decoded.Parameters())
}

func TestRunGenerationThreshold(t *testing.T) {
	cfg := loadTrainerConfig(t)
	cfg.Evolution.NoFitnessTermination = false
	cfg.Evolution.FitnessThreshold = 0.1
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)

	winner, err := p.RunGeneration(bitFraction)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.GreaterOrEqual(t, winner.Fitness, 0.1)
	assert.Equal(t, 1, p.Generation)
}

func TestRunGenerationMeanCriterion(t *testing.T) {
	cfg := loadTrainerConfig(t)
	cfg.Evolution.NoFitnessTermination = false
	cfg.Evolution.FitnessCriterion = "mean"
	cfg.Evolution.FitnessThreshold = 0.5
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)

	constant := func(individuals map[int]*Individual) error {
		for key, ind := range individuals {
			ind.Fitness = 0.0
			if key%2 == 0 {
				ind.Fitness = 0.9
			}
		}
		return nil
	}
	winner, err := p.RunGeneration(constant)
	require.NoError(t, err)
	assert.Nil(t, winner, "mean fitness stays below the threshold")
}

func TestRunGenerationFitnessError(t *testing.T) {
	p, err := NewPopulation(loadTrainerConfig(t), WithLogger(quietLogger))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = p.RunGeneration(func(map[int]*Individual) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRunGenerationContextCancelled(t *testing.T) {
	p, err := NewPopulation(loadTrainerConfig(t), WithLogger(quietLogger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.RunGenerationContext(ctx, bitFraction)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Generation)
}

func TestExtinction(t *testing.T) {
	wipe := func(individuals map[int]*Individual) error {
		for key := range individuals {
			delete(individuals, key)
		}
		return nil
	}

	cfg := loadTrainerConfig(t)
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)
	_, err = p.RunGeneration(wipe)
	assert.Error(t, err)

	cfg = loadTrainerConfig(t)
	cfg.Evolution.ResetOnExtinction = true
	p, err = NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)
	winner, err := p.RunGeneration(wipe)
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.Len(t, p.Population, 30)
}

func TestSpeciateSeparatesClusters(t *testing.T) {
	params := Parameters{Inputs: 2, Outputs: 1, Layers: 1, NodesPerLayer: 4, LayersBack: 1}
	population := map[int]*Individual{}
	for key := 1; key <= 6; key++ {
		g := newTestGenotype(t, params, int64(key))
		if key > 3 {
			require.NoError(t, g.MutateConnections(1))
		}
		population[key] = &Individual{Key: key, Genotype: g}
	}

	ss := NewSpeciesSet(&SpeciesSetConfig{CompatibilityThreshold: 0.5}, quietLogger)
	ss.Speciate(population, 1)
	require.Len(t, ss.Species, 2)

	low, ok := ss.GetSpeciesID(1)
	require.True(t, ok)
	high, ok := ss.GetSpeciesID(4)
	require.True(t, ok)
	assert.NotEqual(t, low, high)
	for key := 1; key <= 6; key++ {
		sp, ok := ss.GetSpecies(key)
		require.True(t, ok)
		assert.Len(t, sp.Members, 3)
	}

	// A second pass keeps the species keys.
	ss.Speciate(population, 2)
	sid, _ := ss.GetSpeciesID(1)
	assert.Equal(t, low, sid)
}

func TestStagnationSparesElites(t *testing.T) {
	stagnation, err := NewStagnation(&StagnationConfig{SpeciesFitnessFunc: "max", MaxStagnation: 2, SpeciesElitism: 1}, quietLogger)
	require.NoError(t, err)

	ss := NewSpeciesSet(&SpeciesSetConfig{}, quietLogger)
	for sid, fitness := range map[int]float64{1: 1.0, 2: 5.0} {
		sp := NewSpecies(sid, 0)
		sp.FitnessHistory = []float64{10}
		sp.Members[sid] = &Individual{Key: sid, Fitness: fitness}
		ss.Species[sid] = sp
	}

	info := stagnation.Update(ss, 5)
	require.Len(t, info, 2)
	assert.Equal(t, 1, info[0].SpeciesID)
	assert.True(t, info[0].IsStagnant)
	assert.Equal(t, 2, info[1].SpeciesID)
	assert.False(t, info[1].IsStagnant, "the fittest species is protected")
}

func TestComputeSpawnAmountsMatchPopSize(t *testing.T) {
	cfg := loadTrainerConfig(t)
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)

	spawn := p.Reproduction.computeSpawnAmounts([]float64{0.1, 0.5, 0.9}, 1.5, []int{10, 10, 10}, 30, 2)
	total := 0
	for _, s := range spawn {
		assert.GreaterOrEqual(t, s, 2)
		total += s
	}
	assert.Equal(t, 30, total)
	assert.Less(t, spawn[0], spawn[2])
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := loadTrainerConfig(t)
	p, err := NewPopulation(cfg, WithLogger(quietLogger), WithRunID("ckpt"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := p.RunGeneration(bitFraction)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "pop.gz")
	require.NoError(t, p.SaveCheckpoint(path))

	restored, err := RestoreCheckpoint(path, cfg, WithLogger(quietLogger))
	require.NoError(t, err)
	assert.Equal(t, "ckpt", restored.RunID)
	assert.Equal(t, p.Generation, restored.Generation)
	assert.Equal(t, p.Reproduction.NextGenomeKey, restored.Reproduction.NextGenomeKey)
	assert.Equal(t, p.SpeciesSet.Indexer, restored.SpeciesSet.Indexer)
	require.Len(t, restored.Population, len(p.Population))
	for key, ind := range p.Population {
		got, ok := restored.Population[key]
		require.True(t, ok)
		assert.True(t, got.Genotype.Equal(ind.Genotype))
	}
	require.NotNil(t, restored.Best)
	assert.Equal(t, p.Best.Fitness, restored.Best.Fitness)
	assert.Len(t, restored.SpeciesSet.Species, len(p.SpeciesSet.Species))

	_, err = restored.RunGeneration(bitFraction)
	require.NoError(t, err)
	assert.Equal(t, p.Generation+1, restored.Generation)
}

func TestCheckpointRejectsOtherTopology(t *testing.T) {
	cfg := loadTrainerConfig(t)
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pop.gz")
	require.NoError(t, p.SaveCheckpoint(path))

	other := loadTrainerConfig(t)
	other.CGP.NodesPerLayer = 5
	_, err = RestoreCheckpoint(path, other, WithLogger(quietLogger))
	assert.ErrorIs(t, err, ErrParameterMismatch)

	_, err = RestoreCheckpoint(filepath.Join(t.TempDir(), "missing.gz"), cfg)
	assert.Error(t, err)
}

func TestCheckpointChecksEveryStoredTopology(t *testing.T) {
	cfg := loadTrainerConfig(t)
	p, err := NewPopulation(cfg, WithLogger(quietLogger))
	require.NoError(t, err)
	_, err = p.RunGeneration(bitFraction)
	require.NoError(t, err)
	require.NotNil(t, p.Best)
	require.NotEmpty(t, p.SpeciesSet.Species)

	other := loadTrainerConfig(t)
	other.CGP.NodesPerLayer = 5
	path := filepath.Join(t.TempDir(), "pop.gz")

	// Only the best individual is left to compare.
	p.Population = map[int]*Individual{}
	species := p.SpeciesSet.Species
	p.SpeciesSet.Species = map[int]*Species{}
	require.NoError(t, p.SaveCheckpoint(path))
	_, err = RestoreCheckpoint(path, other, WithLogger(quietLogger))
	assert.ErrorIs(t, err, ErrParameterMismatch)

	// Only species representatives and members are left.
	p.Best = nil
	p.SpeciesSet.Species = species
	require.NoError(t, p.SaveCheckpoint(path))
	_, err = RestoreCheckpoint(path, other, WithLogger(quietLogger))
	assert.ErrorIs(t, err, ErrParameterMismatch)

	_, err = RestoreCheckpoint(path, cfg, WithLogger(quietLogger))
	assert.NoError(t, err)
}
