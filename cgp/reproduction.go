package cgp

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
)

// Reproduction creates individuals, either from scratch or from the
// survivors of each species through crossover and mutation.
type Reproduction struct {
	Config        *Config
	NextGenomeKey int           // State for the next individual key
	Ancestors     map[int][]int // individual key -> parent keys
	Stagnation    *Stagnation

	rng    *rand.Rand
	logger *slog.Logger
}

// NewReproduction creates a new reproduction manager.
func NewReproduction(config *Config, stagnation *Stagnation, rng *rand.Rand, logger *slog.Logger) *Reproduction {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reproduction{
		Config:        config,
		NextGenomeKey: 1,
		Ancestors:     make(map[int][]int),
		Stagnation:    stagnation,
		rng:           rng,
		logger:        logger,
	}
}

// getNextKey gets the next available individual key and increments the internal counter.
func (r *Reproduction) getNextKey() int {
	key := r.NextGenomeKey
	r.NextGenomeKey++
	return key
}

// CreateNewPopulation creates popSize random individuals: connections are set
// at initial_connection_rate and every function is drawn from the allowed set.
func (r *Reproduction) CreateNewPopulation(popSize int) (map[int]*Individual, error) {
	params := r.Config.CGP.Parameters()
	individuals := make(map[int]*Individual, popSize)
	for i := 0; i < popSize; i++ {
		g, err := NewGenotype(params)
		if err != nil {
			return nil, err
		}
		g.SetSeed(r.rng.Int63())
		if err := g.MutateConnections(r.Config.Evolution.InitialConnection); err != nil {
			return nil, err
		}
		if err := g.MutateFunctionsFrom(1, r.Config.CGP.FunctionIndices); err != nil {
			return nil, err
		}
		key := r.getNextKey()
		individuals[key] = &Individual{Key: key, Genotype: g}
		r.Ancestors[key] = []int{}
	}
	return individuals, nil
}

// Reproduce builds the next generation from the current species.
func (r *Reproduction) Reproduce(speciesSet *SpeciesSet, popSize int, generation int) (map[int]*Individual, error) {
	stagnationInfo := r.Stagnation.Update(speciesSet, generation)

	allFitnesses := []float64{}
	remainingSpecies := []*Species{}
	for _, info := range stagnationInfo {
		if info.IsStagnant {
			r.logger.Info("species removed due to stagnation", slog.Int("species", info.SpeciesID))
			continue
		}
		fitnesses := info.Species.GetFitnesses()
		if len(fitnesses) == 0 {
			continue
		}
		allFitnesses = append(allFitnesses, fitnesses...)
		remainingSpecies = append(remainingSpecies, info.Species)
	}

	if len(remainingSpecies) == 0 {
		r.logger.Warn("all species became extinct", slog.Int("generation", generation))
		return make(map[int]*Individual), nil
	}

	// Fitness sharing: species fitness normalized to the population range.
	minFitness := MinFloat(allFitnesses)
	maxFitness := MaxFloat(allFitnesses)
	fitnessRange := math.Max(1.0, maxFitness-minFitness)

	adjustedSum := 0.0
	previousSizes := make([]int, len(remainingSpecies))
	adjusted := make([]float64, len(remainingSpecies))
	for i, sp := range remainingSpecies {
		sp.AdjustedFitness = (sp.Fitness - minFitness) / fitnessRange
		adjustedSum += sp.AdjustedFitness
		previousSizes[i] = len(sp.Members)
		adjusted[i] = sp.AdjustedFitness
	}

	rc := r.Config.Reproduction
	spawnMinSize := max(rc.MinSpeciesSize, rc.Elitism)
	spawnAmounts := r.computeSpawnAmounts(adjusted, adjustedSum, previousSizes, popSize, spawnMinSize)

	newPopulation := make(map[int]*Individual)
	newAncestors := make(map[int][]int)
	for i, sp := range remainingSpecies {
		spawn := max(spawnAmounts[i], rc.Elitism)
		members := sp.sortedMembers()

		for j := 0; j < rc.Elitism && j < len(members) && spawn > 0; j++ {
			elite := members[j]
			newPopulation[elite.Key] = elite
			newAncestors[elite.Key] = []int{elite.Key}
			spawn--
		}
		if spawn <= 0 {
			continue
		}

		survivalCutoff := int(math.Ceil(rc.SurvivalThreshold * float64(len(members))))
		survivalCutoff = min(max(survivalCutoff, 2), len(members))
		parents := members[:survivalCutoff]
		if len(parents) == 0 {
			r.logger.Warn("no parents available", slog.Int("species", sp.Key))
			continue
		}

		for j := 0; j < spawn; j++ {
			parent1 := parents[r.rng.Intn(len(parents))]
			parent2 := parents[r.rng.Intn(len(parents))]
			child, err := r.breed(parent1, parent2)
			if err != nil {
				return nil, fmt.Errorf("failed to breed species %d: %w", sp.Key, err)
			}
			newPopulation[child.Key] = child
			newAncestors[child.Key] = []int{parent1.Key, parent2.Key}
		}
	}
	r.Ancestors = newAncestors

	if len(newPopulation) != popSize {
		r.logger.Debug("population size differs from target",
			slog.Int("size", len(newPopulation)),
			slog.Int("target", popSize))
	}
	return newPopulation, nil
}

// breed produces one mutated child of the two parents.
func (r *Reproduction) breed(parent1, parent2 *Individual) (*Individual, error) {
	var (
		g   *Genotype
		err error
	)
	if parent1 != parent2 && r.rng.Float64() < r.Config.Evolution.CrossoverRate {
		g, err = parent1.Genotype.Crossover(parent2.Genotype, r.rng)
		if err != nil {
			return nil, err
		}
	} else {
		g = parent1.Genotype.Copy()
	}
	g.SetSeed(r.rng.Int63())
	if err := g.MutateConnections(r.Config.Evolution.ConnectionMutateRate); err != nil {
		return nil, err
	}
	if err := g.MutateFunctionsFrom(r.Config.Evolution.FunctionMutateRate, r.Config.CGP.FunctionIndices); err != nil {
		return nil, err
	}
	return &Individual{Key: r.getNextKey(), Genotype: g}, nil
}

// computeSpawnAmounts calculates the number of offspring each species should produce.
func (r *Reproduction) computeSpawnAmounts(adjustedFitnesses []float64, adjustedFitnessSum float64, previousSizes []int, popSize int, minSpeciesSize int) []int {
	spawnAmounts := make([]int, len(adjustedFitnesses))
	for i, af := range adjustedFitnesses {
		ps := previousSizes[i]
		s := float64(minSpeciesSize)
		if adjustedFitnessSum > 0 {
			s = math.Max(s, af/adjustedFitnessSum*float64(popSize))
		}

		// Move halfway from the previous size towards the target.
		d := (s - float64(ps)) * 0.5
		c := int(math.Round(d))
		spawn := ps
		switch {
		case c != 0:
			spawn += c
		case d > 0:
			spawn++
		case d < 0:
			spawn--
		}
		spawnAmounts[i] = max(minSpeciesSize, spawn)
	}

	totalSpawn := 0
	for _, sa := range spawnAmounts {
		totalSpawn += sa
	}
	if totalSpawn == 0 {
		return spawnAmounts
	}

	norm := float64(popSize) / float64(totalSpawn)
	currentTotal := 0
	for i, sa := range spawnAmounts {
		spawnAmounts[i] = max(minSpeciesSize, int(math.Round(float64(sa)*norm)))
		currentTotal += spawnAmounts[i]
	}

	diff := popSize - currentTotal
	if diff != 0 {
		indices := r.rng.Perm(len(spawnAmounts))
		for _, idx := range indices {
			if diff == 0 {
				break
			}
			if diff > 0 {
				spawnAmounts[idx]++
				diff--
			} else if spawnAmounts[idx] > minSpeciesSize {
				spawnAmounts[idx]--
				diff++
			}
		}
		if diff != 0 {
			r.logger.Debug("could not match pop_size after spawn normalization", slog.Int("difference", diff))
		}
	}
	return spawnAmounts
}
