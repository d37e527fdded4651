package cgp

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Stagnation manages the detection of stagnant species.
type Stagnation struct {
	Config             *StagnationConfig
	SpeciesFitnessFunc func([]float64) float64
	logger             *slog.Logger
}

// NewStagnation creates a new stagnation manager.
func NewStagnation(config *StagnationConfig, logger *slog.Logger) (*Stagnation, error) {
	fn, ok := StatFunctions[strings.ToLower(config.SpeciesFitnessFunc)]
	if !ok {
		return nil, fmt.Errorf("invalid species_fitness_func in config: %s", config.SpeciesFitnessFunc)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stagnation{
		Config:             config,
		SpeciesFitnessFunc: fn,
		logger:             logger,
	}, nil
}

// StagnationInfo holds the results of the stagnation update for a single species.
type StagnationInfo struct {
	SpeciesID  int
	Species    *Species
	IsStagnant bool
}

// Update records each species' fitness and reports, least fit first, which
// species have not improved for max_stagnation generations. The
// species_elitism fittest species are never marked stagnant.
func (s *Stagnation) Update(speciesSet *SpeciesSet, generation int) []StagnationInfo {
	if len(speciesSet.Species) == 0 {
		return []StagnationInfo{}
	}

	species := make([]*Species, 0, len(speciesSet.Species))
	for _, sp := range speciesSet.Species {
		previousMax := math.Inf(-1)
		if len(sp.FitnessHistory) > 0 {
			previousMax = MaxFloat(sp.FitnessHistory)
		}

		fitnesses := sp.GetFitnesses()
		if len(fitnesses) == 0 {
			sp.Fitness = math.Inf(-1)
		} else {
			sp.Fitness = s.SpeciesFitnessFunc(fitnesses)
		}
		sp.FitnessHistory = append(sp.FitnessHistory, sp.Fitness)
		sp.AdjustedFitness = 0

		if sp.Fitness > previousMax {
			sp.LastImproved = generation
		}
		species = append(species, sp)
	}

	sort.Slice(species, func(i, j int) bool {
		if species[i].Fitness != species[j].Fitness {
			return species[i].Fitness < species[j].Fitness
		}
		return species[i].Key < species[j].Key
	})

	result := make([]StagnationInfo, len(species))
	numNonStagnant := len(species)
	for i, sp := range species {
		stagnantTime := generation - sp.LastImproved
		isStagnant := false
		if numNonStagnant > s.Config.SpeciesElitism {
			isStagnant = stagnantTime >= s.Config.MaxStagnation
		}
		if len(species)-i <= s.Config.SpeciesElitism {
			if isStagnant {
				s.logger.Debug("species spared from stagnation by elitism",
					slog.Int("species", sp.Key),
					slog.Float64("fitness", sp.Fitness),
					slog.Int("stagnant_generations", stagnantTime))
			}
			isStagnant = false
		}
		if isStagnant {
			numNonStagnant--
		}
		result[i] = StagnationInfo{SpeciesID: sp.Key, Species: sp, IsStagnant: isStagnant}
	}
	return result
}
