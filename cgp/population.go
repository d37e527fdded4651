package cgp

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baldhumanity/cgp-go/cgp/archive"
)

// FitnessFunc is the type for the function provided by the user to evaluate
// fitness. It receives the current generation keyed by individual key and
// must set every Fitness field.
type FitnessFunc func(individuals map[int]*Individual) error

// Population holds the state of the evolutionary process.
type Population struct {
	Config       *Config
	Population   map[int]*Individual
	SpeciesSet   *SpeciesSet
	Reproduction *Reproduction
	Stagnation   *Stagnation
	Generation   int
	Best         *Individual // Best individual found so far
	RunID        string

	rng    *rand.Rand
	logger *slog.Logger
	store  archive.Store
}

// PopulationOption configures a Population.
type PopulationOption func(*Population)

// WithLogger sets the logger used by the population and its managers.
func WithLogger(logger *slog.Logger) PopulationOption {
	return func(p *Population) {
		p.logger = logger
	}
}

// WithArchive saves the best individual of every generation to store. The
// store must already be initialized.
func WithArchive(store archive.Store) PopulationOption {
	return func(p *Population) {
		p.store = store
	}
}

// WithRunID overrides the generated run identifier used for archive records.
func WithRunID(runID string) PopulationOption {
	return func(p *Population) {
		p.RunID = runID
	}
}

// NewPopulation creates a new Population instance.
// It initializes the first generation of individuals based on the config.
func NewPopulation(config *Config, opts ...PopulationOption) (*Population, error) {
	p := &Population{
		Config: config,
		RunID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	seed := config.Evolution.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p.rng = rand.New(rand.NewSource(seed))

	stagnation, err := NewStagnation(&config.Stagnation, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stagnation manager: %w", err)
	}
	p.Stagnation = stagnation
	p.Reproduction = NewReproduction(config, stagnation, p.rng, p.logger)
	p.SpeciesSet = NewSpeciesSet(&config.SpeciesSet, p.logger)

	p.Population, err = p.Reproduction.CreateNewPopulation(config.Evolution.PopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial population: %w", err)
	}
	return p, nil
}

// RunGeneration executes a single generation with a background context.
func (p *Population) RunGeneration(fitnessFunc FitnessFunc) (*Individual, error) {
	return p.RunGenerationContext(context.Background(), fitnessFunc)
}

// RunGenerationContext executes a single generation: evaluate, track the
// best, check termination, speciate and reproduce. It returns the best
// individual once the fitness criterion meets the threshold, otherwise nil.
func (p *Population) RunGenerationContext(ctx context.Context, fitnessFunc FitnessFunc) (*Individual, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.Generation++
	genStart := time.Now()
	logger := p.logger.With(slog.Int("generation", p.Generation))

	evalStart := time.Now()
	if err := fitnessFunc(p.Population); err != nil {
		return nil, fmt.Errorf("fitness evaluation failed in generation %d: %w", p.Generation, err)
	}
	evaluationDuration.Observe(time.Since(evalStart).Seconds())

	currentBest := p.findBest()
	if currentBest != nil && (p.Best == nil || currentBest.Fitness > p.Best.Fitness) {
		p.Best = &Individual{Key: currentBest.Key, Genotype: currentBest.Genotype.Copy(), Fitness: currentBest.Fitness}
		logger.Info("new best individual", slog.Int("key", p.Best.Key), slog.Float64("fitness", p.Best.Fitness))
	}
	if p.Best != nil {
		bestFitness.Set(p.Best.Fitness)
	}
	if currentBest != nil {
		if err := p.archiveBest(ctx, currentBest); err != nil {
			return nil, err
		}
	}

	if !p.Config.Evolution.NoFitnessTermination && len(p.Population) > 0 {
		if p.criterionValue() >= p.Config.Evolution.FitnessThreshold {
			generationsTotal.Inc()
			logger.Info("fitness threshold met", slog.Float64("threshold", p.Config.Evolution.FitnessThreshold))
			return p.Best, nil
		}
	}

	if len(p.Population) == 0 {
		return p.handleExtinction(logger)
	}

	p.SpeciesSet.Speciate(p.Population, p.Generation)
	speciesCount.Set(float64(len(p.SpeciesSet.Species)))

	newPopulation, err := p.Reproduction.Reproduce(p.SpeciesSet, p.Config.Evolution.PopSize, p.Generation)
	if err != nil {
		return nil, fmt.Errorf("reproduction failed in generation %d: %w", p.Generation, err)
	}
	if len(newPopulation) == 0 {
		p.Population = newPopulation
		return p.handleExtinction(logger)
	}
	p.Population = newPopulation
	generationsTotal.Inc()

	attrs := []any{
		slog.Int("species", len(p.SpeciesSet.Species)),
		slog.Int("size", len(p.Population)),
		slog.Duration("elapsed", time.Since(genStart)),
	}
	if currentBest != nil {
		attrs = append(attrs, slog.Float64("best_fitness", currentBest.Fitness))
	}
	logger.Info("generation finished", attrs...)
	return nil, nil
}

func (p *Population) handleExtinction(logger *slog.Logger) (*Individual, error) {
	generationsTotal.Inc()
	if !p.Config.Evolution.ResetOnExtinction {
		return nil, fmt.Errorf("population extinct in generation %d", p.Generation)
	}
	logger.Warn("population extinct, resetting")
	population, err := p.Reproduction.CreateNewPopulation(p.Config.Evolution.PopSize)
	if err != nil {
		return nil, err
	}
	p.Population = population
	p.SpeciesSet = NewSpeciesSet(&p.Config.SpeciesSet, p.logger)
	return nil, nil
}

// criterionValue applies fitness_criterion to the current fitnesses.
func (p *Population) criterionValue() float64 {
	fitnesses := make([]float64, 0, len(p.Population))
	for _, ind := range p.Population {
		fitnesses = append(fitnesses, ind.Fitness)
	}
	switch strings.ToLower(p.Config.Evolution.FitnessCriterion) {
	case "min":
		return MinFloat(fitnesses)
	case "mean":
		return Mean(fitnesses)
	default:
		return MaxFloat(fitnesses)
	}
}

func (p *Population) archiveBest(ctx context.Context, best *Individual) error {
	if p.store == nil {
		return nil
	}
	err := p.store.Save(ctx, archive.Record{
		ID:         uuid.NewString(),
		RunID:      p.RunID,
		Generation: p.Generation,
		Fitness:    best.Fitness,
		Genotype:   best.Genotype.Export(),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to archive generation %d: %w", p.Generation, err)
	}
	return nil
}

// findBest finds the individual with the highest fitness, lowest key on ties.
func (p *Population) findBest() *Individual {
	var best *Individual
	maxFitness := math.Inf(-1)
	for _, key := range sortedKeys(p.Population) {
		ind := p.Population[key]
		if ind.Fitness > maxFitness {
			maxFitness = ind.Fitness
			best = ind
		}
	}
	return best
}
