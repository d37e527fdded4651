package cgp

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"
)

// individualData is the persisted form of an Individual; the genotype is
// kept as codec text.
type individualData struct {
	Key      int
	Genotype string
	Fitness  float64
}

type speciesData struct {
	Key             int
	Created         int
	LastImproved    int
	Representative  individualData
	Members         []individualData
	Fitness         float64
	AdjustedFitness float64
	FitnessHistory  []float64
}

// checkpointData holds the parts of a Population needed to resume it. The
// Config is not saved; it is reloaded from the original file.
type checkpointData struct {
	RunID          string
	Generation     int
	NextGenomeKey  int
	SpeciesIndexer int
	Population     []individualData
	Best           *individualData
	Species        []speciesData
	Ancestors      map[int][]int
}

func encodeIndividual(ind *Individual) individualData {
	return individualData{Key: ind.Key, Genotype: ind.Genotype.Export(), Fitness: ind.Fitness}
}

// decode rebuilds the individual and checks its topology against params.
func (d individualData) decode(params Parameters) (*Individual, error) {
	g, err := Decode(d.Genotype)
	if err != nil {
		return nil, fmt.Errorf("individual %d: %w", d.Key, err)
	}
	if g.Parameters() != params {
		return nil, fmt.Errorf("individual %d: %w: checkpoint %s, config %s", d.Key, ErrParameterMismatch, g.Parameters(), params)
	}
	return &Individual{Key: d.Key, Genotype: g, Fitness: d.Fitness}, nil
}

// SaveCheckpoint saves the current state of the Population to a gzip
// compressed gob file.
func (p *Population) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)

	data := checkpointData{
		RunID:          p.RunID,
		Generation:     p.Generation,
		NextGenomeKey:  p.Reproduction.NextGenomeKey,
		SpeciesIndexer: p.SpeciesSet.Indexer,
		Ancestors:      p.Reproduction.Ancestors,
	}
	for _, key := range sortedKeys(p.Population) {
		data.Population = append(data.Population, encodeIndividual(p.Population[key]))
	}
	if p.Best != nil {
		best := encodeIndividual(p.Best)
		data.Best = &best
	}
	for _, sid := range sortedKeys(p.SpeciesSet.Species) {
		sp := p.SpeciesSet.Species[sid]
		sd := speciesData{
			Key:             sp.Key,
			Created:         sp.Created,
			LastImproved:    sp.LastImproved,
			Fitness:         sp.Fitness,
			AdjustedFitness: sp.AdjustedFitness,
			FitnessHistory:  sp.FitnessHistory,
		}
		if sp.Representative != nil {
			sd.Representative = encodeIndividual(sp.Representative)
		}
		for _, key := range sortedKeys(sp.Members) {
			sd.Members = append(sd.Members, encodeIndividual(sp.Members[key]))
		}
		data.Species = append(data.Species, sd)
	}

	if err := gob.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint '%s': %w", filePath, err)
	}

	p.logger.Info("checkpoint saved", slog.String("path", filePath), slog.Int("generation", p.Generation))
	return nil
}

// LoadCheckpoint loads a Population state from a checkpoint file.
// It requires the original configuration file path to reconstruct the Config object.
func LoadCheckpoint(checkpointPath string, configPath string, opts ...PopulationOption) (*Population, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s' for checkpoint: %w", configPath, err)
	}
	return RestoreCheckpoint(checkpointPath, config, opts...)
}

// RestoreCheckpoint is LoadCheckpoint with an already loaded Config.
func RestoreCheckpoint(checkpointPath string, config *Config, opts ...PopulationOption) (*Population, error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	var data checkpointData
	if err := gob.NewDecoder(gzReader).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}

	p := &Population{Config: config, RunID: data.RunID, Generation: data.Generation}
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
	p.rng = rand.New(rand.NewSource(seed + int64(data.Generation)))

	p.Stagnation, err = NewStagnation(&config.Stagnation, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to re-initialize stagnation from loaded config: %w", err)
	}
	p.Reproduction = NewReproduction(config, p.Stagnation, p.rng, p.logger)
	p.Reproduction.NextGenomeKey = data.NextGenomeKey
	if data.Ancestors != nil {
		p.Reproduction.Ancestors = data.Ancestors
	}

	params := config.CGP.Parameters()
	p.Population = make(map[int]*Individual, len(data.Population))
	for _, d := range data.Population {
		ind, err := d.decode(params)
		if err != nil {
			return nil, fmt.Errorf("failed to restore population: %w", err)
		}
		p.Population[ind.Key] = ind
	}
	if data.Best != nil {
		if p.Best, err = data.Best.decode(params); err != nil {
			return nil, fmt.Errorf("failed to restore best individual: %w", err)
		}
	}

	p.SpeciesSet = NewSpeciesSet(&config.SpeciesSet, p.logger)
	p.SpeciesSet.Indexer = data.SpeciesIndexer
	for _, sd := range data.Species {
		sp := NewSpecies(sd.Key, sd.Created)
		sp.LastImproved = sd.LastImproved
		sp.Fitness = sd.Fitness
		sp.AdjustedFitness = sd.AdjustedFitness
		sp.FitnessHistory = append(sp.FitnessHistory, sd.FitnessHistory...)
		if sd.Representative.Genotype != "" {
			if sp.Representative, err = sd.Representative.decode(params); err != nil {
				return nil, fmt.Errorf("failed to restore species %d: %w", sd.Key, err)
			}
		}
		for _, md := range sd.Members {
			m, err := md.decode(params)
			if err != nil {
				return nil, fmt.Errorf("failed to restore species %d: %w", sd.Key, err)
			}
			sp.Members[m.Key] = m
			p.SpeciesSet.GenomeToSpecies[m.Key] = sd.Key
		}
		p.SpeciesSet.Species[sd.Key] = sp
	}

	p.logger.Info("checkpoint loaded", slog.String("path", checkpointPath), slog.Int("generation", p.Generation))
	return p, nil
}
