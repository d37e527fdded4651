package cgp

import (
	"log/slog"
	"math"
	"sort"
)

// Individual is a scored member of a population.
type Individual struct {
	Key      int
	Genotype *Genotype
	Fitness  float64
}

// Species represents a group of genetically similar individuals.
type Species struct {
	Key             int                 // Unique identifier for the species.
	Created         int                 // Generation number when the species was created.
	LastImproved    int                 // Last generation where fitness improved.
	Representative  *Individual         // The representative individual for this species.
	Members         map[int]*Individual // Individuals belonging to this species, by key.
	Fitness         float64             // Species fitness (species_fitness_func over members).
	AdjustedFitness float64             // Fitness adjusted by sharing.
	FitnessHistory  []float64
}

// NewSpecies creates a new species.
func NewSpecies(key, generation int) *Species {
	return &Species{
		Key:            key,
		Created:        generation,
		LastImproved:   generation,
		Members:        make(map[int]*Individual),
		FitnessHistory: []float64{},
	}
}

// Update adjusts the species' representative and members.
func (s *Species) Update(representative *Individual, members map[int]*Individual) {
	s.Representative = representative
	s.Members = members
}

// GetFitnesses returns a slice containing the fitness values of all members.
func (s *Species) GetFitnesses() []float64 {
	fitnesses := make([]float64, 0, len(s.Members))
	for _, ind := range s.Members {
		fitnesses = append(fitnesses, ind.Fitness)
	}
	return fitnesses
}

// sortedMembers returns the members fittest first, ties by key.
func (s *Species) sortedMembers() []*Individual {
	members := make([]*Individual, 0, len(s.Members))
	for _, ind := range s.Members {
		members = append(members, ind)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Fitness != members[j].Fitness {
			return members[i].Fitness > members[j].Fitness
		}
		return members[i].Key < members[j].Key
	})
	return members
}

// --------------------------- DistanceCache ---------------------------

type pairKey struct {
	a, b int
}

// DistanceCache memoizes genotype distances for one speciation pass.
type DistanceCache struct {
	Distances map[pairKey]float64
	Hits      int
	Misses    int
}

// NewDistanceCache creates a new distance cache.
func NewDistanceCache() *DistanceCache {
	return &DistanceCache{Distances: make(map[pairKey]float64)}
}

// Distance calculates or retrieves the distance between two individuals.
func (dc *DistanceCache) Distance(a, b *Individual) float64 {
	key := pairKey{a.Key, b.Key}
	if key.a > key.b {
		key.a, key.b = key.b, key.a
	}
	if d, ok := dc.Distances[key]; ok {
		dc.Hits++
		return d
	}
	dc.Misses++
	d := a.Genotype.Distance(b.Genotype)
	dc.Distances[key] = d
	return d
}

// --------------------------- SpeciesSet ---------------------------

// SpeciesSet manages the collection of species within a population.
type SpeciesSet struct {
	Species         map[int]*Species // species key -> Species
	GenomeToSpecies map[int]int      // individual key -> species key
	Indexer         int              // next species key, starting at 1
	Config          *SpeciesSetConfig
	logger          *slog.Logger
}

// NewSpeciesSet creates a new species set manager.
func NewSpeciesSet(config *SpeciesSetConfig, logger *slog.Logger) *SpeciesSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeciesSet{
		Species:         make(map[int]*Species),
		GenomeToSpecies: make(map[int]int),
		Indexer:         1,
		Config:          config,
		logger:          logger,
	}
}

// Speciate partitions the population into species by genotype distance.
// Every surviving species first claims the individual closest to its old
// representative; the rest join the closest representative under the
// compatibility threshold or found a new species.
func (ss *SpeciesSet) Speciate(population map[int]*Individual, generation int) {
	if len(population) == 0 {
		ss.Species = make(map[int]*Species)
		ss.GenomeToSpecies = make(map[int]int)
		return
	}

	threshold := ss.Config.CompatibilityThreshold
	cache := NewDistanceCache()

	unspeciated := make(map[int]*Individual, len(population))
	for k, v := range population {
		unspeciated[k] = v
	}
	newRepresentatives := make(map[int]*Individual)
	newMembers := make(map[int][]int)

	for _, sid := range sortedKeys(ss.Species) {
		s := ss.Species[sid]
		if len(unspeciated) == 0 {
			break
		}
		if s.Representative == nil {
			ss.logger.Warn("species has no representative", slog.Int("species", sid))
			continue
		}

		var closest *Individual
		minDist := math.Inf(1)
		for _, key := range sortedKeys(unspeciated) {
			ind := unspeciated[key]
			if d := cache.Distance(s.Representative, ind); d < minDist {
				minDist = d
				closest = ind
			}
		}
		newRepresentatives[sid] = closest
		newMembers[sid] = []int{closest.Key}
		delete(unspeciated, closest.Key)
	}

	for _, key := range sortedKeys(unspeciated) {
		ind := unspeciated[key]

		bestSpecies := -1
		minDist := math.Inf(1)
		for _, sid := range sortedKeys(newRepresentatives) {
			d := cache.Distance(newRepresentatives[sid], ind)
			if d < threshold && d < minDist {
				minDist = d
				bestSpecies = sid
			}
		}

		if bestSpecies != -1 {
			newMembers[bestSpecies] = append(newMembers[bestSpecies], key)
			continue
		}
		sid := ss.Indexer
		ss.Indexer++
		newRepresentatives[sid] = ind
		newMembers[sid] = []int{key}
	}

	species := make(map[int]*Species, len(newRepresentatives))
	genomeToSpecies := make(map[int]int, len(population))
	for sid, representative := range newRepresentatives {
		s := ss.Species[sid]
		if s == nil {
			s = NewSpecies(sid, generation)
			ss.logger.Debug("created new species",
				slog.Int("species", sid),
				slog.Int("representative", representative.Key))
		}

		members := make(map[int]*Individual, len(newMembers[sid]))
		for _, key := range newMembers[sid] {
			members[key] = population[key]
			genomeToSpecies[key] = sid
		}
		s.Update(representative, members)
		species[sid] = s
	}
	ss.Species = species
	ss.GenomeToSpecies = genomeToSpecies

	if len(cache.Distances) > 0 {
		distances := make([]float64, 0, len(cache.Distances))
		for _, d := range cache.Distances {
			distances = append(distances, d)
		}
		ss.logger.Debug("speciation finished",
			slog.Int("species", len(species)),
			slog.Float64("mean_distance", Mean(distances)),
			slog.Float64("stdev_distance", Stdev(distances)),
			slog.Int("cache_hits", cache.Hits),
			slog.Int("cache_misses", cache.Misses))
	}
}

// GetSpeciesID returns the species ID for a given individual key.
func (ss *SpeciesSet) GetSpeciesID(key int) (int, bool) {
	sid, exists := ss.GenomeToSpecies[key]
	return sid, exists
}

// GetSpecies returns the Species for a given individual key.
func (ss *SpeciesSet) GetSpecies(key int) (*Species, bool) {
	sid, exists := ss.GenomeToSpecies[key]
	if !exists {
		return nil, false
	}
	s, exists := ss.Species[sid]
	return s, exists
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
