package cgp

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Config stores the configuration parameters for a CGP run.
type Config struct {
	CGP          GenotypeConfig
	Evolution    EvolutionConfig
	Reproduction ReproductionConfig
	SpeciesSet   SpeciesSetConfig
	Stagnation   StagnationConfig
}

// GenotypeConfig holds the topology of every genotype in the run and the
// functions mutation may draw from.
type GenotypeConfig struct {
	NumInputs       int      `ini:"num_inputs"`
	NumOutputs      int      `ini:"num_outputs"`
	NumLayers       int      `ini:"num_layers"`
	NodesPerLayer   int      `ini:"nodes_per_layer"`
	LayersBack      int      `ini:"layers_back"`
	FunctionOptions []string `ini:"function_options" delim:" "` // empty means the whole catalog

	// Derived
	FunctionIndices []int `ini:"-"`
}

// Parameters returns the topology described by the section.
func (gc GenotypeConfig) Parameters() Parameters {
	return Parameters{
		Inputs:        gc.NumInputs,
		Outputs:       gc.NumOutputs,
		Layers:        gc.NumLayers,
		NodesPerLayer: gc.NodesPerLayer,
		LayersBack:    gc.LayersBack,
	}
}

// EvolutionConfig holds the population level parameters.
type EvolutionConfig struct {
	PopSize              int     `ini:"pop_size"`
	FitnessCriterion     string  `ini:"fitness_criterion"` // "max", "min" or "mean"
	FitnessThreshold     float64 `ini:"fitness_threshold"`
	NoFitnessTermination bool    `ini:"no_fitness_termination"`
	ResetOnExtinction    bool    `ini:"reset_on_extinction"`
	ConnectionMutateRate float64 `ini:"connection_mutate_rate"`
	FunctionMutateRate   float64 `ini:"function_mutate_rate"`
	InitialConnection    float64 `ini:"initial_connection_rate"`
	CrossoverRate        float64 `ini:"crossover_rate"`
	Seed                 int64   `ini:"seed"` // 0 seeds from the clock
}

// ReproductionConfig holds parameters related to reproduction.
type ReproductionConfig struct {
	Elitism           int     `ini:"elitism"`
	SurvivalThreshold float64 `ini:"survival_threshold"` // default 0.2
	MinSpeciesSize    int     `ini:"min_species_size"`   // default 1
}

// SpeciesSetConfig holds parameters related to speciation.
type SpeciesSetConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold"` // normalized genotype distance
}

// StagnationConfig holds parameters related to species stagnation.
type StagnationConfig struct {
	SpeciesFitnessFunc string `ini:"species_fitness_func"` // default "mean"
	MaxStagnation      int    `ini:"max_stagnation"`       // default 15
	SpeciesElitism     int    `ini:"species_elitism"`
}

var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:         true,
	UnescapeValueCommentSymbols: true,
}

// LoadConfig loads configuration parameters from an INI file.
func LoadConfig(filePath string) (*Config, error) {
	f, err := ini.LoadSources(loadOptions, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}
	return configFromFile(f)
}

// ParseConfig parses configuration parameters from INI text.
func ParseConfig(data []byte) (*Config, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return configFromFile(f)
}

func configFromFile(f *ini.File) (*Config, error) {
	config := &Config{}

	sections := []struct {
		name   string
		target any
	}{
		{"CGP", &config.CGP},
		{"Evolution", &config.Evolution},
		{"Reproduction", &config.Reproduction},
		{"SpeciesSet", &config.SpeciesSet},
		{"Stagnation", &config.Stagnation},
	}
	for _, s := range sections {
		if err := f.Section(s.name).MapTo(s.target); err != nil {
			return nil, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	config.Evolution.FitnessCriterion = cleanIniString(config.Evolution.FitnessCriterion)
	config.Stagnation.SpeciesFitnessFunc = cleanIniString(config.Stagnation.SpeciesFitnessFunc)
	options := config.CGP.FunctionOptions[:0]
	for _, opt := range config.CGP.FunctionOptions {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	config.CGP.FunctionOptions = options

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyDefaults fills the values an INI file is allowed to omit.
func (c *Config) applyDefaults() {
	if c.CGP.LayersBack == 0 {
		c.CGP.LayersBack = 1
	}
	if c.Evolution.FitnessCriterion == "" {
		c.Evolution.FitnessCriterion = "max"
	}
	if c.Reproduction.MinSpeciesSize == 0 {
		c.Reproduction.MinSpeciesSize = 1
	}
	if c.Reproduction.SurvivalThreshold == 0 {
		c.Reproduction.SurvivalThreshold = 0.2
	}
	if c.Stagnation.SpeciesFitnessFunc == "" {
		c.Stagnation.SpeciesFitnessFunc = "mean"
	}
	if c.Stagnation.MaxStagnation == 0 {
		c.Stagnation.MaxStagnation = 15
	}
}

// Validate checks every section and resolves function_options to catalog
// indices.
func (c *Config) Validate() error {
	if err := c.CGP.Parameters().Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	c.CGP.FunctionIndices = c.CGP.FunctionIndices[:0]
	for _, name := range c.CGP.FunctionOptions {
		idx, err := FunctionByName(name)
		if err != nil {
			return fmt.Errorf("config error: function_options: %w", err)
		}
		c.CGP.FunctionIndices = append(c.CGP.FunctionIndices, idx)
	}
	if len(c.CGP.FunctionIndices) == 0 {
		c.CGP.FunctionIndices = make([]int, NumFunctions())
		for i := range c.CGP.FunctionIndices {
			c.CGP.FunctionIndices[i] = i
		}
	}

	if c.Evolution.PopSize <= 0 {
		return fmt.Errorf("config error: pop_size must be positive")
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"connection_mutate_rate", c.Evolution.ConnectionMutateRate},
		{"function_mutate_rate", c.Evolution.FunctionMutateRate},
		{"initial_connection_rate", c.Evolution.InitialConnection},
		{"crossover_rate", c.Evolution.CrossoverRate},
		{"survival_threshold", c.Reproduction.SurvivalThreshold},
	}
	for _, r := range rates {
		if checkRate(r.value) != nil {
			return fmt.Errorf("config error: %s must be between 0 and 1", r.name)
		}
	}
	if c.Reproduction.Elitism < 0 {
		return fmt.Errorf("config error: elitism cannot be negative")
	}
	if c.Reproduction.MinSpeciesSize <= 0 {
		return fmt.Errorf("config error: min_species_size must be positive")
	}
	if c.SpeciesSet.CompatibilityThreshold < 0 {
		return fmt.Errorf("config error: compatibility_threshold cannot be negative")
	}
	if c.Stagnation.MaxStagnation <= 0 {
		return fmt.Errorf("config error: max_stagnation must be positive")
	}
	if c.Stagnation.SpeciesElitism < 0 {
		return fmt.Errorf("config error: species_elitism cannot be negative")
	}

	validCriteria := map[string]bool{"max": true, "min": true, "mean": true}
	if !validCriteria[strings.ToLower(c.Evolution.FitnessCriterion)] {
		return fmt.Errorf("config error: invalid fitness_criterion '%s', must be one of 'max', 'min', 'mean'", c.Evolution.FitnessCriterion)
	}
	if _, ok := StatFunctions[strings.ToLower(c.Stagnation.SpeciesFitnessFunc)]; !ok {
		return fmt.Errorf("config error: invalid species_fitness_func '%s'", c.Stagnation.SpeciesFitnessFunc)
	}
	return nil
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
