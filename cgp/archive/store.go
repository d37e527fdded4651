// Package archive persists evolved genotypes so runs can be inspected and
// resumed from their best individuals.
package archive

import (
	"context"
	"errors"
	"time"
)

// ErrNotInitialized is returned by operations on a store before Init.
var ErrNotInitialized = errors.New("store is not initialized")

// Record is one archived genotype. Genotype holds the codec text, so the
// archive does not depend on the genotype package.
type Record struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Generation int       `json:"generation"`
	Fitness    float64   `json:"fitness"`
	Genotype   string    `json:"genotype"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunSummary aggregates the records of one run.
type RunSummary struct {
	RunID       string  `json:"run_id"`
	Records     int     `json:"records"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"best_fitness"`
}

// Store defines persistence operations for archived genotypes.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	// Best returns up to limit records of a run, fittest first. A limit
	// of 0 or less returns every record.
	Best(ctx context.Context, runID string, limit int) ([]Record, error)
	Runs(ctx context.Context) ([]RunSummary, error)
	Close() error
}
