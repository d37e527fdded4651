package archive

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	records     map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.records = make(map[string]Record)
	return nil
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.records[record.ID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Record{}, false, ErrNotInitialized
	}
	record, ok := s.records[id]
	return record, ok, nil
}

func (s *MemoryStore) Best(_ context.Context, runID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]Record, 0)
	for _, r := range s.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fitness != out[j].Fitness {
			return out[i].Fitness > out[j].Fitness
		}
		if out[i].Generation != out[j].Generation {
			return out[i].Generation < out[j].Generation
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Runs(_ context.Context) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	byRun := make(map[string]*RunSummary)
	generations := make(map[string]map[int]struct{})
	for _, r := range s.records {
		sum, ok := byRun[r.RunID]
		if !ok {
			sum = &RunSummary{RunID: r.RunID, BestFitness: r.Fitness}
			byRun[r.RunID] = sum
			generations[r.RunID] = make(map[int]struct{})
		}
		sum.Records++
		sum.BestFitness = max(sum.BestFitness, r.Fitness)
		generations[r.RunID][r.Generation] = struct{}{}
	}
	out := make([]RunSummary, 0, len(byRun))
	for id, sum := range byRun {
		sum.Generations = len(generations[id])
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
