package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db")),
	}
}

func record(id, run string, gen int, fitness float64) Record {
	return Record{
		ID:         id,
		RunID:      run,
		Generation: gen,
		Fitness:    fitness,
		Genotype:   "1,1,0,0,1;1,0:",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, gen, 0, time.UTC),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			want := record("g1", "run-a", 3, 2.5)
			require.NoError(t, store.Save(ctx, want))

			got, ok, err := store.Get(ctx, "g1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.RunID, got.RunID)
			assert.Equal(t, want.Generation, got.Generation)
			assert.Equal(t, want.Fitness, got.Fitness)
			assert.Equal(t, want.Genotype, got.Genotype)
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

			_, ok, err = store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			// Saving the same id again overwrites.
			want.Fitness = 4
			require.NoError(t, store.Save(ctx, want))
			got, _, err = store.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, 4.0, got.Fitness)
		})
	}
}

func TestStoreBestAndRuns(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = store.Close() })

			for _, r := range []Record{
				record("a1", "run-a", 1, 1.0),
				record("a2", "run-a", 2, 3.0),
				record("a3", "run-a", 3, 2.0),
				record("a4", "run-a", 3, 3.0),
				record("b1", "run-b", 1, 0.5),
			} {
				require.NoError(t, store.Save(ctx, r))
			}

			best, err := store.Best(ctx, "run-a", 2)
			require.NoError(t, err)
			require.Len(t, best, 2)
			assert.Equal(t, "a2", best[0].ID, "ties go to the earlier generation")
			assert.Equal(t, "a4", best[1].ID)

			all, err := store.Best(ctx, "run-a", 0)
			require.NoError(t, err)
			assert.Len(t, all, 4)

			none, err := store.Best(ctx, "run-z", 5)
			require.NoError(t, err)
			assert.Empty(t, none)

			runs, err := store.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []RunSummary{
				{RunID: "run-a", Records: 4, Generations: 3, BestFitness: 3.0},
				{RunID: "run-b", Records: 1, Generations: 1, BestFitness: 0.5},
			}, runs)
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(ctx, record("x", "r", 0, 0)), ErrNotInitialized)
			_, _, err := store.Get(ctx, "x")
			assert.ErrorIs(t, err, ErrNotInitialized)
			_, err = store.Best(ctx, "r", 1)
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.Save(ctx, record("g1", "run-a", 1, 1.5)))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init(ctx))
	t.Cleanup(func() { _ = second.Close() })
	got, ok, err := second.Get(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.5, got.Fitness)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = NewStore("postgres", "")
	assert.Error(t, err)

	assert.Error(t, NewSQLiteStore("").Init(context.Background()))
}
