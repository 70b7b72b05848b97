package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := &vectorIndex{
		BuiltAt: time.Now(),
		Plants:  []Plant{{Name: "Фикус"}, {Name: "Монстера"}},
		Vectors: [][]float32{{1, 0}, {0, 1}},
	}
	require.NoError(t, saveIndex(dir, idx))

	loaded, err := loadIndex(dir)
	require.NoError(t, err)
	require.Equal(t, idx.Plants, loaded.Plants)
	require.Equal(t, idx.Vectors, loaded.Vectors)
}

func TestIndexFresh(t *testing.T) {
	plants := []Plant{{Name: "Фикус"}, {Name: "Монстера"}}

	for scenario, tc := range map[string]struct {
		idx  vectorIndex
		want bool
	}{
		"matching set": {
			idx: vectorIndex{
				BuiltAt: time.Now(),
				Plants:  []Plant{{Name: "Фикус"}, {Name: "Монстера"}},
				Vectors: [][]float32{{1}, {1}},
			},
			want: true,
		},
		"too old": {
			idx: vectorIndex{
				BuiltAt: time.Now().Add(-2 * maxIndexAge),
				Plants:  []Plant{{Name: "Фикус"}, {Name: "Монстера"}},
				Vectors: [][]float32{{1}, {1}},
			},
		},
		"different plants with the same count": {
			idx: vectorIndex{
				BuiltAt: time.Now(),
				Plants:  []Plant{{Name: "Кактус"}, {Name: "Пальма"}},
				Vectors: [][]float32{{1}, {1}},
			},
		},
		"reordered plants": {
			idx: vectorIndex{
				BuiltAt: time.Now(),
				Plants:  []Plant{{Name: "Монстера"}, {Name: "Фикус"}},
				Vectors: [][]float32{{1}, {1}},
			},
		},
		"vector count mismatch": {
			idx: vectorIndex{
				BuiltAt: time.Now(),
				Plants:  []Plant{{Name: "Фикус"}, {Name: "Монстера"}},
				Vectors: [][]float32{{1}},
			},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			require.Equal(t, tc.want, tc.idx.fresh(plants))
		})
	}
}

func TestBuildVectorsReembedsChangedCatalog(t *testing.T) {
	dir := t.TempDir()
	stale := &vectorIndex{
		BuiltAt: time.Now(),
		Plants:  []Plant{{Name: "Фикус"}, {Name: "Монстера"}},
		Vectors: [][]float32{{1, 0}, {0, 1}},
	}
	require.NoError(t, saveIndex(dir, stale))

	// Same plant count, different plants: the stored vectors must not be
	// paired with the new list.
	e := &fakeEmbedder{dim: 2}
	c := New(Options{DataDir: dir, Embedder: e})

	vectors, err := c.buildVectors(context.Background(), []Plant{{Name: "Кактус"}, {Name: "Пальма"}})
	require.NoError(t, err)
	require.Equal(t, 1, e.calls)
	require.Len(t, vectors, 2)
	require.NotEqual(t, stale.Vectors, vectors)

	// The rebuilt index replaces the stale one on disk.
	loaded, err := loadIndex(dir)
	require.NoError(t, err)
	require.Equal(t, "Кактус", loaded.Plants[0].Name)
}

func TestBuildVectorsReusesMatchingIndex(t *testing.T) {
	dir := t.TempDir()
	plants := []Plant{{Name: "Фикус"}, {Name: "Монстера"}}
	idx := &vectorIndex{
		BuiltAt: time.Now(),
		Plants:  plants,
		Vectors: [][]float32{{1, 0}, {0, 1}},
	}
	require.NoError(t, saveIndex(dir, idx))

	e := &fakeEmbedder{dim: 2}
	c := New(Options{DataDir: dir, Embedder: e})

	vectors, err := c.buildVectors(context.Background(), plants)
	require.NoError(t, err)
	require.Zero(t, e.calls)
	require.Equal(t, idx.Vectors, vectors)
}
