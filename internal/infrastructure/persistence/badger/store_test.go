package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-series-rag/internal/config"
	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&config.BadgerConfig{InMemory: true, MaxRetries: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &entity.Chapter{
		ID: "a1", SeriesID: "a1", ChapterNumber: 1, Title: "第1章",
		Content: "开篇", Embedding: []float32{0.1, 0.2},
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Put(ctx, c))
	require.NoError(t, s.Put(ctx, c))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{0.1, 0.2}, all[0].Embedding)
	assert.True(t, c.Date.Equal(all[0].Date))

	series, err := s.GetBySeries(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	c, err := s.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestPutMovesSeriesIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &entity.Chapter{ID: "x", SeriesID: "x", ChapterNumber: 1}))
	require.NoError(t, s.Put(ctx, &entity.Chapter{ID: "x", SeriesID: "y", ChapterNumber: 2}))

	old, err := s.GetBySeries(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := s.GetBySeries(ctx, "y")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, 2, moved[0].ChapterNumber)
}

func TestGetBySeriesDoesNotMatchPrefixSeries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &entity.Chapter{ID: "a", SeriesID: "abc", ChapterNumber: 1}))
	require.NoError(t, s.Put(ctx, &entity.Chapter{ID: "b", SeriesID: "ab", ChapterNumber: 1}))

	got, err := s.GetBySeries(ctx, "ab")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestAppendAssignsNumberAndPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &entity.Chapter{ID: "s1", Content: "one"}
	require.NoError(t, s.Append(ctx, first))
	assert.Equal(t, "s1", first.SeriesID)
	assert.Equal(t, 1, first.ChapterNumber)
	assert.Equal(t, "第1章", first.Title)
	assert.Empty(t, first.PreviousID)

	second := &entity.Chapter{ID: "s1-2", SeriesID: "s1", Content: "two"}
	require.NoError(t, s.Append(ctx, second))
	assert.Equal(t, 2, second.ChapterNumber)
	assert.Equal(t, "s1", second.PreviousID)
	assert.Equal(t, "第2章", second.Title)
}

func TestAppendContinuesAfterMigratedChapters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &entity.Chapter{ID: "m1", SeriesID: "m1", ChapterNumber: 1}))
	require.NoError(t, s.Put(ctx, &entity.Chapter{ID: "m3", SeriesID: "m1", ChapterNumber: 3}))

	next := &entity.Chapter{ID: "m4", SeriesID: "m1"}
	require.NoError(t, s.Append(ctx, next))
	assert.Equal(t, 4, next.ChapterNumber)
	assert.Equal(t, "m3", next.PreviousID)
}

func TestConcurrentAppendProducesUniqueNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, &entity.Chapter{ID: "head"}))

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Append(ctx, &entity.Chapter{ID: fmt.Sprintf("c%02d", i), SeriesID: "head"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	chapters, err := s.GetBySeries(ctx, "head")
	require.NoError(t, err)
	require.Len(t, chapters, writers+1)

	numbers := make([]int, 0, len(chapters))
	for _, c := range chapters {
		numbers = append(numbers, c.ChapterNumber)
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		assert.Equal(t, i+1, n)
	}
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	s, err := Open(&config.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStorageError))
}
