package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/pkg/errors"
)

func TestRowRoundTripKeepsOptionalFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &entity.Chapter{
		ID: "b", SeriesID: "a", ChapterNumber: 2, Title: "第2章",
		Type: entity.StoryTypeWuxia, Content: "剑气", Embedding: []float32{1, 0, 0.5},
		PreviousID: "a", Date: now,
	}

	row := toRow(c)
	require.NotNil(t, row.Embedding)
	require.NotNil(t, row.PreviousID)
	assert.Equal(t, c, row.toEntity())
}

func TestRowWithoutEmbeddingStoresNull(t *testing.T) {
	row := toRow(&entity.Chapter{ID: "a", SeriesID: "a", ChapterNumber: 1})

	assert.Nil(t, row.Embedding)
	assert.Nil(t, row.PreviousID)
	assert.Empty(t, row.toEntity().Embedding)
}

func TestWrapStorageErrorMarksUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "idx_chapters_series_number"}
	err := wrapStorageError(fmt.Errorf("insert: %w", pgErr), "failed to append chapter")

	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeStorageError, appErr.Code)
	assert.Contains(t, appErr.Detail, "idx_chapters_series_number")

	plain := errors.AsAppError(wrapStorageError(fmt.Errorf("boom"), "x"))
	assert.Empty(t, plain.Detail)
}
