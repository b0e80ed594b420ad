package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneCopiesEmbedding(t *testing.T) {
	c := &Chapter{ID: "a", Embedding: []float32{1, 2}}
	cp := c.Clone()
	cp.Embedding[0] = 9

	assert.Equal(t, float32(1), c.Embedding[0])
	assert.Nil(t, (*Chapter)(nil).Clone())
}

func TestSortByChapterNumberStable(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chapters := []*Chapter{
		{ID: "c3", ChapterNumber: 3, Date: base},
		{ID: "c1b", ChapterNumber: 1, Date: base.Add(time.Minute)},
		{ID: "c2", ChapterNumber: 2, Date: base},
		{ID: "c1a", ChapterNumber: 1, Date: base},
	}
	SortByChapterNumber(chapters)

	ids := make([]string, 0, len(chapters))
	for _, c := range chapters {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c1a", "c1b", "c2", "c3"}, ids)
}

func TestGroupBySeries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	long := strings.Repeat("字", 150)
	chapters := []*Chapter{
		{ID: "s1", SeriesID: "s1", ChapterNumber: 1, Type: StoryTypeWuxia, Content: "first", Date: base},
		{ID: "s1-2", SeriesID: "s1", ChapterNumber: 2, Type: StoryTypeWuxia, Content: long, Date: base.Add(2 * time.Hour)},
		{ID: "x1", SeriesID: "x1", ChapterNumber: 1, Type: StoryTypeKehuan, Content: "other", Date: base.Add(time.Hour)},
		{ID: "legacy", Content: "untagged", Date: base.Add(-time.Hour)},
	}

	groups := GroupBySeries(chapters)
	require.Len(t, groups, 3)

	assert.Equal(t, "s1", groups[0].ID)
	assert.Equal(t, 2, groups[0].ChapterCount)
	assert.Equal(t, 100, len([]rune(groups[0].Preview)))
	assert.Equal(t, "x1", groups[1].ID)
	assert.Equal(t, "legacy", groups[2].ID)
}

func TestStoryTypeLabel(t *testing.T) {
	assert.Equal(t, "仙侠", StoryTypeXianxia.Label())
	assert.True(t, StoryTypeQihuan.Known())
	assert.Equal(t, "steampunk", StoryType("steampunk").Label())
	assert.False(t, StoryType("steampunk").Known())
}
