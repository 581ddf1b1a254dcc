package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/store"
)

func TestReviewItemUpsert(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	item := &store.ReviewItem{
		StudentID:  "s1",
		ReviewItem: srs.NewReviewItem("loops", "What is a for loop?", "Go's only loop", now),
	}
	created, err := ts.UpsertReviewItem(ctx, item)
	require.NoError(t, err)
	require.NotEmpty(t, created.UID)
	uid := created.UID

	scheduled, err := srs.Schedule(created.ReviewItem, srs.Quality(5), now)
	require.NoError(t, err)
	_, err = ts.UpsertReviewItem(ctx, &store.ReviewItem{StudentID: "s1", ReviewItem: scheduled})
	require.NoError(t, err)

	got, err := ts.GetReviewItem(ctx, "s1", "loops")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uid, got.UID, "upsert keeps the original row")
	assert.Equal(t, 1, got.Repetitions)
	assert.Equal(t, 1, got.CorrectCount)
	assert.Equal(t, scheduled.NextReviewDate.Unix(), got.NextReviewDate.Unix())
	require.NotNil(t, got.LastReviewDate)
	assert.Equal(t, now.Unix(), got.LastReviewDate.Unix())

	missing, err := ts.GetReviewItem(ctx, "s1", "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReviewItemListFilters(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	due := srs.NewReviewItem("due", "q", "a", now.Add(-time.Hour))
	later := srs.NewReviewItem("later", "q", "a", now.Add(48*time.Hour))
	archived := srs.NewReviewItem("archived", "q", "a", now.Add(-time.Hour)).Archive()
	for _, it := range []srs.ReviewItem{due, later, archived} {
		_, err := ts.UpsertReviewItem(ctx, &store.ReviewItem{StudentID: "s1", ReviewItem: it})
		require.NoError(t, err)
	}
	_, err := ts.UpsertReviewItem(ctx, &store.ReviewItem{StudentID: "s2", ReviewItem: due})
	require.NoError(t, err)

	student := "s1"
	all, err := ts.ListReviewItems(ctx, &store.FindReviewItem{StudentID: &student})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	withArchived, err := ts.ListReviewItems(ctx, &store.FindReviewItem{StudentID: &student, IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, withArchived, 3)

	dueOnly, err := ts.ListReviewItems(ctx, &store.FindReviewItem{StudentID: &student, DueBefore: &now})
	require.NoError(t, err)
	require.Len(t, dueOnly, 1)
	assert.Equal(t, "due", dueOnly[0].ConceptKey)
}
