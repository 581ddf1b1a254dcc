package srs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestDefaultConstants(t *testing.T) {
	assert.Equal(t, 2.5, DefaultEaseFactor)
	assert.Equal(t, 1.3, MinEaseFactor)
	assert.Equal(t, 20, DefaultConfig().MaxDailyReviews)
}

func TestNewReviewItem(t *testing.T) {
	item := NewReviewItem("fractions", "1/2 + 1/4?", "3/4", testNow)

	assert.Equal(t, "fractions", item.ConceptKey)
	assert.Equal(t, DefaultEaseFactor, item.EaseFactor)
	assert.Equal(t, 1, item.Interval)
	assert.Zero(t, item.Repetitions)
	assert.True(t, item.IsDue(testNow))
	assert.Nil(t, item.LastReviewDate)
}

func TestSchedule_EaseFactorUpdate(t *testing.T) {
	tests := []struct {
		quality Quality
		wantEF  float64
	}{
		{QualityPerfect, 2.6},
		{QualityCorrectHesitation, 2.5},
		{QualityCorrectDifficult, 2.36},
		{QualityIncorrectFamiliar, 2.18},
		{QualityIncorrect, 1.96},
		{QualityBlackout, 1.7},
	}

	for _, tt := range tests {
		t.Run(tt.quality.String(), func(t *testing.T) {
			item := NewReviewItem("k", "q", "a", testNow)
			got, err := Schedule(item, tt.quality, testNow)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantEF, got.EaseFactor, 1e-9)
		})
	}
}

func TestSchedule_IntervalProgression(t *testing.T) {
	item := NewReviewItem("k", "q", "a", testNow)

	first, err := Schedule(item, QualityCorrectHesitation, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Repetitions)
	assert.Equal(t, 1, first.Interval)
	assert.Equal(t, testNow.AddDate(0, 0, 1), first.NextReviewDate)

	second, err := Schedule(first, QualityCorrectHesitation, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Repetitions)
	assert.Equal(t, 6, second.Interval)

	third, err := Schedule(second, QualityCorrectHesitation, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Repetitions)
	// round(6 * 2.5)
	assert.Equal(t, 15, third.Interval)
	assert.Equal(t, testNow.AddDate(0, 0, 15), third.NextReviewDate)
	assert.Equal(t, 3, third.CorrectCount)
	assert.Zero(t, third.IncorrectCount)
}

func TestSchedule_ForgetResets(t *testing.T) {
	for _, q := range []Quality{QualityBlackout, QualityIncorrect, QualityIncorrectFamiliar} {
		t.Run(q.String(), func(t *testing.T) {
			item := ReviewItem{
				ConceptKey:  "k",
				EaseFactor:  2.8,
				Interval:    42,
				Repetitions: 7,
			}

			got, err := Schedule(item, q, testNow)
			require.NoError(t, err)
			assert.Zero(t, got.Repetitions)
			assert.Equal(t, 1, got.Interval)
			assert.Equal(t, 1, got.IncorrectCount)
			assert.Zero(t, got.CorrectCount)
			assert.Equal(t, testNow.AddDate(0, 0, 1), got.NextReviewDate)
		})
	}
}

func TestSchedule_InvalidQuality(t *testing.T) {
	item := NewReviewItem("k", "q", "a", testNow)

	for _, q := range []Quality{-1, 6, 100} {
		got, err := Schedule(item, q, testNow)
		require.ErrorIs(t, err, ErrInvalidQualityRating)
		assert.Equal(t, item, got, "item must be untouched on error")
	}
}

func TestSchedule_DoesNotMutateInput(t *testing.T) {
	last := testNow.AddDate(0, 0, -3)
	item := ReviewItem{ConceptKey: "k", EaseFactor: 2.5, Interval: 6, Repetitions: 2, LastReviewDate: &last}
	snapshot := item.clone()

	_, err := Schedule(item, QualityPerfect, testNow)
	require.NoError(t, err)
	assert.Equal(t, snapshot, item)
	assert.Equal(t, last, *item.LastReviewDate)
}

func TestSchedule_Deterministic(t *testing.T) {
	item := ReviewItem{ConceptKey: "k", EaseFactor: 2.1, Interval: 9, Repetitions: 4}

	a, err := Schedule(item, QualityCorrectDifficult, testNow)
	require.NoError(t, err)
	b, err := Schedule(item, QualityCorrectDifficult, testNow)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSchedule_EaseFactorFloor(t *testing.T) {
	item := NewReviewItem("k", "q", "a", testNow)
	var err error
	for i := 0; i < 20; i++ {
		item, err = Schedule(item, QualityBlackout, testNow)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, item.EaseFactor, MinEaseFactor)
	}
	assert.Equal(t, MinEaseFactor, item.EaseFactor)
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality("4")
	require.NoError(t, err)
	assert.Equal(t, QualityCorrectHesitation, q)

	_, err = ParseQuality("7")
	assert.ErrorIs(t, err, ErrInvalidQualityRating)

	_, err = ParseQuality("good")
	assert.ErrorIs(t, err, ErrInvalidQualityRating)
}

func TestQuality_UnmarshalJSON(t *testing.T) {
	var payload struct {
		Quality Quality `json:"quality"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"quality":3}`), &payload))
	assert.Equal(t, QualityCorrectDifficult, payload.Quality)

	err := json.Unmarshal([]byte(`{"quality":9}`), &payload)
	assert.ErrorIs(t, err, ErrInvalidQualityRating)
}

func TestArchive(t *testing.T) {
	item := NewReviewItem("k", "q", "a", testNow)
	archived := item.Archive()

	assert.True(t, archived.Archived)
	assert.False(t, item.Archived)
	assert.False(t, archived.IsDue(testNow.AddDate(1, 0, 0)))
}

func TestDueItems(t *testing.T) {
	items := []ReviewItem{
		{ConceptKey: "future", NextReviewDate: testNow.Add(time.Hour), CorrectCount: 5},
		{ConceptKey: "overdue", NextReviewDate: testNow.AddDate(0, 0, -20), CorrectCount: 5},
		{ConceptKey: "weak", NextReviewDate: testNow, CorrectCount: 3, IncorrectCount: 5},
		{ConceptKey: "archived", NextReviewDate: testNow.AddDate(0, 0, -30), Archived: true},
		{ConceptKey: "fresh", NextReviewDate: testNow},
	}

	due, total := DueItems(items, testNow, 0, DefaultConfig())
	require.Equal(t, 3, total)
	require.Len(t, due, 3)
	assert.Equal(t, "overdue", due[0].ConceptKey)
	assert.Equal(t, "weak", due[1].ConceptKey)
	assert.Equal(t, "fresh", due[2].ConceptKey)

	limited, total := DueItems(items, testNow, 1, DefaultConfig())
	assert.Equal(t, 3, total)
	assert.Len(t, limited, 1)
}

func TestSummarize(t *testing.T) {
	reviewed := testNow.Add(-time.Hour)
	items := []ReviewItem{
		{ConceptKey: "a", Interval: 45, NextReviewDate: testNow.AddDate(0, 1, 0), CorrectCount: 4, IncorrectCount: 1, LastReviewDate: &reviewed},
		{ConceptKey: "b", Interval: 1, NextReviewDate: testNow, CorrectCount: 1, IncorrectCount: 4},
		{ConceptKey: "c", Interval: 1, NextReviewDate: testNow},
		{ConceptKey: "d", Archived: true, CorrectCount: 10},
	}

	stats := Summarize(items, testNow, time.UTC)
	assert.Equal(t, Stats{
		TotalItems:    3,
		DueToday:      2,
		ReviewedToday: 1,
		NewItems:      1,
		MasteredItems: 1,
		TotalReviews:  10,
		Accuracy:      50,
	}, stats)
}
