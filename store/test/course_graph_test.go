package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/learnengine/internal/profile"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/performance"
	"github.com/hrygo/learnengine/store"
)

const courseYAML = `
course_id: go-101
nodes:
  - id: n1
    concept_key: variables
    module_id: m1
    difficulty: 2
    estimated_time: 10
  - id: n2
    concept_key: functions
    module_id: m2
    prerequisites: [n1]
    difficulty: 3
    estimated_time: 15
branches:
  - id: b1
    condition:
      type: accuracy_below
      threshold: 60
    target_module_id: m1
    branch_type: remedial
`

func TestCourseGraphRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.GetCourseGraph(ctx, "go-101")
	require.ErrorIs(t, err, store.ErrNotFound)

	g, err := path.ParseGraph([]byte(courseYAML))
	require.NoError(t, err)
	require.NoError(t, ts.SaveCourseGraph(ctx, g))

	got, err := ts.GetCourseGraph(ctx, "go-101")
	require.NoError(t, err)
	assert.Equal(t, g.Nodes, got.Nodes)
	require.Len(t, got.Branches, 1)
	assert.Equal(t, path.AccuracyBelow{Threshold: 60}, got.Branches[0].Condition)

	// Second read is served from cache.
	_, err = ts.GetCourseGraph(ctx, "go-101")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.CacheStats().L1Hits, int64(1))
}

func TestCourseGraphSaveInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	g, err := path.ParseGraph([]byte(courseYAML))
	require.NoError(t, err)
	require.NoError(t, ts.SaveCourseGraph(ctx, g))
	_, err = ts.GetCourseGraph(ctx, "go-101")
	require.NoError(t, err)

	g.Nodes[1].Difficulty = 5
	require.NoError(t, ts.SaveCourseGraph(ctx, g))
	got, err := ts.GetCourseGraph(ctx, "go-101")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Nodes[1].Difficulty)
}

func TestCourseGraphRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	g := &path.Graph{CourseID: "empty"}
	require.ErrorIs(t, ts.SaveCourseGraph(ctx, g), path.ErrInvalidGraph)
}

func TestResponsesOrderedBySubmission(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		_, err := ts.CreateResponse(ctx, &store.Response{
			StudentID: "s1",
			CourseID:  "c1",
			Response: performance.Response{
				BlockID:     string(rune('a' + i)),
				ConceptKey:  "loops",
				IsCorrect:   i%2 == 0,
				Score:       1,
				MaxScore:    1,
				SubmittedAt: base.Add(offset),
			},
		})
		require.NoError(t, err)
	}

	list, err := ts.ListResponses(ctx, &store.FindResponse{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].BlockID)
	assert.Equal(t, "c", list[1].BlockID)
	assert.Equal(t, "a", list[2].BlockID)
	assert.True(t, list[2].IsCorrect)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), list[2].SubmittedAt.UnixMilli())
}

func TestResponsesSameMillisecondKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		_, err := ts.CreateResponse(ctx, &store.Response{
			StudentID: "s1",
			CourseID:  "c1",
			Response: performance.Response{
				BlockID:     string(rune('a' + i)),
				IsCorrect:   i == 5,
				Score:       1,
				MaxScore:    1,
				SubmittedAt: at,
			},
		})
		require.NoError(t, err)
	}

	list, err := ts.ListResponses(ctx, &store.FindResponse{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	blocks := make([]string, len(list))
	for i, r := range list {
		blocks[i] = r.BlockID
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, blocks)
	assert.True(t, list[5].IsCorrect)
}

func TestCreateResponseIsIdempotentOnUID(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for _, block := range []string{"first", "second"} {
		_, err := ts.CreateResponse(ctx, &store.Response{
			UID:       "resp-1",
			StudentID: "s1",
			CourseID:  "c1",
			Response:  performance.Response{BlockID: block, MaxScore: 1, SubmittedAt: at},
		})
		require.NoError(t, err)
	}

	list, err := ts.ListResponses(ctx, &store.FindResponse{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].BlockID)
}

func TestDemoSeed(t *testing.T) {
	if getDriverFromEnv() != "sqlite" {
		t.Skip("demo seed test runs on sqlite")
	}
	ctx := context.Background()
	ts := NewTestingStore(ctx, t, func(p *profile.Profile) { p.Mode = "demo" })

	g, err := ts.GetCourseGraph(ctx, "demo-go-basics")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 5)
	assert.Len(t, g.Branches, 2)
}
