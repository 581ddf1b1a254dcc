package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rc := NewRequestContextWithID(logger, "req-1", "review_concept", "stu-42", "go-101")
	rc.Error("review failed", errors.New("bad rating"), slog.Int(LogFieldAttempt, 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, "review_concept", entry[LogFieldOperation])
	assert.Equal(t, "stu-42", entry[LogFieldStudentID])
	assert.Equal(t, "go-101", entry[LogFieldCourseID])
	assert.Equal(t, "bad rating", entry["error"])
	assert.EqualValues(t, 2, entry[LogFieldAttempt])

	buf.Reset()
	rc.Done()
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, LogFieldDuration)
}

func TestRequestContext_GeneratedIDAndContext(t *testing.T) {
	rc := NewRequestContext(nil, "get_progress", "stu-1", "")
	assert.Len(t, rc.RequestID, 36)
	assert.NotNil(t, rc.Logger)

	ctx := WithRequestContext(context.Background(), rc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(10)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordRequest("review_concept")
			m.RecordDuration("review_concept", time.Duration(i+1)*time.Millisecond)
			if i%4 == 0 {
				m.RecordFailure("review_concept")
			}
		}(i)
	}
	wg.Wait()
	m.RecordConflictRetry()

	snap := m.Snapshot()
	assert.EqualValues(t, 20, snap.RequestTotal)
	assert.EqualValues(t, 5, snap.RequestFailed)
	assert.EqualValues(t, 1, snap.ConflictRetries)
	assert.Equal(t, 10, snap.DurationCount)
	assert.Equal(t, 75.0, snap.SuccessRate())

	op := snap.Operations["review_concept"]
	require.NotNil(t, op)
	assert.EqualValues(t, 20, op.ExecutionCount)
	assert.EqualValues(t, 210, op.TotalDuration)
	assert.EqualValues(t, 10, op.AverageDuration)

	m.Reset()
	assert.Equal(t, 100.0, m.Snapshot().SuccessRate())
}
