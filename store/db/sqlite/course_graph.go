package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/learnengine/store"
)

func (d *DB) UpsertCourseGraph(ctx context.Context, upsert *store.CourseGraph) (*store.CourseGraph, error) {
	upsert.UpdatedTs = time.Now().Unix()
	stmt := `INSERT INTO course_graph (course_id, payload, updated_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (course_id) DO UPDATE SET payload = excluded.payload, updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.CourseID, string(upsert.Payload), upsert.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to upsert course graph: %w", err)
	}
	return upsert, nil
}

func (d *DB) GetCourseGraph(ctx context.Context, courseID string) (*store.CourseGraph, error) {
	cg := &store.CourseGraph{}
	var payload string
	err := d.db.QueryRowContext(ctx,
		"SELECT course_id, payload, updated_ts FROM course_graph WHERE course_id = ?", courseID,
	).Scan(&cg.CourseID, &payload, &cg.UpdatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course graph: %w", err)
	}
	cg.Payload = []byte(payload)
	return cg, nil
}
