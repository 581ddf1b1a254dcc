package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/learnengine/store"
)

func (d *DB) CreateResponse(ctx context.Context, create *store.Response) (*store.Response, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	create.CreatedTs = time.Now().Unix()
	stmt := `INSERT INTO response (uid, student_id, course_id, block_id, concept_key, is_correct, score, max_score, submitted_ms, created_ts)
		VALUES (` + placeholders(10) + `)
		ON CONFLICT (uid) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.UID, create.StudentID, create.CourseID, create.BlockID, create.ConceptKey,
		create.IsCorrect, create.Score, create.MaxScore, create.SubmittedAt.UnixMilli(), create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}
	return create, nil
}

func (d *DB) ListResponses(ctx context.Context, find *store.FindResponse) ([]*store.Response, error) {
	query := `SELECT uid, student_id, course_id, block_id, concept_key, is_correct, score, max_score, submitted_ms, created_ts
		FROM response
		WHERE student_id = $1 AND course_id = $2
		ORDER BY submitted_ms ASC, seq ASC`
	rows, err := d.db.QueryContext(ctx, query, find.StudentID, find.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	list := []*store.Response{}
	for rows.Next() {
		r := &store.Response{}
		var submittedMs int64
		if err := rows.Scan(
			&r.UID, &r.StudentID, &r.CourseID, &r.BlockID, &r.ConceptKey,
			&r.IsCorrect, &r.Score, &r.MaxScore, &submittedMs, &r.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		r.SubmittedAt = time.UnixMilli(submittedMs)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return list, nil
}
