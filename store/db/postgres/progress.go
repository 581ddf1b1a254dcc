package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/learnengine/store"
)

func (d *DB) GetProgress(ctx context.Context, find *store.FindProgress) (*store.Progress, error) {
	list, err := d.ListProgress(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListProgress(ctx context.Context, find *store.FindProgress) ([]*store.Progress, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.StudentID; v != nil {
		where, args = append(where, "student_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CourseID; v != nil {
		where, args = append(where, "course_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT student_id, course_id, version, payload::text, created_ts, updated_ts
		FROM progress
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY student_id ASC, course_id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	list := []*store.Progress{}
	for rows.Next() {
		p := &store.Progress{}
		var payload string
		if err := rows.Scan(&p.StudentID, &p.CourseID, &p.Version, &payload, &p.CreatedTs, &p.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		if err := p.DecodePayload(payload); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}
	return list, nil
}

func (d *DB) CreateProgress(ctx context.Context, create *store.Progress) (*store.Progress, error) {
	payload, err := create.EncodePayload()
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	stmt := `INSERT INTO progress (student_id, course_id, version, payload, created_ts, updated_ts)
		VALUES ($1, $2, 1, $3::jsonb, $4, $5)
		ON CONFLICT (student_id, course_id) DO NOTHING`
	result, err := d.db.ExecContext(ctx, stmt, create.StudentID, create.CourseID, payload, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrVersionConflict
	}

	saved := *create
	saved.Version = 1
	saved.CreatedTs = now
	saved.UpdatedTs = now
	return &saved, nil
}

func (d *DB) UpdateProgress(ctx context.Context, update *store.Progress) (*store.Progress, error) {
	payload, err := update.EncodePayload()
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	stmt := `UPDATE progress SET version = version + 1, payload = $1::jsonb, updated_ts = $2
		WHERE student_id = $3 AND course_id = $4 AND version = $5`
	result, err := d.db.ExecContext(ctx, stmt, payload, now, update.StudentID, update.CourseID, update.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	if affected == 0 {
		return nil, store.ErrVersionConflict
	}

	saved := *update
	saved.Version = update.Version + 1
	saved.UpdatedTs = now
	return &saved, nil
}
