package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/learnengine/store"
)

func (d *DB) UpsertReviewItem(ctx context.Context, upsert *store.ReviewItem) (*store.ReviewItem, error) {
	if upsert.UID == "" {
		upsert.UID = shortuuid.New()
	}
	now := time.Now().Unix()
	fields := []string{
		"uid", "student_id", "concept_key", "question", "answer",
		"ease_factor", "interval_days", "repetitions", "next_review_ts", "last_review_ts",
		"correct_count", "incorrect_count", "archived", "created_ts", "updated_ts",
	}
	args := []any{
		upsert.UID, upsert.StudentID, upsert.ConceptKey, upsert.Question, upsert.Answer,
		upsert.EaseFactor, upsert.Interval, upsert.Repetitions, upsert.NextReviewDate.Unix(), nullUnix(upsert.LastReviewDate),
		upsert.CorrectCount, upsert.IncorrectCount, upsert.Archived, now, now,
	}

	stmt := `INSERT INTO review_item (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (student_id, concept_key) DO UPDATE SET
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			ease_factor = EXCLUDED.ease_factor,
			interval_days = EXCLUDED.interval_days,
			repetitions = EXCLUDED.repetitions,
			next_review_ts = EXCLUDED.next_review_ts,
			last_review_ts = EXCLUDED.last_review_ts,
			correct_count = EXCLUDED.correct_count,
			incorrect_count = EXCLUDED.incorrect_count,
			archived = EXCLUDED.archived,
			updated_ts = EXCLUDED.updated_ts
		RETURNING uid, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&upsert.UID, &upsert.CreatedTs, &upsert.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to upsert review item: %w", err)
	}
	return upsert, nil
}

func (d *DB) ListReviewItems(ctx context.Context, find *store.FindReviewItem) ([]*store.ReviewItem, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.StudentID; v != nil {
		where, args = append(where, "student_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ConceptKey; v != nil {
		where, args = append(where, "concept_key = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "next_review_ts <= "+placeholder(len(args)+1)), append(args, v.Unix())
	}
	if !find.IncludeArchived {
		where = append(where, "archived = FALSE")
	}

	query := `SELECT uid, student_id, concept_key, question, answer,
			ease_factor, interval_days, repetitions, next_review_ts, last_review_ts,
			correct_count, incorrect_count, archived, created_ts, updated_ts
		FROM review_item
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY next_review_ts ASC, concept_key ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}
	defer rows.Close()

	list := []*store.ReviewItem{}
	for rows.Next() {
		item := &store.ReviewItem{}
		var nextReviewTs int64
		var lastReviewTs sql.NullInt64
		if err := rows.Scan(
			&item.UID, &item.StudentID, &item.ConceptKey, &item.Question, &item.Answer,
			&item.EaseFactor, &item.Interval, &item.Repetitions, &nextReviewTs, &lastReviewTs,
			&item.CorrectCount, &item.IncorrectCount, &item.Archived, &item.CreatedTs, &item.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review item: %w", err)
		}
		item.NextReviewDate = time.Unix(nextReviewTs, 0)
		item.LastReviewDate = fromNullUnix(lastReviewTs)
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review items: %w", err)
	}
	return list, nil
}
