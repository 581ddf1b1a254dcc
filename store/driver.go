package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Progress aggregate methods. CreateProgress and UpdateProgress return
	// ErrVersionConflict when another writer got there first.
	GetProgress(ctx context.Context, find *FindProgress) (*Progress, error)
	ListProgress(ctx context.Context, find *FindProgress) ([]*Progress, error)
	CreateProgress(ctx context.Context, create *Progress) (*Progress, error)
	UpdateProgress(ctx context.Context, update *Progress) (*Progress, error)

	// ReviewItem model related methods.
	UpsertReviewItem(ctx context.Context, upsert *ReviewItem) (*ReviewItem, error)
	ListReviewItems(ctx context.Context, find *FindReviewItem) ([]*ReviewItem, error)

	// Response model related methods.
	CreateResponse(ctx context.Context, create *Response) (*Response, error)
	ListResponses(ctx context.Context, find *FindResponse) ([]*Response, error)

	// CourseGraph model related methods.
	UpsertCourseGraph(ctx context.Context, upsert *CourseGraph) (*CourseGraph, error)
	GetCourseGraph(ctx context.Context, courseID string) (*CourseGraph, error)
}
