package store

import (
	"time"

	"github.com/hrygo/learnengine/plugin/learning/srs"
)

// ReviewItem is a student's scheduling record for one concept.
// There is at most one per (StudentID, ConceptKey); items are archived, never deleted.
type ReviewItem struct {
	UID       string
	StudentID string
	CreatedTs int64
	UpdatedTs int64

	srs.ReviewItem
}

// FindReviewItem is the find condition for review items.
type FindReviewItem struct {
	StudentID  *string
	ConceptKey *string
	// DueBefore limits results to items due at or before the given time.
	DueBefore       *time.Time
	IncludeArchived bool
}
