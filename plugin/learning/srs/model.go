// Package srs schedules concept reviews with a SuperMemo-2 variant.
//
// Every function in this package is pure: the caller passes the current time
// and receives an updated copy of the review item. Nothing here persists or
// logs.
package srs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidQualityRating is returned for quality ratings outside 0-5.
var ErrInvalidQualityRating = errors.New("srs: invalid quality rating")

// Quality is the learner's self-reported recall quality.
type Quality int

const (
	// QualityBlackout - complete blackout, no recall
	QualityBlackout Quality = 0
	// QualityIncorrect - wrong, but the answer was recognised once shown
	QualityIncorrect Quality = 1
	// QualityIncorrectFamiliar - wrong, but the answer felt familiar
	QualityIncorrectFamiliar Quality = 2
	// QualityCorrectDifficult - recalled with serious difficulty
	QualityCorrectDifficult Quality = 3
	// QualityCorrectHesitation - recalled after some hesitation
	QualityCorrectHesitation Quality = 4
	// QualityPerfect - instant recall
	QualityPerfect Quality = 5
)

// IsValid reports whether q is within 0-5.
func (q Quality) IsValid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// Recalled reports whether q counts as a successful recall (3 and above).
func (q Quality) Recalled() bool {
	return q >= QualityCorrectDifficult
}

// String returns the numeric form of the rating.
func (q Quality) String() string {
	return strconv.Itoa(int(q))
}

// ParseQuality converts a decimal string into a validated Quality.
func ParseQuality(s string) (Quality, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQualityRating, s)
	}
	q := Quality(n)
	if !q.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQualityRating, n)
	}
	return q, nil
}

// UnmarshalJSON rejects out-of-range ratings at decode time.
func (q *Quality) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQualityRating, data)
	}
	v := Quality(n)
	if !v.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidQualityRating, n)
	}
	*q = v
	return nil
}

// DefaultEaseFactor is the initial ease factor for new items.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the minimum ease factor to prevent intervals from getting too short.
const MinEaseFactor = 1.3

// MasteredIntervalDays is the interval beyond which an item counts as mastered in stats.
const MasteredIntervalDays = 30

// ReviewItem is the scheduling state of one concept for one student.
type ReviewItem struct {
	ConceptKey     string     `json:"concept_key"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	EaseFactor     float64    `json:"ease_factor"`
	Interval       int        `json:"interval"` // days
	Repetitions    int        `json:"repetitions"`
	NextReviewDate time.Time  `json:"next_review_date"`
	LastReviewDate *time.Time `json:"last_review_date,omitempty"`
	CorrectCount   int        `json:"correct_count"`
	IncorrectCount int        `json:"incorrect_count"`
	Archived       bool       `json:"archived"`
}

// NewReviewItem creates the item for a concept on first exposure.
// It is due immediately.
func NewReviewItem(conceptKey, question, answer string, now time.Time) ReviewItem {
	return ReviewItem{
		ConceptKey:     conceptKey,
		Question:       question,
		Answer:         answer,
		EaseFactor:     DefaultEaseFactor,
		Interval:       1,
		NextReviewDate: now,
	}
}

// clone returns a deep copy of the item.
func (r ReviewItem) clone() ReviewItem {
	out := r
	if r.LastReviewDate != nil {
		v := *r.LastReviewDate
		out.LastReviewDate = &v
	}
	return out
}

// Archive returns a copy of the item that is excluded from due lists and stats.
// Items are never deleted.
func (r ReviewItem) Archive() ReviewItem {
	out := r.clone()
	out.Archived = true
	return out
}

// IsDue reports whether the item should be reviewed at now.
func (r ReviewItem) IsDue(now time.Time) bool {
	return !r.Archived && !r.NextReviewDate.After(now)
}

// Reviews returns the total number of recorded ratings.
func (r ReviewItem) Reviews() int {
	return r.CorrectCount + r.IncorrectCount
}

// Config controls due-list behaviour.
type Config struct {
	MaxDailyReviews int
}

// DefaultConfig returns the default review configuration.
func DefaultConfig() Config {
	return Config{
		MaxDailyReviews: 20,
	}
}
