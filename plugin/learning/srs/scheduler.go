package srs

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hrygo/learnengine/server/timezone"
)

// Schedule applies one SM-2 rating to item and returns the updated copy.
// The input item is never modified.
func Schedule(item ReviewItem, quality Quality, now time.Time) (ReviewItem, error) {
	if !quality.IsValid() {
		return item, fmt.Errorf("%w: %d", ErrInvalidQualityRating, int(quality))
	}

	next := item.clone()

	// EF' = EF + (0.1 - (5 - q) * (0.08 + (5 - q) * 0.02))
	d := float64(QualityPerfect - quality)
	next.EaseFactor = item.EaseFactor + (0.1 - d*(0.08+d*0.02))
	// Written as a negated >= so a NaN ease factor also lands on the floor.
	if !(next.EaseFactor >= MinEaseFactor) {
		next.EaseFactor = MinEaseFactor
	}

	if quality.Recalled() {
		next.Repetitions = item.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.Interval = 1
		case 2:
			next.Interval = 6
		default:
			prev := item.Interval
			if prev < 1 {
				prev = 1
			}
			next.Interval = int(math.Round(float64(prev) * next.EaseFactor))
		}
		next.CorrectCount++
	} else {
		next.Repetitions = 0
		next.Interval = 1
		next.IncorrectCount++
	}

	reviewed := now
	next.LastReviewDate = &reviewed
	next.NextReviewDate = now.AddDate(0, 0, next.Interval)

	return next, nil
}

// DueItems returns the non-archived items due at now, highest priority first.
// A non-positive limit falls back to cfg.MaxDailyReviews; the second return
// value is the total number of due items before limiting.
func DueItems(items []ReviewItem, now time.Time, limit int, cfg Config) ([]ReviewItem, int) {
	type scored struct {
		item     ReviewItem
		priority float64
	}

	var due []scored
	for _, it := range items {
		if !it.IsDue(now) {
			continue
		}
		due = append(due, scored{item: it, priority: priority(it, now)})
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].priority != due[j].priority {
			return due[i].priority > due[j].priority
		}
		return due[i].item.ConceptKey < due[j].item.ConceptKey
	})

	total := len(due)
	effectiveLimit := limit
	if effectiveLimit <= 0 {
		effectiveLimit = cfg.MaxDailyReviews
	}
	if effectiveLimit > 0 && len(due) > effectiveLimit {
		due = due[:effectiveLimit]
	}

	out := make([]ReviewItem, len(due))
	for i, s := range due {
		out[i] = s.item
	}
	return out, total
}

// priority ranks due items: overdue first, then weak, then fresh ones.
func priority(item ReviewItem, now time.Time) float64 {
	p := 0.0

	// Overdue factor (0-1.0)
	overdueDays := now.Sub(item.NextReviewDate).Hours() / 24
	if overdueDays > 0 {
		p += math.Min(overdueDays*0.1, 1.0)
	}

	// Weak items (0-0.5)
	if item.IncorrectCount > item.CorrectCount {
		p += 0.5
	}

	// New item bonus (0-0.3)
	if n := item.Reviews(); n < 3 {
		p += 0.3 * float64(3-n) / 3.0
	}

	return p
}

// Stats summarises a student's review queue.
type Stats struct {
	TotalItems    int `json:"total_items"`
	DueToday      int `json:"due_today"`
	ReviewedToday int `json:"reviewed_today"`
	NewItems      int `json:"new_items"`
	MasteredItems int `json:"mastered_items"`
	TotalReviews  int `json:"total_reviews"`
	Accuracy      int `json:"accuracy"` // percentage
}

// Summarize computes review statistics at now, using tz for "today".
// Archived items are ignored.
func Summarize(items []ReviewItem, now time.Time, tz *time.Location) Stats {
	var stats Stats
	endOfToday := timezone.EndOfDay(now, tz)
	startOfToday := timezone.StartOfDay(now, tz)
	correct := 0

	for _, it := range items {
		if it.Archived {
			continue
		}
		stats.TotalItems++

		if !it.NextReviewDate.After(endOfToday) {
			stats.DueToday++
		}
		if it.LastReviewDate != nil && !it.LastReviewDate.Before(startOfToday) {
			stats.ReviewedToday++
		}
		if it.Reviews() == 0 {
			stats.NewItems++
		}
		if it.Interval > MasteredIntervalDays {
			stats.MasteredItems++
		}
		stats.TotalReviews += it.Reviews()
		correct += it.CorrectCount
	}

	if stats.TotalReviews > 0 {
		stats.Accuracy = correct * 100 / stats.TotalReviews
	}
	return stats
}
