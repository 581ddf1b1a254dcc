// Package performance derives learning metrics from a student's raw
// interaction history in one course.
//
// Metrics are recomputed from the full history on every evaluation; the
// previous snapshot only seeds the adaptive difficulty level.
package performance

import (
	"slices"
	"sort"
	"time"
)

// Trend classifies recent performance against the overall average.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

const (
	// TrendWindow is the number of most recent graded responses compared
	// against overall accuracy.
	TrendWindow = 10
	// TrendThreshold is the accuracy gap in percentage points needed to
	// leave the stable band.
	TrendThreshold = 10.0

	MinDifficulty     = 1
	MaxDifficulty     = 10
	DefaultDifficulty = 5

	// Streak lengths that move adaptive difficulty by one step.
	raiseAfterCorrect  = 3
	lowerAfterMistakes = 2
)

// Response is one graded or ungraded interaction submitted by the student.
type Response struct {
	BlockID     string    `json:"block_id"`
	ConceptKey  string    `json:"concept_key"`
	IsCorrect   bool      `json:"is_correct"`
	Score       float64   `json:"score"`
	MaxScore    float64   `json:"max_score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Graded reports whether the response carries a score.
// Self-assessment and reveal interactions have MaxScore 0.
func (r Response) Graded() bool {
	return r.MaxScore > 0
}

// FullScore reports whether the response earned every available point.
func (r Response) FullScore() bool {
	return r.Graded() && r.Score >= r.MaxScore
}

// Metrics is the ExtendedLearningMetrics snapshot for a (student, course).
type Metrics struct {
	Accuracy           float64  `json:"accuracy"` // percent, 0-100
	RecentTrend        Trend    `json:"recent_trend"`
	ConceptsMastered   []string `json:"concepts_mastered"`   // sorted, unique
	ConceptsStruggling []string `json:"concepts_struggling"` // sorted, unique
	CorrectStreak      int      `json:"correct_streak"`
	IncorrectStreak    int      `json:"incorrect_streak"`
	AdaptiveDifficulty int      `json:"adaptive_difficulty"` // 1-10
}

// Neutral returns the metrics used when there is no graded history.
func Neutral() Metrics {
	return Metrics{
		RecentTrend:        TrendStable,
		ConceptsMastered:   []string{},
		ConceptsStruggling: []string{},
		AdaptiveDifficulty: DefaultDifficulty,
	}
}

// IsMastered reports whether conceptKey is in the mastered set.
func (m Metrics) IsMastered(conceptKey string) bool {
	_, ok := slices.BinarySearch(m.ConceptsMastered, conceptKey)
	return ok
}

// IsStruggling reports whether conceptKey is in the struggling set.
func (m Metrics) IsStruggling(conceptKey string) bool {
	_, ok := slices.BinarySearch(m.ConceptsStruggling, conceptKey)
	return ok
}

// Calculate recomputes metrics from the complete response history.
// prev may be nil. Responses are processed in submission order; ungraded
// responses are ignored by every rule.
func Calculate(responses []Response, prev *Metrics) Metrics {
	out := Neutral()
	out.AdaptiveDifficulty = baselineDifficulty(prev)

	graded := sortedGraded(responses)
	if len(graded) == 0 {
		return out
	}

	var scoreSum, maxSum float64
	mastered := make(map[string]struct{})
	struggling := make(map[string]struct{})

	for _, r := range graded {
		scoreSum += r.Score
		maxSum += r.MaxScore

		if r.IsCorrect {
			out.CorrectStreak++
			out.IncorrectStreak = 0
		} else {
			out.IncorrectStreak++
			out.CorrectStreak = 0
		}

		if r.ConceptKey == "" {
			continue
		}
		switch {
		case r.IsCorrect && r.FullScore():
			mastered[r.ConceptKey] = struct{}{}
			delete(struggling, r.ConceptKey)
		case !r.IsCorrect:
			struggling[r.ConceptKey] = struct{}{}
			delete(mastered, r.ConceptKey)
		}
	}

	out.Accuracy = percent(scoreSum, maxSum)
	out.RecentTrend = trend(graded, out.Accuracy)
	out.ConceptsMastered = sortedKeys(mastered)
	out.ConceptsStruggling = sortedKeys(struggling)
	out.AdaptiveDifficulty = adjustDifficulty(out.AdaptiveDifficulty, out.CorrectStreak, out.IncorrectStreak)

	return out
}

// sortedGraded returns the graded responses ordered by submission time.
// Responses submitted at the same instant keep their input order.
func sortedGraded(responses []Response) []Response {
	graded := make([]Response, 0, len(responses))
	for _, r := range responses {
		if r.Graded() {
			graded = append(graded, r)
		}
	}
	sort.SliceStable(graded, func(i, j int) bool {
		return graded[i].SubmittedAt.Before(graded[j].SubmittedAt)
	})
	return graded
}

func trend(graded []Response, overall float64) Trend {
	window := graded
	if len(window) > TrendWindow {
		window = window[len(window)-TrendWindow:]
	}

	var scoreSum, maxSum float64
	for _, r := range window {
		scoreSum += r.Score
		maxSum += r.MaxScore
	}
	recent := percent(scoreSum, maxSum)

	switch {
	case recent-overall > TrendThreshold:
		return TrendImproving
	case overall-recent > TrendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func percent(score, possible float64) float64 {
	if possible <= 0 {
		return 0
	}
	return 100 * score / possible
}

func baselineDifficulty(prev *Metrics) int {
	if prev == nil || prev.AdaptiveDifficulty == 0 {
		return DefaultDifficulty
	}
	return clampDifficulty(prev.AdaptiveDifficulty)
}

func adjustDifficulty(level, correctStreak, incorrectStreak int) int {
	switch {
	case correctStreak >= raiseAfterCorrect:
		level++
	case incorrectStreak >= lowerAfterMistakes:
		level--
	}
	return clampDifficulty(level)
}

func clampDifficulty(level int) int {
	return min(max(level, MinDifficulty), MaxDifficulty)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
