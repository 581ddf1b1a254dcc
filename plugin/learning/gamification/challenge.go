package gamification

import (
	"time"

	"github.com/hrygo/learnengine/server/timezone"
)

// ChallengeType is the kind of daily challenge.
type ChallengeType string

const (
	ChallengeQuiz     ChallengeType = "quiz"
	ChallengeReview   ChallengeType = "review"
	ChallengeTimeGoal ChallengeType = "time_goal"
)

type challengeTemplate struct {
	kind        ChallengeType
	description string
	xpReward    int
}

// Rotation order is indexed by day of year modulo its length.
var challengeRotation = [...]challengeTemplate{
	{ChallengeQuiz, "Answer 5 quiz questions correctly", 75},
	{ChallengeReview, "Review 10 concepts that are due", 100},
	{ChallengeTimeGoal, "Study for 15 minutes", 50},
}

// DailyChallenge is derived from the calendar date and never stored.
type DailyChallenge struct {
	ID          string        `json:"id"`
	Type        ChallengeType `json:"type"`
	Description string        `json:"description"`
	XPReward    int           `json:"xp_reward"`
	Completed   bool          `json:"completed"`
}

// GenerateDailyChallenge returns the challenge for now's calendar day in tz.
func GenerateDailyChallenge(now time.Time, tz *time.Location) DailyChallenge {
	tpl := challengeRotation[timezone.DayOfYear(now, tz)%len(challengeRotation)]
	return DailyChallenge{
		ID:          "daily-" + timezone.FormatDate(now, tz),
		Type:        tpl.kind,
		Description: tpl.description,
		XPReward:    tpl.xpReward,
	}
}

// CompleteDailyChallenge marks today's challenge done and grants its XP.
// A second completion on the same day is a no-op and reports false.
func CompleteDailyChallenge(s State, c DailyChallenge) (State, bool) {
	next := s.clone()
	if next.DailyChallengeCompleted {
		return next, false
	}
	next.DailyChallengeCompleted = true
	return next.addXP(c.XPReward), true
}
