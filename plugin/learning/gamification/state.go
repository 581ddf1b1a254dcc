// Package gamification turns learning activity into experience points,
// levels, daily streaks, weekly goals and daily challenges.
//
// State is a value: every function takes the current State and returns the
// next one. Day boundaries are resolved in the supplied location, falling
// back to the host zone when it is nil.
package gamification

import (
	"errors"
	"slices"
	"time"
)

// ErrUnknownAction is returned for actions missing from the XP table.
var ErrUnknownAction = errors.New("gamification: unknown action")

// Default weekly goal for a fresh state.
const (
	DefaultWeeklyTarget = 5
	DefaultWeeklyType   = "modules"
)

// WeeklyGoal tracks progress toward a per-week target.
type WeeklyGoal struct {
	Target  int    `json:"target"`
	Current int    `json:"current"`
	Type    string `json:"type"`
}

// State is one student's gamification record.
type State struct {
	TotalXP                 int        `json:"total_xp"`
	Level                   int        `json:"level"`
	CurrentStreak           int        `json:"current_streak"`
	LongestStreak           int        `json:"longest_streak"`
	LastActivityDate        *time.Time `json:"last_activity_date,omitempty"`
	Badges                  []string   `json:"badges"`
	DailyChallengeCompleted bool       `json:"daily_challenge_completed"`
	WeeklyGoal              WeeklyGoal `json:"weekly_goal"`
}

// NewState returns a zeroed state with the default weekly goal.
func NewState() State {
	return State{
		Badges: []string{},
		WeeklyGoal: WeeklyGoal{
			Target: DefaultWeeklyTarget,
			Type:   DefaultWeeklyType,
		},
	}
}

func (s State) clone() State {
	out := s
	out.Badges = slices.Clone(s.Badges)
	if s.LastActivityDate != nil {
		t := *s.LastActivityDate
		out.LastActivityDate = &t
	}
	return out
}

// HasBadge reports whether badgeID has been awarded.
func (s State) HasBadge(badgeID string) bool {
	return slices.Contains(s.Badges, badgeID)
}

// addXP grants amount and keeps Level in step with TotalXP.
func (s State) addXP(amount int) State {
	s.TotalXP += amount
	if s.TotalXP < 0 {
		s.TotalXP = 0
	}
	s.Level = CalculateLevel(s.TotalXP)
	return s
}

// AwardBadge adds badgeID and grants xpReward. Awarding a badge the student
// already holds returns the state unchanged and false.
func AwardBadge(s State, badgeID string, xpReward int) (State, bool) {
	next := s.clone()
	if next.HasBadge(badgeID) {
		return next, false
	}
	next.Badges = append(next.Badges, badgeID)
	return next.addXP(xpReward), true
}

// Summary is a read-only dashboard view of a State.
type Summary struct {
	TotalXP                 int        `json:"total_xp"`
	Level                   int        `json:"level"`
	XPForNextLevel          int        `json:"xp_for_next_level"`
	LevelProgress           float64    `json:"level_progress"`
	CurrentStreak           int        `json:"current_streak"`
	LongestStreak           int        `json:"longest_streak"`
	BadgeCount              int        `json:"badge_count"`
	DailyChallengeCompleted bool       `json:"daily_challenge_completed"`
	WeeklyGoal              WeeklyGoal `json:"weekly_goal"`
	WeeklyGoalPercent       float64    `json:"weekly_goal_percent"`
}

// ProgressSummary derives the dashboard figures for s.
func ProgressSummary(s State) Summary {
	level := CalculateLevel(s.TotalXP)
	sum := Summary{
		TotalXP:                 s.TotalXP,
		Level:                   level,
		XPForNextLevel:          XPForNextLevel(level),
		LevelProgress:           LevelProgress(s.TotalXP, level),
		CurrentStreak:           s.CurrentStreak,
		LongestStreak:           s.LongestStreak,
		BadgeCount:              len(s.Badges),
		DailyChallengeCompleted: s.DailyChallengeCompleted,
		WeeklyGoal:              s.WeeklyGoal,
	}
	if s.WeeklyGoal.Target > 0 {
		sum.WeeklyGoalPercent = min(100, 100*float64(s.WeeklyGoal.Current)/float64(s.WeeklyGoal.Target))
	}
	return sum
}
