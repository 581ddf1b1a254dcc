package gamification

import (
	"fmt"
	"time"

	"github.com/hrygo/learnengine/server/timezone"
)

// Action is an activity that earns XP.
type Action string

const (
	ActionModuleComplete       Action = "module_complete"
	ActionInteractionCorrect   Action = "interaction_correct"
	ActionInteractionIncorrect Action = "interaction_incorrect"
	ActionPerfectScore         Action = "perfect_score"
	ActionDailyChallenge       Action = "daily_challenge"
)

var xpTable = map[Action]int{
	ActionModuleComplete:       50,
	ActionInteractionCorrect:   10,
	ActionInteractionIncorrect: 2,
	ActionPerfectScore:         100,
	ActionDailyChallenge:       75,
}

// StreakBonusDays is the streak length from which boosted actions earn 1.1×.
const StreakBonusDays = 7

func boosted(a Action) bool {
	switch a {
	case ActionModuleComplete, ActionInteractionCorrect, ActionPerfectScore:
		return true
	}
	return false
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := xpTable[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// XPFor returns the XP an action is worth at the given streak length.
func XPFor(a Action, currentStreak int) (int, error) {
	base, ok := xpTable[a]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	if boosted(a) && currentStreak >= StreakBonusDays {
		// 1.1×, floored.
		return base * 11 / 10, nil
	}
	return base, nil
}

// AwardXP grants the XP for a and returns the new state with the amount awarded.
func AwardXP(s State, a Action) (State, int, error) {
	amount, err := XPFor(a, s.CurrentStreak)
	if err != nil {
		return s, 0, err
	}
	return s.clone().addXP(amount), amount, nil
}

// UpdateStreak records activity at now. Days are compared as calendar days
// in tz: the same day leaves the streak unchanged, the next day extends it,
// and a longer gap restarts it at 1. Any day change clears the daily
// challenge flag.
func UpdateStreak(s State, now time.Time, tz *time.Location) State {
	next := s.clone()

	if next.LastActivityDate == nil {
		next.CurrentStreak = 1
	} else {
		gap := timezone.DaysBetween(*next.LastActivityDate, now, tz)
		switch {
		case gap <= 0:
			// Same day, or a clock that went backwards: nothing to do.
			return next
		case gap == 1:
			next.CurrentStreak++
		default:
			next.CurrentStreak = 1
		}
		next.DailyChallengeCompleted = false
	}

	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
	t := now
	next.LastActivityDate = &t
	return next
}

// UpdateWeeklyGoal adds increment to the weekly goal. When now falls in a
// different Sunday-based week from the last recorded activity the counter
// is reset first, so the increment counts toward the new week.
func UpdateWeeklyGoal(s State, increment int, now time.Time, tz *time.Location) State {
	next := s.clone()
	if next.LastActivityDate != nil && !timezone.SameWeek(*next.LastActivityDate, now, tz) {
		next.WeeklyGoal.Current = 0
	}
	next.WeeklyGoal.Current += increment
	return next
}

// Activity describes one rewarded event.
type Activity struct {
	Action Action
	// WeeklyIncrement is how much the event advances the weekly goal.
	WeeklyIncrement int
}

// RecordActivity applies an activity in order: weekly goal, streak, then XP
// at the updated streak. It returns the XP awarded.
func RecordActivity(s State, act Activity, now time.Time, tz *time.Location) (State, int, error) {
	if _, ok := xpTable[act.Action]; !ok {
		return s, 0, fmt.Errorf("%w: %q", ErrUnknownAction, act.Action)
	}
	next := UpdateWeeklyGoal(s, act.WeeklyIncrement, now, tz)
	next = UpdateStreak(next, now, tz)
	return AwardXP(next, act.Action)
}
