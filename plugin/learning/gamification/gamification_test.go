package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-10-19 is a Monday.
var monday = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return monday.AddDate(0, 0, offset)
}

func withLastActivity(s State, t time.Time) State {
	s.LastActivityDate = &t
	return s
}

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{-5, 0},
		{0, 0},
		{99, 0},
		{100, 1},
		{399, 1},
		{400, 2},
		{899, 2},
		{900, 3},
		{9999, 9},
		{10000, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateLevel(tt.xp), "xp=%d", tt.xp)
	}

	prev := 0
	for xp := 0; xp <= 50000; xp += 7 {
		l := CalculateLevel(xp)
		require.GreaterOrEqual(t, l, prev, "level must not decrease at xp=%d", xp)
		prev = l
	}
}

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, 100, XPForNextLevel(0))
	assert.Equal(t, 400, XPForNextLevel(1))
	assert.Equal(t, 900, XPForNextLevel(2))

	for l := 0; l < 100; l++ {
		require.Less(t, XPForNextLevel(l), XPForNextLevel(l+1))
	}
}

func TestLevelProgress(t *testing.T) {
	assert.Equal(t, 0.0, LevelProgress(100, 1))
	assert.Equal(t, 50.0, LevelProgress(250, 1))
	assert.Equal(t, 0.0, LevelProgress(50, 1), "below the level floor clamps to 0")
	assert.Equal(t, 100.0, LevelProgress(5000, 1), "beyond the next level clamps to 100")

	for xp := 0; xp <= 20000; xp += 13 {
		p := LevelProgress(xp, CalculateLevel(xp))
		require.True(t, p >= 0 && p <= 100, "xp=%d progress=%v", xp, p)
	}
}

func TestXPFor(t *testing.T) {
	tests := []struct {
		action Action
		streak int
		want   int
	}{
		{ActionModuleComplete, 0, 50},
		{ActionModuleComplete, 6, 50},
		{ActionModuleComplete, 7, 55},
		{ActionInteractionCorrect, 7, 11},
		{ActionPerfectScore, 30, 110},
		{ActionInteractionIncorrect, 10, 2},
		{ActionDailyChallenge, 10, 75},
	}
	for _, tt := range tests {
		got, err := XPFor(tt.action, tt.streak)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s at streak %d", tt.action, tt.streak)
	}

	_, err := XPFor("levitate", 0)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestAwardXP_StreakMultiplier(t *testing.T) {
	s := NewState()
	s.TotalXP = 120
	s.Level = 1
	s.CurrentStreak = 7
	s.LongestStreak = 7

	got, awarded, err := AwardXP(s, ActionModuleComplete)
	require.NoError(t, err)
	assert.Equal(t, 55, awarded)
	assert.Equal(t, 175, got.TotalXP)
	assert.Equal(t, 120, s.TotalXP, "input must not change")
}

func TestAwardXP_RecomputesLevel(t *testing.T) {
	s := NewState()
	s.TotalXP = 390
	s.Level = 1

	got, _, err := AwardXP(s, ActionInteractionCorrect)
	require.NoError(t, err)
	assert.Equal(t, 400, got.TotalXP)
	assert.Equal(t, 2, got.Level)
}

func TestAwardXP_UnknownAction(t *testing.T) {
	s := NewState()
	got, awarded, err := AwardXP(s, "teleport")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Zero(t, awarded)
	assert.Equal(t, s, got)
}

func TestUpdateStreak(t *testing.T) {
	t.Run("first activity", func(t *testing.T) {
		got := UpdateStreak(NewState(), monday, time.UTC)
		assert.Equal(t, 1, got.CurrentStreak)
		assert.Equal(t, 1, got.LongestStreak)
		require.NotNil(t, got.LastActivityDate)
		assert.True(t, got.LastActivityDate.Equal(monday))
	})

	base := NewState()
	base.CurrentStreak = 4
	base.LongestStreak = 9
	base.DailyChallengeCompleted = true

	tests := []struct {
		name          string
		last          time.Time
		wantStreak    int
		wantLongest   int
		wantChallenge bool
	}{
		{"same day", monday.Add(-8 * time.Hour), 4, 9, true},
		{"next day", day(-1), 5, 9, false},
		{"late last night", time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC), 5, 9, false},
		{"two days", day(-2), 1, 9, false},
		{"a month", day(-30), 1, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateStreak(withLastActivity(base, tt.last), monday, time.UTC)
			assert.Equal(t, tt.wantStreak, got.CurrentStreak)
			assert.Equal(t, tt.wantLongest, got.LongestStreak)
			assert.Equal(t, tt.wantChallenge, got.DailyChallengeCompleted)
			assert.LessOrEqual(t, got.CurrentStreak, got.LongestStreak)
		})
	}

	t.Run("longest follows current", func(t *testing.T) {
		s := NewState()
		s.CurrentStreak = 9
		s.LongestStreak = 9
		got := UpdateStreak(withLastActivity(s, day(-1)), monday, time.UTC)
		assert.Equal(t, 10, got.CurrentStreak)
		assert.Equal(t, 10, got.LongestStreak)
	})

	t.Run("calendar day in the given zone", func(t *testing.T) {
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		// 14:00 UTC and 16:00 UTC are the same UTC day but straddle Tokyo midnight.
		last := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
		now := time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC)
		s := withLastActivity(base, last)

		assert.Equal(t, 4, UpdateStreak(s, now, time.UTC).CurrentStreak)
		assert.Equal(t, 5, UpdateStreak(s, now, tokyo).CurrentStreak)
	})
}

func TestUpdateWeeklyGoal(t *testing.T) {
	s := NewState()
	s.WeeklyGoal.Current = 4

	// Sunday 2026-10-18 starts the same week as Monday.
	same := UpdateWeeklyGoal(withLastActivity(s, day(-1)), 1, monday, time.UTC)
	assert.Equal(t, 5, same.WeeklyGoal.Current)

	// Saturday 2026-10-17 belongs to the previous week.
	reset := UpdateWeeklyGoal(withLastActivity(s, day(-2)), 1, monday, time.UTC)
	assert.Equal(t, 1, reset.WeeklyGoal.Current)
	assert.Equal(t, DefaultWeeklyTarget, reset.WeeklyGoal.Target)

	first := UpdateWeeklyGoal(NewState(), 2, monday, time.UTC)
	assert.Equal(t, 2, first.WeeklyGoal.Current)
}

func TestGenerateDailyChallenge(t *testing.T) {
	seen := make(map[ChallengeType]bool)
	for i := 0; i < 400; i++ {
		c := GenerateDailyChallenge(day(i), time.UTC)
		assert.Regexp(t, `^daily-\d{4}-\d{2}-\d{2}$`, c.ID)
		assert.False(t, c.Completed)
		assert.Positive(t, c.XPReward)
		assert.Contains(t, []ChallengeType{ChallengeQuiz, ChallengeReview, ChallengeTimeGoal}, c.Type)
		seen[c.Type] = true
	}
	assert.Len(t, seen, 3)

	// Day 292 of 2026: 292 % 3 == 1.
	c := GenerateDailyChallenge(monday, time.UTC)
	assert.Equal(t, "daily-2026-10-19", c.ID)
	assert.Equal(t, ChallengeReview, c.Type)
	assert.Equal(t, 100, c.XPReward)

	assert.Equal(t, c, GenerateDailyChallenge(monday.Add(10*time.Hour), time.UTC), "same day, same challenge")
}

func TestCompleteDailyChallenge(t *testing.T) {
	c := GenerateDailyChallenge(monday, time.UTC)
	s := NewState()

	once, ok := CompleteDailyChallenge(s, c)
	require.True(t, ok)
	assert.True(t, once.DailyChallengeCompleted)
	assert.Equal(t, 100, once.TotalXP)
	assert.Equal(t, 1, once.Level)

	twice, ok := CompleteDailyChallenge(once, c)
	assert.False(t, ok)
	assert.Equal(t, once, twice)
}

func TestAwardBadge_Idempotent(t *testing.T) {
	s := NewState()

	s, ok := AwardBadge(s, "first-steps", 25)
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		s, ok = AwardBadge(s, "first-steps", 25)
		assert.False(t, ok)
	}

	assert.Equal(t, []string{"first-steps"}, s.Badges)
	assert.Equal(t, 25, s.TotalXP)
}

func TestRecordActivity(t *testing.T) {
	s := NewState()
	s.CurrentStreak = 6
	s.LongestStreak = 6
	s.WeeklyGoal.Current = 2
	s = withLastActivity(s, day(-1))

	got, awarded, err := RecordActivity(s, Activity{Action: ActionModuleComplete, WeeklyIncrement: 1}, monday, time.UTC)
	require.NoError(t, err)

	// The streak reaches 7 before XP is computed.
	assert.Equal(t, 7, got.CurrentStreak)
	assert.Equal(t, 55, awarded)
	assert.Equal(t, 55, got.TotalXP)
	assert.Equal(t, 3, got.WeeklyGoal.Current)

	_, _, err = RecordActivity(s, Activity{Action: "nap"}, monday, time.UTC)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestProgressSummary(t *testing.T) {
	s := NewState()
	s.TotalXP = 250
	s.Level = 1
	s.CurrentStreak = 3
	s.LongestStreak = 8
	s.Badges = []string{"a", "b"}
	s.WeeklyGoal.Current = 7

	sum := ProgressSummary(s)
	assert.Equal(t, 1, sum.Level)
	assert.Equal(t, 400, sum.XPForNextLevel)
	assert.Equal(t, 50.0, sum.LevelProgress)
	assert.Equal(t, 2, sum.BadgeCount)
	assert.Equal(t, 100.0, sum.WeeklyGoalPercent)
}
