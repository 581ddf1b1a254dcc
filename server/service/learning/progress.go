package learning

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/learnengine/internal/observability"
	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/server/timezone"
	"github.com/hrygo/learnengine/store"
)

func (s *service) CompleteDailyChallenge(ctx context.Context, studentID, courseID string) (*ChallengeResult, error) {
	if err := requireIDs(studentID, courseID); err != nil {
		return nil, err
	}

	var result *ChallengeResult
	err := s.run(ctx, OpCompleteDailyChallenge, studentID, courseID, aggregateKey(studentID, courseID), func(ctx context.Context, rc *observability.RequestContext) error {
		now := s.now()
		challenge := gamification.GenerateDailyChallenge(now, s.loc)
		var res ChallengeResult

		saved, err := s.store.UpdateProgress(ctx, studentID, courseID, func(p *store.Progress) error {
			res = ChallengeResult{Challenge: challenge}
			// A new day clears yesterday's completion before checking today's.
			state := gamification.UpdateStreak(p.Gamification, now, s.loc)
			state, awarded := gamification.CompleteDailyChallenge(state, challenge)
			if !awarded {
				return store.ErrNoChange
			}
			p.Gamification = state
			res.Awarded = true

			var err error
			res.NewBadges, err = s.awardBadges(p, now)
			return err
		})
		if err != nil {
			return err
		}

		res.Challenge.Completed = true
		res.Gamification = saved.Gamification
		rc.Info("daily challenge",
			slog.String("challenge_id", challenge.ID),
			slog.Bool("awarded", res.Awarded))
		result = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetProgress(ctx context.Context, studentID, courseID string) (*ProgressView, error) {
	if err := requireIDs(studentID, courseID); err != nil {
		return nil, err
	}

	var result *ProgressView
	err := s.run(ctx, OpGetProgress, studentID, courseID, "", func(ctx context.Context, _ *observability.RequestContext) error {
		p, err := s.store.GetProgress(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		now := s.now()
		challenge := gamification.GenerateDailyChallenge(now, s.loc)
		challenge.Completed = s.completedToday(p.Gamification, now)
		result = &ProgressView{
			StudentID:    p.StudentID,
			CourseID:     p.CourseID,
			Version:      p.Version,
			UpdatedTs:    p.UpdatedTs,
			Metrics:      p.Metrics,
			Path:         p.Path,
			Gamification: p.Gamification,
			Summary:      gamification.ProgressSummary(p.Gamification),
			Activity:     p.Activity,
			Challenge:    challenge,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// completedToday reports whether the stored completion flag belongs to now's
// calendar day. The flag itself is only cleared on the next activity.
func (s *service) completedToday(g gamification.State, now time.Time) bool {
	if !g.DailyChallengeCompleted || g.LastActivityDate == nil {
		return false
	}
	return timezone.DaysBetween(*g.LastActivityDate, now, s.loc) == 0
}
