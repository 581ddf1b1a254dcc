package learning

import (
	"context"
	stderrors "errors"
	"log/slog"

	apperrors "github.com/hrygo/learnengine/internal/errors"
	"github.com/hrygo/learnengine/internal/observability"
	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/server/timezone"
	"github.com/hrygo/learnengine/store"
)

func (s *service) ImportCourse(ctx context.Context, g *path.Graph) error {
	if g == nil || g.CourseID == "" {
		return apperrors.InvalidArgument("course id is required")
	}
	return s.run(ctx, OpImportCourse, "", g.CourseID, "", func(ctx context.Context, rc *observability.RequestContext) error {
		if err := s.store.SaveCourseGraph(ctx, g); err != nil {
			return err
		}
		rc.Info("course imported",
			slog.Int("nodes", len(g.Nodes)),
			slog.Int("branches", len(g.Branches)))
		return nil
	})
}

func (s *service) EvaluatePath(ctx context.Context, studentID, courseID string) (*PathEvaluation, error) {
	if err := requireIDs(studentID, courseID); err != nil {
		return nil, err
	}

	var result *PathEvaluation
	err := s.run(ctx, OpEvaluatePath, studentID, courseID, aggregateKey(studentID, courseID), func(ctx context.Context, rc *observability.RequestContext) error {
		g, err := s.store.GetCourseGraph(ctx, courseID)
		if err != nil {
			return err
		}
		// Only the first evaluation writes: it places the student on the graph.
		saved, err := s.store.UpdateProgress(ctx, studentID, courseID, func(p *store.Progress) error {
			if p.Path.CurrentNodeID != "" {
				return store.ErrNoChange
			}
			ensurePath(g, p)
			return nil
		})
		if err != nil {
			return err
		}

		rec, err := path.Evaluate(g, saved.Path, saved.Metrics)
		if err != nil {
			return err
		}
		rc.Info("path evaluated",
			slog.String("branch_id", rec.BranchID),
			slog.String("next_node_id", rec.NextNodeID))
		result = &PathEvaluation{
			Recommendation: rec,
			Path:           saved.Path,
			Finished:       path.IsFinished(g, saved.Path),
		}
		if rec.Branch != nil {
			if target, ok := g.TargetNode(*rec.Branch); ok {
				result.AtBranchTarget = target.ID == saved.Path.CurrentNodeID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ExecuteBranch(ctx context.Context, req *BranchRequest) (*path.StudentPath, error) {
	if err := requireIDs(req.StudentID, req.CourseID); err != nil {
		return nil, err
	}

	var result *path.StudentPath
	err := s.run(ctx, OpExecuteBranch, req.StudentID, req.CourseID, aggregateKey(req.StudentID, req.CourseID), func(ctx context.Context, rc *observability.RequestContext) error {
		g, err := s.store.GetCourseGraph(ctx, req.CourseID)
		if err != nil {
			return err
		}
		now := s.now()
		saved, err := s.store.UpdateProgress(ctx, req.StudentID, req.CourseID, func(p *store.Progress) error {
			ensurePath(g, p)
			next, err := path.Execute(g, p.Path, path.Action{
				Type:     req.Action,
				BranchID: req.BranchID,
				Reason:   req.Reason,
				Metrics:  p.Metrics,
			}, now)
			if err != nil {
				return err
			}
			if req.Action == path.ActionDeclineBranch {
				p.Activity.DeclinedBranches = append(p.Activity.DeclinedBranches, path.BranchRecord{
					BranchID: req.BranchID,
					TakenAt:  now,
					Reason:   req.Reason,
				})
			}
			p.Path = next
			return nil
		})
		if err != nil {
			return err
		}

		rc.Info("path action executed",
			slog.String("action", string(req.Action)),
			slog.String("branch_id", req.BranchID),
			slog.String("current_node_id", saved.Path.CurrentNodeID))
		result = &saved.Path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) CompleteModule(ctx context.Context, req *ModuleCompletion) (*CompletionResult, error) {
	if err := requireIDs(req.StudentID, req.CourseID); err != nil {
		return nil, err
	}
	if req.ModuleID == "" {
		return nil, apperrors.InvalidArgument("module id is required")
	}
	if req.MaxScore < 0 || req.Score < 0 || req.Score > req.MaxScore {
		return nil, apperrors.InvalidArgument("module score must be between 0 and max score")
	}

	var result *CompletionResult
	err := s.run(ctx, OpCompleteModule, req.StudentID, req.CourseID, aggregateKey(req.StudentID, req.CourseID), func(ctx context.Context, rc *observability.RequestContext) error {
		// Courses without an authored path still earn rewards.
		g, err := s.store.GetCourseGraph(ctx, req.CourseID)
		if err != nil && !stderrors.Is(err, store.ErrNotFound) {
			return err
		}

		now := s.now()
		var res CompletionResult
		saved, err := s.store.UpdateProgress(ctx, req.StudentID, req.CourseID, func(p *store.Progress) error {
			res = CompletionResult{}
			if p.HasCompletedModule(req.ModuleID) {
				res.AlreadyCompleted = true
				return store.ErrNoChange
			}

			if g != nil {
				ensurePath(g, p)
				if node, ok := g.Node(p.Path.CurrentNodeID); ok && node.ModuleID == req.ModuleID {
					next, err := path.CompleteNode(g, p.Path)
					if err != nil {
						return err
					}
					p.Path = next
				}
			}

			p.Activity.CompletedModules = append(p.Activity.CompletedModules, req.ModuleID)
			if day := timezone.FormatDate(now, s.loc); p.Activity.CompletionDay != day {
				p.Activity.CompletionDay = day
				p.Activity.ModulesOnDay = 0
			}
			p.Activity.ModulesOnDay++
			if req.CompletesChapter {
				p.Activity.CompletedChapters++
			}

			levelBefore := p.Gamification.Level
			state, xp, err := gamification.RecordActivity(p.Gamification, gamification.Activity{
				Action:          gamification.ActionModuleComplete,
				WeeklyIncrement: 1,
			}, now, s.loc)
			if err != nil {
				return err
			}
			if req.MaxScore > 0 && req.Score >= req.MaxScore {
				p.Activity.PerfectScores++
				var bonus int
				state, bonus, err = gamification.AwardXP(state, gamification.ActionPerfectScore)
				if err != nil {
					return err
				}
				xp += bonus
			}
			p.Gamification = state
			res.XPAwarded = xp

			res.NewBadges, err = s.awardBadges(p, now)
			if err != nil {
				return err
			}
			res.LeveledUp = p.Gamification.Level > levelBefore
			return nil
		})
		if err != nil {
			return err
		}

		res.Gamification = saved.Gamification
		res.Path = saved.Path
		rc.Info("module completed",
			slog.String("module_id", req.ModuleID),
			slog.Bool("already_completed", res.AlreadyCompleted),
			slog.Int("xp", res.XPAwarded),
			slog.Int("level", saved.Gamification.Level),
			slog.Int64(observability.LogFieldVersion, saved.Version))
		result = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
