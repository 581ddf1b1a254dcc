package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/hrygo/learnengine/internal/errors"
	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/server/middleware"
	"github.com/hrygo/learnengine/server/service/learning"
	"github.com/hrygo/learnengine/server/timezone"
	"github.com/hrygo/learnengine/store"
)

func mustRequire(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

func addStudentCourseFlags(cmd *cobra.Command) {
	cmd.Flags().String("student", "", "student id")
	cmd.Flags().String("course", "", "course id")
	mustRequire(cmd, "student", "course")
}

func (c *cli) levelCommand() *cobra.Command {
	var xp int
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Show the level reached with a given amount of XP",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if xp < 0 {
				return apperrors.InvalidArgument("xp must not be negative")
			}
			level := gamification.CalculateLevel(xp)
			return c.print(map[string]any{
				"xp":                xp,
				"level":             level,
				"xp_for_next_level": gamification.XPForNextLevel(level),
				"level_progress":    gamification.LevelProgress(xp, level),
			})
		},
	}
	cmd.Flags().IntVar(&xp, "xp", 0, "total XP")
	return cmd
}

func (c *cli) challengeCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Show the daily challenge for a date",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := c.profile()
			if err != nil {
				return err
			}
			day := time.Now()
			if date != "" {
				day, err = time.ParseInLocation("2006-01-02", date, p.Location())
				if err != nil {
					return apperrors.InvalidArgument("date must be YYYY-MM-DD")
				}
			}
			return c.print(gamification.GenerateDailyChallenge(day, p.Location()))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "calendar date (YYYY-MM-DD), defaults to today")

	complete := &cobra.Command{
		Use:   "complete",
		Short: "Complete today's challenge for a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			student, _ := cmd.Flags().GetString("student")
			course, _ := cmd.Flags().GetString("course")
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				res, err := e.service.CompleteDailyChallenge(ctx, student, course)
				if err != nil {
					return err
				}
				return c.print(res)
			})
		},
	}
	addStudentCourseFlags(complete)
	cmd.AddCommand(complete)
	return cmd
}

func (c *cli) reviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Spaced repetition reviews",
	}

	rate := &cobra.Command{
		Use:   "rate",
		Short: "Rate recall of a concept (0-5) and reschedule it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			student, _ := cmd.Flags().GetString("student")
			concept, _ := cmd.Flags().GetString("concept")
			raw, _ := cmd.Flags().GetString("quality")
			quality, err := srs.ParseQuality(raw)
			if err != nil {
				return apperrors.Classify(err)
			}
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				item, err := e.service.ReviewConcept(ctx, &learning.ReviewRequest{
					StudentID:  student,
					ConceptKey: concept,
					Quality:    quality,
				})
				if err != nil {
					return err
				}
				return c.print(item)
			})
		},
	}
	rate.Flags().String("student", "", "student id")
	rate.Flags().String("concept", "", "concept key")
	rate.Flags().String("quality", "", "recall quality 0-5")
	mustRequire(rate, "student", "concept", "quality")

	due := &cobra.Command{
		Use:   "due",
		Short: "List the concepts due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			student, _ := cmd.Flags().GetString("student")
			limit, _ := cmd.Flags().GetInt("limit")
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				res, err := e.service.ListDue(ctx, student, limit)
				if err != nil {
					return err
				}
				return c.print(res)
			})
		},
	}
	due.Flags().String("student", "", "student id")
	due.Flags().Int("limit", 0, "maximum items, defaults to the daily review limit")
	mustRequire(due, "student")

	cmd.AddCommand(rate, due)
	return cmd
}

func (c *cli) importCourseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-course FILE",
		Short: "Import a course graph from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", args[0])
			}
			g, err := path.ParseGraph(data)
			if err != nil {
				return apperrors.Classify(err)
			}
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				if err := e.service.ImportCourse(ctx, g); err != nil {
					return err
				}
				return c.print(map[string]any{
					"course_id": g.CourseID,
					"nodes":     len(g.Nodes),
					"branches":  len(g.Branches),
				})
			})
		},
	}
}

func (c *cli) interactCommand() *cobra.Command {
	var req learning.InteractionRequest
	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Record a student's response to a content block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.StudentID, _ = cmd.Flags().GetString("student")
			req.CourseID, _ = cmd.Flags().GetString("course")
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				res, err := e.service.RecordInteraction(ctx, &req)
				if err != nil {
					return err
				}
				return c.print(res)
			})
		},
	}
	addStudentCourseFlags(cmd)
	cmd.Flags().StringVar(&req.BlockID, "block", "", "content block id")
	cmd.Flags().StringVar(&req.ConceptKey, "concept", "", "concept key")
	cmd.Flags().BoolVar(&req.IsCorrect, "correct", false, "whether the answer was correct")
	cmd.Flags().Float64Var(&req.Score, "score", 0, "points earned")
	cmd.Flags().Float64Var(&req.MaxScore, "max-score", 0, "points available, 0 for ungraded")
	cmd.Flags().StringVar(&req.Question, "question", "", "review card question")
	cmd.Flags().StringVar(&req.Answer, "answer", "", "review card answer")
	cmd.Flags().StringVar(&req.ResponseID, "response-id", "", "submission id, resending it is a no-op")
	mustRequire(cmd, "block")
	return cmd
}

func (c *cli) branchCommand() *cobra.Command {
	var action, branchID, reason string
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Evaluate a student's path, or apply a path action with --action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			student, _ := cmd.Flags().GetString("student")
			course, _ := cmd.Flags().GetString("course")
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				if action == "" {
					res, err := e.service.EvaluatePath(ctx, student, course)
					if err != nil {
						return err
					}
					return c.print(res)
				}
				sp, err := e.service.ExecuteBranch(ctx, &learning.BranchRequest{
					StudentID: student,
					CourseID:  course,
					Action:    path.ActionType(action),
					BranchID:  branchID,
					Reason:    reason,
				})
				if err != nil {
					return err
				}
				return c.print(sp)
			})
		},
	}
	addStudentCourseFlags(cmd)
	cmd.Flags().StringVar(&action, "action", "", "accept_remedial, accept_advanced, accept_branch, decline_branch, recalculate_path or skip_module")
	cmd.Flags().StringVar(&branchID, "branch", "", "branch id for branch actions")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the action")
	return cmd
}

func (c *cli) completeModuleCommand() *cobra.Command {
	var req learning.ModuleCompletion
	cmd := &cobra.Command{
		Use:   "complete-module",
		Short: "Record a completed module and award XP and badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.StudentID, _ = cmd.Flags().GetString("student")
			req.CourseID, _ = cmd.Flags().GetString("course")
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				res, err := e.service.CompleteModule(ctx, &req)
				if err != nil {
					return err
				}
				return c.print(res)
			})
		},
	}
	addStudentCourseFlags(cmd)
	cmd.Flags().StringVar(&req.ModuleID, "module", "", "module id")
	cmd.Flags().Float64Var(&req.Score, "score", 0, "assessment score")
	cmd.Flags().Float64Var(&req.MaxScore, "max-score", 0, "assessment max score, 0 if none")
	cmd.Flags().BoolVar(&req.CompletesChapter, "chapter", false, "the module closes a chapter")
	mustRequire(cmd, "module")
	return cmd
}

func (c *cli) progressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a student's progress in a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			student, _ := cmd.Flags().GetString("student")
			course, _ := cmd.Flags().GetString("course")
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				view, err := e.service.GetProgress(ctx, student, course)
				if err != nil {
					return err
				}
				return c.print(view)
			})
		},
	}
	addStudentCourseFlags(cmd)
	return cmd
}

// batchEntry is one student's row in the batch report.
type batchEntry struct {
	StudentID  string                   `json:"student_id"`
	Evaluation *learning.PathEvaluation `json:"evaluation,omitempty"`
	ErrorCode  apperrors.ErrorCode      `json:"error_code,omitempty"`
	Message    string                   `json:"message,omitempty"`
}

func (c *cli) batchCommand() *cobra.Command {
	var (
		course      string
		students    []string
		concurrency int
		perSecond   float64
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Evaluate the path of every student enrolled in a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *engine) error {
				if len(students) == 0 {
					enrolled, err := e.store.ListProgress(ctx, &store.FindProgress{CourseID: &course})
					if err != nil {
						return err
					}
					for _, p := range enrolled {
						students = append(students, p.StudentID)
					}
				}

				limiter := middleware.NewRateLimiter(perSecond, concurrency)
				entries := make([]batchEntry, len(students))
				g, gctx := errgroup.WithContext(ctx)
				g.SetLimit(max(concurrency, 1))
				for i, student := range students {
					g.Go(func() error {
						entries[i].StudentID = student
						if err := limiter.Wait(gctx, course); err != nil {
							return err
						}
						eval, err := e.service.EvaluatePath(gctx, student, course)
						if err != nil {
							le := apperrors.Classify(err)
							// One student's bad state does not stop the batch.
							if le.Code == apperrors.ErrCodeContextCanceled || le.Code == apperrors.ErrCodeTimeout {
								return le
							}
							entries[i].ErrorCode = le.Code
							entries[i].Message = le.Message
							return nil
						}
						entries[i].Evaluation = eval
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}

				snap := e.metrics.Snapshot()
				return c.print(map[string]any{
					"course_id":        course,
					"evaluated_at":     timezone.FormatDate(time.Now(), e.profile.Location()),
					"students":         entries,
					"conflict_retries": snap.ConflictRetries,
					"success_rate":     snap.SuccessRate(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "course id")
	cmd.Flags().StringSliceVar(&students, "students", nil, "student ids, defaults to every student with progress in the course")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "students evaluated in parallel")
	cmd.Flags().Float64Var(&perSecond, "rate", 0, "maximum evaluations per second, 0 for no limit")
	mustRequire(cmd, "course")
	return cmd
}
