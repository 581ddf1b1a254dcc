package learning

import (
	"context"
	"time"

	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/performance"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/store"
)

// Service is the calling layer around the learning engines. Every method
// that changes a (student, course) aggregate runs as one serialized
// read-modify-write, so concurrent calls never lose an update.
type Service interface {
	// RecordInteraction stores a response, recomputes metrics from the full
	// history and awards interaction XP and badges.
	RecordInteraction(ctx context.Context, req *InteractionRequest) (*InteractionResult, error)

	// ReviewConcept applies a recall rating to the student's review item.
	ReviewConcept(ctx context.Context, req *ReviewRequest) (*store.ReviewItem, error)

	// ListDue returns the student's due review items, highest priority first.
	ListDue(ctx context.Context, studentID string, limit int) (*DueResult, error)

	// ImportCourse validates and stores a course graph.
	ImportCourse(ctx context.Context, g *path.Graph) error

	// EvaluatePath recommends a branch and the default next node.
	EvaluatePath(ctx context.Context, studentID, courseID string) (*PathEvaluation, error)

	// ExecuteBranch applies a path action such as accepting or declining a branch.
	ExecuteBranch(ctx context.Context, req *BranchRequest) (*path.StudentPath, error)

	// CompleteModule records a finished module, advancing the path and
	// awarding XP, streak and badges.
	CompleteModule(ctx context.Context, req *ModuleCompletion) (*CompletionResult, error)

	// CompleteDailyChallenge completes today's challenge once per day.
	CompleteDailyChallenge(ctx context.Context, studentID, courseID string) (*ChallengeResult, error)

	// GetProgress returns the aggregate with derived dashboard values.
	GetProgress(ctx context.Context, studentID, courseID string) (*ProgressView, error)
}

// InteractionRequest is one submitted interaction.
type InteractionRequest struct {
	StudentID  string
	CourseID   string
	BlockID    string
	ConceptKey string
	IsCorrect  bool
	Score      float64
	MaxScore   float64
	// SubmittedAt defaults to the service clock.
	SubmittedAt time.Time
	// Question and Answer seed the review item on first exposure to ConceptKey.
	Question string
	Answer   string
	// ResponseID identifies the submission. Resending the same id is a
	// no-op, so clients can retry safely. Generated when empty.
	ResponseID string
}

type InteractionResult struct {
	Metrics      performance.Metrics `json:"metrics"`
	XPAwarded    int                 `json:"xp_awarded"`
	NewBadges    []string            `json:"new_badges"`
	Gamification gamification.State  `json:"gamification"`
	Version      int64               `json:"version"`
	ResponseID   string              `json:"response_id"`
	// Duplicate is set when ResponseID had already been recorded.
	Duplicate bool `json:"duplicate"`
}

type ReviewRequest struct {
	StudentID  string
	ConceptKey string
	Quality    srs.Quality
}

type DueResult struct {
	Items    []srs.ReviewItem `json:"items"`
	TotalDue int              `json:"total_due"`
	Stats    srs.Stats        `json:"stats"`
}

type PathEvaluation struct {
	Recommendation path.Recommendation `json:"recommendation"`
	Path           path.StudentPath    `json:"path"`
	Finished       bool                `json:"finished"`
	// AtBranchTarget is set when the recommended branch leads to the node
	// the student is already on, so taking it would not move them.
	AtBranchTarget bool `json:"at_branch_target"`
}

type BranchRequest struct {
	StudentID string
	CourseID  string
	Action    path.ActionType
	BranchID  string
	Reason    string
}

type ModuleCompletion struct {
	StudentID string
	CourseID  string
	ModuleID  string
	// Score and MaxScore describe the module assessment; MaxScore 0 means none.
	Score    float64
	MaxScore float64
	// CompletesChapter is set when this module closes a chapter.
	CompletesChapter bool
}

type CompletionResult struct {
	XPAwarded        int                `json:"xp_awarded"`
	LeveledUp        bool               `json:"leveled_up"`
	AlreadyCompleted bool               `json:"already_completed"`
	NewBadges        []string           `json:"new_badges"`
	Gamification     gamification.State `json:"gamification"`
	Path             path.StudentPath   `json:"path"`
}

type ChallengeResult struct {
	Challenge    gamification.DailyChallenge `json:"challenge"`
	Awarded      bool                        `json:"awarded"`
	NewBadges    []string                    `json:"new_badges"`
	Gamification gamification.State          `json:"gamification"`
}

type ProgressView struct {
	StudentID    string                      `json:"student_id"`
	CourseID     string                      `json:"course_id"`
	Version      int64                       `json:"version"`
	UpdatedTs    int64                       `json:"updated_ts"`
	Metrics      performance.Metrics         `json:"metrics"`
	Path         path.StudentPath            `json:"path"`
	Gamification gamification.State          `json:"gamification"`
	Summary      gamification.Summary        `json:"summary"`
	Activity     store.ActivityStats         `json:"activity"`
	Challenge    gamification.DailyChallenge `json:"challenge"`
}
