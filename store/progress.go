package store

import (
	"encoding/json"
	"slices"

	"github.com/pkg/errors"

	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/performance"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when an aggregate changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrNoChange tells UpdateProgress that the mutation decided not to write.
	ErrNoChange = errors.New("no change")
)

// ActivityStats are the cumulative counters badge rules are judged on.
type ActivityStats struct {
	CompletedModules  []string `json:"completed_modules"`
	CompletedChapters int      `json:"completed_chapters"`
	PerfectScores     int      `json:"perfect_scores"`
	// CompletionDay is the local date (YYYY-MM-DD) ModulesOnDay counts for.
	CompletionDay string `json:"completion_day,omitempty"`
	ModulesOnDay  int    `json:"modules_on_day"`
	// DeclinedBranches records branches the student turned down.
	DeclinedBranches []path.BranchRecord `json:"declined_branches,omitempty"`
	// AppliedResponses holds the most recent response uids folded into the
	// aggregate, oldest first.
	AppliedResponses []string `json:"applied_responses,omitempty"`
}

// maxAppliedResponses bounds how far back a replayed response is recognized.
const maxAppliedResponses = 200

// HasAppliedResponse reports whether the response uid was already folded in.
func (a *ActivityStats) HasAppliedResponse(uid string) bool {
	return slices.Contains(a.AppliedResponses, uid)
}

// MarkResponseApplied records uid, dropping the oldest entries past the bound.
func (a *ActivityStats) MarkResponseApplied(uid string) {
	a.AppliedResponses = append(a.AppliedResponses, uid)
	if over := len(a.AppliedResponses) - maxAppliedResponses; over > 0 {
		a.AppliedResponses = slices.Delete(a.AppliedResponses, 0, over)
	}
}

// Progress is the per-(student, course) aggregate. Version increases by one
// on every successful write and guards against lost updates.
type Progress struct {
	StudentID string
	CourseID  string
	Version   int64
	CreatedTs int64
	UpdatedTs int64

	Metrics      performance.Metrics
	Path         path.StudentPath
	Gamification gamification.State
	Activity     ActivityStats
}

// NewProgress returns an unsaved aggregate with neutral metrics.
func NewProgress(studentID, courseID string) *Progress {
	return &Progress{
		StudentID:    studentID,
		CourseID:     courseID,
		Metrics:      performance.Neutral(),
		Gamification: gamification.NewState(),
		Activity:     ActivityStats{CompletedModules: []string{}},
	}
}

// HasCompletedModule reports whether moduleID was already completed.
func (p *Progress) HasCompletedModule(moduleID string) bool {
	return slices.Contains(p.Activity.CompletedModules, moduleID)
}

// FindProgress is the find condition for progress aggregates.
type FindProgress struct {
	StudentID *string
	CourseID  *string
}

type progressPayload struct {
	Metrics      performance.Metrics `json:"metrics"`
	Path         path.StudentPath    `json:"path"`
	Gamification gamification.State  `json:"gamification"`
	Activity     ActivityStats       `json:"activity"`
}

// EncodePayload serializes the aggregate body for storage.
func (p *Progress) EncodePayload() (string, error) {
	data, err := json.Marshal(progressPayload{
		Metrics:      p.Metrics,
		Path:         p.Path,
		Gamification: p.Gamification,
		Activity:     p.Activity,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode progress")
	}
	return string(data), nil
}

// DecodePayload restores the aggregate body from storage.
func (p *Progress) DecodePayload(payload string) error {
	body := progressPayload{
		Metrics:      performance.Neutral(),
		Gamification: gamification.NewState(),
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &body); err != nil {
			return errors.Wrapf(err, "failed to decode progress for %s/%s", p.StudentID, p.CourseID)
		}
	}
	p.Metrics = body.Metrics
	p.Path = body.Path
	p.Gamification = body.Gamification
	p.Activity = body.Activity
	return nil
}
