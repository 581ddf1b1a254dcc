// Package learning orchestrates the learning engines over stored progress.
//
// Each operation loads the (student, course) aggregate, runs the pure
// engines on it and writes it back. Writes are serialized in-process by a
// per-aggregate lock and across processes by the store's version check with
// bounded retry.
package learning

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/hrygo/learnengine/internal/errors"
	"github.com/hrygo/learnengine/internal/observability"
	"github.com/hrygo/learnengine/plugin/learning/badge"
	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/server/timezone"
	"github.com/hrygo/learnengine/store"
)

// Operation names used in logs and metrics.
const (
	OpRecordInteraction      = "record_interaction"
	OpReviewConcept          = "review_concept"
	OpListDue                = "list_due"
	OpImportCourse           = "import_course"
	OpEvaluatePath           = "evaluate_path"
	OpExecuteBranch          = "execute_branch"
	OpCompleteModule         = "complete_module"
	OpCompleteDailyChallenge = "complete_daily_challenge"
	OpGetProgress            = "get_progress"
)

// Store is the interface for store operations needed by the learning service.
type Store interface {
	GetProgress(ctx context.Context, studentID, courseID string) (*store.Progress, error)
	UpdateProgress(ctx context.Context, studentID, courseID string, mutate func(*store.Progress) error) (*store.Progress, error)
	GetCourseGraph(ctx context.Context, courseID string) (*path.Graph, error)
	SaveCourseGraph(ctx context.Context, g *path.Graph) error
	CreateResponse(ctx context.Context, create *store.Response) (*store.Response, error)
	ListResponses(ctx context.Context, find *store.FindResponse) ([]*store.Response, error)
	UpsertReviewItem(ctx context.Context, upsert *store.ReviewItem) (*store.ReviewItem, error)
	GetReviewItem(ctx context.Context, studentID, conceptKey string) (*store.ReviewItem, error)
	ListReviewItems(ctx context.Context, find *store.FindReviewItem) ([]*store.ReviewItem, error)
}

// conflictNotifier is implemented by stores that report version-conflict retries.
type conflictNotifier interface {
	SetOnConflict(fn func(ctx context.Context, studentID, courseID string, attempt int))
}

// Config holds the service dependencies that are not the store.
type Config struct {
	Location *time.Location
	Catalog  *badge.Catalog
	SRS      srs.Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	// Now is the service clock; defaults to time.Now.
	Now func() time.Time
}

type service struct {
	store   Store
	loc     *time.Location
	catalog *badge.Catalog
	srsCfg  srs.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
	locks   *keyedMutex
}

// NewService creates a new learning service.
func NewService(st Store, cfg Config) Service {
	s := &service{
		store:   st,
		loc:     cfg.Location,
		catalog: cfg.Catalog,
		srsCfg:  cfg.SRS,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		locks:   newKeyedMutex(),
	}
	if s.loc == nil {
		s.loc = timezone.Local
	}
	if s.catalog == nil {
		s.catalog = badge.DefaultCatalog()
	}
	if s.srsCfg.MaxDailyReviews <= 0 {
		s.srsCfg = srs.DefaultConfig()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(0)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if n, ok := st.(conflictNotifier); ok {
		n.SetOnConflict(s.onConflict)
	}
	return s
}

func (s *service) onConflict(ctx context.Context, studentID, courseID string, attempt int) {
	s.metrics.RecordConflictRetry()
	if rc, ok := observability.FromContext(ctx); ok {
		rc.Warn("version conflict, retrying", slog.Int(observability.LogFieldAttempt, attempt))
		return
	}
	s.logger.Warn("version conflict, retrying",
		slog.String(observability.LogFieldStudentID, studentID),
		slog.String(observability.LogFieldCourseID, courseID),
		slog.Int(observability.LogFieldAttempt, attempt))
}

// run executes fn as one logged, measured operation holding the lock for
// lockKey. Errors come back classified.
func (s *service) run(ctx context.Context, op, studentID, courseID, lockKey string, fn func(ctx context.Context, rc *observability.RequestContext) error) error {
	rc := observability.NewRequestContext(s.logger, op, studentID, courseID)
	ctx = observability.WithRequestContext(ctx, rc)
	s.metrics.RecordRequest(op)

	if lockKey != "" {
		unlock := s.locks.Lock(lockKey)
		defer unlock()
	}

	err := fn(ctx, rc)
	s.metrics.RecordDuration(op, rc.Duration())
	if err != nil {
		le := apperrors.Classify(err)
		s.metrics.RecordFailure(op)
		rc.Error("operation failed", err, slog.String(observability.LogFieldErrorCode, string(le.Code)))
		return le
	}
	rc.Done()
	return nil
}

func aggregateKey(studentID, courseID string) string {
	return "progress/" + studentID + "/" + courseID
}

func requireIDs(studentID, courseID string) error {
	if studentID == "" {
		return apperrors.InvalidArgument("student id is required")
	}
	if courseID == "" {
		return apperrors.InvalidArgument("course id is required")
	}
	return nil
}

// badgeProgress builds the badge engine's view of an aggregate at now.
func (s *service) badgeProgress(p *store.Progress, now time.Time) badge.Progress {
	today := 0
	if p.Activity.CompletionDay == timezone.FormatDate(now, s.loc) {
		today = p.Activity.ModulesOnDay
	}
	return badge.Progress{
		CompletedModules:  len(p.Activity.CompletedModules),
		CompletedChapters: p.Activity.CompletedChapters,
		PerfectScores:     p.Activity.PerfectScores,
		Accuracy:          p.Metrics.Accuracy,
		ModulesToday:      today,
	}
}

// awardBadges grants every badge the aggregate now qualifies for. Badge XP
// can unlock further badges, so evaluation repeats until nothing new is
// earned.
func (s *service) awardBadges(p *store.Progress, now time.Time) ([]string, error) {
	awarded := []string{}
	for range s.catalog.Len() + 1 {
		earned, err := badge.Evaluate(s.catalog, s.badgeProgress(p, now), p.Gamification)
		if err != nil {
			return nil, err
		}
		if len(earned) == 0 {
			break
		}
		for _, id := range earned {
			b, _ := s.catalog.Get(id)
			var ok bool
			p.Gamification, ok = gamification.AwardBadge(p.Gamification, id, b.XPReward)
			if ok {
				awarded = append(awarded, id)
			}
		}
	}
	return awarded, nil
}

// ensurePath places a student on the course graph the first time it is used.
func ensurePath(g *path.Graph, p *store.Progress) {
	if p.Path.CurrentNodeID == "" {
		p.Path = path.NewStudentPath(g)
	}
}
