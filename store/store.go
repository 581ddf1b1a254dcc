package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"

	"github.com/hrygo/learnengine/internal/profile"
	"github.com/hrygo/learnengine/store/cache"
)

// Store provides database access to all learning records.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Course graphs are read on every path operation and change rarely.
	graphCache *cache.TieredCache

	// OnConflict is called before each retry of a conflicting write.
	OnConflict func(ctx context.Context, studentID, courseID string, attempt int)
}

// New creates a new instance of Store. l2 may be nil.
func New(driver Driver, profile *profile.Profile, l2 cache.L2) *Store {
	cacheConfig := cache.DefaultTieredConfig()
	if profile != nil && profile.CacheTTL > 0 {
		cacheConfig.L1TTL = profile.CacheTTL
		cacheConfig.L2TTL = 3 * profile.CacheTTL
	}
	return &Store{
		driver:     driver,
		profile:    profile,
		graphCache: cache.NewTieredCache(cacheConfig, l2),
	}
}

// SetOnConflict installs the conflict retry hook.
func (s *Store) SetOnConflict(fn func(ctx context.Context, studentID, courseID string, attempt int)) {
	s.OnConflict = fn
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// CacheStats reports graph cache hit counters.
func (s *Store) CacheStats() cache.Stats {
	return s.graphCache.Stats()
}

func (s *Store) Close() error {
	if err := s.graphCache.Close(); err != nil {
		slog.Warn("failed to close graph cache", slog.String("error", err.Error()))
	}
	return s.driver.Close()
}

func (s *Store) maxConflictRetries() int {
	if s.profile == nil || s.profile.MaxConflictRetries <= 0 {
		return profile.DefaultMaxConflictRetries
	}
	return s.profile.MaxConflictRetries
}

// GetProgress returns the aggregate for (studentID, courseID) or ErrNotFound.
func (s *Store) GetProgress(ctx context.Context, studentID, courseID string) (*Progress, error) {
	p, err := s.driver.GetProgress(ctx, &FindProgress{StudentID: &studentID, CourseID: &courseID})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.Wrapf(ErrNotFound, "progress %s/%s", studentID, courseID)
	}
	return p, nil
}

func (s *Store) ListProgress(ctx context.Context, find *FindProgress) ([]*Progress, error) {
	return s.driver.ListProgress(ctx, find)
}

// UpdateProgress loads the aggregate (or a fresh one), applies mutate and
// writes it back with a version check. On a version conflict the aggregate
// is reloaded and mutate runs again, with exponential backoff, up to the
// configured number of retries. mutate must not have side effects outside
// the aggregate it is given. When mutate returns ErrNoChange nothing is
// written and the loaded aggregate is returned as is.
func (s *Store) UpdateProgress(ctx context.Context, studentID, courseID string, mutate func(*Progress) error) (*Progress, error) {
	attempt := 0
	op := func() (*Progress, error) {
		attempt++
		if attempt > 1 && s.OnConflict != nil {
			s.OnConflict(ctx, studentID, courseID, attempt)
		}

		current, err := s.driver.GetProgress(ctx, &FindProgress{StudentID: &studentID, CourseID: &courseID})
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		isNew := current == nil
		if isNew {
			current = NewProgress(studentID, courseID)
		}
		if err := mutate(current); err != nil {
			if errors.Is(err, ErrNoChange) {
				return current, nil
			}
			return nil, backoff.Permanent(err)
		}

		var saved *Progress
		if isNew {
			saved, err = s.driver.CreateProgress(ctx, current)
		} else {
			saved, err = s.driver.UpdateProgress(ctx, current)
		}
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return saved, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 5 * time.Millisecond
	expBackoff.MaxInterval = 100 * time.Millisecond
	expBackoff.Multiplier = 2
	expBackoff.RandomizationFactor = 0.5

	saved, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(s.maxConflictRetries()+1)),
	)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpsertReviewItem stores the scheduling state for one concept.
func (s *Store) UpsertReviewItem(ctx context.Context, upsert *ReviewItem) (*ReviewItem, error) {
	return s.driver.UpsertReviewItem(ctx, upsert)
}

func (s *Store) ListReviewItems(ctx context.Context, find *FindReviewItem) ([]*ReviewItem, error) {
	return s.driver.ListReviewItems(ctx, find)
}

// GetReviewItem returns the item for (studentID, conceptKey), or nil when
// the concept has never been seen. Archived items are included.
func (s *Store) GetReviewItem(ctx context.Context, studentID, conceptKey string) (*ReviewItem, error) {
	list, err := s.driver.ListReviewItems(ctx, &FindReviewItem{
		StudentID:       &studentID,
		ConceptKey:      &conceptKey,
		IncludeArchived: true,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) CreateResponse(ctx context.Context, create *Response) (*Response, error) {
	return s.driver.CreateResponse(ctx, create)
}

func (s *Store) ListResponses(ctx context.Context, find *FindResponse) ([]*Response, error) {
	return s.driver.ListResponses(ctx, find)
}
