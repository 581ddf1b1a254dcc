package learning

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	apperrors "github.com/hrygo/learnengine/internal/errors"
	"github.com/hrygo/learnengine/internal/observability"
	"github.com/hrygo/learnengine/plugin/learning/gamification"
	"github.com/hrygo/learnengine/plugin/learning/performance"
	"github.com/hrygo/learnengine/plugin/learning/srs"
	"github.com/hrygo/learnengine/store"
)

func reviewKey(studentID, conceptKey string) string {
	return "review/" + studentID + "/" + conceptKey
}

func validateInteraction(req *InteractionRequest) error {
	if err := requireIDs(req.StudentID, req.CourseID); err != nil {
		return err
	}
	switch {
	case req.BlockID == "":
		return apperrors.InvalidArgument("block id is required")
	case req.MaxScore < 0 || req.Score < 0:
		return apperrors.InvalidArgument("scores must not be negative")
	case req.Score > req.MaxScore:
		return apperrors.InvalidArgument("score exceeds max score")
	}
	return nil
}

func (s *service) RecordInteraction(ctx context.Context, req *InteractionRequest) (*InteractionResult, error) {
	if err := validateInteraction(req); err != nil {
		return nil, err
	}

	var result *InteractionResult
	err := s.run(ctx, OpRecordInteraction, req.StudentID, req.CourseID, aggregateKey(req.StudentID, req.CourseID), func(ctx context.Context, rc *observability.RequestContext) error {
		now := s.now()
		submitted := req.SubmittedAt
		if submitted.IsZero() {
			submitted = now
		}
		resp := performance.Response{
			BlockID:     req.BlockID,
			ConceptKey:  req.ConceptKey,
			IsCorrect:   req.IsCorrect,
			Score:       req.Score,
			MaxScore:    req.MaxScore,
			SubmittedAt: submitted,
		}
		responseID := req.ResponseID
		if responseID == "" {
			responseID = shortuuid.New()
		}
		// The insert is idempotent on responseID. A retry after a failed
		// progress update stores nothing new and folds the response in below.
		if _, err := s.store.CreateResponse(ctx, &store.Response{
			UID:       responseID,
			StudentID: req.StudentID,
			CourseID:  req.CourseID,
			Response:  resp,
		}); err != nil {
			return errors.Wrap(err, "failed to store response")
		}

		if req.ConceptKey != "" {
			if err := s.ensureReviewItem(ctx, req, now); err != nil {
				return err
			}
		}

		var xp int
		var newBadges []string
		duplicate := false
		saved, err := s.store.UpdateProgress(ctx, req.StudentID, req.CourseID, func(p *store.Progress) error {
			xp, newBadges, duplicate = 0, nil, false
			if p.Activity.HasAppliedResponse(responseID) {
				duplicate = true
				return store.ErrNoChange
			}
			history, err := s.store.ListResponses(ctx, &store.FindResponse{StudentID: req.StudentID, CourseID: req.CourseID})
			if err != nil {
				return errors.Wrap(err, "failed to list responses")
			}
			responses := make([]performance.Response, len(history))
			for i, r := range history {
				responses[i] = r.Response
			}
			prev := p.Metrics
			p.Metrics = performance.Calculate(responses, &prev)

			p.Activity.MarkResponseApplied(responseID)
			if resp.Graded() {
				action := gamification.ActionInteractionIncorrect
				if resp.IsCorrect {
					action = gamification.ActionInteractionCorrect
				}
				p.Gamification, xp, err = gamification.RecordActivity(p.Gamification, gamification.Activity{Action: action}, now, s.loc)
				if err != nil {
					return err
				}
			}
			newBadges, err = s.awardBadges(p, now)
			return err
		})
		if err != nil {
			return err
		}

		rc.Info("interaction recorded",
			slog.Int64(observability.LogFieldVersion, saved.Version),
			slog.String("response_id", responseID),
			slog.Bool("duplicate", duplicate),
			slog.Int("xp", xp),
			slog.Float64("accuracy", saved.Metrics.Accuracy))
		result = &InteractionResult{
			Metrics:      saved.Metrics,
			XPAwarded:    xp,
			NewBadges:    newBadges,
			Gamification: saved.Gamification,
			Version:      saved.Version,
			ResponseID:   responseID,
			Duplicate:    duplicate,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ensureReviewItem creates the concept's review item on first exposure.
func (s *service) ensureReviewItem(ctx context.Context, req *InteractionRequest, now time.Time) error {
	unlock := s.locks.Lock(reviewKey(req.StudentID, req.ConceptKey))
	defer unlock()

	existing, err := s.store.GetReviewItem(ctx, req.StudentID, req.ConceptKey)
	if err != nil {
		return errors.Wrap(err, "failed to load review item")
	}
	if existing != nil {
		return nil
	}
	_, err = s.store.UpsertReviewItem(ctx, &store.ReviewItem{
		StudentID:  req.StudentID,
		ReviewItem: srs.NewReviewItem(req.ConceptKey, req.Question, req.Answer, now),
	})
	return errors.Wrap(err, "failed to create review item")
}

func (s *service) ReviewConcept(ctx context.Context, req *ReviewRequest) (*store.ReviewItem, error) {
	if req.StudentID == "" || req.ConceptKey == "" {
		return nil, apperrors.InvalidArgument("student id and concept key are required")
	}
	if !req.Quality.IsValid() {
		return nil, apperrors.Classify(errors.Wrapf(srs.ErrInvalidQualityRating, "quality %d", req.Quality))
	}

	var result *store.ReviewItem
	err := s.run(ctx, OpReviewConcept, req.StudentID, "", reviewKey(req.StudentID, req.ConceptKey), func(ctx context.Context, rc *observability.RequestContext) error {
		item, err := s.store.GetReviewItem(ctx, req.StudentID, req.ConceptKey)
		if err != nil {
			return errors.Wrap(err, "failed to load review item")
		}
		if item == nil {
			return apperrors.NotFound("review item " + req.ConceptKey)
		}
		if item.Archived {
			return apperrors.InvalidArgument("review item " + req.ConceptKey + " is archived")
		}

		scheduled, err := srs.Schedule(item.ReviewItem, req.Quality, s.now())
		if err != nil {
			return err
		}
		item.ReviewItem = scheduled
		saved, err := s.store.UpsertReviewItem(ctx, item)
		if err != nil {
			return errors.Wrap(err, "failed to save review item")
		}

		rc.Info("concept reviewed",
			slog.String("concept_key", req.ConceptKey),
			slog.Int("quality", int(req.Quality)),
			slog.Int("interval", saved.Interval))
		result = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListDue(ctx context.Context, studentID string, limit int) (*DueResult, error) {
	if studentID == "" {
		return nil, apperrors.InvalidArgument("student id is required")
	}

	var result *DueResult
	err := s.run(ctx, OpListDue, studentID, "", "", func(ctx context.Context, _ *observability.RequestContext) error {
		stored, err := s.store.ListReviewItems(ctx, &store.FindReviewItem{StudentID: &studentID})
		if err != nil {
			return errors.Wrap(err, "failed to list review items")
		}
		items := make([]srs.ReviewItem, len(stored))
		for i, it := range stored {
			items[i] = it.ReviewItem
		}
		now := s.now()
		due, total := srs.DueItems(items, now, limit, s.srsCfg)
		result = &DueResult{
			Items:    due,
			TotalDue: total,
			Stats:    srs.Summarize(items, now, s.loc),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
