package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/learnengine/plugin/learning/path"
)

// CourseGraph is the stored form of a course's path definition.
type CourseGraph struct {
	CourseID  string
	Payload   []byte // JSON GraphDocument
	UpdatedTs int64
}

func graphCacheKey(courseID string) string {
	return "graph:" + courseID
}

// SaveCourseGraph validates and stores a course graph, replacing any
// previous version.
func (s *Store) SaveCourseGraph(ctx context.Context, g *path.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	payload, err := path.MarshalGraph(g)
	if err != nil {
		return err
	}
	if _, err := s.driver.UpsertCourseGraph(ctx, &CourseGraph{CourseID: g.CourseID, Payload: payload}); err != nil {
		return errors.Wrapf(err, "failed to save course graph %s", g.CourseID)
	}
	s.graphCache.Delete(ctx, graphCacheKey(g.CourseID))
	return nil
}

// GetCourseGraph returns a course graph, served from the graph cache when
// possible. Course graphs are static once authored.
func (s *Store) GetCourseGraph(ctx context.Context, courseID string) (*path.Graph, error) {
	data, err := s.graphCache.Get(ctx, graphCacheKey(courseID), func(ctx context.Context, _ string) ([]byte, error) {
		cg, err := s.driver.GetCourseGraph(ctx, courseID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load course graph %s", courseID)
		}
		if cg == nil {
			return nil, errors.Wrapf(ErrNotFound, "course graph %s", courseID)
		}
		return cg.Payload, nil
	})
	if err != nil {
		return nil, err
	}
	return path.ParseGraph(data)
}
