package learning

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hrygo/learnengine/plugin/learning/path"
	"github.com/hrygo/learnengine/store"
)

// MockStoreForLearning is an in-memory Store with version-checked writes.
type MockStoreForLearning struct {
	mu         sync.Mutex
	progress   map[string]*store.Progress
	graphs     map[string]*path.Graph
	responses  []*store.Response
	items      map[string]*store.ReviewItem
	onConflict func(ctx context.Context, studentID, courseID string, attempt int)

	// conflicts makes the next n writes fail as if another writer won.
	conflicts int
	writes    int
}

func NewMockStore() *MockStoreForLearning {
	return &MockStoreForLearning{
		progress: make(map[string]*store.Progress),
		graphs:   make(map[string]*path.Graph),
		items:    make(map[string]*store.ReviewItem),
	}
}

func cloneProgress(p *store.Progress) *store.Progress {
	payload, err := p.EncodePayload()
	if err != nil {
		panic(err)
	}
	out := &store.Progress{
		StudentID: p.StudentID,
		CourseID:  p.CourseID,
		Version:   p.Version,
		CreatedTs: p.CreatedTs,
		UpdatedTs: p.UpdatedTs,
	}
	if err := out.DecodePayload(payload); err != nil {
		panic(err)
	}
	return out
}

func (m *MockStoreForLearning) SetOnConflict(fn func(ctx context.Context, studentID, courseID string, attempt int)) {
	m.onConflict = fn
}

func (m *MockStoreForLearning) GetProgress(_ context.Context, studentID, courseID string) (*store.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[studentID+"/"+courseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneProgress(p), nil
}

func (m *MockStoreForLearning) UpdateProgress(ctx context.Context, studentID, courseID string, mutate func(*store.Progress) error) (*store.Progress, error) {
	key := studentID + "/" + courseID
	for attempt := 1; attempt <= 10; attempt++ {
		if attempt > 1 && m.onConflict != nil {
			m.onConflict(ctx, studentID, courseID, attempt)
		}
		m.mu.Lock()
		current, ok := m.progress[key]
		m.mu.Unlock()
		var working *store.Progress
		if ok {
			working = cloneProgress(current)
		} else {
			working = store.NewProgress(studentID, courseID)
		}

		if err := mutate(working); err != nil {
			if errors.Is(err, store.ErrNoChange) {
				return working, nil
			}
			return nil, err
		}

		m.mu.Lock()
		if m.conflicts > 0 {
			m.conflicts--
			m.mu.Unlock()
			continue
		}
		if stored, ok := m.progress[key]; ok && stored.Version != working.Version {
			m.mu.Unlock()
			continue
		}
		working.Version++
		m.progress[key] = cloneProgress(working)
		m.writes++
		m.mu.Unlock()
		return working, nil
	}
	return nil, store.ErrVersionConflict
}

func (m *MockStoreForLearning) GetCourseGraph(_ context.Context, courseID string) (*path.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[courseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return g, nil
}

func (m *MockStoreForLearning) SaveCourseGraph(_ context.Context, g *path.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[g.CourseID] = g
	return nil
}

func (m *MockStoreForLearning) CreateResponse(_ context.Context, create *store.Response) (*store.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if r.UID == create.UID {
			return create, nil
		}
	}
	m.responses = append(m.responses, create)
	return create, nil
}

func (m *MockStoreForLearning) ListResponses(_ context.Context, find *store.FindResponse) ([]*store.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Response
	for _, r := range m.responses {
		if r.StudentID == find.StudentID && r.CourseID == find.CourseID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *MockStoreForLearning) UpsertReviewItem(_ context.Context, upsert *store.ReviewItem) (*store.ReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if upsert.UID == "" {
		upsert.UID = upsert.StudentID + ":" + upsert.ConceptKey
	}
	cp := *upsert
	m.items[upsert.StudentID+"/"+upsert.ConceptKey] = &cp
	return upsert, nil
}

func (m *MockStoreForLearning) GetReviewItem(_ context.Context, studentID, conceptKey string) (*store.ReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[studentID+"/"+conceptKey]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (m *MockStoreForLearning) ListReviewItems(_ context.Context, find *store.FindReviewItem) ([]*store.ReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ReviewItem
	for _, it := range m.items {
		if find.StudentID != nil && it.StudentID != *find.StudentID {
			continue
		}
		if it.Archived && !find.IncludeArchived {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConceptKey < out[j].ConceptKey })
	return out, nil
}
