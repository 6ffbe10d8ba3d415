package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/resolver"
	"github.com/sells-group/crossref-sync/internal/store"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

// --- Pure Mock ---

type mockPureClient struct {
	mock.Mock
}

func (m *mockPureClient) Get(ctx context.Context, id string) (*pure.ResearchOutput, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pure.ResearchOutput), args.Error(1)
}

func (m *mockPureClient) Update(ctx context.Context, id string, payload pure.UpdatePayload) error {
	args := m.Called(ctx, id, payload)
	return args.Error(0)
}

func (m *mockPureClient) RecordURL(id string) string {
	return "https://pure.test/ws/api/research-outputs/" + id
}

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, doi string) resolver.Resolution {
	args := m.Called(ctx, doi)
	return args.Get(0).(resolver.Resolution)
}

// --- Recorder ---

type captureRecorder struct {
	mu       sync.Mutex
	outcomes []model.RecordOutcome
	err      error
}

func (r *captureRecorder) Record(o model.RecordOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.err
}

func (r *captureRecorder) lines() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]int, len(r.outcomes))
	for i, o := range r.outcomes {
		lines[i] = o.Line
	}
	return lines
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, input string, total int, dryRun bool) (*model.Run, error) {
	args := m.Called(ctx, input, total, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, summary model.Summary) error {
	args := m.Called(ctx, runID, summary)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, msg string) error {
	args := m.Called(ctx, runID, msg)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) RecordOutcome(ctx context.Context, runID string, outcome model.RecordOutcome) error {
	args := m.Called(ctx, runID, outcome)
	return args.Error(0)
}

func (m *mockStore) ListOutcomes(ctx context.Context, runID string, filter store.OutcomeFilter) ([]model.RecordOutcome, error) {
	args := m.Called(ctx, runID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RecordOutcome), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
