package defect

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/domain/events"
	"github.com/ahrav/defect-armada/pkg/common/logger"
)

// mockDefectRepo implements defect.DefectRepository for testing.
type mockDefectRepo struct{ mock.Mock }

func (m *mockDefectRepo) QueryDefects(ctx context.Context, taskID int64, filter *defect.QueryFilter) ([]*defect.Defect, error) {
	args := m.Called(ctx, taskID, filter)
	if defects := args.Get(0); defects != nil {
		return defects.([]*defect.Defect), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDefectRepo) LookupDefectsByKeys(ctx context.Context, taskID int64, keys []string) (map[string]*defect.Defect, error) {
	args := m.Called(ctx, taskID, keys)
	if found := args.Get(0); found != nil {
		return found.(map[string]*defect.Defect), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDefectRepo) CreateDefect(ctx context.Context, d *defect.Defect) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDefectRepo) UpdateDefects(ctx context.Context, defects []*defect.Defect) error {
	args := m.Called(ctx, defects)
	return args.Error(0)
}

// mockDomainEventPublisher implements events.DomainEventPublisher for testing.
type mockDomainEventPublisher struct{ mock.Mock }

func (m *mockDomainEventPublisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	args := m.Called(ctx, event, opts)
	return args.Error(0)
}

// mockBatchOperation implements defect.BatchOperation for testing the resolver
// in isolation from any concrete operation.
type mockBatchOperation struct {
	mock.Mock
	kind      defect.OperationKind
	condition defect.Status
}

func (m *mockBatchOperation) Kind() defect.OperationKind      { return m.kind }
func (m *mockBatchOperation) StatusCondition() defect.Status { return m.condition }

func (m *mockBatchOperation) ResolveByFilter(ctx context.Context, taskID int64, filter *defect.QueryFilter) ([]*defect.Defect, error) {
	args := m.Called(ctx, taskID, filter)
	if defects := args.Get(0); defects != nil {
		return defects.([]*defect.Defect), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBatchOperation) ResolveByKeys(ctx context.Context, taskID int64, keys []string) ([]*defect.Defect, error) {
	args := m.Called(ctx, taskID, keys)
	if defects := args.Get(0); defects != nil {
		return defects.([]*defect.Defect), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBatchOperation) Apply(ctx context.Context, defects []*defect.Defect, req *defect.BatchRequest) error {
	args := m.Called(ctx, defects, req)
	return args.Error(0)
}

// recordingMetrics implements BatchMetrics and remembers what was recorded.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	resolved []int
	mutated  int
	skipped  int
}

func (r *recordingMetrics) IncBatchesProcessed(_ context.Context, _ defect.OperationKind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) ObserveDefectsResolved(_ context.Context, _ defect.OperationKind, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, n)
}

func (r *recordingMetrics) AddDefectsMutated(_ context.Context, _ defect.OperationKind, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutated += n
}

func (r *recordingMetrics) AddDefectsSkipped(_ context.Context, _ defect.OperationKind, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped += n
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 10, 31, 12, 0, 0, 0, time.UTC)

func testTracer() trace.Tracer { return noop.NewTracerProvider().Tracer("test") }

func newTestDefect(key string, status defect.Status) *defect.Defect {
	return defect.ReconstructDefect(defect.Snapshot{
		Key:      key,
		TaskID:   42,
		ToolName: "COVERITY",
		Checker:  "NULL_DEREF",
		FilePath: "src/" + key + ".c",
		Authors:  []string{"alice"},
		Status:   status,
	})
}

type opSuite struct {
	repo      *mockDefectRepo
	publisher *mockDomainEventPublisher
	metrics   *recordingMetrics
	deps      OperationDeps
}

func newOpSuite() *opSuite {
	s := &opSuite{
		repo:      new(mockDefectRepo),
		publisher: new(mockDomainEventPublisher),
		metrics:   new(recordingMetrics),
	}
	s.deps = OperationDeps{
		Repo:      s.repo,
		Publisher: s.publisher,
		Clock:     fixedClock{t: testNow},
		Metrics:   s.metrics,
		Logger:    logger.Noop(),
		Tracer:    testTracer(),
	}
	return s
}
