package defect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/pkg/common/logger"
)

type resolverSuite struct {
	op       *mockBatchOperation
	metrics  *recordingMetrics
	resolver *BatchResolver
}

func newResolverSuite(kind defect.OperationKind, condition defect.Status) *resolverSuite {
	metrics := new(recordingMetrics)
	return &resolverSuite{
		op:       &mockBatchOperation{kind: kind, condition: condition},
		metrics:  metrics,
		resolver: NewBatchResolver(logger.Noop(), testTracer(), metrics),
	}
}

func TestBatchResolver_SelectAllOverwritesStatus(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		condition defect.Status
	}{
		{name: "client status widened", filter: `{"status":[1,2,4,8]}`, condition: defect.StatusNew},
		{name: "client status conflicting", filter: `{"status":["FIXED"],"checkers":["X"]}`, condition: defect.StatusIgnored},
		{name: "no client status", filter: `{"authors":["bob"]}`, condition: defect.StatusNew},
		{name: "unknown status code", filter: `{"status":[3]}`, condition: defect.StatusNew},
		{name: "unknown numeric string", filter: `{"status":["32"]}`, condition: defect.StatusNew},
		{name: "unknown status name", filter: `{"status":["RESOLVED"],"checkers":["X"]}`, condition: defect.StatusIgnored},
		{name: "status not a list", filter: `{"status":{"any":"thing"}}`, condition: defect.StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newResolverSuite(defect.OperationIgnore, tt.condition)
			candidates := []*defect.Defect{newTestDefect("a", tt.condition)}

			s.op.On("ResolveByFilter", mock.Anything, int64(42), mock.MatchedBy(func(f *defect.QueryFilter) bool {
				return assert.ObjectsAreEqual([]defect.Status{tt.condition}, f.Status)
			})).Return(candidates, nil).Once()
			s.op.On("Apply", mock.Anything, candidates, mock.Anything).Return(nil).Once()

			res, err := s.resolver.Process(context.Background(), s.op, &defect.BatchRequest{
				TaskID:          42,
				SelectAll:       true,
				QueryFilterJSON: tt.filter,
			})

			require.NoError(t, err)
			assert.Equal(t, defect.BatchSuccessMessage, res.Message)
			assert.Equal(t, 1, res.Resolved)
			s.op.AssertExpectations(t)
			s.op.AssertNotCalled(t, "ResolveByKeys", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBatchResolver_SelectAllKeepsOtherPredicates(t *testing.T) {
	s := newResolverSuite(defect.OperationFlag, defect.StatusNew)

	s.op.On("ResolveByFilter", mock.Anything, int64(7), mock.MatchedBy(func(f *defect.QueryFilter) bool {
		return assert.ObjectsAreEqual([]string{"NULL_DEREF"}, f.Checkers) &&
			assert.ObjectsAreEqual([]string{"src/"}, f.FilePaths)
	})).Return([]*defect.Defect{}, nil).Once()

	_, err := s.resolver.Process(context.Background(), s.op, &defect.BatchRequest{
		TaskID:          7,
		SelectAll:       true,
		QueryFilterJSON: `{"status":[4],"checkers":["NULL_DEREF"],"file_paths":["src/"]}`,
	})

	require.NoError(t, err)
	s.op.AssertExpectations(t)
}

func TestBatchResolver_InvalidFilterRejected(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "{not json", `"a string"`} {
		t.Run(raw, func(t *testing.T) {
			s := newResolverSuite(defect.OperationIgnore, defect.StatusNew)

			_, err := s.resolver.Process(context.Background(), s.op, &defect.BatchRequest{
				TaskID:          1,
				SelectAll:       true,
				QueryFilterJSON: raw,
				DefectKeys:      []string{"ignored-in-select-all"},
			})

			require.Error(t, err)
			assert.True(t, defect.IsInvalidArgument(err))
			assert.ErrorIs(t, err, defect.ErrInvalidQueryFilter)
			s.op.AssertNotCalled(t, "ResolveByFilter", mock.Anything, mock.Anything, mock.Anything)
			s.op.AssertNotCalled(t, "ResolveByKeys", mock.Anything, mock.Anything, mock.Anything)
			s.op.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, []string{outcomeInvalidArgument}, s.metrics.outcomes)
		})
	}
}

func TestBatchResolver_NilRequest(t *testing.T) {
	s := newResolverSuite(defect.OperationIgnore, defect.StatusNew)

	_, err := s.resolver.Process(context.Background(), s.op, nil)

	assert.True(t, defect.IsInvalidArgument(err))
}

func TestBatchResolver_EmptyCandidatesIsNoop(t *testing.T) {
	tests := []struct {
		name  string
		req   *defect.BatchRequest
		setup func(op *mockBatchOperation)
	}{
		{
			name: "select all matches nothing",
			req:  &defect.BatchRequest{TaskID: 1, SelectAll: true, QueryFilterJSON: `{}`},
			setup: func(op *mockBatchOperation) {
				op.On("ResolveByFilter", mock.Anything, int64(1), mock.Anything).Return([]*defect.Defect{}, nil)
			},
		},
		{
			name: "select all nil slice",
			req:  &defect.BatchRequest{TaskID: 1, SelectAll: true, QueryFilterJSON: `{}`},
			setup: func(op *mockBatchOperation) {
				op.On("ResolveByFilter", mock.Anything, int64(1), mock.Anything).Return(nil, nil)
			},
		},
		{
			name: "every explicit key deleted",
			req:  &defect.BatchRequest{TaskID: 1, DefectKeys: []string{"gone-1", "gone-2"}},
			setup: func(op *mockBatchOperation) {
				op.On("ResolveByKeys", mock.Anything, int64(1), []string{"gone-1", "gone-2"}).Return([]*defect.Defect{}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newResolverSuite(defect.OperationAssign, defect.StatusNew)
			tt.setup(s.op)

			res, err := s.resolver.Process(context.Background(), s.op, tt.req)

			require.NoError(t, err)
			assert.Equal(t, defect.BatchSuccessMessage, res.Message)
			assert.Zero(t, res.Resolved)
			s.op.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, []string{outcomeNoop}, s.metrics.outcomes)
		})
	}
}

func TestBatchResolver_ExplicitKeysPath(t *testing.T) {
	s := newResolverSuite(defect.OperationIgnore, defect.StatusNew)
	keys := []string{"a", "b", "c"}
	candidates := []*defect.Defect{newTestDefect("a", defect.StatusNew), newTestDefect("c", defect.StatusNew)}
	req := &defect.BatchRequest{TaskID: 3, DefectKeys: keys, QueryFilterJSON: "garbage is ignored"}

	s.op.On("ResolveByKeys", mock.Anything, int64(3), keys).Return(candidates, nil).Once()
	s.op.On("Apply", mock.Anything, candidates, req).Return(nil).Once()

	res, err := s.resolver.Process(context.Background(), s.op, req)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Resolved)
	s.op.AssertExpectations(t)
	s.op.AssertNotCalled(t, "ResolveByFilter", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchResolver_CandidateOrderPassedThrough(t *testing.T) {
	s := newResolverSuite(defect.OperationFlag, defect.StatusNew)
	candidates := []*defect.Defect{
		newTestDefect("z", defect.StatusNew),
		newTestDefect("a", defect.StatusNew),
		newTestDefect("m", defect.StatusNew),
	}

	var got []*defect.Defect
	s.op.On("ResolveByFilter", mock.Anything, int64(1), mock.Anything).Return(candidates, nil)
	s.op.On("Apply", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).([]*defect.Defect) }).
		Return(nil)

	_, err := s.resolver.Process(context.Background(), s.op, &defect.BatchRequest{
		TaskID: 1, SelectAll: true, QueryFilterJSON: `{}`,
	})

	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range candidates {
		assert.Same(t, candidates[i], got[i])
	}
}

func TestBatchResolver_ErrorsPassThroughUnchanged(t *testing.T) {
	storeErr := errors.New("store unavailable")
	mutateErr := errors.New("mutation conflict")

	tests := []struct {
		name    string
		req     *defect.BatchRequest
		setup   func(op *mockBatchOperation)
		wantErr error
	}{
		{
			name: "query failure",
			req:  &defect.BatchRequest{TaskID: 1, SelectAll: true, QueryFilterJSON: `{}`},
			setup: func(op *mockBatchOperation) {
				op.On("ResolveByFilter", mock.Anything, int64(1), mock.Anything).Return(nil, storeErr)
			},
			wantErr: storeErr,
		},
		{
			name: "lookup failure",
			req:  &defect.BatchRequest{TaskID: 1, DefectKeys: []string{"a"}},
			setup: func(op *mockBatchOperation) {
				op.On("ResolveByKeys", mock.Anything, int64(1), []string{"a"}).Return(nil, storeErr)
			},
			wantErr: storeErr,
		},
		{
			name: "mutation failure",
			req:  &defect.BatchRequest{TaskID: 1, DefectKeys: []string{"a"}},
			setup: func(op *mockBatchOperation) {
				op.On("ResolveByKeys", mock.Anything, int64(1), []string{"a"}).
					Return([]*defect.Defect{newTestDefect("a", defect.StatusNew)}, nil)
				op.On("Apply", mock.Anything, mock.Anything, mock.Anything).Return(mutateErr).Once()
			},
			wantErr: mutateErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newResolverSuite(defect.OperationIgnore, defect.StatusNew)
			tt.setup(s.op)

			res, err := s.resolver.Process(context.Background(), s.op, tt.req)

			require.Error(t, err)
			assert.True(t, err == tt.wantErr, "error must be returned unwrapped")
			assert.Empty(t, res.Message)
			assert.Equal(t, []string{outcomeUpstreamFailure}, s.metrics.outcomes)
			s.op.AssertExpectations(t)
		})
	}
}
