package defect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/defect-armada/internal/domain/defect"
)

func TestBatchService_ProcessBatch(t *testing.T) {
	s := newOpSuite()
	svc := NewDefaultBatchService(s.deps)

	assert.ElementsMatch(t, []defect.OperationKind{
		defect.OperationIgnore, defect.OperationAssign, defect.OperationFlag, defect.OperationRestore,
	}, svc.Operations())

	ignored := newTestDefect("a", defect.StatusIgnored)
	s.repo.On("QueryDefects", mock.Anything, int64(9), mock.MatchedBy(func(f *defect.QueryFilter) bool {
		return assert.ObjectsAreEqual([]defect.Status{defect.StatusIgnored}, f.Status)
	})).Return([]*defect.Defect{ignored}, nil).Once()
	s.repo.On("UpdateDefects", mock.Anything, []*defect.Defect{ignored}).Return(nil).Once()
	s.publisher.On("PublishDomainEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	res, err := svc.ProcessBatch(context.Background(), defect.OperationRestore, &defect.BatchRequest{
		TaskID:          9,
		SelectAll:       true,
		QueryFilterJSON: `{"status":[1]}`,
	})

	require.NoError(t, err)
	assert.Equal(t, defect.BatchSuccessMessage, res.Message)
	assert.Equal(t, defect.StatusNew, ignored.Status())
	s.repo.AssertExpectations(t)
}

func TestBatchService_UnknownOperation(t *testing.T) {
	s := newOpSuite()
	svc := NewBatchService(NewBatchResolver(s.deps.Logger, s.deps.Tracer, s.metrics), s.deps.Logger,
		NewIgnoreOperation(s.deps))

	_, err := svc.ProcessBatch(context.Background(), defect.OperationRestore, &defect.BatchRequest{})

	assert.ErrorIs(t, err, defect.ErrUnknownOperation)
	s.repo.AssertNotCalled(t, "QueryDefects", mock.Anything, mock.Anything, mock.Anything)
}
