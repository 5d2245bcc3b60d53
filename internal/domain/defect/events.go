package defect

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/defect-armada/internal/domain/events"
)

// EventTypeDefectsBatchProcessed is emitted after a batch operation has
// changed at least one defect.
const EventTypeDefectsBatchProcessed events.EventType = "DefectsBatchProcessed"

// DefectsBatchProcessedEvent records which defects a batch operation changed.
type DefectsBatchProcessedEvent struct {
	ID          uuid.UUID     `json:"id"`
	TaskID      int64         `json:"task_id"`
	Operation   OperationKind `json:"operation"`
	DefectKeys  []string      `json:"defect_keys"`
	Skipped     int           `json:"skipped"`
	RequestedBy string        `json:"requested_by,omitempty"`
	At          time.Time     `json:"occurred_at"`
}

// NewDefectsBatchProcessedEvent creates the event for a finished batch.
func NewDefectsBatchProcessedEvent(
	taskID int64,
	op OperationKind,
	keys []string,
	skipped int,
	requestedBy string,
	at time.Time,
) DefectsBatchProcessedEvent {
	return DefectsBatchProcessedEvent{
		ID:          uuid.New(),
		TaskID:      taskID,
		Operation:   op,
		DefectKeys:  keys,
		Skipped:     skipped,
		RequestedBy: requestedBy,
		At:          at,
	}
}

// EventType implements events.DomainEvent.
func (e DefectsBatchProcessedEvent) EventType() events.EventType {
	return EventTypeDefectsBatchProcessed
}

// OccurredAt implements events.DomainEvent.
func (e DefectsBatchProcessedEvent) OccurredAt() time.Time { return e.At }
