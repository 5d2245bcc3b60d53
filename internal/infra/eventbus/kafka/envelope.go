package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/domain/events"
)

// ErrUnknownEventType is returned when a message carries an event type with
// no registered payload decoder.
var ErrUnknownEventType = errors.New("unknown event type")

// wireEnvelope is the JSON document written as the Kafka record value.
type wireEnvelope struct {
	Type      events.EventType  `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
}

type payloadDecoder func(data []byte) (any, error)

func decodeAs[T any](data []byte) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// payloadDecoders maps every event type this service produces to the
// concrete type its payload decodes into.
var payloadDecoders = map[events.EventType]payloadDecoder{
	defect.EventTypeDefectsBatchProcessed: decodeAs[defect.DefectsBatchProcessedEvent],
}

func marshalEnvelope(evt events.EventEnvelope) ([]byte, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return json.Marshal(wireEnvelope{
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Headers:   evt.Headers,
		Payload:   payload,
	})
}

func unmarshalEnvelope(data []byte) (events.EventEnvelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return events.EventEnvelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	decode, ok := payloadDecoders[w.Type]
	if !ok {
		return events.EventEnvelope{}, fmt.Errorf("%w: %s", ErrUnknownEventType, w.Type)
	}

	payload, err := decode(w.Payload)
	if err != nil {
		return events.EventEnvelope{}, fmt.Errorf("unmarshal payload for %s: %w", w.Type, err)
	}

	return events.EventEnvelope{
		Type:      w.Type,
		Timestamp: w.Timestamp,
		Headers:   w.Headers,
		Payload:   payload,
	}, nil
}
