package events

import "context"

// HandlerFunc processes an event delivered by the event bus.
type HandlerFunc func(ctx context.Context, evt EventEnvelope) error
