package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type countingMetrics struct {
	mu            sync.Mutex
	published     map[string]int
	consumed      map[string]int
	publishErrors map[string]int
	consumeErrors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		published:     make(map[string]int),
		consumed:      make(map[string]int),
		publishErrors: make(map[string]int),
		consumeErrors: make(map[string]int),
	}
}

func (m *countingMetrics) IncMessagePublished(_ context.Context, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic]++
}

func (m *countingMetrics) IncMessageConsumed(_ context.Context, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed[topic]++
}

func (m *countingMetrics) IncPublishError(_ context.Context, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErrors[topic]++
}

func (m *countingMetrics) IncConsumeError(_ context.Context, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeErrors[topic]++
}

func testTracer() trace.Tracer { return noop.NewTracerProvider().Tracer("test") }

// fakeSession records marked offsets. Methods not overridden panic if called.
type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}
