// Package kafka provides a Kafka-based implementation of the event bus for asynchronous messaging.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/defect-armada/internal/domain/defect"
	"github.com/ahrav/defect-armada/internal/domain/events"
	"github.com/ahrav/defect-armada/internal/infra/eventbus/kafka/tracing"
	"github.com/ahrav/defect-armada/pkg/common/logger"
)

// EventBusMetrics defines metrics operations needed to monitor Kafka message handling.
type EventBusMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncMessageConsumed(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
	IncConsumeError(ctx context.Context, topic string)
}

// EventBusConfig holds the topic routing and identity of an event bus.
type EventBusConfig struct {
	// DefectEventsTopic receives every defect lifecycle event.
	DefectEventsTopic string
	// GroupID identifies the consumer group used by Subscribe. It may be empty
	// for a publish-only bus.
	GroupID string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
	// ServiceType identifies the type of service publishing events.
	ServiceType string
}

// ErrSubscribeUnsupported is returned by Subscribe on a bus created without
// a consumer group.
var ErrSubscribeUnsupported = errors.New("event bus has no consumer group")

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements events.EventBus on top of a sarama sync producer and an
// optional consumer group.
type EventBus struct {
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup

	// Maps domain event types to their Kafka topics.
	topicMap map[events.EventType]string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

// NewEventBus assembles an event bus from an existing producer and optional
// consumer group.
func NewEventBus(
	producer sarama.SyncProducer,
	consumerGroup sarama.ConsumerGroup,
	cfg *EventBusConfig,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	if producer == nil {
		return nil, errors.New("producer is required for kafka event bus")
	}
	if metrics == nil {
		return nil, errors.New("metrics are required for kafka event bus")
	}
	if cfg.DefectEventsTopic == "" {
		return nil, errors.New("defect events topic is required")
	}

	logger = logger.With(
		"component", "kafka_event_bus",
		"client_id", cfg.ClientID,
		"service_type", cfg.ServiceType,
	)

	topicMap := map[events.EventType]string{
		defect.EventTypeDefectsBatchProcessed: cfg.DefectEventsTopic,
	}

	return &EventBus{
		producer:      producer,
		consumerGroup: consumerGroup,
		topicMap:      topicMap,
		logger:        logger,
		tracer:        tracer,
		metrics:       metrics,
	}, nil
}

// Publish serializes event as a JSON envelope and sends it to the topic mapped
// to its type.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	topic, ok := b.topicMap[event.Type]
	if !ok {
		return fmt.Errorf("%w '%s', no topic mapped", ErrUnknownEventType, event.Type)
	}

	ctx, span := tracing.StartProducerSpan(ctx, topic, b.tracer)
	defer span.End()

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
		span.SetAttributes(attribute.String("event.key", event.Key))
	}
	if len(params.Headers) > 0 {
		event.Headers = params.Headers
	}

	msgBytes, err := marshalEnvelope(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize event")
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to serialize event %s: %w", event.Type, err)
	}

	if err := b.publishToTopic(ctx, topic, event, msgBytes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish event")
		return err
	}

	return nil
}

func (b *EventBus) publishToTopic(ctx context.Context, topic string, event events.EventEnvelope, msgBytes []byte) error {
	kafkaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(msgBytes),
	}
	if event.Key != "" {
		kafkaMsg.Key = sarama.StringEncoder(event.Key)
	}
	for k, v := range event.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	tracing.InjectTraceContext(ctx, kafkaMsg)

	partition, offset, err := b.producer.SendMessage(kafkaMsg)
	if err != nil {
		b.metrics.IncPublishError(ctx, topic)
		return fmt.Errorf("failed to send message to kafka topic %s: %w", topic, err)
	}
	b.metrics.IncMessagePublished(ctx, topic)

	b.logger.Debug(ctx, "Published message to Kafka",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"key", event.Key,
		"event_type", event.Type,
	)

	return nil
}

// Subscribe starts consuming the topics mapped to eventTypes and calls
// handler for every decoded event until ctx is canceled.
func (b *EventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if b.consumerGroup == nil {
		return ErrSubscribeUnsupported
	}

	ctx, span := b.tracer.Start(ctx, "kafka_event_bus.subscribe",
		trace.WithAttributes(attribute.String("component", "kafka_event_bus")))
	defer span.End()

	var topics []string
	seen := make(map[string]struct{})
	for _, et := range eventTypes {
		topic, ok := b.topicMap[et]
		if !ok {
			err := fmt.Errorf("subscribe: %w %s", ErrUnknownEventType, et)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unknown event type")
			return err
		}
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	span.SetAttributes(attribute.StringSlice("topics", topics))

	go b.consumeLoop(ctx, topics, handler)
	b.logger.Info(ctx, "Subscribed to events", "event_types", eventTypes)

	return nil
}

func (b *EventBus) consumeLoop(ctx context.Context, topics []string, handler events.HandlerFunc) {
	cgHandler := &domainEventHandler{
		userHandler: handler,
		logger:      b.logger,
		tracer:      b.tracer,
		metrics:     b.metrics,
	}

	for {
		if err := b.consumerGroup.Consume(ctx, topics, cgHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			b.logger.Error(ctx, "Error from consumer group", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// domainEventHandler implements sarama.ConsumerGroupHandler and turns Kafka
// records back into event envelopes.
type domainEventHandler struct {
	userHandler events.HandlerFunc

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

func (h *domainEventHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(), "Consumer group session setup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

func (h *domainEventHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info(sess.Context(), "Consumer group session cleanup",
		"generation_id", sess.GenerationID(),
		"member_id", sess.MemberID(),
	)
	return nil
}

// ConsumeClaim decodes each message and hands it to the user handler.
// Undecodable messages are marked so they are not redelivered; handler
// failures are not marked.
func (h *domainEventHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := h.logger.With("operation", "consume_claim", "partition", claim.Partition())

	const commitInterval = time.Second
	lastCommit := time.Now()

	for msg := range claim.Messages() {
		h.handleMessage(sess, msg, log)

		if time.Since(lastCommit) > commitInterval {
			sess.Commit()
			lastCommit = time.Now()
		}
	}

	sess.Commit()
	return nil
}

func (h *domainEventHandler) handleMessage(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage, log *logger.Logger) {
	msgCtx := tracing.ExtractTraceContext(sess.Context(), msg)
	msgCtx, span := tracing.StartConsumerSpan(msgCtx, msg, h.tracer)
	defer span.End()

	evt, err := unmarshalEnvelope(msg.Value)
	if err != nil {
		span.RecordError(err)
		h.metrics.IncConsumeError(msgCtx, msg.Topic)
		log.Warn(msgCtx, "Dropping undecodable message", "offset", msg.Offset, "error", err)
		sess.MarkMessage(msg, "")
		return
	}
	evt.Key = string(msg.Key)

	if err := h.userHandler(msgCtx, evt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		h.metrics.IncConsumeError(msgCtx, msg.Topic)
		log.Error(msgCtx, "Failed to handle message", "offset", msg.Offset, "error", err)
		return
	}

	h.metrics.IncMessageConsumed(msgCtx, msg.Topic)
	sess.MarkMessage(msg, "")
}

// Close shuts down the producer and, when present, the consumer group.
func (b *EventBus) Close() error {
	ctx, span := b.tracer.Start(context.Background(), "kafka_event_bus.close")
	defer span.End()
	log := b.logger.With("operation", "close")

	var errs []error
	if err := b.producer.Close(); err != nil {
		log.Error(ctx, "Failed to close producer", "error", err)
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	if b.consumerGroup != nil {
		if err := b.consumerGroup.Close(); err != nil {
			log.Error(ctx, "Failed to close consumer group", "error", err)
			errs = append(errs, fmt.Errorf("close consumer group: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to close event bus")
		return err
	}

	log.Info(ctx, "Closed event bus")
	return nil
}
