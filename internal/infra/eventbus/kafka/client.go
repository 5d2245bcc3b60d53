package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/defect-armada/pkg/common/logger"
)

// ClientConfig contains all configuration needed for Kafka client setup.
type ClientConfig struct {
	Brokers  []string
	ClientID string
}

// newSaramaConfig returns the producer and consumer settings shared by every
// client this service creates.
func newSaramaConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID

	// Consumer settings.
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Consumer.Offsets.AutoCommit.Enable = false

	// Producer settings. Events for one task share a key and therefore a partition.
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Retry.Max = 5

	config.Version = sarama.V3_6_0_0

	return config
}

// NewClient creates a Kafka client with the service's standard settings.
func NewClient(cfg *ClientConfig) (sarama.Client, error) {
	return sarama.NewClient(cfg.Brokers, newSaramaConfig(cfg.ClientID))
}

// ConnectEventBus creates an EventBus from client, retrying with exponential
// backoff while the cluster is unavailable. A consumer group is created only
// when cfg.GroupID is set.
func ConnectEventBus(
	ctx context.Context,
	cfg *EventBusConfig,
	client sarama.Client,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
	maxWait time.Duration,
) (*EventBus, error) {
	var bus *EventBus

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = maxWait
	expBackoff.InitialInterval = time.Second

	operation := func() error {
		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			logger.Warn(ctx, "kafka producer not ready, will retry", "error", err)
			return fmt.Errorf("creating producer: %w", err)
		}

		var consumerGroup sarama.ConsumerGroup
		if cfg.GroupID != "" {
			consumerGroup, err = sarama.NewConsumerGroupFromClient(cfg.GroupID, client)
			if err != nil {
				producer.Close()
				logger.Warn(ctx, "kafka consumer group not ready, will retry", "error", err)
				return fmt.Errorf("creating consumer group: %w", err)
			}
		}

		bus, err = NewEventBus(producer, consumerGroup, cfg, logger, metrics, tracer)
		if err != nil {
			producer.Close()
			if consumerGroup != nil {
				consumerGroup.Close()
			}
			return backoff.Permanent(fmt.Errorf("creating event bus: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect event bus after retries: %w", err)
	}

	return bus, nil
}
