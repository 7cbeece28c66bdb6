package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"chainscreen/pkg/domain"
)

// Shipper drains the outbox to a Kafka topic. It runs as a background loop;
// events stay in the outbox until the broker acknowledges them, so delivery
// is at-least-once and consumers must dedupe on event ID.
type Shipper struct {
	store    Store
	client   *kgo.Client
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewShipper(store Store, client *kgo.Client, topic string, interval time.Duration, logger *slog.Logger) *Shipper {
	return &Shipper{
		store:    store,
		client:   client,
		topic:    topic,
		interval: interval,
		batch:    200,
		logger:   logger,
	}
}

// NewKafkaClient connects to the brokers.
func NewKafkaClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the audit topic if it does not exist.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, result := range resp {
		if result.Err != nil && !errors.Is(result.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", result.Topic, result.Err)
		}
	}
	return nil
}

// Run drains the outbox until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ShipOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "audit shipping cycle failed", "error", err)
			}
		}
	}
}

// ShipOnce forwards one batch of unpublished events.
func (s *Shipper) ShipOnce(ctx context.Context) error {
	events, err := s.store.Unpublished(ctx, s.batch)
	if err != nil {
		return fmt.Errorf("load unpublished events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(events))
	for i, e := range events {
		records[i] = &kgo.Record{
			Topic: s.topic,
			// Key by subject so per-subject ordering survives partitioning.
			Key:   []byte(e.Subject),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(e.ID.String())},
				{Key: "kind", Value: []byte(e.Kind)},
			},
		}
	}

	results := s.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}

	ids := make([]domain.EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := s.store.MarkPublished(ctx, ids); err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	s.logger.InfoContext(ctx, "audit events shipped", "count", len(events), "topic", s.topic)
	return nil
}
