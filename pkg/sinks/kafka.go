package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RawPublisher writes one keyed JSON payload to a topic.
type RawPublisher interface {
	PublishRawToTopic(ctx context.Context, topic string, key string, value []byte) error
}

// KafkaTopics maps each output family to its destination topic.
type KafkaTopics struct {
	Reports       string
	DrugFacts     string
	ReactionFacts string
}

// DefaultKafkaTopics returns the standard per-family topic names.
func DefaultKafkaTopics() KafkaTopics {
	return KafkaTopics{
		Reports:       "adverse-events.reports",
		DrugFacts:     "adverse-events.drug-facts",
		ReactionFacts: "adverse-events.reaction-facts",
	}
}

// KafkaSink delivers normalized records to per-family Kafka topics. The
// message key is the safety report id so downstream consumers see all
// revisions of a report in order.
type KafkaSink struct {
	producer RawPublisher
	topics   KafkaTopics
	logger   ectologger.Logger
}

// NewKafkaSink creates a KafkaSink.
func NewKafkaSink(producer RawPublisher, topics KafkaTopics, logger ectologger.Logger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topics:   topics,
		logger:   logger,
	}
}

func (s *KafkaSink) DeliverReports(ctx context.Context, records []models.ReportRecord) error {
	ctx, span := tracing.StartSpan(ctx, "KafkaSink.DeliverReports")
	defer span.End()

	for _, record := range records {
		if err := s.publish(ctx, s.topics.Reports, record.SafetyReportID, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *KafkaSink) DeliverDrugFacts(ctx context.Context, records []models.DrugFact) error {
	ctx, span := tracing.StartSpan(ctx, "KafkaSink.DeliverDrugFacts")
	defer span.End()

	for _, record := range records {
		if err := s.publish(ctx, s.topics.DrugFacts, record.SafetyReportID, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *KafkaSink) DeliverReactionFacts(ctx context.Context, records []models.ReactionFact) error {
	ctx, span := tracing.StartSpan(ctx, "KafkaSink.DeliverReactionFacts")
	defer span.End()

	for _, record := range records {
		if err := s.publish(ctx, s.topics.ReactionFacts, record.SafetyReportID, record); err != nil {
			return err
		}
	}
	return nil
}

// publish serializes and writes one record. Broker errors come back as
// transient so the router retries them; serialization errors do not.
func (s *KafkaSink) publish(ctx context.Context, topic, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record for topic '%s': %w", topic, err)
	}

	if err := s.producer.PublishRawToTopic(ctx, topic, key, data); err != nil {
		return errors.NewTransientError(fmt.Sprintf("kafka sink topic '%s'", topic), err)
	}
	return nil
}
