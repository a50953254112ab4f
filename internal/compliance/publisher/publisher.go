// Package publisher emits report events to Kafka.
//
// Report events are informational: callers treat publish failures as
// fail-open (log and count), never as a reason to fail validation.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"docbridge/internal/compliance/models"
)

// DefaultTopic receives one record per stored report.
const DefaultTopic = "compliance.reports"

// ReportEvent is the record value published for a stored report.
type ReportEvent struct {
	EventID         string    `json:"event_id"`
	ReportID        string    `json:"report_id"`
	Reference       string    `json:"reference"`
	RequestID       string    `json:"request_id,omitempty"`
	Subject         string    `json:"subject,omitempty"`
	DocumentType    string    `json:"document_type"`
	SourceCountry   string    `json:"source_country,omitempty"`
	TargetCountry   string    `json:"target_country"`
	IsCompliant     bool      `json:"is_compliant"`
	ComplianceScore int       `json:"compliance_score"`
	ErrorCount      int       `json:"error_count"`
	WarningCount    int       `json:"warning_count"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewReportEvent summarizes a stored report.
func NewReportEvent(r *models.StoredReport) ReportEvent {
	return ReportEvent{
		EventID:         uuid.NewString(),
		ReportID:        r.ID.String(),
		Reference:       r.Reference,
		RequestID:       r.RequestID,
		Subject:         r.Subject,
		DocumentType:    r.DocumentType,
		SourceCountry:   r.SourceCountry,
		TargetCountry:   r.TargetCountry,
		IsCompliant:     r.Report.IsCompliant,
		ComplianceScore: r.Report.ComplianceScore,
		ErrorCount:      len(r.Report.Errors),
		WarningCount:    len(r.Report.Warnings),
		OccurredAt:      r.CreatedAt,
	}
}

// producer is the slice of *kgo.Client the publisher uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher produces ReportEvents keyed by report ID.
type KafkaPublisher struct {
	client producer
	topic  string
	logger *slog.Logger
}

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithTopic(topic string) Option {
	return func(p *KafkaPublisher) {
		p.topic = topic
	}
}

// NewKafkaPublisher connects a franz-go client to brokers.
func NewKafkaPublisher(brokers []string, opts ...Option) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	p := &KafkaPublisher{topic: DefaultTopic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(p.topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event ReportEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal report event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ReportID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte("compliance.report.created")},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce report event: %w", err)
	}
	return nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	client, ok := p.client.(*kgo.Client)
	if !ok {
		return nil
	}
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	p.logger.InfoContext(ctx, "report topic ready", "topic", p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReportEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
