// Package consumer reads report events back from Kafka and hands them to
// topic handlers. Offsets are committed only after a whole poll batch was
// handled, so a crash redelivers rather than loses events.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

// Handler handles messages from a specific topic. Returning an error makes the
// consumer retry the whole batch, so handlers must be idempotent.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Router dispatches messages to topic-specific handlers.
type Router struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{handlers: make(map[string]Handler), logger: logger}
}

// Register adds a handler for a specific topic.
func (r *Router) Register(topic string, h Handler) {
	r.handlers[topic] = h
}

// Topics lists the registered topics.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	return topics
}

// Handle routes the message to the appropriate topic handler.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	h, ok := r.handlers[msg.Topic]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for topic, skipping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil
	}
	return h.Handle(ctx, msg)
}

// fetcher is the slice of *kgo.Client the consumer uses.
type fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
	Close()
}

const (
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryMax  = 30 * time.Second
)

// GroupConsumer consumes the router's topics as a member of a consumer group.
type GroupConsumer struct {
	client    fetcher
	router    *Router
	logger    *slog.Logger
	retryBase time.Duration
	retryMax  time.Duration
}

// NewGroupConsumer joins group on brokers for every topic registered on router.
func NewGroupConsumer(brokers []string, group string, router *Router, logger *slog.Logger) (*GroupConsumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if group == "" {
		return nil, errors.New("consumer group is required")
	}
	topics := router.Topics()
	if len(topics) == 0 {
		return nil, errors.New("no topic handlers registered")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &GroupConsumer{
		client:    client,
		router:    router,
		logger:    logger,
		retryBase: defaultRetryBase,
		retryMax:  defaultRetryMax,
	}, nil
}

// Run polls until ctx is cancelled. A batch whose handler fails is retried
// with exponential backoff and committed once it is fully handled.
func (c *GroupConsumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) {
				return nil
			}
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		if !c.handleWithRetry(ctx, fetches) {
			return nil
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.WarnContext(ctx, "kafka offset commit failed", "error", err)
		}
	}
}

// handleWithRetry returns false when ctx ended before the batch was handled.
func (c *GroupConsumer) handleWithRetry(ctx context.Context, fetches kgo.Fetches) bool {
	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, fetches)
		if err == nil {
			return true
		}
		c.logger.ErrorContext(ctx, "kafka batch handling failed, retrying",
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay = min(delay*2, c.retryMax)
	}
}

func (c *GroupConsumer) handle(ctx context.Context, fetches kgo.Fetches) error {
	var handleErr error
	fetches.EachRecord(func(rec *kgo.Record) {
		if handleErr != nil {
			return
		}
		if err := c.router.Handle(ctx, toMessage(rec)); err != nil {
			handleErr = fmt.Errorf("handle %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
		}
	})
	return handleErr
}

func toMessage(rec *kgo.Record) *Message {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   headers,
	}
}
