package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/metrics"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/repository"
	"github.com/Freeeeeet/tutoring_portal/internal/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer подмножество *kafka.Writer
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

// Publisher переносит события из outbox_events в Kafka. Топик совпадает с типом события,
// ключ сообщения aggregate_id (репетитор), чтобы сохранить порядок по репетитору.
type Publisher struct {
	repo      *repository.OutboxRepository
	logger    *zap.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	newWriter func(brokers []string) Writer
}

func NewPublisher(repo *repository.OutboxRepository, logger *zap.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		repo:      repo,
		logger:    logger,
		brokers:   SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		newWriter: func(brokers []string) Writer {
			return kafka.NewWriter(kafka.WriterConfig{
				Brokers:  brokers,
				Balancer: &kafka.Hash{},
			})
		},
	}
}

// Run публикует до отмены ctx
func (p *Publisher) Run(ctx context.Context) error {
	if len(p.brokers) == 0 {
		p.logger.Warn("Outbox publisher disabled (no kafka brokers configured)")
		<-ctx.Done()
		return nil
	}

	writer := p.newWriter(p.brokers)
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	p.logger.Info("Outbox publisher started", zap.Strings("brokers", p.brokers))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopped")
			return nil
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("Outbox publish failed", zap.Error(err))
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer Writer) error {
	return p.repo.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, ToMessage(ctx, r))
			ids = append(ids, r.ID)
		}

		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write kafka messages: %w", err)
		}

		if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
			return err
		}

		for _, r := range records {
			metrics.OutboxPublished.WithLabelValues(r.EventType).Inc()
		}
		p.logger.Debug("Outbox batch published", zap.Int("count", len(records)))
		return nil
	})
}

// ToMessage сообщение Kafka для события outbox с восстановленным trace context
func ToMessage(ctx context.Context, r *model.OutboxEvent) kafka.Message {
	msgCtx := tracing.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic: r.EventType,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.EventID.String())},
			{Key: "event_type", Value: []byte(r.EventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
