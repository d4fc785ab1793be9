package publisher

import (
	"context"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the poller uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

// OutboxPoller publishes order events written by the placement pipeline and
// re-enqueues events for orders that never got one.
type OutboxPoller struct {
	eventTick      time.Duration
	recoveryTick   time.Duration
	recoveryAge    time.Duration
	batchSize      int
	publishTimeout time.Duration
	repo           repository.OutboxRepository
	writer         messageWriter
	log            *zap.Logger
	now            func() time.Time
}

func NewOutboxPoller(repo repository.OutboxRepository, cfg Config, log *zap.Logger) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newOutboxPoller(repo, w, cfg, log)
}

func newOutboxPoller(repo repository.OutboxRepository, w messageWriter, cfg Config, log *zap.Logger) *OutboxPoller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &OutboxPoller{
		eventTick:      cfg.PollInterval,
		recoveryTick:   cfg.PollInterval * 6,
		recoveryAge:    time.Minute,
		batchSize:      cfg.BatchSize,
		publishTimeout: 10 * time.Second,
		repo:           repo,
		writer:         w,
		log:            log.Named("outbox"),
		now:            time.Now,
	}
}

// Run polls until ctx is cancelled, then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) error {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.log.Warn("close kafka writer", zap.Error(err))
		}
	}()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverMissingEvents(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error("fetch unprocessed events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Warn("publish event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// the event will be published again on the next tick
			p.log.Warn("mark event processed", zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}
}

// recoverMissingEvents covers orders whose outbox write was lost after the
// order itself was stored.
func (p *OutboxPoller) recoverMissingEvents(ctx context.Context) {
	orders, err := p.repo.GetOrdersMissingEvents(ctx, p.recoveryAge, p.batchSize)
	if err != nil {
		p.log.Error("fetch orders missing events", zap.Error(err))
		return
	}

	for i := range orders {
		od := &orders[i]
		eventType := recoveredEventType(od)
		var method domain.PaymentMethod
		if od.Payment != nil {
			method = od.Payment.PaymentMethod
		}
		var cartItems []domain.CartItemVersion
		if eventType == domain.EventOrderPlaced {
			cartItems = domain.RecoveredCartItems(&od.Order, od.Items)
		}

		payload, err := domain.NewOrderEvent(&od.Order, method, od.Items, cartItems, "", p.now())
		if err != nil {
			p.log.Error("marshal recovered event", zap.String("order_id", od.Order.ID), zap.Error(err))
			continue
		}
		if err := p.repo.EnqueueEvent(ctx, od.Order.ID, eventType, payload); err != nil {
			p.log.Error("enqueue recovered event", zap.String("order_id", od.Order.ID), zap.Error(err))
			continue
		}
		if eventType == domain.EventOrderNeedsReconciliation {
			p.log.Warn("order outcome unknown, needs reconciliation",
				zap.String("order_id", od.Order.ID), zap.String("status", string(od.Order.Status)))
			continue
		}
		p.log.Info("order event recovered", zap.String("order_id", od.Order.ID), zap.String("event_type", eventType))
	}
}

// recoveredEventType picks the event an order without one should get. Only
// a complete order (items and payment stored) in paid or awaiting_payment
// was reported as placed. A gateway order still pending, or an order left
// behind by a failed compensation, goes to reconciliation instead.
func recoveredEventType(od *domain.OrderDetails) string {
	switch od.Order.Status {
	case domain.OrderStatusFailed:
		return domain.EventOrderPaymentFailed
	case domain.OrderStatusPaid, domain.OrderStatusAwaitingPayment:
		if od.Payment != nil && len(od.Items) > 0 {
			return domain.EventOrderPlaced
		}
	}
	return domain.EventOrderNeedsReconciliation
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps events of one order in order
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
