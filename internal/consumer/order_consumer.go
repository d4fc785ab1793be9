package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/cache"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// CartSweeper takes the ordered rows out of the cart of every shopper whose
// order was placed. Checkout does this inline; the sweeper catches the cases
// where that failed. Rows added or changed after the order stay put.
type CartSweeper struct {
	reader  messageReader
	carts   repository.CartRepository
	cache   cache.CartCache
	log     *zap.Logger
	timeout time.Duration
}

func NewCartSweeper(carts repository.CartRepository, c cache.CartCache, cfg Config, log *zap.Logger) *CartSweeper {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newCartSweeper(r, carts, c, log)
}

func newCartSweeper(r messageReader, carts repository.CartRepository, c cache.CartCache, log *zap.Logger) *CartSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartSweeper{
		reader:  r,
		carts:   carts,
		cache:   c,
		log:     log,
		timeout: 5 * time.Second,
	}
}

func (s *CartSweeper) Run(ctx context.Context) error {
	defer func() {
		if err := s.reader.Close(); err != nil {
			s.log.Warn("closing kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("fetching message", zap.Error(err))
			continue
		}

		if err := s.handle(ctx, m); err != nil {
			// Uncommitted: redelivered after a rebalance or restart.
			s.log.Error("sweeping cart", zap.Error(err), zap.Int64("offset", m.Offset))
			continue
		}
		if err := s.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			s.log.Warn("committing offset", zap.Error(err), zap.Int64("offset", m.Offset))
		}
	}
}

func (s *CartSweeper) handle(ctx context.Context, m kafka.Message) error {
	if eventType(m) != domain.EventOrderPlaced {
		return nil
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		// Poison message; skip it.
		s.log.Warn("malformed order event", zap.Error(err), zap.ByteString("key", m.Key))
		return nil
	}
	if event.ShopperID == "" {
		s.log.Warn("order event without shopper", zap.String("order_id", event.OrderID))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.carts.RemoveOrderedItems(ctx, event.ShopperID, event.CartItems)
	if err != nil {
		return fmt.Errorf("remove ordered items of %s: %w", event.ShopperID, err)
	}
	if err := s.cache.Delete(ctx, event.ShopperID); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("invalidating cart cache", zap.Error(err), zap.String("shopper_id", event.ShopperID))
	}
	s.log.Debug("cart swept", zap.String("shopper_id", event.ShopperID),
		zap.String("order_id", event.OrderID), zap.Int("removed", removed))
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
