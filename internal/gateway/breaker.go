package gateway

import (
	"context"
	"errors"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/pkg/circuitbreaker"
	"go.uber.org/zap"
)

// Breaker stops calling a gateway that keeps failing. Declines are
// successful calls and never trip it.
type Breaker struct {
	next Gateway
	cb   *circuitbreaker.Breaker[Authorization]
}

func NewBreaker(next Gateway, cfg circuitbreaker.Config, log *zap.Logger) *Breaker {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			// a caller giving up is not the gateway's fault
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	return &Breaker{
		next: next,
		cb:   circuitbreaker.New[Authorization](cfg, log),
	}
}

func (b *Breaker) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	auth, err := b.cb.Execute(func() (Authorization, error) {
		return b.next.Authorize(ctx, req)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return Authorization{}, domain.ErrGatewayUnavailable
	}
	return auth, err
}
