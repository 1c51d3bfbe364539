package reconciler

import (
	"context"
	"time"

	"github.com/appetiteclub/reconciler/internal/order"
)

// Settler performs the step between a payment token arriving and the order
// being marked done.
type Settler interface {
	Settle(ctx context.Context, o *order.Order) error
}

// DelaySettler waits a fixed delay. The wait is not cancellable: once it has
// begun it runs to completion.
type DelaySettler struct {
	delay time.Duration
	sleep func(time.Duration)
}

func NewDelaySettler(delay time.Duration) *DelaySettler {
	return &DelaySettler{delay: delay, sleep: time.Sleep}
}

func (s *DelaySettler) Settle(ctx context.Context, o *order.Order) error {
	if s.delay > 0 {
		s.sleep(s.delay)
	}
	return nil
}

// SettlerFunc adapts a function to the Settler interface.
type SettlerFunc func(ctx context.Context, o *order.Order) error

func (f SettlerFunc) Settle(ctx context.Context, o *order.Order) error {
	return f(ctx, o)
}
