package reconciler

import (
	"context"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/reconciler/internal/order"
	"golang.org/x/sync/errgroup"
)

const defaultSweepWorkers = 4

// OpenOrderLister lists orders that are not done yet.
type OpenOrderLister interface {
	ListOpen(ctx context.Context) ([]*order.Order, error)
}

// PathReconciler runs a pass for a single document path.
type PathReconciler interface {
	Reconcile(ctx context.Context, path string) (Outcome, error)
}

// SweepReport counts the outcomes of one sweep.
type SweepReport struct {
	Orders   int
	Outcomes map[Outcome]int
	Failed   int
}

// Sweeper reconciles every open order, for instance to catch up with
// notifications lost while the service was down.
type Sweeper struct {
	orders     OpenOrderLister
	reconciler PathReconciler
	workers    int
	logger     apt.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(orders OpenOrderLister, reconciler PathReconciler, workers int, logger apt.Logger) *Sweeper {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if workers <= 0 {
		workers = defaultSweepWorkers
	}
	return &Sweeper{
		orders:     orders,
		reconciler: reconciler,
		workers:    workers,
		logger:     logger,
	}
}

// Sweep runs one pass per open order with at most workers passes in flight.
// A failed pass is counted and logged; it does not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	orders, err := s.orders.ListOpen(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	var mu sync.Mutex
	report := SweepReport{Orders: len(orders), Outcomes: make(map[Outcome]int)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, o := range orders {
		path := o.Path
		g.Go(func() error {
			outcome, err := s.reconciler.Reconcile(gctx, path)
			if err != nil {
				s.logger.Info("sweep pass failed", "path", path, "error", err)
			}
			mu.Lock()
			report.Outcomes[outcome]++
			if err != nil {
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepReport{}, err
	}

	s.logger.Info("sweep finished", "orders", report.Orders, "failed", report.Failed)
	return report, nil
}

// Start sweeps once in the background.
func (s *Sweeper) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("startup sweep failed", "error", err)
		}
	}()
	return nil
}

// Stop cancels a running background sweep and waits for it.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
