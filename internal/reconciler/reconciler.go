// Package reconciler drives order documents to their canonical shape. Each
// change notification is handled by an independent pass that writes only
// when the canonical value differs from what is stored, so the notification
// caused by its own write ends without writing.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/reconciler/internal/catalog"
	"github.com/appetiteclub/reconciler/internal/docstore"
	"github.com/appetiteclub/reconciler/internal/order"
	"github.com/appetiteclub/reconciler/pkg/event"
)

type Outcome string

const (
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeUpdated          Outcome = "updated"
	OutcomeSettled          Outcome = "settled"
	OutcomeDeleted          Outcome = "deleted"
	OutcomeMalformed        Outcome = "malformed"
	OutcomeInvalidSelection Outcome = "invalid_selection"
	OutcomeConflict         Outcome = "conflict"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeFailed           Outcome = "failed"
)

// Wrote reports whether the pass committed a write.
func (o Outcome) Wrote() bool {
	return o == OutcomeUpdated || o == OutcomeSettled
}

// Observer receives one call per pass.
type Observer interface {
	ObservePass(outcome string, elapsed time.Duration)
}

type Deps struct {
	Store   docstore.Store
	Menu    catalog.MenuSource
	Settler Settler
	// Publisher receives order.settled events. Optional.
	Publisher events.Publisher
	// Observer is optional.
	Observer Observer
}

type Options struct {
	ConditionalWrites bool
	StrictOptions     bool
}

type Reconciler struct {
	store     docstore.Store
	menu      catalog.MenuSource
	settler   Settler
	publisher events.Publisher
	observer  Observer
	opts      Options
	logger    apt.Logger
	now       func() time.Time
}

func New(deps Deps, opts Options, logger apt.Logger) *Reconciler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	settler := deps.Settler
	if settler == nil {
		settler = NewDelaySettler(0)
	}
	return &Reconciler{
		store:     deps.Store,
		menu:      deps.Menu,
		settler:   settler,
		publisher: deps.Publisher,
		observer:  deps.Observer,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleChange reconciles the document named by a change notification.
// Resources outside the orders collection are ignored.
func (r *Reconciler) HandleChange(ctx context.Context, change docstore.Change) (Outcome, error) {
	path := change.Path()
	if !order.IsOrderPath(path) {
		r.log().Debug("ignoring change", "resource", change.Resource)
		return OutcomeIgnored, nil
	}
	return r.Reconcile(ctx, path)
}

// Reconcile runs one pass over the order at path. Returned errors are
// transient or catalog failures; the caller is expected to redeliver. A
// write whose notification failed reports its outcome together with an
// error wrapping docstore.ErrNotifyFailed.
func (r *Reconciler) Reconcile(ctx context.Context, path string) (Outcome, error) {
	start := r.now()
	outcome, err := r.reconcile(ctx, path)
	if err != nil {
		// A committed write keeps its outcome even when its notification failed.
		if !outcome.Wrote() {
			outcome = OutcomeFailed
		}
		r.log().Error("reconcile failed", "path", path, "outcome", outcome, "error", err)
	}
	if r.observer != nil {
		r.observer.ObservePass(string(outcome), r.now().Sub(start))
	}
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, path string) (Outcome, error) {
	log := r.log()

	doc, o, outcome, err := r.load(ctx, path)
	if o == nil {
		return outcome, err
	}

	menu, err := r.menu.LoadMenu(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("cannot load catalog for %s: %w", path, err)
	}

	// Pricing and validation come before the settlement wait so that a pass
	// which cannot write never starts it.
	if outcome, err := r.price(o, menu); outcome != "" {
		return outcome, err
	}

	settling := o.State() == order.StateAwaitingSettlement
	if settling {
		log.Info("settling order", "path", path)
		if err := r.settler.Settle(ctx, o); err != nil {
			return OutcomeFailed, fmt.Errorf("cannot settle %s: %w", path, err)
		}
		// The document may have changed while settling.
		doc, o, outcome, err = r.load(ctx, path)
		if o == nil {
			return outcome, err
		}
		if outcome, err := r.price(o, menu); outcome != "" {
			return outcome, err
		}
		settling = o.State() == order.StateAwaitingSettlement
		if settling {
			o.MarkDone()
		}
	}

	canonical := o.AsStorageValue()
	if docstore.Equal(canonical, doc.Data) {
		log.Debug("order already canonical", "path", path)
		return OutcomeUnchanged, nil
	}

	outcome = OutcomeUpdated
	if settling {
		outcome = OutcomeSettled
	}

	err = r.write(ctx, path, canonical, doc.UpdateTime)
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrNotifyFailed):
		// Committed; the error is returned so the feed redelivers.
		err = fmt.Errorf("wrote %s: %w", path, err)
	case errors.Is(err, docstore.ErrPreconditionFailed):
		log.Info("order changed during reconcile", "path", path)
		return OutcomeConflict, nil
	default:
		return OutcomeFailed, fmt.Errorf("cannot write %s: %w", path, err)
	}

	log.Info("order reconciled", "path", path, "before", encode(doc.Data), "after", encode(canonical))

	if settling {
		log.Info("order settled", "path", path, "total", o.TotalPrice)
		r.publishSettled(ctx, o)
	}
	return outcome, err
}

// price validates the selection when strict and recomputes the total. A
// non-empty outcome ends the pass.
func (r *Reconciler) price(o *order.Order, menu catalog.Menu) (Outcome, error) {
	if r.opts.StrictOptions {
		if err := o.Validate(menu); err != nil {
			if errors.Is(err, order.ErrInvalidSelection) {
				r.log().Info("invalid selection", "path", o.Path, "error", err)
				return OutcomeInvalidSelection, nil
			}
			return OutcomeFailed, err
		}
	}
	if err := o.UpdateTotal(menu.PriceSheet()); err != nil {
		return OutcomeFailed, fmt.Errorf("cannot price %s: %w", o.Path, err)
	}
	return "", nil
}

// load returns a nil order together with the outcome when the pass must stop.
func (r *Reconciler) load(ctx context.Context, path string) (docstore.Document, *order.Order, Outcome, error) {
	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return doc, nil, OutcomeFailed, fmt.Errorf("cannot load %s: %w", path, err)
	}
	if !doc.Exists {
		r.log().Info("order deleted", "path", path)
		return doc, nil, OutcomeDeleted, nil
	}
	o, err := order.FromDocument(doc)
	if err != nil {
		r.log().Info("malformed order", "path", path, "error", err)
		return doc, nil, OutcomeMalformed, nil
	}
	return doc, o, "", nil
}

func (r *Reconciler) write(ctx context.Context, path string, value map[string]any, updateTime time.Time) error {
	if cs, ok := r.store.(docstore.ConditionalStore); ok && r.opts.ConditionalWrites {
		return cs.SetIfUnchanged(ctx, path, value, updateTime)
	}
	return r.store.Set(ctx, path, value)
}

func (r *Reconciler) publishSettled(ctx context.Context, o *order.Order) {
	if r.publisher == nil {
		return
	}
	evt := event.NewOrderSettledEvent(o.Path, o.ID(), o.User, o.TotalPrice, r.now())
	payload, err := json.Marshal(evt)
	if err != nil {
		r.log().Error("cannot encode settled event", "path", o.Path, "error", err)
		return
	}
	if err := r.publisher.Publish(ctx, event.OrderSettlementsTopic, payload); err != nil {
		r.log().Error("cannot publish settled event", "path", o.Path, "error", err)
	}
}

func (r *Reconciler) log() apt.Logger {
	return r.logger.With("component", "reconciler")
}

func encode(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
