package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/reconciler/internal/docstore"
)

type OrderRepo interface {
	Get(ctx context.Context, id string) (*Order, error)
	Save(ctx context.Context, order *Order) error
	ListOpen(ctx context.Context) ([]*Order, error)
	ListByUser(ctx context.Context, user string) ([]*Order, error)
}

// DocumentRepo keeps orders in the orders collection of a document store.
type DocumentRepo struct {
	store  docstore.Store
	logger apt.Logger
}

func NewDocumentRepo(store docstore.Store, logger apt.Logger) *DocumentRepo {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &DocumentRepo{store: store, logger: logger}
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*Order, error) {
	path := PathFor(id)
	if !IsOrderPath(path) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return Load(ctx, r.store, path)
}

// Save writes the full storage value of the order.
func (r *DocumentRepo) Save(ctx context.Context, order *Order) error {
	if err := r.store.Set(ctx, order.Path, order.AsStorageValue()); err != nil {
		return fmt.Errorf("cannot save order %s: %w", order.Path, err)
	}
	return nil
}

// ListOpen returns every order that is not done.
func (r *DocumentRepo) ListOpen(ctx context.Context) ([]*Order, error) {
	return r.query(ctx, docstore.Where(fieldDone, docstore.OpNotEqual, true))
}

func (r *DocumentRepo) ListByUser(ctx context.Context, user string) ([]*Order, error) {
	return r.query(ctx, docstore.Where(fieldUser, docstore.OpEqual, user))
}

// query skips documents that cannot be parsed so one bad order does not hide
// the rest.
func (r *DocumentRepo) query(ctx context.Context, filters ...docstore.Filter) ([]*Order, error) {
	docs, err := r.store.Query(ctx, Collection, filters...)
	if err != nil {
		return nil, fmt.Errorf("cannot query orders: %w", err)
	}
	orders := make([]*Order, 0, len(docs))
	for _, doc := range docs {
		o, err := FromDocument(doc)
		if err != nil {
			if errors.Is(err, ErrMalformedDocument) {
				r.logger.Info("skipping malformed order", "path", doc.Path, "error", err)
				continue
			}
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
