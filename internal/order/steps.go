package order

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

// Steps are the writes made on behalf of a customer. Each one loads the
// order, changes it and stores the whole document; totals and completion are
// left to the reconciler.
type Steps struct {
	repo   OrderRepo
	logger apt.Logger
	newID  func() string
}

func NewSteps(repo OrderRepo, logger apt.Logger) *Steps {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Steps{
		repo:   repo,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}
}

// Start creates an empty order for user.
func (s *Steps) Start(ctx context.Context, user string) (*Order, error) {
	o := New(s.newID(), user)
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, err
	}
	s.log().Info("order started", "path", o.Path, "user", o.User)
	return o, nil
}

func (s *Steps) AddItem(ctx context.Context, id string, item OrderItem) (*Order, error) {
	if item.Item == "" {
		return nil, fmt.Errorf("%w: item has no dish name", ErrInvalidSelection)
	}
	o, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, NewOrderItem(item.Item, item.Options))
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, err
	}
	s.log().Info("item added", "path", o.Path, "item", item.Item)
	return o, nil
}

// AttachToken stores the payment token. The order is completed by the next
// reconciliation pass.
func (s *Steps) AttachToken(ctx context.Context, id, token string) (*Order, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	o, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Token = token
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, err
	}
	s.log().Info("token attached", "path", o.Path)
	return o, nil
}

func (s *Steps) open(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Done {
		return nil, fmt.Errorf("%w: %s", ErrOrderClosed, o.Path)
	}
	return o, nil
}

func (s *Steps) log() apt.Logger {
	return s.logger.With("component", "order-steps")
}
