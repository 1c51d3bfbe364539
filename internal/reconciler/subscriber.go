package reconciler

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/reconciler/internal/docstore"
)

// ChangeHandler is what the subscriber feeds change notifications to.
type ChangeHandler interface {
	HandleChange(ctx context.Context, change docstore.Change) (Outcome, error)
}

// ChangeSubscriber consumes the document change feed. Handler errors are
// returned to the transport so the notification is delivered again.
type ChangeSubscriber struct {
	subscriber events.Subscriber
	handler    ChangeHandler
	topic      string
	logger     apt.Logger
}

func NewChangeSubscriber(sub events.Subscriber, handler ChangeHandler, topic string, logger apt.Logger) *ChangeSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &ChangeSubscriber{
		subscriber: sub,
		handler:    handler,
		topic:      topic,
		logger:     logger,
	}
}

func (s *ChangeSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting change subscriber", "topic", s.topic)
	if s.subscriber == nil {
		return fmt.Errorf("change subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, s.topic, s.handleEvent)
}

func (s *ChangeSubscriber) Stop(ctx context.Context) error {
	s.logger.Info("stopping change subscriber", "topic", s.topic)
	return nil
}

func (s *ChangeSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	change, err := docstore.DecodeChange(msg)
	if err != nil {
		s.logger.Info("invalid change notification", "error", err)
		return nil
	}

	outcome, err := s.handler.HandleChange(ctx, change)
	if err != nil {
		return err
	}
	s.logger.Debug("change handled", "resource", change.Resource, "outcome", string(outcome))
	return nil
}
