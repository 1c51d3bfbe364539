package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is the subset of an event publisher the change feed needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

// PublishingNotifier turns committed writes into change feed messages.
type PublishingNotifier struct {
	publisher Publisher
	topic     string
}

func NewPublishingNotifier(publisher Publisher, topic string) *PublishingNotifier {
	return &PublishingNotifier{publisher: publisher, topic: topic}
}

func (n *PublishingNotifier) Notify(ctx context.Context, change Change) error {
	msg, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("cannot encode change: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.topic, msg); err != nil {
		return fmt.Errorf("%w: cannot publish change: %w", ErrUnavailable, err)
	}
	return nil
}

// DecodeChange parses a change feed message.
func DecodeChange(msg []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(msg, &change); err != nil {
		return Change{}, fmt.Errorf("cannot decode change: %w", err)
	}
	if TrimResource(change.Resource) == "" {
		return Change{}, fmt.Errorf("cannot decode change: missing resource")
	}
	return change, nil
}
