package pkg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamSetupTimeout = 10 * time.Second

var ErrAlreadyConsuming = errors.New("stream consumer already started")

// NATSStream publishes to and consumes from a JetStream stream through a
// durable consumer, so a message whose handler fails is delivered again.
type NATSStream struct {
	conn       *nats.Conn
	js         jetstream.JetStream
	consumer   jetstream.Consumer
	topic      string
	retryDelay time.Duration
	logger     apt.Logger

	mu      sync.Mutex
	consume jetstream.ConsumeContext
}

type NATSStreamConfig struct {
	URL          string
	StreamName   string
	Topic        string
	ConsumerName string
	// MaxAge bounds retention; zero keeps messages until MaxMsgs is hit.
	MaxAge     time.Duration
	MaxMsgs    int64
	MaxDeliver int
	AckWait    time.Duration
	// RetryDelay postpones redelivery of a message whose handler failed.
	RetryDelay time.Duration
	Logger     apt.Logger
}

// NewNATSStream connects and declares the stream and its durable consumer.
func NewNATSStream(ctx context.Context, cfg NATSStreamConfig) (*NATSStream, error) {
	if cfg.Logger == nil {
		cfg.Logger = apt.NewNoopLogger()
	}

	conn, err := connectNATS(cfg.URL, cfg.ConsumerName, cfg.Logger)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, streamSetupTimeout)
	defer cancel()

	consumer, err := declareConsumer(setupCtx, js, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &NATSStream{
		conn:       conn,
		js:         js,
		consumer:   consumer,
		topic:      cfg.Topic,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}, nil
}

func declareConsumer(ctx context.Context, js jetstream.JetStream, cfg NATSStreamConfig) (jetstream.Consumer, error) {
	streamCfg := jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Topic},
		MaxAge:   cfg.MaxAge,
	}
	if cfg.MaxMsgs > 0 {
		streamCfg.MaxMsgs = cfg.MaxMsgs
	}
	stream, err := js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to declare stream %s: %w", cfg.StreamName, err)
	}

	consumerCfg := jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: cfg.Topic,
		MaxDeliver:    cfg.MaxDeliver,
		AckWait:       cfg.AckWait,
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to declare consumer %s: %w", cfg.ConsumerName, err)
	}
	return consumer, nil
}

func (s *NATSStream) Publish(ctx context.Context, topic string, msg []byte) error {
	if _, err := s.js.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// Subscribe starts the durable consumer. The consumer is bound to the
// configured subject, so topic must match it.
func (s *NATSStream) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if topic != s.topic {
		return fmt.Errorf("stream is bound to %s, cannot subscribe to %s", s.topic, topic)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consume != nil {
		return ErrAlreadyConsuming
	}

	cc, err := s.consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Data()); err != nil {
			s.logger.Info("stream handler failed, requesting redelivery", "topic", s.topic, "error", err)
			s.nak(msg)
			return
		}
		if err := msg.Ack(); err != nil {
			s.logger.Error("cannot ack stream message", "topic", s.topic, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to consume stream %s: %w", s.topic, err)
	}
	s.consume = cc
	return nil
}

func (s *NATSStream) nak(msg jetstream.Msg) {
	var err error
	if s.retryDelay > 0 {
		err = msg.NakWithDelay(s.retryDelay)
	} else {
		err = msg.Nak()
	}
	if err != nil {
		s.logger.Error("cannot nak stream message", "topic", s.topic, "error", err)
	}
}

// Close stops consuming and drains the connection.
func (s *NATSStream) Close() error {
	s.mu.Lock()
	if s.consume != nil {
		s.consume.Stop()
		s.consume = nil
	}
	s.mu.Unlock()
	return s.conn.Drain()
}
