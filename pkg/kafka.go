package pkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/segmentio/kafka-go"
)

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaMessageReader abstracts a consumer group kafka.Reader for testability.
type kafkaMessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KeyFunc picks the partition key of a message. Messages with the same key
// keep their order.
type KeyFunc func(topic string, msg []byte) []byte

// KafkaPublisher implements events.Publisher on a single writer; the topic is
// set per message.
type KafkaPublisher struct {
	writer kafkaMessageWriter
	key    KeyFunc
}

func NewKafkaPublisher(brokers []string, key KeyFunc) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		key: key,
	}
}

// NewKafkaPublisherWith is only for tests to inject a fake writer.
func NewKafkaPublisherWith(w kafkaMessageWriter, key KeyFunc) *KafkaPublisher {
	return &KafkaPublisher{writer: w, key: key}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m := kafka.Message{Topic: topic, Value: msg}
	if p.key != nil {
		m.Key = p.key(topic, msg)
	}
	if err := p.writer.WriteMessages(ctx, m); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriberConfig configures a consumer group subscriber.
type KafkaSubscriberConfig struct {
	Brokers    []string
	GroupID    string
	MaxDeliver int           // handler attempts per message before it is skipped
	RetryDelay time.Duration // wait between attempts
}

// KafkaSubscriber implements events.Subscriber with one consumer group reader
// per topic. A message is committed once the handler accepted it or gave up
// after MaxDeliver attempts.
type KafkaSubscriber struct {
	cfg       KafkaSubscriberConfig
	logger    apt.Logger
	newReader func(topic string) kafkaMessageReader
	sleep     func(time.Duration)

	mu      sync.Mutex
	readers []kafkaMessageReader
	cancel  []context.CancelFunc
	wg      sync.WaitGroup
}

func NewKafkaSubscriber(cfg KafkaSubscriberConfig, logger apt.Logger) *KafkaSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 1
	}
	s := &KafkaSubscriber{cfg: cfg, logger: logger, sleep: time.Sleep}
	s.newReader = func(topic string) kafkaMessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  s.cfg.Brokers,
			GroupID:  s.cfg.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return s
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	reader := s.newReader(topic)

	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.cancel = append(s.cancel, cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx, topic, reader, handler)
	}()
	return nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, topic string, reader kafkaMessageReader, handler events.HandlerFunc) {
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			s.logger.Error("kafka fetch failed", "topic", topic, "error", err)
			s.sleep(s.cfg.RetryDelay)
			continue
		}

		if !s.deliver(ctx, topic, m, handler) {
			return
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			s.logger.Error("kafka commit failed", "topic", topic, "offset", m.Offset, "error", err)
		}
	}
}

// deliver reports false when the subscriber is closing and the message must
// stay uncommitted.
func (s *KafkaSubscriber) deliver(ctx context.Context, topic string, m kafka.Message, handler events.HandlerFunc) bool {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, m.Value)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt >= s.cfg.MaxDeliver {
			s.logger.Error("dropping kafka message after failed deliveries", "topic", topic, "offset", m.Offset, "attempts", attempt, "error", err)
			return true
		}
		s.logger.Info("kafka handler failed, redelivering", "topic", topic, "offset", m.Offset, "attempt", attempt, "error", err)
		s.sleep(s.cfg.RetryDelay)
	}
}

// Close stops every reader and waits for the consume loops to exit.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	for _, cancel := range s.cancel {
		cancel()
	}
	readers := s.readers
	s.readers, s.cancel = nil, nil
	s.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}
