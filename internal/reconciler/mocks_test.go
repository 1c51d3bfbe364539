package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/reconciler/internal/catalog"
	"github.com/appetiteclub/reconciler/internal/docstore"
	"github.com/appetiteclub/reconciler/internal/order"
)

// MockPublisher records published messages.
type MockPublisher struct {
	mu          sync.Mutex
	Published   []PublishedMessage
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type PublishedMessage struct {
	Topic string
	Data  []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishedMessage{Topic: topic, Data: msg})
	return nil
}

// MockSubscriber keeps the handler registered through Subscribe.
type MockSubscriber struct {
	Topic         string
	Handler       events.HandlerFunc
	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	m.Topic = topic
	m.Handler = handler
	return nil
}

// MockMenu serves a fixed menu.
type MockMenu struct {
	Menu         catalog.Menu
	Err          error
	LoadMenuFunc func(ctx context.Context) (catalog.Menu, error)
}

func (m *MockMenu) LoadMenu(ctx context.Context) (catalog.Menu, error) {
	if m.LoadMenuFunc != nil {
		return m.LoadMenuFunc(ctx)
	}
	return m.Menu, m.Err
}

// CountingSettler counts settlements without waiting.
type CountingSettler struct {
	mu    sync.Mutex
	calls int
}

func (s *CountingSettler) Settle(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *CountingSettler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ChangeQueue collects change notifications so a test can replay them
// after the write that produced them returned.
// When Err is set the change is rejected.
type ChangeQueue struct {
	mu      sync.Mutex
	changes []docstore.Change
	Err     error
}

func (q *ChangeQueue) Notify(ctx context.Context, change docstore.Change) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.changes = append(q.changes, change)
	return nil
}

func (q *ChangeQueue) SetErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Err = err
}

func (q *ChangeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

func (q *ChangeQueue) Pop() (docstore.Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.changes) == 0 {
		return docstore.Change{}, false
	}
	c := q.changes[0]
	q.changes = q.changes[1:]
	return c, true
}

func (q *ChangeQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.changes = nil
}

// FailingStore fails every call with err.
type FailingStore struct {
	err error
}

func (s FailingStore) Get(ctx context.Context, path string) (docstore.Document, error) {
	return docstore.Document{}, s.err
}

func (s FailingStore) Set(ctx context.Context, path string, data map[string]any) error {
	return s.err
}

func (s FailingStore) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	return nil, s.err
}

// RecordingObserver keeps the outcomes it saw.
type RecordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *RecordingObserver) ObservePass(outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
