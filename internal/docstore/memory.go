package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryDoc struct {
	data    map[string]any
	updated time.Time
}

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	feedMu   sync.Mutex
	docs     map[string]memoryDoc
	notifier Notifier
	now      func() time.Time
}

func NewMemoryStore(notifier Notifier) *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]memoryDoc),
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidateDocumentPath(path); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return Document{Path: path}, nil
	}
	data, err := NormalizeMap(doc.data)
	if err != nil {
		return Document{}, err
	}
	return Document{Path: path, Exists: true, Data: data, UpdateTime: doc.updated}, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, data map[string]any) error {
	return s.write(ctx, path, data, nil)
}

func (s *MemoryStore) SetIfUnchanged(ctx context.Context, path string, data map[string]any, updateTime time.Time) error {
	return s.write(ctx, path, data, &updateTime)
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ValidateDocumentPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	old, ok := s.docs[path]
	delete(s.docs, path)
	s.feedMu.Lock()
	s.mu.Unlock()
	defer s.feedMu.Unlock()
	if !ok {
		return nil
	}
	return s.notify(ctx, Change{Resource: path, OldValue: old.data})
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidateCollectionPath(collection); err != nil {
		return nil, err
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Document
	for path, doc := range s.docs {
		if !InCollection(path, collection) || !matchAll(doc.data, filters) {
			continue
		}
		data, err := NormalizeMap(doc.data)
		if err != nil {
			return nil, err
		}
		result = append(result, Document{Path: path, Exists: true, Data: data, UpdateTime: doc.updated})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// write commits data and hands the feed lock over before releasing the data
// lock, so notifications leave in commit order.
func (s *MemoryStore) write(ctx context.Context, path string, data map[string]any, precondition *time.Time) error {
	if err := ValidateDocumentPath(path); err != nil {
		return err
	}
	value, err := NormalizeMap(data)
	if err != nil {
		return err
	}
	if value == nil {
		value = map[string]any{}
	}

	s.mu.Lock()
	old, existed := s.docs[path]
	if precondition != nil {
		if precondition.IsZero() && existed {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s already exists", ErrPreconditionFailed, path)
		}
		if !precondition.IsZero() && (!existed || !old.updated.Equal(*precondition)) {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrPreconditionFailed, path)
		}
	}
	updated := s.now()
	if existed && !updated.After(old.updated) {
		updated = old.updated.Add(time.Nanosecond)
	}
	s.docs[path] = memoryDoc{data: value, updated: updated}
	s.feedMu.Lock()
	s.mu.Unlock()
	defer s.feedMu.Unlock()

	change := Change{Resource: path, NewValue: value}
	if existed {
		change.OldValue = old.data
	}
	return s.notify(ctx, change)
}

func (s *MemoryStore) notify(ctx context.Context, change Change) error {
	if s.notifier == nil {
		return nil
	}
	old, err := NormalizeMap(change.OldValue)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}
	next, err := NormalizeMap(change.NewValue)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}
	change.OldValue, change.NewValue = old, next
	if err := s.notifier.Notify(ctx, change); err != nil {
		return fmt.Errorf("%w: cannot notify change on %s: %w", ErrNotifyFailed, change.Resource, err)
	}
	return nil
}
