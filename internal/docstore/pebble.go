package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

type pebbleRecord struct {
	Data       map[string]any `json:"data"`
	UpdateTime time.Time      `json:"updateTime"`
}

// PebbleStore keeps documents in an embedded Pebble database keyed by path.
// Writes are serialized so conditional writes can compare update times.
type PebbleStore struct {
	db       *pebble.DB
	mu       sync.Mutex
	feedMu   sync.Mutex
	notifier Notifier
	now      func() time.Time
}

func OpenPebbleStore(dir string, notifier Notifier) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("cannot open pebble store: %w", err)
	}
	return &PebbleStore{db: db, notifier: notifier, now: time.Now}, nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

// Stop lets the store take part in service lifecycles.
func (p *PebbleStore) Stop(ctx context.Context) error {
	return p.Close()
}

func (p *PebbleStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidateDocumentPath(path); err != nil {
		return Document{}, err
	}
	rec, ok, err := p.read(path)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{Path: path}, nil
	}
	return Document{Path: path, Exists: true, Data: rec.Data, UpdateTime: rec.UpdateTime}, nil
}

func (p *PebbleStore) Set(ctx context.Context, path string, data map[string]any) error {
	return p.write(ctx, path, data, nil)
}

func (p *PebbleStore) SetIfUnchanged(ctx context.Context, path string, data map[string]any, updateTime time.Time) error {
	return p.write(ctx, path, data, &updateTime)
}

func (p *PebbleStore) Delete(ctx context.Context, path string) error {
	if err := ValidateDocumentPath(path); err != nil {
		return err
	}
	p.mu.Lock()
	old, ok, err := p.read(path)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if err := p.db.Delete([]byte(path), pebble.Sync); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot delete %s: %w", ErrUnavailable, path, err)
	}
	p.feedMu.Lock()
	p.mu.Unlock()
	defer p.feedMu.Unlock()
	if !ok {
		return nil
	}
	return p.notify(ctx, Change{Resource: path, OldValue: old.Data})
}

func (p *PebbleStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidateCollectionPath(collection); err != nil {
		return nil, err
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	prefix := []byte(collection + "/")
	upper := append([]byte(collection), '/'+1)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("%w: cannot query %s: %w", ErrUnavailable, collection, err)
	}
	defer it.Close()

	var result []Document
	for it.First(); it.Valid(); it.Next() {
		path := string(it.Key())
		if !InCollection(path, collection) {
			continue
		}
		rec, err := decodePebbleRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("cannot decode %s: %w", path, err)
		}
		if !matchAll(rec.Data, filters) {
			continue
		}
		result = append(result, Document{Path: path, Exists: true, Data: rec.Data, UpdateTime: rec.UpdateTime})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("%w: cannot query %s: %w", ErrUnavailable, collection, err)
	}
	return result, nil
}

func (p *PebbleStore) write(ctx context.Context, path string, data map[string]any, precondition *time.Time) error {
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

	p.mu.Lock()
	old, existed, err := p.read(path)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if precondition != nil {
		if precondition.IsZero() && existed {
			p.mu.Unlock()
			return fmt.Errorf("%w: %s already exists", ErrPreconditionFailed, path)
		}
		if !precondition.IsZero() && (!existed || !old.UpdateTime.Equal(*precondition)) {
			p.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrPreconditionFailed, path)
		}
	}
	updated := p.now().UTC()
	if existed && !updated.After(old.UpdateTime) {
		updated = old.UpdateTime.Add(time.Nanosecond)
	}
	b, err := json.Marshal(pebbleRecord{Data: value, UpdateTime: updated})
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	if err := p.db.Set([]byte(path), b, pebble.Sync); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot write %s: %w", ErrUnavailable, path, err)
	}
	p.feedMu.Lock()
	p.mu.Unlock()
	defer p.feedMu.Unlock()

	change := Change{Resource: path, NewValue: value}
	if existed {
		change.OldValue = old.Data
	}
	return p.notify(ctx, change)
}

func (p *PebbleStore) read(path string) (pebbleRecord, bool, error) {
	v, closer, err := p.db.Get([]byte(path))
	if errors.Is(err, pebble.ErrNotFound) {
		return pebbleRecord{}, false, nil
	}
	if err != nil {
		return pebbleRecord{}, false, fmt.Errorf("%w: cannot read %s: %w", ErrUnavailable, path, err)
	}
	defer closer.Close()
	rec, err := decodePebbleRecord(v)
	if err != nil {
		return pebbleRecord{}, false, fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return rec, true, nil
}

func (p *PebbleStore) notify(ctx context.Context, change Change) error {
	if p.notifier == nil {
		return nil
	}
	if err := p.notifier.Notify(ctx, change); err != nil {
		return fmt.Errorf("%w: cannot notify change on %s: %w", ErrNotifyFailed, change.Resource, err)
	}
	return nil
}

func decodePebbleRecord(val []byte) (pebbleRecord, error) {
	var rec pebbleRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return pebbleRecord{}, err
	}
	return rec, nil
}
