// Package docstore defines the document store contract the reconciler depends
// on, together with the backends it can run against.
//
// Documents are addressed by slash separated paths with an even number of
// segments ("orders/42", "dishes/Burger/ingredients/Toppings"). Values are
// kept in the JSON data model (map[string]any, []any, string, float64, bool,
// nil) so that a stored value and a freshly built value can be compared with
// Equal regardless of which backend produced them.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks transient infrastructure failures. Callers are
	// expected to rely on redelivery instead of retrying locally.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrPreconditionFailed is returned by conditional writes when the
	// document changed after it was read.
	ErrPreconditionFailed = errors.New("document changed since it was read")
	// ErrInvalidPath is returned for paths that do not address a document.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrReservedField is returned when a value uses a key owned by a backend.
	ErrReservedField = errors.New("reserved field")
	// ErrNotifyFailed is returned when a write was committed but its change
	// notification could not be delivered.
	ErrNotifyFailed = errors.New("change notification failed")
)

// Document is a materialized snapshot. A missing document has Exists false
// and a nil Data map.
type Document struct {
	Path       string
	Exists     bool
	Data       map[string]any
	UpdateTime time.Time
}

// ID returns the last segment of the document path.
func (d Document) ID() string {
	return ID(d.Path)
}

// Store is the whole-document contract: get, set and query by collection.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, data map[string]any) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
}

// ConditionalStore adds a compare-and-swap write keyed on the update time
// observed by a previous Get. A zero updateTime means "must not exist".
type ConditionalStore interface {
	Store
	SetIfUnchanged(ctx context.Context, path string, data map[string]any, updateTime time.Time) error
}

// Deleter is implemented by backends that support removing documents.
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Change is one entry of the change feed. OldValue is nil for creations and
// NewValue is nil for deletions.
type Change struct {
	Resource string         `json:"resource"`
	OldValue map[string]any `json:"oldValue"`
	NewValue map[string]any `json:"newValue"`
}

// Path returns the document path addressed by the change resource.
func (c Change) Path() string {
	return TrimResource(c.Resource)
}

// Notifier receives a change after every committed write. Implementations
// must not write back into the store synchronously.
type Notifier interface {
	Notify(ctx context.Context, change Change) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, change Change) error

func (f NotifierFunc) Notify(ctx context.Context, change Change) error {
	return f(ctx, change)
}
