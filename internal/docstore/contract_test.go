package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend interface {
	ConditionalStore
	Deleter
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, change Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.changes = append(n.changes, change)
	return nil
}

func (n *recordingNotifier) all() []Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Change(nil), n.changes...)
}

// runBackendContract exercises the behaviour every backend must share.
func runBackendContract(t *testing.T, open func(t *testing.T, n Notifier) backend) {
	ctx := context.Background()

	t.Run("getMissingDocument", func(t *testing.T) {
		s := open(t, nil)
		doc, err := s.Get(ctx, "orders/missing")
		require.NoError(t, err)
		assert.False(t, doc.Exists)
		assert.Nil(t, doc.Data)
		assert.Equal(t, "orders/missing", doc.Path)
	})

	t.Run("setThenGetNormalizes", func(t *testing.T) {
		s := open(t, nil)
		require.NoError(t, s.Set(ctx, "orders/1", map[string]any{
			"user":  "u1",
			"count": 3,
			"items": []map[string]any{{"item": "Burger"}},
		}))
		doc, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		require.True(t, doc.Exists)
		assert.Equal(t, "1", doc.ID())
		assert.Equal(t, float64(3), doc.Data["count"])
		assert.Equal(t, []any{map[string]any{"item": "Burger"}}, doc.Data["items"])
		assert.False(t, doc.UpdateTime.IsZero())
	})

	t.Run("getReturnsCopy", func(t *testing.T) {
		s := open(t, nil)
		require.NoError(t, s.Set(ctx, "orders/1", map[string]any{"user": "u1"}))
		doc, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		doc.Data["user"] = "mutated"
		again, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		assert.Equal(t, "u1", again.Data["user"])
	})

	t.Run("invalidPath", func(t *testing.T) {
		s := open(t, nil)
		_, err := s.Get(ctx, "orders")
		assert.ErrorIs(t, err, ErrInvalidPath)
		assert.ErrorIs(t, s.Set(ctx, "orders//x", map[string]any{}), ErrInvalidPath)
	})

	t.Run("queryDirectChildrenWithFilters", func(t *testing.T) {
		s := open(t, nil)
		require.NoError(t, s.Set(ctx, "orders/a", map[string]any{"user": "u1", "done": false}))
		require.NoError(t, s.Set(ctx, "orders/b", map[string]any{"user": "u2", "done": true}))
		require.NoError(t, s.Set(ctx, "orders/c", map[string]any{"user": "u1"}))
		require.NoError(t, s.Set(ctx, "orders/a/notes/n1", map[string]any{"user": "u1"}))
		require.NoError(t, s.Set(ctx, "ordersx/z", map[string]any{"user": "u1"}))

		all, err := s.Query(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, []string{"orders/a", "orders/b", "orders/c"}, paths(all))

		open, err := s.Query(ctx, "orders", Where("done", OpNotEqual, true))
		require.NoError(t, err)
		assert.Equal(t, []string{"orders/a", "orders/c"}, paths(open))

		mine, err := s.Query(ctx, "orders", Where("user", OpEqual, "u1"), Where("done", OpEqual, false))
		require.NoError(t, err)
		assert.Equal(t, []string{"orders/a"}, paths(mine))

		nested, err := s.Query(ctx, "orders/a/notes")
		require.NoError(t, err)
		assert.Equal(t, []string{"orders/a/notes/n1"}, paths(nested))
	})

	t.Run("queryRejectsUnknownOperator", func(t *testing.T) {
		s := open(t, nil)
		_, err := s.Query(ctx, "orders", Filter{Field: "user", Op: ">", Value: 1})
		assert.Error(t, err)
	})

	t.Run("notifiesOldAndNewValues", func(t *testing.T) {
		n := &recordingNotifier{}
		s := open(t, n)
		require.NoError(t, s.Set(ctx, "orders/1", map[string]any{"user": "u1"}))
		require.NoError(t, s.Set(ctx, "orders/1", map[string]any{"user": "u2"}))
		require.NoError(t, s.Delete(ctx, "orders/1"))

		changes := n.all()
		require.Len(t, changes, 3)
		assert.Nil(t, changes[0].OldValue)
		assert.Equal(t, map[string]any{"user": "u1"}, changes[0].NewValue)
		assert.Equal(t, map[string]any{"user": "u1"}, changes[1].OldValue)
		assert.Equal(t, map[string]any{"user": "u2"}, changes[1].NewValue)
		assert.Equal(t, map[string]any{"user": "u2"}, changes[2].OldValue)
		assert.Nil(t, changes[2].NewValue)
		assert.Equal(t, "orders/1", changes[2].Path())
	})

	t.Run("notifierErrorIsReported", func(t *testing.T) {
		n := &recordingNotifier{err: errors.New("feed down")}
		s := open(t, n)
		err := s.Set(ctx, "orders/1", map[string]any{"user": "u1"})
		assert.ErrorIs(t, err, ErrNotifyFailed)

		// The write is committed even though the feed rejected it.
		doc, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		assert.True(t, doc.Exists)
		assert.Equal(t, map[string]any{"user": "u1"}, doc.Data)
	})

	t.Run("conditionalWrite", func(t *testing.T) {
		s := open(t, nil)
		require.NoError(t, s.SetIfUnchanged(ctx, "orders/1", map[string]any{"v": 1}, time.Time{}))
		err := s.SetIfUnchanged(ctx, "orders/1", map[string]any{"v": 2}, time.Time{})
		assert.ErrorIs(t, err, ErrPreconditionFailed)

		doc, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "orders/1", map[string]any{"v": 3}))

		err = s.SetIfUnchanged(ctx, "orders/1", map[string]any{"v": 4}, doc.UpdateTime)
		assert.ErrorIs(t, err, ErrPreconditionFailed)

		latest, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		assert.True(t, latest.UpdateTime.After(doc.UpdateTime))
		require.NoError(t, s.SetIfUnchanged(ctx, "orders/1", map[string]any{"v": 4}, latest.UpdateTime))

		final, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		assert.Equal(t, float64(4), final.Data["v"])
	})

	t.Run("conditionalWriteOnDeletedDocument", func(t *testing.T) {
		s := open(t, nil)
		require.NoError(t, s.Set(ctx, "orders/1", map[string]any{"v": 1}))
		doc, err := s.Get(ctx, "orders/1")
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "orders/1"))
		err = s.SetIfUnchanged(ctx, "orders/1", map[string]any{"v": 2}, doc.UpdateTime)
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})
}

func paths(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Path)
	}
	return out
}
