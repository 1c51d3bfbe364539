package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/reconciler/internal/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentStore keeps each collection path in its own Mongo collection. The
// update time is stored in nanoseconds under _updatedAt and is what
// conditional writes compare against.
type DocumentStore struct {
	db       *mongo.Database
	notifier docstore.Notifier
	logger   apt.Logger
	now      func() time.Time

	// feed keeps writes from this process and their notifications in order.
	feed sync.Mutex
}

func NewDocumentStore(db *mongo.Database, notifier docstore.Notifier, logger apt.Logger) *DocumentStore {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &DocumentStore{
		db:       db,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *DocumentStore) collection(path string) *mongo.Collection {
	return s.db.Collection(collectionName(docstore.Collection(path)))
}

func (s *DocumentStore) Get(ctx context.Context, path string) (docstore.Document, error) {
	if err := docstore.ValidateDocumentPath(path); err != nil {
		return docstore.Document{}, err
	}

	var record bson.M
	err := s.collection(path).FindOne(ctx, bson.M{idField: docstore.ID(path)}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Document{Path: path}, nil
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%w: cannot get %s: %w", docstore.ErrUnavailable, path, err)
	}

	data, updated, err := fromRecord(record)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{Path: path, Exists: true, Data: data, UpdateTime: time.Unix(0, updated).UTC()}, nil
}

func (s *DocumentStore) Set(ctx context.Context, path string, data map[string]any) error {
	return s.write(ctx, path, data, nil)
}

// SetIfUnchanged replaces the document only when its update time still
// equals updateTime. A zero updateTime requires the document to be absent.
func (s *DocumentStore) SetIfUnchanged(ctx context.Context, path string, data map[string]any, updateTime time.Time) error {
	return s.write(ctx, path, data, &updateTime)
}

func (s *DocumentStore) write(ctx context.Context, path string, data map[string]any, precondition *time.Time) error {
	if err := docstore.ValidateDocumentPath(path); err != nil {
		return err
	}
	value, err := docstore.NormalizeMap(data)
	if err != nil {
		return err
	}
	if value == nil {
		value = map[string]any{}
	}

	s.feed.Lock()
	defer s.feed.Unlock()

	id := docstore.ID(path)
	record, err := toRecord(id, value, s.now().UnixNano())
	if err != nil {
		return err
	}
	coll := s.collection(path)

	var old bson.M
	switch {
	case precondition != nil && precondition.IsZero():
		_, err = coll.InsertOne(ctx, record)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s already exists", docstore.ErrPreconditionFailed, path)
		}
	case precondition != nil:
		filter := bson.M{idField: id, updatedField: precondition.UnixNano()}
		opts := options.FindOneAndReplace().SetReturnDocument(options.Before)
		err = coll.FindOneAndReplace(ctx, filter, record, opts).Decode(&old)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: %s", docstore.ErrPreconditionFailed, path)
		}
	default:
		opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.Before)
		err = coll.FindOneAndReplace(ctx, bson.M{idField: id}, record, opts).Decode(&old)
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("%w: cannot write %s: %w", docstore.ErrUnavailable, path, err)
	}

	change := docstore.Change{Resource: path, NewValue: value}
	if old != nil {
		if change.OldValue, _, err = fromRecord(old); err != nil {
			return fmt.Errorf("%w: %w", docstore.ErrNotifyFailed, err)
		}
	}
	return s.notify(ctx, change)
}

func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocumentPath(path); err != nil {
		return err
	}

	s.feed.Lock()
	defer s.feed.Unlock()

	var old bson.M
	err := s.collection(path).FindOneAndDelete(ctx, bson.M{idField: docstore.ID(path)}).Decode(&old)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: cannot delete %s: %w", docstore.ErrUnavailable, path, err)
	}
	oldValue, _, err := fromRecord(old)
	if err != nil {
		return fmt.Errorf("%w: %w", docstore.ErrNotifyFailed, err)
	}
	return s.notify(ctx, docstore.Change{Resource: path, OldValue: oldValue})
}

func (s *DocumentStore) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if err := docstore.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}
	filter, err := toFilter(filters)
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(collectionName(collection)).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: idField, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot query %s: %w", docstore.ErrUnavailable, collection, err)
	}
	defer cursor.Close(ctx)

	var records []bson.M
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("%w: cannot decode %s: %w", docstore.ErrUnavailable, collection, err)
	}

	docs := make([]docstore.Document, 0, len(records))
	for _, record := range records {
		id, ok := record[idField].(string)
		if !ok {
			s.logger.Info("skipping document with non string id", "collection", collection)
			continue
		}
		data, updated, err := fromRecord(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{
			Path:       docstore.Join(collection, id),
			Exists:     true,
			Data:       data,
			UpdateTime: time.Unix(0, updated).UTC(),
		})
	}
	return docs, nil
}

func (s *DocumentStore) notify(ctx context.Context, change docstore.Change) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.Notify(ctx, change); err != nil {
		return fmt.Errorf("%w: cannot notify change on %s: %w", docstore.ErrNotifyFailed, change.Resource, err)
	}
	return nil
}

func (s *DocumentStore) Database() *mongo.Database {
	return s.db
}
