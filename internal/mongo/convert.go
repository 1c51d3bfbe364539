package mongo

import (
	"fmt"
	"strings"

	"github.com/appetiteclub/reconciler/internal/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	idField      = "_id"
	updatedField = "_updatedAt"
)

// collectionName maps "dishes/Burger/ingredients" to "dishes.Burger.ingredients".
func collectionName(collection string) string {
	return strings.ReplaceAll(collection, "/", ".")
}

// toRecord builds the stored record. Keys owned by the backend are rejected.
func toRecord(id string, data map[string]any, updated int64) (bson.M, error) {
	record := bson.M{idField: id, updatedField: updated}
	for k, v := range data {
		if k == idField || k == updatedField {
			return nil, fmt.Errorf("%w: %q", docstore.ErrReservedField, k)
		}
		record[k] = v
	}
	return record, nil
}

// fromRecord strips the backend keys and converts the rest into the JSON data
// model.
func fromRecord(record bson.M) (map[string]any, int64, error) {
	var updated int64
	switch v := record[updatedField].(type) {
	case int64:
		updated = v
	case int32:
		updated = int64(v)
	}

	data := make(map[string]any, len(record))
	for k, v := range record {
		if k == idField || k == updatedField {
			continue
		}
		data[k] = fromBSON(v)
	}
	normalized, err := docstore.NormalizeMap(data)
	if err != nil {
		return nil, 0, err
	}
	return normalized, updated, nil
}

func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, fromBSON(e))
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, fromBSON(e))
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

// toFilter translates store filters into a query document. Mongo treats a
// missing field as null, matching docstore.Filter.
func toFilter(filters []docstore.Filter) (bson.M, error) {
	clauses := make(bson.A, 0, len(filters))
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		value, err := docstore.Normalize(f.Value)
		if err != nil {
			return nil, err
		}
		var cond any = value
		if f.Op == docstore.OpNotEqual {
			cond = bson.M{"$ne": value}
		}
		clauses = append(clauses, bson.M{f.Field: cond})
	}
	switch len(clauses) {
	case 0:
		return bson.M{}, nil
	case 1:
		return clauses[0].(bson.M), nil
	default:
		return bson.M{"$and": clauses}, nil
	}
}
