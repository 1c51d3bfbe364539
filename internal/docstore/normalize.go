package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Normalize converts v into the JSON data model. The result never shares
// memory with v.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("cannot normalize value: %w", err)
	}
	return out, nil
}

// NormalizeMap is Normalize for document values. A nil map stays nil.
func NormalizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	v, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot normalize value: got %T", v)
	}
	return out, nil
}

// Equal reports whether two document values are equal once normalized.
// Values that cannot be normalized are never equal.
func Equal(a, b map[string]any) bool {
	na, err := NormalizeMap(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeMap(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}
