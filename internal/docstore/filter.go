package docstore

import (
	"fmt"
	"reflect"
)

type Op string

const (
	OpEqual    Op = "=="
	OpNotEqual Op = "!="
)

// Filter is a single field condition used by Query. A missing field is
// treated as null, so Where("done", OpNotEqual, true) matches documents
// without a done field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Validate rejects unknown operators.
func (f Filter) Validate() error {
	switch f.Op {
	case OpEqual, OpNotEqual:
		return nil
	default:
		return fmt.Errorf("unsupported filter operator %q", f.Op)
	}
}

// Match evaluates the filter against a normalized document value.
func (f Filter) Match(data map[string]any) bool {
	want, err := Normalize(f.Value)
	if err != nil {
		return false
	}
	got := data[f.Field]
	equal := reflect.DeepEqual(got, want)
	if f.Op == OpNotEqual {
		return !equal
	}
	return equal
}

func matchAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(data) {
			return false
		}
	}
	return true
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}
