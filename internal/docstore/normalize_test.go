package docstore

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a    map[string]any
		b    map[string]any
		want bool
	}{
		{
			name: "intAndFloat",
			a:    map[string]any{"totalPrice": 5},
			b:    map[string]any{"totalPrice": 5.0},
			want: true,
		},
		{
			name: "typedSlices",
			a:    map[string]any{"toppings": []string{"Cheese"}},
			b:    map[string]any{"toppings": []any{"Cheese"}},
			want: true,
		},
		{
			name: "missingKey",
			a:    map[string]any{"token": ""},
			b:    map[string]any{},
			want: false,
		},
		{
			name: "sliceOrderMatters",
			a:    map[string]any{"toppings": []string{"Cheese", "Bacon"}},
			b:    map[string]any{"toppings": []string{"Bacon", "Cheese"}},
			want: false,
		},
		{
			name: "bothNil",
			want: true,
		},
		{
			name: "unencodable",
			a:    map[string]any{"ch": make(chan int)},
			b:    map[string]any{"ch": nil},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterMatch(t *testing.T) {
	doc := map[string]any{"user": "u1", "done": false}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "equalString", filter: Where("user", OpEqual, "u1"), want: true},
		{name: "notEqualString", filter: Where("user", OpNotEqual, "u1"), want: false},
		{name: "missingFieldNotEqual", filter: Where("token", OpNotEqual, "x"), want: true},
		{name: "missingFieldEqualNil", filter: Where("token", OpEqual, nil), want: true},
		{name: "boolEqual", filter: Where("done", OpEqual, false), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(doc); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeChange(t *testing.T) {
	change, err := DecodeChange([]byte(`{"resource":"projects/p/databases/(default)/documents/orders/7","oldValue":null,"newValue":{"user":"u1"}}`))
	if err != nil {
		t.Fatalf("DecodeChange() error = %v", err)
	}
	if change.Path() != "orders/7" {
		t.Errorf("Path() = %q, want %q", change.Path(), "orders/7")
	}
	if change.OldValue != nil {
		t.Errorf("OldValue = %v, want nil", change.OldValue)
	}

	if _, err := DecodeChange([]byte(`{"newValue":{}}`)); err == nil {
		t.Error("DecodeChange() without resource should fail")
	}
	if _, err := DecodeChange([]byte(`not json`)); err == nil {
		t.Error("DecodeChange() with invalid json should fail")
	}
}
