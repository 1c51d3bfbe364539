package order

import (
	"fmt"
	"sort"

	"github.com/appetiteclub/reconciler/internal/catalog"
)

const itemKey = "item"

// OrderItem is one dish of an order with the choices selected for each of
// its option groups.
type OrderItem struct {
	Item    string              `json:"item"`
	Options map[string][]string `json:"options,omitempty"`
}

func NewOrderItem(dish string, options map[string][]string) OrderItem {
	item := OrderItem{Item: dish}
	for group, choices := range options {
		item.SetChoices(group, choices...)
	}
	return item
}

// SetChoices replaces the selection of a group, dropping duplicates.
func (i *OrderItem) SetChoices(group string, choices ...string) {
	if i.Options == nil {
		i.Options = make(map[string][]string)
	}
	i.Options[group] = dedupe(choices)
}

// Groups returns the selected group names in sorted order.
func (i OrderItem) Groups() []string {
	groups := make([]string, 0, len(i.Options))
	for g := range i.Options {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Price is the dish price plus the surcharge of every selected choice that
// has a non-zero entry in the sheet. Groups are summed in sorted order so the
// result does not depend on map iteration.
func (i OrderItem) Price(sheet catalog.PriceSheet) (float64, error) {
	price, ok := sheet[i.Item]
	if !ok {
		return 0, fmt.Errorf("%w: unknown dish %q", ErrCatalogInconsistency, i.Item)
	}
	for _, group := range i.Groups() {
		for _, choice := range i.Options[group] {
			price += sheet[choice]
		}
	}
	return price, nil
}

// Validate checks the selection against the dish definition. A group Max of
// zero means any number of choices is allowed.
func (i OrderItem) Validate(dish catalog.Dish) error {
	for _, group := range i.Groups() {
		ing, ok := dish.Ingredient(group)
		if !ok {
			return fmt.Errorf("%w: %s has no option group %q", ErrInvalidSelection, dish.Name, group)
		}
		choices := i.Options[group]
		if ing.Max > 0 && len(choices) > ing.Max {
			return fmt.Errorf("%w: %s allows %d choices for %q, got %d", ErrInvalidSelection, dish.Name, ing.Max, group, len(choices))
		}
		for _, c := range choices {
			if !ing.Allows(c) {
				return fmt.Errorf("%w: %q is not a choice of %s/%s", ErrInvalidSelection, c, dish.Name, group)
			}
		}
	}
	return nil
}

// AsMap returns the stored shape {item, group: [choices]...}.
func (i OrderItem) AsMap() map[string]any {
	m := map[string]any{itemKey: i.Item}
	for group, choices := range i.Options {
		list := make([]any, 0, len(choices))
		for _, c := range choices {
			list = append(list, c)
		}
		m[group] = list
	}
	return m
}

func parseItem(raw any) (OrderItem, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return OrderItem{}, fmt.Errorf("%w: item is %T, not an object", ErrMalformedDocument, raw)
	}
	name, ok := m[itemKey].(string)
	if !ok || name == "" {
		return OrderItem{}, fmt.Errorf("%w: item has no dish name", ErrMalformedDocument)
	}
	item := OrderItem{Item: name}
	for key, value := range m {
		if key == itemKey {
			continue
		}
		choices, err := parseChoices(value)
		if err != nil {
			return OrderItem{}, fmt.Errorf("%w: group %q of %s: %v", ErrMalformedDocument, key, name, err)
		}
		item.SetChoices(key, choices...)
	}
	return item, nil
}

// parseChoices accepts a list of strings or a single string.
func parseChoices(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, c := range v {
			s, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("choice is %T, not a string", c)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("selection is %T", value)
	}
}

func dedupe(choices []string) []string {
	seen := make(map[string]bool, len(choices))
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
