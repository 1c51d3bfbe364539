// Package order holds the order entity: reading it from a stored document,
// deriving its total and producing the canonical value the reconciler writes
// back.
package order

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/appetiteclub/reconciler/internal/catalog"
	"github.com/appetiteclub/reconciler/internal/docstore"
)

// Collection is the collection holding order documents.
const Collection = "orders"

const (
	DefaultUser = "0"

	fieldUser       = "user"
	fieldDone       = "done"
	fieldToken      = "token"
	fieldItems      = "items"
	fieldTotalPrice = "totalPrice"
)

// DateLayout is used for the date of the client view.
const DateLayout = time.RFC1123

type State string

const (
	StateActive             State = "active"
	StateAwaitingSettlement State = "awaiting_settlement"
	StateDone               State = "done"
)

type Order struct {
	Path           string
	User           string
	Done           bool
	Token          string
	Items          []OrderItem
	TotalPrice     float64
	ExtraFields    map[string]any
	LastModifiedAt time.Time
}

// New returns an empty active order stored at orders/{id}.
func New(id, user string) *Order {
	if user == "" {
		user = DefaultUser
	}
	return &Order{
		Path:  PathFor(id),
		User:  user,
		Items: []OrderItem{},
	}
}

func PathFor(id string) string {
	return docstore.Join(Collection, id)
}

// IsOrderPath reports whether path addresses a top level order document.
func IsOrderPath(path string) bool {
	return docstore.InCollection(path, Collection)
}

// Load fetches the document at path and parses it.
func Load(ctx context.Context, store docstore.Store, path string) (*Order, error) {
	doc, err := store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("cannot load order %s: %w", path, err)
	}
	return FromDocument(doc)
}

// FromDocument parses an already fetched snapshot. Missing fields take their
// defaults and unknown keys are kept in ExtraFields.
func FromDocument(doc docstore.Document) (*Order, error) {
	if !doc.Exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, doc.Path)
	}

	o := &Order{
		Path:           doc.Path,
		User:           DefaultUser,
		Items:          []OrderItem{},
		ExtraFields:    make(map[string]any),
		LastModifiedAt: doc.UpdateTime,
	}

	for key, value := range doc.Data {
		var err error
		switch key {
		case fieldUser:
			o.User, err = parseUser(value)
		case fieldDone:
			o.Done, err = parseDone(value)
		case fieldToken:
			o.Token, err = parseToken(value)
		case fieldItems:
			o.Items, err = parseItems(value)
		case fieldTotalPrice:
			// Derived; a stale or odd value is simply recomputed.
			if f, ok := value.(float64); ok {
				o.TotalPrice = f
			}
		default:
			o.ExtraFields[key] = value
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Path, err)
		}
	}

	return o, nil
}

func (o *Order) ID() string {
	return docstore.ID(o.Path)
}

func (o *Order) State() State {
	switch {
	case o.Done:
		return StateDone
	case o.Token != "":
		return StateAwaitingSettlement
	default:
		return StateActive
	}
}

// MarkDone completes the order. Done never goes back to false.
func (o *Order) MarkDone() {
	o.Done = true
}

// ComputeTotal sums the item prices, rounded to cents.
func (o *Order) ComputeTotal(sheet catalog.PriceSheet) (float64, error) {
	var total float64
	for _, item := range o.Items {
		price, err := item.Price(sheet)
		if err != nil {
			return 0, err
		}
		total += price
	}
	return math.Round(total*100) / 100, nil
}

func (o *Order) UpdateTotal(sheet catalog.PriceSheet) error {
	total, err := o.ComputeTotal(sheet)
	if err != nil {
		return err
	}
	o.TotalPrice = total
	return nil
}

// Validate checks every item selection against the menu.
func (o *Order) Validate(menu catalog.Menu) error {
	for _, item := range o.Items {
		dish, ok := menu.Dish(item.Item)
		if !ok {
			return fmt.Errorf("%w: unknown dish %q", ErrCatalogInconsistency, item.Item)
		}
		if err := item.Validate(dish); err != nil {
			return err
		}
	}
	return nil
}

// AsStorageValue is the canonical persisted shape. Writing it and parsing it
// back yields the same value.
func (o *Order) AsStorageValue() map[string]any {
	value := make(map[string]any, len(o.ExtraFields)+5)
	for k, v := range o.ExtraFields {
		value[k] = v
	}
	value[fieldUser] = o.User
	value[fieldDone] = o.Done
	value[fieldItems] = o.itemMaps()
	value[fieldToken] = o.Token
	value[fieldTotalPrice] = o.TotalPrice
	return value
}

// AsClientView is the projection served to readers. It never carries the
// payment token.
func (o *Order) AsClientView() map[string]any {
	date := ""
	if !o.LastModifiedAt.IsZero() {
		date = o.LastModifiedAt.UTC().Format(DateLayout)
	}
	return map[string]any{
		"id":            o.ID(),
		fieldUser:       o.User,
		fieldDone:       o.Done,
		fieldItems:      o.itemMaps(),
		fieldTotalPrice: o.TotalPrice,
		"date":          date,
	}
}

func (o *Order) itemMaps() []any {
	items := make([]any, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, item.AsMap())
	}
	return items
}

func parseUser(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return DefaultUser, nil
	case string:
		if v == "" {
			return DefaultUser, nil
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: user is %T", ErrMalformedDocument, value)
	}
}

func parseDone(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("%w: done is %T", ErrMalformedDocument, value)
	}
}

func parseToken(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]any:
		if len(v) == 0 {
			return "", nil
		}
	}
	return "", fmt.Errorf("%w: token is %T", ErrMalformedDocument, value)
}

func parseItems(value any) ([]OrderItem, error) {
	if value == nil {
		return []OrderItem{}, nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: items is %T", ErrMalformedDocument, value)
	}
	items := make([]OrderItem, 0, len(raw))
	for _, r := range raw {
		item, err := parseItem(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
