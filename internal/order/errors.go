package order

import "errors"

var (
	// ErrNotFound is returned when the order document does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrMalformedDocument is returned when a stored value cannot be read as
	// an order. Nothing should be written back for such a document.
	ErrMalformedDocument = errors.New("malformed order document")
	// ErrCatalogInconsistency is returned when an item references a dish the
	// price sheet does not know.
	ErrCatalogInconsistency = errors.New("catalog inconsistency")
	// ErrInvalidSelection is returned when an item selects an unknown option
	// group, an unknown choice, or more choices than a group allows.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrOrderClosed is returned by steps that cannot modify a done order.
	ErrOrderClosed = errors.New("order is closed")
)
