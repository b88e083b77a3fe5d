package order

import "errors"

var (
	// ErrOrderNotFound is returned when a transformed order does not exist
	ErrOrderNotFound = errors.New("order: not found")
	// ErrInvalidDocument is returned when a raw document is not a JSON object
	ErrInvalidDocument = errors.New("order: document is not a JSON object")
	// ErrUnresolvableID is returned when an order id cannot be read as an integer
	ErrUnresolvableID = errors.New("order: id cannot be resolved to an integer")
	// ErrIDMismatch is returned when a document's _id disagrees with its row id
	ErrIDMismatch = errors.New("order: document _id does not match row id")
)
