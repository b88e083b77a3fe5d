package order

import "context"

// RawOrderRepository persists verbatim detail documents
type RawOrderRepository interface {
	// Exists reports whether a row with id is already stored
	Exists(ctx context.Context, id int64) (bool, error)
	// Insert stores the row unless the id exists. inserted is false on conflict.
	Insert(ctx context.Context, raw *RawOrder) (inserted bool, err error)
	// ScanAll visits every row in id order, chunkSize rows at a time
	ScanAll(ctx context.Context, chunkSize int, fn func([]RawOrder) error) error
	// Count returns the number of stored rows
	Count(ctx context.Context) (int64, error)
}

// TransformedOrderRepository persists flattened orders
type TransformedOrderRepository interface {
	// InsertBatch stores orders, skipping ids that already exist, and
	// returns the number of rows actually written
	InsertBatch(ctx context.Context, orders []TransformedOrder) (int64, error)
	// FindByID returns ErrOrderNotFound when no row matches
	FindByID(ctx context.Context, id int64) (*TransformedOrder, error)
	// List returns one page ordered by order id, plus the total row count
	List(ctx context.Context, filter ListFilter) ([]TransformedOrder, int64, error)
	// Count returns the number of stored rows
	Count(ctx context.Context) (int64, error)
}
