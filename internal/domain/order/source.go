package order

import "context"

// Source opens authenticated sessions against the order portal
type Source interface {
	// Open performs the login handshake. Every run opens its own session.
	Open(ctx context.Context) (Session, error)
}

// Session is an authenticated view of the portal's order APIs
type Session interface {
	// ListOrderIDs collects the ids of every order visible to the account,
	// in page order. Duplicates are possible.
	ListOrderIDs(ctx context.Context) ([]int64, error)
	// FetchOrderDetail returns the detail document tagged with _id.
	// A non-200 answer yields a nil document and a nil error.
	FetchOrderDetail(ctx context.Context, id int64) (Document, error)
}
