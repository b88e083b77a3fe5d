package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/buffalo/orderpipe/internal/domain/order"
)

// MockSource is a mock implementation of order.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Open(ctx context.Context) (order.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(order.Session), args.Error(1)
}

// MockSession is a mock implementation of order.Session
type MockSession struct {
	mock.Mock
}

func (m *MockSession) ListOrderIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockSession) FetchOrderDetail(ctx context.Context, id int64) (order.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(order.Document), args.Error(1)
}

// memoryRawRepo is an in-memory order.RawOrderRepository
type memoryRawRepo struct {
	mu        sync.Mutex
	rows      map[int64][]byte
	existsErr error
	insertErr error
}

func newMemoryRawRepo() *memoryRawRepo {
	return &memoryRawRepo{rows: map[int64][]byte{}}
}

func (r *memoryRawRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.rows[id]
	return ok, nil
}

func (r *memoryRawRepo) Insert(_ context.Context, raw *order.RawOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	if _, ok := r.rows[raw.ID]; ok {
		return false, nil
	}
	r.rows[raw.ID] = append([]byte(nil), raw.Data...)
	return true, nil
}

func (r *memoryRawRepo) ScanAll(_ context.Context, chunkSize int, fn func([]order.RawOrder) error) error {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	all := make([]order.RawOrder, 0, len(ids))
	for _, id := range ids {
		all = append(all, order.RawOrder{ID: id, Data: r.rows[id]})
	}
	r.mu.Unlock()

	for start := 0; start < len(all); start += chunkSize {
		end := min(start+chunkSize, len(all))
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRawRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memoryRawRepo) snapshot() map[int64]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]string, len(r.rows))
	for id, data := range r.rows {
		out[id] = string(data)
	}
	return out
}

// memoryTransformedRepo is an in-memory order.TransformedOrderRepository
type memoryTransformedRepo struct {
	mu        sync.Mutex
	rows      map[int64]order.TransformedOrder
	batches   int
	insertErr error
}

func newMemoryTransformedRepo() *memoryTransformedRepo {
	return &memoryTransformedRepo{rows: map[int64]order.TransformedOrder{}}
}

func (r *memoryTransformedRepo) InsertBatch(_ context.Context, orders []order.TransformedOrder) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	r.batches++
	var n int64
	for _, o := range orders {
		if _, ok := r.rows[o.OrderID]; ok {
			continue
		}
		r.rows[o.OrderID] = o
		n++
	}
	return n, nil
}

func (r *memoryTransformedRepo) FindByID(_ context.Context, id int64) (*order.TransformedOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.rows[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memoryTransformedRepo) List(_ context.Context, filter order.ListFilter) ([]order.TransformedOrder, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filter.Normalize()
	ids := make([]int64, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []order.TransformedOrder{}
	for i := filter.Offset(); i < len(ids) && len(out) < filter.PageSize; i++ {
		out = append(out, r.rows[ids[i]])
	}
	return out, int64(len(ids)), nil
}

func (r *memoryTransformedRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

// recordingArchive remembers every archived id
type recordingArchive struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (a *recordingArchive) Put(_ context.Context, id int64, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.ids = append(a.ids, id)
	return nil
}
