package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/domain/order"
)

// Session is an authenticated portal session. It implements order.Session
// and is not safe for concurrent use.
type Session struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	ticket     string
}

var _ order.Session = (*Session)(nil)

// Ticket returns the authorization ticket issued at login
func (s *Session) Ticket() string {
	return s.ticket
}

// ListOrderIDs reads page 1 to learn the record total, then walks every
// page in order. Page 1 is therefore requested twice.
func (s *Session) ListOrderIDs(ctx context.Context) ([]int64, error) {
	first, err := s.listPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	total, err := first.total()
	if err != nil {
		return nil, fmt.Errorf("%w: recordTotal %q", ErrListingFailed, first.RecordTotal)
	}
	if total <= 0 {
		return []int64{}, nil
	}

	pages := TotalPages(total, s.config.PageSize)
	s.logger.Debug("Listing orders", zap.Int("record_total", total), zap.Int("pages", pages))

	ids := make([]int64, 0, total)
	for page := 1; page <= pages; page++ {
		p, err := s.listPage(ctx, page)
		if err != nil {
			return nil, err
		}
		ids = append(ids, s.collectIDs(page, p.List)...)
	}
	return ids, nil
}

// TotalPages returns ceil(total / pageSize)
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func (s *Session) collectIDs(page int, entries []map[string]any) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry["id"]
		if !ok || raw == nil {
			continue
		}
		id, err := order.ResolveID(raw)
		if err != nil {
			s.logger.Debug("Skipping listing entry with unusable id",
				zap.Int("page", page), zap.Any("id", raw))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) listPage(ctx context.Context, page int) (*orderListPage, error) {
	url := fmt.Sprintf("%s?condition=&status=0&pageNum=%d&language=en&tableIndex=0",
		s.config.url(OrderListPath), page)

	resp, err := s.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", ErrListingFailed, page, err)
	}
	if !isSuccess(resp.status) {
		return nil, fmt.Errorf("%w: page %d: HTTP %d", ErrListingFailed, page, resp.status)
	}

	dec := json.NewDecoder(bytes.NewReader(resp.body))
	dec.UseNumber()
	var lr orderListResponse
	if err := dec.Decode(&lr); err != nil {
		return nil, fmt.Errorf("%w: page %d: decode response: %v", ErrListingFailed, page, err)
	}
	// A response without resultMap reads as an empty listing.
	p := lr.page()
	if p == nil {
		s.logger.Debug("Listing response has no resultMap", zap.Int("page", page))
		return &orderListPage{}, nil
	}
	return p, nil
}

// FetchOrderDetail returns the detail document for id with _id set.
// A non-200 answer is logged and yields (nil, nil).
func (s *Session) FetchOrderDetail(ctx context.Context, id int64) (order.Document, error) {
	idStr := strconv.FormatInt(id, 10)
	url := s.config.url(OrderDetailPath) + idStr + "?language=en"
	headers := map[string]string{
		"Referer": s.config.url(OrderDetailReferer) + "?id=" + idStr,
	}

	resp, err := s.do(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order %d: %w", ErrDetailFailed, id, err)
	}
	if resp.status != http.StatusOK {
		s.logger.Warn("Failed to fetch order detail",
			zap.Int64("order_id", id), zap.Int("status", resp.status))
		return nil, nil
	}

	doc, err := order.DecodeDocument(resp.body)
	if err != nil {
		return nil, fmt.Errorf("%w: order %d: %w", ErrDetailFailed, id, err)
	}
	doc[order.IDField] = id
	return doc, nil
}
