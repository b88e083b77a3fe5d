package portal

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buffalo/orderpipe/internal/domain/order"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func privateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

// ---------------------------------------------------------------------------
// Mock portal
// ---------------------------------------------------------------------------

type mockPortal struct {
	t           *testing.T
	key         *rsa.PrivateKey
	username    string
	password    string
	ticket      string
	recordTotal any
	noResultMap bool
	pages       map[int][]map[string]any
	details     map[int64]string
	failDetail  map[int64]int
	pubKeyDER   []byte

	mu           sync.Mutex
	pagesServed  []int
	keyFetches   int
	loginStatus  int
	listStatus   int
	detailHeader http.Header
}

func newMockPortal(t *testing.T) *mockPortal {
	key := privateKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return &mockPortal{
		t:          t,
		key:        key,
		username:   "shipper@example.com",
		password:   "s3cret+/=",
		ticket:     "TICKET-123",
		pages:      map[int][]map[string]any{},
		details:    map[int64]string{},
		failDetail: map[int64]int{},
		pubKeyDER:  der,
	}
}

func (m *mockPortal) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == m.ticket && r.Header.Get("Buffalo-Ticket") == m.ticket
}

func (m *mockPortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("User-Agent") != DefaultUserAgent || r.Header.Get("Accept") != "application/json, text/plain, */*" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case r.URL.Path == PublicKeyPath:
		m.mu.Lock()
		m.keyFetches++
		m.mu.Unlock()
		fmt.Fprintln(w, base64.StdEncoding.EncodeToString(m.pubKeyDER))

	case r.URL.Path == LoginPath:
		m.serveLogin(w, r)

	case r.URL.Path == OrderListPath:
		if !m.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if m.listStatus != 0 {
			w.WriteHeader(m.listStatus)
			return
		}
		q := r.URL.Query()
		assert.Equal(m.t, "0", q.Get("status"))
		assert.Equal(m.t, "en", q.Get("language"))
		assert.Equal(m.t, "0", q.Get("tableIndex"))
		page, _ := strconv.Atoi(q.Get("pageNum"))

		m.mu.Lock()
		m.pagesServed = append(m.pagesServed, page)
		m.mu.Unlock()

		if m.noResultMap {
			writeJSON(w, map[string]any{"data": map[string]any{}})
			return
		}
		writeJSON(w, map[string]any{
			"data": map[string]any{
				"resultMap": map[string]any{
					"recordTotal": m.recordTotal,
					"list":        m.pages[page],
				},
			},
		})

	case strings.HasPrefix(r.URL.Path, OrderDetailPath):
		if !m.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, OrderDetailPath), 10, 64)
		require.NoError(m.t, err)
		assert.Equal(m.t, "en", r.URL.Query().Get("language"))

		m.mu.Lock()
		m.detailHeader = r.Header.Clone()
		m.mu.Unlock()

		if status, ok := m.failDetail[id]; ok {
			w.WriteHeader(status)
			return
		}
		body, ok := m.details[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *mockPortal) serveLogin(w http.ResponseWriter, r *http.Request) {
	if m.loginStatus != 0 {
		w.WriteHeader(m.loginStatus)
		return
	}
	assert.Equal(m.t, "application/json;charset=UTF-8", r.Header.Get("Content-Type"))

	var req loginRequest
	require.NoError(m.t, json.NewDecoder(r.Body).Decode(&req))

	escaped, err := url.QueryUnescape(req.Password)
	require.NoError(m.t, err)
	cipher, err := base64.StdEncoding.DecodeString(escaped)
	require.NoError(m.t, err)
	plain, err := rsa.DecryptPKCS1v15(nil, m.key, cipher)
	require.NoError(m.t, err)

	if req.Username != m.username || string(plain) != m.password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{"code": 0, "data": map[string]any{"ticket": m.ticket}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, m *mockPortal) *Client {
	t.Helper()
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{
		BaseURL:  srv.URL + "/",
		Username: m.username,
		Password: m.password,
	})
	require.NoError(t, err)
	return c
}

func idEntries(ids ...any) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": id, "expressnumber": "BX"})
	}
	return out
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Username: "u", Password: "p", BaseURL: "https://portal.example/"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://portal.example", cfg.BaseURL)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)

	assert.ErrorIs(t, (&Config{Password: "p"}).Validate(), ErrConfigMissingUsername)
	assert.ErrorIs(t, (&Config{Username: "u"}).Validate(), ErrConfigMissingPassword)
}

// ---------------------------------------------------------------------------
// Crypto Tests
// ---------------------------------------------------------------------------

func TestEncryptPassword_RoundTrip(t *testing.T) {
	key := privateKey(t)

	encrypted, err := EncryptPassword(&key.PublicKey, "pässword")
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "+")
	assert.NotContains(t, encrypted, "/")
	assert.NotContains(t, encrypted, "=")

	unescaped, err := url.QueryUnescape(encrypted)
	require.NoError(t, err)
	cipher, err := base64.StdEncoding.DecodeString(unescaped)
	require.NoError(t, err)
	plain, err := rsa.DecryptPKCS1v15(nil, key, cipher)
	require.NoError(t, err)
	assert.Equal(t, "pässword", string(plain))
}

func TestParsePublicKey(t *testing.T) {
	key := privateKey(t)

	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	parsed, err := ParsePublicKey("  " + base64.StdEncoding.EncodeToString(pkix) + "\n")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(&key.PublicKey))

	pkcs1 := x509.MarshalPKCS1PublicKey(&key.PublicKey)
	parsed, err = ParsePublicKey(base64.StdEncoding.EncodeToString(pkcs1))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(&key.PublicKey))

	_, err = ParsePublicKey("!!not base64!!")
	assert.ErrorIs(t, err, ErrPublicKey)

	_, err = ParsePublicKey(base64.StdEncoding.EncodeToString([]byte("garbage")))
	assert.ErrorIs(t, err, ErrPublicKey)

	_, err = EncryptPassword(nil, "x")
	assert.ErrorIs(t, err, ErrEncryptPassword)
}

// ---------------------------------------------------------------------------
// Session Tests
// ---------------------------------------------------------------------------

func TestClient_Login(t *testing.T) {
	t.Run("returns session carrying ticket", func(t *testing.T) {
		m := newMockPortal(t)
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "TICKET-123", s.Ticket())
	})

	t.Run("fetches the key on every login", func(t *testing.T) {
		m := newMockPortal(t)
		c := newTestClient(t, m)

		_, err := c.Open(context.Background())
		require.NoError(t, err)
		_, err = c.Open(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, m.keyFetches)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		m := newMockPortal(t)
		c := newTestClient(t, m)
		c.config.Password = "wrong"

		_, err := c.Login(context.Background())
		assert.ErrorIs(t, err, ErrLoginFailed)
	})

	t.Run("missing ticket is fatal", func(t *testing.T) {
		m := newMockPortal(t)
		m.ticket = ""
		c := newTestClient(t, m)

		_, err := c.Login(context.Background())
		assert.ErrorIs(t, err, ErrMissingTicket)
	})

	t.Run("server error on login", func(t *testing.T) {
		m := newMockPortal(t)
		m.loginStatus = http.StatusBadGateway
		c := newTestClient(t, m)

		_, err := c.Login(context.Background())
		assert.ErrorIs(t, err, ErrLoginFailed)
	})

	t.Run("invalid public key", func(t *testing.T) {
		m := newMockPortal(t)
		m.pubKeyDER = []byte("not a key")
		c := newTestClient(t, m)

		_, err := c.Login(context.Background())
		assert.ErrorIs(t, err, ErrPublicKey)
	})

	t.Run("unreachable portal", func(t *testing.T) {
		c, err := NewClient(&Config{BaseURL: "http://127.0.0.1:1", Username: "u", Password: "p"})
		require.NoError(t, err)

		_, err = c.Login(context.Background())
		assert.ErrorIs(t, err, ErrPortalUnavailable)
	})
}

func TestSession_ListOrderIDs(t *testing.T) {
	t.Run("walks every page including discovery page", func(t *testing.T) {
		m := newMockPortal(t)
		m.recordTotal = 37
		m.pages[1] = idEntries(1, 2, 3)
		m.pages[2] = append(idEntries(json.Number("4"), "5"), map[string]any{"expressnumber": "no id"})
		m.pages[3] = idEntries(map[string]any{"$numberLong": "6"}, "not-a-number")
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		ids, err := s.ListOrderIDs(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []int{1, 1, 2, 3}, m.pagesServed)
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, ids)
	})

	t.Run("zero total yields empty list", func(t *testing.T) {
		m := newMockPortal(t)
		m.recordTotal = 0
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		ids, err := s.ListOrderIDs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, []int{1}, m.pagesServed)
	})

	t.Run("listing failure is fatal", func(t *testing.T) {
		m := newMockPortal(t)
		m.listStatus = http.StatusInternalServerError
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		_, err = s.ListOrderIDs(context.Background())
		assert.ErrorIs(t, err, ErrListingFailed)
	})

	t.Run("missing record total yields empty list", func(t *testing.T) {
		m := newMockPortal(t)
		m.recordTotal = nil
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		ids, err := s.ListOrderIDs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, []int{1}, m.pagesServed)
	})

	t.Run("missing result map yields empty list", func(t *testing.T) {
		m := newMockPortal(t)
		m.recordTotal = 10
		m.noResultMap = true
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		ids, err := s.ListOrderIDs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("page without list contributes nothing", func(t *testing.T) {
		m := newMockPortal(t)
		m.recordTotal = 20
		m.pages[1] = idEntries(1, 2)
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		ids, err := s.ListOrderIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)
		assert.Equal(t, []int{1, 1, 2}, m.pagesServed)
	})

	t.Run("non-numeric record total is fatal", func(t *testing.T) {
		m := newMockPortal(t)
		m.recordTotal = "many"
		c := newTestClient(t, m)

		s, err := c.Login(context.Background())
		require.NoError(t, err)

		_, err = s.ListOrderIDs(context.Background())
		assert.ErrorIs(t, err, ErrListingFailed)
	})
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 15))
	assert.Equal(t, 1, TotalPages(1, 15))
	assert.Equal(t, 1, TotalPages(15, 15))
	assert.Equal(t, 2, TotalPages(16, 15))
	assert.Equal(t, 3, TotalPages(37, 15))
	assert.Equal(t, 0, TotalPages(10, 0))
}

func TestSession_FetchOrderDetail(t *testing.T) {
	m := newMockPortal(t)
	m.details[77] = `{"expressnumber":"BX77","ascertainedweight":1.25}`
	m.details[78] = `[]`
	m.failDetail[79] = http.StatusInternalServerError
	c := newTestClient(t, m)

	s, err := c.Login(context.Background())
	require.NoError(t, err)

	t.Run("success tags document with id", func(t *testing.T) {
		doc, err := s.FetchOrderDetail(context.Background(), 77)
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, int64(77), doc[order.IDField])
		assert.Equal(t, "BX77", doc["expressnumber"])
		assert.Equal(t, json.Number("1.25"), doc["ascertainedweight"])
		assert.True(t, strings.HasSuffix(m.detailHeader.Get("Referer"), OrderDetailReferer+"?id=77"))
	})

	t.Run("non-200 yields no result", func(t *testing.T) {
		doc, err := s.FetchOrderDetail(context.Background(), 79)
		assert.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("non-object body is a detail failure", func(t *testing.T) {
		_, err := s.FetchOrderDetail(context.Background(), 78)
		assert.ErrorIs(t, err, ErrDetailFailed)
	})

	t.Run("cancelled context is returned as is", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.FetchOrderDetail(ctx, 77)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrDetailFailed)
	})
}
