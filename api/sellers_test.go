package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore-catalog/catalog"
	"bookstore-catalog/logging"
)

type testEnv struct {
	mgr    *catalog.Manager
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mgr, err := catalog.OpenManager(context.Background(), catalog.Options{
		Driver: catalog.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	app := New(logging.Nop(), mgr, "test", "v-test")
	srv := httptest.NewServer(app.Routes())
	t.Cleanup(srv.Close)
	return &testEnv{mgr: mgr, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		js, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(js)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	if res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res, out
}

func (e *testEnv) createSeller(t *testing.T, first, last, email, password string) map[string]any {
	t.Helper()
	res, body := e.do(t, http.MethodPost, "/sellers/", map[string]string{
		"first_name": first,
		"last_name":  last,
		"email":      email,
		"password":   password,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	return body
}

func idOf(t *testing.T, body map[string]any) int64 {
	t.Helper()
	id, ok := body["id"].(float64)
	require.True(t, ok, "id missing in %v", body)
	return int64(id)
}

func TestRegisterSeller(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.do(t, http.MethodPost, "/sellers/", map[string]string{
		"first_name": "John",
		"last_name":  "Johnson",
		"email":      "jj13@gmail.com",
		"password":   "johnLov13",
	})

	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, map[string]any{
		"id":         float64(1),
		"first_name": "John",
		"last_name":  "Johnson",
		"email":      "jj13@gmail.com",
	}, body)
	assert.NotContains(t, body, "password")
	assert.Equal(t, "/sellers/1", res.Header.Get("Location"))
	assert.NotEmpty(t, res.Header.Get(requestIDHeader))
}

func TestRegisterSellerDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.createSeller(t, "John", "Johnson", "jj13@gmail.com", "johnLov13")

	res, body := env.do(t, http.MethodPost, "/sellers/", map[string]string{
		"first_name": "Jane",
		"last_name":  "Jones",
		"email":      "jj13@gmail.com",
		"password":   "other",
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Contains(t, body, "error")

	_, list := env.do(t, http.MethodGet, "/sellers/", nil)
	assert.Len(t, list["sellers"], 1)
}

func TestRegisterSellerValidation(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.do(t, http.MethodPost, "/sellers/", map[string]string{
		"first_name": "John",
		"email":      strings.Repeat("x", 51),
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	fields, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected field errors, got %v", body)
	assert.Contains(t, fields, "last_name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.NotContains(t, fields, "first_name")
}

func TestRegisterSellerBadJSON(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"syntax", `{"first_name": "John",`},
		{"wrong type", `{"first_name": 12}`},
		{"two values", `{"first_name": "a"}{"first_name": "b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := env.do(t, http.MethodPost, "/sellers/", tt.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.IsType(t, "", body["error"])
		})
	}
}

func TestGetAllSellers(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.do(t, http.MethodGet, "/sellers/", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []any{}, body["sellers"])

	s1 := env.createSeller(t, "John", "Johnson", "jj13@gmail.com", "london99$$")
	s2 := env.createSeller(t, "Vasiliy", "Terkin", "vasya_winner@yandex.ru", "Berlin1945Win")

	res, body = env.do(t, http.MethodGet, "/sellers/", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []any{s1, s2}, body["sellers"])
}

func TestGetAllSellersWithoutTrailingSlash(t *testing.T) {
	env := newTestEnv(t)
	env.createSeller(t, "John", "Johnson", "jj13@gmail.com", "p")

	res, body := env.do(t, http.MethodGet, "/sellers", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["sellers"], 1)

	res, body = env.do(t, http.MethodGet, "/api/v1/sellers/", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["sellers"], 1)
}

func TestGetSellerWithBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.createSeller(t, "Max", "Payne", "max_payne@gmail.com", "p4ss")
	sellerID := idOf(t, seller)

	b1, err := env.mgr.AddBook(ctx, catalog.Book{Author: "Pushkin", Title: "Eugeny Onegin", Year: 2001, CountPages: 104, SellerID: sellerID})
	require.NoError(t, err)
	b2, err := env.mgr.AddBook(ctx, catalog.Book{Author: "Lermontov", Title: "Mziri", Year: 1997, CountPages: 104, SellerID: sellerID})
	require.NoError(t, err)

	res, body := env.do(t, http.MethodGet, fmt.Sprintf("/sellers/%d", sellerID), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{
		"id":         float64(sellerID),
		"first_name": "Max",
		"last_name":  "Payne",
		"email":      "max_payne@gmail.com",
		"books": []any{
			map[string]any{"id": float64(b1), "author": "Pushkin", "title": "Eugeny Onegin", "year": float64(2001), "count_pages": float64(104)},
			map[string]any{"id": float64(b2), "author": "Lermontov", "title": "Mziri", "year": float64(1997), "count_pages": float64(104)},
		},
	}, body)
}

func TestGetSellerWithoutBooks(t *testing.T) {
	env := newTestEnv(t)
	seller := env.createSeller(t, "No", "Books", "no@books.io", "p")

	res, body := env.do(t, http.MethodGet, fmt.Sprintf("/sellers/%d", idOf(t, seller)), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []any{}, body["books"])
}

func TestGetSellerNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/sellers/999", "/sellers/abc", "/sellers/0", "/api/v1/sellers/999"} {
		res, body := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, path)
		assert.Contains(t, body, "error", path)
	}
}

func TestUpdateSeller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createSeller(t, "John", "Johnson", "jj13@gmail.com", "johnLov13")
	id := idOf(t, seller)

	res, body := env.do(t, http.MethodPut, fmt.Sprintf("/sellers/%d", id), map[string]any{
		"id":         999,
		"first_name": "Johnny",
		"last_name":  "Johns",
		"email":      "johnny@gmail.com",
		"password":   "changed",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{
		"id":         float64(id),
		"first_name": "Johnny",
		"last_name":  "Johns",
		"email":      "johnny@gmail.com",
	}, body)

	assert.NoError(t, env.mgr.CheckSellerPassword(ctx, id, "johnLov13"))
	assert.ErrorIs(t, env.mgr.CheckSellerPassword(ctx, id, "changed"), catalog.ErrInvalidCredentials)

	stored, err := env.mgr.GetSellerWithBooks(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", stored.FirstName)
	assert.Equal(t, "johnny@gmail.com", stored.Email)
}

func TestUpdateSellerNotFound(t *testing.T) {
	env := newTestEnv(t)
	seller := env.createSeller(t, "John", "Johnson", "jj13@gmail.com", "p")

	res, _ := env.do(t, http.MethodPut, "/sellers/999", map[string]string{
		"first_name": "X",
		"last_name":  "Y",
		"email":      "x@y.z",
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, list := env.do(t, http.MethodGet, "/sellers/", nil)
	assert.Equal(t, []any{seller}, list["sellers"])
}

func TestUpdateSellerConflictAndValidation(t *testing.T) {
	env := newTestEnv(t)
	a := env.createSeller(t, "A", "A", "a@a.io", "p")
	env.createSeller(t, "B", "B", "b@b.io", "p")
	path := fmt.Sprintf("/sellers/%d", idOf(t, a))

	res, _ := env.do(t, http.MethodPut, path, map[string]string{"first_name": "A", "last_name": "A", "email": "b@b.io"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res, _ = env.do(t, http.MethodPut, path, map[string]string{"first_name": "", "last_name": "A", "email": "a@a.io"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestDeleteSeller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.createSeller(t, "Lev", "Tolstoy", "lev@tolstoy.ru", "p")
	id := idOf(t, seller)
	bookID, err := env.mgr.AddBook(ctx, catalog.Book{Author: "Tolstoy", Title: "War and Peace", Year: 1869, CountPages: 1225, SellerID: id})
	require.NoError(t, err)

	res, body := env.do(t, http.MethodDelete, fmt.Sprintf("/sellers/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Nil(t, body)

	res, _ = env.do(t, http.MethodGet, fmt.Sprintf("/sellers/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	_, err = env.mgr.GetBook(ctx, bookID)
	assert.ErrorIs(t, err, catalog.ErrRecordNotFound)
}

func TestDeleteSellerIdempotent(t *testing.T) {
	env := newTestEnv(t)
	keep := env.createSeller(t, "Keep", "Me", "keep@me.io", "p")

	for _, path := range []string{"/sellers/12345", "/sellers/12345", "/sellers/nope"} {
		res, _ := env.do(t, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNoContent, res.StatusCode, path)
	}

	_, list := env.do(t, http.MethodGet, "/sellers/", nil)
	assert.Equal(t, []any{keep}, list["sellers"])
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	res, body := env.do(t, http.MethodPatch, "/sellers/1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Contains(t, body, "error")
}

func TestPasswordNeverReturned(t *testing.T) {
	env := newTestEnv(t)
	seller := env.createSeller(t, "Secret", "Keeper", "secret@keeper.io", "topsecret")
	id := idOf(t, seller)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/sellers/"},
		{http.MethodGet, fmt.Sprintf("/sellers/%d", id)},
	}
	for _, p := range paths {
		req, err := http.NewRequest(p.method, env.server.URL+p.path, nil)
		require.NoError(t, err)
		res, err := env.server.Client().Do(req)
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(res.Body)
		res.Body.Close()
		require.NoError(t, err)
		assert.NotContains(t, buf.String(), "password", p.path)
		assert.NotContains(t, buf.String(), "topsecret", p.path)
	}
}

// unavailableStore fails every call the way a store that cannot be reached
// does.
type unavailableStore struct{}

var errDown = fmt.Errorf("%w: dial tcp: connection refused", catalog.ErrStoreUnavailable)

func (unavailableStore) CreateSeller(context.Context, catalog.IncomingSeller) (catalog.ReturnedSeller, error) {
	return catalog.ReturnedSeller{}, errDown
}
func (unavailableStore) ListSellers(context.Context) (catalog.ReturnedAllSellers, error) {
	return catalog.ReturnedAllSellers{}, errDown
}
func (unavailableStore) GetSellerWithBooks(context.Context, int64) (catalog.ReturnedSellerBooks, error) {
	return catalog.ReturnedSellerBooks{}, errDown
}
func (unavailableStore) UpdateSeller(context.Context, int64, catalog.UpdatedSeller) (catalog.ReturnedSeller, error) {
	return catalog.ReturnedSeller{}, errDown
}
func (unavailableStore) DeleteSeller(context.Context, int64) error { return errDown }
func (unavailableStore) Ping(context.Context) error               { return errDown }

func TestStoreUnavailable(t *testing.T) {
	app := New(logging.Nop(), unavailableStore{}, "test", "v-test")
	h := app.Routes()

	for _, path := range []string{"/sellers/", "/sellers/1", "/healthcheck"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sellers/1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type brokenStore struct{ unavailableStore }

func (brokenStore) ListSellers(context.Context) (catalog.ReturnedAllSellers, error) {
	return catalog.ReturnedAllSellers{}, errors.New("disk I/O error")
}

func TestUnexpectedErrorIsHidden(t *testing.T) {
	app := New(logging.Nop(), brokenStore{}, "test", "v-test")
	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sellers/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}
