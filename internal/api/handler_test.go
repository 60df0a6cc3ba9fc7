package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shortage-service/config"
	"shortage-service/internal/models"
	"shortage-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	active      []json.RawMessage
	activeErr   error
	byIdentity  map[string]json.RawMessage
	identityErr error
	latest      time.Time
	latestErr   error
}

func (f *fakeOrderStore) QueryActive(ctx context.Context, source models.Source) ([]json.RawMessage, error) {
	return f.active, f.activeErr
}

func (f *fakeOrderStore) QueryByIdentity(ctx context.Context, source models.Source, identity string) (json.RawMessage, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	raw, ok := f.byIdentity[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, identity)
	}
	return raw, nil
}

func (f *fakeOrderStore) LatestActivity(ctx context.Context) (time.Time, error) {
	return f.latest, f.latestErr
}

type fakeFetcher struct {
	raw json.RawMessage
	err error
}

func (f *fakeFetcher) GetOrderByID(ctx context.Context, id string) (json.RawMessage, error) {
	return f.raw, f.err
}

type fakeAnalytics struct {
	snapshot *models.AnalyticsSnapshot
	err      error
}

func (f *fakeAnalytics) ComputeSnapshot(ctx context.Context, start, end time.Time) (*models.AnalyticsSnapshot, error) {
	return f.snapshot, f.err
}

type fakeInventory struct {
	out map[string]models.SkuInventory
	err error
}

func (f *fakeInventory) BulkLookup(ctx context.Context, skus []string) (map[string]models.SkuInventory, error) {
	return f.out, f.err
}

type fakeRequester struct {
	scopes []string
	err    error
}

func (f *fakeRequester) PublishRefreshRequested(ctx context.Context, scope, requestedBy string) error {
	f.scopes = append(f.scopes, scope)
	return f.err
}

type handlerFixture struct {
	orders    *fakeOrderStore
	analytics *fakeAnalytics
	inventory *fakeInventory
	publisher *fakeRequester
	stord     *fakeFetcher
	shipbob   *fakeFetcher
	router    *gin.Engine
	authCfg   config.AuthConfig
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		orders:    &fakeOrderStore{byIdentity: map[string]json.RawMessage{}},
		analytics: &fakeAnalytics{snapshot: &models.AnalyticsSnapshot{}},
		inventory: &fakeInventory{out: map[string]models.SkuInventory{}},
		publisher: &fakeRequester{},
		stord:     &fakeFetcher{},
		shipbob:   &fakeFetcher{},
		authCfg: config.AuthConfig{
			Username:    "ops",
			Password:    "secret",
			JWTSecret:   "test-secret",
			TokenExpiry: time.Hour,
		},
	}

	handler := NewHandler(f.orders, f.analytics, f.inventory, f.publisher, f.stord, f.shipbob, f.authCfg)
	f.router = gin.New()
	handler.SetupRoutes(f.router)
	return f
}

func (f *handlerFixture) token(t *testing.T) string {
	t.Helper()
	body := `{"username": "ops", "password": "secret"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body))
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+f.token(t))
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username": "ops", "password": "wrong"}`))
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stord/oos-orders", nil)
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/stord/oos-orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListOOSOrders(t *testing.T) {
	f := newHandlerFixture(t)
	f.orders.active = []json.RawMessage{
		json.RawMessage(`{"order_number": "SO-1"}`),
		json.RawMessage(`{bad json`),
	}

	rec := f.do(t, http.MethodGet, "/api/v1/stord/oos-orders", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count  int                   `json:"count"`
		Orders []models.OrderDetails `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "SO-1", resp.Orders[0].OrderID)
}

func TestListOOSOrdersInvalidSource(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/amazon/oos-orders", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOOSOrdersStoreUnavailable(t *testing.T) {
	f := newHandlerFixture(t)
	f.orders.activeErr = fmt.Errorf("%w: connection refused", store.ErrStoreUnavailable)

	rec := f.do(t, http.MethodGet, "/api/v1/stord/oos-orders", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetOrderDetailsFromStore(t *testing.T) {
	f := newHandlerFixture(t)
	f.orders.byIdentity["SO-1"] = json.RawMessage(`{"order_number": "SO-1"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/stord/order-details/SO-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var details models.OrderDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "SO-1", details.OrderID)
}

func TestGetOrderDetailsLiveFallback(t *testing.T) {
	f := newHandlerFixture(t)
	f.shipbob.raw = json.RawMessage(`{"id": 9001}`)

	rec := f.do(t, http.MethodGet, "/api/v1/shipbob/order-details/9001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var details models.OrderDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "9001", details.OrderID)
}

func TestGetOrderDetailsNotFound(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/shipbob/order-details/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAnalyticsValidatesWindow(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/analytics", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet,
		"/api/v1/analytics?start=2026-03-02T00:00:00Z&end=2026-03-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet,
		"/api/v1/analytics?start=2026-03-01T00:00:00Z&end=2026-03-02T00:00:00Z", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerRefresh(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/trigger-refresh", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/trigger-refresh?source=shipbob", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/trigger-refresh?source=amazon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"all", "shipbob"}, f.publisher.scopes)
}

func TestLastRefreshTime(t *testing.T) {
	f := newHandlerFixture(t)
	f.orders.latest = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	rec := f.do(t, http.MethodGet, "/api/v1/last-refresh-time", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2026-03-01T09:30:00Z")
}

func TestLastRefreshTimeEmptyStore(t *testing.T) {
	f := newHandlerFixture(t)
	f.orders.latestErr = fmt.Errorf("%w: nothing yet", store.ErrNotFound)

	rec := f.do(t, http.MethodGet, "/api/v1/last-refresh-time", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "null")
}

func TestBulkInventory(t *testing.T) {
	f := newHandlerFixture(t)
	f.inventory.out = map[string]models.SkuInventory{
		"sku-a": {SKU: "SKU-A", StordStock: 5},
	}

	rec := f.do(t, http.MethodPost, "/api/v1/inventory/bulk", `{"skus": ["SKU-A"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SKU-A")

	rec = f.do(t, http.MethodPost, "/api/v1/inventory/bulk", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
