// README: Handler tests for the pricing API over an in-memory store.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "valet/internal/http"
	"valet/internal/modules/pricing"
)

var requestTime = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func lotConfig() pricing.PricingConfig {
	hourly := make([]float64, 24)
	for i := range hourly {
		hourly[i] = 1
	}
	return pricing.PricingConfig{
		Currency:             "USD",
		TimeZone:             "UTC",
		BaseHourlyRate:       5,
		BaseDailyRate:        30,
		HourlyMultipliers:    hourly,
		DayOfWeekMultipliers: []float64{1, 1, 1, 1, 1, 1, 1},
		VehicleSurcharges: map[pricing.VehicleClass]float64{
			pricing.VehicleStandard:   0,
			pricing.VehicleCompact:    -0.1,
			pricing.VehicleSUV:        0.2,
			pricing.VehicleOversized:  0.35,
			pricing.VehicleMotorcycle: -0.3,
			pricing.VehicleElectric:   0.05,
		},
		MinTotalMultiplier: 0.5,
		MaxTotalMultiplier: 2.5,
		SmoothingFactor:    0.3,
	}
}

func buildTestRouter(deps pricing.ServiceDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return httptransport.NewRouter(pricing.NewService(deps), zap.NewNop())
}

func memoryRouter() *gin.Engine {
	mem := pricing.NewMemoryStore()
	return buildTestRouter(pricing.ServiceDeps{Configs: mem, States: mem, Audit: mem})
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

func quoteBody() map[string]any {
	return map[string]any{
		"estimated_hours": 4,
		"vehicle_class":   "standard",
		"occupancy_ratio": 0.6,
		"request_time":    requestTime.Format(time.RFC3339),
	}
}

func TestPricingAPI_QuoteLifecycle(t *testing.T) {
	r := memoryRouter()

	w := doRequest(r, http.MethodPut, "/api/scopes/lot-1/pricing-config", lotConfig())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := decode[pricing.PricingConfig](t, w)
	assert.Equal(t, int64(1), stored.Version)

	w = doRequest(r, http.MethodPost, "/api/scopes/lot-1/quotes", quoteBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	q := decode[pricing.PriceQuote](t, w)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "lot-1", q.Scope)
	assert.True(t, decimal.NewFromInt(20).Equal(q.TotalPrice), "total %s", q.TotalPrice)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, int64(1), q.ConfigVersion)

	w = doRequest(r, http.MethodGet, "/api/quotes/"+q.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[pricing.PriceQuote](t, w)
	assert.Equal(t, q.ID, got.ID)
	assert.True(t, q.TotalPrice.Equal(got.TotalPrice))

	w = doRequest(r, http.MethodGet, "/api/scopes/lot-1/quotes?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Quotes []pricing.PriceQuote `json:"quotes"`
	}](t, w)
	require.Len(t, list.Quotes, 1)
	assert.Equal(t, q.ID, list.Quotes[0].ID)

	w = doRequest(r, http.MethodGet, "/api/scopes/lot-1/smoothing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[pricing.SmoothingState](t, w)
	assert.Equal(t, int64(1), st.Version)
	assert.InDelta(t, 1.0, st.Multiplier, 1e-9)

	w = doRequest(r, http.MethodGet, "/api/scopes/lot-1/pricing-config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[pricing.PricingConfig](t, w).Version)
}

func TestPricingAPI_EmptyListIsArray(t *testing.T) {
	r := memoryRouter()
	w := doRequest(r, http.MethodGet, "/api/scopes/lot-1/quotes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"quotes":[]}`, w.Body.String())
}

func TestPricingAPI_ErrorMapping(t *testing.T) {
	r := memoryRouter()
	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPut, "/api/scopes/lot-1/pricing-config", lotConfig()).Code)

	badClass := quoteBody()
	badClass["vehicle_class"] = "bus"
	badTax := lotConfig()
	badTax.TaxRate = 1.5

	cases := []struct {
		name      string
		method    string
		path      string
		body      any
		wantCode  int
		wantField string
	}{
		{"unknown vehicle class", http.MethodPost, "/api/scopes/lot-1/quotes", badClass, http.StatusBadRequest, "vehicle_class"},
		{"malformed json", http.MethodPost, "/api/scopes/lot-1/quotes", "not an object", http.StatusBadRequest, ""},
		{"invalid scope", http.MethodPost, "/api/scopes/lot.1/quotes", quoteBody(), http.StatusBadRequest, ""},
		{"unconfigured scope quote", http.MethodPost, "/api/scopes/lot-2/quotes", quoteBody(), http.StatusUnprocessableEntity, ""},
		{"unconfigured scope read", http.MethodGet, "/api/scopes/lot-2/pricing-config", nil, http.StatusNotFound, ""},
		{"invalid config update", http.MethodPut, "/api/scopes/lot-1/pricing-config", badTax, http.StatusBadRequest, "tax_rate"},
		{"unknown quote", http.MethodGet, "/api/quotes/nope", nil, http.StatusNotFound, ""},
		{"bad since", http.MethodGet, "/api/scopes/lot-1/quotes?since=yesterday", nil, http.StatusBadRequest, ""},
		{"bad limit", http.MethodGet, "/api/scopes/lot-1/quotes?limit=-1", nil, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, tc.method, tc.path, tc.body)
			require.Equal(t, tc.wantCode, w.Code, w.Body.String())
			body := decode[errorBody](t, w)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tc.wantField, body.Field)
		})
	}
}

type downConfigStore struct{}

func (downConfigStore) GetConfig(context.Context, string) (pricing.PricingConfig, error) {
	return pricing.PricingConfig{}, fmt.Errorf("%w: connection refused", pricing.ErrTransient)
}

func (downConfigStore) PutConfig(context.Context, string, pricing.PricingConfig) (pricing.PricingConfig, error) {
	return pricing.PricingConfig{}, fmt.Errorf("%w: connection refused", pricing.ErrTransient)
}

func TestPricingAPI_TransientStoreFailure(t *testing.T) {
	mem := pricing.NewMemoryStore()
	r := buildTestRouter(pricing.ServiceDeps{Configs: downConfigStore{}, States: mem, Audit: mem})

	w := doRequest(r, http.MethodPost, "/api/scopes/lot-1/quotes", quoteBody())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.NotContains(t, w.Body.String(), "connection refused")
}

type conflictStates struct{}

func (conflictStates) LoadState(context.Context, string) (pricing.SmoothingState, bool, error) {
	return pricing.SmoothingState{}, false, nil
}

func (conflictStates) CompareAndSwap(context.Context, int64, pricing.SmoothingState) error {
	return pricing.ErrConcurrencyConflict
}

func TestPricingAPI_ConflictExhausted(t *testing.T) {
	mem := pricing.NewMemoryStore()
	_, err := mem.PutConfig(context.Background(), "lot-1", lotConfig())
	require.NoError(t, err)
	r := buildTestRouter(pricing.ServiceDeps{
		Configs:            mem,
		States:             conflictStates{},
		Audit:              mem,
		MaxConflictRetries: 1,
		RetryBackoff:       time.Microsecond,
	})

	w := doRequest(r, http.MethodPost, "/api/scopes/lot-1/quotes", quoteBody())
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	quotes, err := mem.ListQuotes(context.Background(), "lot-1", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestHealth(t *testing.T) {
	w := doRequest(memoryRouter(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
