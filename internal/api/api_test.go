package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/engine"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/ratelimit"
	"github.com/shelfwatch/shelfwatch/internal/store"
)

type stubSession struct{}

func (stubSession) Fetch(ctx context.Context, url string) (*models.RawSnapshot, error) {
	return &models.RawSnapshot{
		Name: "Stub Widget", Price: 9.99,
		StockStatus: models.StockInStock,
		ImageURL:    "https://cdn.example.com/stub.jpg",
	}, nil
}

func (stubSession) Close() {}

type stubFetcher struct{}

func (stubFetcher) Open(ctx context.Context) (fetch.Session, error) { return stubSession{}, nil }

func newTestRouter(t *testing.T) (*gin.Engine, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory(100)
	machine := engine.NewStateMachine(engine.NewBackoffPolicy(rand.NewSource(1)))
	scheduler := engine.NewScheduler(
		st, stubFetcher{}, engine.NewClassifier(), machine,
		ratelimit.New(100, time.Minute),
		nil, nil, engine.DefaultSchedulerConfig(), rand.NewSource(1),
	)
	h := NewHandler(st, scheduler, machine, nil)
	return h.Router(""), st
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAddAndListProducts(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/products", AddProductRequest{
		URL: "https://shop.example.com/widget",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.MonitorActive, created.MonitorState)
	assert.Equal(t, models.StockUnknown, created.StockStatus)

	w = doJSON(t, router, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Products []models.Product `json:"products"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestAddProductRejectsBadURL(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, u := range []string{"not a url", "ftp://example.com/x", "/relative/path"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/products", AddProductRequest{URL: u})
		assert.Equal(t, http.StatusBadRequest, w.Code, "url %q", u)
	}
}

func TestAddProductRejectsDuplicateURL(t *testing.T) {
	router, _ := newTestRouter(t)

	req := AddProductRequest{URL: "https://shop.example.com/widget"}
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/v1/products", req).Code)
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPost, "/api/v1/products", req).Code)
}

func TestPauseAndResume(t *testing.T) {
	router, st := newTestRouter(t)

	p := models.NewProduct("https://shop.example.com/widget")
	p.ErrorCount = 3
	require.NoError(t, st.AddProduct(context.Background(), p))

	w := doJSON(t, router, http.MethodPost, "/api/v1/products/"+p.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := st.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MonitorPaused, got.MonitorState)
	// Pause preserves counters.
	assert.Equal(t, 3, got.ErrorCount)

	w = doJSON(t, router, http.MethodPost, "/api/v1/products/"+p.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err = st.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MonitorActive, got.MonitorState)
	// Resume resets them.
	assert.Zero(t, got.ErrorCount)
}

func TestUpdateProductPartial(t *testing.T) {
	router, st := newTestRouter(t)

	p := models.NewProduct("https://shop.example.com/widget")
	p.Name = "Widget"
	require.NoError(t, st.AddProduct(context.Background(), p))

	auto := true
	w := doJSON(t, router, http.MethodPatch, "/api/v1/products/"+p.ID, UpdateProductRequest{
		AutoAddToCart: &auto,
	})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := st.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, got.AutoAddToCart)
	assert.Equal(t, "Widget", got.Name)
}

func TestProductNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/v1/products/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodDelete, "/api/v1/products/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPost, "/api/v1/products/nope/pause", nil).Code)
}

func TestSettingsPatchEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	w := doJSON(t, router, http.MethodPatch, "/api/v1/settings", map[string]any{
		"checkIntervalSeconds": 30,
		"webhookEnabled":       true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := st.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, got.CheckIntervalSeconds)
	assert.True(t, got.WebhookEnabled)
	// Untouched fields keep defaults.
	assert.Equal(t, 20, got.JitterPercent)
}

func TestSettingsPatchClampsValues(t *testing.T) {
	router, st := newTestRouter(t)

	w := doJSON(t, router, http.MethodPatch, "/api/v1/settings", map[string]any{
		"checkIntervalSeconds": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := st.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, got.CheckIntervalSeconds)
}

func TestExportImportRoundTrip(t *testing.T) {
	router, st := newTestRouter(t)

	p := models.NewProduct("https://shop.example.com/widget")
	p.Name = "Widget"
	require.NoError(t, st.AddProduct(context.Background(), p))

	w := doJSON(t, router, http.MethodGet, "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Import into a fresh service instance.
	router2, st2 := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewReader(w.Body.Bytes()))
	req.Header.Set("Content-Type", "application/json")
	w2 := httptest.NewRecorder()
	router2.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	products, err := st2.LoadProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
}

func TestImportRejectsInvalidBundle(t *testing.T) {
	router, st := newTestRouter(t)

	p := models.NewProduct("https://shop.example.com/widget")
	require.NoError(t, st.AddProduct(context.Background(), p))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewReader([]byte(`{"products": []}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Existing state is untouched.
	products, err := st.LoadProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSummaryBeforeFirstTick(t *testing.T) {
	router, st := newTestRouter(t)

	p := models.NewProduct("https://shop.example.com/widget")
	p.StockStatus = models.StockInStock
	require.NoError(t, st.AddProduct(context.Background(), p))

	w := doJSON(t, router, http.MethodGet, "/api/v1/monitor/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sum engine.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Active)
	assert.Equal(t, 1, sum.InStock)
}

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	st := store.NewMemory(100)
	machine := engine.NewStateMachine(engine.NewBackoffPolicy(rand.NewSource(1)))
	scheduler := engine.NewScheduler(
		st, stubFetcher{}, engine.NewClassifier(), machine,
		ratelimit.New(100, time.Minute),
		nil, nil, engine.DefaultSchedulerConfig(), rand.NewSource(1),
	)
	router := NewHandler(st, scheduler, machine, nil).Router("sekrit")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("X-API-Key", "sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
