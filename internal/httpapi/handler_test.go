package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registry/internal/config"
	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/schema"
	"github.com/roach88/registry/internal/service"
	"github.com/roach88/registry/internal/store"
	"github.com/roach88/registry/internal/testutil"
)

func newRouter(t *testing.T) (chi.Router, *service.Service) {
	t.Helper()
	router, svc, _ := newRouterWithMetrics(t)
	return router, svc
}

func newRouterWithMetrics(t *testing.T) (chi.Router, *service.Service, *metrics.Metrics) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := service.New(st,
		service.WithClock(testutil.NewFixedClock(time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))),
		service.WithRunIDs(testutil.NewSequentialRunIDs("")),
		service.WithLogger(logger),
		service.WithMetrics(m),
	)
	validator, err := schema.NewValidator()
	require.NoError(t, err)

	h := New(svc, validator, logger, config.Default(), "desk-user", m, reg)
	return h.Router(), svc, m
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

var validIncoming = map[string]any{
	"issuer":          "Ministry",
	"referenceNumber": "REF-1",
	"subject":         "Budget",
	"offices":         []string{"OFF-1"},
	"entryDate":       "2025-09-10",
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestCreate(t *testing.T) {
	router, svc := newRouter(t)

	rec := do(t, router, http.MethodPost, "/registrations/common_incoming", validIncoming)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	reg := decode[domain.Registration](t, rec)
	assert.Equal(t, int64(40001), reg.ProtocolNumber)
	assert.Nil(t, reg.DraftNumber)
	assert.Equal(t, "2025-09-10", reg.EntryDate)

	trail, err := svc.AuditTrail(t.Context(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "desk-user", trail[0].Username)
}

func TestCreate_UserHeader(t *testing.T) {
	router, svc := newRouter(t)

	rec := do(t, router, http.MethodPost, "/registrations/common_incoming", validIncoming, UserHeader, "maria")
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decode[domain.Registration](t, rec)

	trail, err := svc.AuditTrail(t.Context(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "maria", trail[0].Username)
}

func TestCreate_Rejections(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		name   string
		target string
		body   any
		field  string
	}{
		{"unknown category", "/registrations/secret_incoming", validIncoming, "category"},
		{"incoming without offices", "/registrations/common_incoming", map[string]any{
			"issuer": "a", "referenceNumber": "b", "subject": "c",
		}, "offices"},
		{"outgoing without recipient", "/registrations/signals_outgoing", map[string]any{
			"issuer": "a", "referenceNumber": "b", "subject": "c",
		}, "recipient"},
		{"oversize issuer", "/registrations/common_incoming", map[string]any{
			"issuer": strings.Repeat("x", 256), "referenceNumber": "b", "subject": "c", "offices": []string{"A"},
		}, "issuer"},
		{"malformed json", "/registrations/common_incoming", `{"issuer":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, string(domain.ErrCodeValidation), resp.Code)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestCreate_RejectionsAreCounted(t *testing.T) {
	router, _, m := newRouterWithMetrics(t)

	do(t, router, http.MethodPost, "/registrations/secret_incoming", validIncoming)
	do(t, router, http.MethodPost, "/registrations/common_incoming", map[string]any{
		"issuer": strings.Repeat("x", 256), "referenceNumber": "b", "subject": "c", "offices": []string{"A"},
	})
	do(t, router, http.MethodPost, "/registrations/common_incoming", `{"issuer":`)
	do(t, router, http.MethodPost, "/registrations/common_incoming", map[string]any{
		"issuer": "a", "referenceNumber": "b", "subject": "c",
	})
	do(t, router, http.MethodGet, "/registrations?month=2025-09&page=x", nil)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationFailures.WithLabelValues("category")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationFailures.WithLabelValues("issuer")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationFailures.WithLabelValues("payload")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationFailures.WithLabelValues("offices")), "service rejections counted once")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationFailures.WithLabelValues("page")))
}

func TestGetAndDelete(t *testing.T) {
	router, _ := newRouter(t)

	created := decode[domain.Registration](t, do(t, router, http.MethodPost, "/registrations/common_incoming", validIncoming))
	path := "/registrations/" + itoa(created.ID)

	rec := do(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[domain.Registration](t, rec).ID)

	rec = do(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "already deleted")

	rec = do(t, router, http.MethodGet, "/registrations/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList(t *testing.T) {
	router, _ := newRouter(t)

	for i := 0; i < 3; i++ {
		rec := do(t, router, http.MethodPost, "/registrations/common_incoming", validIncoming)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/registrations?month=2025-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[domain.Page](t, rec)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, int64(3), page.Total)

	rec = do(t, router, http.MethodGet, "/registrations?month=2025-09&category=common_outgoing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[domain.Page](t, rec).Items)
}

func TestList_BadQuery(t *testing.T) {
	router, _ := newRouter(t)

	for _, target := range []string{
		"/registrations",
		"/registrations?month=Sept",
		"/registrations?month=2025-09&page=0",
		"/registrations?month=2025-09&page=two",
	} {
		rec := do(t, router, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestArchiveRun(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodPost, "/registrations/common_incoming", validIncoming)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/admin/archive/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[domain.ArchiveResult](t, rec)
	assert.Equal(t, "2025-09", result.Month)
	assert.Equal(t, int64(1), result.ItemsMoved)

	rec = do(t, router, http.MethodGet, "/registrations?month=2025-09", nil)
	assert.Empty(t, decode[domain.Page](t, rec).Items)

	rec = do(t, router, http.MethodGet, "/admin/archive/batches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	batches := decode[[]domain.ArchiveBatch](t, rec)
	require.Len(t, batches, 1)
	assert.Equal(t, "run-0001", batches[0].RunID)
}

func TestMeta(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodGet, "/meta/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode[map[string]config.FieldLabel](t, rec)
	assert.Equal(t, "Θέμα", fields["subject"].El)

	rec = do(t, router, http.MethodGet, "/meta/offices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]config.Office](t, rec), 2)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(t)

	do(t, router, http.MethodPost, "/registrations/common_incoming", validIncoming)

	rec := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `registry_registrations_created_total{category="common_incoming"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.NewValidationError("x", "bad")))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.NewNotFoundError(1)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.NewStorageError("op", io.EOF)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
