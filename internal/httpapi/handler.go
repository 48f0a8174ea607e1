// Package httpapi exposes the registry over HTTP with a chi router.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/registry/internal/config"
	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/metrics"
	"github.com/roach88/registry/internal/schema"
)

// UserHeader lets a request name the acting user for audit attribution.
const UserHeader = "X-Registry-User"

// maxBodyBytes bounds create payloads. Six fields of at most 255 characters
// fit comfortably.
const maxBodyBytes = 64 << 10

// Service defines the registry operations the handler calls.
type Service interface {
	CreateRegistration(ctx context.Context, category string, in domain.RegistrationInput) (domain.Registration, error)
	DeleteRegistration(ctx context.Context, id int64) error
	GetRegistration(ctx context.Context, id int64) (domain.Registration, error)
	ListRegistrations(ctx context.Context, month, category string, page int) (domain.Page, error)
	RunMonthlyArchive(ctx context.Context) (domain.ArchiveResult, error)
	ArchiveBatches(ctx context.Context, month string) ([]domain.ArchiveBatch, error)
}

// Handler serves the registry HTTP API.
type Handler struct {
	svc             Service
	validator       *schema.Validator
	logger          *slog.Logger
	cfg             config.Config
	defaultUsername string
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
}

// New creates a Handler. defaultUsername attributes requests that carry no
// X-Registry-User header. m counts requests rejected before they reach svc
// and may be nil. gatherer backs /metrics; nil disables the route.
func New(
	svc Service,
	validator *schema.Validator,
	logger *slog.Logger,
	cfg config.Config,
	defaultUsername string,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Handler {
	return &Handler{
		svc:             svc,
		validator:       validator,
		logger:          logger,
		cfg:             cfg,
		defaultUsername: defaultUsername,
		metrics:         m,
		gatherer:        gatherer,
	}
}

// Router builds the full route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(middleware.Timeout(30 * time.Second))

	h.Register(r)
	return r
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/meta", func(r chi.Router) {
		r.Get("/fields", h.handleFields)
		r.Get("/offices", h.handleOffices)
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Use(h.attributeUser)
		r.Get("/", h.handleList)
		r.Post("/{category}", h.handleCreate)
		r.Get("/{id:[0-9]+}", h.handleGet)
		r.Delete("/{id:[0-9]+}", h.handleDelete)
	})

	r.Route("/admin/archive", func(r chi.Router) {
		r.Use(h.attributeUser)
		r.Post("/run", h.handleArchiveRun)
		r.Get("/batches", h.handleBatches)
	})
}

// attributeUser puts the acting username on the request context.
func (h *Handler) attributeUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get(UserHeader)
		if username == "" {
			username = h.defaultUsername
		}
		next.ServeHTTP(w, r.WithContext(domain.WithUsername(r.Context(), username)))
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// reject answers a request the handler refuses before calling the service,
// counting it the way the service counts its own rejections.
func (h *Handler) reject(w http.ResponseWriter, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Code == domain.ErrCodeValidation {
		h.metrics.IncrementValidationFailure(derr.Field)
	}
	writeError(w, err)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.FieldLabels)
}

func (h *Handler) handleOffices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Offices)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := chi.URLParam(r, "category")

	if err := h.validator.ValidateCategory(category); err != nil {
		h.reject(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, domain.NewValidationError("", "request body too large or unreadable"))
		return
	}
	in, err := h.validator.ValidatePayload(body)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid registration payload",
			"request_id", middleware.GetReqID(ctx),
			"error", err.Error(),
		)
		h.reject(w, err)
		return
	}

	reg, err := h.svc.CreateRegistration(ctx, category, in)
	if err != nil {
		h.logFailure(ctx, "failed to create registration", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.reject(w, domain.NewValidationError("page", "page must be an integer"))
			return
		}
		page = n
	}
	month := q.Get("month")
	if month == "" {
		h.reject(w, domain.NewValidationError("month", "month is required (YYYY-MM)"))
		return
	}

	result, err := h.svc.ListRegistrations(r.Context(), month, q.Get("category"), page)
	if err != nil {
		h.logFailure(r.Context(), "failed to list registrations", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.reject(w, domain.NewValidationError("id", "id must be an integer"))
		return
	}

	reg, err := h.svc.GetRegistration(r.Context(), id)
	if err != nil {
		h.logFailure(r.Context(), "failed to get registration", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.reject(w, domain.NewValidationError("id", "id must be an integer"))
		return
	}

	if err := h.svc.DeleteRegistration(r.Context(), id); err != nil {
		h.logFailure(r.Context(), "failed to delete registration", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleArchiveRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunMonthlyArchive(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "archive run failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.ArchiveBatches(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		h.logFailure(r.Context(), "failed to list archive batches", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

// logFailure logs server-side failures. Client errors are not logged.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if statusFor(err) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetReqID(ctx),
		"error", err.Error(),
	)
}
