// Package handler exposes the enqueue API and the operator drain endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/registration/models"
	"registrar/internal/registration/runner"
	"registrar/internal/registration/service"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/platform/middleware/admin"
	authmw "registrar/pkg/platform/middleware/auth"
	request "registrar/pkg/platform/middleware/request"
	"registrar/pkg/platform/middleware/requesttime"
	"registrar/pkg/requestcontext"
)

const maxBodyBytes = 16 << 10

// Service queues registrations.
type Service interface {
	Enqueue(ctx context.Context, registrant string, req service.Request) (*models.WorkItem, error)
}

// Drainer runs one drain pass on demand.
type Drainer interface {
	Drain(ctx context.Context) (runner.Summary, error)
}

// Handler serves the registration routes.
type Handler struct {
	logger       *slog.Logger
	service      Service
	drainer      Drainer
	jwtValidator authmw.JWTValidator
	adminToken   string
	drainTimeout time.Duration
}

// New creates a Handler.
func New(svc Service, drainer Drainer, jwtValidator authmw.JWTValidator, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		service:      svc,
		drainer:      drainer,
		jwtValidator: jwtValidator,
		adminToken:   adminToken,
		drainTimeout: 2 * time.Minute,
	}
}

type enqueueResponse struct {
	ID             string `json:"id"`
	RegistrationID string `json:"registration_id"`
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requesttime.Middleware)
		r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/v1/registrations", h.handleEnqueue)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/admin/drain", h.handleDrain)
	})
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var req service.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid enqueue request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	item, err := h.service.Enqueue(ctx, requestcontext.Registrant(ctx), req)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to enqueue registration",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, enqueueResponse{
		ID:             item.ID,
		RegistrationID: item.RegistrationID,
	})
}

func (h *Handler) handleDrain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.drainTimeout)
	defer cancel()

	summary, err := h.drainer.Drain(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "drain failed",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "drain aborted"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
