package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"provenance/internal/platform/middleware"
	"provenance/internal/registry"
)

// Service defines the registry operations the transport layer needs.
type Service interface {
	Register(ctx context.Context, caller registry.Principal, fp registry.Fingerprint) (registry.ContentID, error)
	TransferOwnership(ctx context.Context, caller registry.Principal, id registry.ContentID, newOwner registry.Principal) error
	UpdateValidationRule(ctx context.Context, caller registry.Principal, rule string) error
	GetContent(ctx context.Context, id registry.ContentID) (*registry.ContentRecord, error)
	LookupFingerprint(ctx context.Context, fp registry.Fingerprint) (registry.ContentID, bool, error)
	ValidationRule(ctx context.Context) (string, error)
}

// Handler is the thin HTTP layer over the registry service. It owns request
// decoding, principal extraction, and error translation; every decision about
// state belongs to the service.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator middleware.TokenValidator
}

func New(service Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator,
	}
}

// Register mounts the registry routes. Reads are public; mutations require an
// authenticated principal, since every mutating operation is a function of
// the caller identity.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))

	router.Get("/registry/content", h.handleLookupFingerprint)
	router.Get("/registry/content/{id}", h.handleGetContent)
	router.Get("/registry/rule", h.handleGetRule)

	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequirePrincipal(h.validator, h.logger))
		authed.Post("/registry/content", h.handleRegister)
		authed.Post("/registry/content/{id}/transfer", h.handleTransfer)
		authed.Put("/registry/rule", h.handleUpdateRule)
	})

	r.Mount("/", router)
}

type registerRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type registerResponse struct {
	ContentID string `json:"content_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := registry.Principal(middleware.GetPrincipal(ctx))

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Fingerprint == "" {
		writeBadRequest(w, "fingerprint is required")
		return
	}

	id, err := h.service.Register(ctx, caller, registry.Fingerprint(req.Fingerprint))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{ContentID: formatID(id)})
}

type transferRequest struct {
	NewOwner string `json:"new_owner"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := registry.Principal(middleware.GetPrincipal(ctx))

	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.NewOwner == "" {
		writeBadRequest(w, "new_owner is required")
		return
	}

	if err := h.service.TransferOwnership(ctx, caller, id, registry.Principal(req.NewOwner)); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contentResponse struct {
	ContentID   string `json:"content_id"`
	Fingerprint string `json:"fingerprint"`
	Owner       string `json:"owner"`
}

func (h *Handler) handleGetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	rec, err := h.service.GetContent(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if rec == nil {
		// Absence is a query result in the registry, but 404 on the wire.
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{
		ContentID:   formatID(id),
		Fingerprint: string(rec.Fingerprint),
		Owner:       string(rec.Owner),
	})
}

type lookupResponse struct {
	ContentID string `json:"content_id"`
}

func (h *Handler) handleLookupFingerprint(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fingerprint")
	if fp == "" {
		writeBadRequest(w, "fingerprint query parameter is required")
		return
	}
	id, ok, err := h.service.LookupFingerprint(r.Context(), registry.Fingerprint(fp))
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{ContentID: formatID(id)})
}

type ruleResponse struct {
	Rule string `json:"rule"`
}

func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.ValidationRule(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, ruleResponse{Rule: rule})
}

type updateRuleRequest struct {
	Rule string `json:"rule"`
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := registry.Principal(middleware.GetPrincipal(ctx))

	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	// Empty rules are legal: they re-open the gate.
	if err := h.service.UpdateValidationRule(ctx, caller, req.Rule); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError maps the registry's closed error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an infrastructure failure and stays
// opaque to the client.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotAdmin):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not_admin"})
	case errors.Is(err, registry.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not_owner"})
	case errors.Is(err, registry.ErrContentNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "content_not_found"})
	case errors.Is(err, registry.ErrInvalidContent):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid_content"})
	case errors.Is(err, registry.ErrCounterOverflow):
		writeJSON(w, http.StatusInsufficientStorage, errorResponse{Error: "counter_overflow"})
	default:
		h.logger.ErrorContext(ctx, "registry operation failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

func contentIDParam(w http.ResponseWriter, r *http.Request) (registry.ContentID, bool) {
	raw := chi.URLParam(r, "id")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid content id")
		return 0, false
	}
	return registry.ContentID(v), true
}

// formatID renders ids as decimal strings. The id space is a full uint64 and
// JSON numbers lose precision past 2^53.
func formatID(id registry.ContentID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
