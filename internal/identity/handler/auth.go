package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotbook/internal/identity"
	"slotbook/internal/identity/repository"
	"slotbook/internal/identity/service"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
)

type ChallengeRequest struct {
	Phone string `json:"phone"`
}

type SessionRequest struct {
	Handle string `json:"handle"`
	Code   string `json:"code"`
}

type AuthHandler struct {
	verifier service.Verifier
	users    repository.UserRepository
	gate     identity.Gate
	log      *logger.Logger
}

func NewAuthHandler(verifier service.Verifier, users repository.UserRepository, gate identity.Gate, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		users:    users,
		gate:     gate,
		log:      log,
	}
}

func (h *AuthHandler) RequestChallenge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "RequestChallenge", apperrors.InvalidInput("Invalid request body"))
		return
	}

	ticket, err := h.verifier.RequestChallenge(r.Context(), req.Phone)
	if err != nil {
		h.writeError(w, r, "RequestChallenge", err)
		return
	}

	if err := httputil.WriteCreated(w, ticket); err != nil {
		h.log.Error("failed to write created response", "handler", "RequestChallenge", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "CreateSession", apperrors.InvalidInput("Invalid request body"))
		return
	}
	if req.Handle == "" || req.Code == "" {
		h.writeError(w, r, "CreateSession", apperrors.Validation("Invalid input", map[string]any{
			"handle": "is required",
			"code":   "is required",
		}))
		return
	}

	session, err := h.verifier.VerifyChallenge(r.Context(), req.Handle, req.Code)
	if err != nil {
		h.writeError(w, r, "CreateSession", err)
		return
	}

	if err := httputil.WriteCreated(w, session); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateSession", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, ok := h.gate.CurrentIdentity(r.Context())
	if !ok {
		h.writeError(w, r, "Me", apperrors.Unauthorized("Sign in required"))
		return
	}

	// The token may outlive the account it was issued for.
	user, err := h.users.FindByID(r.Context(), id.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		h.writeError(w, r, "Me", apperrors.Unauthorized("Account no longer exists"))
		return
	}
	if err != nil {
		h.writeError(w, r, "Me", apperrors.Internal("Failed to load account", err))
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "Me", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	log := logger.FromContext(r.Context(), h.log)
	if appErr := apperrors.AsAppError(err); appErr.StatusCode() >= http.StatusInternalServerError {
		log.Error("request failed", "handler", handler, "code", appErr.Code, "error", err)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AuthHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/challenges", h.RequestChallenge)
	router.POST("/api/v1/auth/sessions", h.CreateSession)
	router.GET("/api/v1/auth/me", h.Me)
}
