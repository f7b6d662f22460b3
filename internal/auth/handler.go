package auth

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/apperr"
	"github.com/ayush/livefeed/backend/internal/models"
	"github.com/ayush/livefeed/backend/internal/respond"
)

// Handler holds the REST auth endpoints. They share Service with the GraphQL
// resolvers.
type Handler struct {
	svc *Service
	log logrus.FieldLogger
}

func NewHandler(svc *Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log.WithField("component", "auth-handler")}
}

// Signup creates a new user.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.log, apperr.Validation("invalid request body", nil))
		return
	}

	user, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{
		"message": "User created",
		"userId":  user.ID,
	})
}

// Login authenticates a user and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.log, apperr.Validation("invalid request body", nil))
		return
	}

	data, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, data)
}

// Status returns the caller's status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ac := FromContext(r.Context())
	if !ac.Authenticated() {
		respond.Error(w, h.log, apperr.Unauthorized("Not authenticated"))
		return
	}

	status, err := h.svc.UserStatus(r.Context(), ac.UserID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": status})
}

// UpdateStatus replaces the caller's status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ac := FromContext(r.Context())
	if !ac.Authenticated() {
		respond.Error(w, h.log, apperr.Unauthorized("Not authenticated"))
		return
	}

	var req models.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.log, apperr.Validation("invalid request body", nil))
		return
	}

	if _, err := h.svc.UpdateStatus(r.Context(), ac.UserID, req.Status); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "User Status Updated"})
}
