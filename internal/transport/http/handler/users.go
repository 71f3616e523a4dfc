package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mystery-message-api/internal/application/user"
	"github.com/mystery-message-api/internal/domain"
	"github.com/mystery-message-api/internal/pkg/validate"
	"github.com/mystery-message-api/internal/transport/http/middleware"
)

// UserHandler serves the acceptance gate of the signed-in user.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) GetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	accepting, err := h.svc.GetAcceptanceStatus(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AcceptanceEnvelope{APIResponse: ok("Acceptance status fetched"), IsAcceptingMessage: accepting})
}

func (h *UserHandler) SetAcceptMessages(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	var req domain.AcceptMessagesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, r, err)
		return
	}
	accepting, err := h.svc.SetAcceptanceStatus(r.Context(), principal, chi.URLParam(r, "id"), *req.AcceptMessages)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AcceptanceEnvelope{
		APIResponse:         ok("Message acceptance status updated successfully"),
		IsAcceptingMessage: accepting,
	})
}
