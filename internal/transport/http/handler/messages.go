package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mystery-message-api/internal/application/message"
	"github.com/mystery-message-api/internal/domain"
	"github.com/mystery-message-api/internal/transport/http/middleware"
)

// MessageHandler serves anonymous sends and the owner's inbox.
type MessageHandler struct {
	svc message.Service
}

func NewMessageHandler(svc message.Service) *MessageHandler { return &MessageHandler{svc: svc} }

type sendMessageBody struct {
	Content string `json:"content"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var body sendMessageBody
	if !decodeBody(w, r, &body) {
		return
	}
	err := h.svc.SendMessage(r.Context(), domain.SendMessageRequest{
		Username: chi.URLParam(r, "username"),
		Content:  body.Content,
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok("Message sent successfully"))
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	msgs, err := h.svc.ListMessages(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, MessagesEnvelope{APIResponse: ok("Messages fetched"), Messages: msgs})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	err := h.svc.DeleteMessage(r.Context(), principal, chi.URLParam(r, "id"), chi.URLParam(r, "messageID"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("Message deleted"))
}
