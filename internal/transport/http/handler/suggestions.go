package handler

import (
	"net/http"

	"github.com/mystery-message-api/internal/application/suggestion"
)

type SuggestionHandler struct {
	svc suggestion.Service
}

func NewSuggestionHandler(svc suggestion.Service) *SuggestionHandler {
	return &SuggestionHandler{svc: svc}
}

func (h *SuggestionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SuggestionsEnvelope{
		APIResponse: ok("Suggestions generated"),
		Suggestions: h.svc.Suggest(r.Context()),
	})
}
