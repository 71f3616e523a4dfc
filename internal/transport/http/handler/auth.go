package handler

import (
	"net/http"

	"github.com/mystery-message-api/internal/application/auth"
	"github.com/mystery-message-api/internal/domain"
)

// AuthHandler serves sign-up, username checks, verification and sign-in.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	msg := "User registered successfully. Please verify your account."
	if !res.EmailSent {
		msg = "User registered, but the verification email could not be sent. Please sign up again to get a new code."
	}
	writeJSON(w, http.StatusCreated, SignUpEnvelope{APIResponse: ok(msg), User: res.User, EmailSent: res.EmailSent})
}

func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	available, err := h.svc.CheckUsernameAvailable(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	if !available {
		writeJSON(w, http.StatusOK, APIResponse{Success: false, Message: "Username is already taken"})
		return
	}
	writeJSON(w, http.StatusOK, ok("Username is unique"))
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.VerifyCode(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("Account verified successfully"))
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.SignIn(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SignInEnvelope{APIResponse: ok("Signed in"), Token: res.Token, User: res.User})
}
