package handlers

import (
	"net/http"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
)

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type activateRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionView(h.Session.Snapshot()))
}

func (h *Handlers) RequestLoginCode(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := h.Session.RequestLoginCode(r.Context(), in.Email); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := h.Session.Register(r.Context(), in.Email); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	var in activateRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := h.Session.ActivateAccount(r.Context(), in.Token, in.Email); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := h.Session.VerifyCode(r.Context(), in.Code, in.Email); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(h.Session.Snapshot()))
}

func (h *Handlers) RefreshSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.RefreshSilently(r.Context()); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(h.Session.Snapshot()))
}

// Logout всегда отвечает снимком: локальная очистка выполнена, даже если
// сервер вернул ошибку (она видна в поле error).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	_ = h.Session.Logout(r.Context())

	writeJSON(w, http.StatusOK, toSessionView(h.Session.Snapshot()))
}
