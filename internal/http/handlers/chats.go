package handlers

import (
	"net/http"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
)

func (h *Handlers) ListChats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toChatsView(h.Chats.Snapshot()))
}

func (h *Handlers) NextChats(w http.ResponseWriter, r *http.Request) {
	if err := h.Chats.LoadNextPage(r.Context()); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatsView(h.Chats.Snapshot()))
}

func (h *Handlers) RefreshChats(w http.ResponseWriter, r *http.Request) {
	if err := h.Chats.Refresh(r.Context()); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatsView(h.Chats.Snapshot()))
}
