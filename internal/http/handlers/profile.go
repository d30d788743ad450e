package handlers

import (
	"net/http"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
)

type updateProfileRequest struct {
	UserName     string     `json:"userName"`
	Nationality  stringList `json:"nationality"`
	Languages    []string   `json:"languages"`
	Age          int        `json:"age"`
	Interests    []string   `json:"interests"`
	Bio          string     `json:"bio"`
	City         string     `json:"city"`
	Country      string     `json:"country"`
	ProfileImage string     `json:"profileImage"`
}

func (in updateProfileRequest) update() models.ProfileUpdate {
	return models.ProfileUpdate{
		UserName:     in.UserName,
		Nationality:  in.Nationality,
		Languages:    in.Languages,
		Age:          in.Age,
		Interests:    tags(in.Interests),
		Bio:          in.Bio,
		City:         in.City,
		Country:      in.Country,
		ProfileImage: in.ProfileImage,
	}
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toProfileStateView(h.Profile.Snapshot()))
}

func (h *Handlers) FetchProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.Profile.FetchProfile(r.Context()); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileStateView(h.Profile.Snapshot()))
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in updateProfileRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := h.Profile.UpdateProfile(r.Context(), in.update()); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileStateView(h.Profile.Snapshot()))
}
