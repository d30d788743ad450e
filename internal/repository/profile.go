package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pribylovaa/campus-sync/internal/apiclient"
	"github.com/pribylovaa/campus-sync/internal/models"
)

// Profiles — HTTP-реализация ProfileRepository.
type Profiles struct {
	ex Executor
}

func NewProfiles(ex Executor) *Profiles {
	return &Profiles{ex: ex}
}

func (r *Profiles) Me(ctx context.Context) (models.Profile, error) {
	const op = "repository.profile.Me"

	var out UserProfileResponseDTO
	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodGet,
		Path:   "/user/me",
		Auth:   true,
	}, &out); err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return ToProfile(out), nil
}

func (r *Profiles) UpdateMe(ctx context.Context, req ProfileUpdateRequest) (models.Profile, error) {
	const op = "repository.profile.UpdateMe"

	var out UserProfileResponseDTO
	if err := r.ex.Execute(ctx, apiclient.Call{
		Method: http.MethodPut,
		Path:   "/user/me",
		Body:   req,
		Auth:   true,
	}, &out); err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return ToProfile(out), nil
}
