package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/pkg/log"
	"github.com/pribylovaa/campus-sync/internal/repository"
)

// ProfileState — снимок профиля. Profile == nil, пока профиль не загружен.
type ProfileState struct {
	Profile *models.Profile
	Loading bool
	Err     error
}

// Profile — стор профиля текущего пользователя.
type Profile struct {
	repo    repository.ProfileRepository
	expirer Expirer

	mu    sync.Mutex
	state ProfileState
}

func NewProfile(repo repository.ProfileRepository, expirer Expirer) *Profile {
	return &Profile{repo: repo, expirer: expirer}
}

func (p *Profile) Snapshot() ProfileState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state
	if st.Profile != nil {
		st.Profile = cloneProfile(*st.Profile)
	}

	return st
}

// Clear забывает профиль (logout).
func (p *Profile) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = ProfileState{}
}

// FetchProfile загружает профиль с сервера.
func (p *Profile) FetchProfile(ctx context.Context) error {
	const op = "service.profile.FetchProfile"

	p.begin()

	prof, err := p.repo.Me(ctx)

	return p.finish(ctx, op, prof, err)
}

// UpdateProfile отправляет изменения профиля.
// Без загруженного профиля возвращает ValidationError без сетевого вызова.
func (p *Profile) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error {
	const op = "service.profile.UpdateProfile"

	p.mu.Lock()
	if p.state.Profile == nil {
		err := fmt.Errorf("%s: %w", op, apperrors.Validation("profile", "profile is not loaded"))
		p.state.Err = err
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	p.begin()

	prof, err := p.repo.UpdateMe(ctx, toUpdateRequest(upd))

	return p.finish(ctx, op, prof, err)
}

func (p *Profile) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Loading = true
	p.state.Err = nil
}

func (p *Profile) finish(ctx context.Context, op string, prof models.Profile, err error) error {
	p.mu.Lock()
	p.state.Loading = false
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		p.state.Err = err
	} else {
		p.state.Profile = &prof
	}
	p.mu.Unlock()

	if err != nil {
		log.From(ctx).Warn("profile_call_failed", slog.String("op", op), slog.String("err", err.Error()))
		// Очистка сессии сбрасывает и этот стор, поэтому вызывается без мьютекса.
		checkExpired(ctx, p.expirer, err)
		return err
	}

	return nil
}

// CanonicalNationality сводит список национальностей к одной строке
// "A, B": пустые элементы и повторы отбрасываются, порядок сохраняется.
func CanonicalNationality(in []string) string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}

	return strings.Join(out, ", ")
}

func toUpdateRequest(upd models.ProfileUpdate) repository.ProfileUpdateRequest {
	req := repository.ProfileUpdateRequest{
		UserName:    strings.TrimSpace(upd.UserName),
		Nationality: CanonicalNationality(upd.Nationality),
		Languages:   upd.Languages,
		Age:         upd.Age,
		Interests:   make([]string, 0, len(upd.Interests)),
		Bio:         upd.Bio,
	}
	if req.Languages == nil {
		req.Languages = []string{}
	}
	for _, t := range upd.Interests {
		req.Interests = append(req.Interests, string(t))
	}
	if img := repository.ProcessImage(upd.ProfileImage); img != "" {
		req.ProfilePicture = &img
	}
	req.SetLocation(upd.City, upd.Country)

	return req
}

func cloneProfile(p models.Profile) *models.Profile {
	p.Languages = slices.Clone(p.Languages)
	p.Interests = slices.Clone(p.Interests)
	p.SocialMedia = maps.Clone(p.SocialMedia)

	return &p
}
