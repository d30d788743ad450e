package handlers

import (
	"net/http"
	"time"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/service"
)

const dateLayout = "2006-01-02"

type filterRequest struct {
	Filter string `json:"filter"`
}

type createEventRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Interests   []string `json:"interests"`
	City        string   `json:"city"`
	PlaceName   string   `json:"placeName"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
}

func (in createEventRequest) draft() (models.EventDraft, error) {
	d := models.EventDraft{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Interests:   tags(in.Interests),
		City:        in.City,
		PlaceName:   in.PlaceName,
	}

	var err error
	if in.StartDate != "" {
		if d.StartDate, err = time.Parse(dateLayout, in.StartDate); err != nil {
			return d, apperrors.Validation("startDate", "expected YYYY-MM-DD")
		}
	}
	if in.EndDate != "" {
		if d.EndDate, err = time.Parse(dateLayout, in.EndDate); err != nil {
			return d, apperrors.Validation("endDate", "expected YYYY-MM-DD")
		}
	}

	return d, nil
}

// feed выбирает ленту по ?scope=: discover (по умолчанию) или mine.
func (h *Handlers) feed(r *http.Request) (*service.Events, service.EventFetch, error) {
	switch r.URL.Query().Get("scope") {
	case "", "discover":
		return h.Discover, service.DiscoverFetch(h.Discover.Snapshot().Filter), nil
	case "mine":
		return h.Mine, service.MyEventsFetch(), nil
	default:
		return nil, nil, apperrors.Validation("scope", "scope must be discover or mine")
	}
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	feed, _, err := h.feed(r)
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventsView(feed.Snapshot()))
}

func (h *Handlers) NextEvents(w http.ResponseWriter, r *http.Request) {
	feed, fetch, err := h.feed(r)
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := feed.LoadNextPage(r.Context(), fetch); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventsView(feed.Snapshot()))
}

func (h *Handlers) RefreshEvents(w http.ResponseWriter, r *http.Request) {
	feed, fetch, err := h.feed(r)
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if err := feed.Refresh(r.Context(), fetch); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventsView(feed.Snapshot()))
}

// SetFilter меняет фильтр discover-ленты; после смены лента пуста до
// следующего /events/next.
func (h *Handlers) SetFilter(w http.ResponseWriter, r *http.Request) {
	var in filterRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	if _, err := h.Discover.SetFilter(models.FilterTag(in.Filter)); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventsView(h.Discover.Snapshot()))
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in createEventRequest
	if err := decodeStrict(r, &in); err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	draft, err := in.draft()
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	item, err := h.Mine.CreateEvent(r.Context(), draft, service.MyEventsFetch())
	if err != nil {
		apperrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventView(item))
}
