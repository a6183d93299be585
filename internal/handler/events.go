package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

const (
	defaultEventsLimit = 20
	maxEventsLimit     = 100
)

// EventLister is the read side of the event store.
type EventLister interface {
	ListEventsByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.PlatformEvent, error)
}

// EventHandler serves the caller's own platform events.
type EventHandler struct {
	events EventLister
	logger *slog.Logger
}

func NewEventHandler(events EventLister, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// HandleList returns the caller's events newest first.
//
// HTTP: GET /api/events?limit=20&offset=0
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.events.ListEventsByUser(r.Context(), uid, opts)
	if err != nil {
		h.logger.Error("list events failed", slog.String("uid", uid), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.PlatformEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func listOptions(r *http.Request) (repository.ListOptions, error) {
	opts := repository.ListOptions{Limit: defaultEventsLimit}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventsLimit {
			return opts, apperror.ValidationFailed("limit", "limit must be between 1 and "+strconv.Itoa(maxEventsLimit))
		}
		opts.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, apperror.ValidationFailed("offset", "offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
