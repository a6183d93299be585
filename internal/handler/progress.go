package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/content"
	"github.com/sakif/cmdshift-learn/internal/model"
)

// ProgressHandler serves /api/progress: the progress view and content
// completion. The XP for a completion comes from the content catalog, never
// from the client.
type ProgressHandler struct {
	progress ProgressService
	content  content.Lookup
	logger   *slog.Logger
}

func NewProgressHandler(progress ProgressService, lookup content.Lookup, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, content: lookup, logger: logger}
}

// HandleGetProgress returns level, XP and recent activity.
//
// HTTP: GET /api/progress
func (h *ProgressHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.progress.GetProgress(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCompleteTutorial marks a tutorial complete and awards its XP.
//
// HTTP: POST /api/progress/tutorials/{id}/complete
// 404 for an unknown tutorial, 409 when already completed.
func (h *ProgressHandler) HandleCompleteTutorial(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, model.KindTutorial, h.progress.CompleteTutorial)
}

// HandleCompleteChallenge is the challenge twin of HandleCompleteTutorial.
//
// HTTP: POST /api/progress/challenges/{id}/complete
func (h *ProgressHandler) HandleCompleteChallenge(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, model.KindChallenge, h.progress.CompleteChallenge)
}

type completeFunc func(ctx context.Context, uid, id string, xp int) (*model.Profile, error)

func (h *ProgressHandler) complete(w http.ResponseWriter, r *http.Request, kind model.ContentKind, fn completeFunc) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", string(kind)+" id is required"))
		return
	}

	xp, err := h.content.XPReward(r.Context(), kind, id)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := fn(r.Context(), uid, id, xp)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("content completed",
		slog.String("uid", uid),
		slog.String("kind", string(kind)),
		slog.String("id", id),
		slog.Int("xp", xp),
	)
	writeJSON(w, http.StatusOK, p)
}
