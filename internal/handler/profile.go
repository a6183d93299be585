package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/auth"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/progress"
)

// ProgressService is the slice of progress.Engine the HTTP layer calls.
type ProgressService interface {
	EnsureProfile(ctx context.Context, uid, email string) (*progress.LoginResult, error)
	GetProfile(ctx context.Context, uid string) (*model.Profile, error)
	UpdateEmail(ctx context.Context, uid, email string) (*model.Profile, error)
	AwardXP(ctx context.Context, uid string, amount int, reason string) (*model.Profile, error)
	ClaimDailyLogin(ctx context.Context, uid string) (*model.Profile, error)
	GetAchievements(ctx context.Context, uid string) ([]model.Achievement, error)
	GetProgress(ctx context.Context, uid string) (*progress.View, error)
	CompleteTutorial(ctx context.Context, uid, tutorialID string, xp int) (*model.Profile, error)
	CompleteChallenge(ctx context.Context, uid, challengeID string, xp int) (*model.Profile, error)
}

// ProfileHandler serves /api/profile. Every route sits behind
// auth.RequireAuth, so the caller's uid is always in the context.
type ProfileHandler struct {
	progress ProgressService
	logger   *slog.Logger
}

func NewProfileHandler(progress ProgressService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{progress: progress, logger: logger}
}

type updateProfileRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// awardXPRequest bounds a single award; the engine separately refuses any
// award that would push the running total past progress.MaxXP.
type awardXPRequest struct {
	Amount *int   `json:"amount" validate:"required,min=-100000,max=100000"`
	Reason string `json:"reason" validate:"required,max=200"`
}

// callerUID reads the uid RequireAuth stored. A missing uid means the route
// was mounted without the middleware.
func callerUID(r *http.Request) (string, error) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	return uid, nil
}

// HandleGetMe returns the caller's profile.
//
// HTTP: GET /api/profile/me
//
// Callers authenticated by API key or a token minted elsewhere may not
// have a profile yet; the first read creates it with the first-login bonus.
func (h *ProfileHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.progress.GetProfile(r.Context(), uid)
	if errors.Is(err, apperror.ErrNotFound) {
		var login *progress.LoginResult
		login, err = h.progress.EnsureProfile(r.Context(), uid, "")
		if err == nil {
			p = login.Profile
		}
	}
	if err != nil {
		h.logError("get profile", uid, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdateMe changes the caller's email. XP and completions are not
// client-writable.
//
// HTTP: PUT /api/profile/me {"email": "..."}
func (h *ProfileHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.progress.UpdateEmail(r.Context(), uid, req.Email)
	if err != nil {
		h.logError("update email", uid, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleAwardXP adds XP to the caller.
//
// HTTP: POST /api/profile/xp {"amount": 50, "reason": "..."}
func (h *ProfileHandler) HandleAwardXP(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req awardXPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.progress.AwardXP(r.Context(), uid, *req.Amount, req.Reason)
	if err != nil {
		h.logError("award xp", uid, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDailyLogin claims the once-per-UTC-day bonus. 409 when already
// claimed today.
//
// HTTP: POST /api/profile/daily-login
func (h *ProfileHandler) HandleDailyLogin(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.progress.ClaimDailyLogin(r.Context(), uid)
	if err != nil {
		h.logError("daily login", uid, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleAchievements lists the caller's achievements in unlock order.
//
// HTTP: GET /api/profile/achievements
func (h *ProfileHandler) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	uid, err := callerUID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	achievements, err := h.progress.GetAchievements(r.Context(), uid)
	if err != nil {
		h.logError("get achievements", uid, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

// logError logs only unexpected failures; 4xx outcomes are the client's
// business and already show up in the access log.
func (h *ProfileHandler) logError(op, uid string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return
	}
	h.logger.Error(op+" failed", slog.String("uid", uid), slog.String("error", err.Error()))
}
