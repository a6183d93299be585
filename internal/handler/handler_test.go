package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cmdshift-learn/internal/auth"
	"github.com/sakif/cmdshift-learn/internal/content"
	"github.com/sakif/cmdshift-learn/internal/eventlog"
	"github.com/sakif/cmdshift-learn/internal/handler"
	"github.com/sakif/cmdshift-learn/internal/progress"
	"github.com/sakif/cmdshift-learn/internal/repository/memory"
)

const testUIDHeader = "X-Test-UID"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeAuth trusts a test header instead of a real credential.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get(testUIDHeader); uid != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

type testEnv struct {
	store  *memory.Store
	engine *progress.Engine
	router chi.Router
}

// newTestEnv mounts the API handlers on a real engine, an in-memory store
// and the default catalog. Achievement evaluation is off.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	store := memory.New()
	engine := progress.NewEngine(store, eventlog.NewStoreSink(store), nil, logger)
	lookup := content.NewLookup(content.NewCatalog(content.DefaultItems()...))

	profiles := handler.NewProfileHandler(engine, logger)
	prog := handler.NewProgressHandler(engine, lookup, logger)
	events := handler.NewEventHandler(store, logger)

	r := chi.NewRouter()
	r.Use(fakeAuth)
	r.Get("/api/profile/me", profiles.HandleGetMe)
	r.Put("/api/profile/me", profiles.HandleUpdateMe)
	r.Post("/api/profile/xp", profiles.HandleAwardXP)
	r.Post("/api/profile/daily-login", profiles.HandleDailyLogin)
	r.Get("/api/profile/achievements", profiles.HandleAchievements)
	r.Get("/api/progress", prog.HandleGetProgress)
	r.Post("/api/progress/tutorials/{id}/complete", prog.HandleCompleteTutorial)
	r.Post("/api/progress/challenges/{id}/complete", prog.HandleCompleteChallenge)
	r.Get("/api/events", events.HandleList)

	return &testEnv{store: store, engine: engine, router: r}
}

// do sends a request as uid ("" for anonymous).
func (e *testEnv) do(t *testing.T, method, path, uid, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(testUIDHeader, uid)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signIn creates the profile the way the login flow does.
func (e *testEnv) signIn(t *testing.T, uid string) {
	t.Helper()
	rr := e.do(t, http.MethodGet, "/api/profile/me", uid, "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

type profileBody struct {
	ExternalUID        string          `json:"externalUid"`
	Email              string          `json:"email"`
	XP                 int             `json:"xp"`
	Level              int             `json:"level"`
	CompletedTutorials map[string]bool `json:"completedTutorials"`
	XPLog              []struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	} `json:"xpLog"`
}
