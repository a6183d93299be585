package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/cmdshift-learn/internal/handler"
)

func TestHealthHandler(t *testing.T) {
	ok := handler.PingFunc(func(ctx context.Context) error { return nil })
	down := handler.PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	t.Run("all healthy", func(t *testing.T) {
		h := handler.NewHealthHandler(map[string]handler.Pinger{"db": ok, "redis": nil}, testLogger())
		rr := httptest.NewRecorder()

		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("a dependency is down", func(t *testing.T) {
		h := handler.NewHealthHandler(map[string]handler.Pinger{"db": ok, "redis": down}, testLogger())
		rr := httptest.NewRecorder()

		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"unavailable","failed":{"redis":"connection refused"}}`, rr.Body.String())
	})
}
