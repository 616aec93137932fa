package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/session-seat-reservation/internal/config"
	"github.com/iliyamo/session-seat-reservation/internal/handler"
	"github.com/iliyamo/session-seat-reservation/internal/middleware"
	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/repository"
	"github.com/iliyamo/session-seat-reservation/internal/store"
	"github.com/iliyamo/session-seat-reservation/internal/utils"
)

const secret = "router-secret"

type staticLister []model.Session

func (s staticLister) List(context.Context) ([]model.Session, error) { return s, nil }

func (s staticLister) Search(context.Context, repository.SessionSearchQuery) ([]model.Session, int64, error) {
	return s, int64(len(s)), nil
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	st := store.NewRedis(rdb, store.WithPrefix("seat"))

	start := time.Date(2026, 5, 18, 9, 0, 0, 0, time.UTC)
	sessions := staticLister{{ID: "keynote", Title: "Keynote", Start: start, End: start.Add(time.Hour), Capacity: 10}}

	d := Deps{
		JWTSecret: secret,
		Health:    handler.Health(map[string]handler.Pinger{"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() }}),
		Sessions:  &handler.SessionHandler{Sessions: sessions, Store: st},
		Queue:     &handler.QueueHandler{Store: st},
		RateLimit: middleware.NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 100, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, KeyStrategy: "user", Prefix: "rl"}, rdb),
		Cache:     middleware.NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache"}, rdb),
	}
	e := echo.New()
	RegisterRoutes(e, d)
	RegisterAttendee(e, d)
	RegisterAdmin(e, d)
	return e
}

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func do(e *echo.Echo, method, path, body, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	e := newServer(t)
	alice := token(t, "alice", middleware.RoleAttendee)
	admin := token(t, "ops", middleware.RoleAdmin)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", "").Code)

	list := do(e, http.MethodGet, "/v1/sessions", "", "")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"keynote"`)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/sessions/keynote/seats", "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, "/v1/admin/catalog/sync", "", alice).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/v1/admin/catalog/sync", "", admin).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/sessions/keynote/seats", "", "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/v1/queue", `{"session":"keynote","action":"reserve"}`, "").Code)
	submitted := do(e, http.MethodPost, "/v1/queue", `{"session":"keynote","action":"reserve","request_id":"r1"}`, alice)
	assert.Equal(t, http.StatusAccepted, submitted.Code)
	assert.NotEmpty(t, submitted.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/queue", "", alice).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/sessions/keynote/reservation", "", alice).Code)
}
