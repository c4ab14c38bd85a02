package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/cache"
	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/gateway"
	"github.com/pribylovaa/flexibill/internal/metrics"
	"github.com/pribylovaa/flexibill/internal/models"
	"github.com/pribylovaa/flexibill/internal/pkg/secretbox"
	"github.com/pribylovaa/flexibill/internal/provider"
	"github.com/pribylovaa/flexibill/internal/retry"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/storage/memory"
	"github.com/pribylovaa/flexibill/internal/transport/http/handlers"
	"github.com/pribylovaa/flexibill/internal/transport/http/middleware"
)

const testAdminToken = "admin-secret"

// stubProvider — провайдер с одним фиксированным банком.
type stubProvider struct{}

func (stubProvider) CreateLinkToken(_ context.Context, userID string) (string, error) {
	return "link-sandbox-" + userID, nil
}

func (stubProvider) ExchangePublicToken(_ context.Context, publicToken string) (*provider.ExchangeResult, error) {
	return &provider.ExchangeResult{AccessToken: "access-" + publicToken, ItemID: "item-" + publicToken}, nil
}

func (stubProvider) GetItem(context.Context, string) (*provider.ItemInfo, error) {
	return &provider.ItemInfo{InstitutionID: "ins_3"}, nil
}

func (stubProvider) GetAccounts(context.Context, string) ([]models.Account, error) {
	return []models.Account{{ID: "acc-1", Name: "Checking", Mask: "0000", Type: "depository", Currency: "USD"}}, nil
}

func (stubProvider) GetTransactions(context.Context, string, time.Time, time.Time) ([]models.Transaction, error) {
	return nil, nil
}

type testEnv struct {
	srv   *httptest.Server
	ready *atomic.Bool
	reg   *breaker.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	st := memory.New()
	inc := memory.NewIncidents()

	tokens := service.NewTokenService(st, config.AuthConfig{
		JWTSecret:       "router-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		FamilyTTL:       72 * time.Hour,
		Issuer:          "flexibill",
		Audience:        []string{"flexibill-app"},
	}, service.WithIncidents(inc), service.WithMetrics(m))
	cleanup := service.NewCleanupService(st, config.CleanupConfig{}, service.WithIncidents(inc), service.WithMetrics(m))

	reg := breaker.NewRegistry(breaker.WithClassifier(gateway.Classify), breaker.WithLogger(logger))
	gw := gateway.New(reg, cache.NewMemory(), retry.Policy{
		MaxRetries:     1,
		BaseDelay:      time.Millisecond,
		MaxDelay:       time.Millisecond,
		AttemptTimeout: time.Second,
	}, gateway.Config{Breakers: config.BreakersConfig{FailureThreshold: 3, ResetTimeout: time.Minute, SuccessThreshold: 1}})

	box, err := secretbox.New("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	items := service.NewItemService(st, stubProvider{}, gw, box)
	webhooks := service.NewWebhookService(st, items, nil, 0, m)

	ready := &atomic.Bool{}
	ready.Store(true)

	h := &handlers.Handlers{
		Tokens:   tokens,
		Cleanup:  cleanup,
		Items:    items,
		Webhooks: webhooks,
		Breakers: reg,
		Gatherer: promReg,
		Ready:    ready,
	}

	srv := httptest.NewServer(NewRouter(h, Options{
		Logger:     logger,
		Metrics:    m,
		Timeout:    5 * time.Second,
		AdminToken: testAdminToken,
	}))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, ready: ready, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}

	return resp, out
}

func admin() map[string]string { return map[string]string{middleware.HeaderAdminToken: testAdminToken} }

func errCode(t *testing.T, body map[string]any) string {
	t.Helper()

	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "error envelope expected: %v", body)
	code, _ := e["code"].(string)
	return code
}

func (e *testEnv) issue(t *testing.T, uid uuid.UUID) map[string]any {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/api/internal/sessions", map[string]string{"user_id": uid.String()}, admin())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	return body
}

func TestRouter_RefreshReuseIsGeneric401(t *testing.T) {
	e := newTestEnv(t)
	uid := uuid.New()

	sess := e.issue(t, uid)
	t1 := sess["refresh_token"].(string)
	require.Equal(t, uid.String(), sess["user_id"])

	resp, body := e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": t1}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	t2 := body["refresh_token"].(string)
	require.NotEqual(t, t1, t2)
	require.Equal(t, "Bearer", body["token_type"])

	// Повтор T1 — атака: ответ неотличим от неизвестного токена.
	resp, body = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": t1}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", errCode(t, body))
	require.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))

	// Семейство отозвано: T2 тоже не работает.
	resp, body = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": t2}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", errCode(t, body))

	resp, body = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": "nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", errCode(t, body))

	// Инцидент виден администратору.
	resp, body = e.do(t, http.MethodGet, "/api/admin/security/incidents", nil, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["incidents"].([]any)
	require.NotEmpty(t, list)
	require.Equal(t, string(models.IncidentTokenReuse), list[0].(map[string]any)["kind"])
}

func TestRouter_RefreshMalformedBody(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/auth/refresh", map[string]any{"refresh_token": "x", "extra": 1}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", errCode(t, body))
}

func TestRouter_Logout(t *testing.T) {
	e := newTestEnv(t)

	sess := e.issue(t, uuid.New())
	rt := sess["refresh_token"].(string)

	resp, _ := e.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Повторный logout идемпотентен.
	resp, _ = e.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": rt}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": "unknown"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/admin/breakers", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthenticated", errCode(t, body))

	resp, _ = e.do(t, http.MethodPost, "/api/internal/sessions", map[string]string{"user_id": uuid.NewString()},
		map[string]string{middleware.HeaderAdminToken: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/api/internal/sessions", map[string]string{"user_id": "not-a-uuid"}, admin())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_argument", errCode(t, body))
}

func TestRouter_RevokeAllAndValidate(t *testing.T) {
	e := newTestEnv(t)
	uid := uuid.New()

	s1 := e.issue(t, uid)
	e.issue(t, uid)

	resp, body := e.do(t, http.MethodPost, "/api/internal/tokens/validate",
		map[string]string{"refresh_token": s1["refresh_token"].(string)}, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "valid", body["status"])
	require.Equal(t, uid.String(), body["user_id"])

	resp, body = e.do(t, http.MethodPost, "/api/admin/users/"+uid.String()+"/revoke-all", nil, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["revoked_tokens"])

	resp, body = e.do(t, http.MethodPost, "/api/internal/tokens/validate",
		map[string]string{"refresh_token": s1["refresh_token"].(string)}, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "revoked", body["status"])

	resp, _ = e.do(t, http.MethodPost, "/api/admin/users/bad/revoke-all", nil, admin())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ItemsAndBreakers(t *testing.T) {
	e := newTestEnv(t)

	sess := e.issue(t, uuid.New())
	bearer := map[string]string{"Authorization": "Bearer " + sess["access_token"].(string)}

	resp, _ := e.do(t, http.MethodPost, "/api/items", map[string]string{"public_token": "pt-1"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/items/link-token", nil, bearer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body["link_token"], "link-sandbox-")

	resp, body = e.do(t, http.MethodPost, "/api/items", map[string]string{"public_token": "pt-1"}, bearer)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "item-pt-1", body["item_id"])
	require.Equal(t, "active", body["status"])
	require.NotContains(t, body, "access_token")

	resp, body = e.do(t, http.MethodGet, "/api/items/item-pt-1/accounts", nil, bearer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["accounts"], 1)

	// Чужой пользователь не видит элемент.
	other := e.issue(t, uuid.New())
	resp, body = e.do(t, http.MethodGet, "/api/items/item-pt-1/accounts", nil,
		map[string]string{"Authorization": "Bearer " + other["access_token"].(string)})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", errCode(t, body))

	resp, body = e.do(t, http.MethodGet, "/api/admin/breakers", nil, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["breakers"].([]any)
	require.Len(t, list, 1)
	require.Equal(t, service.DependencyProvider, list[0].(map[string]any)["name"])
	require.Equal(t, "closed", list[0].(map[string]any)["state"])

	resp, _ = e.do(t, http.MethodPost, "/api/admin/breakers/reset?name="+service.DependencyProvider, nil, admin())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/admin/breakers/reset?name=unknown", nil, admin())
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/admin/breakers/reset", nil, admin())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_Webhook(t *testing.T) {
	e := newTestEnv(t)

	sess := e.issue(t, uuid.New())
	bearer := map[string]string{"Authorization": "Bearer " + sess["access_token"].(string)}
	resp, _ := e.do(t, http.MethodPost, "/api/items", map[string]string{"public_token": "pt-2"}, bearer)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev := map[string]any{"webhook_type": "ITEM", "webhook_code": "PENDING_EXPIRATION", "item_id": "item-pt-2"}

	resp, body := e.do(t, http.MethodPost, "/api/webhooks/provider", ev, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(service.WebhookProcessed), body["outcome"])

	resp, body = e.do(t, http.MethodPost, "/api/webhooks/provider", ev, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(service.WebhookDuplicate), body["outcome"])

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/webhooks/provider", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	raw, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	_ = raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	e.ready.Store(false)
	resp, _ = e.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
