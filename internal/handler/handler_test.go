package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/orderexport/internal/auth"
	authConfig "github.com/iurnickita/orderexport/internal/auth/config"
	"github.com/iurnickita/orderexport/internal/board"
	"github.com/iurnickita/orderexport/internal/handler/config"
	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/service"
)

// fakeService отвечает заранее заданными значениями
type fakeService struct {
	err       error
	session   model.Session
	snapshot  board.Snapshot
	records   []model.ExportRecord
	lastSince time.Time
	lastIDs   []int64
}

func (f *fakeService) OpenSession(_ context.Context, source model.Account) (model.Session, error) {
	if source.Empty() {
		return model.Session{}, service.ErrInsufficientData
	}
	f.session = model.Session{ID: "session-1", Source: source}
	return f.session, nil
}

func (f *fakeService) GetSession(_ context.Context, sessionID string) (model.Session, error) {
	if sessionID != f.session.ID {
		return model.Session{}, service.ErrNoSession
	}
	return f.session, f.err
}

func (f *fakeService) CloseSession(_ context.Context, _ string) error {
	return f.err
}

func (f *fakeService) SetTargetAccount(_ context.Context, _ string, target model.Account) (model.Session, error) {
	f.session.Target = target
	return f.session, f.err
}

func (f *fakeService) ClearTargetAccount(_ context.Context, _ string) (model.Session, error) {
	f.session.Target = model.Account{}
	return f.session, f.err
}

func (f *fakeService) SaveExportConfig(_ context.Context, _ string, exportConfig model.ExportConfig) (model.Session, error) {
	f.session.Config = exportConfig
	return f.session, f.err
}

func (f *fakeService) GetSituations(_ context.Context, _ string) ([]model.Option, error) {
	return []model.Option{{ID: 6, Label: "Em aberto"}}, f.err
}

func (f *fakeService) GetStores(_ context.Context, _ string) ([]model.Option, error) {
	return []model.Option{{ID: 1, Label: "Loja"}}, f.err
}

func (f *fakeService) LoadOrders(_ context.Context, _ string, since time.Time) (board.Snapshot, error) {
	f.lastSince = since
	return f.snapshot, f.err
}

func (f *fakeService) GetOrders(_ context.Context, _ string) (board.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeService) ValidateOrders(_ context.Context, _ string) error {
	return f.err
}

func (f *fakeService) ExportOrders(_ context.Context, _ string, ids []int64) error {
	f.lastIDs = ids
	return f.err
}

func (f *fakeService) GetExports(_ context.Context, _ string) ([]model.ExportRecord, error) {
	return f.records, f.err
}

func (f *fakeService) Shutdown() {}

func newTestServer(t *testing.T, fake *fakeService) *httptest.Server {
	zaplog := zap.NewNop()
	a := auth.NewAuth(authConfig.Config{TokenKey: "test-key", TokenTTL: time.Hour}, fake, zaplog)
	h := newHandler(a, fake, config.Config{AllowedOrigins: []string{"*"}}, zaplog)

	srv := httptest.NewServer(h.newRouter())
	t.Cleanup(srv.Close)
	return srv
}

// login открывает сессию и возвращает cookie
func login(t *testing.T, srv *httptest.Server) *http.Cookie {
	resp, err := http.Post(srv.URL+"/api/session", "application/json",
		strings.NewReader(`{"profile":"source","secret":"s3cr3t"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func doRequest(t *testing.T, srv *httptest.Server, cookie *http.Cookie, method, path, body string) *http.Response {
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp := doRequest(t, srv, nil, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, srv, &http.Cookie{Name: "orderexportSessionToken", Value: "garbage"}, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, srv, nil, http.MethodPost, "/api/session", `{"profile":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionHidesSecrets(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	cookie := login(t, srv)

	resp := doRequest(t, srv, cookie, http.MethodPut, "/api/session/target", `{"profile":"target","secret":"t0p"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session SessionJSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	require.Equal(t, "session-1", session.SessionID)
	require.Equal(t, "source", session.Source.Profile)
	require.True(t, session.Target.LoggedIn)

	resp = doRequest(t, srv, cookie, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.NotContains(t, raw["source"], "secret")

	resp = doRequest(t, srv, cookie, http.MethodDelete, "/api/session", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestOrdersRoutes(t *testing.T) {
	fake := &fakeService{
		snapshot: board.Snapshot{
			Generation: 2,
			Orders:     []model.Order{{ID: 1, Number: "A-1", Status: model.OrderStatusCanBeExported}},
		},
	}
	srv := newTestServer(t, fake)
	cookie := login(t, srv)

	resp := doRequest(t, srv, cookie, http.MethodPost, "/api/orders/load", `{"since":"01/02/2024"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, srv, cookie, http.MethodPost, "/api/orders/load", `{"since":"2024-02-01"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), fake.lastSince)

	resp = doRequest(t, srv, cookie, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var response BoardJSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	require.Len(t, response.Orders, 1)
	require.Equal(t, model.OrderStatusCanBeExported, response.Orders[0].Status)

	resp = doRequest(t, srv, cookie, http.MethodPost, "/api/orders/validate", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = doRequest(t, srv, cookie, http.MethodPost, "/api/orders/export", `{"ids":[1,3]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []int64{1, 3}, fake.lastIDs)

	resp = doRequest(t, srv, cookie, http.MethodGet, "/api/exports", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no target account", err: service.ErrNoTargetAccount, want: http.StatusPreconditionFailed},
		{name: "busy", err: service.ErrBusy, want: http.StatusConflict},
		{name: "empty selection", err: service.ErrEmptySelection, want: http.StatusBadRequest},
		{name: "platform", err: service.ErrPlatform, want: http.StatusBadGateway},
		{name: "session gone", err: service.ErrNoSession, want: http.StatusUnauthorized},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeService{}
			srv := newTestServer(t, fake)
			cookie := login(t, srv)
			fake.err = test.err

			resp := doRequest(t, srv, cookie, http.MethodPost, "/api/orders/validate", "")
			require.Equal(t, test.want, resp.StatusCode)
		})
	}
}
