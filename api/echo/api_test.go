package echo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/helpline/api"
	helplineecho "github.com/pilab-dev/helpline/api/echo"
	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/dedup"
	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/errors"
	"github.com/pilab-dev/helpline/gateway/gatewaytest"
	"github.com/pilab-dev/helpline/router"
	"github.com/pilab-dev/helpline/routing"
	"github.com/pilab-dev/helpline/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken = "s3cret"
	voter      = "+19195550100"
	pullNumber = "+15550001"
)

type apiFixture struct {
	e    *echo.Echo
	chat *gatewaytest.Chat
	sms  *gatewaytest.Messaging
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	kv := cache.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })

	chat := gatewaytest.NewChat(map[string]string{
		"lobby":      "C-LOBBY",
		"nc-0":       "C-NC0",
		"oh-0":       "C-OH0",
		"national-0": "C-NAT0",
	})
	regions := routing.NewRegions(nil)
	registry := routing.NewRegistry(kv, regions)
	require.NoError(t, registry.SetPodState(ctx, "NC", "nc-0", []domain.EntryPoint{domain.EntryPointPull}))
	require.NoError(t, registry.SetPodState(ctx, "OH", "oh-0", []domain.EntryPoint{domain.EntryPointPull}))

	sms := &gatewaytest.Messaging{}
	r := router.New(router.Deps{
		Sessions:  sessions.NewStore(kv),
		Balancer:  routing.NewBalancer(registry),
		Regions:   regions,
		Handles:   routing.NewHandleCache(chat, time.Minute),
		Dedup:     dedup.New(kv, time.Hour),
		Messaging: sms,
		Chat:      chat,
	}, router.Options{UserIDSecret: []byte("test-secret")})

	e := echo.New()
	helplineecho.NewHelplineAPI(r, registry, adminToken,
		helplineecho.WithGatherer(prometheus.NewRegistry()),
		helplineecho.WithHealthCheck(func(context.Context) error { return nil }),
	).RegisterRoutes(e)

	return &apiFixture{e: e, chat: chat, sms: sms}
}

func (f *apiFixture) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhooks(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/sms", api.InboundSMSRequest{From: voter, To: pullNumber, Body: "hi"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.sms.Sent(), 1)

	threads := f.chat.Threads()
	require.Len(t, threads, 1)
	lobby := threads[0]
	assert.Equal(t, "C-LOBBY", lobby.PodHandle)

	event := api.ChatEventRequest{
		EventID:    "evt-1",
		PodHandle:  lobby.PodHandle,
		ThreadID:   lobby.ID,
		OperatorID: "op-1",
		Body:       "Hello, how can we help?",
	}
	rec = f.do(t, http.MethodPost, "/webhooks/chat", event, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hello, how can we help?", f.sms.Bodies()[1])

	// Redelivery of the same event is acknowledged without a second send.
	rec = f.do(t, http.MethodPost, "/webhooks/chat", event, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.sms.Sent(), 2)
}

func TestWebhooks_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/sms", api.InboundSMSRequest{Body: "hi"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.InvalidRequest, decode[errors.APIError](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/webhooks/chat", api.ChatEventRequest{
		EventID: "evt-9", PodHandle: "C-NC0", ThreadID: "T404", Body: "hello",
	}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.NotFound, decode[errors.APIError](t, rec).Code)
}

func TestAdmin_RequiresToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/pods?region=NC", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/pods?region=NC", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.Unauthorized, decode[errors.APIError](t, rec).Code)
}

func TestAdmin_Pods(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/pods", api.PodStateRequest{
		Region: "NC", Pod: "nc-1", EntryPoints: []string{"pull", "push"},
	}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/admin/pods?region=NC", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.PodsResponse](t, rec)
	assert.Equal(t, "North Carolina", resp.Region)

	names := make([]string, 0, len(resp.Pods))
	for _, p := range resp.Pods {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"nc-0", "nc-1"}, names)

	rec = f.do(t, http.MethodPost, "/admin/pods", api.PodStateRequest{
		Region: "NC", Pod: "nc-1", EntryPoints: []string{"sideways"},
	}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_SessionCommands(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/sms", api.InboundSMSRequest{From: voter, To: pullNumber, Body: "hi"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	selector := api.SessionSelector{ContactAddress: voter, OriginNumber: pullNumber}

	rec = f.do(t, http.MethodPost, "/admin/sessions/command", api.SessionCommandRequest{
		SessionSelector: selector, Command: "force-region", Arg: "Ohio",
	}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	key := decode[api.StatusResponse](t, rec).SessionKey
	assert.NotEmpty(t, key)

	threads := f.chat.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "C-OH0", threads[1].PodHandle)

	rec = f.do(t, http.MethodPost, "/admin/sessions/command", api.SessionCommandRequest{
		SessionSelector: api.SessionSelector{SessionKey: key}, Command: "teleport",
	}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.UnknownCommand, decode[errors.APIError](t, rec).Code)

	q := url.Values{"contact_address": {voter}, "origin_number": {pullNumber}}
	rec = f.do(t, http.MethodDelete, "/admin/sessions?"+q.Encode(), nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, key, decode[api.StatusResponse](t, rec).SessionKey)

	rec = f.do(t, http.MethodPost, "/admin/sessions/command", api.SessionCommandRequest{
		SessionSelector: selector, Command: "resume",
	}, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Ending a missing session is not an error.
	rec = f.do(t, http.MethodDelete, "/admin/sessions?session_key="+url.QueryEscape(key), nil, adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
