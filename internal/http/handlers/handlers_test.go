package handlers

import (
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"

	dbpkg "microticks/internal/db"
	httpctx "microticks/internal/http/ctx"
)

func setupTestGateway(t *testing.T) *dbpkg.Gateway {
	t.Helper()
	gw, err := dbpkg.Open(sqlite.Open(filepath.Join(t.TempDir(), "handlers.db")), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func post(uri, form string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Init(&fasthttp.Request{}, &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 5555}, nil)
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI(uri)
	ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
	ctx.Request.SetBodyString(form)
	return &ctx
}

func get(uri string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	ctx.Request.SetRequestURI(uri)
	return &ctx
}

func body(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out), string(ctx.Response.Body()))
	return out
}

func startSession(t *testing.T, gw *dbpkg.Gateway, consumerID uint) string {
	t.Helper()
	ctx := post("/sessions", "ts=2024-03-01T12:00:00.000Z")
	httpctx.SetConsumerID(ctx, consumerID)
	StartSession(gw)(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	return body(t, ctx)["token"].(string)
}

func newConsumer(t *testing.T, gw *dbpkg.Gateway) uint {
	t.Helper()
	key, err := gw.Consumers.Register("webapp", nil)
	require.NoError(t, err)
	id, err := gw.Consumers.Validate(key)
	require.NoError(t, err)
	return id
}

func TestStartSession(t *testing.T) {
	gw := setupTestGateway(t)
	token := startSession(t, gw, newConsumer(t, gw))

	session, err := gw.Sessions.Get(token)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", session.IP)
	assert.Equal(t, "2024-03-01 12:00:00", session.StartedAt)
}

func TestStartSession_Validation(t *testing.T) {
	gw := setupTestGateway(t)
	consumerID := newConsumer(t, gw)

	tests := []struct {
		name string
		form string
	}{
		{"missing ts", ""},
		{"bad ts", "ts=soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := post("/sessions", tt.form)
			httpctx.SetConsumerID(ctx, consumerID)
			StartSession(gw)(ctx)
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, "validation", body(t, ctx)["error"])
		})
	}

	ctx := post("/sessions", "ts=2024-03-01 12:00:00")
	StartSession(gw)(ctx)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestStopSession(t *testing.T) {
	gw := setupTestGateway(t)
	token := startSession(t, gw, newConsumer(t, gw))

	ctx := post("/sessions/stop", "token="+token+"&ts=2024-03-01 12:30:00")
	StopSession(gw)(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Empty(t, body(t, ctx))

	ctx = post("/sessions/stop", "token="+token+"&ts=2024-03-01 12:31:00")
	StopSession(gw)(ctx)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, "already_stopped", body(t, ctx)["error"])

	ctx = post("/sessions/stop", "token=unknown&ts=2024-03-01 12:31:00")
	StopSession(gw)(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = post("/sessions/stop", "ts=2024-03-01 12:31:00")
	StopSession(gw)(ctx)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, `No "token" parameter provided`, body(t, ctx)["description"])
}

func TestStoreAndListEvents(t *testing.T) {
	gw := setupTestGateway(t)
	token := startSession(t, gw, newConsumer(t, gw))

	ctx := post("/events", "token="+token+`&action=click&data={"x":1}&ts=2024-03-01T12:01:00Z`)
	StoreEvent(gw)(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	assert.Equal(t, float64(1), body(t, ctx)["event_id"])

	ctx = post("/events", "token="+token+"&action=note&data=not-json&ts=2024-03-01T12:02:00Z")
	StoreEvent(gw)(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = get("/events?sort=id")
	ListEvents(gw)(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	out := body(t, ctx)
	assert.Equal(t, float64(2), out["count"])
	events := out["events"].([]any)
	assert.Equal(t, map[string]any{"x": float64(1)}, events[0].(map[string]any)["data"])
	assert.Equal(t, "not-json", events[1].(map[string]any)["data"])

	ctx = get("/sessions")
	ListSessions(gw)(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	out = body(t, ctx)
	assert.Equal(t, float64(1), out["count"])
	session := out["sessions"].([]any)[0].(map[string]any)
	assert.Equal(t, token, session["token"])
	assert.Equal(t, float64(1), session["clicks"])
}

func TestStoreEvent_StoppedSession(t *testing.T) {
	gw := setupTestGateway(t)
	token := startSession(t, gw, newConsumer(t, gw))
	require.NoError(t, gw.Sessions.Stop(token, mustTime(t, "2024-03-01 13:00:00")))

	ctx := post("/events", "token="+token+"&action=click&data=&ts=2024-03-01 13:01:00")
	StoreEvent(gw)(ctx)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())

	var n int64
	require.NoError(t, gw.DB.Model(&dbpkg.Event{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestListSessions_BadSort(t *testing.T) {
	gw := setupTestGateway(t)
	ctx := get("/sessions?sort=password")
	ListSessions(gw)(ctx)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = get("/sessions")
	ListSessions(gw)(ctx)
	out := body(t, ctx)
	assert.Equal(t, []any{}, out["sessions"])
	assert.Equal(t, float64(0), out["count"])
}

func TestPage(t *testing.T) {
	ctx := get("/dash?key=abc")
	Page("dash.html")(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `const apiKey = "abc"`)

	ctx = get("/missing")
	Page("missing.html")(ctx)
	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
}

func TestMetrics(t *testing.T) {
	ctx := get("/metrics?prefix=microticks_")
	Metrics()(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "text/plain")
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := dbpkg.ParseTimestamp(s)
	require.NoError(t, err)
	return v
}
