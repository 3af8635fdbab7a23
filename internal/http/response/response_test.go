package response

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	dbpkg "microticks/internal/db"
)

func decode(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind dbpkg.Kind
		want int
	}{
		{dbpkg.KindNotFound, fasthttp.StatusNotFound},
		{dbpkg.KindInactive, fasthttp.StatusForbidden},
		{dbpkg.KindAlreadyStopped, fasthttp.StatusConflict},
		{dbpkg.KindValidation, fasthttp.StatusBadRequest},
		{dbpkg.KindPersistence, fasthttp.StatusInternalServerError},
		{"", fasthttp.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestError_StoreError(t *testing.T) {
	var ctx fasthttp.RequestCtx
	Error(&ctx, dbpkg.ErrAlreadyStopped)

	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	body := decode(t, &ctx)
	assert.Equal(t, "already_stopped", body["error"])
	assert.Equal(t, "already stopped", body["description"])
	assert.Equal(t, float64(409), body["status"])
}

func TestError_UnknownError(t *testing.T) {
	var ctx fasthttp.RequestCtx
	Error(&ctx, errors.New("boom"))

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	body := decode(t, &ctx)
	assert.Equal(t, "persistence", body["error"])
	assert.Equal(t, "internal error", body["description"])
}

func TestUnauthorized(t *testing.T) {
	var ctx fasthttp.RequestCtx
	Unauthorized(&ctx, "missing key")

	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "unauthorized", decode(t, &ctx)["error"])
}
