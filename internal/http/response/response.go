package response

import (
	"encoding/json"
	"errors"

	sentryfasthttp "github.com/getsentry/sentry-go/fasthttp"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	dbpkg "microticks/internal/db"
	httpctx "microticks/internal/http/ctx"
	"microticks/internal/metrics"
)

// KindUnauthorized is reported when the shared API key is missing or wrong.
const KindUnauthorized = "unauthorized"

// JSON writes data as the response body with the given status.
func JSON(ctx *fasthttp.RequestCtx, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString("failed to encode response")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// StatusFor maps a store error kind onto an HTTP status.
func StatusFor(kind dbpkg.Kind) int {
	switch kind {
	case dbpkg.KindNotFound:
		return fasthttp.StatusNotFound
	case dbpkg.KindInactive:
		return fasthttp.StatusForbidden
	case dbpkg.KindAlreadyStopped:
		return fasthttp.StatusConflict
	case dbpkg.KindValidation:
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}

// Error writes err as {"status","error","description"}. Failures that are
// not caused by the client are logged and reported to Sentry.
func Error(ctx *fasthttp.RequestCtx, err error) {
	kind := string(dbpkg.KindPersistence)
	description := "internal error"

	var e *dbpkg.Error
	if errors.As(err, &e) {
		kind = string(e.Kind)
		description = e.Message
	}
	status := StatusFor(dbpkg.Kind(kind))
	metrics.RequestErrors.WithLabelValues(kind).Inc()

	if status >= fasthttp.StatusInternalServerError {
		httpctx.LoggerFromCtx(ctx).Error("request failed",
			zap.ByteString("path", ctx.Path()), zap.Error(err))
		if hub := sentryfasthttp.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(err)
		}
	}

	write(ctx, status, kind, description)
}

// Unauthorized writes a 401 error body.
func Unauthorized(ctx *fasthttp.RequestCtx, description string) {
	metrics.RequestErrors.WithLabelValues(KindUnauthorized).Inc()
	write(ctx, fasthttp.StatusUnauthorized, KindUnauthorized, description)
}

func write(ctx *fasthttp.RequestCtx, status int, kind, description string) {
	JSON(ctx, status, map[string]any{
		"status":      status,
		"error":       kind,
		"description": description,
	})
}
