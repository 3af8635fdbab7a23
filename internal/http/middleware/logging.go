package middleware

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	httpctx "microticks/internal/http/ctx"
	"microticks/internal/metrics"
)

// RequestLogger attaches a logger carrying the request method and path to
// the request context, then logs status and duration once the request
// completes.
func RequestLogger(log *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			reqLog := log.With(
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
			)
			httpctx.SetLogger(ctx, reqLog)
			next(ctx)
			elapsed := time.Since(start)

			route, _ := ctx.UserValue(router.MatchedRoutePathParam).(string)
			if route == "" {
				route = "unmatched"
			}
			metrics.RequestDuration.WithLabelValues(string(ctx.Method()), route).Observe(elapsed.Seconds())

			reqLog.Info("request",
				zap.Int("status", ctx.Response.StatusCode()),
				zap.Duration("duration", elapsed),
				zap.String("ip", ctx.RemoteIP().String()),
			)
		}
	}
}
