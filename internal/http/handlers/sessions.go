package handlers

import (
	"github.com/valyala/fasthttp"

	dbpkg "microticks/internal/db"
	httpctx "microticks/internal/http/ctx"
	"microticks/internal/http/response"
	"microticks/internal/metrics"
)

// StartSession opens a session for the consumer resolved by ConsumerAuth.
func StartSession(gw *dbpkg.Gateway) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		consumerID, ok := httpctx.ConsumerIDFromCtx(ctx)
		if !ok {
			response.Error(ctx, dbpkg.Validation(`No "consumer_key" parameter provided`))
			return
		}

		fields, err := requireFields(ctx, "ts")
		if err != nil {
			response.Error(ctx, err)
			return
		}
		startedAt, err := dbpkg.ParseTimestamp(fields["ts"])
		if err != nil {
			response.Error(ctx, err)
			return
		}

		token, err := gw.Sessions.Start(ctx.RemoteIP().String(), startedAt, consumerID)
		if err != nil {
			response.Error(ctx, err)
			return
		}

		metrics.SessionsStarted.Inc()
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{"token": token})
	}
}

func StopSession(gw *dbpkg.Gateway) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		fields, err := requireFields(ctx, "ts", "token")
		if err != nil {
			response.Error(ctx, err)
			return
		}
		stoppedAt, err := dbpkg.ParseTimestamp(fields["ts"])
		if err != nil {
			response.Error(ctx, err)
			return
		}

		if err := gw.Sessions.Stop(fields["token"], stoppedAt); err != nil {
			response.Error(ctx, err)
			return
		}

		metrics.SessionsStopped.Inc()
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{})
	}
}

func ListSessions(gw *dbpkg.Gateway) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		sessions, err := gw.Sessions.Find(queryParams(ctx))
		if err != nil {
			response.Error(ctx, err)
			return
		}
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{
			"sessions": sessions,
			"count":    len(sessions),
		})
	}
}
