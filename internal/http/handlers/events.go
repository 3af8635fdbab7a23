package handlers

import (
	"github.com/valyala/fasthttp"

	dbpkg "microticks/internal/db"
	"microticks/internal/http/response"
	"microticks/internal/metrics"
)

// StoreEvent records an event against an open session. Stopped or unknown
// tokens are rejected before anything is written.
func StoreEvent(gw *dbpkg.Gateway) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		fields, err := requireFields(ctx, "token", "action", "data", "ts")
		if err != nil {
			response.Error(ctx, err)
			return
		}
		at, err := dbpkg.ParseTimestamp(fields["ts"])
		if err != nil {
			response.Error(ctx, err)
			return
		}

		session, err := gw.Sessions.Get(fields["token"])
		if err != nil {
			response.Error(ctx, err)
			return
		}

		eventID, err := gw.Events.Store(session, fields["action"], fields["data"], at)
		if err != nil {
			response.Error(ctx, err)
			return
		}

		metrics.EventsStored.WithLabelValues(actionLabel(fields["action"])).Inc()
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{"event_id": eventID})
	}
}

func ListEvents(gw *dbpkg.Gateway) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		events, err := gw.Events.Find(queryParams(ctx))
		if err != nil {
			response.Error(ctx, err)
			return
		}
		response.JSON(ctx, fasthttp.StatusOK, map[string]any{
			"events": events,
			"count":  len(events),
		})
	}
}
