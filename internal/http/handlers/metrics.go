package handlers

import (
	"github.com/valyala/fasthttp"

	"microticks/internal/metrics"
)

// Metrics serves the Prometheus registry in text format. The optional
// "prefix" query parameter restricts output to matching metric families.
func Metrics() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		families, err := metrics.Families(string(ctx.QueryArgs().Peek("prefix")))
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to gather metrics")
			return
		}

		body, err := metrics.Encode(families)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to encode metrics")
			return
		}

		ctx.SetContentType(metrics.ContentType())
		ctx.SetBody(body)
	}
}
