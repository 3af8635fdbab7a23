package middleware

import (
	"crypto/subtle"

	"github.com/valyala/fasthttp"

	"microticks/internal/config"
	dbpkg "microticks/internal/db"
	httpctx "microticks/internal/http/ctx"
	"microticks/internal/http/response"
)

// APIKey rejects requests whose "key" parameter (query string or form body)
// does not match the configured shared key. It is a no-op when no key is set.
func APIKey(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if cfg.APIKey == "" {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	want := []byte(cfg.APIKey)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			key := ctx.FormValue("key")
			if len(key) == 0 {
				response.Unauthorized(ctx, `Please specify an API key using the "key" query string parameter.`)
				return
			}
			if subtle.ConstantTimeCompare(key, want) != 1 {
				response.Unauthorized(ctx, "The key is not valid.")
				return
			}
			next(ctx)
		}
	}
}

// ConsumerAuth validates the "consumer_key" form field and stores the
// consumer id on the request context.
func ConsumerAuth(consumers *dbpkg.Consumers) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			id, err := consumers.Validate(string(ctx.FormValue("consumer_key")))
			if err != nil {
				response.Error(ctx, err)
				return
			}

			httpctx.SetConsumerID(ctx, id)
			next(ctx)
		}
	}
}
