package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// NoCache disables client and proxy caching of every response.
func NoCache(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)
		h := &ctx.Response.Header
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
	}
}

var corsOptions = cors.Options{
	AllowedOrigins: []string{"http://*", "https://*"},
	AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	AllowedHeaders: []string{"*"},
	MaxAge:         300,
}

// CORS allows browser clients on any origin to call the API. The headers are
// computed by go-chi/cors through the net/http adaptor; preflight requests
// are answered there and never reach next.
func CORS(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	c := cors.New(corsOptions)
	return func(ctx *fasthttp.RequestCtx) {
		passed := false
		fasthttpadaptor.NewFastHTTPHandler(c.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			passed = true
		})))(ctx)
		if passed {
			next(ctx)
		}
	}
}
