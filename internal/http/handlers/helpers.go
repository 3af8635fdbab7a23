package handlers

import (
	"strconv"

	"github.com/valyala/fasthttp"

	dbpkg "microticks/internal/db"
)

// requireFields returns the named form fields, failing on the first one
// that is absent. Present but empty fields are accepted.
func requireFields(ctx *fasthttp.RequestCtx, names ...string) (map[string]string, error) {
	args := ctx.PostArgs()
	values := make(map[string]string, len(names))
	for _, name := range names {
		if !args.Has(name) {
			return nil, dbpkg.Validation("No " + strconv.Quote(name) + " parameter provided")
		}
		values[name] = string(args.Peek(name))
	}
	return values, nil
}

// queryParams flattens the query string; the last value wins for repeated keys.
func queryParams(ctx *fasthttp.RequestCtx) map[string]string {
	params := make(map[string]string)
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})
	return params
}

// actionLabel bounds the cardinality of the events_stored_total metric.
func actionLabel(action string) string {
	if action == dbpkg.ClickAction {
		return action
	}
	return "other"
}
