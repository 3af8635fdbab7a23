package handlers

import (
	"bytes"
	"time"

	"github.com/valyala/fasthttp"

	ui "microticks/web"
)

type pageData struct {
	Today string
	Key   string
}

// Page renders one of the embedded HTML pages with today's date.
func Page(name string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		t := ui.Templates().Lookup(name)
		if t == nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString(name + " template not found")
			return
		}

		data := pageData{
			Today: time.Now().Format("2006-01-02"),
			Key:   string(ctx.QueryArgs().Peek("key")),
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("render error")
			return
		}
		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetBody(buf.Bytes())
	}
}
