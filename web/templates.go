package web

import (
	"embed"
	"html/template"
	"io/fs"
	"sync"
)

//go:embed *.html
var pages embed.FS

//go:embed static
var assets embed.FS

var (
	tmpl *template.Template
	once sync.Once
)

// Templates returns the parsed HTML pages, embedded at build time.
func Templates() *template.Template {
	once.Do(func() {
		tmpl = template.Must(template.ParseFS(pages, "*.html"))
	})
	return tmpl
}

// StaticFS exposes the embedded static assets such as CSS. Page templates
// are not part of it.
func StaticFS() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
