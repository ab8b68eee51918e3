// Package web holds the browser assets served by the application.
package web

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed static/index.html static/layout.html
var assets embed.FS

var (
	index  = mustRead("static/index.html")
	layout = template.Must(template.ParseFS(assets, "static/layout.html"))
)

func mustRead(name string) []byte {
	b, err := assets.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

// Index is the map page.
func Index() []byte {
	return index
}

// Page wraps an already rendered HTML fragment in the site layout.
func Page(title string, fragment []byte) []byte {
	var buf bytes.Buffer
	err := layout.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(fragment)})
	if err != nil {
		// The layout has no failing actions; only a writer error could get here.
		return fragment
	}
	return buf.Bytes()
}
