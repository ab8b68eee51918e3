package card

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// WriteHTML renders the card as an HTML fragment.
func WriteHTML(w io.Writer, c Card) error {
	return tmpl.ExecuteTemplate(w, "card", c)
}
