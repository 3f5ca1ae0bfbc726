package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// renderer clones the base layout and parses one page template into it
// per request, so every page can define its own "content" block.
type renderer struct {
	base        *template.Template
	templatesFS fs.FS
}

// PageData is the envelope every page template receives.
type PageData struct {
	Title       string
	CurrentPath string
	Flash       *FlashMessage
	Data        any
}

// FlashMessage is an inline notice. The legacy pages use it where a
// browser alert would otherwise appear.
type FlashMessage struct {
	Type    string // "success", "error", "info"
	Message string
}

func newRenderer() *renderer {
	base := template.Must(template.New("").
		Funcs(templateFuncs()).
		ParseFS(templatesFS, "templates/base.html"))
	return &renderer{base: base, templatesFS: templatesFS}
}

// render executes the page template name inside the base layout.
func (r *renderer) render(w http.ResponseWriter, req *http.Request, status int, name, title string, flash *FlashMessage, data any) error {
	tmpl, err := r.base.Clone()
	if err != nil {
		return fmt.Errorf("clone template: %w", err)
	}
	path := "templates/" + name
	if _, err := tmpl.ParseFS(r.templatesFS, path); err != nil {
		return fmt.Errorf("parse page template %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", PageData{
		Title:       title,
		CurrentPath: req.URL.Path,
		Flash:       flash,
		Data:        data,
	}); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

var (
	md     = goldmark.New()
	policy = bluemonday.UGCPolicy()
)

// markdown renders exercise copy to sanitized HTML.
func markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown": markdown,
	}
}
