package server

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/index.html
var templateFS embed.FS

// textPolicy strips any markup a model put into a summary.
var textPolicy = bluemonday.StrictPolicy()

type pageData struct {
	controller.View
	FieldName        string
	HistoryFieldName string
}

func parsePage() (*template.Template, error) {
	return template.New("index.html").Funcs(template.FuncMap{
		"ago":        relativeTime,
		"paragraphs": paragraphs,
		"isError":    func(variant string) bool { return variant == controller.VariantDestructive },
	}).ParseFS(templateFS, "templates/index.html")
}

// relativeTime renders a millisecond timestamp like "3 minutes ago".
func relativeTime(ms int64) string {
	return humanize.Time(time.UnixMilli(ms))
}

// plainText removes markup and decodes entities; the template escapes the result.
func plainText(s string) string {
	return html.UnescapeString(textPolicy.Sanitize(s))
}

// paragraphs splits text on blank lines.
func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(plainText(s), "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// render writes the page with the given status.
func (s *Server) render(w http.ResponseWriter, status int, view controller.View) {
	var buf bytes.Buffer
	data := pageData{View: view, FieldName: FieldVideoURL, HistoryFieldName: FieldHistoryURL}
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.Error("failed to render page", logging.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
