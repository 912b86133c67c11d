package handlers

import (
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-call-agent/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates with the view helpers. The
// router installs the result with gin's SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.New("pages").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html"))
}

// FuncMap returns the helpers available to the page templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"link":        link,
		"statusLabel": statusLabel,
		"displayDate": displayDate,
	}
}

// statusLabel renders a status for display, e.g. "completed" -> "Completed".
// Casers carry state, so each call builds its own.
func statusLabel(s domain.CallStatus) string {
	return cases.Title(language.English).String(string(s))
}

// displayDate shows a stored date as month/day/year. Text that does not parse
// as a date is shown unchanged.
func displayDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return raw
	}
	return t.Format("1/2/2006")
}

// link joins a mount point and a route path.
func link(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return strings.TrimRight(base, "/") + p
}
