// Package templates handles HTML template rendering for the viewer page and
// the fragments streamed over Datastar SSE.
package templates

import (
	"bytes"
	"html/template"
	"io/fs"
	"sync"
)

// Patterns are the glob patterns parsed from the web filesystem.
var Patterns = []string{"templates/*.html", "templates/fragments/*.html"}

// Renderer manages HTML page and fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the templates matching patterns from fsys.
// With no patterns, Patterns is used.
func New(fsys fs.FS, patterns ...string) (*Renderer, error) {
	tmpl, err := parse(fsys, patterns)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(fsys fs.FS, patterns []string) (*template.Template, error) {
	if len(patterns) == 0 {
		patterns = Patterns
	}
	return template.New("").ParseFS(fsys, patterns...)
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload reparses templates (useful for dev hot-reload with --web-dir).
func (r *Renderer) Reload(fsys fs.FS, patterns ...string) error {
	tmpl, err := parse(fsys, patterns)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
