package present

import (
	"fmt"
	"sort"
	"strconv"
)

// ExcludedKeys are technical shapefile fields that never appear in a popup.
var ExcludedKeys = map[string]bool{
	"Shape_Leng": true,
	"Shape_Area": true,
}

// Renderer renders a named HTML template.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// PopupRow is one attribute line of a feature popup.
type PopupRow struct {
	Label string
	Value string
}

// PopupData is the template data of the "popup" fragment.
type PopupData struct {
	Title string
	Rows  []PopupRow
}

// MarkerPopupData is the template data of the "marker-popup" fragment.
type MarkerPopupData struct {
	Title string
	Name  string
}

// PopupBuilder renders info panels for features and search results.
type PopupBuilder struct {
	renderer    Renderer
	Title       string
	MarkerTitle string
}

// NewPopupBuilder creates a popup builder rendering through r.
func NewPopupBuilder(r Renderer) *PopupBuilder {
	return &PopupBuilder{
		renderer:    r,
		Title:       "Feature Information",
		MarkerTitle: "Search Location",
	}
}

// Build renders the info panel for a feature's attributes. Rows follow order
// (the dataset field order); keys not listed there come after, sorted.
func (b *PopupBuilder) Build(props map[string]any, order []string) (string, error) {
	return b.renderer.Render("popup", PopupData{
		Title: b.Title,
		Rows:  Rows(props, order),
	})
}

// BuildMarker renders the popup of a search marker.
func (b *PopupBuilder) BuildMarker(displayName string) (string, error) {
	return b.renderer.Render("marker-popup", MarkerPopupData{
		Title: b.MarkerTitle,
		Name:  displayName,
	})
}

// Rows returns the popup rows for props, skipping ExcludedKeys.
func Rows(props map[string]any, order []string) []PopupRow {
	seen := make(map[string]bool, len(props))
	rows := make([]PopupRow, 0, len(props))
	add := func(k string) {
		if seen[k] || ExcludedKeys[k] {
			return
		}
		v, ok := props[k]
		if !ok {
			return
		}
		seen[k] = true
		rows = append(rows, PopupRow{Label: FormatAttributeName(k), Value: FormatValue(v)})
	}
	for _, k := range order {
		add(k)
	}

	rest := make([]string, 0, len(props))
	for k := range props {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		add(k)
	}
	return rows
}

// FormatValue renders an attribute value the way it is shown in a popup.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
