// Package ui renders viewer updates as browser events: map calls become
// scripts against the page's window.viewer object and display state becomes
// Datastar signals and element patches.
package ui

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/quality"
	"github.com/joeblew999/plat-shpview/internal/service"
	"github.com/joeblew999/plat-shpview/internal/templates"
	"github.com/joeblew999/plat-shpview/internal/viewer"
)

// NoticeContainer is the element notices are appended to.
const NoticeContainer = "#notifications"

var (
	_ viewer.Map     = (*Script)(nil)
	_ viewer.Display = (*Script)(nil)
)

// Script publishes viewer updates onto a session's event bus.
type Script struct {
	bus      *service.EventBus
	renderer *templates.Renderer
	log      zerolog.Logger
}

// New creates a Script publishing to bus. The renderer provides the
// "notice" fragment.
func New(bus *service.EventBus, renderer *templates.Renderer, log zerolog.Logger) *Script {
	return &Script{bus: bus, renderer: renderer, log: log}
}

// call publishes window.viewer.fn(args...). json.Marshal escapes < > and &,
// so popup markup cannot close the script element.
func (s *Script) call(fn string, args ...any) {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			s.log.Error().Err(err).Str("fn", fn).Msg("encoding script argument")
			return
		}
		parts[i] = string(b)
	}
	s.bus.Publish(service.Event{
		Kind:   service.EventScript,
		Script: "viewer." + fn + "(" + strings.Join(parts, ",") + ")",
	})
}

func (s *Script) signals(sig map[string]any) {
	s.bus.Publish(service.Event{Kind: service.EventSignals, Signals: sig})
}

func ms(d time.Duration) int64 {
	return d.Milliseconds()
}

func (s *Script) AddLayers(specs []viewer.LayerSpec) { s.call("addLayers", specs) }
func (s *Script) RemoveLayers(ids []int)             { s.call("remove", ids) }
func (s *Script) RestoreLayers(ids []int)            { s.call("restore", ids) }

func (s *Script) FadeIn(ids []int, d time.Duration) {
	s.call("fadeIn", ids, ms(d))
}

func (s *Script) FadeOut(ids []int, d time.Duration) {
	s.call("fadeOut", ids, ms(d))
}

// FitBounds fits the map to b, passed south, west, north, east.
func (s *Script) FitBounds(b orb.Bound) {
	s.call("fitBounds", b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon())
}

func (s *Script) PanTo(p orb.Point, d time.Duration) {
	s.call("panTo", p.Lat(), p.Lon(), ms(d))
}

func (s *Script) FlyTo(p orb.Point, zoom float64, d time.Duration) {
	s.call("flyTo", p.Lat(), p.Lon(), zoom, ms(d))
}

func (s *Script) OpenPopup(id int, at orb.Point) {
	s.call("openPopup", id, at.Lat(), at.Lon())
}

func (s *Script) Highlight(id int, on bool) { s.call("highlight", id, on) }

func (s *Script) PlaceMarker(at orb.Point, popup string) {
	s.call("placeMarker", at.Lat(), at.Lon(), popup)
}

func (s *Script) RemoveMarker() { s.call("removeMarker") }
func (s *Script) Reset()        { s.call("reset") }

// SetCounts patches the three counter signals.
func (s *Script) SetCounts(c quality.Counts) {
	s.signals(map[string]any{
		"countGood":    c.Good,
		"countMedium":  c.Medium,
		"countUnknown": c.Unknown,
	})
}

func (s *Script) SetOverlay(o viewer.Overlay) {
	s.signals(map[string]any{"overlay": string(o)})
}

func (s *Script) SetTheme(dark bool, label string) {
	s.signals(map[string]any{"dark": dark, "themeLabel": label})
}

func (s *Script) SetCategory(category string) {
	s.signals(map[string]any{"category": category})
}

// ShowNotice appends a notice to the notification area.
func (s *Script) ShowNotice(n viewer.Notice) {
	html, ok := s.notice(n, false)
	if !ok {
		return
	}
	s.bus.Publish(service.Event{
		Kind:     service.EventPatch,
		HTML:     html,
		Selector: NoticeContainer,
		Mode:     service.PatchAppend,
	})
}

// FadeNotice swaps the notice for its fading variant.
func (s *Script) FadeNotice(n viewer.Notice) {
	html, ok := s.notice(n, true)
	if !ok {
		return
	}
	s.bus.Publish(service.Event{
		Kind:     service.EventPatch,
		HTML:     html,
		Selector: "#" + n.ID,
		Mode:     service.PatchOuter,
	})
}

func (s *Script) RemoveNotice(id string) {
	s.bus.Publish(service.Event{Kind: service.EventRemove, ID: id})
}

// Alert shows a blocking browser alert.
func (s *Script) Alert(msg string) {
	b, _ := json.Marshal(msg)
	s.bus.Publish(service.Event{
		Kind:   service.EventScript,
		Script: "window.alert(" + string(b) + ")",
	})
}

func (s *Script) notice(n viewer.Notice, fading bool) (string, bool) {
	html, err := s.renderer.Render("notice", map[string]any{
		"ID":     n.ID,
		"Text":   n.Text,
		"Fading": fading,
	})
	if err != nil {
		s.log.Error().Err(err).Str("notice", n.ID).Msg("rendering notice")
		return "", false
	}
	return html, true
}
