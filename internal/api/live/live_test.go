package live

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/geocode"
	"github.com/joeblew999/plat-shpview/internal/humastar"
	"github.com/joeblew999/plat-shpview/internal/present"
	"github.com/joeblew999/plat-shpview/internal/quality"
	"github.com/joeblew999/plat-shpview/internal/service"
	"github.com/joeblew999/plat-shpview/internal/templates"
	"github.com/joeblew999/plat-shpview/internal/ui"
	"github.com/joeblew999/plat-shpview/internal/viewer"
	"github.com/joeblew999/plat-shpview/web"
)

type staticLoader struct{}

func (staticLoader) Load(context.Context) (*dataset.Collection, error) {
	return dataset.Combine(
		[]orb.Geometry{
			orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
			orb.Polygon{{{2, 0}, {2, 1}, {3, 1}, {3, 0}, {2, 0}}},
		},
		[]string{"Status"},
		[]map[string]any{
			{"Status": quality.DefaultLabels.Good},
			{"Status": quality.DefaultLabels.Medium},
		},
	), nil
}

type noPlaces struct{}

func (noPlaces) Search(context.Context, string) ([]geocode.Place, error) { return nil, nil }

func newServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	r, err := templates.New(web.FS)
	if err != nil {
		t.Fatal(err)
	}
	log := zerolog.Nop()
	deps := viewer.Deps{Loader: staticLoader{}, Geocoder: noPlaces{}, Popups: present.NewPopupBuilder(r)}

	reg := NewRegistry(4, func(id string) *Session {
		bus := service.NewEventBus(256)
		script := ui.New(bus, r, log)
		return &Session{Bus: bus, Controller: viewer.New(id, deps, script, script, viewer.Config{Log: log})}
	}, log)
	t.Cleanup(reg.Close)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("shpview test", "0.1.0"))
	NewHandler(reg, log).RegisterRoutes(api)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func post(t *testing.T, srv *httptest.Server, path, session, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: "shpview_session", Value: session})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

// readUntil reads the event stream of session until every marker was seen.
func readUntil(t *testing.T, srv *httptest.Server, session string, markers ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/viewer/events", nil)
	req.AddCookie(&http.Cookie{Name: "shpview_session", Value: session})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	pending := map[string]bool{}
	for _, m := range markers {
		pending[m] = true
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() && len(pending) > 0 {
		for m := range pending {
			if strings.Contains(sc.Text(), m) {
				delete(pending, m)
			}
		}
	}
	if len(pending) > 0 {
		t.Fatalf("stream ended without %v", pending)
	}
}

func TestEventsStartLoadAndStream(t *testing.T) {
	srv, reg := newServer(t)

	readUntil(t, srv, "s1", "viewer.addLayers(", "viewer.fitBounds(", `"countGood":1`, `"overlay":"hidden"`)

	counts, category, ok := reg.Snapshot("s1")
	if !ok || counts != (quality.Counts{Good: 1, Medium: 1}) || category != viewer.AllCategories {
		t.Fatalf("snapshot = %+v %q %v", counts, category, ok)
	}

	// a second stream replays the state
	readUntil(t, srv, "s1", "viewer.reset()", "viewer.addLayers(")
}

func TestFilterAction(t *testing.T) {
	srv, reg := newServer(t)
	readUntil(t, srv, "s2", "viewer.addLayers(")

	code, body := post(t, srv, "/api/v1/viewer/filter", "s2", `{"category":"Cemar Ringan"}`)
	if code != http.StatusOK || !strings.Contains(body, `"error":""`) {
		t.Fatalf("filter: %d %s", code, body)
	}
	counts, category, _ := reg.Snapshot("s2")
	if counts != (quality.Counts{Medium: 1}) || category != "Cemar Ringan" {
		t.Fatalf("after filter: %+v %q", counts, category)
	}
}

func TestFilterBeforeLoadReportsError(t *testing.T) {
	srv, _ := newServer(t)
	code, body := post(t, srv, "/api/v1/viewer/filter", "s3", `{"category":"all"}`)
	if code != http.StatusOK || !strings.Contains(body, "dataset not loaded yet") {
		t.Fatalf("filter: %d %s", code, body)
	}
}

func TestActionsRequireSession(t *testing.T) {
	srv, _ := newServer(t)
	if code, _ := post(t, srv, "/api/v1/viewer/search", "", `{"query":"x"}`); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if code, _ := post(t, srv, "/api/v1/viewer/search", "s4", `not json`); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestThemeAndSelectActions(t *testing.T) {
	srv, reg := newServer(t)
	readUntil(t, srv, "s5", "viewer.addLayers(")

	if code, _ := post(t, srv, "/api/v1/viewer/theme", "s5", `{"dark":true}`); code != http.StatusOK {
		t.Fatalf("theme: %d", code)
	}
	if dark, label := reg.Session("s5").Controller.Theme(); !dark || label != "Light mode" {
		t.Fatalf("theme = %v %q", dark, label)
	}

	_, body := post(t, srv, "/api/v1/viewer/select", "s5", `{"selected":0,"clickLat":0.5,"clickLng":0.5}`)
	if !strings.Contains(body, `"error":""`) {
		t.Fatalf("select: %s", body)
	}
	_, body = post(t, srv, "/api/v1/viewer/select", "s5", `{"selected":42,"clickLat":0,"clickLng":0}`)
	if !strings.Contains(body, "feature not found") {
		t.Fatalf("select unknown: %s", body)
	}
}

func TestRegistryEvictsAndCloses(t *testing.T) {
	_, reg := newServer(t)
	first := reg.Session("a")
	ch := first.Bus.Subscribe()
	for _, id := range []string{"b", "c", "d", "e"} {
		reg.Session(id)
	}
	if reg.Len() != 4 {
		t.Fatalf("len = %d", reg.Len())
	}
	if _, ok := <-ch; ok {
		t.Fatal("evicted session bus still open")
	}
	if _, _, ok := reg.Snapshot("a"); ok {
		t.Fatal("evicted session still listed")
	}
}

func TestSendPatchModes(t *testing.T) {
	events := []service.Event{
		{Kind: service.EventPatch, HTML: `<div id="n1">hi</div>`, Selector: ui.NoticeContainer, Mode: service.PatchAppend},
		{Kind: service.EventPatch, HTML: `<div id="n1" class="fading">hi</div>`, Selector: "#n1", Mode: service.PatchOuter},
		{Kind: service.EventRemove, ID: "n1"},
	}

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("shpview test", "0.1.0"))
	var h Handler
	huma.Get(api, "/send", func(ctx context.Context, _ *struct{}) (*huma.StreamResponse, error) {
		return h.Stream(func(sse humastar.SSE) {
			for _, ev := range events {
				if err := Send(sse, ev); err != nil {
					t.Errorf("Send(%v): %v", ev.Kind, err)
				}
			}
		}), nil
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/send")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	body := string(b)

	for _, want := range []string{
		"data: selector #notifications\ndata: mode append\n",
		"data: selector #n1\ndata: elements <div id=\"n1\" class=\"fading\">",
		"data: selector #n1\ndata: mode remove\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q in:\n%s", want, body)
		}
	}
}
