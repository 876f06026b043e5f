package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/api"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{
		Host:    "127.0.0.1",
		Port:    "0",
		Dataset: t.TempDir() + "/ponds",
		Log:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(s *Server, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestViewerPageSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`id="statusFilter"`, "Baik (Memenuhi)", "/api/v1/viewer/events", "/static/viewer.js"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %s", want)
		}
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != api.SessionCookie || cookies[0].Value == "" {
		t.Fatalf("cookies = %v", cookies)
	}

	// an existing session keeps its cookie
	rec = get(s, "/", "Cookie", api.SessionCookie+"=abc")
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("session cookie replaced")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	s := newTestServer(t)
	if rec := get(s, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStaticAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := get(s, "/static/viewer.js")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "window.viewer") {
		t.Fatalf("static: %d", rec.Code)
	}
	rec = get(s, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestResponsesAreCompressed(t *testing.T) {
	s := newTestServer(t)
	rec := get(s, "/static/viewer.js", "Accept-Encoding", "gzip")
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("content encoding = %q", rec.Header().Get("Content-Encoding"))
	}
}

func TestAPIRoutesRegistered(t *testing.T) {
	s := newTestServer(t)
	if rec := get(s, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := get(s, "/api/v1/tables"); rec.Code != http.StatusOK {
		t.Fatalf("tables: %d %s", rec.Code, rec.Body.String())
	}

	paths := s.OpenAPI().Paths
	for _, p := range []string{"/api/v1/viewer/events", "/api/v1/viewer/filter", "/api/v1/viewer/counts", "/api/v1/query"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("openapi missing %s", p)
		}
	}
}
