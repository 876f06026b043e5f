package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/plat-shpview/internal/db"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

type fakeSessions map[string]quality.Counts

func (f fakeSessions) Snapshot(id string) (quality.Counts, string, bool) {
	c, ok := f[id]
	return c, quality.DefaultLabels.Good, ok
}

func newAPI(t *testing.T) humatest.TestAPI {
	t.Helper()
	cfg := huma.DefaultConfig("shpview test", Version)
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	_, api := humatest.New(t, cfg)
	return api
}

func TestHealthLinks(t *testing.T) {
	api := newAPI(t)
	NewAPIHandler(nil, quality.DefaultLabels).RegisterHealth(api)

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var body HealthBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("body = %+v", body)
	}
	got := strings.Join(resp.Result().Header.Values("Link"), ",")
	if !strings.Contains(got, `</api/v1/viewer/counts>; rel="counts"`) {
		t.Fatalf("links = %s", got)
	}
}

func TestCountsBySessionCookie(t *testing.T) {
	api := newAPI(t)
	sessions := fakeSessions{"abc": {Good: 2, Medium: 1, Unknown: 4}}
	NewAPIHandler(sessions, quality.DefaultLabels).RegisterCounts(api)

	resp := api.Get("/api/v1/viewer/counts", "Cookie: "+SessionCookie+"=abc")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Good, Medium, Unknown, Total int
		Category                     string
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Good != 2 || body.Medium != 1 || body.Unknown != 4 || body.Total != 7 {
		t.Fatalf("body = %+v", body)
	}

	links := strings.Join(resp.Result().Header.Values("Link"), "\n")
	if !strings.Contains(links, `title="Show all"`) || !strings.Contains(links, `title="Show Cemar Ringan"`) {
		t.Fatalf("action links = %s", links)
	}
	if strings.Contains(links, `title="Show Baik (Memenuhi)"`) {
		t.Fatal("the active filter should not be offered")
	}

	if resp := api.Get("/api/v1/viewer/counts", "Cookie: "+SessionCookie+"=nope"); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d", resp.Code)
	}
	if resp := api.Get("/api/v1/viewer/counts"); resp.Code != http.StatusNotFound {
		t.Fatalf("no cookie: status = %d", resp.Code)
	}
}

func TestInfoReportsDB(t *testing.T) {
	api := newAPI(t)
	NewInfoHandler("data/dataset", ".data", true).RegisterRoutes(api)

	resp := api.Get("/api/v1/info")
	var body InfoBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "shpview" || !body.DB || body.Features[len(body.Features)-1] != "duckdb" {
		t.Fatalf("body = %+v", body)
	}
}

func TestDBRoutesWithoutDatabase(t *testing.T) {
	api := newAPI(t)
	NewDBHandler(nil).RegisterRoutes(api)

	if resp := api.Get("/api/v1/tables"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("tables: status = %d", resp.Code)
	}
	if resp := api.Post("/api/v1/query", map[string]any{"query": "SELECT 1"}); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("query: status = %d", resp.Code)
	}
}

func TestDBQuery(t *testing.T) {
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Exec(`CREATE TABLE features AS SELECT range AS fid FROM range(3)`); err != nil {
		t.Fatal(err)
	}

	api := newAPI(t)
	NewDBHandler(conn).RegisterRoutes(api)

	resp := api.Get("/api/v1/tables")
	if !strings.Contains(resp.Body.String(), `"features"`) {
		t.Fatalf("tables = %s", resp.Body.String())
	}

	resp = api.Post("/api/v1/query", map[string]any{"query": "SELECT fid FROM features ORDER BY fid"})
	var body QueryBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 3 || body.Columns[0] != "fid" || body.Truncated {
		t.Fatalf("body = %+v", body)
	}

	if resp := api.Post("/api/v1/query", map[string]any{"query": "SELEC nonsense"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad query: status = %d", resp.Code)
	}
}
