package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-shpview/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/viewer/counts>; rel="counts"`,
		`</api/v1/tables>; rel="tables"`,
		`</openapi.json>; rel="service-desc"`,
		`</docs>; rel="service-doc"`,
	},
	"/api/v1/info": {
		`</health>; rel="up"`,
		`</api/v1/tables>; rel="tables"`,
	},
	"/api/v1/viewer/counts": {
		`</health>; rel="up"`,
		`</api/v1/viewer/events>; rel="events"`,
	},
	"/api/v1/tables": {
		`</health>; rel="up"`,
		`</api/v1/query>; rel="search"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects the API's Link
// headers.
func LinkTransformer() huma.Transformer {
	return humastar.LinkTransformer(links)
}
