// Package web embeds the viewer page, its HTML fragments and static assets.
package web

import "embed"

// FS holds templates/ and static/. A --web-dir override replaces it on disk.
//
//go:embed templates static
var FS embed.FS
