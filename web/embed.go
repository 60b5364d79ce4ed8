// Package web embeds the dashboard served at the root of the HTTP API.
package web

import "embed"

// Content holds the dashboard files (index.html, app.js, styles.css).
//
//go:embed index.html app.js styles.css
var Content embed.FS
