// Package urls provides hub address normalization and documentation links.
//
// User-supplied hub addresses come in many shapes (bare hostnames, http(s)
// URLs, full WebSocket URLs). NormalizeHubAddress canonicalizes all of them
// into the ws(s) URL the WebSocket client dials.
package urls
