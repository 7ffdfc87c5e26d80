// Package tracking rewrites outgoing HTML email for open and click tracking
// and serves the HTTP endpoints the rewritten links point at.
//
// Rewriting happens exactly once, immediately before transport: anchor hrefs
// are swapped for redirect URLs tied to a send log entry, and a transparent
// pixel is injected for open detection. The HTTP side resolves those URLs
// back, records the event, and redirects or serves the pixel.
package tracking
