package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Rewriter transforms outgoing HTML: qualifying anchor hrefs become click
// redirect URLs and an open pixel is injected before the closing body tag.
// The document goes through a full parse and render, so malformed markup is
// normalized along the way.
type Rewriter struct {
	logger *slog.Logger
	store  LinkStore
	cfg    Config
}

// RewriterOption configures a Rewriter.
type RewriterOption func(*Rewriter)

// WithLogger sets the logger for per-link warnings.
func WithLogger(l *slog.Logger) RewriterOption {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRewriter creates a Rewriter persisting links through store.
func NewRewriter(store LinkStore, cfg Config, opts ...RewriterOption) *Rewriter {
	r := &Rewriter{
		logger: slog.New(slog.DiscardHandler),
		store:  store,
		cfg:    cfg.normalized(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite applies click and open tracking to htmlBody for the send log entry
// identified by logUUID. It must be called exactly once per delivery; the
// output is not safe to feed back in. A failure to persist one link skips
// that link only.
func (r *Rewriter) Rewrite(ctx context.Context, htmlBody, logUUID string) (string, error) {
	if htmlBody == "" || (!r.cfg.TrackClicks && !r.cfg.TrackOpens) {
		return htmlBody, nil
	}

	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("tracking: parse html: %w", err)
	}

	if r.cfg.TrackClicks {
		r.rewriteAnchors(ctx, doc, logUUID)
	}
	if r.cfg.TrackOpens {
		injectPixel(doc, r.cfg.openURL(logUUID))
	}

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return "", fmt.Errorf("tracking: render html: %w", err)
	}
	return b.String(), nil
}

func (r *Rewriter) rewriteAnchors(ctx context.Context, doc *html.Node, logUUID string) {
	logID, err := r.store.ResolveLogID(ctx, logUUID)
	if err != nil {
		r.logger.Warn("click tracking skipped, log entry unresolvable",
			slog.String("log_uuid", logUUID),
			slog.Any("error", err),
		)
		return
	}

	for node := range doc.Descendants() {
		if node.Type != html.ElementNode || node.Data != "a" {
			continue
		}
		for i, attr := range node.Attr {
			if attr.Key != "href" {
				continue
			}
			rewritten, ok := r.rewriteHref(ctx, logID, logUUID, attr.Val)
			if ok {
				node.Attr[i].Val = rewritten
			}
			break
		}
	}
}

// rewriteHref persists a link for href and returns the redirect URL.
// Anchors, mailto:/tel: links, and non-http(s) schemes are left untouched and
// never persisted.
func (r *Rewriter) rewriteHref(ctx context.Context, logID int64, logUUID, href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return "", false
	}

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	token := uuid.NewString()
	if err := r.store.CreateLink(ctx, Link{LogID: logID, Token: token, OriginalURL: trimmed}); err != nil {
		r.logger.Warn("tracked link not persisted, href left as-is",
			slog.String("log_uuid", logUUID),
			slog.String("url", trimmed),
			slog.Any("error", err),
		)
		return "", false
	}
	return r.cfg.clickURL(logUUID, token), true
}

func injectPixel(doc *html.Node, src string) {
	body := findElement(doc, "body")
	if body == nil {
		body = doc
	}
	body.AppendChild(&html.Node{
		Type: html.ElementNode,
		Data: "img",
		Attr: []html.Attribute{
			{Key: "src", Val: src},
			{Key: "width", Val: "1"},
			{Key: "height", Val: "1"},
			{Key: "alt", Val: ""},
			{Key: "style", Val: "display:none;"},
		},
	})
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}
