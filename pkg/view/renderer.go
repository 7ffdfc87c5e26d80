package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"sync"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown views with YAML frontmatter to layout-wrapped
// HTML. Parsed views and layouts are cached by name.
type Renderer struct {
	fs fs.FS
	md goldmark.Markdown

	viewCache   map[string]*cachedView
	layoutCache map[string]*template.Template
	viewDir     string
	layoutDir   string
	layout      string

	mu sync.RWMutex
}

type cachedView struct {
	metadata map[string]any
	tmpl     *texttemplate.Template
}

// Config configures the renderer.
type Config struct {
	ViewDir       string `env:"VIEW_DIR" envDefault:"." yaml:"dir"`
	LayoutDir     string `env:"VIEW_LAYOUT_DIR" envDefault:"layouts" yaml:"layout_dir"`
	DefaultLayout string `env:"VIEW_DEFAULT_LAYOUT" envDefault:"base.html" yaml:"default_layout"`
}

// NewRenderer creates a renderer reading views from filesystem.
func NewRenderer(filesystem fs.FS, cfg Config) *Renderer {
	if cfg.ViewDir == "" {
		cfg.ViewDir = "."
	}
	if cfg.LayoutDir == "" {
		cfg.LayoutDir = "layouts"
	}
	if cfg.DefaultLayout == "" {
		cfg.DefaultLayout = "base.html"
	}

	return &Renderer{
		fs: filesystem,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		),
		viewCache:   make(map[string]*cachedView),
		layoutCache: make(map[string]*template.Template),
		viewDir:     cfg.ViewDir,
		layoutDir:   cfg.LayoutDir,
		layout:      cfg.DefaultLayout,
	}
}

// Result is one rendered view: final HTML, the processed markdown as plain
// text, and the frontmatter metadata.
type Result struct {
	Metadata map[string]any
	HTML     string
	Text     string
}

// Subject returns the frontmatter subject, if any.
func (r *Result) Subject() string {
	if s, ok := r.Metadata["subject"].(string); ok {
		return s
	}
	return ""
}

// Render processes the named view with data. The layout comes from the
// view's frontmatter ("layout" key) or the configured default. Render errors
// are fatal for the send attempt; there is no degraded fallback for views.
func (r *Renderer) Render(name string, data any) (*Result, error) {
	cached, err := r.getView(name)
	if err != nil {
		return nil, err
	}

	var markdown bytes.Buffer
	if err := cached.tmpl.Execute(&markdown, data); err != nil {
		return nil, fmt.Errorf("%w: executing view %s: %v", ErrRenderFailed, name, err)
	}
	plainText := markdown.String()

	var htmlContent bytes.Buffer
	if err := r.md.Convert(markdown.Bytes(), &htmlContent); err != nil {
		return nil, fmt.Errorf("%w: converting view %s: %v", ErrRenderFailed, name, err)
	}

	layoutName := r.layout
	if l, ok := cached.metadata["layout"].(string); ok && l != "" {
		layoutName = l
	}
	layoutTmpl, err := r.getLayout(layoutName)
	if err != nil {
		return nil, err
	}

	var finalHTML bytes.Buffer
	layoutData := map[string]any{
		"Content":  template.HTML(htmlContent.String()),
		"Metadata": cached.metadata,
	}
	if err := layoutTmpl.Execute(&finalHTML, layoutData); err != nil {
		return nil, fmt.Errorf("%w: executing layout %s: %v", ErrRenderFailed, layoutName, err)
	}

	return &Result{
		Metadata: cached.metadata,
		HTML:     finalHTML.String(),
		Text:     plainText,
	}, nil
}

func (r *Renderer) getView(name string) (*cachedView, error) {
	r.mu.RLock()
	if cached, ok := r.viewCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.viewCache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.viewDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrViewNotFound, name, err)
	}

	parsed, err := parseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tmpl, err := texttemplate.New(name).Parse(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing view %s: %v", ErrRenderFailed, name, err)
	}

	cached := &cachedView{metadata: parsed.Metadata, tmpl: tmpl}
	r.viewCache[name] = cached
	return cached, nil
}

func (r *Renderer) getLayout(name string) (*template.Template, error) {
	r.mu.RLock()
	if cached, ok := r.layoutCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.layoutCache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayoutNotFound, name, err)
	}

	layoutTmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing layout %s: %v", ErrRenderFailed, name, err)
	}

	r.layoutCache[name] = layoutTmpl
	return layoutTmpl, nil
}
