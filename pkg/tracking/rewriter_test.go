package tracking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinkStore struct {
	logIDs     map[string]int64
	links      []Link
	byToken    map[string]*Link
	opened     map[string]int
	createErr  error
	failTokens int

	clicks map[int64]int
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{
		logIDs:  map[string]int64{},
		byToken: map[string]*Link{},
		opened:  map[string]int{},
		clicks:  map[int64]int{},
	}
}

func (s *fakeLinkStore) ResolveLogID(_ context.Context, logUUID string) (int64, error) {
	id, ok := s.logIDs[logUUID]
	if !ok {
		return 0, ErrLogNotFound
	}
	return id, nil
}

func (s *fakeLinkStore) CreateLink(_ context.Context, link Link) error {
	if s.createErr != nil && s.failTokens > 0 {
		s.failTokens--
		return s.createErr
	}
	link.ID = int64(len(s.links) + 1)
	s.links = append(s.links, link)
	s.byToken[link.Token] = &s.links[len(s.links)-1]
	return nil
}

func (s *fakeLinkStore) FindLinkByToken(_ context.Context, _, token string) (*Link, error) {
	link, ok := s.byToken[token]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

func (s *fakeLinkStore) IncrementClick(_ context.Context, linkID int64) error {
	s.clicks[linkID]++
	for i := range s.links {
		if s.links[i].ID == linkID {
			now := time.Now()
			s.links[i].ClickedAt = &now
		}
	}
	return nil
}

func (s *fakeLinkStore) MarkOpened(_ context.Context, logUUID string) error {
	if _, ok := s.logIDs[logUUID]; !ok {
		return ErrLogNotFound
	}
	s.opened[logUUID]++
	return nil
}

func testConfig() Config {
	return Config{
		BaseURL:     "https://mail.example.com",
		Prefix:      "track",
		TrackOpens:  true,
		TrackClicks: true,
	}
}

func TestRewriter_RewritesQualifyingLinks(t *testing.T) {
	t.Parallel()

	store := newFakeLinkStore()
	store.logIDs["log-1"] = 42
	r := NewRewriter(store, testConfig())

	in := `<html><body>` +
		`<a href="https://example.com/offer">offer</a>` +
		`<a href="http://example.org/page?q=1">page</a>` +
		`</body></html>`

	out, err := r.Rewrite(context.Background(), in, "log-1")
	require.NoError(t, err)

	require.Len(t, store.links, 2)
	assert.Equal(t, int64(42), store.links[0].LogID)
	assert.Equal(t, "https://example.com/offer", store.links[0].OriginalURL)
	assert.Equal(t, "http://example.org/page?q=1", store.links[1].OriginalURL)

	assert.NotContains(t, out, `href="https://example.com/offer"`)
	assert.Contains(t, out, "https://mail.example.com/track/click/log-1/"+store.links[0].Token)
	assert.Contains(t, out, "https://mail.example.com/track/click/log-1/"+store.links[1].Token)
}

func TestRewriter_SkipsNonTrackableHrefs(t *testing.T) {
	t.Parallel()

	store := newFakeLinkStore()
	store.logIDs["log-1"] = 1
	r := NewRewriter(store, testConfig())

	in := `<html><body>` +
		`<a href="#section">anchor</a>` +
		`<a href="mailto:sales@example.com">mail</a>` +
		`<a href="tel:+4712345678">call</a>` +
		`<a href="">empty</a>` +
		`<a href="ftp://example.com/file">ftp</a>` +
		`<a href="/relative/path">relative</a>` +
		`</body></html>`

	out, err := r.Rewrite(context.Background(), in, "log-1")
	require.NoError(t, err)

	assert.Empty(t, store.links)
	assert.Contains(t, out, `href="#section"`)
	assert.Contains(t, out, `href="mailto:sales@example.com"`)
	assert.Contains(t, out, `href="tel:+4712345678"`)
	assert.Contains(t, out, `href="ftp://example.com/file"`)
	assert.Contains(t, out, `href="/relative/path"`)
}

func TestRewriter_PixelBeforeClosingBody(t *testing.T) {
	t.Parallel()

	store := newFakeLinkStore()
	store.logIDs["log-1"] = 1
	r := NewRewriter(store, testConfig())

	out, err := r.Rewrite(context.Background(), `<html><body><p>hi</p></body></html>`, "log-1")
	require.NoError(t, err)

	pixel := `<img src="https://mail.example.com/track/open/log-1" width="1" height="1" alt="" style="display:none;"/>`
	assert.Contains(t, out, pixel)
	assert.Less(t, strings.Index(out, "<p>hi</p>"), strings.Index(out, "<img"))
	assert.Less(t, strings.Index(out, "<img"), strings.Index(out, "</body>"))
}

func TestRewriter_OpensOnly(t *testing.T) {
	t.Parallel()

	store := newFakeLinkStore()
	store.logIDs["log-1"] = 1
	cfg := testConfig()
	cfg.TrackClicks = false
	r := NewRewriter(store, cfg)

	out, err := r.Rewrite(context.Background(), `<html><body><a href="https://example.com">x</a></body></html>`, "log-1")
	require.NoError(t, err)

	assert.Empty(t, store.links)
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, "/track/open/log-1")
}

func TestRewriter_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	r := NewRewriter(newFakeLinkStore(), Config{TrackOpens: false, TrackClicks: false})

	in := `<a href="https://example.com">x</a>`
	out, err := r.Rewrite(context.Background(), in, "log-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRewriter_UnresolvableLogSkipsClicksKeepsPixel(t *testing.T) {
	t.Parallel()

	store := newFakeLinkStore()
	r := NewRewriter(store, testConfig())

	out, err := r.Rewrite(context.Background(), `<html><body><a href="https://example.com">x</a></body></html>`, "unknown")
	require.NoError(t, err)

	assert.Empty(t, store.links)
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, "/track/open/unknown")
}

func TestRewriter_PerLinkStoreFailureSkipsOnlyThatLink(t *testing.T) {
	t.Parallel()

	store := newFakeLinkStore()
	store.logIDs["log-1"] = 1
	store.createErr = errors.New("insert failed")
	store.failTokens = 1
	r := NewRewriter(store, testConfig())

	in := `<html><body>` +
		`<a href="https://first.example.com">first</a>` +
		`<a href="https://second.example.com">second</a>` +
		`</body></html>`

	out, err := r.Rewrite(context.Background(), in, "log-1")
	require.NoError(t, err)

	require.Len(t, store.links, 1)
	assert.Equal(t, "https://second.example.com", store.links[0].OriginalURL)
	assert.Contains(t, out, `href="https://first.example.com"`)
	assert.Contains(t, out, "/track/click/log-1/"+store.links[0].Token)
}
