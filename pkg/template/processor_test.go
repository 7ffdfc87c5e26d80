package template

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcraft/mailcraft/pkg/email"
)

type fakeSource struct {
	versions map[string]*Version
	err      error
	calls    int
}

func (s *fakeSource) FindActive(_ context.Context, name string) (*Version, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.versions[name]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return v, nil
}

func TestProcessor_DirectContentOnly(t *testing.T) {
	t.Parallel()

	p := NewProcessor(nil)
	p.SetDirectSubject("Welcome {{name}}")
	p.SetDirectHTML("<p>Hello {{name}}</p>")
	p.AddPlaceholders(map[string]string{"name": "Alice"})

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Welcome Alice", got.Subject)
	assert.Equal(t, "<p>Hello Alice</p>", got.HTMLBody)
	assert.False(t, got.IsFromDatabase)
	assert.Empty(t, got.LoadedTemplateName)
}

func TestProcessor_TemplateBody(t *testing.T) {
	t.Parallel()

	src := &fakeSource{versions: map[string]*Version{
		"welcome": {
			TemplateName: "welcome",
			Subject:      "Hi {{name}}",
			HTMLBody:     "<h1>Hi {{name}}</h1>",
		},
	}}

	p := NewProcessor(src)
	p.SetTemplateName("welcome")
	p.AddPlaceholders(map[string]string{"name": "Bob"})

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hi Bob", got.Subject)
	assert.Equal(t, "<h1>Hi Bob</h1>", got.HTMLBody)
	assert.True(t, got.IsFromDatabase)
	assert.Equal(t, "welcome", got.LoadedTemplateName)
}

func TestProcessor_DirectSubjectWinsOverTemplate(t *testing.T) {
	t.Parallel()

	src := &fakeSource{versions: map[string]*Version{
		"welcome": {TemplateName: "welcome", Subject: "Template subject", HTMLBody: "<p>body</p>"},
	}}

	p := NewProcessor(src)
	p.SetTemplateName("welcome")
	p.SetDirectSubject("Explicit subject")

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Explicit subject", got.Subject)
	assert.Equal(t, "<p>body</p>", got.HTMLBody)
}

func TestProcessor_SetTemplateNameClearsDirectContent(t *testing.T) {
	t.Parallel()

	src := &fakeSource{versions: map[string]*Version{
		"welcome": {TemplateName: "welcome", Subject: "From template", HTMLBody: "<p>template</p>"},
	}}

	p := NewProcessor(src)
	p.SetDirectSubject("Direct subject")
	p.SetDirectHTML("<p>direct</p>")
	p.SetTemplateName("welcome")

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "From template", got.Subject)
	assert.Equal(t, "<p>template</p>", got.HTMLBody)
}

func TestProcessor_SetDirectHTMLClearsTemplate(t *testing.T) {
	t.Parallel()

	src := &fakeSource{versions: map[string]*Version{
		"welcome": {TemplateName: "welcome", Subject: "From template", HTMLBody: "<p>template</p>"},
	}}

	p := NewProcessor(src)
	p.SetTemplateName("welcome")
	p.SetDirectHTML("<p>direct</p>")

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>direct</p>", got.HTMLBody)
	assert.False(t, got.IsFromDatabase)
	assert.Zero(t, src.calls)
}

func TestProcessor_TemplatePlaceholdersAreDefaults(t *testing.T) {
	t.Parallel()

	src := &fakeSource{versions: map[string]*Version{
		"welcome": {
			TemplateName: "welcome",
			Subject:      "{{greeting}} {{name}}",
			HTMLBody:     "<p>{{greeting}} {{name}}</p>",
			Placeholders: map[string]string{"greeting": "Hello", "name": "Default"},
		},
	}}

	p := NewProcessor(src)
	p.SetTemplateName("welcome")
	p.AddPlaceholders(map[string]string{"name": "Carol"})

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello Carol", got.Subject)
	assert.Equal(t, "<p>Hello Carol</p>", got.HTMLBody)
}

func TestProcessor_TemplateNotFoundDegrades(t *testing.T) {
	t.Parallel()

	src := &fakeSource{versions: map[string]*Version{}}

	p := NewProcessor(src)
	p.SetTemplateName("missing")
	p.SetDirectSubject("Fallback subject")

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Fallback subject", got.Subject)
	assert.Empty(t, got.HTMLBody)
	assert.False(t, got.IsFromDatabase)
}

func TestProcessor_SourceErrorDegrades(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("connection refused")}

	p := NewProcessor(src)
	p.SetTemplateName("welcome")

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Subject)
	assert.False(t, got.IsFromDatabase)
}

func TestProcessor_Reset(t *testing.T) {
	t.Parallel()

	p := NewProcessor(nil)
	p.SetDirectSubject("subject")
	p.SetDirectHTML("<p>body</p>")
	p.AddPlaceholders(map[string]string{"k": "v"})
	p.Reset()

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Subject)
	assert.Empty(t, got.HTMLBody)
	assert.Empty(t, p.Placeholders())
}

func TestProcessor_CustomPattern(t *testing.T) {
	t.Parallel()

	pat, err := NewPattern(`<<([\w.-]+)>>`, nil)
	require.NoError(t, err)

	p := NewProcessor(nil)
	p.RegisterPattern(pat)
	p.SetDirectHTML("<p><<name>></p>")
	p.AddPlaceholders(map[string]string{"name": "Dee"})

	got, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>Dee</p>", got.HTMLBody)
}

func TestVersion_ExtractEmailConfig(t *testing.T) {
	t.Parallel()

	v := &Version{
		TemplateName: "welcome",
		FromEmail:    "noreply@example.com",
		FromName:     "Acme",
		ToEmail:      `[{"address":"a@example.com","name":"A"},{"address":"not-an-address"}]`,
		CCEmail:      "b@example.com, c@example.com",
		ReplyToEmail: "broken@",
	}

	cfg := v.ExtractEmailConfig(nil)
	require.NotNil(t, cfg.From)
	assert.Equal(t, "noreply@example.com", cfg.From.Address)
	assert.Equal(t, "Acme", cfg.From.Name)
	assert.Nil(t, cfg.ReplyTo)

	require.Len(t, cfg.To, 1)
	assert.Equal(t, email.Address{Address: "a@example.com", Name: "A"}, cfg.To[0])

	require.Len(t, cfg.CC, 2)
	assert.Equal(t, "b@example.com", cfg.CC[0].Address)
	assert.Equal(t, "c@example.com", cfg.CC[1].Address)
	assert.Empty(t, cfg.BCC)
	assert.False(t, cfg.IsZero())
}

func TestVersion_ExtractEmailConfig_Empty(t *testing.T) {
	t.Parallel()

	cfg := (&Version{TemplateName: "bare"}).ExtractEmailConfig(nil)
	assert.True(t, cfg.IsZero())
}
