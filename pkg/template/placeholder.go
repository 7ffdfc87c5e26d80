package template

import (
	"regexp"
	"strings"
)

// ReplaceFunc customizes how a matched placeholder token is replaced.
// It receives the token name, the resolved value ("" when absent, with found
// reporting presence), and the full placeholder map. The returned string
// replaces the whole token.
type ReplaceFunc func(name, value string, found bool, placeholders map[string]string) string

// guardFunc vetoes a regexp match based on its surrounding context.
type guardFunc func(content string, start int) bool

// Pattern is one placeholder syntax: a regexp with a single capture group for
// the token name, an optional context guard, and an optional custom replacer.
type Pattern struct {
	re       *regexp.Regexp
	guard    guardFunc
	callback ReplaceFunc
}

// NewPattern compiles a custom placeholder pattern. The expression must have
// exactly one capture group holding the token name. A nil callback uses the
// default replacement behavior (substitute when known, keep token otherwise).
func NewPattern(expr string, callback ReplaceFunc) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{re: re, callback: callback}, nil
}

// defaultPatterns returns the three built-in syntaxes.
//
// Go's regexp has no lookbehind, so the hex-literal protection of the
// ##name## form is an explicit guard: the byte immediately before the match
// must not be '#' or a hex digit, which keeps color values like
// #ffffff##promo## from being mistaken for tokens.
func defaultPatterns() []Pattern {
	return []Pattern{
		{re: regexp.MustCompile(`\{\{\s*([\w.-]+)\s*\}\}`)},
		{re: regexp.MustCompile(`##([\w.-]+)##`), guard: notAfterHex},
		{re: regexp.MustCompile(`\[\[\s*([\w.-]+)\s*\]\]`)},
	}
}

func notAfterHex(content string, start int) bool {
	if start == 0 {
		return true
	}
	c := content[start-1]
	switch {
	case c == '#':
		return false
	case c >= '0' && c <= '9':
		return false
	case c >= 'a' && c <= 'f':
		return false
	case c >= 'A' && c <= 'F':
		return false
	}
	return true
}

// apply substitutes placeholders in content using the given patterns.
// Tokens without a matching placeholder are left untouched; content without
// any matching token is returned unchanged.
func apply(content string, placeholders map[string]string, patterns []Pattern) string {
	if content == "" || len(placeholders) == 0 || len(patterns) == 0 {
		return content
	}

	for _, p := range patterns {
		content = p.apply(content, placeholders)
	}
	return content
}

func (p Pattern) apply(content string, placeholders map[string]string) string {
	matches := p.re.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if p.guard != nil && !p.guard(content, start) {
			continue
		}

		token := content[start:end]
		name := content[m[2]:m[3]]
		value, found := placeholders[name]

		var replacement string
		switch {
		case p.callback != nil:
			replacement = p.callback(name, value, found, placeholders)
		case found:
			replacement = value
		default:
			replacement = token
		}

		b.WriteString(content[last:start])
		b.WriteString(replacement)
		last = end
	}
	b.WriteString(content[last:])
	return b.String()
}
