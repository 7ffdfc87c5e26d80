package view

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// parsedView is one view file split into frontmatter metadata and markdown
// body.
type parsedView struct {
	Metadata map[string]any
	Body     string
}

// parseFrontmatter splits "---" delimited YAML frontmatter from the markdown
// body. A file without frontmatter is all body.
func parseFrontmatter(content []byte) (*parsedView, error) {
	delimiter := []byte("---")

	if !bytes.HasPrefix(content, delimiter) {
		return &parsedView{
			Metadata: make(map[string]any),
			Body:     string(content),
		}, nil
	}

	rest := bytes.TrimPrefix(content, delimiter)
	rest = bytes.TrimLeft(rest, "\n\r")
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: no content after opening delimiter", ErrInvalidFrontmatter)
	}

	endIdx := bytes.Index(rest, delimiter)
	if endIdx == -1 {
		return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	front := rest[:endIdx]
	bodyStart := endIdx + len(delimiter)
	if bodyStart < len(rest) {
		if rest[bodyStart] == '\r' && bodyStart+1 < len(rest) && rest[bodyStart+1] == '\n' {
			bodyStart += 2
		} else if rest[bodyStart] == '\n' {
			bodyStart++
		}
	}

	metadata := make(map[string]any)
	if len(bytes.TrimSpace(front)) > 0 {
		if err := yaml.Unmarshal(front, &metadata); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}

	return &parsedView{
		Metadata: metadata,
		Body:     string(rest[bodyStart:]),
	}, nil
}
