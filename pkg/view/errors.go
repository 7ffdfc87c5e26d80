package view

import "errors"

var (
	// ErrViewNotFound indicates the view file does not exist in the
	// configured filesystem.
	ErrViewNotFound = errors.New("view: not found")

	// ErrLayoutNotFound indicates the layout file does not exist.
	ErrLayoutNotFound = errors.New("view: layout not found")

	// ErrRenderFailed indicates template execution or markdown conversion
	// failed. Fatal for the send attempt, unlike template-name misses.
	ErrRenderFailed = errors.New("view: render failed")

	// ErrInvalidFrontmatter indicates malformed YAML frontmatter.
	ErrInvalidFrontmatter = errors.New("view: invalid frontmatter")
)
