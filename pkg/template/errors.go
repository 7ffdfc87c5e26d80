package template

import "errors"

var (
	// ErrTemplateNotFound indicates no template exists with the requested name.
	ErrTemplateNotFound = errors.New("template: not found")

	// ErrNoActiveVersion indicates the template exists but no version is active.
	ErrNoActiveVersion = errors.New("template: no active version")
)
