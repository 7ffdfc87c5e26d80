// Package view renders markdown email views with YAML frontmatter into HTML.
//
// A view is a markdown file whose frontmatter carries metadata (subject,
// layout). The body goes through text/template with the caller's data, then
// markdown conversion, then an HTML layout. Parsed views and layouts are
// cached; rendering itself always runs with fresh data.
package view
