// Package template resolves the final subject and HTML body of a message
// from its possible content sources and applies placeholder substitution.
//
// Content precedence follows a last-write-wins discipline enforced by the
// Processor setters: selecting a named template clears previously set direct
// content, and setting direct HTML clears a previously selected template. An
// external view, when the caller uses one, is rendered one level up and
// overrides the body produced here.
//
// A named template that cannot be loaded (missing, or without an active
// version) is a degradation, not an error: the processor logs and falls back
// to whatever direct content exists.
//
// Three placeholder syntaxes are active concurrently: {{name}}, ##name## and
// [[name]]. The ##name## form is guarded so CSS hex color literals such as
// #ffffff never produce a token match. Unknown placeholders are left in the
// output verbatim.
package template
