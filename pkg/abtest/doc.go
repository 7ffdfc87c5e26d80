// Package abtest compares send variants by open or click rate and resolves a
// winner. Statistics stay deliberately simple: rate comparison with a
// sent-count tie-break, nothing more.
package abtest
