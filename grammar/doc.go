// Package grammar holds the grammar model and turns it into a deterministic
// LR automaton: LR(0) construction, the LR(1) lookahead lift with
// configurable state merging, precedence-based conflict resolution, and
// compilation into the packed table bundle a driver executes.
package grammar

import "github.com/npillmayer/schuko/tracing"

// tracer traces with key 'grackle.grammar'.
func tracer() tracing.Trace {
	return tracing.Select("grackle.grammar")
}
