// Package driver interprets compiled parser tables over a token stream. The
// parser is a plain stack machine: it can run to completion, single-step, or
// run under a step budget and be resumed later.
package driver

import "github.com/npillmayer/schuko/tracing"

// tracer traces with key 'grackle.driver'.
func tracer() tracing.Trace {
	return tracing.Select("grackle.driver")
}
