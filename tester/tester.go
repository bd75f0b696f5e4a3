// Package tester runs single parse attempts against a grammar and classifies
// the outcome, so grammar authors can assert acceptance, rejection, and the
// exact failure mode without driving the parser by hand.
package tester

import (
	"errors"
	"fmt"

	"github.com/grackle-lang/grackle/driver"
)

// FailureKind classifies why a parse attempt did not come out as expected.
type FailureKind int

const (
	FailureNone FailureKind = iota

	// FailureSyntaxError: the input was rejected; Result.State names the
	// state the parser stopped in.
	FailureSyntaxError

	// FailureReadPastEnd: the parser asked for a token beyond the end of a
	// finite token sequence.
	FailureReadPastEnd

	// FailureNotFullyConsumed: the input was accepted before the whole
	// token sequence was read.
	FailureNotFullyConsumed

	// FailureUnexpectedlyAccepted: the caller expected a rejection.
	FailureUnexpectedlyAccepted

	// FailureTimedOut: the step budget ran out.
	FailureTimedOut

	// FailureInternal: the tables are inconsistent or the stream failed.
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureSyntaxError:
		return "syntax error"
	case FailureReadPastEnd:
		return "read past end"
	case FailureNotFullyConsumed:
		return "not fully consumed"
	case FailureUnexpectedlyAccepted:
		return "unexpectedly accepted"
	case FailureTimedOut:
		return "timed out"
	case FailureInternal:
		return "internal error"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// Result is the observed outcome of one parse attempt.
type Result struct {
	Status       driver.Status
	Tree         *driver.Node
	State        int
	Remaining    int
	SyntaxErrors []*driver.SyntaxError
	Err          error
}

// Failure classifies the result from the point of view of a caller that
// expected a clean acceptance.
func (r *Result) Failure() FailureKind {
	switch {
	case r.Err != nil && errors.Is(r.Err, driver.ErrOvershoot):
		return FailureReadPastEnd
	case r.Err != nil:
		return FailureInternal
	case r.Status == driver.StatusTimedOut:
		return FailureTimedOut
	case r.Status == driver.StatusRejected:
		return FailureSyntaxError
	case r.Remaining > 0:
		return FailureNotFullyConsumed
	default:
		return FailureNone
	}
}

func (r *Result) describe() string {
	switch k := r.Failure(); k {
	case FailureSyntaxError:
		return fmt.Sprintf("%v in state %v", k, r.State)
	case FailureNotFullyConsumed:
		return fmt.Sprintf("%v: %v tokens left", k, r.Remaining)
	case FailureInternal:
		return fmt.Sprintf("%v: %v", k, r.Err)
	default:
		return k.String()
	}
}

type TesterOption func(t *Tester)

// WithBudget caps the number of parser steps per attempt.
func WithBudget(budget int) TesterOption {
	return func(t *Tester) {
		t.budget = budget
	}
}

// WithEntryPoint selects the grammar entry point attempts start at.
func WithEntryPoint(entry int) TesterOption {
	return func(t *Tester) {
		t.entry = entry
	}
}

type Tester struct {
	gram   driver.Grammar
	budget int
	entry  int
}

func New(gram driver.Grammar, opts ...TesterOption) *Tester {
	t := &Tester{
		gram:   gram,
		budget: 1 << 20,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Parse runs the tokens as a finite sequence: the parser must accept without
// asking for a token past the end.
func (t *Tester) Parse(toks []driver.Token) *Result {
	return t.run(driver.NewSliceTokenStream(toks))
}

// ParsePadded runs the tokens with EOF padding, the ordinary end-of-input
// behavior.
func (t *Tester) ParsePadded(toks []driver.Token) *Result {
	return t.run(driver.NewPaddedTokenStream(toks))
}

func (t *Tester) run(toks *driver.SliceTokenStream) *Result {
	p, err := driver.NewParser(t.gram, toks, driver.WithEntryPoint(t.entry))
	if err != nil {
		return &Result{
			Err: err,
		}
	}

	st, err := p.Run(t.budget)

	res := &Result{
		Status:       st,
		State:        p.TopState(),
		Remaining:    toks.Remaining(),
		SyntaxErrors: p.SyntaxErrors(),
		Err:          err,
	}
	if st == driver.StatusAccepted {
		if tree, ok := p.Result().(*driver.Node); ok {
			res.Tree = tree
		}
	}
	return res
}

// ExpectAccept returns nil when the tokens are accepted with the whole
// sequence consumed, and a descriptive error otherwise. The sequence is EOF
// padded; acceptance always needs the EOF lookahead.
func (t *Tester) ExpectAccept(toks []driver.Token) error {
	res := t.ParsePadded(toks)
	if res.Failure() != FailureNone {
		return fmt.Errorf("expected acceptance, got %v", res.describe())
	}
	return nil
}

// ExpectReject returns nil when the tokens are rejected, and a descriptive
// error otherwise.
func (t *Tester) ExpectReject(toks []driver.Token) error {
	res := t.ParsePadded(toks)
	switch res.Failure() {
	case FailureSyntaxError:
		return nil
	case FailureNone, FailureNotFullyConsumed:
		return fmt.Errorf("%v", FailureUnexpectedlyAccepted)
	default:
		return fmt.Errorf("expected rejection, got %v", res.describe())
	}
}
