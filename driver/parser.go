package driver

import (
	"fmt"

	"github.com/grackle-lang/grackle/tables"
)

// Status is the lifecycle state of a parse.
type Status int

const (
	StatusRunning Status = iota
	StatusAccepted
	StatusRejected
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type SyntaxError struct {
	Row               int
	Col               int
	Message           string
	Token             Token
	ExpectedTerminals []string
}

// InconsistencyError reports broken tables: a lookup that a well-formed
// bundle can never produce, such as a missing goto entry after a reduction.
// It is unrelated to syntax errors in the input.
type InconsistencyError struct {
	State  int
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent parser tables at state %v: %v", e.State, e.Detail)
}

type ParserOption func(p *Parser) error

// WithEntryPoint selects which start symbol the parse begins at. The default
// is entry point 0.
func WithEntryPoint(entry int) ParserOption {
	return func(p *Parser) error {
		p.entry = entry
		return nil
	}
}

// DisableTreeActions turns off the default tree-building semantic action for
// productions without one of their own. Reductions then yield nil values.
func DisableTreeActions() ParserOption {
	return func(p *Parser) error {
		p.buildTree = false
		return nil
	}
}

// Parser is a table-driven stack interpreter. Each Next call performs exactly
// one action, so a caller can single-step, impose a step budget with Run, or
// drive the parse to completion with Parse. A suspended parser holds all of
// its state and resumes where it stopped.
type Parser struct {
	gram Grammar
	toks TokenStream

	entry      int
	stateStack []int
	semStack   []any
	tok        Token

	status    Status
	result    any
	buildTree bool

	onError    bool
	shiftCount int
	synErrs    []*SyntaxError
}

func NewParser(gram Grammar, toks TokenStream, opts ...ParserOption) (*Parser, error) {
	p := &Parser{
		gram:      gram,
		toks:      toks,
		buildTree: true,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	state, ok := gram.EntryState(p.entry)
	if !ok {
		return nil, fmt.Errorf("grammar %v has no entry point %v", gram.Name(), p.entry)
	}
	p.stateStack = append(p.stateStack, state)

	return p, nil
}

func (p *Parser) Status() Status {
	return p.status
}

// Result returns the semantic value of the start symbol once the parse has
// accepted. With the default tree actions it is a *Node.
func (p *Parser) Result() any {
	return p.result
}

func (p *Parser) SyntaxErrors() []*SyntaxError {
	return p.synErrs
}

// TopState returns the state on top of the stack.
func (p *Parser) TopState() int {
	return p.top()
}

// StackDepth returns the number of states on the stack. It exceeds the
// number of semantic values by exactly one at every step boundary.
func (p *Parser) StackDepth() int {
	return len(p.stateStack)
}

// Parse drives the parse to completion. It returns nil when the input was
// accepted or rejected; inspect Status and SyntaxErrors for the outcome. A
// non-nil error means the parse could not finish: the stream failed or the
// tables are inconsistent.
func (p *Parser) Parse() error {
	for {
		st, err := p.Next()
		if err != nil {
			return err
		}
		if st != StatusRunning {
			return nil
		}
	}
}

// Run performs at most budget steps. When the budget runs out with the parse
// still in progress it returns StatusTimedOut; the parser itself stays
// runnable and a later Run or Next resumes it.
func (p *Parser) Run(budget int) (Status, error) {
	for i := 0; i < budget; i++ {
		st, err := p.Next()
		if err != nil || st != StatusRunning {
			return st, err
		}
	}
	if p.status == StatusRunning {
		return StatusTimedOut, nil
	}
	return p.status, nil
}

// Next performs one action: a shift, a reduction, or one step of error
// recovery. Reading a token does not count as a separate step.
func (p *Parser) Next() (Status, error) {
	if p.status != StatusRunning {
		return p.status, nil
	}

	// A default reduction fires before the lookahead exists. This is what
	// lets a suspended parser finish pending reductions without more input.
	if dr := p.gram.DefaultReduction(p.top()); dr != 0 {
		return p.reduce(dr - 1)
	}

	if p.tok == nil {
		tok, err := p.toks.Next()
		if err != nil {
			return p.status, err
		}
		p.tok = tok
	}

	act := p.gram.Action(p.top(), p.terminalOf(p.tok))
	switch ty, n := act.Describe(); ty {
	case tables.ActionTypeShift:
		p.shift(n, true)
		return p.status, nil
	case tables.ActionTypeShiftWithoutConsuming:
		p.shift(n, false)
		return p.status, nil
	case tables.ActionTypeReduce:
		return p.reduce(n)
	default:
		return p.handleError()
	}
}

func (p *Parser) terminalOf(tok Token) int {
	if tok.EOF() {
		return p.gram.EOF()
	}
	return tok.TerminalID()
}

func (p *Parser) shift(nextState int, consume bool) {
	if p.onError {
		// When the parser performs shift three times, the parser recovers
		// from the error state.
		if p.shiftCount < 3 {
			p.shiftCount++
		} else {
			p.onError = false
			p.shiftCount = 0
		}
	}

	p.stateStack = append(p.stateStack, nextState)
	if consume {
		p.semStack = append(p.semStack, p.shiftValue(p.tok))
		p.tok = nil
	} else {
		p.semStack = append(p.semStack, p.errorValue())
	}
}

func (p *Parser) reduce(prod int) (Status, error) {
	if p.gram.IsStartProduction(prod) {
		if len(p.semStack) > 0 {
			p.result = p.semStack[len(p.semStack)-1]
		}
		p.status = StatusAccepted
		return p.status, nil
	}

	n := p.gram.RHSLength(prod)
	if len(p.stateStack) <= n || len(p.semStack) < n {
		return p.status, &InconsistencyError{
			State:  p.top(),
			Detail: fmt.Sprintf("production %v pops %v frames but the stack has %v", prod, n, len(p.stateStack)-1),
		}
	}

	values := make([]any, n)
	copy(values, p.semStack[len(p.semStack)-n:])
	p.stateStack = p.stateStack[:len(p.stateStack)-n]
	p.semStack = p.semStack[:len(p.semStack)-n]

	lhs := p.gram.LHS(prod)
	next, ok := p.gram.GoTo(p.top(), lhs)
	if !ok {
		return p.status, &InconsistencyError{
			State:  p.top(),
			Detail: fmt.Sprintf("no goto entry for non-terminal %v", p.gram.NonTerminal(lhs)),
		}
	}
	p.stateStack = append(p.stateStack, next)

	var v any
	if act := p.gram.SemanticAction(prod); act != nil {
		v = act(values)
	} else if p.buildTree {
		v = p.reduceValue(lhs, values)
	}
	p.semStack = append(p.semStack, v)

	return p.status, nil
}

func (p *Parser) handleError() (Status, error) {
	if p.onError {
		// Discard tokens until one the state can act on appears. Hitting
		// EOF means the error was unrecoverable after all.
		if p.tok.EOF() {
			p.status = StatusRejected
			return p.status, nil
		}
		p.tok = nil
		return p.status, nil
	}

	row, col := p.tok.Position()
	p.synErrs = append(p.synErrs, &SyntaxError{
		Row:               row,
		Col:               col,
		Message:           "unexpected token",
		Token:             p.tok,
		ExpectedTerminals: p.expectedNames(p.top()),
	})

	if !p.trapError() {
		p.status = StatusRejected
		return p.status, nil
	}

	p.onError = true
	p.shiftCount = 0

	act := p.gram.Action(p.top(), p.gram.Error())
	ty, n := act.Describe()
	if ty != tables.ActionTypeShiftWithoutConsuming {
		return p.status, &InconsistencyError{
			State:  p.top(),
			Detail: "an error-trapper state must shift the error symbol without consuming",
		}
	}
	p.shift(n, false)

	return p.status, nil
}

// trapError pops the stacks down to the nearest state that can shift the
// error symbol. It reports false when no such state exists.
func (p *Parser) trapError() bool {
	for {
		if p.gram.ErrorTrapperState(p.top()) {
			return true
		}
		if len(p.stateStack) == 1 {
			return false
		}
		p.stateStack = p.stateStack[:len(p.stateStack)-1]
		p.semStack = p.semStack[:len(p.semStack)-1]
	}
}

func (p *Parser) expectedNames(state int) []string {
	var names []string
	for _, t := range p.gram.ExpectedTerminals(state) {
		// Users cannot write the error symbol, so it is not expected input.
		if t == p.gram.Error() {
			continue
		}
		names = append(names, p.gram.Terminal(t))
	}
	return names
}

func (p *Parser) top() int {
	return p.stateStack[len(p.stateStack)-1]
}

func (p *Parser) shiftValue(tok Token) any {
	if !p.buildTree {
		return nil
	}
	row, col := tok.Position()
	return &Node{
		KindName: p.gram.Terminal(p.terminalOf(tok)),
		Text:     string(tok.Lexeme()),
		Row:      row,
		Col:      col,
	}
}

func (p *Parser) errorValue() any {
	if !p.buildTree {
		return nil
	}
	return &Node{
		KindName: p.gram.Terminal(p.gram.Error()),
	}
}

func (p *Parser) reduceValue(lhs int, values []any) any {
	children := make([]*Node, 0, len(values))
	for _, v := range values {
		if n, ok := v.(*Node); ok {
			children = append(children, n)
		}
	}
	return &Node{
		KindName: p.gram.NonTerminal(lhs),
		Children: children,
	}
}
