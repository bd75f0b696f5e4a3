package driver

import "github.com/grackle-lang/grackle/tables"

// Grammar is everything the parser needs to interpret a table set. Two
// implementations exist: one over the packed bundle and one over the dense
// reference tables. Both must answer every query identically.
type Grammar interface {
	Name() string

	// EntryState returns the state the parser starts in for the given entry
	// point.
	EntryState(entry int) (int, bool)

	// IsStartProduction reports whether reducing the production accepts the
	// input.
	IsStartProduction(prod int) bool

	// DefaultReduction returns 1+production when the state reduces without
	// consulting a lookahead, and 0 otherwise.
	DefaultReduction(state int) int

	Action(state int, terminal int) tables.ActionEntry

	GoTo(state int, lhs int) (int, bool)

	LHS(prod int) int

	RHSLength(prod int) int

	TerminalCount() int

	Terminal(terminal int) string

	NonTerminal(nonTerminal int) string

	EOF() int

	Error() int

	ErrorTrapperState(state int) bool

	// ExpectedTerminals returns the terminal codes the state has any action
	// on, in ascending order.
	ExpectedTerminals(state int) []int

	SemanticAction(prod int) tables.SemanticAction
}

type grammarImpl struct {
	g       *tables.Tables
	actions []tables.SemanticAction
}

// NewGrammar interprets a packed table bundle. actions may be nil, in which
// case every reduction falls back to the default tree-building action.
func NewGrammar(g *tables.Tables, actions []tables.SemanticAction) *grammarImpl {
	return &grammarImpl{
		g:       g,
		actions: actions,
	}
}

func (g *grammarImpl) Name() string {
	return g.g.Name
}

func (g *grammarImpl) EntryState(entry int) (int, bool) {
	if entry < 0 || entry >= len(g.g.EntryStates) {
		return 0, false
	}
	return g.g.EntryStates[entry], true
}

func (g *grammarImpl) IsStartProduction(prod int) bool {
	for _, p := range g.g.StartProductions {
		if p == prod {
			return true
		}
	}
	return false
}

func (g *grammarImpl) DefaultReduction(state int) int {
	return g.g.DefaultReduction[state]
}

// Action consults the error bitmap before touching the packed matrix. The
// bitmap has no EOF column; the EOF action lives in its own dense array.
func (g *grammarImpl) Action(state int, terminal int) tables.ActionEntry {
	if terminal == g.g.EOFTerminal {
		return tables.ActionEntry(g.g.EOFAction[state])
	}
	if terminal <= 0 || terminal >= g.g.TerminalCount {
		return tables.ActionEntryEmpty
	}
	if !g.g.ErrorBitmap.IsSet(state, terminal) {
		return tables.ActionEntryEmpty
	}
	return tables.ActionEntry(g.g.Action.Lookup(state, terminal))
}

func (g *grammarImpl) GoTo(state int, lhs int) (int, bool) {
	return tables.GoToEntry(g.g.GoTo.Lookup(state, lhs)).Describe()
}

func (g *grammarImpl) LHS(prod int) int {
	return g.g.LHS[prod]
}

func (g *grammarImpl) RHSLength(prod int) int {
	return g.g.RHSLengths[prod]
}

func (g *grammarImpl) TerminalCount() int {
	return g.g.TerminalCount
}

func (g *grammarImpl) Terminal(terminal int) string {
	return g.g.Terminals[terminal]
}

func (g *grammarImpl) NonTerminal(nonTerminal int) string {
	return g.g.NonTerminals[nonTerminal]
}

func (g *grammarImpl) EOF() int {
	return g.g.EOFTerminal
}

func (g *grammarImpl) Error() int {
	return g.g.ErrorTerminal
}

func (g *grammarImpl) ErrorTrapperState(state int) bool {
	return g.g.ErrorTrapperStates[state] != 0
}

func (g *grammarImpl) ExpectedTerminals(state int) []int {
	var terms []int
	for t := 1; t < g.g.TerminalCount-1; t++ {
		if g.g.ErrorBitmap.IsSet(state, t) {
			terms = append(terms, t)
		}
	}
	if g.g.EOFAction[state] != 0 {
		terms = append(terms, g.g.EOFTerminal)
	}
	return terms
}

func (g *grammarImpl) SemanticAction(prod int) tables.SemanticAction {
	if g.actions == nil || prod >= len(g.actions) {
		return nil
	}
	return g.actions[prod]
}

type referenceGrammar struct {
	g       *tables.Reference
	actions []tables.SemanticAction
}

// NewReferenceGrammar interprets the dense reference tables.
func NewReferenceGrammar(g *tables.Reference, actions []tables.SemanticAction) *referenceGrammar {
	return &referenceGrammar{
		g:       g,
		actions: actions,
	}
}

func (g *referenceGrammar) Name() string {
	return g.g.Name
}

func (g *referenceGrammar) EntryState(entry int) (int, bool) {
	if entry < 0 || entry >= len(g.g.EntryStates) {
		return 0, false
	}
	return g.g.EntryStates[entry], true
}

func (g *referenceGrammar) IsStartProduction(prod int) bool {
	for _, p := range g.g.StartProductions {
		if p == prod {
			return true
		}
	}
	return false
}

func (g *referenceGrammar) DefaultReduction(state int) int {
	return g.g.DefaultReduction[state]
}

func (g *referenceGrammar) Action(state int, terminal int) tables.ActionEntry {
	if terminal <= 0 || terminal >= g.g.TerminalCount {
		return tables.ActionEntryEmpty
	}
	return tables.ActionEntry(g.g.Action[state*g.g.TerminalCount+terminal])
}

func (g *referenceGrammar) GoTo(state int, lhs int) (int, bool) {
	return tables.GoToEntry(g.g.GoTo[state*g.g.NonTerminalCount+lhs]).Describe()
}

func (g *referenceGrammar) LHS(prod int) int {
	return g.g.LHS[prod]
}

func (g *referenceGrammar) RHSLength(prod int) int {
	return g.g.RHSLengths[prod]
}

func (g *referenceGrammar) TerminalCount() int {
	return g.g.TerminalCount
}

func (g *referenceGrammar) Terminal(terminal int) string {
	return g.g.Terminals[terminal]
}

func (g *referenceGrammar) NonTerminal(nonTerminal int) string {
	return g.g.NonTerminals[nonTerminal]
}

func (g *referenceGrammar) EOF() int {
	return g.g.EOFTerminal
}

func (g *referenceGrammar) Error() int {
	return g.g.ErrorTerminal
}

func (g *referenceGrammar) ErrorTrapperState(state int) bool {
	return g.g.ErrorTrapperStates[state] != 0
}

func (g *referenceGrammar) ExpectedTerminals(state int) []int {
	return g.g.ExpectedTerminals[state]
}

func (g *referenceGrammar) SemanticAction(prod int) tables.SemanticAction {
	if g.actions == nil || prod >= len(g.actions) {
		return nil
	}
	return g.actions[prod]
}
