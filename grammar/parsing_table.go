package grammar

import (
	"fmt"

	"github.com/grackle-lang/grackle/grammar/symbol"
	"github.com/grackle-lang/grackle/tables"
)

type conflictResolutionMethod int

func (m conflictResolutionMethod) Int() int {
	return int(m)
}

const (
	ResolvedByPrec      conflictResolutionMethod = 1
	ResolvedByAssoc     conflictResolutionMethod = 2
	ResolvedByShift     conflictResolutionMethod = 3
	ResolvedByProdOrder conflictResolutionMethod = 4
)

type conflict interface {
	conflict()
}

type shiftReduceConflict struct {
	state      stateNum
	sym        symbol.Symbol
	nextState  stateNum
	prodNum    productionNum
	resolvedBy conflictResolutionMethod
}

func (c *shiftReduceConflict) conflict() {
}

type reduceReduceConflict struct {
	state      stateNum
	sym        symbol.Symbol
	prodNum1   productionNum
	prodNum2   productionNum
	resolvedBy conflictResolutionMethod
}

func (c *reduceReduceConflict) conflict() {
}

var (
	_ conflict = &shiftReduceConflict{}
	_ conflict = &reduceReduceConflict{}
)

// ParsingTable is the dense, uncompacted action/goto pair the compiler builds
// before compression. Terminal columns are dense terminal numbers with EOF
// occupying the last column.
type ParsingTable struct {
	actionTable      []tables.ActionEntry
	goToTable        []tables.GoToEntry
	stateCount       int
	terminalCount    int
	nonTerminalCount int

	// errorTrapperStates[stateNum] is 1 when the state has an item with the
	// dot before the error symbol. The `α` and `β` can be empty.
	//
	// A → α・error β
	errorTrapperStates []int

	// defaultReduction[stateNum] is 1+production when the state reduces that
	// production without consulting the lookahead, and 0 otherwise.
	defaultReduction []int

	entryStates []stateNum
}

func (t *ParsingTable) getAction(state stateNum, term symbol.SymbolNum) (tables.ActionType, int) {
	pos := state.Int()*t.terminalCount + term.Int()
	return t.actionTable[pos].Describe()
}

func (t *ParsingTable) getGoTo(state stateNum, nonTerm symbol.SymbolNum) (int, bool) {
	pos := state.Int()*t.nonTerminalCount + nonTerm.Int()
	return t.goToTable[pos].Describe()
}

func (t *ParsingTable) readAction(row int, col int) tables.ActionEntry {
	return t.actionTable[row*t.terminalCount+col]
}

func (t *ParsingTable) writeAction(row int, col int, act tables.ActionEntry) {
	t.actionTable[row*t.terminalCount+col] = act
}

func (t *ParsingTable) writeGoTo(state stateNum, sym symbol.Symbol, nextState stateNum) {
	pos := state.Int()*t.nonTerminalCount + sym.Num().Int()
	t.goToTable[pos] = tables.NewGoToEntry(nextState.Int())
}

type lrTableBuilder struct {
	automaton    *lr1Automaton
	prods        *productionSet
	termCount    int
	nonTermCount int
	symTab       *symbol.SymbolTableReader
	precAndAssoc *precAndAssoc

	conflicts []conflict
}

func (b *lrTableBuilder) build() (*ParsingTable, error) {
	var ptab *ParsingTable
	{
		entryStates := make([]stateNum, len(b.automaton.entryStates))
		for i, s := range b.automaton.entryStates {
			entryStates[i] = s.num
		}
		ptab = &ParsingTable{
			actionTable:        make([]tables.ActionEntry, len(b.automaton.states)*b.termCount),
			goToTable:          make([]tables.GoToEntry, len(b.automaton.states)*b.nonTermCount),
			stateCount:         len(b.automaton.states),
			terminalCount:      b.termCount,
			nonTerminalCount:   b.nonTermCount,
			errorTrapperStates: make([]int, len(b.automaton.states)),
			defaultReduction:   make([]int, len(b.automaton.states)),
			entryStates:        entryStates,
		}
	}

	for _, state := range b.automaton.states {
		if state.core.isErrorTrapper {
			ptab.errorTrapperStates[state.num] = 1
		}

		for sym, next := range state.next {
			if sym.IsTerminal() {
				b.writeShiftAction(ptab, state.num, sym, next.num)
			} else {
				ptab.writeGoTo(state.num, sym, next.num)
			}
		}

		for prodID, la := range state.reducibleLA {
			prod, ok := b.prods.findByID(prodID)
			if !ok {
				return nil, fmt.Errorf("reducible production not found: %v", prodID)
			}
			for _, sym := range la.sorted() {
				b.writeReduceAction(ptab, state.num, sym, prod.num)
			}
		}
	}

	b.detectDefaultReductions(ptab)

	return ptab, nil
}

// detectDefaultReductions marks states that reduce one and the same
// production on every possible lookahead. Such states never need to consult
// the action table, which lets a driver reduce before the next token exists.
func (b *lrTableBuilder) detectDefaultReductions(ptab *ParsingTable) {
	for row := 0; row < ptab.stateCount; row++ {
		prod := productionNumNil
		uniform := true
		for col := 0; col < ptab.terminalCount && uniform; col++ {
			act := ptab.readAction(row, col)
			if act.IsEmpty() {
				continue
			}
			switch ty, n := act.Describe(); ty {
			case tables.ActionTypeReduce:
				if prod == productionNumNil {
					prod = productionNum(n)
				} else if prod != productionNum(n) {
					uniform = false
				}
			default:
				uniform = false
			}
		}
		if uniform && prod != productionNumNil {
			// Reducing a start production accepts the input, and acceptance
			// must see the EOF lookahead. Those states keep consulting the
			// action table.
			if p, ok := b.prods.findByNum(prod); ok && !p.lhs.IsStart() {
				ptab.defaultReduction[row] = 1 + prod.Int()
			}
		}
	}
}

// writeShiftAction writes a shift action to the parsing table. When a
// shift/reduce conflict occurs we default to the shift action. Shifting the
// error symbol must not consume the offending token, so those entries carry
// the non-consuming shift encoding.
func (b *lrTableBuilder) writeShiftAction(tab *ParsingTable, state stateNum, sym symbol.Symbol, nextState stateNum) {
	col := b.symTab.TerminalNum(sym).Int()
	consume := !sym.IsError()
	act := tab.readAction(state.Int(), col)
	if !act.IsEmpty() {
		if ty, n := act.Describe(); ty == tables.ActionTypeReduce {
			p := productionNum(n)
			adopted, method := b.resolveSRConflict(b.symTab.TerminalNum(sym), p)
			b.conflicts = append(b.conflicts, &shiftReduceConflict{
				state:      state,
				sym:        sym,
				nextState:  nextState,
				prodNum:    p,
				resolvedBy: method,
			})
			if adopted == tables.ActionTypeShift {
				tab.writeAction(state.Int(), col, tables.NewShiftActionEntry(nextState.Int(), consume))
			}
			return
		}
	}
	tab.writeAction(state.Int(), col, tables.NewShiftActionEntry(nextState.Int(), consume))
}

// writeReduceAction writes a reduce action to the parsing table. A
// shift/reduce conflict defaults to the shift action and a reduce/reduce
// conflict to the production defined earlier in the grammar.
func (b *lrTableBuilder) writeReduceAction(tab *ParsingTable, state stateNum, sym symbol.Symbol, prod productionNum) {
	col := b.symTab.TerminalNum(sym).Int()
	act := tab.readAction(state.Int(), col)
	if !act.IsEmpty() {
		switch ty, n := act.Describe(); ty {
		case tables.ActionTypeReduce:
			p := productionNum(n)
			if p == prod {
				return
			}

			b.conflicts = append(b.conflicts, &reduceReduceConflict{
				state:      state,
				sym:        sym,
				prodNum1:   p,
				prodNum2:   prod,
				resolvedBy: ResolvedByProdOrder,
			})
			if p < prod {
				tab.writeAction(state.Int(), col, tables.NewReduceActionEntry(p.Int()))
			} else {
				tab.writeAction(state.Int(), col, tables.NewReduceActionEntry(prod.Int()))
			}
		case tables.ActionTypeShift, tables.ActionTypeShiftWithoutConsuming:
			adopted, method := b.resolveSRConflict(b.symTab.TerminalNum(sym), prod)
			b.conflicts = append(b.conflicts, &shiftReduceConflict{
				state:      state,
				sym:        sym,
				nextState:  stateNum(n),
				prodNum:    prod,
				resolvedBy: method,
			})
			if adopted == tables.ActionTypeReduce {
				tab.writeAction(state.Int(), col, tables.NewReduceActionEntry(prod.Int()))
			}
		}
		return
	}
	tab.writeAction(state.Int(), col, tables.NewReduceActionEntry(prod.Int()))
}

func (b *lrTableBuilder) resolveSRConflict(sym symbol.SymbolNum, prod productionNum) (tables.ActionType, conflictResolutionMethod) {
	symPrec := b.precAndAssoc.terminalPrecedence(sym)
	prodPrec := b.precAndAssoc.productionPredence(prod)
	if symPrec == 0 || prodPrec == 0 {
		return tables.ActionTypeShift, ResolvedByShift
	}
	if symPrec == prodPrec {
		assoc := b.precAndAssoc.productionAssociativity(prod)
		if assoc != AssocLeft {
			return tables.ActionTypeShift, ResolvedByAssoc
		}
		return tables.ActionTypeReduce, ResolvedByAssoc
	}
	if symPrec < prodPrec {
		return tables.ActionTypeShift, ResolvedByPrec
	}
	return tables.ActionTypeReduce, ResolvedByPrec
}
