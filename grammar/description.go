package grammar

import (
	"fmt"
	"sort"

	"github.com/grackle-lang/grackle/grammar/symbol"
	"github.com/grackle-lang/grackle/tables"
)

// The report describes the compiled automaton for humans: symbols with their
// precedence, productions, and per-state kernels, actions, and resolved
// conflicts. RHS entries are terminal numbers when positive and negated
// non-terminal numbers when negative.

type Terminal struct {
	Number        int    `json:"number"`
	Name          string `json:"name"`
	Precedence    int    `json:"prec"`
	Associativity string `json:"assoc"`
}

type NonTerminal struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type Production struct {
	Number        int    `json:"number"`
	LHS           int    `json:"lhs"`
	RHS           []int  `json:"rhs"`
	Precedence    int    `json:"prec"`
	Associativity string `json:"assoc"`
}

type Item struct {
	Production int `json:"production"`
	Dot        int `json:"dot"`
}

type Transition struct {
	Symbol int `json:"symbol"`
	State  int `json:"state"`
}

type Reduce struct {
	LookAhead  []int `json:"look_ahead"`
	Production int   `json:"production"`
}

type SRConflict struct {
	Symbol            int  `json:"symbol"`
	State             int  `json:"state"`
	Production        int  `json:"production"`
	AdoptedState      *int `json:"adopted_state"`
	AdoptedProduction *int `json:"adopted_production"`
	ResolvedBy        int  `json:"resolved_by"`
}

type RRConflict struct {
	Symbol            int `json:"symbol"`
	Production1       int `json:"production_1"`
	Production2       int `json:"production_2"`
	AdoptedProduction int `json:"adopted_production"`
	ResolvedBy        int `json:"resolved_by"`
}

type State struct {
	Number     int           `json:"number"`
	Kernel     []*Item       `json:"kernel"`
	Shift      []*Transition `json:"shift"`
	Reduce     []*Reduce     `json:"reduce"`
	GoTo       []*Transition `json:"goto"`
	SRConflict []*SRConflict `json:"sr_conflict"`
	RRConflict []*RRConflict `json:"rr_conflict"`
}

type Report struct {
	Terminals    []*Terminal    `json:"terminals"`
	NonTerminals []*NonTerminal `json:"non_terminals"`
	Productions  []*Production  `json:"productions"`
	States       []*State       `json:"states"`
}

func (b *lrTableBuilder) genReport(tab *ParsingTable, gram *Grammar) (*Report, error) {
	var terms []*Terminal
	{
		terms = make([]*Terminal, b.termCount)
		names, err := b.symTab.TerminalTexts()
		if err != nil {
			return nil, err
		}
		for num, name := range names {
			if name == "" {
				continue
			}
			term := &Terminal{
				Number: num,
				Name:   name,
			}

			prec := b.precAndAssoc.terminalPrecedence(symbol.SymbolNum(num))
			if prec != precNil {
				term.Precedence = prec
			}

			switch b.precAndAssoc.terminalAssociativity(symbol.SymbolNum(num)) {
			case AssocLeft:
				term.Associativity = "l"
			case AssocRight:
				term.Associativity = "r"
			}

			terms[num] = term
		}
	}

	var nonTerms []*NonTerminal
	{
		nonTermSyms := b.symTab.NonTerminalSymbols()
		nonTerms = make([]*NonTerminal, b.nonTermCount)
		for _, sym := range nonTermSyms {
			name, ok := b.symTab.ToText(sym)
			if !ok {
				return nil, fmt.Errorf("failed to generate non-terminals: symbol not found: %v", sym)
			}

			nonTerms[sym.Num()] = &NonTerminal{
				Number: sym.Num().Int(),
				Name:   name,
			}
		}
	}

	var prods []*Production
	{
		ps := gram.productionSet.getAllProductions()
		prods = make([]*Production, len(ps)+1)
		for _, p := range ps {
			rhs := make([]int, len(p.rhs))
			for i, e := range p.rhs {
				if e.IsTerminal() {
					rhs[i] = b.symTab.TerminalNum(e).Int()
				} else {
					rhs[i] = e.Num().Int() * -1
				}
			}

			prod := &Production{
				Number: p.num.Int(),
				LHS:    p.lhs.Num().Int(),
				RHS:    rhs,
			}

			prec := b.precAndAssoc.productionPredence(p.num)
			if prec != precNil {
				prod.Precedence = prec
			}

			switch b.precAndAssoc.productionAssociativity(p.num) {
			case AssocLeft:
				prod.Associativity = "l"
			case AssocRight:
				prod.Associativity = "r"
			}

			prods[p.num.Int()] = prod
		}
	}

	var states []*State
	{
		srConflicts := map[stateNum][]*shiftReduceConflict{}
		rrConflicts := map[stateNum][]*reduceReduceConflict{}
		for _, con := range b.conflicts {
			switch c := con.(type) {
			case *shiftReduceConflict:
				srConflicts[c.state] = append(srConflicts[c.state], c)
			case *reduceReduceConflict:
				rrConflicts[c.state] = append(rrConflicts[c.state], c)
			}
		}

		states = make([]*State, len(b.automaton.states))
		for _, s := range b.automaton.states {
			kernel := make([]*Item, len(s.core.items))
			for i, item := range s.core.items {
				p, ok := b.prods.findByID(item.prod)
				if !ok {
					return nil, fmt.Errorf("failed to generate states: production of kernel item not found: %v", item.prod)
				}

				kernel[i] = &Item{
					Production: p.num.Int(),
					Dot:        item.dot,
				}
			}

			sort.Slice(kernel, func(i, j int) bool {
				if kernel[i].Production != kernel[j].Production {
					return kernel[i].Production < kernel[j].Production
				}
				return kernel[i].Dot < kernel[j].Dot
			})

			var shift []*Transition
			var reduce []*Reduce
			var goTo []*Transition
			{
			TERMINALS_LOOP:
				for col := 1; col < b.termCount; col++ {
					act, n := tab.getAction(s.num, symbol.SymbolNum(col))
					switch act {
					case tables.ActionTypeShift, tables.ActionTypeShiftWithoutConsuming:
						shift = append(shift, &Transition{
							Symbol: col,
							State:  n,
						})
					case tables.ActionTypeReduce:
						for _, r := range reduce {
							if r.Production == n {
								r.LookAhead = append(r.LookAhead, col)
								continue TERMINALS_LOOP
							}
						}
						reduce = append(reduce, &Reduce{
							LookAhead:  []int{col},
							Production: n,
						})
					}
				}

				for col := 1; col < b.nonTermCount; col++ {
					next, ok := tab.getGoTo(s.num, symbol.SymbolNum(col))
					if ok {
						goTo = append(goTo, &Transition{
							Symbol: col,
							State:  next,
						})
					}
				}

				sort.Slice(shift, func(i, j int) bool {
					return shift[i].State < shift[j].State
				})
				sort.Slice(reduce, func(i, j int) bool {
					return reduce[i].Production < reduce[j].Production
				})
				sort.Slice(goTo, func(i, j int) bool {
					return goTo[i].State < goTo[j].State
				})
			}

			sr := []*SRConflict{}
			rr := []*RRConflict{}
			{
				for _, c := range srConflicts[s.num] {
					col := b.symTab.TerminalNum(c.sym)
					conflict := &SRConflict{
						Symbol:     col.Int(),
						State:      c.nextState.Int(),
						Production: c.prodNum.Int(),
						ResolvedBy: c.resolvedBy.Int(),
					}

					ty, n := tab.getAction(s.num, col)
					switch ty {
					case tables.ActionTypeShift, tables.ActionTypeShiftWithoutConsuming:
						conflict.AdoptedState = &n
					case tables.ActionTypeReduce:
						conflict.AdoptedProduction = &n
					}

					sr = append(sr, conflict)
				}

				sort.Slice(sr, func(i, j int) bool {
					return sr[i].Symbol < sr[j].Symbol
				})

				for _, c := range rrConflicts[s.num] {
					col := b.symTab.TerminalNum(c.sym)
					conflict := &RRConflict{
						Symbol:      col.Int(),
						Production1: c.prodNum1.Int(),
						Production2: c.prodNum2.Int(),
						ResolvedBy:  c.resolvedBy.Int(),
					}

					_, n := tab.getAction(s.num, col)
					conflict.AdoptedProduction = n

					rr = append(rr, conflict)
				}

				sort.Slice(rr, func(i, j int) bool {
					return rr[i].Symbol < rr[j].Symbol
				})
			}

			states[s.num.Int()] = &State{
				Number:     s.num.Int(),
				Kernel:     kernel,
				Shift:      shift,
				Reduce:     reduce,
				GoTo:       goTo,
				SRConflict: sr,
				RRConflict: rr,
			}
		}
	}

	return &Report{
		Terminals:    terms,
		NonTerminals: nonTerms,
		Productions:  prods,
		States:       states,
	}, nil
}
