package grammar

import (
	"fmt"
	"sort"

	"github.com/grackle-lang/grackle/grammar/symbol"
)

// MergeStrategy selects how same-core LR(1) states are combined during
// construction.
type MergeStrategy string

const (
	// MergeLALR keeps a single state per LR(0) core and always unions
	// lookaheads, like a classic LALR(1) generator. Merging can introduce
	// reduce/reduce conflicts absent from every constituent state.
	MergeLALR = MergeStrategy("lalr")

	// MergePager unions same-core states only while they stay weakly
	// compatible, splitting otherwise. The automaton stays close to LALR
	// size without manufacturing conflicts.
	MergePager = MergeStrategy("pager")

	// MergeCanonical merges only states with pointwise-equal lookaheads,
	// yielding the full canonical LR(1) collection.
	MergeCanonical = MergeStrategy("canonical")
)

type symbolSet map[symbol.Symbol]struct{}

func newSymbolSet(syms ...symbol.Symbol) symbolSet {
	s := symbolSet{}
	for _, sym := range syms {
		s[sym] = struct{}{}
	}
	return s
}

func (s symbolSet) has(sym symbol.Symbol) bool {
	_, ok := s[sym]
	return ok
}

func (s symbolSet) union(o symbolSet) bool {
	changed := false
	for sym := range o {
		if _, ok := s[sym]; !ok {
			s[sym] = struct{}{}
			changed = true
		}
	}
	return changed
}

func (s symbolSet) intersects(o symbolSet) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for sym := range small {
		if _, ok := large[sym]; ok {
			return true
		}
	}
	return false
}

func (s symbolSet) subsetOf(o symbolSet) bool {
	for sym := range s {
		if _, ok := o[sym]; !ok {
			return false
		}
	}
	return true
}

func (s symbolSet) equal(o symbolSet) bool {
	return len(s) == len(o) && s.subsetOf(o)
}

func (s symbolSet) clone() symbolSet {
	c := make(symbolSet, len(s))
	for sym := range s {
		c[sym] = struct{}{}
	}
	return c
}

func (s symbolSet) sorted() []symbol.Symbol {
	syms := make([]symbol.Symbol, 0, len(s))
	for sym := range s {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i] < syms[j]
	})
	return syms
}

// lookaheadAssignment maps the kernel items of one LR(0) core to concrete
// lookahead terminal sets. An LR(1) state is a core plus an assignment.
type lookaheadAssignment map[lrItemID]symbolSet

func (a lookaheadAssignment) at(id lrItemID) symbolSet {
	if s, ok := a[id]; ok {
		return s
	}
	return symbolSet{}
}

func (a lookaheadAssignment) equal(o lookaheadAssignment) bool {
	if len(a) != len(o) {
		return false
	}
	for id, s := range a {
		if !s.equal(o.at(id)) {
			return false
		}
	}
	return true
}

// subsume reports whether a is pointwise a superset of o. It is a partial
// order on same-core assignments, unlike the arbitrary total order used for
// deduplication bookkeeping.
func (a lookaheadAssignment) subsume(o lookaheadAssignment) bool {
	for id, s := range o {
		if !s.subsetOf(a.at(id)) {
			return false
		}
	}
	return true
}

func (a lookaheadAssignment) union(o lookaheadAssignment) bool {
	changed := false
	for id, s := range o {
		dst, ok := a[id]
		if !ok {
			dst = symbolSet{}
			a[id] = dst
		}
		if dst.union(s) {
			changed = true
		}
	}
	return changed
}

// restrict intersects every lookahead set with the given terminal subset.
// It is used to project an automaton onto a reduced token alphabet.
func (a lookaheadAssignment) restrict(allowed symbolSet) {
	for _, s := range a {
		for sym := range s {
			if !allowed.has(sym) {
				delete(s, sym)
			}
		}
	}
}

func (a lookaheadAssignment) clone() lookaheadAssignment {
	c := make(lookaheadAssignment, len(a))
	for id, s := range a {
		c[id] = s.clone()
	}
	return c
}

type lr1State struct {
	core *lrState
	num  stateNum

	lookahead lookaheadAssignment

	next map[symbol.Symbol]*lr1State

	// reducibleLA maps each reducible production of the closed state to the
	// terminals it may be reduced on. Filled once construction has
	// converged.
	reducibleLA map[productionID]symbolSet
}

func newLR1State(core *lrState, la lookaheadAssignment) *lr1State {
	return &lr1State{
		core:      core,
		lookahead: la,
		next:      map[symbol.Symbol]*lr1State{},
	}
}

func (s *lr1State) equal(o *lr1State) bool {
	return s.core == o.core && s.lookahead.equal(o.lookahead)
}

func (s *lr1State) subsume(o *lr1State) bool {
	return s.core == o.core && s.lookahead.subsume(o.lookahead)
}

// compatible implements Pager's weak-compatibility test: two same-core
// states may merge when, for every pair of distinct kernel items, their
// lookahead sets either do not cross-intersect or already intersect within
// one of the states. A merge refused by this test would introduce a
// reduce/reduce conflict that neither constituent state has.
func (s *lr1State) compatible(o *lr1State) bool {
	if s.core != o.core {
		return false
	}
	items := s.core.items
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			si := s.lookahead.at(items[i].id)
			sj := s.lookahead.at(items[j].id)
			ti := o.lookahead.at(items[i].id)
			tj := o.lookahead.at(items[j].id)
			if !si.intersects(tj) && !sj.intersects(ti) {
				continue
			}
			if si.intersects(sj) || ti.intersects(tj) {
				continue
			}
			return false
		}
	}
	return true
}

// eosCompatible reports whether merging introduces no new conflict on the
// end-of-stream pseudo-token.
func (s *lr1State) eosCompatible(o *lr1State) bool {
	if s.core != o.core {
		return false
	}
	return !s.newConflictOn(o, symbol.SymbolEOF)
}

// errorCompatible reports whether merging creates no spurious reduction on
// the error token: every reducible kernel item must treat the error token
// the same way in both states.
func (s *lr1State) errorCompatible(o *lr1State) bool {
	if s.core != o.core {
		return false
	}
	for _, item := range s.core.items {
		if !item.reducible {
			continue
		}
		inS := s.lookahead.at(item.id).has(symbol.SymbolError)
		inO := o.lookahead.at(item.id).has(symbol.SymbolError)
		if inS != inO {
			return false
		}
	}
	return true
}

func (s *lr1State) newConflictOn(o *lr1State, sym symbol.Symbol) bool {
	items := s.core.items
	for i := 0; i < len(items); i++ {
		if !items[i].reducible {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if !items[j].reducible {
				continue
			}
			si := s.lookahead.at(items[i].id).has(sym)
			sj := s.lookahead.at(items[j].id).has(sym)
			ti := o.lookahead.at(items[i].id).has(sym)
			tj := o.lookahead.at(items[j].id).has(sym)
			united := (si || ti) && (sj || tj)
			existing := (si && sj) || (ti && tj)
			if united && !existing {
				return true
			}
		}
	}
	return false
}

// union merges o's lookaheads into s pointwise and reports growth.
func (s *lr1State) union(o *lr1State) bool {
	return s.lookahead.union(o.lookahead)
}

type lr1Automaton struct {
	strategy    MergeStrategy
	entryStates []*lr1State
	states      []*lr1State
}

func (a *lr1Automaton) stateCount() int {
	return len(a.states)
}

// restrict returns a copy of the automaton whose lookahead sets are
// intersected with the given terminal subset. The state graph is unchanged.
func (a *lr1Automaton) restrict(allowed symbolSet) *lr1Automaton {
	copies := make([]*lr1State, len(a.states))
	for i, s := range a.states {
		c := newLR1State(s.core, s.lookahead.clone())
		c.num = s.num
		c.lookahead.restrict(allowed)
		c.reducibleLA = map[productionID]symbolSet{}
		for prod, la := range s.reducibleLA {
			restricted := la.clone()
			for sym := range restricted {
				if !allowed.has(sym) {
					delete(restricted, sym)
				}
			}
			c.reducibleLA[prod] = restricted
		}
		copies[i] = c
	}
	for i, s := range a.states {
		for sym, t := range s.next {
			copies[i].next[sym] = copies[t.num]
		}
	}
	entries := make([]*lr1State, len(a.entryStates))
	for i, s := range a.entryStates {
		entries[i] = copies[s.num]
	}
	return &lr1Automaton{
		strategy:    a.strategy,
		entryStates: entries,
		states:      copies,
	}
}

type lr1ClosureItem struct {
	item *lrItem
	la   symbolSet
}

// genLR1Closure closes a kernel under concrete lookaheads: an item
// A → α・B β with lookahead set L contributes FIRST(β), plus L when β is
// nullable, to every item B →・γ.
func genLR1Closure(kItems []*lrItem, las lookaheadAssignment, prods *productionSet, first *firstSet) (map[lrItemID]*lr1ClosureItem, error) {
	closure := map[lrItemID]*lr1ClosureItem{}
	var unchecked []*lr1ClosureItem
	for _, item := range kItems {
		ci := &lr1ClosureItem{
			item: item,
			la:   las.at(item.id).clone(),
		}
		closure[item.id] = ci
		unchecked = append(unchecked, ci)
	}

	for len(unchecked) > 0 {
		var nextUnchecked []*lr1ClosureItem
		for _, ci := range unchecked {
			if !ci.item.dottedSymbol.IsNonTerminal() {
				continue
			}

			prod, ok := prods.findByID(ci.item.prod)
			if !ok {
				return nil, fmt.Errorf("production not found: %v", ci.item.prod)
			}

			fst, err := first.find(prod, ci.item.dot+1)
			if err != nil {
				return nil, err
			}
			la := symbolSet{}
			for sym := range fst.symbols {
				la[sym] = struct{}{}
			}
			if fst.empty {
				la.union(ci.la)
			}

			ps, _ := prods.findByLHS(ci.item.dottedSymbol)
			for _, p := range ps {
				newItem, err := newLRItem(p, 0)
				if err != nil {
					return nil, err
				}
				dst, ok := closure[newItem.id]
				if !ok {
					dst = &lr1ClosureItem{
						item: newItem,
						la:   symbolSet{},
					}
					closure[newItem.id] = dst
				}
				if dst.la.union(la) {
					nextUnchecked = append(nextUnchecked, dst)
				}
			}
		}
		unchecked = nextUnchecked
	}

	return closure, nil
}

// genLR1Automaton lifts the LR(0) skeleton to LR(1). Lookahead sets are
// seeded with EOF on each entry state's start item and solved as a monotone
// set-union fixpoint over a worklist; every goto target is merged into an
// existing same-core state or split off according to the strategy.
func genLR1Automaton(lr0 *lr0Automaton, prods *productionSet, first *firstSet, strategy MergeStrategy) (*lr1Automaton, error) {
	switch strategy {
	case MergeLALR, MergePager, MergeCanonical:
	default:
		return nil, fmt.Errorf("unknown merge strategy: %v", strategy)
	}

	automaton := &lr1Automaton{
		strategy: strategy,
	}

	byCore := map[stateNum][]*lr1State{}
	var worklist []*lr1State
	queued := map[*lr1State]struct{}{}
	enqueue := func(s *lr1State) {
		if _, ok := queued[s]; ok {
			return
		}
		queued[s] = struct{}{}
		worklist = append(worklist, s)
	}

	for _, kID := range lr0.entryStates {
		core := lr0.states[kID]
		la := lookaheadAssignment{
			core.items[0].id: newSymbolSet(symbol.SymbolEOF),
		}
		s := newLR1State(core, la)
		byCore[core.num] = append(byCore[core.num], s)
		automaton.entryStates = append(automaton.entryStates, s)
		enqueue(s)
	}

	for len(worklist) > 0 {
		s := worklist[0]
		worklist = worklist[1:]
		delete(queued, s)

		closure, err := genLR1Closure(s.core.items, s.lookahead, prods, first)
		if err != nil {
			return nil, err
		}

		// Deterministic successor order.
		syms := make([]symbol.Symbol, 0, len(s.core.next))
		for sym := range s.core.next {
			syms = append(syms, sym)
		}
		sort.Slice(syms, func(i, j int) bool {
			return syms[i] < syms[j]
		})

		for _, sym := range syms {
			targetCore := lr0.states[s.core.next[sym]]

			succLA := lookaheadAssignment{}
			for _, ci := range closure {
				if ci.item.dottedSymbol != sym {
					continue
				}
				prod, ok := prods.findByID(ci.item.prod)
				if !ok {
					return nil, fmt.Errorf("production not found: %v", ci.item.prod)
				}
				advanced, err := newLRItem(prod, ci.item.dot+1)
				if err != nil {
					return nil, err
				}
				dst, ok := succLA[advanced.id]
				if !ok {
					dst = symbolSet{}
					succLA[advanced.id] = dst
				}
				dst.union(ci.la)
			}

			target, grew := resolveGoTo(byCore, targetCore, succLA, strategy)
			if target == nil {
				target = newLR1State(targetCore, succLA.clone())
				byCore[targetCore.num] = append(byCore[targetCore.num], target)
				enqueue(target)
			} else if grew {
				enqueue(target)
			}
			s.next[sym] = target
		}
	}

	if err := finishLR1Automaton(automaton, byCore, prods, first); err != nil {
		return nil, err
	}

	tracer().Debugf("LR(1) automaton has %d states under strategy %v", len(automaton.states), strategy)

	return automaton, nil
}

// resolveGoTo picks the LR(1) state a goto edge should lead to: an existing
// same-core state the successor assignment may merge into, or nil when a new
// state must be split off. The boolean reports whether the chosen state's
// lookaheads grew.
func resolveGoTo(byCore map[stateNum][]*lr1State, targetCore *lrState, succLA lookaheadAssignment, strategy MergeStrategy) (*lr1State, bool) {
	candidates := byCore[targetCore.num]

	switch strategy {
	case MergeLALR:
		if len(candidates) > 0 {
			t := candidates[0]
			return t, t.lookahead.union(succLA)
		}
	case MergeCanonical:
		for _, t := range candidates {
			if t.lookahead.equal(succLA) {
				return t, false
			}
		}
	case MergePager:
		probe := newLR1State(targetCore, succLA)
		for _, t := range candidates {
			if t.lookahead.subsume(succLA) {
				return t, false
			}
		}
		for _, t := range candidates {
			if t.compatible(probe) && t.eosCompatible(probe) && t.errorCompatible(probe) {
				return t, t.lookahead.union(succLA)
			}
		}
	}

	return nil, false
}

// finishLR1Automaton numbers the states breadth-first from the entry states
// and computes each state's per-production reduction lookaheads from its
// closure.
func finishLR1Automaton(automaton *lr1Automaton, byCore map[stateNum][]*lr1State, prods *productionSet, first *firstSet) error {
	visited := map[*lr1State]struct{}{}
	queue := append([]*lr1State{}, automaton.entryStates...)
	for _, s := range queue {
		visited[s] = struct{}{}
	}
	num := stateNumInitial
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		s.num = num
		num = num.next()
		automaton.states = append(automaton.states, s)

		syms := make([]symbol.Symbol, 0, len(s.next))
		for sym := range s.next {
			syms = append(syms, sym)
		}
		sort.Slice(syms, func(i, j int) bool {
			return syms[i] < syms[j]
		})
		for _, sym := range syms {
			t := s.next[sym]
			if _, ok := visited[t]; ok {
				continue
			}
			visited[t] = struct{}{}
			queue = append(queue, t)
		}
	}

	for _, s := range automaton.states {
		closure, err := genLR1Closure(s.core.items, s.lookahead, prods, first)
		if err != nil {
			return err
		}
		s.reducibleLA = map[productionID]symbolSet{}
		for _, ci := range closure {
			if !ci.item.reducible {
				continue
			}
			dst, ok := s.reducibleLA[ci.item.prod]
			if !ok {
				dst = symbolSet{}
				s.reducibleLA[ci.item.prod] = dst
			}
			dst.union(ci.la)
		}
	}

	return nil
}
