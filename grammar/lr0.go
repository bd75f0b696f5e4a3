package grammar

import (
	"fmt"
	"sort"

	"github.com/grackle-lang/grackle/grammar/symbol"
)

type lrState struct {
	*kernel
	num       stateNum
	next      map[symbol.Symbol]kernelID
	reducible map[productionID]struct{}

	// predecessors holds the states that transition into this one. A state
	// has no predecessors iff it is an entry state.
	predecessors map[kernelID]struct{}

	// When isErrorTrapper is true, the state has an item with the dot before
	// the error symbol, like A → α・error β.
	isErrorTrapper bool
}

type lr0Automaton struct {
	// entryStates[i] is the kernel of the state the i-th start production
	// enters at. Entry states are numbered 0..len(entryStates)-1.
	entryStates []kernelID
	states      map[kernelID]*lrState
	byNum       []*lrState
}

func (a *lr0Automaton) stateByNum(num stateNum) *lrState {
	return a.byNum[num]
}

// genLR0Automaton builds the canonical LR(0) collection from one kernel per
// start production. States are discovered breadth-first and never retracted;
// the numbering is deterministic because neighbour kernels are ordered by
// their dotted symbols.
func genLR0Automaton(prods *productionSet, startSyms []symbol.Symbol) (*lr0Automaton, error) {
	if len(startSyms) == 0 {
		return nil, fmt.Errorf("at least one start symbol is required")
	}

	automaton := &lr0Automaton{
		states: map[kernelID]*lrState{},
	}

	currentState := stateNumInitial
	knownKernels := map[kernelID]struct{}{}
	uncheckedKernels := []*kernel{}
	predecessors := map[kernelID]map[kernelID]struct{}{}

	for _, startSym := range startSyms {
		if !startSym.IsStart() {
			return nil, fmt.Errorf("passed symbol is not a start symbol: %v", startSym)
		}
		ps, ok := prods.findByLHS(startSym)
		if !ok || len(ps) != 1 {
			return nil, fmt.Errorf("a start symbol must have exactly one production: %v", startSym)
		}
		initialItem, err := newLRItem(ps[0], 0)
		if err != nil {
			return nil, err
		}

		k, err := newKernel([]*lrItem{initialItem})
		if err != nil {
			return nil, err
		}

		automaton.entryStates = append(automaton.entryStates, k.id)
		knownKernels[k.id] = struct{}{}
		uncheckedKernels = append(uncheckedKernels, k)
	}

	for len(uncheckedKernels) > 0 {
		nextUncheckedKernels := []*kernel{}
		for _, k := range uncheckedKernels {
			state, neighbours, err := genStateAndNeighbourKernels(k, prods)
			if err != nil {
				return nil, err
			}
			state.num = currentState
			currentState = currentState.next()

			automaton.states[state.id] = state
			automaton.byNum = append(automaton.byNum, state)

			for _, neighbour := range neighbours {
				preds, ok := predecessors[neighbour.id]
				if !ok {
					preds = map[kernelID]struct{}{}
					predecessors[neighbour.id] = preds
				}
				preds[state.id] = struct{}{}

				if _, known := knownKernels[neighbour.id]; known {
					continue
				}
				knownKernels[neighbour.id] = struct{}{}
				nextUncheckedKernels = append(nextUncheckedKernels, neighbour)
			}
		}
		uncheckedKernels = nextUncheckedKernels
	}

	for id, preds := range predecessors {
		automaton.states[id].predecessors = preds
	}

	tracer().Debugf("LR(0) automaton has %d states (%d entry states)", len(automaton.byNum), len(automaton.entryStates))

	return automaton, nil
}

func genStateAndNeighbourKernels(k *kernel, prods *productionSet) (*lrState, []*kernel, error) {
	items, err := genLR0Closure(k.items, prods)
	if err != nil {
		return nil, nil, err
	}
	neighbours, err := genNeighbourKernels(items, prods)
	if err != nil {
		return nil, nil, err
	}

	next := map[symbol.Symbol]kernelID{}
	kernels := []*kernel{}
	for _, n := range neighbours {
		next[n.symbol] = n.kernel.id
		kernels = append(kernels, n.kernel)
	}

	reducible := map[productionID]struct{}{}
	isErrorTrapper := false
	for _, item := range items {
		if item.dottedSymbol.IsError() {
			isErrorTrapper = true
		}
		if item.reducible {
			reducible[item.prod] = struct{}{}
		}
	}

	return &lrState{
		kernel:         k,
		next:           next,
		reducible:      reducible,
		predecessors:   map[kernelID]struct{}{},
		isErrorTrapper: isErrorTrapper,
	}, kernels, nil
}

// genLR0Closure closes an item set: for every item A → α・B β with B a
// non-terminal it adds B →・γ for every production of B. Closing an already
// closed set returns it unchanged.
func genLR0Closure(srcItems []*lrItem, prods *productionSet) ([]*lrItem, error) {
	items := []*lrItem{}
	knownItems := map[lrItemID]struct{}{}
	uncheckedItems := []*lrItem{}
	for _, item := range srcItems {
		if _, exist := knownItems[item.id]; exist {
			continue
		}
		items = append(items, item)
		knownItems[item.id] = struct{}{}
		uncheckedItems = append(uncheckedItems, item)
	}
	for len(uncheckedItems) > 0 {
		nextUncheckedItems := []*lrItem{}
		for _, item := range uncheckedItems {
			if !item.dottedSymbol.IsNonTerminal() {
				continue
			}

			ps, _ := prods.findByLHS(item.dottedSymbol)
			for _, prod := range ps {
				newItem, err := newLRItem(prod, 0)
				if err != nil {
					return nil, err
				}
				if _, exist := knownItems[newItem.id]; exist {
					continue
				}
				items = append(items, newItem)
				knownItems[newItem.id] = struct{}{}
				nextUncheckedItems = append(nextUncheckedItems, newItem)
			}
		}
		uncheckedItems = nextUncheckedItems
	}

	return items, nil
}

type neighbourKernel struct {
	symbol symbol.Symbol
	kernel *kernel
}

func genNeighbourKernels(items []*lrItem, prods *productionSet) ([]*neighbourKernel, error) {
	kItemMap := map[symbol.Symbol][]*lrItem{}
	for _, item := range items {
		if item.dottedSymbol.IsNil() {
			continue
		}
		prod, ok := prods.findByID(item.prod)
		if !ok {
			return nil, fmt.Errorf("a production was not found: %v", item.prod)
		}
		kItem, err := newLRItem(prod, item.dot+1)
		if err != nil {
			return nil, err
		}
		kItemMap[item.dottedSymbol] = append(kItemMap[item.dottedSymbol], kItem)
	}

	nextSyms := make([]symbol.Symbol, 0, len(kItemMap))
	for sym := range kItemMap {
		nextSyms = append(nextSyms, sym)
	}
	sort.Slice(nextSyms, func(i, j int) bool {
		return nextSyms[i] < nextSyms[j]
	})

	kernels := make([]*neighbourKernel, 0, len(nextSyms))
	for _, sym := range nextSyms {
		k, err := newKernel(kItemMap[sym])
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, &neighbourKernel{
			symbol: sym,
			kernel: k,
		})
	}

	return kernels, nil
}
