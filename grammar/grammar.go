package grammar

import (
	"fmt"
	"strings"

	"github.com/grackle-lang/grackle/compressor"
	"github.com/grackle-lang/grackle/grammar/symbol"
	"github.com/grackle-lang/grackle/tables"
)

// Assoc is the associativity of a terminal symbol or a production.
type Assoc string

const (
	AssocNil   = Assoc("")
	AssocLeft  = Assoc("left")
	AssocRight = Assoc("right")
)

const (
	precNil = 0
	precMin = 1
)

// errorSymbolName is the RHS name that denotes the error pseudo-terminal in
// error-recovery productions, like stmt → error semi_colon.
const errorSymbolName = "error"

// precAndAssoc represents precedence and associativities of terminal symbols
// and productions.
type precAndAssoc struct {
	// termPrec and termAssoc represent the precedence of the terminal
	// symbols.
	termPrec  map[symbol.SymbolNum]int
	termAssoc map[symbol.SymbolNum]Assoc

	// prodPrec and prodAssoc represent the precedence and the
	// associativities of the productions. These values are inherited from
	// the right-most terminal symbols in the RHS of the productions, unless
	// a production overrides them explicitly.
	prodPrec  map[productionNum]int
	prodAssoc map[productionNum]Assoc
}

func (pa *precAndAssoc) terminalPrecedence(sym symbol.SymbolNum) int {
	prec, ok := pa.termPrec[sym]
	if !ok {
		return precNil
	}
	return prec
}

func (pa *precAndAssoc) terminalAssociativity(sym symbol.SymbolNum) Assoc {
	assoc, ok := pa.termAssoc[sym]
	if !ok {
		return AssocNil
	}
	return assoc
}

func (pa *precAndAssoc) productionPredence(prod productionNum) int {
	prec, ok := pa.prodPrec[prod]
	if !ok {
		return precNil
	}
	return prec
}

func (pa *precAndAssoc) productionAssociativity(prod productionNum) Assoc {
	assoc, ok := pa.prodAssoc[prod]
	if !ok {
		return AssocNil
	}
	return assoc
}

// Grammar is a context-free grammar ready to compile: symbols are interned,
// productions are numbered with the augmented start productions first, and
// precedence directives are resolved.
type Grammar struct {
	name          string
	productionSet *productionSet
	startSymbols  []symbol.Symbol
	errorSymbol   symbol.Symbol
	symbolTable   *symbol.SymbolTable
	precAndAssoc  *precAndAssoc
	declaredTerms []symbol.Symbol
}

func (g *Grammar) Name() string {
	return g.name
}

// SemanticActions returns the per-production semantic action closures,
// indexed by production number. Closures cannot travel with the serialized
// table bundle, so a driver receives them through this accessor.
func (g *Grammar) SemanticActions() []tables.SemanticAction {
	acts := make([]tables.SemanticAction, g.productionSet.count()+1)
	for _, p := range g.productionSet.getAllProductions() {
		acts[p.num] = p.action
	}
	return acts
}

// BuildErrors collects every defect found while building a grammar so a
// caller sees all of them at once.
type BuildErrors []error

func (e BuildErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%v errors occurred:", len(e))
	for _, err := range e {
		fmt.Fprintf(&b, "\n  %v", err)
	}
	return b.String()
}

type terminalDef struct {
	name  string
	prec  int
	assoc Assoc
}

type productionDef struct {
	lhs      string
	rhs      []string
	action   tables.SemanticAction
	precTerm string
}

type ProductionOption func(def *productionDef)

// WithAction attaches a semantic action to a production. Without one, a
// driver falls back to its default tree-building action.
func WithAction(action tables.SemanticAction) ProductionOption {
	return func(def *productionDef) {
		def.action = action
	}
}

// WithPrecedence makes a production take its precedence from the named
// terminal instead of the right-most terminal of its RHS.
func WithPrecedence(term string) ProductionOption {
	return func(def *productionDef) {
		def.precTerm = term
	}
}

// Builder assembles a grammar programmatically. Terminals may be declared up
// front, with or without precedence, or implicitly by appearing on a RHS
// without a production of their own.
type Builder struct {
	name      string
	precLevel int

	termDefs    []*terminalDef
	termsByName map[string]*terminalDef

	prodDefs []*productionDef
	startLHS []string

	errs BuildErrors
}

func NewBuilder(name string) *Builder {
	return &Builder{
		name:        name,
		termsByName: map[string]*terminalDef{},
	}
}

// Terminals declares terminal symbols without precedence.
func (b *Builder) Terminals(names ...string) {
	for _, name := range names {
		b.declareTerminal(name, precNil, AssocNil)
	}
}

// LeftAssoc declares left-associative terminals. Each call opens a new
// precedence level binding looser than all earlier levels.
func (b *Builder) LeftAssoc(names ...string) {
	b.precLevel++
	for _, name := range names {
		b.declareTerminal(name, b.precLevel, AssocLeft)
	}
}

// RightAssoc declares right-associative terminals on a new, looser precedence level.
func (b *Builder) RightAssoc(names ...string) {
	b.precLevel++
	for _, name := range names {
		b.declareTerminal(name, b.precLevel, AssocRight)
	}
}

// NonAssoc declares non-associative terminals on a new, looser precedence level.
func (b *Builder) NonAssoc(names ...string) {
	b.precLevel++
	for _, name := range names {
		b.declareTerminal(name, b.precLevel, AssocNil)
	}
}

func (b *Builder) declareTerminal(name string, prec int, assoc Assoc) {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("terminal symbols must be named"))
		return
	}
	if name == errorSymbolName {
		b.errs = append(b.errs, fmt.Errorf("'%v' is reserved for the error pseudo-terminal", name))
		return
	}
	if _, ok := b.termsByName[name]; ok {
		b.errs = append(b.errs, fmt.Errorf("terminal symbol '%v' is declared twice", name))
		return
	}
	def := &terminalDef{
		name:  name,
		prec:  prec,
		assoc: assoc,
	}
	b.termDefs = append(b.termDefs, def)
	b.termsByName[name] = def
}

// Production adds a production. The empty RHS declares an ε-production.
func (b *Builder) Production(lhs string, rhs []string, opts ...ProductionOption) {
	def := &productionDef{
		lhs: lhs,
		rhs: rhs,
	}
	for _, opt := range opts {
		opt(def)
	}
	b.prodDefs = append(b.prodDefs, def)
}

// Start marks a non-terminal as an entry point. A grammar may have several;
// each produces its own augmented start production and entry state.
func (b *Builder) Start(lhs string) {
	b.startLHS = append(b.startLHS, lhs)
}

func (b *Builder) Build() (*Grammar, error) {
	if b.name == "" {
		b.errs = append(b.errs, fmt.Errorf("the grammar must be named"))
	}
	if len(b.startLHS) == 0 {
		b.errs = append(b.errs, fmt.Errorf("the grammar needs at least one start symbol"))
	}

	lhsNames := map[string]struct{}{}
	for _, def := range b.prodDefs {
		if def.lhs == "" {
			b.errs = append(b.errs, fmt.Errorf("productions must have a named LHS"))
			continue
		}
		if def.lhs == errorSymbolName {
			b.errs = append(b.errs, fmt.Errorf("'%v' is reserved for the error pseudo-terminal", def.lhs))
			continue
		}
		lhsNames[def.lhs] = struct{}{}
	}
	seenStart := map[string]struct{}{}
	for _, lhs := range b.startLHS {
		if _, ok := seenStart[lhs]; ok {
			b.errs = append(b.errs, fmt.Errorf("start symbol '%v' is declared twice", lhs))
		}
		seenStart[lhs] = struct{}{}
		if _, ok := lhsNames[lhs]; !ok {
			b.errs = append(b.errs, fmt.Errorf("start symbol '%v' has no production", lhs))
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	symTab := symbol.NewSymbolTable()
	w := symTab.Writer()
	r := symTab.Reader()

	var startSyms []symbol.Symbol
	for _, lhs := range b.startLHS {
		sym, err := w.RegisterStartSymbol(lhs + "'")
		if err != nil {
			return nil, err
		}
		startSyms = append(startSyms, sym)
	}
	for _, def := range b.prodDefs {
		if _, err := w.RegisterNonTerminalSymbol(def.lhs); err != nil {
			return nil, err
		}
	}

	var declaredTerms []symbol.Symbol
	for _, def := range b.termDefs {
		if _, ok := lhsNames[def.name]; ok {
			b.errs = append(b.errs, fmt.Errorf("'%v' is declared as both a terminal and a non-terminal", def.name))
			continue
		}
		sym, err := w.RegisterTerminalSymbol(def.name)
		if err != nil {
			return nil, err
		}
		declaredTerms = append(declaredTerms, sym)
	}
	// Names used on a RHS without a production of their own become
	// terminals implicitly.
	for _, def := range b.prodDefs {
		for _, name := range def.rhs {
			if name == "" {
				b.errs = append(b.errs, fmt.Errorf("production '%v' has an unnamed RHS symbol", def.lhs))
				continue
			}
			if name == errorSymbolName {
				continue
			}
			if _, ok := lhsNames[name]; ok {
				continue
			}
			if _, ok := r.ToSymbol(name); ok {
				continue
			}
			sym, err := w.RegisterTerminalSymbol(name)
			if err != nil {
				return nil, err
			}
			declaredTerms = append(declaredTerms, sym)
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	prods := newProductionSet()
	for i, lhs := range b.startLHS {
		userLHS, _ := r.ToSymbol(lhs)
		p, err := newProduction(startSyms[i], []symbol.Symbol{userLHS}, nil)
		if err != nil {
			return nil, err
		}
		prods.append(p)
	}
	for _, def := range b.prodDefs {
		lhsSym, _ := r.ToSymbol(def.lhs)
		rhsSyms := make([]symbol.Symbol, len(def.rhs))
		for i, name := range def.rhs {
			if name == errorSymbolName {
				rhsSyms[i] = symbol.SymbolError
				continue
			}
			sym, _ := r.ToSymbol(name)
			rhsSyms[i] = sym
		}
		p, err := newProduction(lhsSym, rhsSyms, def.action)
		if err != nil {
			return nil, err
		}
		if !prods.append(p) {
			b.errs = append(b.errs, fmt.Errorf("production is duplicated: %v → %v", def.lhs, strings.Join(def.rhs, " ")))
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	pa, err := b.genPrecAndAssoc(r, prods)
	if err != nil {
		return nil, err
	}
	if pa == nil && len(b.errs) > 0 {
		return nil, b.errs
	}

	return &Grammar{
		name:          b.name,
		productionSet: prods,
		startSymbols:  startSyms,
		errorSymbol:   symbol.SymbolError,
		symbolTable:   symTab,
		precAndAssoc:  pa,
		declaredTerms: declaredTerms,
	}, nil
}

func (b *Builder) genPrecAndAssoc(r *symbol.SymbolTableReader, prods *productionSet) (*precAndAssoc, error) {
	termPrec := map[symbol.SymbolNum]int{}
	termAssoc := map[symbol.SymbolNum]Assoc{}
	for _, def := range b.termDefs {
		if def.prec == precNil {
			continue
		}
		sym, ok := r.ToSymbol(def.name)
		if !ok {
			return nil, fmt.Errorf("terminal symbol '%v' was not found in a symbol table", def.name)
		}
		termPrec[sym.Num()] = def.prec
		termAssoc[sym.Num()] = def.assoc
	}

	prodPrec := map[productionNum]int{}
	prodAssoc := map[productionNum]Assoc{}
	for _, def := range b.prodDefs {
		lhsSym, _ := r.ToSymbol(def.lhs)
		rhsSyms := make([]symbol.Symbol, len(def.rhs))
		for i, name := range def.rhs {
			if name == errorSymbolName {
				rhsSyms[i] = symbol.SymbolError
				continue
			}
			rhsSyms[i], _ = r.ToSymbol(name)
		}
		prod, ok := prods.findByID(genProductionID(lhsSym, rhsSyms))
		if !ok {
			return nil, fmt.Errorf("production not found: %v →", def.lhs)
		}

		var precSym symbol.Symbol
		if def.precTerm != "" {
			sym, ok := r.ToSymbol(def.precTerm)
			if !ok || !sym.IsTerminal() {
				b.errs = append(b.errs, fmt.Errorf("production '%v' takes precedence from '%v', which is not a terminal", def.lhs, def.precTerm))
				continue
			}
			precSym = sym
		} else {
			for i := len(rhsSyms) - 1; i >= 0; i-- {
				if rhsSyms[i].IsTerminal() {
					precSym = rhsSyms[i]
					break
				}
			}
		}
		if precSym.IsNil() {
			continue
		}
		if prec, ok := termPrec[precSym.Num()]; ok {
			prodPrec[prod.num] = prec
			prodAssoc[prod.num] = termAssoc[precSym.Num()]
		}
	}
	if len(b.errs) > 0 {
		return nil, nil
	}

	return &precAndAssoc{
		termPrec:  termPrec,
		termAssoc: termAssoc,
		prodPrec:  prodPrec,
		prodAssoc: prodAssoc,
	}, nil
}

type compileConfig struct {
	strategy           MergeStrategy
	isReportingEnabled bool
}

type CompileOption func(config *compileConfig)

// WithMergeStrategy selects how same-core states are merged. The default is
// Pager's weak compatibility.
func WithMergeStrategy(strategy MergeStrategy) CompileOption {
	return func(config *compileConfig) {
		config.strategy = strategy
	}
}

func EnableReporting() CompileOption {
	return func(config *compileConfig) {
		config.isReportingEnabled = true
	}
}

// Compile builds the parser tables for a grammar: the packed bundle a driver
// loads, the dense reference rendition the bundle is validated against, and,
// when enabled, a report describing states and conflicts.
func Compile(gram *Grammar, opts ...CompileOption) (*tables.Tables, *tables.Reference, *Report, error) {
	config := &compileConfig{
		strategy: MergePager,
	}
	for _, opt := range opts {
		opt(config)
	}

	reader := gram.symbolTable.Reader()

	terms, err := reader.TerminalTexts()
	if err != nil {
		return nil, nil, nil, err
	}
	nonTerms, err := reader.NonTerminalTexts()
	if err != nil {
		return nil, nil, nil, err
	}

	firstSet, err := genFirstSet(gram.productionSet)
	if err != nil {
		return nil, nil, nil, err
	}

	lr0, err := genLR0Automaton(gram.productionSet, gram.startSymbols)
	if err != nil {
		return nil, nil, nil, err
	}

	lr1, err := genLR1Automaton(lr0, gram.productionSet, firstSet, config.strategy)
	if err != nil {
		return nil, nil, nil, err
	}

	b := &lrTableBuilder{
		automaton:    lr1,
		prods:        gram.productionSet,
		termCount:    reader.TerminalNumCount(),
		nonTermCount: reader.NonTerminalNumCount(),
		symTab:       reader,
		precAndAssoc: gram.precAndAssoc,
	}
	ptab, err := b.build()
	if err != nil {
		return nil, nil, nil, err
	}

	var report *Report
	if config.isReportingEnabled {
		report, err = b.genReport(ptab, gram)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	entryStates := make([]int, len(ptab.entryStates))
	for i, s := range ptab.entryStates {
		entryStates[i] = s.Int()
	}
	startProds := make([]int, len(gram.startSymbols))
	for i, sym := range gram.startSymbols {
		ps, ok := gram.productionSet.findByLHS(sym)
		if !ok || len(ps) != 1 {
			return nil, nil, nil, fmt.Errorf("start symbol must have exactly one production: %v", sym)
		}
		startProds[i] = ps[0].num.Int()
	}

	prodCount := gram.productionSet.count() + 1
	lhs := make([]int, prodCount)
	rhsLens := make([]int, prodCount)
	for _, p := range gram.productionSet.getAllProductions() {
		lhs[p.num] = p.lhs.Num().Int()
		rhsLens[p.num] = p.rhsLen
	}

	kindToTerm := make([]int, len(gram.declaredTerms)+1)
	for i, sym := range gram.declaredTerms {
		kindToTerm[i+1] = reader.TerminalNum(sym).Int()
	}

	action := make([]int, len(ptab.actionTable))
	for i, e := range ptab.actionTable {
		action[i] = int(e)
	}
	goTo := make([]int, len(ptab.goToTable))
	for i, e := range ptab.goToTable {
		goTo[i] = int(e)
	}

	eofCol := reader.EOFNum().Int()
	eofAction := make([]int, ptab.stateCount)
	for row := 0; row < ptab.stateCount; row++ {
		eofAction[row] = int(ptab.readAction(row, eofCol))
	}
	errorBitmap, err := tables.NewBitTable(ptab.stateCount, ptab.terminalCount-1, func(row, col int) bool {
		return !ptab.readAction(row, col).IsEmpty()
	})
	if err != nil {
		return nil, nil, nil, err
	}

	actionMatrix, err := compressTable(action, ptab.stateCount, ptab.terminalCount)
	if err != nil {
		return nil, nil, nil, err
	}
	goToMatrix, err := compressTable(goTo, ptab.stateCount, ptab.nonTerminalCount)
	if err != nil {
		return nil, nil, nil, err
	}

	expected := make([][]int, ptab.stateCount)
	for row := 0; row < ptab.stateCount; row++ {
		var cols []int
		for col := 0; col < ptab.terminalCount; col++ {
			if !ptab.readAction(row, col).IsEmpty() {
				cols = append(cols, col)
			}
		}
		expected[row] = cols
	}

	tab := &tables.Tables{
		Name:               gram.name,
		StateCount:         ptab.stateCount,
		TerminalCount:      ptab.terminalCount,
		NonTerminalCount:   ptab.nonTerminalCount,
		ProductionCount:    prodCount,
		EntryStates:        entryStates,
		StartProductions:   startProds,
		EOFTerminal:        eofCol,
		ErrorTerminal:      reader.TerminalNum(gram.errorSymbol).Int(),
		DefaultReduction:   ptab.defaultReduction,
		ErrorBitmap:        errorBitmap,
		EOFAction:          eofAction,
		Action:             actionMatrix,
		GoTo:               goToMatrix,
		LHS:                lhs,
		RHSLengths:         rhsLens,
		ErrorTrapperStates: ptab.errorTrapperStates,
		Terminals:          terms,
		NonTerminals:       nonTerms,
		KindToTerminal:     kindToTerm,
	}
	if err := tab.Seal(); err != nil {
		return nil, nil, nil, err
	}

	ref := &tables.Reference{
		Name:               gram.name,
		StateCount:         ptab.stateCount,
		TerminalCount:      ptab.terminalCount,
		NonTerminalCount:   ptab.nonTerminalCount,
		ProductionCount:    prodCount,
		EntryStates:        entryStates,
		StartProductions:   startProds,
		EOFTerminal:        eofCol,
		ErrorTerminal:      reader.TerminalNum(gram.errorSymbol).Int(),
		DefaultReduction:   ptab.defaultReduction,
		Action:             action,
		GoTo:               goTo,
		LHS:                lhs,
		RHSLengths:         rhsLens,
		ErrorTrapperStates: ptab.errorTrapperStates,
		Terminals:          terms,
		NonTerminals:       nonTerms,
		KindToTerminal:     kindToTerm,
		ExpectedTerminals:  expected,
	}

	return tab, ref, report, nil
}

// compressTable squeezes a dense table with row displacement, then bit-packs
// the result into a fixed-width matrix.
func compressTable(entries []int, rowCount, colCount int) (*tables.PackedMatrix, error) {
	orig, err := compressor.NewOriginalTable(entries, colCount)
	if err != nil {
		return nil, err
	}
	rd := compressor.NewRowDisplacementTable(0)
	if err := rd.Compress(orig); err != nil {
		return nil, err
	}
	return tables.NewPackedMatrix(rowCount, colCount, rd.EmptyValue, rd.Entries, rd.Bounds, rd.RowDisplacement)
}
