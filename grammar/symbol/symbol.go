package symbol

import (
	"fmt"
	"sort"
)

type symbolKind string

const (
	symbolKindNonTerminal = symbolKind("non-terminal")
	symbolKindTerminal    = symbolKind("terminal")
)

func (t symbolKind) String() string {
	return string(t)
}

type SymbolNum uint16

func (n SymbolNum) Int() int {
	return int(n)
}

type Symbol uint16

func (s Symbol) String() string {
	kind, isStart, isEOF, num := s.describe()
	var prefix string
	switch {
	case isStart:
		prefix = "s"
	case isEOF:
		prefix = "e"
	case kind == symbolKindNonTerminal:
		prefix = "n"
	case kind == symbolKindTerminal:
		prefix = "t"
	default:
		prefix = "?"
	}
	return fmt.Sprintf("%v%v", prefix, num)
}

const (
	maskKindPart    = uint16(0x8000) // 1000 0000 0000 0000
	maskNonTerminal = uint16(0x0000) // 0000 0000 0000 0000
	maskTerminal    = uint16(0x8000) // 1000 0000 0000 0000

	maskSubKindPart    = uint16(0x4000) // 0100 0000 0000 0000
	maskNonStartAndEOF = uint16(0x0000) // 0000 0000 0000 0000
	maskStartOrEOF     = uint16(0x4000) // 0100 0000 0000 0000

	maskNumberPart = uint16(0x3fff) // 0011 1111 1111 1111

	SymbolNil = Symbol(0) // 0000 0000 0000 0000

	// The EOF symbol is treated as a terminal symbol. Its dense number is not
	// encoded in the symbol itself; a reader assigns it the largest terminal
	// number so that per-terminal tables can elide the EOF column.
	SymbolEOF = Symbol(maskTerminal | maskStartOrEOF | 0x0001) // 1100 0000 0000 0001

	// The error pseudo-terminal is pre-registered and always receives the
	// smallest terminal number.
	SymbolError = Symbol(maskTerminal | 0x0001) // 1000 0000 0000 0001

	// The symbol names contain `<` and `>` to avoid conflicting with user-defined symbols.
	symbolNameEOF   = "<eof>"
	symbolNameError = "<error>"

	nonTerminalNumMin = SymbolNum(1)
	terminalNumMin    = SymbolNum(2) // The number 1 is used by the error symbol.
	symbolNumMax      = SymbolNum(0xffff) >> 2
)

func newSymbol(kind symbolKind, isStart bool, num SymbolNum) (Symbol, error) {
	if num > symbolNumMax {
		return SymbolNil, fmt.Errorf("a symbol number exceeds the limit; limit: %v, passed: %v", symbolNumMax, num)
	}
	if kind == symbolKindTerminal && isStart {
		return SymbolNil, fmt.Errorf("a start symbol must be a non-terminal symbol")
	}

	kindMask := maskNonTerminal
	if kind == symbolKindTerminal {
		kindMask = maskTerminal
	}
	startMask := maskNonStartAndEOF
	if isStart {
		startMask = maskStartOrEOF
	}
	return Symbol(kindMask | startMask | uint16(num)), nil
}

// Num returns the dense number encoded in the symbol. The EOF symbol's number
// must be resolved through a SymbolTableReader instead.
func (s Symbol) Num() SymbolNum {
	_, _, _, num := s.describe()
	return num
}

func (s Symbol) Byte() []byte {
	if s.IsNil() {
		return []byte{0, 0}
	}
	return []byte{byte(uint16(s) >> 8), byte(uint16(s) & 0x00ff)}
}

func (s Symbol) IsNil() bool {
	_, _, _, num := s.describe()
	return num == 0
}

func (s Symbol) IsStart() bool {
	if s.IsNil() {
		return false
	}
	_, isStart, _, _ := s.describe()
	return isStart
}

func (s Symbol) IsEOF() bool {
	if s.IsNil() {
		return false
	}
	_, _, isEOF, _ := s.describe()
	return isEOF
}

func (s Symbol) IsError() bool {
	return s == SymbolError
}

func (s Symbol) IsNonTerminal() bool {
	if s.IsNil() {
		return false
	}
	kind, _, _, _ := s.describe()
	return kind == symbolKindNonTerminal
}

func (s Symbol) IsTerminal() bool {
	if s.IsNil() {
		return false
	}
	return !s.IsNonTerminal()
}

func (s Symbol) describe() (symbolKind, bool, bool, SymbolNum) {
	kind := symbolKindNonTerminal
	if uint16(s)&maskKindPart > 0 {
		kind = symbolKindTerminal
	}
	isStart := false
	isEOF := false
	if uint16(s)&maskSubKindPart > 0 {
		if kind == symbolKindNonTerminal {
			isStart = true
		} else {
			isEOF = true
		}
	}
	num := SymbolNum(uint16(s) & maskNumberPart)
	return kind, isStart, isEOF, num
}

type SymbolTable struct {
	text2Sym     map[string]Symbol
	sym2Text     map[Symbol]string
	nonTermTexts []string
	termTexts    []string
	nonTermNum   SymbolNum
	termNum      SymbolNum
}

type SymbolTableWriter struct {
	*SymbolTable
}

type SymbolTableReader struct {
	*SymbolTable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		text2Sym: map[string]Symbol{
			symbolNameEOF:   SymbolEOF,
			symbolNameError: SymbolError,
		},
		sym2Text: map[Symbol]string{
			SymbolEOF:   symbolNameEOF,
			SymbolError: symbolNameError,
		},
		termTexts: []string{
			"",              // Nil
			symbolNameError, // Error
		},
		nonTermTexts: []string{
			"", // Nil
		},
		nonTermNum: nonTerminalNumMin,
		termNum:    terminalNumMin,
	}
}

func (t *SymbolTable) Writer() *SymbolTableWriter {
	return &SymbolTableWriter{
		SymbolTable: t,
	}
}

func (t *SymbolTable) Reader() *SymbolTableReader {
	return &SymbolTableReader{
		SymbolTable: t,
	}
}

// RegisterStartSymbol registers an augmented start symbol. A grammar may have
// multiple start symbols, one per entry point.
func (w *SymbolTableWriter) RegisterStartSymbol(text string) (Symbol, error) {
	return w.register(symbolKindNonTerminal, true, text)
}

func (w *SymbolTableWriter) RegisterNonTerminalSymbol(text string) (Symbol, error) {
	return w.register(symbolKindNonTerminal, false, text)
}

func (w *SymbolTableWriter) RegisterTerminalSymbol(text string) (Symbol, error) {
	return w.register(symbolKindTerminal, false, text)
}

func (w *SymbolTableWriter) register(kind symbolKind, isStart bool, text string) (Symbol, error) {
	if sym, ok := w.text2Sym[text]; ok {
		return sym, nil
	}

	num := w.nonTermNum
	if kind == symbolKindTerminal {
		num = w.termNum
	}
	sym, err := newSymbol(kind, isStart, num)
	if err != nil {
		return SymbolNil, err
	}

	if kind == symbolKindTerminal {
		w.termNum++
		w.termTexts = append(w.termTexts, text)
	} else {
		w.nonTermNum++
		w.nonTermTexts = append(w.nonTermTexts, text)
	}
	w.text2Sym[text] = sym
	w.sym2Text[sym] = text
	return sym, nil
}

func (r *SymbolTableReader) ToSymbol(text string) (Symbol, bool) {
	if sym, ok := r.text2Sym[text]; ok {
		return sym, true
	}
	return SymbolNil, false
}

func (r *SymbolTableReader) ToText(sym Symbol) (string, bool) {
	text, ok := r.sym2Text[sym]
	return text, ok
}

// EOFNum returns the dense number of the EOF symbol. It is one past the last
// registered terminal, which makes it the largest terminal number in the
// table.
func (r *SymbolTableReader) EOFNum() SymbolNum {
	return r.termNum
}

// TerminalNum resolves a terminal symbol to its dense number, including the
// EOF symbol.
func (r *SymbolTableReader) TerminalNum(sym Symbol) SymbolNum {
	if sym.IsEOF() {
		return r.EOFNum()
	}
	return sym.Num()
}

// TerminalNumCount returns the number of terminal columns a per-terminal
// table needs: the nil slot, the error symbol, all registered terminals, and
// the trailing EOF slot.
func (r *SymbolTableReader) TerminalNumCount() int {
	return r.termNum.Int() + 1
}

// NonTerminalNumCount returns the number of non-terminal columns a
// per-non-terminal table needs, including the nil slot.
func (r *SymbolTableReader) NonTerminalNumCount() int {
	return r.nonTermNum.Int()
}

func (r *SymbolTableReader) TerminalSymbols() []Symbol {
	syms := make([]Symbol, 0, r.termNum.Int()-terminalNumMin.Int())
	for sym := range r.sym2Text {
		if !sym.IsTerminal() || sym.IsNil() || sym.IsEOF() {
			continue
		}
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i] < syms[j]
	})
	return syms
}

// TerminalTexts returns the terminal names indexed by their dense numbers.
// The last entry is always the EOF symbol.
func (r *SymbolTableReader) TerminalTexts() ([]string, error) {
	if r.termNum == terminalNumMin {
		return nil, fmt.Errorf("symbol table has no terminals")
	}
	texts := make([]string, len(r.termTexts)+1)
	copy(texts, r.termTexts)
	texts[len(texts)-1] = symbolNameEOF
	return texts, nil
}

func (r *SymbolTableReader) NonTerminalSymbols() []Symbol {
	syms := make([]Symbol, 0, r.nonTermNum.Int()-nonTerminalNumMin.Int())
	for sym := range r.sym2Text {
		if !sym.IsNonTerminal() || sym.IsNil() {
			continue
		}
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i] < syms[j]
	})
	return syms
}

func (r *SymbolTableReader) NonTerminalTexts() ([]string, error) {
	if r.nonTermNum == nonTerminalNumMin {
		return nil, fmt.Errorf("symbol table has no non-terminals")
	}
	return r.nonTermTexts, nil
}
