// Package tables defines the compiled, read-only table bundle a parser
// driver executes, along with the integer-packing primitives the bundle is
// encoded with. A bundle is produced once per grammar and never mutated.
package tables

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cnf/structhash"
)

// SemanticAction produces the semantic value of a reduction from the values
// of the RHS symbols, in grammar order. Actions are opaque callables and are
// not part of the serialized bundle.
type SemanticAction func(values []any) any

// ActionType identifies the kind of a parse action.
type ActionType string

const (
	ActionTypeError ActionType = "error"
	ActionTypeShift ActionType = "shift"

	// ActionTypeShiftWithoutConsuming shifts a token onto the stack without
	// advancing the input. Only the error pseudo-terminal is shifted this
	// way.
	ActionTypeShiftWithoutConsuming ActionType = "shift-without-consuming"

	ActionTypeReduce ActionType = "reduce"
)

// ActionEntry is an encoded action-table cell. The low two bits carry the
// action kind, the remaining bits the operand, so every entry is a small
// nonnegative integer:
//
//	0               | error (no action)
//	state<<2 | 1    | shift and consume
//	state<<2 | 2    | shift without consuming
//	prod<<2  | 3    | reduce
type ActionEntry int

const ActionEntryEmpty = ActionEntry(0)

func NewShiftActionEntry(state int, consume bool) ActionEntry {
	if consume {
		return ActionEntry(state<<2 | 1)
	}
	return ActionEntry(state<<2 | 2)
}

func NewReduceActionEntry(prod int) ActionEntry {
	return ActionEntry(prod<<2 | 3)
}

func (e ActionEntry) IsEmpty() bool {
	return e == ActionEntryEmpty
}

func (e ActionEntry) Describe() (ActionType, int) {
	switch e & 3 {
	case 1:
		return ActionTypeShift, int(e >> 2)
	case 2:
		return ActionTypeShiftWithoutConsuming, int(e >> 2)
	case 3:
		return ActionTypeReduce, int(e >> 2)
	default:
		return ActionTypeError, 0
	}
}

// A goto-table cell is 0 when undefined and 1+state otherwise. An undefined
// cell is never consulted after a well-formed reduction; reading one reveals
// broken tables, not a user error.
type GoToEntry int

const GoToEntryEmpty = GoToEntry(0)

func NewGoToEntry(state int) GoToEntry {
	return GoToEntry(state + 1)
}

func (e GoToEntry) Describe() (int, bool) {
	if e == GoToEntryEmpty {
		return 0, false
	}
	return int(e) - 1, true
}

// PackedInts is a fixed-width bit packing of small nonnegative integers. The
// width is recorded once for the whole array and is sized to the largest
// value present, so decoding a single element is O(1).
type PackedInts struct {
	Len   int      `json:"len"`
	Width int      `json:"width"`
	Words []uint64 `json:"words"`
}

func PackInts(vals []int) (*PackedInts, error) {
	max := 0
	for i, v := range vals {
		if v < 0 {
			return nil, fmt.Errorf("packed values must be nonnegative; index: %v, value: %v", i, v)
		}
		if v > max {
			max = v
		}
	}
	width := 1
	for max>>width > 0 {
		width++
	}

	words := make([]uint64, (len(vals)*width+63)/64)
	for i, v := range vals {
		bitPos := i * width
		w := bitPos >> 6
		off := uint(bitPos & 63)
		words[w] |= uint64(v) << off
		if off+uint(width) > 64 {
			words[w+1] |= uint64(v) >> (64 - off)
		}
	}

	return &PackedInts{
		Len:   len(vals),
		Width: width,
		Words: words,
	}, nil
}

func (p *PackedInts) At(i int) int {
	bitPos := i * p.Width
	w := bitPos >> 6
	off := uint(bitPos & 63)
	v := p.Words[w] >> off
	if off+uint(p.Width) > 64 {
		v |= p.Words[w+1] << (64 - off)
	}
	return int(v & (1<<uint(p.Width) - 1))
}

// Unpack restores the original slice. It is the inverse of PackInts.
func (p *PackedInts) Unpack() []int {
	vals := make([]int, p.Len)
	for i := range vals {
		vals[i] = p.At(i)
	}
	return vals
}

// BitTable is a packed rows×cols bitmap.
type BitTable struct {
	RowCount int         `json:"row_count"`
	ColCount int         `json:"col_count"`
	Bits     *PackedInts `json:"bits"`
}

func NewBitTable(rowCount, colCount int, set func(row, col int) bool) (*BitTable, error) {
	bits := make([]int, rowCount*colCount)
	for row := 0; row < rowCount; row++ {
		for col := 0; col < colCount; col++ {
			if set(row, col) {
				bits[row*colCount+col] = 1
			}
		}
	}
	packed, err := PackInts(bits)
	if err != nil {
		return nil, err
	}
	return &BitTable{
		RowCount: rowCount,
		ColCount: colCount,
		Bits:     packed,
	}, nil
}

func (t *BitTable) IsSet(row, col int) bool {
	return t.Bits.At(row*t.ColCount+col) != 0
}

// PackedMatrix is a sparse matrix compacted by row displacement and then
// bit-packed. Bounds carries 1+row for every genuinely occupied cell, so a
// displaced lookup can tell true entries from overlap filler: filler is never
// observable except through the defined/undefined tag.
type PackedMatrix struct {
	RowCount        int         `json:"row_count"`
	ColCount        int         `json:"col_count"`
	EmptyValue      int         `json:"empty_value"`
	Entries         *PackedInts `json:"entries"`
	Bounds          *PackedInts `json:"bounds"`
	RowDisplacement []int       `json:"row_displacement"`
}

func NewPackedMatrix(rowCount, colCount, emptyValue int, entries, bounds, rowDisplacement []int) (*PackedMatrix, error) {
	if len(entries) != len(bounds) {
		return nil, fmt.Errorf("entries and bounds must have the same length; entries: %v, bounds: %v", len(entries), len(bounds))
	}
	if len(rowDisplacement) != rowCount {
		return nil, fmt.Errorf("a displacement is needed per row; rows: %v, displacements: %v", rowCount, len(rowDisplacement))
	}
	packedEntries, err := PackInts(entries)
	if err != nil {
		return nil, err
	}
	packedBounds, err := PackInts(bounds)
	if err != nil {
		return nil, err
	}
	return &PackedMatrix{
		RowCount:        rowCount,
		ColCount:        colCount,
		EmptyValue:      emptyValue,
		Entries:         packedEntries,
		Bounds:          packedBounds,
		RowDisplacement: rowDisplacement,
	}, nil
}

func (m *PackedMatrix) Lookup(row, col int) int {
	if row < 0 || row >= m.RowCount || col < 0 || col >= m.ColCount {
		return m.EmptyValue
	}
	d := m.RowDisplacement[row]
	if m.Bounds.At(d+col) != row+1 {
		return m.EmptyValue
	}
	return m.Entries.At(d + col)
}

// Tables is the compiled table bundle: everything a table-driven parser needs
// at run time except the semantic-action closures. Decoding is bit-exact:
// every (state, terminal) and (state, non-terminal) lookup reproduces the
// action the uncompacted reference table would give, including the elided EOF
// column of the error bitmap.
type Tables struct {
	Name string `json:"name"`

	StateCount       int `json:"state_count"`
	TerminalCount    int `json:"terminal_count"`
	NonTerminalCount int `json:"non_terminal_count"`
	ProductionCount  int `json:"production_count"`

	// EntryStates[i] is the entry state of the i-th start production; entry
	// states are numbered before all other states.
	EntryStates      []int `json:"entry_states"`
	StartProductions []int `json:"start_productions"`

	EOFTerminal   int `json:"eof_terminal"`
	ErrorTerminal int `json:"error_terminal"`

	// DefaultReduction is 0 when the action table must be consulted and
	// 1+production for a reduction performed without reading a lookahead.
	DefaultReduction []int `json:"default_reduction"`

	// ErrorBitmap has a bit set where an action other than fail exists. The
	// EOF column is elided: EOF has the largest terminal code, so the bitmap
	// is simply one column narrower and EOF lookups skip it.
	ErrorBitmap *BitTable `json:"error_bitmap"`

	// EOFAction[state] carries the action-table column elided from the error
	// bitmap, densely.
	EOFAction []int `json:"eof_action"`

	Action *PackedMatrix `json:"action"`
	GoTo   *PackedMatrix `json:"goto"`

	LHS        []int `json:"lhs"`
	RHSLengths []int `json:"rhs_lengths"`

	ErrorTrapperStates []int `json:"error_trapper_states"`

	Terminals    []string `json:"terminals"`
	NonTerminals []string `json:"non_terminals"`

	// KindToTerminal maps external token kinds to internal terminal codes.
	KindToTerminal []int `json:"kind_to_terminal"`

	Fingerprint string `json:"fingerprint,omitempty"`
}

// Seal computes and stores the bundle fingerprint. A sealed bundle can be
// verified by a reader after deserialization.
func (t *Tables) Seal() error {
	t.Fingerprint = ""
	sum, err := structhash.Hash(t, 1)
	if err != nil {
		return fmt.Errorf("failed to fingerprint the table bundle: %w", err)
	}
	t.Fingerprint = sum
	return nil
}

func (t *Tables) Verify() error {
	want := t.Fingerprint
	if want == "" {
		return fmt.Errorf("the table bundle carries no fingerprint")
	}
	t.Fingerprint = ""
	sum, err := structhash.Hash(t, 1)
	t.Fingerprint = want
	if err != nil {
		return fmt.Errorf("failed to fingerprint the table bundle: %w", err)
	}
	if sum != want {
		return fmt.Errorf("table bundle fingerprint mismatch; want: %v, got: %v", want, sum)
	}
	return nil
}

func (t *Tables) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(t)
}

func Load(r io.Reader) (*Tables, error) {
	var t Tables
	dec := json.NewDecoder(r)
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	if err := t.Verify(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Reference is the uncompacted rendition of the same automaton. It is the
// ground truth the packed bundle is validated against and the table set the
// reference interpreter runs on when a caller needs the numeric state reached
// rather than just accept/reject.
type Reference struct {
	Name string `json:"name"`

	StateCount       int `json:"state_count"`
	TerminalCount    int `json:"terminal_count"`
	NonTerminalCount int `json:"non_terminal_count"`
	ProductionCount  int `json:"production_count"`

	EntryStates      []int `json:"entry_states"`
	StartProductions []int `json:"start_productions"`

	EOFTerminal   int `json:"eof_terminal"`
	ErrorTerminal int `json:"error_terminal"`

	DefaultReduction []int `json:"default_reduction"`

	// Action and GoTo are dense state-major arrays of encoded entries.
	Action []int `json:"action"`
	GoTo   []int `json:"goto"`

	LHS        []int `json:"lhs"`
	RHSLengths []int `json:"rhs_lengths"`

	ErrorTrapperStates []int `json:"error_trapper_states"`

	Terminals    []string `json:"terminals"`
	NonTerminals []string `json:"non_terminals"`

	KindToTerminal []int `json:"kind_to_terminal"`

	// ExpectedTerminals lists, per state, the terminal codes on which any
	// action exists. Diagnostics only.
	ExpectedTerminals [][]int `json:"expected_terminals"`
}

func (r *Reference) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(r)
}

func LoadReference(rd io.Reader) (*Reference, error) {
	var r Reference
	dec := json.NewDecoder(rd)
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
