package tables

import (
	"bytes"
	"testing"
)

func TestPackInts(t *testing.T) {
	tests := []struct {
		caption   string
		vals      []int
		wantWidth int
	}{
		{
			caption:   "all zero values pack into one bit",
			vals:      []int{0, 0, 0},
			wantWidth: 1,
		},
		{
			caption:   "bits and small values",
			vals:      []int{0, 1, 0, 1, 1},
			wantWidth: 1,
		},
		{
			caption:   "the width follows the largest value",
			vals:      []int{0, 5, 2, 7},
			wantWidth: 3,
		},
		{
			caption:   "elements straddle word boundaries",
			vals:      []int{1000, 0, 1023, 512, 1, 999, 3, 700, 64, 65, 1022, 511, 256},
			wantWidth: 10,
		},
		{
			caption:   "a width that never divides 64 evenly",
			vals:      []int{100, 99, 1, 0, 127, 64, 100, 99, 1, 0, 127, 64, 100, 99, 1},
			wantWidth: 7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			p, err := PackInts(tt.vals)
			if err != nil {
				t.Fatal(err)
			}
			if p.Width != tt.wantWidth {
				t.Fatalf("width is mismatched; want: %v, got: %v", tt.wantWidth, p.Width)
			}
			if p.Len != len(tt.vals) {
				t.Fatalf("length is mismatched; want: %v, got: %v", len(tt.vals), p.Len)
			}
			for i, want := range tt.vals {
				if got := p.At(i); got != want {
					t.Fatalf("element %v is mismatched; want: %v, got: %v", i, want, got)
				}
			}
			unpacked := p.Unpack()
			if len(unpacked) != len(tt.vals) {
				t.Fatalf("unpacked length is mismatched; want: %v, got: %v", len(tt.vals), len(unpacked))
			}
			for i, want := range tt.vals {
				if unpacked[i] != want {
					t.Fatalf("unpacked element %v is mismatched; want: %v, got: %v", i, want, unpacked[i])
				}
			}
		})
	}

	t.Run("negative values are rejected", func(t *testing.T) {
		if _, err := PackInts([]int{1, -1}); err == nil {
			t.Fatalf("an expected error didn't occur")
		}
	})
}

func TestBitTable(t *testing.T) {
	table, err := NewBitTable(3, 5, func(row, col int) bool {
		return (row+col)%2 == 0
	})
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 5; col++ {
			want := (row+col)%2 == 0
			if got := table.IsSet(row, col); got != want {
				t.Fatalf("bit (%v, %v) is mismatched; want: %v, got: %v", row, col, want, got)
			}
		}
	}
}

func TestActionEntry(t *testing.T) {
	tests := []struct {
		caption  string
		entry    ActionEntry
		wantType ActionType
		wantNum  int
	}{
		{
			caption:  "the zero value means no action",
			entry:    ActionEntryEmpty,
			wantType: ActionTypeError,
		},
		{
			caption:  "a consuming shift",
			entry:    NewShiftActionEntry(5, true),
			wantType: ActionTypeShift,
			wantNum:  5,
		},
		{
			caption:  "a non-consuming shift",
			entry:    NewShiftActionEntry(5, false),
			wantType: ActionTypeShiftWithoutConsuming,
			wantNum:  5,
		},
		{
			caption:  "a reduction",
			entry:    NewReduceActionEntry(12),
			wantType: ActionTypeReduce,
			wantNum:  12,
		},
		{
			caption:  "state 0 is shiftable",
			entry:    NewShiftActionEntry(0, true),
			wantType: ActionTypeShift,
			wantNum:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			if tt.entry.IsEmpty() != (tt.wantType == ActionTypeError) {
				t.Fatalf("emptiness is mismatched")
			}
			ty, n := tt.entry.Describe()
			if ty != tt.wantType || n != tt.wantNum {
				t.Fatalf("entry is mismatched; want: %v %v, got: %v %v", tt.wantType, tt.wantNum, ty, n)
			}
			if int(tt.entry) < 0 {
				t.Fatalf("entries must be nonnegative for packing; got: %v", int(tt.entry))
			}
		})
	}
}

func TestGoToEntry(t *testing.T) {
	if _, ok := GoToEntryEmpty.Describe(); ok {
		t.Fatalf("the zero value must be undefined")
	}
	state, ok := NewGoToEntry(0).Describe()
	if !ok || state != 0 {
		t.Fatalf("entry is mismatched; want: %v, got: %v (defined: %v)", 0, state, ok)
	}
	state, ok = NewGoToEntry(41).Describe()
	if !ok || state != 41 {
		t.Fatalf("entry is mismatched; want: %v, got: %v (defined: %v)", 41, state, ok)
	}
}

func TestPackedMatrix(t *testing.T) {
	// A 2x3 table displaced into a flat array: row 1 sits at offset 1.
	//
	//	original:  9 0 0
	//	           0 8 0
	entries := []int{9, 0, 8, 0}
	bounds := []int{1, 0, 2, 0}
	m, err := NewPackedMatrix(2, 3, 0, entries, bounds, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}

	want := [][]int{
		{9, 0, 0},
		{0, 8, 0},
	}
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			if got := m.Lookup(row, col); got != want[row][col] {
				t.Fatalf("entry (%v, %v) is mismatched; want: %v, got: %v", row, col, want[row][col], got)
			}
		}
	}

	// Out-of-range lookups report the empty value, not filler.
	for _, idx := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 3}} {
		if got := m.Lookup(idx[0], idx[1]); got != 0 {
			t.Fatalf("an out-of-range lookup must be empty (%v, %v); got: %v", idx[0], idx[1], got)
		}
	}

	if _, err := NewPackedMatrix(2, 3, 0, entries, bounds[:3], []int{0, 1}); err == nil {
		t.Fatalf("an expected error didn't occur on mismatched bounds")
	}
	if _, err := NewPackedMatrix(2, 3, 0, entries, bounds, []int{0}); err == nil {
		t.Fatalf("an expected error didn't occur on missing displacements")
	}
}

func testTables(t *testing.T) *Tables {
	t.Helper()

	action, err := NewPackedMatrix(2, 3, 0, []int{5, 0, 7, 0}, []int{1, 0, 2, 0}, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	goTo, err := NewPackedMatrix(2, 2, 0, []int{2, 0}, []int{1, 0}, []int{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	errorBitmap, err := NewBitTable(2, 2, func(row, col int) bool {
		return row == col
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Tables{
		Name:               "test",
		StateCount:         2,
		TerminalCount:      3,
		NonTerminalCount:   2,
		ProductionCount:    3,
		EntryStates:        []int{0},
		StartProductions:   []int{1},
		EOFTerminal:        2,
		ErrorTerminal:      1,
		DefaultReduction:   []int{0, 0},
		ErrorBitmap:        errorBitmap,
		EOFAction:          []int{0, 7},
		Action:             action,
		GoTo:               goTo,
		LHS:                []int{0, 3, 4},
		RHSLengths:         []int{0, 1, 2},
		ErrorTrapperStates: []int{0, 0},
		Terminals:          []string{"", "<error>", "<eof>"},
		NonTerminals:       []string{"", "s'", "s"},
		KindToTerminal:     []int{0},
	}
}

func TestTablesSealAndVerify(t *testing.T) {
	tab := testTables(t)
	if err := tab.Verify(); err == nil {
		t.Fatalf("an unsealed bundle must not verify")
	}
	if err := tab.Seal(); err != nil {
		t.Fatal(err)
	}
	if err := tab.Verify(); err != nil {
		t.Fatalf("a sealed bundle must verify: %v", err)
	}

	tab.EOFAction[1] = 3
	if err := tab.Verify(); err == nil {
		t.Fatalf("a tampered bundle must not verify")
	}
}

func TestTablesWriteAndLoad(t *testing.T) {
	tab := testTables(t)
	if err := tab.Seal(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := tab.Write(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Name != tab.Name {
		t.Errorf("name is mismatched; want: %v, got: %v", tab.Name, loaded.Name)
	}
	if loaded.Fingerprint != tab.Fingerprint {
		t.Errorf("fingerprint is mismatched; want: %v, got: %v", tab.Fingerprint, loaded.Fingerprint)
	}
	for row := 0; row < tab.StateCount; row++ {
		for col := 0; col < tab.TerminalCount; col++ {
			if got, want := loaded.Action.Lookup(row, col), tab.Action.Lookup(row, col); got != want {
				t.Fatalf("an action entry is mismatched after the round trip (%v, %v); want: %v, got: %v", row, col, want, got)
			}
		}
		for col := 0; col < tab.NonTerminalCount; col++ {
			if got, want := loaded.GoTo.Lookup(row, col), tab.GoTo.Lookup(row, col); got != want {
				t.Fatalf("a goto entry is mismatched after the round trip (%v, %v); want: %v, got: %v", row, col, want, got)
			}
		}
	}

	// A corrupted stream must be rejected by the fingerprint check.
	var buf2 bytes.Buffer
	if err := tab.Write(&buf2); err != nil {
		t.Fatal(err)
	}
	corrupted := bytes.Replace(buf2.Bytes(), []byte(`"name":"test"`), []byte(`"name":"best"`), 1)
	if !bytes.Equal(corrupted, buf2.Bytes()) {
		if _, err := Load(bytes.NewReader(corrupted)); err == nil {
			t.Fatalf("a corrupted bundle must not load")
		}
	}
}

func TestReferenceWriteAndLoad(t *testing.T) {
	ref := &Reference{
		Name:              "test",
		StateCount:        2,
		TerminalCount:     3,
		NonTerminalCount:  2,
		Action:            []int{5, 0, 0, 0, 7, 0},
		GoTo:              []int{2, 0, 0, 0},
		ExpectedTerminals: [][]int{{0}, {1}},
	}
	var buf bytes.Buffer
	if err := ref.Write(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadReference(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != ref.Name || loaded.StateCount != ref.StateCount {
		t.Fatalf("reference is mismatched after the round trip; want: %+v, got: %+v", ref, loaded)
	}
	for i, want := range ref.Action {
		if loaded.Action[i] != want {
			t.Fatalf("an action entry is mismatched after the round trip; index: %v, want: %v, got: %v", i, want, loaded.Action[i])
		}
	}
}
