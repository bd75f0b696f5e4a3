// Package compressor compacts the sparse integer tables the table compiler
// produces. Rows of a sparse matrix are overlapped in one flat array at
// offsets chosen so that only genuinely occupied cells collide; a bounds
// array tags each occupied cell with its owning row so a decoder can tell
// true entries from overlap filler.
package compressor

import (
	"fmt"
	"strconv"

	"github.com/emirpasic/gods/trees/binaryheap"
)

type OriginalTable struct {
	entries  []int
	rowCount int
	colCount int
}

func NewOriginalTable(entries []int, colCount int) (*OriginalTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("entries is empty")
	}
	if colCount <= 0 {
		return nil, fmt.Errorf("colCount must be >=1")
	}
	if len(entries)%colCount != 0 {
		return nil, fmt.Errorf("entries length or column count are incorrect; entries length: %v, column count: %v", len(entries), colCount)
	}

	return &OriginalTable{
		entries:  entries,
		rowCount: len(entries) / colCount,
		colCount: colCount,
	}, nil
}

func (t *OriginalTable) row(n int) []int {
	return t.entries[n*t.colCount : (n+1)*t.colCount]
}

type Compressor interface {
	Compress(orig *OriginalTable) error
	Lookup(row, col int) (int, error)
	OriginalTableSize() (int, int)
}

var (
	_ Compressor = &UniqueEntriesTable{}
	_ Compressor = &RowDisplacementTable{}
)

// UniqueEntriesTable deduplicates identical rows. It suits tables with few
// distinct rows, like the default-reduction table of a large automaton.
type UniqueEntriesTable struct {
	UniqueEntries    []int
	RowNums          []int
	OriginalRowCount int
	OriginalColCount int
}

func NewUniqueEntriesTable() *UniqueEntriesTable {
	return &UniqueEntriesTable{}
}

func (tab *UniqueEntriesTable) Lookup(row, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return 0, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	return tab.UniqueEntries[tab.RowNums[row]*tab.OriginalColCount+col], nil
}

func (tab *UniqueEntriesTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

func (tab *UniqueEntriesTable) Compress(orig *OriginalTable) error {
	var unique []int
	rowNums := make([]int, orig.rowCount)
	seen := map[string]int{}
	for row := 0; row < orig.rowCount; row++ {
		cells := orig.row(row)

		key := make([]byte, 0, len(cells)*4)
		for _, v := range cells {
			key = strconv.AppendInt(key, int64(v), 10)
			key = append(key, ',')
		}

		num, ok := seen[string(key)]
		if !ok {
			num = len(seen)
			seen[string(key)] = num
			unique = append(unique, cells...)
		}
		rowNums[row] = num
	}

	tab.UniqueEntries = unique
	tab.RowNums = rowNums
	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount

	return nil
}

// RowDisplacementTable compacts a sparse table by overlapping rows in a flat
// array. Bounds[i] is 1+row when the cell belongs to that row and 0 when the
// cell is unclaimed, so all stored values stay nonnegative and the result can
// be bit-packed directly.
type RowDisplacementTable struct {
	OriginalRowCount int
	OriginalColCount int
	EmptyValue       int
	Entries          []int
	Bounds           []int
	RowDisplacement  []int
}

func NewRowDisplacementTable(emptyValue int) *RowDisplacementTable {
	return &RowDisplacementTable{
		EmptyValue: emptyValue,
	}
}

func (tab *RowDisplacementTable) Lookup(row int, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return tab.EmptyValue, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	d := tab.RowDisplacement[row]
	if tab.Bounds[d+col] != row+1 {
		return tab.EmptyValue, nil
	}
	return tab.Entries[d+col], nil
}

func (tab *RowDisplacementTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

type occupiedRow struct {
	num  int
	cols []int
}

func (tab *RowDisplacementTable) Compress(orig *OriginalTable) error {
	// Denser rows are placed first; they are the hardest to fit. The tie on
	// the row number keeps the result deterministic.
	denseFirst := binaryheap.NewWith(func(a, b interface{}) int {
		ra := a.(*occupiedRow)
		rb := b.(*occupiedRow)
		if len(ra.cols) != len(rb.cols) {
			return len(rb.cols) - len(ra.cols)
		}
		return ra.num - rb.num
	})
	for row := 0; row < orig.rowCount; row++ {
		var cols []int
		for col, v := range orig.row(row) {
			if v != tab.EmptyValue {
				cols = append(cols, col)
			}
		}
		if len(cols) > 0 {
			denseFirst.Push(&occupiedRow{num: row, cols: cols})
		}
	}

	entries := make([]int, len(orig.entries))
	for i := range entries {
		entries[i] = tab.EmptyValue
	}
	bounds := make([]int, len(orig.entries))
	displacement := make([]int, orig.rowCount)
	used := orig.colCount

	minDisplacement := 0
	for {
		v, ok := denseFirst.Pop()
		if !ok {
			break
		}
		r := v.(*occupiedRow)

		d := minDisplacement
		for collides(bounds, d, r.cols) {
			d++
		}

		displacement[r.num] = d
		for _, col := range r.cols {
			entries[d+col] = orig.row(r.num)[col]
			bounds[d+col] = r.num + 1
		}
		if d+orig.colCount > used {
			used = d + orig.colCount
		}
		minDisplacement = d + 1
	}

	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount
	tab.Entries = entries[:used]
	tab.Bounds = bounds[:used]
	tab.RowDisplacement = displacement
	return nil
}

func collides(bounds []int, d int, cols []int) bool {
	for _, col := range cols {
		if bounds[d+col] != 0 {
			return true
		}
	}
	return false
}
