package main

import (
	"fmt"
	"os"

	"github.com/grackle-lang/grackle/compressor"
	"github.com/grackle-lang/grackle/tables"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "describe",
		Short:   "Print table bundle statistics",
		Example: `  grackle describe grammar-tables.json grammar-reference.json`,
		Args:    cobra.RangeArgs(1, 2),
		RunE:    runDescribe,
	}
	rootCmd.AddCommand(cmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	initDisplay()

	tabs, err := loadTables(args[0])
	if err != nil {
		return err
	}
	pterm.Info.Println(fmt.Sprintf("%v: fingerprint verified (%v)", tabs.Name, tabs.Fingerprint))

	ll := pterm.LeveledList{
		{Level: 0, Text: "automaton"},
		{Level: 1, Text: fmt.Sprintf("states:          %v", tabs.StateCount)},
		{Level: 1, Text: fmt.Sprintf("terminals:       %v", tabs.TerminalCount)},
		{Level: 1, Text: fmt.Sprintf("non-terminals:   %v", tabs.NonTerminalCount)},
		{Level: 1, Text: fmt.Sprintf("productions:     %v", tabs.ProductionCount)},
		{Level: 1, Text: fmt.Sprintf("entry states:    %v", tabs.EntryStates)},
		{Level: 0, Text: "action table"},
	}
	ll = append(ll, packedMatrixStats(tabs.Action, tabs.StateCount*tabs.TerminalCount)...)
	ll = append(ll, pterm.LeveledListItem{Level: 0, Text: "goto table"})
	ll = append(ll, packedMatrixStats(tabs.GoTo, tabs.StateCount*tabs.NonTerminalCount)...)

	root := pterm.NewTreeFromLeveledList(ll)
	_ = pterm.DefaultTree.WithRoot(root).Render()

	if len(args) > 1 {
		ref, err := loadReference(args[1])
		if err != nil {
			return err
		}
		return describeCompression(ref)
	}

	return nil
}

func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " grackle ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " error ",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func packedMatrixStats(m *tables.PackedMatrix, denseCells int) pterm.LeveledList {
	return pterm.LeveledList{
		{Level: 1, Text: fmt.Sprintf("dense cells:     %v", denseCells)},
		{Level: 1, Text: fmt.Sprintf("stored cells:    %v", m.Entries.Len)},
		{Level: 1, Text: fmt.Sprintf("entry width:     %v bits", m.Entries.Width)},
		{Level: 1, Text: fmt.Sprintf("bound width:     %v bits", m.Bounds.Width)},
	}
}

// describeCompression recompresses the dense reference tables with both
// compaction algorithms so their footprints can be compared.
func describeCompression(ref *tables.Reference) error {
	err := printCompressionStats("action table", ref.Action, ref.TerminalCount)
	if err != nil {
		return err
	}
	return printCompressionStats("goto table", ref.GoTo, ref.NonTerminalCount)
}

func printCompressionStats(label string, dense []int, colCount int) error {
	orig, err := compressor.NewOriginalTable(dense, colCount)
	if err != nil {
		return err
	}

	uniq := compressor.NewUniqueEntriesTable()
	err = uniq.Compress(orig)
	if err != nil {
		return err
	}

	disp := compressor.NewRowDisplacementTable(0)
	err = disp.Compress(orig)
	if err != nil {
		return err
	}

	ll := pterm.LeveledList{
		{Level: 0, Text: label},
		{Level: 1, Text: fmt.Sprintf("dense:            %v cells", len(dense))},
		{Level: 1, Text: fmt.Sprintf("unique entries:   %v cells (%.1f%%)", len(uniq.UniqueEntries), ratio(len(uniq.UniqueEntries), len(dense)))},
		{Level: 1, Text: fmt.Sprintf("row displacement: %v cells (%.1f%%)", len(disp.Entries), ratio(len(disp.Entries), len(dense)))},
	}
	root := pterm.NewTreeFromLeveledList(ll)
	return pterm.DefaultTree.WithRoot(root).Render()
}

func ratio(compressed, dense int) float64 {
	if dense == 0 {
		return 0
	}
	return float64(compressed) / float64(dense) * 100
}

func loadTables(path string) (*tables.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the table bundle %s: %w", path, err)
	}
	defer f.Close()
	return tables.Load(f)
}

func loadReference(path string) (*tables.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the reference tables %s: %w", path, err)
	}
	defer f.Close()
	return tables.LoadReference(f)
}
