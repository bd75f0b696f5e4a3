package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grackle",
	Short: "Generate a compact LR parsing table from a grammar",
	Long: `grackle compiles a grammar definition into an LR parsing table and runs
a table-driven parser on token streams:
- Compiles a grammar into a compacted, portable table bundle.
- Parses token sequences with a compiled bundle.
  This feature is primarily aimed at debugging the grammar.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}
