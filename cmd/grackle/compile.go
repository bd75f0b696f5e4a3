package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/grackle-lang/grackle/grammar"
	"github.com/grackle-lang/grackle/tables"
	"github.com/spf13/cobra"
)

var compileFlags = struct {
	output   *string
	strategy *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "compile",
		Short:   "Compile grammar you defined into a parsing table",
		Example: `  grackle compile grammar.json -o grammar-tables.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	compileFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	compileFlags.strategy = cmd.Flags().StringP("strategy", "s", "pager", "state merge strategy (lalr|pager|canonical)")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	strategy, err := mergeStrategy(*compileFlags.strategy)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("Cannot open the grammar file %s: %w", args[0], err)
		}
		defer f.Close()
		src = f
	}

	gram, err := readGrammar(src)
	if err != nil {
		return err
	}

	tabs, ref, report, err := grammar.Compile(gram, grammar.WithMergeStrategy(strategy), grammar.EnableReporting())
	if err != nil {
		return err
	}

	err = writeCompiledGrammarAndReport(tabs, ref, report, *compileFlags.output)
	if err != nil {
		return fmt.Errorf("Cannot write an output files: %w", err)
	}

	var implicitlyResolvedCount int
	for _, s := range report.States {
		for _, c := range s.SRConflict {
			if c.ResolvedBy == grammar.ResolvedByShift.Int() {
				implicitlyResolvedCount++
			}
		}
		for _, c := range s.RRConflict {
			if c.ResolvedBy == grammar.ResolvedByProdOrder.Int() {
				implicitlyResolvedCount++
			}
		}
	}
	if implicitlyResolvedCount > 0 {
		fmt.Fprintf(os.Stdout, "%v conflicts\n", implicitlyResolvedCount)
	}

	return nil
}

func mergeStrategy(name string) (grammar.MergeStrategy, error) {
	switch name {
	case "lalr":
		return grammar.MergeLALR, nil
	case "pager":
		return grammar.MergePager, nil
	case "canonical":
		return grammar.MergeCanonical, nil
	}
	return "", fmt.Errorf("unknown merge strategy: %v", name)
}

func readGrammar(src io.Reader) (*grammar.Grammar, error) {
	def, err := grammar.ParseGrammarDef(src)
	if err != nil {
		return nil, err
	}
	return def.Grammar()
}

// writeCompiledGrammarAndReport writes a table bundle, its reference tables, and a report to files
// located at a specified path. This function selects one of the following output methods depending
// on how the path is specified.
//
// 1. When the path is a directory path, this function writes the bundle, the reference, and the
//    report to <path>/<grammar-name>.json, <path>/<grammar-name>-reference.json, and
//    <path>/<grammar-name>-report.json files, respectively.
// 2. When the path is a file path or a non-existent path, this function assumes that the path
//    represents a file path for the bundle. Then it also writes the reference and the report in
//    the same directory as the bundle.
// 3. When the path is an empty string, this function writes the bundle to the stdout and writes
//    the reference and the report to files under the current directory.
func writeCompiledGrammarAndReport(tabs *tables.Tables, ref *tables.Reference, report *grammar.Report, path string) error {
	tabsPath, refPath, reportPath, err := makeOutputFilePaths(tabs.Name, path)
	if err != nil {
		return err
	}

	{
		var tabsW io.Writer
		if tabsPath != "" {
			tabsFile, err := os.OpenFile(tabsPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return err
			}
			defer tabsFile.Close()
			tabsW = tabsFile
		} else {
			tabsW = os.Stdout
		}

		err := tabs.Write(tabsW)
		if err != nil {
			return err
		}
	}

	{
		refFile, err := os.OpenFile(refPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer refFile.Close()

		err = ref.Write(refFile)
		if err != nil {
			return err
		}
	}

	{
		reportFile, err := os.OpenFile(reportPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer reportFile.Close()

		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(reportFile, "%v\n", string(b))
	}

	return nil
}

func makeOutputFilePaths(gramName string, path string) (string, string, string, error) {
	refFileName := gramName + "-reference.json"
	reportFileName := gramName + "-report.json"

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", "", err
		}
		return "", filepath.Join(wd, refFileName), filepath.Join(wd, reportFileName), nil
	}

	fi, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return "", "", "", err
	}
	if os.IsNotExist(err) || !fi.IsDir() {
		dir, _ := filepath.Split(path)
		return path, filepath.Join(dir, refFileName), filepath.Join(dir, reportFileName), nil
	}

	return filepath.Join(path, gramName+".json"), filepath.Join(path, refFileName), filepath.Join(path, reportFileName), nil
}
