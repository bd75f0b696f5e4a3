package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grackle-lang/grackle/driver"
	"github.com/grackle-lang/grackle/tables"
	"github.com/spf13/cobra"
)

var parseFlags = struct {
	source    *string
	onlyParse *bool
	entry     *int
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "parse <table bundle path>",
		Short: "Parse a token stream",
		Long: `parse reads whitespace-separated terminal names and runs the table-driven
parser on them. Names that are not terminals of the grammar become invalid
tokens and trigger error recovery.`,
		Example: `  cat tokens | grackle parse grammar-tables.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runParse,
	}
	parseFlags.source = cmd.Flags().StringP("source", "s", "", "source file path (default stdin)")
	parseFlags.onlyParse = cmd.Flags().Bool("only-parse", false, "when this option is enabled, the parser performs only parse and doesn't build a tree")
	parseFlags.entry = cmd.Flags().Int("entry", 0, "entry point to start the parse at")
	rootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	tabs, err := loadTables(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read a table bundle: %w", err)
	}

	src := os.Stdin
	if *parseFlags.source != "" {
		f, err := os.Open(*parseFlags.source)
		if err != nil {
			return fmt.Errorf("Cannot open the source file %s: %w", *parseFlags.source, err)
		}
		defer f.Close()
		src = f
	}

	toks, err := readTokens(tabs, src)
	if err != nil {
		return err
	}

	gram := driver.NewGrammar(tabs, nil)

	opts := []driver.ParserOption{
		driver.WithEntryPoint(*parseFlags.entry),
	}
	if *parseFlags.onlyParse {
		opts = append(opts, driver.DisableTreeActions())
	}

	p, err := driver.NewParser(gram, driver.NewPaddedTokenStream(toks), opts...)
	if err != nil {
		return err
	}

	err = p.Parse()
	if err != nil {
		return err
	}

	synErrs := p.SyntaxErrors()
	for _, synErr := range synErrs {
		tok := synErr.Token

		var msg string
		switch {
		case tok.EOF():
			msg = "<eof>"
		case tok.Invalid():
			msg = fmt.Sprintf("'%v' (<invalid>)", string(tok.Lexeme()))
		default:
			msg = fmt.Sprintf("'%v'", string(tok.Lexeme()))
		}

		fmt.Fprintf(os.Stderr, "%v:%v: %v: %v", synErr.Row+1, synErr.Col+1, synErr.Message, msg)
		if len(synErr.ExpectedTerminals) > 0 {
			fmt.Fprintf(os.Stderr, "; expected: %v", synErr.ExpectedTerminals[0])
			for _, t := range synErr.ExpectedTerminals[1:] {
				fmt.Fprintf(os.Stderr, ", %v", t)
			}
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	if p.Status() == driver.StatusAccepted && !*parseFlags.onlyParse {
		tree, ok := p.Result().(*driver.Node)
		if ok {
			driver.PrintTree(os.Stdout, tree)
		}
	}
	if p.Status() == driver.StatusRejected {
		return fmt.Errorf("the input was rejected")
	}

	return nil
}

// readTokens turns whitespace-separated terminal names into tokens. An
// unknown name yields an invalid token instead of failing the command.
func readTokens(tabs *tables.Tables, src io.Reader) ([]driver.Token, error) {
	termCodes := map[string]int{}
	for code, name := range tabs.Terminals {
		if name == "" {
			continue
		}
		termCodes[name] = code
	}

	var toks []driver.Token
	scanner := bufio.NewScanner(src)
	row := 0
	for scanner.Scan() {
		line := scanner.Text()
		col := 0
		for _, name := range strings.Fields(line) {
			col = strings.Index(line[col:], name) + col
			code, ok := termCodes[name]
			if ok {
				toks = append(toks, driver.NewToken(code, []byte(name), row, col))
			} else {
				toks = append(toks, driver.NewInvalidToken([]byte(name), row, col))
			}
			col += len(name)
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return toks, nil
}
