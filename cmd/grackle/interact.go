package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/grackle-lang/grackle/driver"
	"github.com/grackle-lang/grackle/tables"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "interact <table bundle path>",
		Short: "Step a parser interactively",
		Long: `interact starts a REPL that feeds tokens to the parser one line at a time
and shows every state the automaton moves through. Enter terminal names
separated by spaces; :eof ends the input. :help lists all commands.`,
		Example: `  grackle interact grammar-tables.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runInteract,
	}
	rootCmd.AddCommand(cmd)
}

// feedTokenStream grows as the user types. The parser drains it and reports
// ErrOvershoot when it needs input the user has not entered yet.
type feedTokenStream struct {
	toks []driver.Token
}

func (s *feedTokenStream) Next() (driver.Token, error) {
	if len(s.toks) == 0 {
		return nil, driver.ErrOvershoot
	}
	tok := s.toks[0]
	s.toks = s.toks[1:]
	return tok, nil
}

func (s *feedTokenStream) feed(toks ...driver.Token) {
	s.toks = append(s.toks, toks...)
}

type session struct {
	tabs   *tables.Tables
	gram   driver.Grammar
	feed   *feedTokenStream
	parser *driver.Parser
	row    int
}

func newSession(tabs *tables.Tables) (*session, error) {
	s := &session{
		tabs: tabs,
		gram: driver.NewGrammar(tabs, nil),
	}
	err := s.reset()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) reset() error {
	s.feed = &feedTokenStream{}
	s.row = 0
	p, err := driver.NewParser(s.gram, s.feed)
	if err != nil {
		return err
	}
	s.parser = p
	return nil
}

func runInteract(cmd *cobra.Command, args []string) error {
	initDisplay()

	tabs, err := loadTables(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read a table bundle: %w", err)
	}

	s, err := newSession(tabs)
	if err != nil {
		return err
	}

	rl, err := readline.New("grackle> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	pterm.Info.Println(fmt.Sprintf("Stepping grammar %v; :help lists commands", tabs.Name))
	s.printState()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		quit, err := s.execute(line)
		if err != nil {
			pterm.Error.Println(err.Error())
		}
		if quit {
			break
		}
	}

	return nil
}

func (s *session) execute(line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true, nil
	case ":help":
		pterm.Info.Println(`NAME ...  feed tokens and run until more input is needed
:eof      feed end of input and run to completion
:step [n] perform n parser steps (default 1)
:state    show the automaton state
:reset    restart the parse
:quit     leave`)
		return false, nil
	case ":reset":
		err := s.reset()
		if err != nil {
			return false, err
		}
		s.printState()
		return false, nil
	case ":state":
		s.printState()
		return false, nil
	case ":step":
		n := 1
		if len(fields) > 1 {
			var err error
			n, err = strconv.Atoi(fields[1])
			if err != nil {
				return false, fmt.Errorf("not a step count: %v", fields[1])
			}
		}
		return false, s.step(n)
	case ":eof":
		s.feed.feed(driver.NewEOFToken())
		return false, s.run()
	}
	if strings.HasPrefix(fields[0], ":") {
		return false, fmt.Errorf("unknown command: %v", fields[0])
	}

	for _, name := range fields {
		code, ok := s.terminalCode(name)
		if ok {
			s.feed.feed(driver.NewToken(code, []byte(name), s.row, 0))
		} else {
			s.feed.feed(driver.NewInvalidToken([]byte(name), s.row, 0))
		}
	}
	s.row++
	return false, s.run()
}

func (s *session) terminalCode(name string) (int, bool) {
	for code, termName := range s.tabs.Terminals {
		if termName != "" && termName == name {
			return code, true
		}
	}
	return 0, false
}

// run steps the parser until it needs more input or finishes.
func (s *session) run() error {
	for {
		st, err := s.parser.Next()
		if err != nil {
			if errors.Is(err, driver.ErrOvershoot) {
				s.printState()
				return nil
			}
			return err
		}
		if st != driver.StatusRunning {
			s.printOutcome(st)
			return nil
		}
	}
}

func (s *session) step(n int) error {
	for i := 0; i < n; i++ {
		st, err := s.parser.Next()
		if err != nil {
			if errors.Is(err, driver.ErrOvershoot) {
				pterm.Info.Println("more input needed")
				s.printState()
				return nil
			}
			return err
		}
		if st != driver.StatusRunning {
			s.printOutcome(st)
			return nil
		}
	}
	s.printState()
	return nil
}

func (s *session) printState() {
	state := s.parser.TopState()
	var expected []string
	for _, term := range s.gram.ExpectedTerminals(state) {
		expected = append(expected, s.gram.Terminal(term))
	}
	pterm.Info.Println(fmt.Sprintf("state %v, depth %v; expecting: %v",
		state, s.parser.StackDepth(), strings.Join(expected, ", ")))
}

func (s *session) printOutcome(st driver.Status) {
	switch st {
	case driver.StatusAccepted:
		pterm.Info.Println("accepted")
		if tree, ok := s.parser.Result().(*driver.Node); ok {
			driver.PrintTree(os.Stdout, tree)
		}
	case driver.StatusRejected:
		for _, synErr := range s.parser.SyntaxErrors() {
			pterm.Error.Println(fmt.Sprintf("%v:%v: %v", synErr.Row+1, synErr.Col+1, synErr.Message))
		}
		pterm.Error.Println("rejected")
	default:
		pterm.Info.Println(st.String())
	}
}
