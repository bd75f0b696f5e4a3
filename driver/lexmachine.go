package driver

import (
	"strings"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// LexMachineAdapter compiles a lexmachine lexer whose token types double as
// kind IDs for the KindToTerminal mapping of a table bundle.
type LexMachineAdapter struct {
	Lexer *lexmachine.Lexer

	kindToTerminal []int
}

// NewLexMachineAdapter builds a lexmachine lexer from literal tokens and
// keywords. init may add further patterns, including SkipAction entries for
// whitespace and comments, before the DFA is compiled.
func NewLexMachineAdapter(init func(*lexmachine.Lexer), literals []string, keywords []string, kinds map[string]int, kindToTerminal []int) (*LexMachineAdapter, error) {
	adapter := &LexMachineAdapter{
		Lexer:          lexmachine.NewLexer(),
		kindToTerminal: kindToTerminal,
	}
	if init != nil {
		init(adapter.Lexer)
	}
	for _, lit := range literals {
		r := "\\" + strings.Join(strings.Split(lit, ""), "\\")
		adapter.Lexer.Add([]byte(r), MakeTokenAction(kinds[lit]))
	}
	for _, kw := range keywords {
		adapter.Lexer.Add([]byte(strings.ToLower(kw)), MakeTokenAction(kinds[kw]))
	}
	if err := adapter.Lexer.Compile(); err != nil {
		tracer().Errorf("error compiling DFA: %v", err)
		return nil, err
	}
	return adapter, nil
}

// TokenStream starts a scanner over the input.
func (a *LexMachineAdapter) TokenStream(input []byte) (TokenStream, error) {
	s, err := a.Lexer.Scanner(input)
	if err != nil {
		return nil, err
	}
	return &lexMachineTokenStream{
		scanner:        s,
		kindToTerminal: a.kindToTerminal,
	}, nil
}

type lexMachineTokenStream struct {
	scanner        *lexmachine.Scanner
	kindToTerminal []int
}

func (l *lexMachineTokenStream) Next() (Token, error) {
	tok, err, eos := l.scanner.Next()
	if err != nil {
		if ui, ok := err.(*machines.UnconsumedInput); ok {
			// Resync past the unmatched bytes and report an invalid token so
			// the parser can raise a syntax error at the right position.
			l.scanner.TC = ui.FailTC
			return &basicToken{
				lexeme:  ui.Text[ui.StartTC:ui.FailTC],
				row:     ui.StartLine,
				col:     ui.StartColumn,
				invalid: true,
			}, nil
		}
		return nil, err
	}
	if eos {
		return NewEOFToken(), nil
	}
	// Skip actions yield nil values.
	if tok == nil {
		return l.Next()
	}

	token := tok.(*lexmachine.Token)
	terminalID := 0
	if token.Type >= 0 && token.Type < len(l.kindToTerminal) {
		terminalID = l.kindToTerminal[token.Type]
	}
	return NewToken(terminalID, token.Lexeme, token.StartLine, token.StartColumn), nil
}

// SkipAction ignores the scanned match. It suits whitespace and comments.
func SkipAction(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// MakeTokenAction wraps a scanned match into a token with the given kind.
func MakeTokenAction(kind int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(kind, string(m.Bytes), m), nil
	}
}
