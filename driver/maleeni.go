package driver

import (
	"io"

	mldriver "github.com/nihei9/maleeni/driver"
	mlspec "github.com/nihei9/maleeni/spec"
)

type maleeniToken struct {
	terminalID int
	tok        *mldriver.Token
}

func (t *maleeniToken) TerminalID() int {
	return t.terminalID
}

func (t *maleeniToken) Lexeme() []byte {
	return t.tok.Lexeme
}

func (t *maleeniToken) EOF() bool {
	return t.tok.EOF
}

func (t *maleeniToken) Invalid() bool {
	return t.tok.Invalid
}

func (t *maleeniToken) Position() (int, int) {
	return t.tok.Row, t.tok.Col
}

type maleeniTokenStream struct {
	lex            *mldriver.Lexer
	kindToTerminal []int
	skip           map[int]struct{}
}

// NewMaleeniTokenStream runs a compiled maleeni lexer over src and maps its
// token kinds to terminal codes through kindToTerminal. Kinds listed in
// skipKinds are dropped before the parser sees them.
func NewMaleeniTokenStream(clspec *mlspec.CompiledLexSpec, kindToTerminal []int, skipKinds []int, src io.Reader) (TokenStream, error) {
	lex, err := mldriver.NewLexer(mldriver.NewLexSpec(clspec), src)
	if err != nil {
		return nil, err
	}
	skip := make(map[int]struct{}, len(skipKinds))
	for _, k := range skipKinds {
		skip[k] = struct{}{}
	}
	return &maleeniTokenStream{
		lex:            lex,
		kindToTerminal: kindToTerminal,
		skip:           skip,
	}, nil
}

func (l *maleeniTokenStream) Next() (Token, error) {
	for {
		tok, err := l.lex.Next()
		if err != nil {
			return nil, err
		}
		if _, ok := l.skip[int(tok.KindID)]; ok {
			continue
		}

		// An invalid token keeps terminal code 0. No action-table column
		// exists for code 0, so the parser reports it as a syntax error.
		terminalID := 0
		if !tok.Invalid && int(tok.KindID) < len(l.kindToTerminal) {
			terminalID = l.kindToTerminal[tok.KindID]
		}
		return &maleeniToken{
			terminalID: terminalID,
			tok:        tok,
		}, nil
	}
}
