package driver

import "errors"

// ErrOvershoot is returned by a finite token stream when the parser asks for
// a token past the end of the sequence.
var ErrOvershoot = errors.New("read past the end of the token sequence")

// Token is a single input symbol with its lexeme and source position.
type Token interface {
	// TerminalID returns the terminal code of the token. The value is
	// ignored for EOF tokens.
	TerminalID() int

	Lexeme() []byte

	EOF() bool

	// Invalid reports a lexeme the lexer could not match. An invalid token
	// carries terminal code 0, which no action-table column exists for, so
	// the parser sees it as a syntax error.
	Invalid() bool

	// Position returns the row and column the token starts at.
	Position() (int, int)
}

// TokenStream produces the token sequence a parser consumes. Next is called
// lazily: a parser that accepts or rejects early never reads the rest.
type TokenStream interface {
	Next() (Token, error)
}

type basicToken struct {
	terminal int
	lexeme   []byte
	row      int
	col      int
	eof      bool
	invalid  bool
}

func (t *basicToken) TerminalID() int {
	return t.terminal
}

func (t *basicToken) Lexeme() []byte {
	return t.lexeme
}

func (t *basicToken) EOF() bool {
	return t.eof
}

func (t *basicToken) Invalid() bool {
	return t.invalid
}

func (t *basicToken) Position() (int, int) {
	return t.row, t.col
}

func NewToken(terminal int, lexeme []byte, row, col int) Token {
	return &basicToken{
		terminal: terminal,
		lexeme:   lexeme,
		row:      row,
		col:      col,
	}
}

func NewEOFToken() Token {
	return &basicToken{
		eof: true,
	}
}

// NewInvalidToken wraps a lexeme no terminal matches.
func NewInvalidToken(lexeme []byte, row, col int) Token {
	return &basicToken{
		lexeme:  lexeme,
		row:     row,
		col:     col,
		invalid: true,
	}
}

// SliceTokenStream reads tokens from an in-memory sequence.
type SliceTokenStream struct {
	toks   []Token
	pos    int
	padEOF bool
}

// NewSliceTokenStream wraps a finite token sequence. Reading past the last
// token fails with ErrOvershoot; callers that want ordinary end-of-input
// behavior use NewPaddedTokenStream instead.
func NewSliceTokenStream(toks []Token) *SliceTokenStream {
	return &SliceTokenStream{
		toks: toks,
	}
}

// NewPaddedTokenStream wraps a token sequence and yields EOF tokens forever
// once the sequence is exhausted.
func NewPaddedTokenStream(toks []Token) *SliceTokenStream {
	return &SliceTokenStream{
		toks:   toks,
		padEOF: true,
	}
}

func (s *SliceTokenStream) Next() (Token, error) {
	if s.pos < len(s.toks) {
		tok := s.toks[s.pos]
		s.pos++
		return tok, nil
	}
	if s.padEOF {
		return NewEOFToken(), nil
	}
	return nil, ErrOvershoot
}

// Remaining returns the number of unread tokens. A parser that accepted with
// Remaining() > 0 did not consume the whole input.
func (s *SliceTokenStream) Remaining() int {
	return len(s.toks) - s.pos
}
