package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/grackle-lang/grackle/grammar"
	"github.com/grackle-lang/grackle/tables"
)

func compileTestGrammar(t *testing.T, build func(b *grammar.Builder)) (*tables.Tables, *tables.Reference) {
	t.Helper()

	b := grammar.NewBuilder("test")
	build(b)
	gram, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build a grammar: %v", err)
	}
	tabs, ref, _, err := grammar.Compile(gram)
	if err != nil {
		t.Fatalf("failed to compile a grammar: %v", err)
	}
	return tabs, ref
}

// genTokens maps terminal names onto tokens. A name no terminal matches
// becomes an invalid token, the way a lexer reports an unmatchable lexeme.
func genTokens(tabs *tables.Tables, names ...string) []Token {
	var toks []Token
	for col, name := range names {
		code := 0
		for c, text := range tabs.Terminals {
			if text == name {
				code = c
				break
			}
		}
		if code == 0 {
			toks = append(toks, NewInvalidToken([]byte(name), 0, col))
			continue
		}
		toks = append(toks, NewToken(code, []byte(name), 0, col))
	}
	return toks
}

type expectedNode struct {
	kind     string
	text     string
	children []*expectedNode
}

func termNode(kind, text string) *expectedNode {
	return &expectedNode{
		kind: kind,
		text: text,
	}
}

func nonTermNode(kind string, children ...*expectedNode) *expectedNode {
	return &expectedNode{
		kind:     kind,
		children: children,
	}
}

func testTree(t *testing.T, node *Node, want *expectedNode) {
	t.Helper()

	if node == nil {
		t.Fatalf("node is nil; want: %v", want.kind)
	}
	if node.KindName != want.kind {
		t.Fatalf("kind is mismatched; want: %v, got: %v", want.kind, node.KindName)
	}
	if want.text != "" && node.Text != want.text {
		t.Fatalf("text is mismatched; want: %v, got: %v", want.text, node.Text)
	}
	if len(node.Children) != len(want.children) {
		t.Fatalf("child count of %v is mismatched; want: %v, got: %v", want.kind, len(want.children), len(node.Children))
	}
	for i, child := range want.children {
		testTree(t, node.Children[i], child)
	}
}

func genCalcGrammar(b *grammar.Builder) {
	b.LeftAssoc("mul")
	b.LeftAssoc("add")
	b.Production("expr", []string{"expr", "add", "expr"})
	b.Production("expr", []string{"expr", "mul", "expr"})
	b.Production("expr", []string{"l_paren", "expr", "r_paren"})
	b.Production("expr", []string{"id"})
	b.Start("expr")
}

func TestParserParse(t *testing.T) {
	tests := []struct {
		caption string
		build   func(b *grammar.Builder)
		src     []string
		reject  bool
		tree    *expectedNode
	}{
		{
			caption: "a nested input",
			build: func(b *grammar.Builder) {
				b.Production("s", []string{"a", "s", "b"})
				b.Production("s", nil)
				b.Start("s")
			},
			src: []string{"a", "a", "b", "b"},
			tree: nonTermNode("s",
				termNode("a", "a"),
				nonTermNode("s",
					termNode("a", "a"),
					nonTermNode("s"),
					termNode("b", "b"),
				),
				termNode("b", "b"),
			),
		},
		{
			caption: "mul binds tighter than add",
			build:   genCalcGrammar,
			src:     []string{"id", "add", "id", "mul", "id"},
			tree: nonTermNode("expr",
				nonTermNode("expr",
					termNode("id", "id"),
				),
				termNode("add", "add"),
				nonTermNode("expr",
					nonTermNode("expr",
						termNode("id", "id"),
					),
					termNode("mul", "mul"),
					nonTermNode("expr",
						termNode("id", "id"),
					),
				),
			),
		},
		{
			caption: "add is left-associative",
			build:   genCalcGrammar,
			src:     []string{"id", "add", "id", "add", "id"},
			tree: nonTermNode("expr",
				nonTermNode("expr",
					nonTermNode("expr",
						termNode("id", "id"),
					),
					termNode("add", "add"),
					nonTermNode("expr",
						termNode("id", "id"),
					),
				),
				termNode("add", "add"),
				nonTermNode("expr",
					termNode("id", "id"),
				),
			),
		},
		{
			caption: "parentheses group the looser operator",
			build:   genCalcGrammar,
			src:     []string{"l_paren", "id", "add", "id", "r_paren", "mul", "id"},
			tree: nonTermNode("expr",
				nonTermNode("expr",
					termNode("l_paren", "l_paren"),
					nonTermNode("expr",
						nonTermNode("expr",
							termNode("id", "id"),
						),
						termNode("add", "add"),
						nonTermNode("expr",
							termNode("id", "id"),
						),
					),
					termNode("r_paren", "r_paren"),
				),
				termNode("mul", "mul"),
				nonTermNode("expr",
					termNode("id", "id"),
				),
			),
		},
		{
			caption: "an unbalanced input is rejected",
			build: func(b *grammar.Builder) {
				b.Production("s", []string{"a", "s", "b"})
				b.Production("s", nil)
				b.Start("s")
			},
			src:    []string{"a", "b", "b"},
			reject: true,
		},
		{
			caption: "trailing garbage after a complete sentence is rejected",
			build:   genCalcGrammar,
			src:     []string{"id", "id"},
			reject:  true,
		},
		{
			caption: "an empty input is rejected when the grammar derives no empty sentence",
			build:   genCalcGrammar,
			src:     nil,
			reject:  true,
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			tabs, _ := compileTestGrammar(t, tt.build)
			p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, tt.src...)))
			if err != nil {
				t.Fatal(err)
			}
			if err := p.Parse(); err != nil {
				t.Fatal(err)
			}
			if tt.reject {
				if p.Status() != StatusRejected {
					t.Fatalf("status is mismatched; want: %v, got: %v", StatusRejected, p.Status())
				}
				if len(p.SyntaxErrors()) == 0 {
					t.Fatalf("a rejected parse must report at least one syntax error")
				}
				return
			}
			if p.Status() != StatusAccepted {
				t.Fatalf("status is mismatched; want: %v, got: %v", StatusAccepted, p.Status())
			}
			root, ok := p.Result().(*Node)
			if !ok {
				t.Fatalf("result type is mismatched; want: *Node, got: %T", p.Result())
			}
			if tt.tree != nil {
				testTree(t, root, tt.tree)
			}
		})
	}
}

func TestParserPackedAndReferenceTablesAgree(t *testing.T) {
	inputs := [][]string{
		{"id"},
		{"id", "add", "id", "mul", "id"},
		{"l_paren", "id", "r_paren"},
		{"id", "add"},
		{"mul", "id"},
		nil,
	}
	tabs, ref := compileTestGrammar(t, genCalcGrammar)
	for i, src := range inputs {
		t.Run(fmt.Sprintf("#%v", i), func(t *testing.T) {
			packed, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, src...)))
			if err != nil {
				t.Fatal(err)
			}
			dense, err := NewParser(NewReferenceGrammar(ref, nil), NewPaddedTokenStream(genTokens(tabs, src...)))
			if err != nil {
				t.Fatal(err)
			}
			if err := packed.Parse(); err != nil {
				t.Fatal(err)
			}
			if err := dense.Parse(); err != nil {
				t.Fatal(err)
			}
			if packed.Status() != dense.Status() {
				t.Fatalf("statuses are mismatched; packed: %v, dense: %v", packed.Status(), dense.Status())
			}
			if len(packed.SyntaxErrors()) != len(dense.SyntaxErrors()) {
				t.Fatalf("syntax error counts are mismatched; packed: %v, dense: %v", len(packed.SyntaxErrors()), len(dense.SyntaxErrors()))
			}
			pRoot, _ := packed.Result().(*Node)
			dRoot, _ := dense.Result().(*Node)
			if (pRoot == nil) != (dRoot == nil) {
				t.Fatalf("results are mismatched; packed: %v, dense: %v", pRoot, dRoot)
			}
			if pRoot != nil {
				testTreesEqual(t, pRoot, dRoot)
			}
		})
	}
}

func testTreesEqual(t *testing.T, a, b *Node) {
	t.Helper()

	if a.KindName != b.KindName || a.Text != b.Text || len(a.Children) != len(b.Children) {
		t.Fatalf("nodes are mismatched; packed: %v %#v (%v children), dense: %v %#v (%v children)",
			a.KindName, a.Text, len(a.Children), b.KindName, b.Text, len(b.Children))
	}
	for i := range a.Children {
		testTreesEqual(t, a.Children[i], b.Children[i])
	}
}

func TestParserReadPastEnd(t *testing.T) {
	tabs, _ := compileTestGrammar(t, genCalcGrammar)

	// Without EOF padding a complete sentence still cannot accept: acceptance
	// needs the EOF lookahead, so the parser reports the overshoot and stays
	// suspended.
	p, err := NewParser(NewGrammar(tabs, nil), NewSliceTokenStream(genTokens(tabs, "id", "add", "id")))
	if err != nil {
		t.Fatal(err)
	}
	err = p.Parse()
	if !errors.Is(err, ErrOvershoot) {
		t.Fatalf("error is mismatched; want: %v, got: %v", ErrOvershoot, err)
	}
	if p.Status() != StatusRunning {
		t.Fatalf("an overshoot must leave the parser runnable; got: %v", p.Status())
	}
}

func TestParserRunBudget(t *testing.T) {
	tabs, _ := compileTestGrammar(t, genCalcGrammar)
	p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, "id", "add", "id", "mul", "id")))
	if err != nil {
		t.Fatal(err)
	}

	st, err := p.Run(2)
	if err != nil {
		t.Fatal(err)
	}
	if st != StatusTimedOut {
		t.Fatalf("status is mismatched; want: %v, got: %v", StatusTimedOut, st)
	}
	if p.Status() != StatusRunning {
		t.Fatalf("a timed-out parser must stay runnable; got: %v", p.Status())
	}

	// A suspended parser resumes where it stopped.
	steps := 0
	for p.Status() == StatusRunning {
		if p.StackDepth() < 1 {
			t.Fatalf("the state stack must never be empty")
		}
		if _, err := p.Next(); err != nil {
			t.Fatal(err)
		}
		steps++
		if steps > 100 {
			t.Fatalf("the parse did not finish")
		}
	}
	if p.Status() != StatusAccepted {
		t.Fatalf("status is mismatched; want: %v, got: %v", StatusAccepted, p.Status())
	}
	if p.Result() == nil {
		t.Fatalf("an accepted parse must carry a result")
	}
}

func TestParserSyntaxError(t *testing.T) {
	tabs, _ := compileTestGrammar(t, genCalcGrammar)
	p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, "add", "id")))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	if p.Status() != StatusRejected {
		t.Fatalf("status is mismatched; want: %v, got: %v", StatusRejected, p.Status())
	}
	synErrs := p.SyntaxErrors()
	if len(synErrs) != 1 {
		t.Fatalf("syntax error count is mismatched; want: %v, got: %v", 1, len(synErrs))
	}
	expected := map[string]bool{}
	for _, name := range synErrs[0].ExpectedTerminals {
		expected[name] = true
	}
	if !expected["id"] || !expected["l_paren"] {
		t.Errorf("expected terminals are mismatched; got: %v", synErrs[0].ExpectedTerminals)
	}
	for _, name := range synErrs[0].ExpectedTerminals {
		if name == tabs.Terminals[tabs.ErrorTerminal] {
			t.Errorf("the error pseudo-terminal must not appear in expected terminals")
		}
	}
}

func genStmtsGrammar(b *grammar.Builder) {
	b.Production("stmts", []string{"stmts", "stmt"})
	b.Production("stmts", []string{"stmt"})
	b.Production("stmt", []string{"id", "semi"})
	b.Production("stmt", []string{"error", "semi"})
	b.Start("stmts")
}

func TestParserErrorRecovery(t *testing.T) {
	t.Run("the parser recovers and keeps parsing", func(t *testing.T) {
		tabs, _ := compileTestGrammar(t, genStmtsGrammar)
		src := genTokens(tabs, "id", "semi", "!", "semi", "id", "semi")
		p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(src))
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Parse(); err != nil {
			t.Fatal(err)
		}
		if p.Status() != StatusAccepted {
			t.Fatalf("status is mismatched; want: %v, got: %v", StatusAccepted, p.Status())
		}
		if len(p.SyntaxErrors()) != 1 {
			t.Fatalf("syntax error count is mismatched; want: %v, got: %v", 1, len(p.SyntaxErrors()))
		}

		// The recovered statement appears in the tree with an error leaf in
		// place of the skipped tokens.
		root, _ := p.Result().(*Node)
		testTree(t, root, nonTermNode("stmts",
			nonTermNode("stmts",
				nonTermNode("stmts",
					nonTermNode("stmt",
						termNode("id", "id"),
						termNode("semi", "semi"),
					),
				),
				nonTermNode("stmt",
					&expectedNode{kind: tabs.Terminals[tabs.ErrorTerminal]},
					termNode("semi", "semi"),
				),
			),
			nonTermNode("stmt",
				termNode("id", "id"),
				termNode("semi", "semi"),
			),
		))
	})

	t.Run("EOF in error mode rejects the input", func(t *testing.T) {
		tabs, _ := compileTestGrammar(t, genStmtsGrammar)
		p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, "!")))
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Parse(); err != nil {
			t.Fatal(err)
		}
		if p.Status() != StatusRejected {
			t.Fatalf("status is mismatched; want: %v, got: %v", StatusRejected, p.Status())
		}
		if len(p.SyntaxErrors()) != 1 {
			t.Fatalf("syntax error count is mismatched; want: %v, got: %v", 1, len(p.SyntaxErrors()))
		}
	})

	t.Run("a grammar without error productions rejects immediately", func(t *testing.T) {
		tabs, _ := compileTestGrammar(t, genCalcGrammar)
		p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, "!")))
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Parse(); err != nil {
			t.Fatal(err)
		}
		if p.Status() != StatusRejected {
			t.Fatalf("status is mismatched; want: %v, got: %v", StatusRejected, p.Status())
		}
	})
}

func TestParserSemanticActions(t *testing.T) {
	tabs, _ := compileTestGrammar(t, func(b *grammar.Builder) {
		b.Production("s", []string{"a"})
		b.Start("s")
	})

	actions := make([]tables.SemanticAction, tabs.ProductionCount)
	actions[tabs.StartProductions[0]+1] = func(values []any) any {
		return fmt.Sprintf("reduced %v values", len(values))
	}

	p, err := NewParser(NewGrammar(tabs, actions), NewPaddedTokenStream(genTokens(tabs, "a")), DisableTreeActions())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	if p.Status() != StatusAccepted {
		t.Fatalf("status is mismatched; want: %v, got: %v", StatusAccepted, p.Status())
	}
	if got, want := p.Result(), "reduced 1 values"; got != want {
		t.Fatalf("result is mismatched; want: %v, got: %v", want, got)
	}
}

func TestParserEntryPoints(t *testing.T) {
	build := func(b *grammar.Builder) {
		b.Production("stmt", []string{"id", "semi"})
		b.Production("expr", []string{"id"})
		b.Start("stmt")
		b.Start("expr")
	}

	tabs, _ := compileTestGrammar(t, build)
	tests := []struct {
		entry  int
		src    []string
		status Status
	}{
		{entry: 0, src: []string{"id", "semi"}, status: StatusAccepted},
		{entry: 0, src: []string{"id"}, status: StatusRejected},
		{entry: 1, src: []string{"id"}, status: StatusAccepted},
		{entry: 1, src: []string{"id", "semi"}, status: StatusRejected},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v", i), func(t *testing.T) {
			p, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(genTokens(tabs, tt.src...)), WithEntryPoint(tt.entry))
			if err != nil {
				t.Fatal(err)
			}
			if err := p.Parse(); err != nil {
				t.Fatal(err)
			}
			if p.Status() != tt.status {
				t.Fatalf("status is mismatched; want: %v, got: %v", tt.status, p.Status())
			}
		})
	}

	t.Run("an unknown entry point fails at construction", func(t *testing.T) {
		if _, err := NewParser(NewGrammar(tabs, nil), NewPaddedTokenStream(nil), WithEntryPoint(2)); err == nil {
			t.Fatalf("an expected error didn't occur")
		}
	})
}
