package tester

import (
	"testing"

	"github.com/grackle-lang/grackle/driver"
	"github.com/grackle-lang/grackle/grammar"
	"github.com/grackle-lang/grackle/tables"
)

func genTestGrammar(t *testing.T, build func(b *grammar.Builder)) (driver.Grammar, *tables.Tables) {
	t.Helper()

	b := grammar.NewBuilder("test")
	build(b)
	gram, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build a grammar: %v", err)
	}
	tabs, _, _, err := grammar.Compile(gram)
	if err != nil {
		t.Fatalf("failed to compile a grammar: %v", err)
	}
	return driver.NewGrammar(tabs, nil), tabs
}

func genTokens(t *testing.T, tabs *tables.Tables, names ...string) []driver.Token {
	t.Helper()

	var toks []driver.Token
	for col, name := range names {
		code := 0
		for c, text := range tabs.Terminals {
			if text == name {
				code = c
				break
			}
		}
		if code == 0 {
			t.Fatalf("terminal was not found: %v", name)
		}
		toks = append(toks, driver.NewToken(code, []byte(name), 0, col))
	}
	return toks
}

func genNestedGrammar(b *grammar.Builder) {
	b.Production("s", []string{"a", "s", "b"})
	b.Production("s", nil)
	b.Start("s")
}

func TestTesterExpectAccept(t *testing.T) {
	gram, tabs := genTestGrammar(t, genNestedGrammar)
	tester := New(gram)

	if err := tester.ExpectAccept(genTokens(t, tabs, "a", "a", "b", "b")); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
	if err := tester.ExpectAccept(nil); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
	if err := tester.ExpectAccept(genTokens(t, tabs, "a", "b", "b")); err == nil {
		t.Errorf("an expected error didn't occur")
	}
}

func TestTesterExpectReject(t *testing.T) {
	gram, tabs := genTestGrammar(t, genNestedGrammar)
	tester := New(gram)

	if err := tester.ExpectReject(genTokens(t, tabs, "a", "b", "b")); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
	if err := tester.ExpectReject(genTokens(t, tabs, "a", "a", "b", "b")); err == nil {
		t.Errorf("an expected error didn't occur")
	}
}

func TestTesterFailureKinds(t *testing.T) {
	t.Run("a clean acceptance has no failure", func(t *testing.T) {
		gram, tabs := genTestGrammar(t, genNestedGrammar)
		tester := New(gram)
		res := tester.ParsePadded(genTokens(t, tabs, "a", "b"))
		if res.Failure() != FailureNone {
			t.Fatalf("failure is mismatched; want: %v, got: %v", FailureNone, res.Failure())
		}
		if res.Tree == nil {
			t.Fatalf("an accepted attempt must carry a tree")
		}
	})

	t.Run("a rejection reports the stop state", func(t *testing.T) {
		gram, tabs := genTestGrammar(t, genNestedGrammar)
		tester := New(gram)
		res := tester.ParsePadded(genTokens(t, tabs, "b"))
		if res.Failure() != FailureSyntaxError {
			t.Fatalf("failure is mismatched; want: %v, got: %v", FailureSyntaxError, res.Failure())
		}
		if len(res.SyntaxErrors) == 0 {
			t.Fatalf("a rejected attempt must carry syntax errors")
		}
	})

	t.Run("a finite sequence without EOF cannot be accepted", func(t *testing.T) {
		gram, tabs := genTestGrammar(t, genNestedGrammar)
		tester := New(gram)
		res := tester.Parse(genTokens(t, tabs, "a", "b"))
		if res.Failure() != FailureReadPastEnd {
			t.Fatalf("failure is mismatched; want: %v, got: %v", FailureReadPastEnd, res.Failure())
		}
	})

	t.Run("unread tokens after acceptance are reported", func(t *testing.T) {
		// The sequence carries its own EOF token, so the parse accepts while
		// a stray trailing token is still unread.
		gram, tabs := genTestGrammar(t, func(b *grammar.Builder) {
			b.Production("s", []string{"a", "eos"})
			b.Start("s")
		})
		tester := New(gram)
		toks := append(genTokens(t, tabs, "a", "eos"), driver.NewEOFToken())
		toks = append(toks, genTokens(t, tabs, "a")...)
		res := tester.Parse(toks)
		if res.Failure() != FailureNotFullyConsumed {
			t.Fatalf("failure is mismatched; want: %v, got: %v", FailureNotFullyConsumed, res.Failure())
		}
		if res.Remaining != 1 {
			t.Fatalf("remaining count is mismatched; want: %v, got: %v", 1, res.Remaining)
		}
	})

	t.Run("a tiny budget times out and stays classifiable", func(t *testing.T) {
		gram, tabs := genTestGrammar(t, genNestedGrammar)
		tester := New(gram, WithBudget(1))
		res := tester.ParsePadded(genTokens(t, tabs, "a", "a", "b", "b"))
		if res.Failure() != FailureTimedOut {
			t.Fatalf("failure is mismatched; want: %v, got: %v", FailureTimedOut, res.Failure())
		}
	})
}

func TestTesterEntryPoint(t *testing.T) {
	gram, tabs := genTestGrammar(t, func(b *grammar.Builder) {
		b.Production("stmt", []string{"id", "semi"})
		b.Production("expr", []string{"id"})
		b.Start("stmt")
		b.Start("expr")
	})

	stmtTester := New(gram)
	exprTester := New(gram, WithEntryPoint(1))

	if err := stmtTester.ExpectAccept(genTokens(t, tabs, "id", "semi")); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
	if err := exprTester.ExpectAccept(genTokens(t, tabs, "id")); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
	if err := exprTester.ExpectReject(genTokens(t, tabs, "id", "semi")); err != nil {
		t.Errorf("unexpected failure: %v", err)
	}
}
