package grammar

import (
	"encoding/json"
	"fmt"
	"io"
)

// GrammarDef is the JSON grammar definition the CLI compiles. It maps onto
// the Builder one to one.
type GrammarDef struct {
	Name string `json:"name"`

	Terminals []string `json:"terminals"`

	// Precedence groups are listed from tightest to loosest binding.
	Precedence []*PrecGroupDef `json:"precedence"`

	Productions []*ProductionDef `json:"productions"`

	Start []string `json:"start"`
}

type PrecGroupDef struct {
	Assoc     string   `json:"assoc"`
	Terminals []string `json:"terminals"`
}

type ProductionDef struct {
	LHS  string   `json:"lhs"`
	RHS  []string `json:"rhs"`
	Prec string   `json:"prec,omitempty"`
}

func ParseGrammarDef(r io.Reader) (*GrammarDef, error) {
	var def GrammarDef
	dec := json.NewDecoder(r)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("malformed grammar definition: %w", err)
	}
	return &def, nil
}

// Grammar runs the definition through a Builder.
func (d *GrammarDef) Grammar() (*Grammar, error) {
	b := NewBuilder(d.Name)
	b.Terminals(d.Terminals...)
	for _, g := range d.Precedence {
		switch g.Assoc {
		case "left":
			b.LeftAssoc(g.Terminals...)
		case "right":
			b.RightAssoc(g.Terminals...)
		case "none", "":
			b.NonAssoc(g.Terminals...)
		default:
			return nil, fmt.Errorf("unknown associativity: %v", g.Assoc)
		}
	}
	for _, p := range d.Productions {
		var opts []ProductionOption
		if p.Prec != "" {
			opts = append(opts, WithPrecedence(p.Prec))
		}
		b.Production(p.LHS, p.RHS, opts...)
	}
	for _, s := range d.Start {
		b.Start(s)
	}
	return b.Build()
}
