package ast

import (
	"normative-hq/themis/pkg/nrl/token"
)

// Statement is the closed sum of NRL statement nodes.
type Statement interface {
	Node
	stmt()
}

// TypeDefinition declares a unit type, e.g. "type person". Instances of
// the type are opaque named entities used to represent parties.
type TypeDefinition struct {
	Tok  token.Token
	Name string
}

func (t *TypeDefinition) stmt() {}

// Tokens returns the definition's source token.
func (t *TypeDefinition) Tokens() []token.Token { return []token.Token{t.Tok} }

// TypeInstancing declares a variable of a declared type, e.g.
// "buyer: person" or "amount: number". The variable's value may be
// supplied up front in the initial environment, or requested from the
// host when evaluation first needs it. Until a value is known, the
// variable's slot stays bound to this declaring node.
type TypeInstancing struct {
	Tok      token.Token
	Variable *Identifier
	TypeName string

	// Name is the resolved address of the declared variable, set by the
	// resolution pass.
	Name *ResolvedName
}

func (t *TypeInstancing) stmt() {}

// Tokens returns the tokens of the declaration and the declared variable.
func (t *TypeInstancing) Tokens() []token.Token {
	return append([]token.Token{t.Tok}, t.Variable.Tokens()...)
}

// RelationalInstancing declares a relation slot, e.g. "owes(buyer,
// seller)". Like a variable declaration, the slot stays bound to this
// declaring node until a mutation assigns it a value; a revoke mutation
// rebinds it here, making the relation unknown again.
type RelationalInstancing struct {
	Tok      token.Token
	Relation *RelationalIdentifier
}

func (r *RelationalInstancing) stmt() {}

// Tokens returns the tokens of the declaration and the relation.
func (r *RelationalInstancing) Tokens() []token.Token {
	return append([]token.Token{r.Tok}, r.Relation.Tokens()...)
}

// Program is an ordered list of parsed statements: type and relation
// declarations plus regulative rules.
type Program struct {
	Statements []Statement
}

// Rules returns the program's top-level (global) regulative rules in
// source order.
func (p *Program) Rules() []*RegulativeStmt {
	var rules []*RegulativeStmt
	for _, s := range p.Statements {
		if r, ok := s.(*RegulativeStmt); ok && r.Global {
			rules = append(rules, r)
		}
	}
	return rules
}

// Rule returns the top-level rule with the given label.
func (p *Program) Rule(label string) (*RegulativeStmt, bool) {
	for _, s := range p.Statements {
		if r, ok := s.(*RegulativeStmt); ok && r.Global && r.Label == label {
			return r, true
		}
	}
	return nil, false
}
