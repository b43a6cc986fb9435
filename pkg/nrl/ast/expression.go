package ast

import (
	"strconv"
	"strings"

	"normative-hq/themis/pkg/nrl/token"
)

// Node is implemented by every syntax tree node. Nodes are immutable once
// constructed and own their children.
type Node interface {
	// Tokens returns the source tokens of the node and all its children,
	// in source order, for diagnostics.
	Tokens() []token.Token
}

// Span returns the source region covered by a node.
func Span(n Node) token.Span {
	return token.Join(n.Tokens())
}

// Expression is the closed sum of NRL expression nodes.
type Expression interface {
	Node
	expr()
}

// GlobalScope is the scope index addressing the global frame.
const GlobalScope = -1

// Address is a fixed (scope, slot) variable address computed by the
// resolution pass. Scope is GlobalScope for the global frame, otherwise
// the depth of the owning frame counted from the innermost frame
// (0 = innermost). Slot is the slot index within that frame.
type Address struct {
	Scope int
	Slot  int
}

// IsGlobal reports whether the address points into the global frame.
func (a Address) IsGlobal() bool { return a.Scope == GlobalScope }

// String returns "global[slot]" or "frame<scope>[slot]".
func (a Address) String() string {
	if a.IsGlobal() {
		return "global[" + strconv.Itoa(a.Slot) + "]"
	}
	return "frame" + strconv.Itoa(a.Scope) + "[" + strconv.Itoa(a.Slot) + "]"
}

// Literal wraps a Value as an expression.
type Literal struct {
	Tok token.Token
	Val Value
}

func (l *Literal) expr() {}

// Tokens returns the literal's source token.
func (l *Literal) Tokens() []token.Token { return []token.Token{l.Tok} }

// Lit wraps a value in a synthetic literal with no source position.
// Used for host-supplied arguments and facts.
func Lit(v Value) *Literal {
	return &Literal{Val: v}
}

// Identifier is a free identifier occurrence, as produced by the parser.
// The resolution pass rewrites every evaluated occurrence into a
// ResolvedName; an Identifier reaching the evaluator is a resolver bug.
type Identifier struct {
	Tok    token.Token
	Symbol string
}

func (i *Identifier) expr() {}

// Tokens returns the identifier's source token.
func (i *Identifier) Tokens() []token.Token { return []token.Token{i.Tok} }

// ResolvedName is an identifier rewritten to a fixed address by the
// resolution pass. The environment trusts the address and re-validates
// only the symbol, as a defense against stale resolved names.
type ResolvedName struct {
	Tok    token.Token
	Symbol string
	Addr   Address
}

func (r *ResolvedName) expr() {}

// Tokens returns the resolved name's source token.
func (r *ResolvedName) Tokens() []token.Token { return []token.Token{r.Tok} }

// RelationalIdentifier names a relation between entities: a template
// identifier applied to a tuple of entity identifiers, e.g. owes(buyer,
// seller). Each distinct tuple addresses one relation slot in the global
// frame. Name is set by the resolution pass.
type RelationalIdentifier struct {
	Tok      token.Token
	Template string
	Args     []*Identifier
	Name     *ResolvedName
}

func (r *RelationalIdentifier) expr() {}

// Symbol returns the canonical slot symbol of the relation, the template
// applied to the argument symbols: "owes(buyer,seller)".
func (r *RelationalIdentifier) Symbol() string {
	parts := make([]string, len(r.Args))
	for i, a := range r.Args {
		parts[i] = a.Symbol
	}
	return r.Template + "(" + strings.Join(parts, ",") + ")"
}

// Tokens returns the tokens of the template and all argument identifiers.
func (r *RelationalIdentifier) Tokens() []token.Token {
	toks := []token.Token{r.Tok}
	for _, a := range r.Args {
		toks = append(toks, a.Tokens()...)
	}
	return toks
}

// Conditional is a three-way expression: predicate, consequent,
// alternative.
type Conditional struct {
	Tok  token.Token
	Pred Expression
	Cons Expression
	Alt  Expression
}

func (c *Conditional) expr() {}

// Tokens returns the tokens of the conditional and its three branches.
func (c *Conditional) Tokens() []token.Token {
	toks := []token.Token{c.Tok}
	toks = append(toks, c.Pred.Tokens()...)
	toks = append(toks, c.Cons.Tokens()...)
	toks = append(toks, c.Alt.Tokens()...)
	return toks
}

// LogicalOp is a boolean composition operator.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// Logical composes two boolean expressions. Evaluation short-circuits:
// the right operand is not evaluated when the left already decides the
// result.
type Logical struct {
	Tok token.Token
	Op  LogicalOp
	Lhs Expression
	Rhs Expression
}

func (l *Logical) expr() {}

// Tokens returns the tokens of the operator and both operands.
func (l *Logical) Tokens() []token.Token {
	toks := append([]token.Token{}, l.Lhs.Tokens()...)
	toks = append(toks, l.Tok)
	toks = append(toks, l.Rhs.Tokens()...)
	return toks
}

// BinaryOp is an arithmetic or comparison operator.
type BinaryOp string

const (
	OpAdd          BinaryOp = "+"
	OpSubtract     BinaryOp = "-"
	OpMultiply     BinaryOp = "*"
	OpDivide       BinaryOp = "/"
	OpLessThan     BinaryOp = "<"
	OpLessEqual    BinaryOp = "<="
	OpGreaterThan  BinaryOp = ">"
	OpGreaterEqual BinaryOp = ">="
	OpEqual        BinaryOp = "=="
	OpNotEqual     BinaryOp = "!="
)

// Binary applies an arithmetic or comparison operator to two operands.
type Binary struct {
	Tok token.Token
	Op  BinaryOp
	Lhs Expression
	Rhs Expression
}

func (b *Binary) expr() {}

// Tokens returns the tokens of the operator and both operands.
func (b *Binary) Tokens() []token.Token {
	toks := append([]token.Token{}, b.Lhs.Tokens()...)
	toks = append(toks, b.Tok)
	toks = append(toks, b.Rhs.Tokens()...)
	return toks
}

// UnaryOp is a prefix operator.
type UnaryOp string

const (
	OpNegate UnaryOp = "-"
	OpNot    UnaryOp = "not"
)

// Unary applies a prefix operator to one operand.
type Unary struct {
	Tok     token.Token
	Op      UnaryOp
	Operand Expression
}

func (u *Unary) expr() {}

// Tokens returns the tokens of the operator and its operand.
func (u *Unary) Tokens() []token.Token {
	return append([]token.Token{u.Tok}, u.Operand.Tokens()...)
}

// RevokeMarker is the sentinel mutation value meaning "retract this
// relation" rather than assign a value to it.
type RevokeMarker struct {
	Tok token.Token
}

func (r *RevokeMarker) expr() {}

// Tokens returns the marker's source token.
func (r *RevokeMarker) Tokens() []token.Token { return []token.Token{r.Tok} }
