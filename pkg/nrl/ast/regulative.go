package ast

import (
	"normative-hq/themis/pkg/nrl/errors"
	"normative-hq/themis/pkg/nrl/token"
)

// Modality is a deontic qualifier: an action is either permitted or
// obligated.
type Modality string

const (
	ModalityPermitted Modality = "permitted"
	ModalityObligated Modality = "obligated"
)

// DeonticTemporalAction states that an action is permitted or obligated,
// optionally within a deadline. Action is a boolean expression signaling
// whether the regulated act was taken. IsAlways marks a standing modality
// that never expires, as opposed to one gated by the deadline.
type DeonticTemporalAction struct {
	Tok      token.Token
	IsAlways bool
	Modality Modality
	Action   Expression

	// Deadline gates the modality when IsAlways is false. Nil means no
	// temporal constraint.
	Deadline *TemporalConstraint

	// InstanceTags name the unit instances the modality binds, e.g. the
	// specific parties under obligation. Each expression must evaluate
	// to a unit instance.
	InstanceTags []Expression
}

// NewDeonticTemporalAction builds a deontic temporal action, failing with
// a construction error on a missing action expression or an unknown
// modality.
func NewDeonticTemporalAction(tok token.Token, isAlways bool, modality Modality, action Expression, deadline *TemporalConstraint, tags []Expression) (*DeonticTemporalAction, error) {
	if action == nil {
		return nil, errors.At(errors.KindConstruction, tok.Location(),
			"deontic action has no action expression")
	}
	if modality != ModalityPermitted && modality != ModalityObligated {
		return nil, errors.At(errors.KindConstruction, tok.Location(),
			"unknown deontic modality %q", string(modality))
	}
	return &DeonticTemporalAction{
		Tok:          tok,
		IsAlways:     isAlways,
		Modality:     modality,
		Action:       action,
		Deadline:     deadline,
		InstanceTags: tags,
	}, nil
}

func (d *DeonticTemporalAction) conclusionItem() {}

// Tokens returns the tokens of the action and its parts.
func (d *DeonticTemporalAction) Tokens() []token.Token {
	toks := []token.Token{d.Tok}
	toks = append(toks, d.Action.Tokens()...)
	if d.Deadline != nil {
		toks = append(toks, d.Deadline.Tokens()...)
	}
	for _, t := range d.InstanceTags {
		toks = append(toks, t.Tokens()...)
	}
	return toks
}

// Mutation assigns a relation a value, or retracts it when the value is
// a RevokeMarker.
type Mutation struct {
	Tok    token.Token
	Target *RelationalIdentifier
	Value  Expression
}

// NewMutation builds a mutation, failing with a construction error if
// the target or value is missing.
func NewMutation(tok token.Token, target *RelationalIdentifier, value Expression) (*Mutation, error) {
	if target == nil {
		return nil, errors.At(errors.KindConstruction, tok.Location(), "mutation has no target relation")
	}
	if value == nil {
		return nil, errors.At(errors.KindConstruction, tok.Location(), "mutation has no value")
	}
	return &Mutation{Tok: tok, Target: target, Value: value}, nil
}

// Revokes reports whether the mutation retracts its target relation.
func (m *Mutation) Revokes() bool {
	_, ok := m.Value.(*RevokeMarker)
	return ok
}

// Tokens returns the tokens of the target and value.
func (m *Mutation) Tokens() []token.Token {
	toks := []token.Token{m.Tok}
	toks = append(toks, m.Target.Tokens()...)
	toks = append(toks, m.Value.Tokens()...)
	return toks
}

// RegulativeRuleInvocation calls another regulative rule, binding the
// argument expressions positionally to the callee's parameter list.
// Target is set by the resolution pass.
type RegulativeRuleInvocation struct {
	Tok    token.Token
	Label  *Identifier
	Args   []Expression
	Target *RegulativeStmt
}

func (r *RegulativeRuleInvocation) conclusionItem() {}

// Tokens returns the tokens of the label and all arguments.
func (r *RegulativeRuleInvocation) Tokens() []token.Token {
	toks := append([]token.Token{r.Tok}, r.Label.Tokens()...)
	for _, a := range r.Args {
		toks = append(toks, a.Tokens()...)
	}
	return toks
}

// ConclusionItem is the closed sum of nested conclusion nodes: a further
// deontic action or a rule invocation.
type ConclusionItem interface {
	Node
	conclusionItem()
}

// RegulativeRuleConclusion is one consequence branch of a regulative
// rule. Fulfilled and Performed guard the branch: a set field must match
// the rule outcome (whether the rule's guard held, and whether the
// regulated action was taken) for the branch to execute. Mutations apply
// in list order before any nested conclusion is evaluated.
//
// Invariant: at least one of Fulfilled/Performed must be set to true; a
// conclusion asserting neither is meaningless and fails construction.
type RegulativeRuleConclusion struct {
	Tok         token.Token
	Fulfilled   *bool
	Performed   *bool
	Mutations   []*Mutation
	Conclusions []ConclusionItem
}

// NewRegulativeRuleConclusion builds a conclusion, enforcing the
// invariant that at least one of fulfilled/performed is set to true.
func NewRegulativeRuleConclusion(tok token.Token, fulfilled, performed *bool, mutations []*Mutation, conclusions []ConclusionItem) (*RegulativeRuleConclusion, error) {
	fulfilledTrue := fulfilled != nil && *fulfilled
	performedTrue := performed != nil && *performed
	if !fulfilledTrue && !performedTrue {
		return nil, errors.At(errors.KindConstruction, tok.Location(),
			"rule conclusion must assert fulfilled or performed").
			WithSuggestion("set fulfilled: true or performed: true on the conclusion")
	}
	return &RegulativeRuleConclusion{
		Tok:         tok,
		Fulfilled:   fulfilled,
		Performed:   performed,
		Mutations:   mutations,
		Conclusions: conclusions,
	}, nil
}

// Tokens returns the tokens of the conclusion and all nested nodes.
func (c *RegulativeRuleConclusion) Tokens() []token.Token {
	toks := []token.Token{c.Tok}
	for _, m := range c.Mutations {
		toks = append(toks, m.Tokens()...)
	}
	for _, n := range c.Conclusions {
		toks = append(toks, n.Tokens()...)
	}
	return toks
}

// Param is one formal parameter of a regulative rule: a name and its
// declared type. Parameter order is binding order.
type Param struct {
	Name     string
	TypeName string
}

// RegulativeStmt is the central unit of NRL: a named, parameterized
// statement that something is permitted or obligated, with optional
// guard, deadline and consequences. A rule without a guard is
// unconditionally in force whenever invoked. Global marks a top-level
// rule as opposed to one nested in and private to another rule.
type RegulativeStmt struct {
	Tok         token.Token
	Label       string
	Params      []Param
	Guard       Expression // nil: unconditionally in force
	Action      *DeonticTemporalAction
	Conclusions []*RegulativeRuleConclusion
	Global      bool
}

// NewRegulativeStmt builds a regulative rule, failing with a
// construction error on a missing label or action.
func NewRegulativeStmt(tok token.Token, label string, params []Param, guard Expression, action *DeonticTemporalAction, conclusions []*RegulativeRuleConclusion, global bool) (*RegulativeStmt, error) {
	if label == "" {
		return nil, errors.At(errors.KindConstruction, tok.Location(), "regulative rule has no label")
	}
	if action == nil {
		return nil, errors.At(errors.KindConstruction, tok.Location(),
			"regulative rule %q has no deontic action", label)
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.Name] {
			return nil, errors.At(errors.KindConstruction, tok.Location(),
				"regulative rule %q declares parameter %q twice", label, p.Name)
		}
		seen[p.Name] = true
	}
	return &RegulativeStmt{
		Tok:         tok,
		Label:       label,
		Params:      params,
		Guard:       guard,
		Action:      action,
		Conclusions: conclusions,
		Global:      global,
	}, nil
}

func (r *RegulativeStmt) stmt() {}

// Tokens returns the tokens of the rule and all nested nodes.
func (r *RegulativeStmt) Tokens() []token.Token {
	toks := []token.Token{r.Tok}
	if r.Guard != nil {
		toks = append(toks, r.Guard.Tokens()...)
	}
	toks = append(toks, r.Action.Tokens()...)
	for _, c := range r.Conclusions {
		toks = append(toks, c.Tokens()...)
	}
	return toks
}
