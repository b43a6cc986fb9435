package resolve

import (
	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/env"
	"normative-hq/themis/pkg/nrl/errors"
	"normative-hq/themis/pkg/nrl/token"
)

// Resolver rewrites every free identifier occurrence in a program into a
// resolved name with a fixed (scope, slot) address, and bootstraps the
// global frame with one slot per declared variable and relation. It
// accumulates every problem it finds instead of stopping at the first.
type Resolver struct {
	errs  *errors.List
	types map[string]token.Location
	rules map[string]*ast.RegulativeStmt
	env   *env.Environment
}

// NewResolver creates a resolver with the built-in value types
// pre-declared.
func NewResolver() *Resolver {
	return &Resolver{
		errs: errors.NewList(),
		types: map[string]token.Location{
			ast.TypeNumber:  {},
			ast.TypeBoolean: {},
		},
		rules: make(map[string]*ast.RegulativeStmt),
	}
}

// Resolve resolves a program. It returns the rewritten program and an
// environment whose global frame holds one slot per declared variable
// and relation, each bound to its declaring node. Known facts are
// applied to that environment afterwards, before any session starts.
func (r *Resolver) Resolve(p *ast.Program) (*ast.Program, *env.Environment, error) {
	r.env = env.New()

	// Declarations first, so rules can reference globals and invoke
	// rules defined later in the source.
	for _, s := range p.Statements {
		switch st := s.(type) {
		case *ast.TypeDefinition:
			if _, ok := r.types[st.Name]; ok {
				r.errs.Addf(errors.KindResolution, st.Tok.Location(),
					"type %q already defined", st.Name)
				continue
			}
			r.types[st.Name] = st.Tok.Location()
		case *ast.RegulativeStmt:
			if _, ok := r.rules[st.Label]; ok {
				r.errs.Addf(errors.KindResolution, st.Tok.Location(),
					"regulative rule %q already defined", st.Label)
				continue
			}
			r.rules[st.Label] = st
		}
	}

	resolved := &ast.Program{Statements: make([]ast.Statement, 0, len(p.Statements))}
	for _, s := range p.Statements {
		switch st := s.(type) {
		case *ast.TypeDefinition:
			resolved.Statements = append(resolved.Statements, st)
		case *ast.TypeInstancing:
			resolved.Statements = append(resolved.Statements, r.resolveTypeInstancing(st))
		case *ast.RelationalInstancing:
			resolved.Statements = append(resolved.Statements, r.resolveRelationalInstancing(st))
		case *ast.RegulativeStmt:
			resolved.Statements = append(resolved.Statements, r.resolveRule(st))
		}
	}

	if err := r.errs.ToError(); err != nil {
		return nil, nil, err
	}
	return resolved, r.env, nil
}

func (r *Resolver) resolveTypeInstancing(st *ast.TypeInstancing) *ast.TypeInstancing {
	if _, ok := r.types[st.TypeName]; !ok {
		r.errs.Addf(errors.KindResolution, st.Tok.Location(),
			"variable %q declared with undefined type %q", st.Variable.Symbol, st.TypeName)
	}
	if _, ok := r.env.LookupName(st.Variable.Symbol); ok {
		r.errs.Addf(errors.KindResolution, st.Variable.Tok.Location(),
			"variable %q already declared", st.Variable.Symbol)
		return st
	}
	out := &ast.TypeInstancing{Tok: st.Tok, Variable: st.Variable, TypeName: st.TypeName}
	addr := r.env.DefineGlobal(st.Variable.Symbol, out)
	out.Name = &ast.ResolvedName{Tok: st.Variable.Tok, Symbol: st.Variable.Symbol, Addr: addr}
	return out
}

func (r *Resolver) resolveRelationalInstancing(st *ast.RelationalInstancing) *ast.RelationalInstancing {
	symbol := st.Relation.Symbol()
	if _, ok := r.env.LookupName(symbol); ok {
		r.errs.Addf(errors.KindResolution, st.Tok.Location(),
			"relation %q already declared", symbol)
		return st
	}
	rel := &ast.RelationalIdentifier{
		Tok:      st.Relation.Tok,
		Template: st.Relation.Template,
		Args:     st.Relation.Args,
	}
	out := &ast.RelationalInstancing{Tok: st.Tok, Relation: rel}
	addr := r.env.DefineGlobal(symbol, out)
	rel.Name = &ast.ResolvedName{Tok: st.Relation.Tok, Symbol: symbol, Addr: addr}
	return out
}

// paramScope maps a rule's formal parameters to slots of the frame the
// evaluator pushes when the rule is invoked. Inside the rule body that
// frame is the innermost one, so parameter addresses are always
// {Scope: 0, Slot: position}.
type paramScope map[string]int

func (r *Resolver) resolveRule(rule *ast.RegulativeStmt) *ast.RegulativeStmt {
	params := make(paramScope, len(rule.Params))
	for i, p := range rule.Params {
		if _, ok := r.types[p.TypeName]; !ok {
			r.errs.Addf(errors.KindResolution, rule.Tok.Location(),
				"rule %q parameter %q has undefined type %q", rule.Label, p.Name, p.TypeName)
		}
		params[p.Name] = i
	}

	var guard ast.Expression
	if rule.Guard != nil {
		guard = r.resolveExpr(rule.Guard, params)
	}
	action := r.resolveAction(rule.Action, params)
	conclusions := make([]*ast.RegulativeRuleConclusion, 0, len(rule.Conclusions))
	for _, c := range rule.Conclusions {
		conclusions = append(conclusions, r.resolveConclusion(c, params))
	}

	out, err := ast.NewRegulativeStmt(rule.Tok, rule.Label, rule.Params, guard, action, conclusions, rule.Global)
	if err != nil {
		r.errs.Add(err.(*errors.Error))
		return rule
	}
	return out
}

func (r *Resolver) resolveAction(a *ast.DeonticTemporalAction, params paramScope) *ast.DeonticTemporalAction {
	if a == nil {
		return nil
	}
	tags := make([]ast.Expression, 0, len(a.InstanceTags))
	for _, t := range a.InstanceTags {
		tags = append(tags, r.resolveExpr(t, params))
	}
	out, err := ast.NewDeonticTemporalAction(a.Tok, a.IsAlways, a.Modality,
		r.resolveExpr(a.Action, params), a.Deadline, tags)
	if err != nil {
		r.errs.Add(err.(*errors.Error))
		return a
	}
	return out
}

func (r *Resolver) resolveConclusion(c *ast.RegulativeRuleConclusion, params paramScope) *ast.RegulativeRuleConclusion {
	mutations := make([]*ast.Mutation, 0, len(c.Mutations))
	for _, m := range c.Mutations {
		mutations = append(mutations, r.resolveMutation(m, params))
	}
	items := make([]ast.ConclusionItem, 0, len(c.Conclusions))
	for _, item := range c.Conclusions {
		switch it := item.(type) {
		case *ast.DeonticTemporalAction:
			items = append(items, r.resolveAction(it, params))
		case *ast.RegulativeRuleInvocation:
			items = append(items, r.resolveInvocation(it, params))
		}
	}
	out, err := ast.NewRegulativeRuleConclusion(c.Tok, c.Fulfilled, c.Performed, mutations, items)
	if err != nil {
		r.errs.Add(err.(*errors.Error))
		return c
	}
	return out
}

func (r *Resolver) resolveMutation(m *ast.Mutation, params paramScope) *ast.Mutation {
	target := r.resolveRelation(m.Target)
	value := m.Value
	if _, revoke := m.Value.(*ast.RevokeMarker); !revoke {
		value = r.resolveExpr(m.Value, params)
	}
	out, err := ast.NewMutation(m.Tok, target, value)
	if err != nil {
		r.errs.Add(err.(*errors.Error))
		return m
	}
	return out
}

func (r *Resolver) resolveInvocation(inv *ast.RegulativeRuleInvocation, params paramScope) *ast.RegulativeRuleInvocation {
	target, ok := r.rules[inv.Label.Symbol]
	if !ok {
		r.errs.Addf(errors.KindResolution, inv.Label.Tok.Location(),
			"invocation of undefined rule %q", inv.Label.Symbol)
		return inv
	}
	if len(inv.Args) != len(target.Params) {
		r.errs.Addf(errors.KindResolution, inv.Tok.Location(),
			"rule %q takes %d argument(s), invocation supplies %d",
			inv.Label.Symbol, len(target.Params), len(inv.Args))
	}
	args := make([]ast.Expression, 0, len(inv.Args))
	for _, a := range inv.Args {
		args = append(args, r.resolveExpr(a, params))
	}
	return &ast.RegulativeRuleInvocation{Tok: inv.Tok, Label: inv.Label, Args: args, Target: target}
}

// resolveRelation resolves a relational identifier occurrence to the
// global slot declared for its written argument tuple. Relation
// addressing is lexical: owes(buyer,seller) and owes(seller,buyer) are
// distinct slots.
func (r *Resolver) resolveRelation(rel *ast.RelationalIdentifier) *ast.RelationalIdentifier {
	if rel == nil {
		return nil
	}
	symbol := rel.Symbol()
	addr, ok := r.env.LookupName(symbol)
	if !ok {
		r.errs.Addf(errors.KindResolution, rel.Tok.Location(),
			"relation %q not declared", symbol)
		return rel
	}
	return &ast.RelationalIdentifier{
		Tok:      rel.Tok,
		Template: rel.Template,
		Args:     rel.Args,
		Name:     &ast.ResolvedName{Tok: rel.Tok, Symbol: symbol, Addr: addr},
	}
}

func (r *Resolver) resolveExpr(e ast.Expression, params paramScope) ast.Expression {
	switch ex := e.(type) {
	case *ast.Literal, *ast.ResolvedName, *ast.RevokeMarker:
		return e
	case *ast.Identifier:
		if slot, ok := params[ex.Symbol]; ok {
			return &ast.ResolvedName{Tok: ex.Tok, Symbol: ex.Symbol, Addr: ast.Address{Scope: 0, Slot: slot}}
		}
		if addr, ok := r.env.LookupName(ex.Symbol); ok {
			return &ast.ResolvedName{Tok: ex.Tok, Symbol: ex.Symbol, Addr: addr}
		}
		r.errs.Addf(errors.KindResolution, ex.Tok.Location(),
			"unresolved identifier %q", ex.Symbol)
		return e
	case *ast.RelationalIdentifier:
		return r.resolveRelation(ex)
	case *ast.Conditional:
		return &ast.Conditional{
			Tok:  ex.Tok,
			Pred: r.resolveExpr(ex.Pred, params),
			Cons: r.resolveExpr(ex.Cons, params),
			Alt:  r.resolveExpr(ex.Alt, params),
		}
	case *ast.Logical:
		return &ast.Logical{
			Tok: ex.Tok, Op: ex.Op,
			Lhs: r.resolveExpr(ex.Lhs, params),
			Rhs: r.resolveExpr(ex.Rhs, params),
		}
	case *ast.Binary:
		return &ast.Binary{
			Tok: ex.Tok, Op: ex.Op,
			Lhs: r.resolveExpr(ex.Lhs, params),
			Rhs: r.resolveExpr(ex.Rhs, params),
		}
	case *ast.Unary:
		return &ast.Unary{Tok: ex.Tok, Op: ex.Op, Operand: r.resolveExpr(ex.Operand, params)}
	default:
		r.errs.Addf(errors.KindResolution, token.Location{}, "unknown expression node %T", e)
		return e
	}
}

// ResolveExpression resolves a standalone expression against an already
// bootstrapped environment, for hosts evaluating ad-hoc queries.
func (r *Resolver) ResolveExpression(e ast.Expression, environment *env.Environment) (ast.Expression, error) {
	r.env = environment
	out := r.resolveExpr(e, nil)
	if err := r.errs.ToError(); err != nil {
		return nil, err
	}
	return out, nil
}
