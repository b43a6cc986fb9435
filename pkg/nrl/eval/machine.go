package eval

import (
	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/env"
	"normative-hq/themis/pkg/nrl/errors"
	"normative-hq/themis/pkg/nrl/token"
)

// step is one unit of pending work on the machine's control stack. The
// set of implementations is closed; the machine switches exhaustively
// over it. Representing suspended computations as explicit step stacks
// instead of captured call stacks is what lets a session pause at a
// missing fact and resume later, or be inspected and timed out by the
// host.
type step interface {
	step()
}

type (
	// evalStep evaluates an expression and pushes its value.
	evalStep struct{ expr ast.Expression }

	// logicalStep runs after the left operand of a logical composition:
	// it either short-circuits or schedules the right operand.
	logicalStep struct{ node *ast.Logical }

	// logicalRhsStep validates the right operand's value.
	logicalRhsStep struct{ node *ast.Logical }

	// branchStep runs after a conditional's predicate and schedules the
	// taken branch.
	branchStep struct{ node *ast.Conditional }

	// binaryStep applies a binary operator to the two values on top of
	// the value stack.
	binaryStep struct{ node *ast.Binary }

	// unaryStep applies a prefix operator to the top value.
	unaryStep struct{ node *ast.Unary }

	// enterRuleStep binds evaluated arguments into a fresh frame and
	// schedules the rule body.
	enterRuleStep struct {
		tok  token.Token
		rule *ast.RegulativeStmt
		argc int
	}

	// guardStep inspects the guard value and either schedules the
	// action phase or marks the rule not applicable.
	guardStep struct{ rule *ast.RegulativeStmt }

	// actionStep records the action value and the deadline check on the
	// current outcome.
	actionStep struct{ act *ast.DeonticTemporalAction }

	// tagsStep collects evaluated instance tags; for a nested deontic
	// action it also pops the child outcome into its parent.
	tagsStep struct {
		act    *ast.DeonticTemporalAction
		n      int
		nested bool
	}

	// beginNestedStep opens the child outcome of a nested deontic
	// action at the moment the action starts executing. Opening it at
	// schedule time would attribute intervening mutations and sibling
	// outcomes to the wrong node.
	beginNestedStep struct{}

	// conclusionsStep walks a rule's conclusions in source order,
	// scheduling the work of each branch whose assertions match the
	// outcome.
	conclusionsStep struct {
		rule *ast.RegulativeStmt
		idx  int
	}

	// applyMutationStep stages one relation mutation.
	applyMutationStep struct{ m *ast.Mutation }

	// exitRuleStep pops the argument frame and finalizes the outcome.
	exitRuleStep struct{ rule *ast.RegulativeStmt }
)

func (evalStep) step()          {}
func (logicalStep) step()       {}
func (logicalRhsStep) step()    {}
func (branchStep) step()        {}
func (binaryStep) step()        {}
func (unaryStep) step()         {}
func (enterRuleStep) step()     {}
func (guardStep) step()         {}
func (actionStep) step()        {}
func (tagsStep) step()          {}
func (beginNestedStep) step()   {}
func (conclusionsStep) step()   {}
func (applyMutationStep) step() {}
func (exitRuleStep) step()      {}

// machine is the explicit stack machine one session runs on. Its entire
// state lives in these fields, so a suspension is nothing more than
// returning to the host with the stacks intact.
type machine struct {
	s    *Session
	ctrl []step
	vals []ast.Value
	outs []*Outcome
	env  *env.Environment

	// staged holds this session's uncommitted global writes: supplied
	// facts and relation mutations. Lookups consult it before the
	// environment, and it is applied to the global frame only when the
	// session completes. An invalidated or failed session publishes
	// nothing.
	staged map[ast.Address]env.Binding

	// cont is the continuation of the current suspension, nil while
	// running. Exactly one may be outstanding at a time.
	cont *Continuation

	result *EventResult
}

func newMachine(s *Session, environment *env.Environment) *machine {
	return &machine{
		s:      s,
		env:    environment,
		staged: make(map[ast.Address]env.Binding),
	}
}

func (m *machine) push(st step)          { m.ctrl = append(m.ctrl, st) }
func (m *machine) pushValue(v ast.Value) { m.vals = append(m.vals, v) }

func (m *machine) popValue() ast.Value {
	v := m.vals[len(m.vals)-1]
	m.vals = m.vals[:len(m.vals)-1]
	return v
}

func (m *machine) outcome() *Outcome { return m.outs[len(m.outs)-1] }

// stage records an uncommitted global binding.
func (m *machine) stage(rn *ast.ResolvedName, node ast.Node) *errors.Error {
	if !rn.Addr.IsGlobal() {
		return errors.At(errors.KindScope, rn.Tok.Location(),
			"staged binding for %q is not in the global frame", rn.Symbol)
	}
	m.staged[rn.Addr] = env.Binding{Symbol: rn.Symbol, Node: node}
	return nil
}

// loop drains the control stack. It returns a non-nil event on
// suspension, or an error that fails the session. A nil, nil return
// means the control stack is empty and the session is complete.
func (m *machine) loop() (Event, *errors.Error) {
	for len(m.ctrl) > 0 {
		st := m.ctrl[len(m.ctrl)-1]
		m.ctrl = m.ctrl[:len(m.ctrl)-1]
		ev, err := m.exec(st)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
	}
	return nil, nil
}

func (m *machine) exec(st step) (Event, *errors.Error) {
	switch s := st.(type) {
	case evalStep:
		return m.evalExpr(s.expr)
	case logicalStep:
		return nil, m.execLogical(s.node)
	case logicalRhsStep:
		v, err := m.popBoolean(s.node.Rhs, "logical composition")
		if err != nil {
			return nil, err
		}
		m.pushValue(v)
		return nil, nil
	case branchStep:
		v, err := m.popBoolean(s.node.Pred, "conditional predicate")
		if err != nil {
			return nil, err
		}
		if bool(v) {
			m.push(evalStep{expr: s.node.Cons})
		} else {
			m.push(evalStep{expr: s.node.Alt})
		}
		return nil, nil
	case binaryStep:
		rhs := m.popValue()
		lhs := m.popValue()
		v, err := applyBinary(s.node, lhs, rhs)
		if err != nil {
			return nil, err
		}
		m.pushValue(v)
		return nil, nil
	case unaryStep:
		return nil, m.execUnary(s.node)
	case enterRuleStep:
		return nil, m.enterRule(s)
	case guardStep:
		return nil, m.execGuard(s.rule)
	case actionStep:
		return nil, m.execAction(s.act)
	case tagsStep:
		return nil, m.execTags(s)
	case beginNestedStep:
		m.outs = append(m.outs, &Outcome{
			Rule:       m.outcome().Rule,
			Applicable: true,
			Fulfilled:  true,
		})
		return nil, nil
	case conclusionsStep:
		return nil, m.execConclusions(s)
	case applyMutationStep:
		return nil, m.applyMutation(s.m)
	case exitRuleStep:
		return nil, m.exitRule()
	default:
		return nil, errors.New(errors.KindScope, "unknown machine step %T", st)
	}
}

func (m *machine) evalExpr(e ast.Expression) (Event, *errors.Error) {
	switch ex := e.(type) {
	case *ast.Literal:
		if ex.Val == nil {
			return nil, errors.At(errors.KindType, ex.Tok.Location(), "literal carries no value")
		}
		m.pushValue(ex.Val)
		return nil, nil
	case *ast.ResolvedName:
		return m.lookup(ex)
	case *ast.RelationalIdentifier:
		if ex.Name == nil {
			return nil, errors.At(errors.KindScope, ex.Tok.Location(),
				"relation %q was never resolved", ex.Symbol())
		}
		return m.lookup(ex.Name)
	case *ast.Identifier:
		return nil, errors.At(errors.KindScope, ex.Tok.Location(),
			"unresolved identifier %q reached evaluation", ex.Symbol)
	case *ast.Conditional:
		m.push(branchStep{node: ex})
		m.push(evalStep{expr: ex.Pred})
		return nil, nil
	case *ast.Logical:
		m.push(logicalStep{node: ex})
		m.push(evalStep{expr: ex.Lhs})
		return nil, nil
	case *ast.Binary:
		m.push(binaryStep{node: ex})
		m.push(evalStep{expr: ex.Rhs})
		m.push(evalStep{expr: ex.Lhs})
		return nil, nil
	case *ast.Unary:
		m.push(unaryStep{node: ex})
		m.push(evalStep{expr: ex.Operand})
		return nil, nil
	case *ast.RevokeMarker:
		return nil, errors.At(errors.KindType, ex.Tok.Location(),
			"revoke marker used outside a mutation")
	default:
		return nil, errors.New(errors.KindScope, "unknown expression node %T", e)
	}
}

// lookup resolves a name against the staged overlay and the
// environment. A slot still bound to its declaring node means the fact
// is genuinely absent: evaluation suspends and asks the host for it.
func (m *machine) lookup(rn *ast.ResolvedName) (Event, *errors.Error) {
	var node ast.Node
	if b, ok := m.staged[rn.Addr]; ok && rn.Addr.IsGlobal() {
		if b.Symbol != rn.Symbol {
			return nil, errors.At(errors.KindScope, rn.Tok.Location(),
				"staged binding at %s holds %q, not %q", rn.Addr.String(), b.Symbol, rn.Symbol)
		}
		node = b.Node
	} else {
		n, err := m.env.Lookup(rn)
		if err != nil {
			return nil, err.(*errors.Error)
		}
		node = n
	}

	switch decl := node.(type) {
	case *ast.Literal:
		if decl.Val == nil {
			return nil, errors.At(errors.KindType, rn.Tok.Location(),
				"binding for %q carries no value", rn.Symbol)
		}
		m.pushValue(decl.Val)
		return nil, nil
	case *ast.TypeInstancing:
		return m.suspend(rn, decl.TypeName), nil
	case *ast.RelationalInstancing:
		// A relation slot accepts any value, so the request carries no
		// type name.
		return m.suspend(rn, ""), nil
	case ast.Expression:
		// A slot may be bound to a not-yet-reduced expression; evaluate
		// it in the current environment.
		m.push(evalStep{expr: decl})
		return nil, nil
	default:
		return nil, errors.At(errors.KindScope, rn.Tok.Location(),
			"binding for %q is not evaluable (%T)", rn.Symbol, node)
	}
}

// suspend freezes the machine and hands the host a one-shot typed
// continuation for the missing fact.
func (m *machine) suspend(rn *ast.ResolvedName, typeName string) Event {
	req := &FactRequest{
		Symbol:   rn.Symbol,
		TypeName: typeName,
		Location: rn.Tok.Location(),
	}
	k := &Continuation{s: m.s, name: rn, request: req}
	m.cont = k
	m.s.pending = req
	m.s.state = StateSuspended
	return EventRequest{Request: req, Continuation: k}
}

func (m *machine) execLogical(node *ast.Logical) *errors.Error {
	v, err := m.popBoolean(node.Lhs, "logical composition")
	if err != nil {
		return err
	}
	short := (node.Op == ast.LogicalAnd && !bool(v)) || (node.Op == ast.LogicalOr && bool(v))
	if short {
		m.pushValue(v)
		return nil
	}
	m.push(logicalRhsStep{node: node})
	m.push(evalStep{expr: node.Rhs})
	return nil
}

func (m *machine) execUnary(node *ast.Unary) *errors.Error {
	v := m.popValue()
	switch node.Op {
	case ast.OpNegate:
		n, ok := v.(ast.Number)
		if !ok {
			return errors.At(errors.KindType, node.Tok.Location(),
				"negation needs a number, got %s", v.TypeName())
		}
		m.pushValue(-n)
	case ast.OpNot:
		b, ok := v.(ast.Boolean)
		if !ok {
			return errors.At(errors.KindType, node.Tok.Location(),
				"not needs a boolean, got %s", v.TypeName())
		}
		m.pushValue(!b)
	default:
		return errors.At(errors.KindType, node.Tok.Location(),
			"unknown unary operator %q", string(node.Op))
	}
	return nil
}

func (m *machine) popBoolean(e ast.Expression, what string) (ast.Boolean, *errors.Error) {
	v := m.popValue()
	b, ok := v.(ast.Boolean)
	if !ok {
		return false, errors.At(errors.KindType, locOf(e),
			"%s needs a boolean, got %s", what, v.TypeName())
	}
	return b, nil
}

func applyBinary(node *ast.Binary, lhs, rhs ast.Value) (ast.Value, *errors.Error) {
	loc := node.Tok.Location()
	switch node.Op {
	case ast.OpEqual:
		return ast.Boolean(lhs.Equal(rhs)), nil
	case ast.OpNotEqual:
		return ast.Boolean(!lhs.Equal(rhs)), nil
	}

	l, lok := lhs.(ast.Number)
	r, rok := rhs.(ast.Number)
	if !lok || !rok {
		return nil, errors.At(errors.KindType, loc,
			"operator %q needs numbers, got %s and %s",
			string(node.Op), lhs.TypeName(), rhs.TypeName())
	}
	switch node.Op {
	case ast.OpAdd:
		return l + r, nil
	case ast.OpSubtract:
		return l - r, nil
	case ast.OpMultiply:
		return l * r, nil
	case ast.OpDivide:
		if r == 0 {
			return nil, errors.At(errors.KindType, loc, "division by zero")
		}
		return l / r, nil
	case ast.OpLessThan:
		return ast.Boolean(l < r), nil
	case ast.OpLessEqual:
		return ast.Boolean(l <= r), nil
	case ast.OpGreaterThan:
		return ast.Boolean(l > r), nil
	case ast.OpGreaterEqual:
		return ast.Boolean(l >= r), nil
	default:
		return nil, errors.At(errors.KindType, loc,
			"unknown binary operator %q", string(node.Op))
	}
}

// scheduleInvocation arranges evaluation of the argument expressions
// followed by entry into the target rule.
func (m *machine) scheduleInvocation(inv *ast.RegulativeRuleInvocation) *errors.Error {
	if inv.Target == nil {
		return errors.At(errors.KindScope, inv.Tok.Location(),
			"invocation of %q was never resolved", inv.Label.Symbol)
	}
	if len(inv.Args) != len(inv.Target.Params) {
		return errors.At(errors.KindScope, inv.Tok.Location(),
			"rule %q takes %d argument(s), got %d",
			inv.Target.Label, len(inv.Target.Params), len(inv.Args))
	}
	m.push(enterRuleStep{tok: inv.Tok, rule: inv.Target, argc: len(inv.Args)})
	for i := len(inv.Args) - 1; i >= 0; i-- {
		m.push(evalStep{expr: inv.Args[i]})
	}
	return nil
}

// enterRule pops the evaluated arguments, binds them positionally into a
// fresh frame, and schedules guard, action and conclusions.
func (m *machine) enterRule(s enterRuleStep) *errors.Error {
	rule := s.rule
	args := make([]ast.Value, s.argc)
	for i := s.argc - 1; i >= 0; i-- {
		args[i] = m.popValue()
	}
	for i, p := range rule.Params {
		if err := checkParamType(s.tok, rule, p, args[i]); err != nil {
			return err
		}
	}

	m.env = m.env.AddFrame()
	for i, p := range rule.Params {
		rn := &ast.ResolvedName{Tok: s.tok, Symbol: p.Name, Addr: ast.Address{Scope: 0, Slot: i}}
		extended, err := m.env.AddVar(rn, ast.Lit(args[i]))
		if err != nil {
			return err.(*errors.Error)
		}
		m.env = extended
	}

	m.outs = append(m.outs, &Outcome{
		Rule:       rule.Label,
		Applicable: true,
		Fulfilled:  true, // a rule without a guard is unconditionally in force
	})

	m.push(exitRuleStep{rule: rule})
	m.push(conclusionsStep{rule: rule, idx: 0})
	if rule.Guard != nil {
		m.push(guardStep{rule: rule})
		m.push(evalStep{expr: rule.Guard})
	} else {
		m.scheduleActionPhase(rule.Action, false)
	}
	return nil
}

func checkParamType(tok token.Token, rule *ast.RegulativeStmt, p ast.Param, v ast.Value) *errors.Error {
	if v.TypeName() != p.TypeName {
		return errors.At(errors.KindType, tok.Location(),
			"rule %q parameter %q expects %s, got %s",
			rule.Label, p.Name, p.TypeName, v.TypeName())
	}
	return nil
}

func (m *machine) execGuard(rule *ast.RegulativeStmt) *errors.Error {
	v, err := m.popBoolean(rule.Guard, "rule guard")
	if err != nil {
		return err
	}
	out := m.outcome()
	out.Fulfilled = bool(v)
	if !bool(v) {
		// Not applicable: no action evaluation, no conclusions, no
		// mutations. The modality is vacuously satisfied.
		out.Applicable = false
		out.Modality = rule.Action.Modality
		out.Satisfied = true
		return nil
	}
	m.scheduleActionPhase(rule.Action, false)
	return nil
}

// scheduleActionPhase arranges evaluation of a deontic action: the
// action expression, the deadline check, then the instance tags. For a
// nested action beginNestedStep opens the child outcome only once the
// action itself begins, so a conclusion's mutations and its other items
// stay attributed to the enclosing outcome; tagsStep pops the child
// back into its parent.
func (m *machine) scheduleActionPhase(act *ast.DeonticTemporalAction, nested bool) {
	m.push(tagsStep{act: act, n: len(act.InstanceTags), nested: nested})
	for i := len(act.InstanceTags) - 1; i >= 0; i-- {
		m.push(evalStep{expr: act.InstanceTags[i]})
	}
	m.push(actionStep{act: act})
	m.push(evalStep{expr: act.Action})
	if nested {
		m.push(beginNestedStep{})
	}
}

func (m *machine) execAction(act *ast.DeonticTemporalAction) *errors.Error {
	v, err := m.popBoolean(act.Action, "deontic action")
	if err != nil {
		return err
	}
	out := m.outcome()
	out.Modality = act.Modality
	out.Performed = bool(v)
	out.DeadlineMet = true

	if act.Deadline != nil && !act.IsAlways {
		deadline, derr := m.s.clock.resolve(act.Deadline)
		if derr != nil {
			return derr
		}
		out.Deadline = deadline
		out.DeadlineMet = !m.s.clock.now().After(deadline)
	}
	out.Satisfied = satisfied(act.Modality, out.Performed, out.DeadlineMet)
	return nil
}

func (m *machine) execTags(s tagsStep) *errors.Error {
	tags := make([]ast.UnitInstance, s.n)
	for i := s.n - 1; i >= 0; i-- {
		v := m.popValue()
		u, ok := v.(ast.UnitInstance)
		if !ok {
			return errors.At(errors.KindType, s.act.Tok.Location(),
				"instance tag must be a unit instance, got %s", v.TypeName())
		}
		tags[i] = u
	}
	out := m.outcome()
	out.Instances = tags

	if s.nested {
		m.outs = m.outs[:len(m.outs)-1]
		parent := m.outcome()
		parent.Children = append(parent.Children, out)
	}
	return nil
}

// execConclusions visits one conclusion and reschedules itself for the
// next, so that all work of a matching branch runs before the following
// branch is considered. Later conclusions therefore observe mutations
// staged by earlier ones.
func (m *machine) execConclusions(s conclusionsStep) *errors.Error {
	out := m.outcome()
	if !out.Applicable || s.idx >= len(s.rule.Conclusions) {
		return nil
	}
	c := s.rule.Conclusions[s.idx]
	m.push(conclusionsStep{rule: s.rule, idx: s.idx + 1})
	if !conclusionMatches(c, out) {
		return nil
	}

	// Mutations apply in list order before any nested conclusion runs.
	// Both lists are pushed in reverse so they pop in source order.
	for i := len(c.Conclusions) - 1; i >= 0; i-- {
		switch item := c.Conclusions[i].(type) {
		case *ast.DeonticTemporalAction:
			m.scheduleActionPhase(item, true)
		case *ast.RegulativeRuleInvocation:
			if err := m.scheduleInvocation(item); err != nil {
				return err
			}
		}
	}
	for i := len(c.Mutations) - 1; i >= 0; i-- {
		mut := c.Mutations[i]
		m.push(applyMutationStep{m: mut})
		if !mut.Revokes() {
			m.push(evalStep{expr: mut.Value})
		}
	}
	return nil
}

// conclusionMatches reports whether a conclusion's assertions agree with
// the rule outcome: every field the conclusion sets must equal the
// corresponding outcome flag.
//
// The language does not pin down how fulfilled/performed relate to the
// presence of a guard or action in the parent rule; matching here is
// read as field-wise agreement on whatever the conclusion asserts.
func conclusionMatches(c *ast.RegulativeRuleConclusion, out *Outcome) bool {
	if c.Fulfilled != nil && *c.Fulfilled != out.Fulfilled {
		return false
	}
	if c.Performed != nil && *c.Performed != out.Performed {
		return false
	}
	return true
}

func (m *machine) applyMutation(mut *ast.Mutation) *errors.Error {
	rn := mut.Target.Name
	if rn == nil {
		return errors.At(errors.KindScope, mut.Tok.Location(),
			"mutation target %q was never resolved", mut.Target.Symbol())
	}
	// Validate the slot before staging so a stale address surfaces now.
	if _, ok := m.staged[rn.Addr]; !ok {
		if _, err := m.env.Lookup(rn); err != nil {
			return err.(*errors.Error)
		}
	}

	var node ast.Node
	if mut.Revokes() {
		// Retraction rebinds the slot to a declaring node, making the
		// relation unknown again.
		node = &ast.RelationalInstancing{Tok: mut.Tok, Relation: mut.Target}
	} else {
		node = ast.Lit(m.popValue())
	}
	if err := m.stage(rn, node); err != nil {
		return err
	}
	m.outcome().Mutations++
	return nil
}

func (m *machine) exitRule() *errors.Error {
	popped, err := m.env.RemoveFrame()
	if err != nil {
		return err.(*errors.Error)
	}
	m.env = popped

	out := m.outcome()
	m.outs = m.outs[:len(m.outs)-1]
	if len(m.outs) == 0 {
		m.result = &EventResult{Outcome: out}
		return nil
	}
	parent := m.outcome()
	parent.Children = append(parent.Children, out)
	return nil
}

func locOf(n ast.Node) token.Location {
	toks := n.Tokens()
	if len(toks) == 0 {
		return token.Location{}
	}
	return toks[0].Location()
}
