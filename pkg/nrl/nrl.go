package nrl

import (
	"fmt"

	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/env"
	"normative-hq/themis/pkg/nrl/eval"
	"normative-hq/themis/pkg/nrl/resolve"
)

// Resolve is a convenience function that resolves a parsed program and
// returns the rewritten program together with the bootstrapped
// environment. The environment's global frame holds one slot per
// declared variable and relation, bound to its declaring node until a
// fact is supplied.
func Resolve(p *ast.Program) (*ast.Program, *env.Environment, error) {
	return resolve.NewResolver().Resolve(p)
}

// NewRuleSession prepares evaluation of the top-level rule with the
// given label from a resolved program.
func NewRuleSession(p *ast.Program, environment *env.Environment, label string, args []ast.Value, opts ...eval.Option) (*eval.Session, error) {
	rule, ok := p.Rule(label)
	if !ok {
		return nil, fmt.Errorf("no top-level rule %q", label)
	}
	return eval.NewRuleSession(rule, args, environment, opts...), nil
}
