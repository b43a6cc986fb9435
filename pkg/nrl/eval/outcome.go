package eval

import (
	"time"

	"normative-hq/themis/pkg/nrl/ast"
)

// Outcome is the result of evaluating one regulative rule: whether it
// applied, how its guard and regulated action came out, and whether the
// deontic modality was satisfied.
type Outcome struct {
	// Rule is the label of the evaluated rule.
	Rule string

	// Applicable is false when the rule's guard evaluated to false: no
	// conclusions were executed and no mutations applied. Distinct from
	// failure.
	Applicable bool

	// Fulfilled reports whether the guard condition held. A rule
	// without a guard is unconditionally in force, so Fulfilled is true.
	Fulfilled bool

	// Performed reports whether the regulated action was taken,
	// i.e. the action expression evaluated to true.
	Performed bool

	// DeadlineMet reports whether the temporal constraint held at
	// evaluation time. True when the action has no deadline or is a
	// standing (always) modality.
	DeadlineMet bool

	// Satisfied reports whether the deontic modality is satisfied:
	// an obligated action must be performed within its deadline; a
	// permitted action violates nothing unless taken outside its
	// deadline.
	Satisfied bool

	// Modality is the deontic qualifier of the rule's action.
	Modality ast.Modality

	// Instances are the unit instances named by the action's instance
	// tags: the concrete parties the modality binds.
	Instances []ast.UnitInstance

	// Deadline is the resolved absolute deadline, if the action had a
	// temporal constraint.
	Deadline time.Time

	// Mutations counts the relation mutations staged by this rule's
	// conclusions, including revocations.
	Mutations int

	// Children are the outcomes of nested conclusions: further deontic
	// actions and recursive rule invocations, in execution order.
	Children []*Outcome
}

// satisfied computes modality satisfaction from the performed flag and
// the deadline check.
func satisfied(modality ast.Modality, performed, deadlineMet bool) bool {
	if modality == ast.ModalityObligated {
		return performed && deadlineMet
	}
	// Permitted: taking no action violates nothing; taking the action
	// outside its window does.
	return !performed || deadlineMet
}
