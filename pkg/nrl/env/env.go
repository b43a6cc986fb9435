package env

import (
	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/errors"
)

// Binding is one occupied slot of a frame: the symbol declared there and
// the AST node currently bound to it. A slot bound to a Literal holds a
// known value; a slot bound to its declaring node holds a fact that has
// not been supplied yet.
type Binding struct {
	Symbol string
	Node   ast.Node
}

// Frame is one lexical scope's sparse slot-to-binding mapping. Frames on
// the stack are treated as immutable; mutating operations copy only the
// frame they touch. The global frame is the exception: it is shared by
// reference across all environments derived within one evaluation
// session and mutated in place.
type Frame struct {
	slots map[int]Binding
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{slots: make(map[int]Binding, 8)}
}

func (f *Frame) clone() *Frame {
	c := &Frame{slots: make(map[int]Binding, len(f.slots)+1)}
	for k, v := range f.slots {
		c.slots[k] = v
	}
	return c
}

// Get returns the binding at slot, if any.
func (f *Frame) Get(slot int) (Binding, bool) {
	b, ok := f.slots[slot]
	return b, ok
}

// Len returns the number of occupied slots.
func (f *Frame) Len() int { return len(f.slots) }

// Environment is a persistent, lexically-scoped variable store: a stack
// of frames plus one global frame, addressed exclusively through
// resolved (scope, slot) addresses. Every mutating operation returns a
// new Environment sharing the unaffected frames, so older snapshots stay
// valid. The global frame is the one mutable-by-convention region and is
// shared by reference across all derived environments.
//
// Scope indices count from the innermost frame: scope 0 is the top of
// the stack, scope 1 the frame below it, and ast.GlobalScope the global
// frame.
type Environment struct {
	global *Frame
	stack  []*Frame
}

// New returns an environment with an empty global frame and no stack
// frames.
func New() *Environment {
	return &Environment{global: NewFrame()}
}

// Depth returns the number of stacked frames, excluding the global frame.
func (e *Environment) Depth() int { return len(e.stack) }

// IsGlobalScope reports whether no lexical frames are stacked.
func (e *Environment) IsGlobalScope() bool { return len(e.stack) == 0 }

// frameAt resolves a scope index to its frame.
func (e *Environment) frameAt(scope int) (*Frame, *errors.Error) {
	if scope == ast.GlobalScope {
		return e.global, nil
	}
	if scope < 0 || scope >= len(e.stack) {
		return nil, errors.New(errors.KindScope,
			"scope index %d out of range (stack depth %d)", scope, len(e.stack))
	}
	return e.stack[len(e.stack)-1-scope], nil
}

// checked returns the binding addressed by rn after validating that the
// stored symbol matches the queried one. A mismatch means the resolved
// name is stale or wrong; surfacing it here keeps resolution bugs from
// silently reading the wrong variable.
func (e *Environment) checked(rn *ast.ResolvedName) (Binding, *Frame, *errors.Error) {
	f, err := e.frameAt(rn.Addr.Scope)
	if err != nil {
		err.Location = rn.Tok.Location()
		return Binding{}, nil, err
	}
	b, ok := f.slots[rn.Addr.Slot]
	if !ok {
		return Binding{}, nil, errors.At(errors.KindScope, rn.Tok.Location(),
			"no binding for %q at %s", rn.Symbol, rn.Addr.String())
	}
	if b.Symbol != rn.Symbol {
		return Binding{}, nil, errors.At(errors.KindScope, rn.Tok.Location(),
			"address %s holds %q, not %q", rn.Addr.String(), b.Symbol, rn.Symbol)
	}
	return b, f, nil
}

// Lookup returns the AST node bound at the resolved name's address. It
// fails with a scope error if the address is out of range, unoccupied,
// or occupied by a different symbol.
func (e *Environment) Lookup(rn *ast.ResolvedName) (ast.Node, error) {
	b, _, err := e.checked(rn)
	if err != nil {
		return nil, err
	}
	return b.Node, nil
}

// LookupName searches for a bare symbol from the innermost frame
// outward, then in the global frame. It is used only by the resolution
// pass; the evaluator always addresses variables through resolved names.
func (e *Environment) LookupName(symbol string) (ast.Address, bool) {
	for scope := 0; scope < len(e.stack); scope++ {
		f := e.stack[len(e.stack)-1-scope]
		for slot, b := range f.slots {
			if b.Symbol == symbol {
				return ast.Address{Scope: scope, Slot: slot}, true
			}
		}
	}
	for slot, b := range e.global.slots {
		if b.Symbol == symbol {
			return ast.Address{Scope: ast.GlobalScope, Slot: slot}, true
		}
	}
	return ast.Address{}, false
}

// rebind replaces the node bound at rn's already-occupied slot.
func (e *Environment) rebind(rn *ast.ResolvedName, node ast.Node) (*Environment, error) {
	_, f, err := e.checked(rn)
	if err != nil {
		return nil, err
	}
	if rn.Addr.IsGlobal() {
		// The global frame is shared by reference; mutate in place.
		f.slots[rn.Addr.Slot] = Binding{Symbol: rn.Symbol, Node: node}
		return &Environment{global: e.global, stack: e.stack}, nil
	}
	nf := f.clone()
	nf.slots[rn.Addr.Slot] = Binding{Symbol: rn.Symbol, Node: node}
	return e.withFrame(rn.Addr.Scope, nf), nil
}

// withFrame returns a new environment whose frame at the given scope is
// replaced, sharing every other frame.
func (e *Environment) withFrame(scope int, f *Frame) *Environment {
	stack := make([]*Frame, len(e.stack))
	copy(stack, e.stack)
	stack[len(stack)-1-scope] = f
	return &Environment{global: e.global, stack: stack}
}

// SetVar rebinds the slot addressed by rn to a literal wrapping v. The
// slot must already be bound, with a matching symbol.
func (e *Environment) SetVar(rn *ast.ResolvedName, v ast.Value) (*Environment, error) {
	return e.rebind(rn, ast.Lit(v))
}

// Rebind replaces the node bound at rn's slot with an arbitrary node.
// Used to retract a relation by restoring its declaring node.
func (e *Environment) Rebind(rn *ast.ResolvedName, node ast.Node) (*Environment, error) {
	return e.rebind(rn, node)
}

// AddVar binds a new slot at rn's address. It fails with a scope error
// if the slot is already occupied: re-adding is not how shadowing works,
// an inner frame is.
func (e *Environment) AddVar(rn *ast.ResolvedName, node ast.Node) (*Environment, error) {
	f, err := e.frameAt(rn.Addr.Scope)
	if err != nil {
		err.Location = rn.Tok.Location()
		return nil, err
	}
	if b, ok := f.slots[rn.Addr.Slot]; ok {
		return nil, errors.At(errors.KindScope, rn.Tok.Location(),
			"slot %s already bound to %q", rn.Addr.String(), b.Symbol)
	}
	if rn.Addr.IsGlobal() {
		f.slots[rn.Addr.Slot] = Binding{Symbol: rn.Symbol, Node: node}
		return &Environment{global: e.global, stack: e.stack}, nil
	}
	nf := f.clone()
	nf.slots[rn.Addr.Slot] = Binding{Symbol: rn.Symbol, Node: node}
	return e.withFrame(rn.Addr.Scope, nf), nil
}

// AddFrame pushes a fresh lexical scope and returns the extended
// environment. The receiver is unchanged.
func (e *Environment) AddFrame() *Environment {
	stack := make([]*Frame, len(e.stack)+1)
	copy(stack, e.stack)
	stack[len(e.stack)] = NewFrame()
	return &Environment{global: e.global, stack: stack}
}

// RemoveFrame pops the innermost lexical scope. It fails with a scope
// error if no frame is stacked.
func (e *Environment) RemoveFrame() (*Environment, error) {
	if len(e.stack) == 0 {
		return nil, errors.New(errors.KindScope, "remove frame on empty frame stack")
	}
	stack := make([]*Frame, len(e.stack)-1)
	copy(stack, e.stack[:len(e.stack)-1])
	return &Environment{global: e.global, stack: stack}, nil
}

// DefineGlobal appends a new global binding and returns its address.
// Used when bootstrapping the initial environment from declarations and
// known facts, before any session runs.
func (e *Environment) DefineGlobal(symbol string, node ast.Node) ast.Address {
	slot := len(e.global.slots)
	for {
		if _, ok := e.global.slots[slot]; !ok {
			break
		}
		slot++
	}
	e.global.slots[slot] = Binding{Symbol: symbol, Node: node}
	return ast.Address{Scope: ast.GlobalScope, Slot: slot}
}

// Global returns the shared global frame.
func (e *Environment) Global() *Frame { return e.global }
