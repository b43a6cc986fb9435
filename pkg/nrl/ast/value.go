package ast

import "strconv"

// Built-in value type names. Unit types carry their declared name instead.
const (
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Value is a runtime value produced by evaluation. The set of
// implementations is closed: Number, Boolean and UnitInstance. Values are
// immutable and compared structurally.
type Value interface {
	value()

	// TypeName returns the NRL type name of the value: "number",
	// "boolean", or the declared type name of a unit instance.
	TypeName() string

	// Equal reports structural equality with another value.
	Equal(Value) bool

	// String returns a human-readable rendering.
	String() string
}

// Number is a numeric value.
type Number float64

func (Number) value() {}

// TypeName returns "number".
func (Number) TypeName() string { return TypeNumber }

// Equal reports whether other is a Number with the same magnitude.
func (n Number) Equal(other Value) bool {
	o, ok := other.(Number)
	return ok && n == o
}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// Boolean is a truth value.
type Boolean bool

func (Boolean) value() {}

// TypeName returns "boolean".
func (Boolean) TypeName() string { return TypeBoolean }

// Equal reports whether other is a Boolean with the same truth value.
func (b Boolean) Equal(other Value) bool {
	o, ok := other.(Boolean)
	return ok && b == o
}

func (b Boolean) String() string {
	return strconv.FormatBool(bool(b))
}

// UnitInstance is an opaque named entity belonging to a declared unit
// type. Unit instances represent the parties and other domain entities a
// rule regulates, e.g. a specific person of type "person".
type UnitInstance struct {
	Type     string // Declared type name
	Instance string // Name of this instance
}

func (UnitInstance) value() {}

// TypeName returns the declared type name of the instance.
func (u UnitInstance) TypeName() string { return u.Type }

// Equal reports whether other is a UnitInstance with the same type and
// instance name.
func (u UnitInstance) Equal(other Value) bool {
	o, ok := other.(UnitInstance)
	return ok && u == o
}

func (u UnitInstance) String() string {
	return u.Type + "::" + u.Instance
}
