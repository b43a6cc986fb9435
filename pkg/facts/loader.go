package facts

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/env"
)

// File is the on-disk shape of a fact file.
//
//	facts:
//	  amount: 100
//	  payment_made: true
//	  buyer: person::alice
//	relations:
//	  owes(buyer,seller): status::open
//
// Scalars map onto NRL values: booleans and numbers directly, strings
// of the form "type::instance" onto unit instances.
type File struct {
	Facts     map[string]any `yaml:"facts"`
	Relations map[string]any `yaml:"relations"`
}

// Set is a parsed fact file: symbol to value, with relations keyed by
// their canonical tuple symbol.
type Set struct {
	Facts map[string]ast.Value
}

// Load reads and parses a fact file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fact file: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses fact YAML.
func ParseBytes(data []byte) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fact file: %w", err)
	}

	set := &Set{Facts: make(map[string]ast.Value, len(f.Facts)+len(f.Relations))}
	for symbol, raw := range f.Facts {
		v, err := convert(raw)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", symbol, err)
		}
		set.Facts[symbol] = v
	}
	for symbol, raw := range f.Relations {
		v, err := convert(raw)
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", symbol, err)
		}
		set.Facts[strings.ReplaceAll(symbol, " ", "")] = v
	}
	return set, nil
}

// convert maps a YAML scalar onto an NRL value.
func convert(raw any) (ast.Value, error) {
	switch v := raw.(type) {
	case bool:
		return ast.Boolean(v), nil
	case int:
		return ast.Number(v), nil
	case int64:
		return ast.Number(v), nil
	case float64:
		return ast.Number(v), nil
	case string:
		typeName, instance, ok := strings.Cut(v, "::")
		if !ok || typeName == "" || instance == "" {
			return nil, fmt.Errorf("string fact must be a unit instance of the form type::instance, got %q", v)
		}
		return ast.UnitInstance{Type: typeName, Instance: instance}, nil
	default:
		return nil, fmt.Errorf("unsupported fact value %T", raw)
	}
}

// Symbols returns the fact symbols in sorted order.
func (s *Set) Symbols() []string {
	symbols := make([]string, 0, len(s.Facts))
	for sym := range s.Facts {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Lookup returns the value for a symbol, if present.
func (s *Set) Lookup(symbol string) (ast.Value, bool) {
	v, ok := s.Facts[symbol]
	return v, ok
}

// Apply binds every fact onto its declared slot in the environment's
// global frame. Facts with no declared slot are reported, not skipped:
// a misspelled fact silently ignored is worse than an error.
func (s *Set) Apply(e *env.Environment) (*env.Environment, error) {
	for _, symbol := range s.Symbols() {
		addr, ok := e.LookupName(symbol)
		if !ok {
			return nil, fmt.Errorf("fact %q has no declared variable or relation", symbol)
		}
		rn := &ast.ResolvedName{Symbol: symbol, Addr: addr}
		bound, err := e.SetVar(rn, s.Facts[symbol])
		if err != nil {
			return nil, fmt.Errorf("bind fact %q: %w", symbol, err)
		}
		e = bound
	}
	return e, nil
}
