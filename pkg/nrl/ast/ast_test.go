package ast

import (
	"strings"
	"testing"
	"time"

	"normative-hq/themis/pkg/nrl/errors"
	"normative-hq/themis/pkg/nrl/token"
)

func tk(text string) token.Token {
	return token.New(token.KindIdentifier, text, 1, 1)
}

func ident(symbol string) *Identifier {
	return &Identifier{Tok: tk(symbol), Symbol: symbol}
}

func TestValueEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal numbers", Number(3), Number(3), true},
		{"unequal numbers", Number(3), Number(4), false},
		{"equal booleans", Boolean(true), Boolean(true), true},
		{"number vs boolean", Number(1), Boolean(true), false},
		{"equal unit instances", UnitInstance{"person", "alice"}, UnitInstance{"person", "alice"}, true},
		{"same instance different type", UnitInstance{"person", "alice"}, UnitInstance{"org", "alice"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValueTypeNames(t *testing.T) {
	if got := Number(1).TypeName(); got != TypeNumber {
		t.Errorf("Number type = %q", got)
	}
	if got := Boolean(false).TypeName(); got != TypeBoolean {
		t.Errorf("Boolean type = %q", got)
	}
	if got := (UnitInstance{Type: "person", Instance: "a"}).TypeName(); got != "person" {
		t.Errorf("UnitInstance type = %q", got)
	}
}

func TestRelationalIdentifierSymbol(t *testing.T) {
	rel := &RelationalIdentifier{
		Tok: tk("owes"), Template: "owes",
		Args: []*Identifier{ident("buyer"), ident("seller")},
	}
	if got := rel.Symbol(); got != "owes(buyer,seller)" {
		t.Errorf("Symbol = %q", got)
	}

	// Argument order is part of the identity.
	swapped := &RelationalIdentifier{
		Tok: tk("owes"), Template: "owes",
		Args: []*Identifier{ident("seller"), ident("buyer")},
	}
	if rel.Symbol() == swapped.Symbol() {
		t.Error("swapped argument tuple must name a different relation")
	}
}

func TestNewTemporalConstraint(t *testing.T) {
	t.Run("relative flag must match variant", func(t *testing.T) {
		if _, err := NewTemporalConstraint(tk("WITHIN"), false, RelativeTime{Days: 1}); err == nil {
			t.Error("expected construction error")
		} else if !errors.IsKind(err, errors.KindConstruction) {
			t.Errorf("error kind = %v", err)
		}
		if _, err := NewTemporalConstraint(tk("BY"), true, AbsoluteTime{Year: 2024, Month: time.May, Day: 1}); err == nil {
			t.Error("expected construction error")
		}
		if _, err := NewTemporalConstraint(tk("BY"), false, nil); err == nil {
			t.Error("expected construction error for missing timestamp")
		}
	})

	t.Run("valid constraints build", func(t *testing.T) {
		tc, err := NewTemporalConstraint(tk("WITHIN"), true, RelativeTime{Months: 2})
		if err != nil {
			t.Fatalf("NewTemporalConstraint: %v", err)
		}
		ref := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
		if got := tc.Time.(RelativeTime).Resolve(ref); !got.Equal(ref.AddDate(0, 2, 0)) {
			t.Errorf("Resolve = %v", got)
		}
	})
}

func TestNewDeonticTemporalAction(t *testing.T) {
	if _, err := NewDeonticTemporalAction(tk("OBLIGATED"), false, ModalityObligated, nil, nil, nil); err == nil {
		t.Error("expected error for missing action expression")
	}
	if _, err := NewDeonticTemporalAction(tk("x"), false, Modality("maybe"), ident("p"), nil, nil); err == nil {
		t.Error("expected error for unknown modality")
	}
	if _, err := NewDeonticTemporalAction(tk("PERMITTED"), true, ModalityPermitted, ident("p"), nil, nil); err != nil {
		t.Errorf("valid action failed: %v", err)
	}
}

func TestNewRegulativeRuleConclusion(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name      string
		fulfilled *bool
		performed *bool
		wantErr   bool
	}{
		{"nothing asserted", nil, nil, true},
		{"both asserted false", boolPtr(false), boolPtr(false), true},
		{"fulfilled true", boolPtr(true), nil, false},
		{"performed true", nil, boolPtr(true), false},
		{"fulfilled true performed false", boolPtr(true), boolPtr(false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegulativeRuleConclusion(tk("ON"), tt.fulfilled, tt.performed, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsKind(err, errors.KindConstruction) {
				t.Errorf("error kind = %v, want construction", err)
			}
		})
	}
}

func TestNewRegulativeStmt(t *testing.T) {
	action, err := NewDeonticTemporalAction(tk("PERMITTED"), true, ModalityPermitted, ident("p"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewRegulativeStmt(tk("RULE"), "", nil, nil, action, nil, true); err == nil {
		t.Error("expected error for missing label")
	}
	if _, err := NewRegulativeStmt(tk("RULE"), "R", nil, nil, nil, nil, true); err == nil {
		t.Error("expected error for missing action")
	}
	params := []Param{{Name: "x", TypeName: TypeNumber}, {Name: "x", TypeName: TypeBoolean}}
	if _, err := NewRegulativeStmt(tk("RULE"), "R", params, nil, action, nil, true); err == nil {
		t.Error("expected error for duplicate parameter")
	} else if !strings.Contains(err.Error(), "twice") {
		t.Errorf("error = %v", err)
	}
}

func TestNewMutation(t *testing.T) {
	rel := &RelationalIdentifier{Tok: tk("owes"), Template: "owes", Args: []*Identifier{ident("a")}}

	if _, err := NewMutation(tk(":="), nil, &Literal{Tok: tk("1"), Val: Number(1)}); err == nil {
		t.Error("expected error for missing target")
	}
	if _, err := NewMutation(tk(":="), rel, nil); err == nil {
		t.Error("expected error for missing value")
	}

	m, err := NewMutation(tk("REVOKE"), rel, &RevokeMarker{Tok: tk("REVOKE")})
	if err != nil {
		t.Fatalf("NewMutation: %v", err)
	}
	if !m.Revokes() {
		t.Error("revoke marker not detected")
	}

	m, err = NewMutation(tk(":="), rel, &Literal{Tok: tk("1"), Val: Number(1)})
	if err != nil {
		t.Fatalf("NewMutation: %v", err)
	}
	if m.Revokes() {
		t.Error("assignment reported as revoke")
	}
}

func TestProgramRules(t *testing.T) {
	action, err := NewDeonticTemporalAction(tk("PERMITTED"), true, ModalityPermitted, ident("p"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	global, err := NewRegulativeStmt(tk("RULE"), "Top", nil, nil, action, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	local, err := NewRegulativeStmt(tk("RULE"), "Nested", nil, nil, action, nil, false)
	if err != nil {
		t.Fatal(err)
	}

	p := &Program{Statements: []Statement{global, local}}
	if rules := p.Rules(); len(rules) != 1 || rules[0].Label != "Top" {
		t.Errorf("Rules = %v", rules)
	}
	if _, ok := p.Rule("Nested"); ok {
		t.Error("non-global rule should not be addressable by label")
	}
	if _, ok := p.Rule("Top"); !ok {
		t.Error("global rule not found")
	}
}
