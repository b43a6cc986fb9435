// Package nrl is the umbrella for the Normative Rule Language: a small
// domain-specific language for regulative rules, statements that
// something is PERMITTED or OBLIGATED subject to boolean preconditions,
// temporal deadlines and nested consequences.
//
// # Architecture
//
// The package is organized into subpackages:
//
//   - token: lexical units attached to AST nodes as provenance
//   - ast: the typed syntax tree, including the regulative-rule nodes
//   - resolve: the name-resolution pass producing fixed addresses
//   - env: the persistent, lexically-scoped variable store
//   - eval: the suspendable evaluator and its event protocol
//   - errors: structured error types shared by all of the above
//
// # Basic usage
//
// Resolve a parsed program and evaluate a rule:
//
//	program, environment, err := nrl.Resolve(parsed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := nrl.NewRuleSession(program, environment, "Pay",
//	    []ast.Value{ast.Number(100)},
//	    eval.WithReferenceTime(activation))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session.Validate()
//
//	ev := session.Start()
//	for {
//	    switch e := ev.(type) {
//	    case eval.EventRequest:
//	        ev = e.Continuation.Resume(askUser(e.Request))
//	    case eval.EventResult:
//	        fmt.Println("satisfied:", e.Outcome.Satisfied)
//	        return
//	    case eval.ErrorEvent:
//	        log.Fatal(e.Err)
//	    }
//	}
//
// The character-level lexer and the concrete grammar are external
// collaborators: programs enter this core as constructed ast values.
package nrl
