// Package token defines the lexical units attached to NRL syntax trees.
//
// Tokens are produced by an external lexer and carried by every AST node
// as provenance data. Evaluation logic never interprets them; they exist
// so that errors raised deep inside the evaluator can point back at the
// exact source region that produced the offending node.
package token
