// Package facts loads known facts from YAML files into an NRL
// environment.
//
// A fact file supplies values for variables and relations declared by
// the program, pre-populating the global frame before any session
// starts. Facts not present in the file are simply left unbound; the
// evaluator will request them from the host when evaluation first needs
// them. The same format is re-read by the session fact watcher to
// answer pending requests as users fill values in.
package facts
