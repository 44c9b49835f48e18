// Package symtab implements the PL/0 symbol table: an append-only arena of
// declarations with a scope back-reference chain used to resolve non-local
// names, per spec.md §3 and §9 ("Back-reference scope chain").
package symtab

import (
	"fmt"
	"strings"
)

// Kind distinguishes the three declaration forms PL/0 supports.
type Kind int

const (
	// ConstKind marks a compile-time integer constant.
	ConstKind Kind = iota
	// VarKind marks a stack-resident variable.
	VarKind
	// ProcKind marks a procedure declaration.
	ProcKind
)

func (k Kind) String() string {
	switch k {
	case ConstKind:
		return "CONST"
	case VarKind:
		return "VAR"
	case ProcKind:
		return "PROC"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// GlobalScope is the sentinel Scope value meaning "the global block", since
// there is no enclosing PROC symbol for it.
const GlobalScope = -1

// Symbol is one declaration: a constant, variable, or procedure.
type Symbol struct {
	Kind    Kind
	Name    string
	Level   int
	Scope   int // index into the Table of the enclosing PROC symbol, or GlobalScope
	Value   int // CONST only
	Address int // VAR: frame offset; PROC: code entry address
}

// Table is an append-only arena of Symbol records. Symbols are never
// removed; visibility is governed entirely by the scope chain threaded
// through each symbol's enclosing-procedure index.
type Table struct {
	symbols []Symbol
}

// New returns an empty symbol table.
func New() *Table {
	return &Table{}
}

// Add appends sym to the table and returns its index. If sym is a PROC,
// that index doubles as the `scope` value for declarations nested inside
// its body.
func (t *Table) Add(sym Symbol) int {
	t.symbols = append(t.symbols, sym)
	return len(t.symbols) - 1
}

// Get returns the symbol at index idx.
func (t *Table) Get(idx int) Symbol {
	return t.symbols[idx]
}

// Find resolves name starting from scope (the index Add returned for a PROC
// symbol, or GlobalScope), ascending the enclosing-scope chain until a match is found.
// It returns the matching Symbol and its index, or ok=false if name is
// undeclared in any enclosing scope.
func (t *Table) Find(scope int, name string) (sym Symbol, idx int, ok bool) {
	for s := scope; ; {
		for i := len(t.symbols) - 1; i >= 0; i-- {
			sym := t.symbols[i]
			if sym.Name == name && t.visibleFrom(i, s) {
				return sym, i, true
			}
		}
		if s == GlobalScope {
			return Symbol{}, 0, false
		}
		s = t.symbols[s].Scope
	}
}

// visibleFrom reports whether the symbol at index symIdx was declared
// directly in scope s. Find calls this once per ascended scope, so a
// symbol declared in scope s is matched there before Find ascends to s's
// enclosing scope.
func (t *Table) visibleFrom(symIdx, s int) bool {
	return t.symbols[symIdx].Scope == s
}

// SetAddress overwrites the Address field of symbol idx. Used by the
// compiler to patch a procedure's entry address once its body's first
// instruction index is known; the symbol's Address is otherwise fixed at
// declaration and never mutated (spec.md §3 invariant).
func (t *Table) SetAddress(idx, address int) {
	t.symbols[idx].Address = address
}

// String renders the table for diagnostic/CLI use (supplemented feature:
// original_source/code_generator.c builds this table but never prints it).
func (t *Table) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-11s %-6s %5s %5s %7s\n", "NAME", "KIND", "LEVEL", "SCOPE", "VALUE/ADDR")
	for _, s := range t.symbols {
		v := s.Value
		if s.Kind != ConstKind {
			v = s.Address
		}
		fmt.Fprintf(&b, "%-11s %-6s %5d %5d %7d\n", s.Name, s.Kind, s.Level, s.Scope, v)
	}
	return b.String()
}
