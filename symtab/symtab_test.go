package symtab_test

import (
	"testing"

	"github.com/8Keep/pl0compiler/symtab"
)

func TestFindInnermostWins(t *testing.T) {
	tab := symtab.New()
	gx := tab.Add(symtab.Symbol{Kind: symtab.VarKind, Name: "x", Level: 0, Scope: symtab.GlobalScope, Address: 4})
	proc := tab.Add(symtab.Symbol{Kind: symtab.ProcKind, Name: "p", Level: 0, Scope: symtab.GlobalScope, Address: 10})
	px := tab.Add(symtab.Symbol{Kind: symtab.VarKind, Name: "x", Level: 1, Scope: proc, Address: 4})

	sym, idx, ok := tab.Find(proc, "x")
	if !ok {
		t.Fatal("expected to find x")
	}
	if idx != px {
		t.Fatalf("expected innermost x (idx %d), got idx %d", px, idx)
	}
	if sym.Level != 1 {
		t.Fatalf("expected level 1, got %d", sym.Level)
	}

	sym, idx, ok = tab.Find(symtab.GlobalScope, "x")
	if !ok || idx != gx {
		t.Fatalf("expected global x (idx %d), got idx %d ok=%v", gx, idx, ok)
	}
}

func TestFindAscendsToEnclosingScope(t *testing.T) {
	tab := symtab.New()
	gx := tab.Add(symtab.Symbol{Kind: symtab.VarKind, Name: "x", Level: 0, Scope: symtab.GlobalScope, Address: 4})
	proc := tab.Add(symtab.Symbol{Kind: symtab.ProcKind, Name: "p", Level: 0, Scope: symtab.GlobalScope, Address: 10})

	sym, idx, ok := tab.Find(proc, "x")
	if !ok || idx != gx {
		t.Fatalf("expected to find global x from inside p, got idx %d ok %v", idx, ok)
	}
	if sym.Level != 0 {
		t.Fatalf("expected level 0, got %d", sym.Level)
	}
}

func TestFindUndeclared(t *testing.T) {
	tab := symtab.New()
	_, _, ok := tab.Find(symtab.GlobalScope, "nope")
	if ok {
		t.Fatal("expected undeclared identifier to not be found")
	}
}

func TestSetAddressPatchesProcEntry(t *testing.T) {
	tab := symtab.New()
	proc := tab.Add(symtab.Symbol{Kind: symtab.ProcKind, Name: "p", Address: -1})
	tab.SetAddress(proc, 42)
	if got := tab.Get(proc).Address; got != 42 {
		t.Fatalf("expected patched address 42, got %d", got)
	}
}
