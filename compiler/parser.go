package compiler

import (
	"github.com/8Keep/pl0compiler/symtab"
	"github.com/8Keep/pl0compiler/token"
	"github.com/8Keep/pl0compiler/vm"
)

// block compiles one "const ... var ... procedure ... statement" unit: the
// global program body, or a procedure's body. On entry currentLevel and
// currentScope already reflect this block's nesting (set by the caller for
// a procedure; level 0 and symtab.GlobalScope for the program).
func (c *compiler) block() error {
	if err := c.constDecls(); err != nil {
		return err
	}
	varCount, err := c.varDecls()
	if err != nil {
		return err
	}

	if c.cur().Kind == token.Procedure {
		jmpOverProcs := c.emit(vm.JMP, 0, 0, 0) // placeholder, patched below
		for c.cur().Kind == token.Procedure {
			if err := c.procDecl(); err != nil {
				return err
			}
		}
		c.patch(jmpOverProcs, c.here())
	}

	c.emit(vm.INC, 0, 0, 4)
	if varCount > 0 {
		c.emit(vm.INC, 0, 0, varCount)
	}

	if err := c.statement(); err != nil {
		return err
	}

	// A procedure's body returns to its caller via RTN. The outermost
	// program block has no caller to return to: the activation-record
	// slots RTN would unwind through were never populated by a CAL, so
	// emitting RTN here would send PC back to 0 instead of falling
	// through to the SIO_HALT that follows. Only procedure bodies emit it.
	if c.currentScope != symtab.GlobalScope {
		c.emit(vm.RTN, 0, 0, 0)
	}
	return nil
}

func (c *compiler) constDecls() error {
	if c.cur().Kind != token.Const {
		return nil
	}
	c.advance()
	for {
		if c.cur().Kind != token.Ident {
			return newError(ErrIdentExpected, c.curLine())
		}
		name := c.advance().Lexeme
		if err := c.expect(token.Eq, ErrEqExpectedInConst); err != nil {
			return err
		}
		if c.cur().Kind != token.Number {
			return newError(ErrNumberExpectedAfterEq, c.curLine())
		}
		value := parseNumber(c.advance().Lexeme)
		c.syms.Add(symtab.Symbol{
			Kind:  symtab.ConstKind,
			Name:  name,
			Level: c.currentLevel,
			Scope: c.currentScope,
			Value: value,
		})
		if c.cur().Kind != token.Comma {
			break
		}
		c.advance()
	}
	return c.expect(token.Semicolon, ErrSemicolonExpectedDecl)
}

func (c *compiler) varDecls() (int, error) {
	if c.cur().Kind != token.Var {
		return 0, nil
	}
	c.advance()
	count := 0
	for {
		if c.cur().Kind != token.Ident {
			return 0, newError(ErrIdentExpected, c.curLine())
		}
		name := c.advance().Lexeme
		c.syms.Add(symtab.Symbol{
			Kind:    symtab.VarKind,
			Name:    name,
			Level:   c.currentLevel,
			Scope:   c.currentScope,
			Address: 4 + count,
		})
		count++
		if c.cur().Kind != token.Comma {
			break
		}
		c.advance()
	}
	if err := c.expect(token.Semicolon, ErrSemicolonExpectedDecl); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *compiler) procDecl() error {
	c.advance() // "procedure"
	if c.cur().Kind != token.Ident {
		return newError(ErrIdentExpected, c.curLine())
	}
	name := c.advance().Lexeme

	procIdx := c.syms.Add(symtab.Symbol{
		Kind:    symtab.ProcKind,
		Name:    name,
		Level:   c.currentLevel,
		Scope:   c.currentScope,
		Address: -1,
	})

	if err := c.expect(token.Semicolon, ErrSemicolonExpectedProc); err != nil {
		return err
	}

	savedScope := c.currentScope
	c.currentScope = procIdx
	c.currentLevel++

	c.syms.SetAddress(procIdx, c.here())
	if err := c.block(); err != nil {
		return err
	}

	c.currentLevel--
	c.currentScope = savedScope

	return c.expect(token.Semicolon, ErrSemicolonExpectedProc)
}

// statement compiles one statement, per spec.md §4.2's grammar. The empty
// alternative (no leading keyword/identifier matches) is legal and emits
// nothing.
func (c *compiler) statement() error {
	switch c.cur().Kind {
	case token.Ident:
		return c.assignment()
	case token.Call:
		return c.callStatement()
	case token.Begin:
		return c.beginStatement()
	case token.If:
		return c.ifStatement()
	case token.While:
		return c.whileStatement()
	case token.Read:
		return c.readStatement()
	case token.Write:
		return c.writeStatement()
	default:
		return nil
	}
}

func (c *compiler) assignment() error {
	name := c.advance().Lexeme
	sym, _, ok := c.syms.Find(c.currentScope, name)
	if !ok {
		return newError(ErrUndeclaredIdent, c.curLine())
	}
	if sym.Kind != symtab.VarKind {
		return newError(ErrAssignTargetNotVar, c.curLine())
	}
	if err := c.expect(token.Becomes, ErrBecomesExpected); err != nil {
		return err
	}
	if err := c.expression(0); err != nil {
		return err
	}
	c.emit(vm.STO, 0, c.currentLevel-sym.Level, sym.Address)
	return nil
}

func (c *compiler) callStatement() error {
	c.advance() // "call"
	if c.cur().Kind != token.Ident {
		return newError(ErrIdentExpectedAfterCal, c.curLine())
	}
	name := c.advance().Lexeme
	sym, _, ok := c.syms.Find(c.currentScope, name)
	if !ok {
		return newError(ErrUndeclaredIdent, c.curLine())
	}
	if sym.Kind != symtab.ProcKind {
		return newError(ErrCallTargetNotProc, c.curLine())
	}
	c.emit(vm.CAL, 0, c.currentLevel-sym.Level, sym.Address)
	return nil
}

func (c *compiler) beginStatement() error {
	c.advance() // "begin"
	if err := c.statement(); err != nil {
		return err
	}
	for c.cur().Kind == token.Semicolon {
		c.advance()
		if err := c.statement(); err != nil {
			return err
		}
	}
	return c.expect(token.End, ErrEndExpected)
}

func (c *compiler) ifStatement() error {
	c.advance() // "if"
	if err := c.condition(0); err != nil {
		return err
	}
	if err := c.expect(token.Then, ErrThenExpected); err != nil {
		return err
	}
	jpc := c.emit(vm.JPC, 0, 0, 0)
	if err := c.statement(); err != nil {
		return err
	}
	if c.cur().Kind == token.Else {
		jmpOverElse := c.emit(vm.JMP, 0, 0, 0)
		c.patch(jpc, c.here())
		c.advance() // "else"
		if err := c.statement(); err != nil {
			return err
		}
		c.patch(jmpOverElse, c.here())
		return nil
	}
	c.patch(jpc, c.here())
	return nil
}

func (c *compiler) whileStatement() error {
	c.advance() // "while"
	head := c.here()
	if err := c.condition(0); err != nil {
		return err
	}
	if err := c.expect(token.Do, ErrDoExpected); err != nil {
		return err
	}
	jpc := c.emit(vm.JPC, 0, 0, 0)
	if err := c.statement(); err != nil {
		return err
	}
	c.emit(vm.JMP, 0, 0, head)
	c.patch(jpc, c.here())
	return nil
}

func (c *compiler) readStatement() error {
	c.advance() // "read"
	if c.cur().Kind != token.Ident {
		return newError(ErrIdentExpected, c.curLine())
	}
	name := c.advance().Lexeme
	sym, _, ok := c.syms.Find(c.currentScope, name)
	if !ok {
		return newError(ErrUndeclaredIdent, c.curLine())
	}
	if sym.Kind != symtab.VarKind {
		return newError(ErrAssignTargetNotVar, c.curLine())
	}
	c.emit(vm.SIORead, 0, 0, 2)
	c.emit(vm.STO, 0, c.currentLevel-sym.Level, sym.Address)
	return nil
}

func (c *compiler) writeStatement() error {
	c.advance() // "write"
	if c.cur().Kind == token.Number {
		c.emit(vm.LIT, 0, 0, parseNumber(c.advance().Lexeme))
		c.emit(vm.SIOWrite, 0, 0, 1)
		return nil
	}
	if c.cur().Kind != token.Ident {
		return newError(ErrIdentExpected, c.curLine())
	}
	name := c.advance().Lexeme
	sym, _, ok := c.syms.Find(c.currentScope, name)
	if !ok {
		return newError(ErrUndeclaredIdent, c.curLine())
	}
	switch sym.Kind {
	case symtab.VarKind:
		c.emit(vm.LOD, 0, c.currentLevel-sym.Level, sym.Address)
	case symtab.ConstKind:
		c.emit(vm.LIT, 0, 0, sym.Value)
	default:
		return newError(ErrWriteTargetInvalid, c.curLine())
	}
	c.emit(vm.SIOWrite, 0, 0, 1)
	return nil
}

// condition compiles "odd expression" or "expression relop expression",
// leaving a 0/1 result in register r.
func (c *compiler) condition(r int) error {
	if c.cur().Kind == token.Odd {
		c.advance()
		if err := c.expression(r); err != nil {
			return err
		}
		c.emit(vm.ODD, r, 0, 0)
		return nil
	}

	if err := c.expression(r); err != nil {
		return err
	}

	op, ok := relOps[c.cur().Kind]
	if !ok {
		return newError(ErrRelopExpected, c.curLine())
	}
	c.advance()

	r2, err := c.nextReg(r)
	if err != nil {
		return err
	}
	if err := c.expression(r2); err != nil {
		return err
	}
	c.emit(op, r, r, r2)
	return nil
}

var relOps = map[token.Kind]vm.Op{
	token.Eq:  vm.EQL,
	token.Neq: vm.NEQ,
	token.Lss: vm.LSS,
	token.Leq: vm.LEQ,
	token.Gtr: vm.GTR,
	token.Geq: vm.GEQ,
}

// expression compiles ["+"|"-"] term {("+"|"-") term}, leaving its value in
// register r.
func (c *compiler) expression(r int) error {
	negate := false
	switch c.cur().Kind {
	case token.Plus:
		c.advance()
	case token.Minus:
		negate = true
		c.advance()
	}

	if err := c.term(r); err != nil {
		return err
	}
	if negate {
		c.emit(vm.NEG, r, r, 0)
	}

	for c.cur().Kind == token.Plus || c.cur().Kind == token.Minus {
		op := vm.ADD
		if c.cur().Kind == token.Minus {
			op = vm.SUB
		}
		c.advance()

		r2, err := c.nextReg(r)
		if err != nil {
			return err
		}
		if err := c.term(r2); err != nil {
			return err
		}
		c.emit(op, r, r, r2)
	}
	return nil
}

// term compiles factor {("*"|"/") factor}, leaving its value in register r.
func (c *compiler) term(r int) error {
	if err := c.factor(r); err != nil {
		return err
	}
	for c.cur().Kind == token.Mult || c.cur().Kind == token.Slash {
		op := vm.MUL
		if c.cur().Kind == token.Slash {
			op = vm.DIV
		}
		c.advance()

		r2, err := c.nextReg(r)
		if err != nil {
			return err
		}
		if err := c.factor(r2); err != nil {
			return err
		}
		c.emit(op, r, r, r2)
	}
	return nil
}

// factor compiles ident | number | "(" expression ")", leaving its value in
// register r.
func (c *compiler) factor(r int) error {
	switch c.cur().Kind {
	case token.Ident:
		name := c.advance().Lexeme
		sym, _, ok := c.syms.Find(c.currentScope, name)
		if !ok {
			return newError(ErrUndeclaredIdent, c.curLine())
		}
		switch sym.Kind {
		case symtab.VarKind:
			c.emit(vm.LOD, r, c.currentLevel-sym.Level, sym.Address)
		case symtab.ConstKind:
			c.emit(vm.LIT, r, 0, sym.Value)
		default:
			return newError(ErrFactorCannotBegin, c.curLine())
		}
		return nil

	case token.Number:
		value := parseNumber(c.advance().Lexeme)
		c.emit(vm.LIT, r, 0, value)
		return nil

	case token.LParen:
		c.advance()
		if err := c.expression(r); err != nil {
			return err
		}
		return c.expect(token.RParen, ErrRParenExpected)

	default:
		return newError(ErrFactorCannotBegin, c.curLine())
	}
}
