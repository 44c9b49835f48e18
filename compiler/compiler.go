// Package compiler implements the PL/0 translator: a single-pass
// recursive-descent parser that interleaves symbol-table construction and
// code generation into the vm package's instruction set, per spec.md §4.2.
package compiler

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/8Keep/pl0compiler/symtab"
	"github.com/8Keep/pl0compiler/token"
	"github.com/8Keep/pl0compiler/vm"
)

// compiler holds the translator's single-pass state: the token cursor, the
// code array under construction, the symbol table, and the current
// level/scope bookkeeping described in spec.md §4.2.
type compiler struct {
	tokens []token.Token
	pos    int

	code []vm.Instruction
	syms *symtab.Table

	currentLevel int
	currentScope int // symtab.GlobalScope, or the index of the enclosing PROC symbol
}

// Compile translates a token sequence into an instruction array and the
// symbol table built while doing so. It returns the first error
// encountered, if any; on error the partial code array is discarded, per
// spec.md §4.2's failure semantics.
func Compile(tokens []token.Token) ([]vm.Instruction, *symtab.Table, error) {
	c := &compiler{
		tokens:       tokens,
		syms:         symtab.New(),
		currentScope: symtab.GlobalScope,
	}

	if err := c.block(); err != nil {
		return nil, nil, err
	}
	if c.cur().Kind != token.Period {
		return nil, nil, newError(ErrPeriodExpected, c.line())
	}
	c.advance()
	c.emit(vm.SIOHalt, 0, 0, 3)

	return c.code, c.syms, nil
}

func (c *compiler) cur() token.Token {
	if c.pos >= len(c.tokens) {
		return token.Token{}
	}
	return c.tokens[c.pos]
}

func (c *compiler) line() int {
	if c.pos > 0 && c.pos-1 < len(c.tokens) {
		return c.tokens[c.pos-1].Line
	}
	if len(c.tokens) > 0 {
		return c.tokens[0].Line
	}
	return 0
}

func (c *compiler) advance() token.Token {
	t := c.cur()
	if c.pos < len(c.tokens) {
		c.pos++
	}
	return t
}

// expect consumes the current token if it has kind k, else returns the
// numeric error code errCode at the current line.
func (c *compiler) expect(k token.Kind, errCode int) error {
	if c.cur().Kind != k {
		return newError(errCode, c.curLine())
	}
	c.advance()
	return nil
}

func (c *compiler) curLine() int {
	if c.pos < len(c.tokens) {
		return c.tokens[c.pos].Line
	}
	return c.line()
}

// here returns the index the next emitted instruction will occupy.
func (c *compiler) here() int {
	return len(c.code)
}

func (c *compiler) emit(op vm.Op, r, l, m int) int {
	c.code = append(c.code, vm.Instruction{Op: op, R: r, L: l, M: m})
	return c.here() - 1
}

// patch overwrites the M operand of the instruction at idx, used to fix up
// a JMP/JPC emitted with a placeholder target once the real target is
// known (spec.md §9, "Forward-jump patching").
func (c *compiler) patch(idx, target int) {
	c.code[idx].M = target
}

// nextReg returns r+1, failing with a diagnosed error rather than silent
// register-stack overflow. Spec.md §9's Open Question on unchecked
// register indices is resolved here in favor of diagnosing; this falls
// outside the §7 numeric error taxonomy since it is a machine resource
// limit, not a syntax or declaration error, so it is reported directly.
func (c *compiler) nextReg(r int) (int, error) {
	if r+1 >= vm.RegisterCount {
		return 0, errors.Errorf("line %d: expression too deeply nested for %d registers", c.curLine(), vm.RegisterCount)
	}
	return r + 1, nil
}

func parseNumber(lexeme string) int {
	v, _ := strconv.Atoi(lexeme)
	return v
}
