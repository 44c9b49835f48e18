package vm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Input sets the stream SIO_READ consumes decimal integers from.
func Input(r io.Reader) Option {
	return func(i *Instance) { i.input = bufio.NewReader(r) }
}

// Output sets the stream SIO_WRITE writes decimal integers to.
func Output(w io.Writer) Option {
	return func(i *Instance) { i.output = w }
}

// Run executes the machine's code from its current PC until SIO_HALT, an
// out-of-range PC, or an error. It implements the fetch-execute loop and
// instruction semantics of spec.md §4.3's authoritative table.
//
// If the VM was constructed with Trace, the trace callback fires once per
// executed instruction, after that instruction's effects are applied.
//
// Runtime faults (bad register index, out-of-range stack access, division
// by zero) are reported as an error rather than left undefined, per the
// Open Question resolution in DESIGN.md: a batch compile-and-run tool
// should fail loudly.
func (i *Instance) Run() (err error) {
	defer func() {
		if e := recover(); e != nil {
			switch e := e.(type) {
			case error:
				err = errors.Wrapf(e, "recovered error @pc=%d/%d, sp=%d/%d", i.PC, len(i.Code), i.SP, len(i.stack))
			default:
				panic(e)
			}
		}
	}()

	for !i.halted {
		if i.PC < 0 || i.PC >= len(i.Code) {
			return errors.Errorf("program counter %d out of range (code length %d)", i.PC, len(i.Code))
		}
		i.IR = i.PC
		inst := i.Code[i.IR]
		i.PC++

		if err := i.exec(inst); err != nil {
			return errors.Wrapf(err, "executing %s at %d", inst.Op, i.IR)
		}

		i.insCount++

		if i.trace != nil {
			i.trace(TraceEntry{IR: i.IR, Inst: inst, PC: i.PC, BP: i.BP, SP: i.SP})
		}
	}
	return nil
}

// exec applies a single instruction's effect to the machine state.
func (i *Instance) exec(ins Instruction) error {
	switch ins.Op {
	case LIT:
		return i.setReg(ins.R, ins.M)

	case RTN:
		newSP := i.BP - 1
		dynamicLink, err := i.at(newSP + 3)
		if err != nil {
			return err
		}
		retAddr, err := i.at(newSP + 4)
		if err != nil {
			return err
		}
		i.SP = newSP
		i.BP = dynamicLink
		i.PC = retAddr
		return nil

	case LOD:
		base, err := i.base(i.BP, ins.L)
		if err != nil {
			return err
		}
		v, err := i.at(base + ins.M)
		if err != nil {
			return err
		}
		return i.setReg(ins.R, v)

	case STO:
		base, err := i.base(i.BP, ins.L)
		if err != nil {
			return err
		}
		v, err := i.reg(ins.R)
		if err != nil {
			return err
		}
		return i.set(base+ins.M, v)

	case CAL:
		base, err := i.base(i.BP, ins.L)
		if err != nil {
			return err
		}
		if err := i.set(i.SP+1, 0); err != nil {
			return err
		}
		if err := i.set(i.SP+2, base); err != nil {
			return err
		}
		if err := i.set(i.SP+3, i.BP); err != nil {
			return err
		}
		if err := i.set(i.SP+4, i.PC); err != nil {
			return err
		}
		i.BP = i.SP + 1
		i.PC = ins.M
		return nil

	case INC:
		i.SP += ins.M
		return nil

	case JMP:
		i.PC = ins.M
		return nil

	case JPC:
		v, err := i.reg(ins.R)
		if err != nil {
			return err
		}
		if v == 0 {
			i.PC = ins.M
		}
		return nil

	case SIOWrite:
		if ins.M != 1 {
			return nil
		}
		v, err := i.reg(ins.R)
		if err != nil {
			return err
		}
		if i.output == nil {
			return errors.New("write: no output stream configured")
		}
		_, err = fmt.Fprintf(i.output, "%d ", v)
		return errors.Wrap(err, "write failed")

	case SIORead:
		if ins.M != 2 {
			return nil
		}
		if i.input == nil {
			return errors.New("read: no input stream configured")
		}
		var v int
		if _, err := fmt.Fscan(i.input, &v); err != nil {
			return errors.Wrap(err, "read failed")
		}
		return i.setReg(ins.R, v)

	case SIOHalt:
		if ins.M == 3 {
			i.halted = true
		}
		return nil

	case NEG:
		v, err := i.reg(ins.L)
		if err != nil {
			return err
		}
		return i.setReg(ins.R, -v)

	case ADD, SUB, MUL, DIV, MOD:
		lhs, err := i.reg(ins.L)
		if err != nil {
			return err
		}
		rhs, err := i.reg(ins.M)
		if err != nil {
			return err
		}
		var result int
		switch ins.Op {
		case ADD:
			result = lhs + rhs
		case SUB:
			result = lhs - rhs
		case MUL:
			result = lhs * rhs
		case DIV:
			if rhs == 0 {
				return errors.New("division by zero")
			}
			result = lhs / rhs
		case MOD:
			if rhs == 0 {
				return errors.New("division by zero")
			}
			result = lhs % rhs
		}
		return i.setReg(ins.R, result)

	case ODD:
		v, err := i.reg(ins.R)
		if err != nil {
			return err
		}
		return i.setReg(ins.R, v&1)

	case EQL, NEQ, LSS, LEQ, GTR, GEQ:
		lhs, err := i.reg(ins.L)
		if err != nil {
			return err
		}
		rhs, err := i.reg(ins.M)
		if err != nil {
			return err
		}
		var cond bool
		switch ins.Op {
		case EQL:
			cond = lhs == rhs
		case NEQ:
			cond = lhs != rhs
		case LSS:
			cond = lhs < rhs
		case LEQ:
			cond = lhs <= rhs
		case GTR:
			cond = lhs > rhs
		case GEQ:
			cond = lhs >= rhs
		}
		result := 0
		if cond {
			result = 1
		}
		return i.setReg(ins.R, result)

	default:
		return errors.Errorf("illegal opcode %d", int(ins.Op))
	}
}
