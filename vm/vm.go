// Package vm implements the PL/0 stack machine: a register-augmented
// virtual machine with a call stack, base-pointer chain for non-local
// variable access, and an 8-register file, per spec.md §4.3.
package vm

import (
	"io"

	"github.com/pkg/errors"
)

// Op identifies a machine instruction.
type Op int

// Instruction opcodes, numbered per spec.md §4.3 / §6.
const (
	_ Op = iota // opcode 0 is illegal
	LIT
	RTN
	LOD
	STO
	CAL
	INC
	JMP
	JPC
	SIOWrite
	SIORead
	SIOHalt
	NEG
	ADD
	SUB
	MUL
	DIV
	ODD
	MOD
	EQL
	NEQ
	LSS
	LEQ
	GTR
	GEQ
)

var mnemonics = [...]string{
	"illegal",
	"lit", "rtn", "lod", "sto", "cal",
	"inc", "jmp", "jpc", "sio", "sio",
	"sio", "neg", "add", "sub", "mul",
	"div", "odd", "mod", "eql", "neq",
	"lss", "leq", "gtr", "geq",
}

// String renders the opcode's mnemonic, matching spec.md §6's trace table
// (the three SIO variants all render as "sio"; opcode is authoritative).
func (op Op) String() string {
	if op >= 0 && int(op) < len(mnemonics) {
		return mnemonics[op]
	}
	return "illegal"
}

// Instruction is one machine word: an opcode plus register/level/immediate
// operands, per spec.md §3.
type Instruction struct {
	Op Op
	R  int
	L  int
	M  int
}

// Default machine limits (spec.md §3, §5).
const (
	DefaultMaxCodeLength = 512
	DefaultStackSize     = 2000
	RegisterCount        = 8
)

// Option configures an Instance at construction time.
type Option func(*Instance)

// StackSize sets the data stack capacity.
func StackSize(n int) Option {
	return func(i *Instance) { i.stack = make([]int, n) }
}

// Trace registers a callback invoked after each executed instruction with
// the machine's post-execution state. The core exposes this as raw data;
// formatting it into the §6 listing is left to a caller-supplied formatter
// (see cmd/pl0's trace writer).
func Trace(fn func(TraceEntry)) Option {
	return func(i *Instance) { i.trace = fn }
}

// TraceEntry is one fetch-execute step's observable state, corresponding to
// one line of the §6 trace format.
type TraceEntry struct {
	IR   int
	Inst Instruction
	PC   int
	BP   int
	SP   int
}

// Instance is a PL/0 virtual machine: code memory, a data/call stack, a
// base pointer, stack pointer, program counter, instruction register, and
// an 8-entry register file.
type Instance struct {
	Code  []Instruction
	stack []int
	RF    [RegisterCount]int

	BP, SP, PC, IR int

	input  io.Reader
	output io.Writer

	trace    func(TraceEntry)
	halted   bool
	insCount int64
}

// New creates a machine ready to execute code, with BP=1, SP=0, PC=0, and
// all registers/stack cells zeroed (spec.md §3).
func New(code []Instruction, opts ...Option) *Instance {
	i := &Instance{
		Code: code,
		BP:   1,
		SP:   0,
		PC:   0,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.stack == nil {
		i.stack = make([]int, DefaultStackSize)
	}
	return i
}

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 {
	return i.insCount
}

// Halted reports whether the machine has executed SIO_HALT.
func (i *Instance) Halted() bool {
	return i.halted
}

// base walks the static-link chain starting at bp, l levels up, following
// the static link stored at offset 1 of each frame (spec.md §4.3).
func (i *Instance) base(bp, l int) (int, error) {
	for l > 0 {
		nb, err := i.at(bp + 1)
		if err != nil {
			return 0, err
		}
		bp = nb
		l--
	}
	return bp, nil
}

func (i *Instance) at(addr int) (int, error) {
	if addr < 0 || addr >= len(i.stack) {
		return 0, errors.Errorf("stack access out of range at address %d (size %d)", addr, len(i.stack))
	}
	return i.stack[addr], nil
}

func (i *Instance) set(addr, v int) error {
	if addr < 0 || addr >= len(i.stack) {
		return errors.Errorf("stack access out of range at address %d (size %d)", addr, len(i.stack))
	}
	i.stack[addr] = v
	return nil
}

func (i *Instance) reg(r int) (int, error) {
	if r < 0 || r >= RegisterCount {
		return 0, errors.Errorf("register index %d out of range", r)
	}
	return i.RF[r], nil
}

func (i *Instance) setReg(r, v int) error {
	if r < 0 || r >= RegisterCount {
		return errors.Errorf("register index %d out of range", r)
	}
	i.RF[r] = v
	return nil
}
