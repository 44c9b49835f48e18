package vm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ReadInstructions parses the whitespace-separated decimal "op r l m" text
// format of spec.md §6 into an instruction slice.
func ReadInstructions(r io.Reader) ([]Instruction, error) {
	var code []Instruction
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	readInt := func(field string) (int, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, errors.Wrap(err, "reading instruction stream")
			}
			return 0, errors.Errorf("unexpected end of instruction stream reading %s", field)
		}
		var v int
		if _, err := fmt.Sscanf(sc.Text(), "%d", &v); err != nil {
			return 0, errors.Wrapf(err, "parsing %s field %q", field, sc.Text())
		}
		return v, nil
	}

	for sc.Scan() {
		var opv int
		if _, err := fmt.Sscanf(sc.Text(), "%d", &opv); err != nil {
			return nil, errors.Wrapf(err, "parsing op field %q", sc.Text())
		}
		r, err := readInt("r")
		if err != nil {
			return nil, err
		}
		l, err := readInt("l")
		if err != nil {
			return nil, err
		}
		m, err := readInt("m")
		if err != nil {
			return nil, err
		}
		code = append(code, Instruction{Op: Op(opv), R: r, L: l, M: m})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading instruction stream")
	}
	return code, nil
}

// WriteInstructions renders code in the "op r l m" text format consumed by
// ReadInstructions.
func WriteInstructions(w io.Writer, code []Instruction) error {
	for _, c := range code {
		if _, err := fmt.Fprintf(w, "%d %d %d %d\n", int(c.Op), c.R, c.L, c.M); err != nil {
			return errors.Wrap(err, "writing instruction stream")
		}
	}
	return nil
}

// WriteListing renders the emitted code array as the "# OP R L M" table
// named in spec.md §6, independent of execution (supplemented feature: see
// SPEC_FULL.md, grounded on vm.c's dumpInstructions).
func WriteListing(w io.Writer, code []Instruction) error {
	if _, err := fmt.Fprintf(w, "%3s %3s %3s %3s %3s\n", "#", "OP", "R", "L", "M"); err != nil {
		return errors.Wrap(err, "writing listing")
	}
	for idx, c := range code {
		if _, err := fmt.Fprintf(w, "%3d %3s %3d %3d %3d\n", idx, c.Op, c.R, c.L, c.M); err != nil {
			return errors.Wrap(err, "writing listing")
		}
	}
	return nil
}

// TraceHeader is the fixed-width column header of spec.md §6's trace
// format.
const TraceHeader = "  #  OP   R   L   M  PC  BP  SP STK"

// FormatTraceLine renders one TraceEntry as a fixed-width trace row,
// without the stack dump (see FormatStack for that, appended separately so
// callers can choose whether to include it).
func FormatTraceLine(e TraceEntry) string {
	return fmt.Sprintf("%3d %3s %3d %3d %3d %3d %3d %3d",
		e.IR, e.Inst.Op, e.Inst.R, e.Inst.L, e.Inst.M, e.PC, e.BP, e.SP)
}

// StackTrace returns the machine's live stack contents split into
// activation-record frames, walking the dynamic-link chain from the
// current BP down to the outermost frame. Frame 0 is the outermost.
func (i *Instance) StackTrace() [][]int {
	if i.BP == 0 {
		return nil
	}
	var frames [][]int
	bp := i.BP
	sp := i.SP
	for bp != 0 {
		var frame []int
		if bp <= sp {
			frame = append(frame, i.stack[bp:sp+1]...)
		}
		frames = append(frames, frame)
		if bp == 1 {
			break
		}
		dynamicLink, err := i.at(bp + 2)
		if err != nil {
			break
		}
		sp = bp - 1
		bp = dynamicLink
	}
	// frames was built innermost-first; reverse to outermost-first to match
	// vm.c's dumpStack, which recurses to the bottom before printing.
	for l, r := 0, len(frames)-1; l < r; l, r = l+1, r-1 {
		frames[l], frames[r] = frames[r], frames[l]
	}
	return frames
}

// FormatStack renders frames as vm.c's dumpStack does: a leading "0" for
// the bottommost sentinel slot, then each live activation record's cells
// separated by "|".
func FormatStack(frames [][]int) string {
	var b strings.Builder
	b.WriteString("  0 ")
	for _, f := range frames {
		if len(f) == 0 {
			continue
		}
		b.WriteString("| ")
		for _, v := range f {
			fmt.Fprintf(&b, "%3d ", v)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
