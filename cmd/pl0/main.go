// Command pl0 compiles and runs a PL/0 source file: lex, translate, execute.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/8Keep/pl0compiler/compiler"
	"github.com/8Keep/pl0compiler/config"
	"github.com/8Keep/pl0compiler/lexer"
	"github.com/8Keep/pl0compiler/vm"
)

var (
	configPath  string
	inFileName  string
	outFileName string
	traceName   string
	dump        bool
	symbols     bool
	stackSize   int
	debug       bool
)

func atExit(err error) {
	if err == nil {
		return
	}
	if !debug {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%+v\n", err)
	os.Exit(1)
}

func main() {
	var err error
	defer func() { atExit(err) }()

	flag.StringVar(&configPath, "config", "", "load machine/trace defaults from `file` (TOML)")
	flag.StringVar(&inFileName, "in", "", "read SIO_READ input from `file` (default stdin)")
	flag.StringVar(&outFileName, "out", "", "write SIO_WRITE output to `file` (default stdout)")
	flag.StringVar(&traceName, "trace", "", "write a per-instruction execution trace to `file`")
	flag.BoolVar(&dump, "dump", false, "print the compiled instruction listing and exit without running it")
	flag.BoolVar(&symbols, "symbols", false, "print the symbol table before running")
	flag.IntVar(&stackSize, "stacksize", 0, "override the VM's data stack size (0: use config/default)")
	flag.BoolVar(&debug, "debug", false, "print full error stack traces")
	flag.Parse()

	if flag.NArg() != 1 {
		err = errors.New("usage: pl0 [flags] <source-file>")
		return
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			err = errors.Wrap(err, "loading config")
			return
		}
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		err = errors.Wrap(err, "reading source file")
		return
	}

	tokens, lexErr := lexer.Tokenize(string(src))
	if lexErr != nil {
		err = errors.Wrap(lexErr, "lexing")
		return
	}

	code, syms, compErr := compiler.Compile(tokens)
	if compErr != nil {
		err = errors.Wrap(compErr, "compiling")
		return
	}

	if len(code) > cfg.Machine.MaxCodeLength {
		err = errors.Errorf("generated %d instructions, exceeds configured max_code_length(%d)", len(code), cfg.Machine.MaxCodeLength)
		return
	}

	if symbols {
		fmt.Fprint(os.Stdout, syms.String())
	}

	if dump {
		err = errors.Wrap(vm.WriteListing(os.Stdout, code), "writing listing")
		return
	}

	// m is assigned after the options (including the trace callback, which
	// closes over mp to read the live stack) are built.
	var m *vm.Instance
	opts, closers, err := vmOptions(cfg, &m)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if err != nil {
		return
	}

	m = vm.New(code, opts...)
	err = errors.Wrap(m.Run(), "running")
}

// vmOptions builds the vm.Option list from flags and cfg, opening whatever
// files -in/-out/-trace name. Callers must close the returned files once the
// machine has finished running. mp is filled in by the caller once the
// Instance exists; the trace option dereferences it lazily so it can report
// each step's live stack alongside the instruction fields.
func vmOptions(cfg *config.Config, mp **vm.Instance) ([]vm.Option, []io.Closer, error) {
	var opts []vm.Option
	var closers []io.Closer

	if stackSize > 0 {
		opts = append(opts, vm.StackSize(stackSize))
	} else if cfg.Machine.StackSize > 0 {
		opts = append(opts, vm.StackSize(cfg.Machine.StackSize))
	}

	in := inFileName
	if in == "" {
		in = cfg.IO.InputFile
	}
	if in != "" {
		f, err := os.Open(in) // #nosec G304 -- user-specified input file
		if err != nil {
			return nil, closers, errors.Wrap(err, "opening input file")
		}
		closers = append(closers, f)
		opts = append(opts, vm.Input(f))
	} else {
		opts = append(opts, vm.Input(os.Stdin))
	}

	out := outFileName
	if out == "" {
		out = cfg.IO.OutputFile
	}
	if out != "" {
		f, err := os.Create(out) // #nosec G304 -- user-specified output file
		if err != nil {
			return nil, closers, errors.Wrap(err, "creating output file")
		}
		closers = append(closers, f)
		opts = append(opts, vm.Output(f))
	} else {
		opts = append(opts, vm.Output(os.Stdout))
	}

	trace := traceName
	if trace == "" && cfg.Trace.Enabled {
		trace = cfg.Trace.OutputFile
	}
	if trace != "" {
		f, err := os.Create(trace) // #nosec G304 -- user-specified trace file
		if err != nil {
			return nil, closers, errors.Wrap(err, "creating trace file")
		}
		closers = append(closers, f)
		fmt.Fprintln(f, vm.TraceHeader)
		opts = append(opts, vm.Trace(func(e vm.TraceEntry) {
			fmt.Fprint(f, vm.FormatTraceLine(e))
			if *mp != nil {
				fmt.Fprint(f, " ", vm.FormatStack((*mp).StackTrace()))
			}
			fmt.Fprintln(f)
		}))
	}

	return opts, closers, nil
}
