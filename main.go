package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lookbusy1344/rv32im-toolchain/config"
	"github.com/lookbusy1344/rv32im-toolchain/debugger"
	"github.com/lookbusy1344/rv32im-toolchain/loader"
	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

// weightMap implements flag.Value for repeated -weight name=cycles flags.
type weightMap map[string]uint64

func (w weightMap) String() string {
	parts := make([]string, 0, len(w))
	for name, cycles := range w {
		parts = append(parts, fmt.Sprintf("%s=%d", name, cycles))
	}
	return strings.Join(parts, ",")
}

func (w weightMap) Set(s string) error {
	name, rest, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("invalid -weight %q: want name=cycles", s)
	}
	cycles, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid -weight %q: %w", s, err)
	}
	w[name] = cycles
	return nil
}

// hexOrDec parses s as 0x-prefixed hex or plain decimal.
func hexOrDec(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		output      = flag.String("o", "", "Write a machine-readable run summary to this file")
		outputLong  = flag.String("output", "", "Alias for -o")
		entry       = flag.String("entry", "", "Entry point address (hex 0x... or decimal), overriding the linked \"main\" symbol")
		timeout     = flag.Uint64("timeout", 0, "Cycle budget before the interpreter halts with a timeout (0 = use config default)")
		stackTop    = flag.String("stack-top", "", "Stack top address (hex 0x... or decimal), overriding config")
		stackSize   = flag.String("stack-size", "", "Stack size in bytes (hex 0x... or decimal), overriding config")
		detail      = flag.Bool("detail", false, "Print cycle/instruction/branch counters after running")
		debugMode   = flag.Bool("debug", false, "Start in the interactive debugger")
		tuiMode     = flag.Bool("tui", false, "Start in the interactive debugger with the terminal UI")
		cache       = flag.Bool("cache", true, "Reuse the lazily-compiled instruction cache across runs (no effect on a single run)")
		silent      = flag.Bool("silent", false, "Suppress the run summary")
	)
	weights := make(weightMap)
	flag.Var(weights, "weight", "Per-mnemonic cycle weight override, name=cycles (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.s [file.s ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	_ = cache // instruction cache reuse is always on; flag kept for CLI parity

	if *showVersion {
		printVersion()
		return
	}
	if *showHelp {
		flag.Usage()
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lopts := loader.Options{
		StackTop:      cfg.Execution.StackTop,
		StackSize:     cfg.Execution.StackSize,
		TimeoutCycles: cfg.Execution.TimeoutCycles,
		Weights:       cfg.Weights,
		Stdin:         os.Stdin,
		Stdout:        os.Stdout,
	}
	if *entry != "" {
		v, err := hexOrDec(*entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -entry %q: %v\n", *entry, err)
			os.Exit(2)
		}
		lopts.Entry = uint32(v)
	}
	if *stackTop != "" {
		v, err := hexOrDec(*stackTop)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -stack-top %q: %v\n", *stackTop, err)
			os.Exit(2)
		}
		lopts.StackTop = uint32(v)
	}
	if *stackSize != "" {
		v, err := hexOrDec(*stackSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -stack-size %q: %v\n", *stackSize, err)
			os.Exit(2)
		}
		lopts.StackSize = uint32(v)
	}
	if *timeout != 0 {
		lopts.TimeoutCycles = *timeout
	}
	for name, cycles := range weights {
		if lopts.Weights == nil {
			lopts.Weights = make(map[string]uint64)
		}
		lopts.Weights[name] = cycles
	}

	sources := make(map[string]string, len(files))
	order := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f) // #nosec G304 -- user-supplied assembly file
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		sources[f] = string(data)
		order = append(order, f)
	}

	prog, err := loader.Load(sources, order, lopts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *debugMode || *tuiMode {
		dbg := debugger.New(prog.Interpreter, prog.Layout.Symbols)
		dbg.UseTUI = *tuiMode
		if err := dbg.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "debugger: %v\n", err)
			os.Exit(1)
		}
		os.Exit(int(prog.Interpreter.ExitCode))
	}

	state := prog.Interpreter.Run()

	if !*silent {
		printSummary(prog, *detail)
	}
	if state == vm.StateHaltedError && prog.Interpreter.Err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", prog.Interpreter.Err)
	}

	out := *output
	if out == "" {
		out = *outputLong
	}
	if out != "" {
		summary := fmt.Sprintf("exit=%d cycles=%d insns=%d state=%s\n",
			prog.Interpreter.ExitCode, prog.Interpreter.Dev.Cycles, prog.Interpreter.Dev.Insns, state)
		if err := os.WriteFile(out, []byte(summary), 0600); err != nil {
			fmt.Fprintf(os.Stderr, "error writing -output file: %v\n", err)
			os.Exit(1)
		}
	}

	if state == vm.StateHaltedError {
		os.Exit(1)
	}
	os.Exit(int(prog.Interpreter.ExitCode))
}

func printVersion() {
	fmt.Printf("rv32im-toolchain %s\n", Version)
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if Date != "unknown" {
		fmt.Printf("Built: %s\n", Date)
	}
}

func printSummary(prog *loader.Program, detail bool) {
	in := prog.Interpreter
	fmt.Printf("state: %s\n", in.State)
	fmt.Printf("exit code: %d\n", in.ExitCode)
	if detail {
		fmt.Printf("cycles: %d\n", in.Dev.Cycles)
		fmt.Printf("instructions: %d\n", in.Dev.Insns)
		fmt.Printf("branches taken: %d, not taken: %d\n", in.Dev.BranchesTaken, in.Dev.BranchesNotTaken)
		if total := in.Dev.PredictHits + in.Dev.PredictMisses; total > 0 {
			fmt.Printf("branch predictor: %d/%d correct (%.1f%%)\n",
				in.Dev.PredictHits, total, 100*float64(in.Dev.PredictHits)/float64(total))
		}
	}
}
