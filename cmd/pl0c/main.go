// Command pl0c compiles a single source file to x86-64 assembly (output.s).
//
// Usage: pl0c [-v] <file>
//
// -v enables the loop vectorizer. Any other flag, or a missing source
// file, is fatal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"pl0c/internal/ast"
	"pl0c/internal/block"
	"pl0c/internal/blocker"
	"pl0c/internal/cfgraph"
	"pl0c/internal/codegen"
	"pl0c/internal/compctx"
	"pl0c/internal/diag"
	"pl0c/internal/lexer"
	"pl0c/internal/loop"
	"pl0c/internal/parser"
	"pl0c/internal/preprocess"
	"pl0c/internal/reach"
	"pl0c/internal/symtab"
	"pl0c/internal/tac"
	"pl0c/internal/vectorize"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	vectorizeLoops := false
	file := ""
	for _, arg := range args {
		switch {
		case arg == "-v":
			vectorizeLoops = true
		case strings.HasPrefix(arg, "-"):
			fmt.Fprintf(os.Stderr, "pl0c: unknown flag %q\n", arg)
			showUsage()
			return 2
		case file != "":
			showUsage()
			return 2
		default:
			file = arg
		}
	}
	if file == "" {
		showUsage()
		return 2
	}

	source, err := os.ReadFile(file)
	if err != nil {
		fatal(file, "cannot read source file: %v", err)
		return 1
	}

	asm, compileErr := compile(file, string(source), vectorizeLoops)
	if compileErr != nil {
		fatal(file, "%v", compileErr)
		return 1
	}

	if err := os.WriteFile("output.s", []byte(asm), 0o644); err != nil {
		fatal(file, "cannot write output.s: %v", err)
		return 1
	}
	return 0
}

func showUsage() {
	fmt.Fprintln(os.Stderr, "usage: pl0c [-v] <file>")
}

// compile drives the whole pipeline: lex, parse, type-check, generate TAC,
// preprocess, block, build per-procedure CFGs, run the loop optimizer, then
// emit assembly. Internal compiler errors (diag.Bug panics) are recovered
// here and reported the same way as any other fatal diagnostic.
func compile(file, source string, vectorizeLoops bool) (asm string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if bugErr, ok := r.(error); ok {
				err = bugErr
				return
			}
			err = errors.Errorf("internal compiler error: %v", r)
		}
	}()

	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()

	p := parser.New(file, tokens)
	program := p.ParseProgram()
	if len(p.Errors) > 0 {
		return "", p.Errors[0]
	}

	global := symtab.NewGlobal()
	if _, typeErr := ast.TypeCheck(program, global); typeErr != nil {
		return "", typeErr
	}

	ctx := compctx.New()
	gen := tac.NewGenerator(ctx)
	ast.GenerateCode(program, gen, global)

	instructions := preprocess.Run(gen.Code)

	arena := block.NewArena(ctx)
	blockResult := blocker.Block(arena, instructions)
	if blockResult.Entry == nil {
		return codegen.New().Generate(nil), nil
	}

	cfgs := cfgraph.BuildAll(arena, blockResult.Entry, arena.All())
	for _, cfg := range cfgs {
		dom := cfgraph.ComputeDominators(cfg)
		reachSets := reach.Analyze(ctx, cfg)
		loops := loop.FindAll(cfg, dom, reachSets)
		for _, l := range loops {
			if !vectorizeLoops {
				continue
			}
			v := vectorize.New(l, gen, arena)
			if !v.CanVectorize() {
				fmt.Fprintln(warningWriter(), warning("loop in %s is not vectorizable, falling back to scalar form", cfg.Name))
				continue
			}
			if _, _, ok := v.Vectorize(); !ok {
				fmt.Fprintln(warningWriter(), warning("vectorization of loop in %s failed, falling back to scalar form", cfg.Name))
			}
		}
	}

	g := codegen.New()
	asm = g.Generate(arena.All())

	if vectorizeLoops {
		dumpDiagnostics(arena)
	}
	return asm, nil
}

// dumpDiagnostics prints a human-readable summary of the compiled program's
// block/instruction footprint to stderr when -v is given, the same role a
// build tool's verbose flag plays in reporting artifact size.
func dumpDiagnostics(arena *block.Arena) {
	blocks := arena.All()
	var totalInstructions int
	for _, b := range blocks {
		totalInstructions += len(b.Instructions)
	}
	fmt.Fprintf(os.Stderr, "pl0c: %s across %s\n",
		humanize.Comma(int64(totalInstructions))+" TAC instructions",
		humanize.Comma(int64(len(blocks)))+" basic blocks")
}

func warning(format string, args ...interface{}) string {
	d := diag.Warnf(format, args...)
	return d.Error()
}

func warningWriter() *os.File { return os.Stderr }

func fatal(file, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31mpl0c: %s: %s\x1b[0m\n", file, msg)
		return
	}
	fmt.Fprintf(os.Stderr, "pl0c: %s: %s\n", file, msg)
}
