// Command rak is the reference CLI for the language: run a script, start
// a REPL, or batch-run several scripts concurrently (one independent VM
// per file).
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"rak/internal/fiber"
	"rak/internal/natives"
	"rak/internal/repl"
)

const (
	defaultVstkSize = 1024
	defaultCstkSize = 128
)

// stackFlags parses -vstk/-cstk the way db47h-ngaro's cmd/retro sizes its
// VM image via flag.Int: a FlagSet scoped to the args following the
// subcommand token, so `rak run -vstk 4096 file.rak` and `rak -vstk 4096
// file.rak` both work. fs.Args() returns whatever flag didn't consume
// (the file path(s)).
func stackFlags(name string, args []string) (vstk, cstk int, rest []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	v := fs.Int("vstk", defaultVstkSize, "value stack size, in slots")
	c := fs.Int("cstk", defaultCstkSize, "call stack size, in frames")
	fs.Parse(args)
	return *v, *c, fs.Args()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run holds main's dispatch logic as a plain function returning an exit
// code instead of calling os.Exit itself, so the testscript-driven golden
// suite (see rak_test.go) can invoke it in-process under a re-exec'd
// "rak" command name.
func run(args []string) int {
	if len(args) < 1 {
		runREPL(defaultVstkSize, defaultCstkSize)
		return 0
	}

	switch args[0] {
	case "repl":
		vstk, cstk, _ := stackFlags("repl", args[1:])
		runREPL(vstk, cstk)
	case "run":
		vstk, cstk, rest := stackFlags("run", args[1:])
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: rak run [-vstk N] [-cstk N] <file>")
			return 2
		}
		if err := runFile(rest[0], vstk, cstk); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	case "batch":
		vstk, cstk, rest := stackFlags("batch", args[1:])
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: rak batch [-vstk N] [-cstk N] <file> [file...]")
			return 2
		}
		if err := runBatch(rest, vstk, cstk); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	default:
		vstk, cstk, rest := stackFlags("rak", args)
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: rak [-vstk N] [-cstk N] <file>")
			return 2
		}
		if err := runFile(rest[0], vstk, cstk); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}

func runREPL(vstkSize, cstkSize int) {
	repl.Start(os.Stdin, os.Stdout, vstkSize, cstkSize)
}

func runFile(path string, vstkSize, cstkSize int) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	vm := fiber.NewVM()
	natives.RegisterAll(vm)

	closure, cerr := fiber.Compile(vm, path, string(source))
	if cerr != nil {
		return cerr
	}
	f, ferr := fiber.NewFiber(vm.Globals(), vstkSize, cstkSize, closure, nil)
	if ferr != nil {
		return ferr
	}
	defer f.Destroy()
	if rerr := f.Run(); rerr != nil {
		return rerr
	}
	return nil
}

// runBatch runs every file in paths concurrently, each against its own
// VM (legal under the "at most one fiber executes at a time per VM"
// rule: several independent VMs is an embedding-host decision, not
// multi-threaded execution of a single VM).
func runBatch(paths []string, vstkSize, cstkSize int) error {
	var g errgroup.Group
	for _, p := range paths {
		path := p
		g.Go(func() error {
			if err := runFile(path, vstkSize, cstkSize); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}
