// Package repl is the interactive read-eval-print loop, grounded on the
// teacher's internal/repl.Start: each line is compiled and run against a
// VM whose native registry and globals persist across lines.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"rak/internal/fiber"
	"rak/internal/natives"
)

const defaultVstkSize = 1024
const defaultCstkSize = 128

// Start runs the loop against in/out, reading one line at a time until
// EOF or an "exit" line. vstkSize/cstkSize size each line's fiber; 0
// falls back to the package defaults, so existing callers that don't
// care about sizing can pass zero values.
func Start(in io.Reader, out io.Writer, vstkSize, cstkSize int) {
	if vstkSize <= 0 {
		vstkSize = defaultVstkSize
	}
	if cstkSize <= 0 {
		cstkSize = defaultCstkSize
	}

	vm := fiber.NewVM()
	natives.RegisterAll(vm)

	prompt := "> "
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		prompt = "rak> "
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}
		runLine(vm, out, line, vstkSize, cstkSize)
	}
}

func runLine(vm *fiber.VM, out io.Writer, line string, vstkSize, cstkSize int) {
	closure, err := fiber.Compile(vm, "<repl>", line)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	f, err := fiber.NewFiber(vm.Globals(), vstkSize, cstkSize, closure, nil)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	defer f.Destroy()
	if err := f.Run(); err != nil {
		fmt.Fprintln(out, err)
	}
}
