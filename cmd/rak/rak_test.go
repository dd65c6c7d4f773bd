package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets the test binary itself act as the "rak" command: a
// script line like `exec rak run foo.rak` re-invokes this binary with
// TESTSCRIPT_COMMAND set, which RunMain intercepts and routes to
// rakMain instead of running the test suite.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"rak": rakMain,
	}))
}

func rakMain() int {
	return run(os.Args[1:])
}

// TestScripts runs the golden, black-box CLI suite under
// testdata/script/*.txtar against the properties spec.md §8 describes
// in terms of observable stdout/stderr rather than internal state.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
