package fiber

import (
	"bufio"
	"os"
)

var stdout = bufio.NewWriter(os.Stdout)

// Stdout writes s to the process's standard output, used by ECHO and the
// println builtin. Buffered and flushed eagerly (rather than batched)
// since a suspended fiber may never run again to flush on its behalf.
func Stdout(s string) {
	stdout.WriteString(s)
	stdout.Flush()
}
