// Package natives registers the builtin function modules exposed through
// the embedding API's register_native contract (spec §6): database
// access, websockets, formatting helpers and hashing, plus the handle
// registries a couple of them need to pass a Go resource across the
// native boundary as a plain Rak Number.
package natives

import (
	"sync"

	"rak/internal/fiber"
	"rak/internal/rakerr"
	"rak/internal/value"
)

// RegisterAll installs every native module this package provides onto vm.
func RegisterAll(vm *fiber.VM) {
	registerDB(vm)
	registerNet(vm)
	registerFormat(vm)
	registerHash(vm)
}

// handleTable hands out small integer handles for long-lived native
// resources (a *sql.DB, a *websocket.Conn) so a native call's return
// value can be an ordinary Rak Number that later calls pass back in,
// the same connection-registry shape the teacher's database/network
// modules use with string IDs instead of integers.
type handleTable[T any] struct {
	mu   sync.Mutex
	next int
	rows map[int]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{rows: make(map[int]T)}
}

func (t *handleTable[T]) put(v T) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.rows[h] = v
	return h
}

func (t *handleTable[T]) get(h int) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.rows[h]
	return v, ok
}

func (t *handleTable[T]) remove(h int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, h)
}

func argString(ctx value.NativeContext, i int) (string, *rakerr.Error) {
	a := ctx.Arg(i)
	if !a.IsString() {
		return "", rakerr.New(rakerr.TypeError, "argument %d must be a string, got %s", i, value.TypeName(a))
	}
	return value.AsString(a).String(), nil
}

func argNumber(ctx value.NativeContext, i int) (float64, *rakerr.Error) {
	a := ctx.Arg(i)
	if !a.IsNumber() {
		return 0, rakerr.New(rakerr.TypeError, "argument %d must be a number, got %s", i, value.TypeName(a))
	}
	return a.AsNumber(), nil
}
