package fiber

import (
	"rak/internal/compiler"
	"rak/internal/rakerr"
	"rak/internal/value"
)

// VM owns the native-function registry shared by every fiber it spawns.
// Resolving a bare identifier at compile time and indexing into a fiber's
// globals array at run time both read from this same registry, so a
// program compiled against one VM only ever sees that VM's natives (spec
// §6: register_native / resolve_global).
type VM struct {
	names   map[string]int
	pending []value.Value
	globals value.Value // lazily built Array wrapping pending, shared by every fiber
}

// NewVM creates a VM with the single builtin every embedding exposes:
// println (spec §6).
func NewVM() *VM {
	vm := &VM{names: make(map[string]int)}
	vm.RegisterNative("println", -1, nativePrintln)
	return vm
}

// Free releases the VM's shared globals array and the registry's own
// reference to every registered native closure, matching the embedding
// API's vm_free. The VM has no natives registered afterwards.
func (vm *VM) Free() {
	if vm.globals.IsArray() {
		value.Release(vm.globals)
		vm.globals = value.Value{}
	}
	value.ReleaseAll(vm.pending)
	vm.pending = nil
	vm.names = make(map[string]int)
}

// RegisterNative installs fn under name with the given arity (-1 means
// variadic) and returns its global index, matching spec §6's
// register_native. Re-registering a name overwrites its slot in place so
// that recompiling a REPL line sees the latest definition.
func (vm *VM) RegisterNative(name string, arity int, fn value.NativeFunc) int {
	clo := value.NewNativeClosure(&value.NativeDescriptor{Name: name, Arity: arity, Fn: fn})
	value.Retain(clo)
	if idx, ok := vm.names[name]; ok {
		old := vm.pending[idx]
		vm.pending[idx] = clo
		value.Release(old)
		vm.invalidateGlobals()
		return idx
	}
	idx := len(vm.pending)
	vm.pending = append(vm.pending, clo)
	vm.names[name] = idx
	vm.invalidateGlobals()
	return idx
}

func (vm *VM) invalidateGlobals() {
	if vm.globals.IsArray() {
		value.Release(vm.globals)
		vm.globals = value.Value{}
	}
}

// ResolveGlobal matches spec §6's resolve_global: a registered name's
// index, or -1.
func (vm *VM) ResolveGlobal(name string) int {
	if idx, ok := vm.names[name]; ok {
		return idx
	}
	return -1
}

// Resolver exposes the registry as a compiler.GlobalResolver, so a
// compile can resolve any name a prior RegisterNative call installed.
func (vm *VM) Resolver() compiler.GlobalResolver {
	return compiler.MapResolver(vm.names)
}

// Globals returns the shared Array every fiber spawned from this VM sees
// through PUSH_GLOBALS, building it lazily (and rebuilding it after a
// RegisterNative call invalidates the cached copy).
func (vm *VM) Globals() value.Value {
	if !vm.globals.IsArray() {
		elems := make([]value.Value, len(vm.pending))
		copy(elems, vm.pending)
		value.RetainAll(elems)
		vm.globals = value.NewArray(elems)
		value.Retain(vm.globals)
	}
	return vm.globals
}

// Compile compiles source against this VM's native registry.
func Compile(vm *VM, fileName, source string) (value.Value, *rakerr.Error) {
	return compiler.Compile(fileName, source, vm.Resolver())
}

// nativePrintln is the sole built-in the embedding API specifies: print
// every argument separated by a space, then a newline.
func nativePrintln(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	for i := 0; i < ctx.NumArgs(); i++ {
		if i > 0 {
			printString(" ")
		}
		printString(value.Print(ctx.Arg(i)))
	}
	printString("\n")
	return value.Nil(), nil
}

var printString = Stdout
