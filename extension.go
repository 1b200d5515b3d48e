// extension.go - the extension opcode registry.
//
// Grounded on spec.md §4.7 (native and macro extension ops sharing one
// opcode-ID space past the built-in catalog) and other_examples' plugin
// registry pattern of opaque uuid handles guarding a name->implementation
// map; google/uuid (already an indirect dependency of the pack via the
// charmbracelet ecosystem) backs the handles returned on registration so
// callers can unregister precisely without racing on reused names.

package lyd

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NativeProcessFunc implements a native extension op: given n samples of
// each argument (already resolved to literal-or-reference buffers by the
// VM) it returns n output samples. Called once per chunk, never per
// sample, so an extension may vectorize internally.
type NativeProcessFunc func(args [][]float64, n int) []float64

type nativeExt struct {
	handle  uuid.UUID
	name    string
	arity   arity
	process NativeProcessFunc
}

type macroExt struct {
	handle uuid.UUID
	name   string
	arity  arity
	prog   *Program
}

// ExtensionRegistry assigns opcode IDs past the built-in catalog to
// host-registered native functions and source-defined macros, and
// implements the opResolver hook compileProgram consults for any call
// name the built-in catalog doesn't recognize.
type ExtensionRegistry struct {
	mu      sync.Mutex
	next    Opcode
	byName  map[string]Opcode
	native  map[Opcode]*nativeExt
	macro   map[Opcode]*macroExt
	waves   *WaveTable
	logger  Logger
}

func newExtensionRegistry(waves *WaveTable, logger Logger) *ExtensionRegistry {
	return &ExtensionRegistry{
		next:   opBuiltinCount,
		byName: map[string]Opcode{},
		native: map[Opcode]*nativeExt{},
		macro:  map[Opcode]*macroExt{},
		waves:  waves,
		logger: logger,
	}
}

// RegisterNative installs a host-implemented opcode callable by name from
// compiled source, returning a handle for later Unregister.
func (r *ExtensionRegistry) RegisterNative(name string, ar arity, fn NativeProcessFunc) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return uuid.UUID{}, fmt.Errorf("lyd: extension op %q already registered", name)
	}
	op := r.next
	r.next++
	h := uuid.New()
	r.byName[name] = op
	r.native[op] = &nativeExt{handle: h, name: name, arity: ar, process: fn}
	if r.logger != nil {
		r.logger.Debugf("registered native op %q as opcode %d", name, op)
	}
	return h, nil
}

// RegisterMacro compiles source as a Program and installs it as a named
// opcode: calling the macro from other source runs the Program in filter
// mode, with the macro's call arguments bound to input(0), input(1), ...
// in order. Macros may reference earlier macros and native ops, but not
// themselves (no recursion - compileProgram would need the opcode before
// it exists).
func (r *ExtensionRegistry) RegisterMacro(name string, source string, ar arity) (uuid.UUID, error) {
	prog, err := compileProgram(source, r.resolve)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("lyd: compiling macro %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return uuid.UUID{}, fmt.Errorf("lyd: extension op %q already registered", name)
	}
	op := r.next
	r.next++
	h := uuid.New()
	r.byName[name] = op
	r.macro[op] = &macroExt{handle: h, name: name, arity: ar, prog: prog}
	if r.logger != nil {
		r.logger.Debugf("registered macro op %q as opcode %d", name, op)
	}
	return h, nil
}

// Unregister removes an extension op by its registration handle. Programs
// already compiled against it keep working; only future compiles lose
// access to the name.
func (r *ExtensionRegistry) Unregister(handle uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for op, ne := range r.native {
		if ne.handle == handle {
			if r.byName[ne.name] == op {
				delete(r.byName, ne.name)
			}
			return
		}
	}
	for op, me := range r.macro {
		if me.handle == handle {
			if r.byName[me.name] == op {
				delete(r.byName, me.name)
			}
			return
		}
	}
}

// resolve implements opResolver for Engine.Compile.
func (r *ExtensionRegistry) resolve(name string) (Opcode, arity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.byName[name]
	if !ok {
		return 0, arity{}, false
	}
	if ne, ok := r.native[op]; ok {
		return op, ne.arity, true
	}
	if me, ok := r.macro[op]; ok {
		return op, me.arity, true
	}
	return 0, arity{}, false
}

// runMacro executes a macro opcode's Program in filter mode against its
// call arguments, each evaluated over the current chunk. Invoked from
// vm.go's dispatch for any opcode this registry owns.
func (r *ExtensionRegistry) runMacro(op Opcode, argBufs [][]float64, n int) []float64 {
	r.mu.Lock()
	me, ok := r.macro[op]
	r.mu.Unlock()
	if !ok {
		return make([]float64, n)
	}
	f := NewFilter(me.prog, r.waves, 1).withExtensions(r)
	defer f.tape.release()
	return f.Process(argBufs)
}

// runNative executes a native opcode's callback against its call
// arguments, each evaluated over the current chunk.
func (r *ExtensionRegistry) runNative(op Opcode, argBufs [][]float64, n int) []float64 {
	r.mu.Lock()
	ne, ok := r.native[op]
	r.mu.Unlock()
	if !ok {
		return make([]float64, n)
	}
	return ne.process(argBufs, n)
}

// isNative lets vm.go's dispatch pick between runNative and runMacro.
func (r *ExtensionRegistry) isNative(op Opcode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.native[op]
	return ok
}
