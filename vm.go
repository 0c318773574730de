package glow

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jcorbin/glow/internal/flushio"
)

const (
	maxFrames        = 512
	defaultStackSize = 1024
	maxTryHandlers   = 16
)

// handler is one compiled try/catch/finally entry for a frame, mirroring
// the OP_TRY 6-byte payload. classVal is resolved once, when OP_TRY
// executes (by which point any exception class declared earlier in the
// same scope already exists), rather than re-looked-up on every raise.
type handler struct {
	classVal    Value
	catchAddr   int
	finallyAddr int
	hasCatch    bool
	hasFinally  bool
	stackTop    int // len(vm.stack) when OP_TRY ran, restored before jumping to catch/finally
}

// callFrame records one in-flight call: its closure, instruction pointer,
// the value-stack index of its slot 0 (receiver/caller scratch), and its
// active exception handlers (§4.7, capped at 16 per §4.2).
type callFrame struct {
	closure  *Object // *ObjClosure
	ip       int
	base     int
	handlers [maxTryHandlers]handler
	nhandler int
}

func (f *callFrame) chunk() *Chunk { return &f.closure.asClosure().Function.asFunction().Chunk }

// VM interprets compiled bytecode: a fixed-depth call-frame stack, a value
// stack, an open-upvalue list, exception-handler frames (carried per-frame
// above), and the module registry.
type VM struct {
	frames     []callFrame
	frameCap   int
	frameCount int

	stack    []Value
	stackCap int

	openUpvalues *Object // *ObjUpvalue, head of list sorted by descending stack address

	globals    Table
	modules    Table // string name -> Value(*ObjModule)
	internPool Table
	methods    [6]Table // string, list, dict, bytes, range, file — see methodTableIndex

	exceptionClass *Object // bootstrapped Exception class

	curModule *Object // *ObjModule currently executing

	heap *heap

	out      flushio.WriteFlusher
	errOut   flushio.WriteFlusher
	resolver ImportResolver
	natives  map[string]*NativeModule

	logf func(mark, mess string, args ...interface{})

	inflight *Object // *ObjInstance currently propagating, or nil
	resuming bool    // finally must resume propagation when true

	protectBase int // value-stack height below which GC-protect pushes live

	runCtx context.Context // the context driving the current run(), for reentrant native callbacks
}

type methodTableIndex int

const (
	methodsString methodTableIndex = iota
	methodsList
	methodsDict
	methodsBytes
	methodsRange
	methodsFile
)

func newVM() *VM {
	vm := &VM{heap: newHeap()}
	vm.frames = make([]callFrame, maxFrames)
	vm.frameCap = maxFrames
	vm.stack = make([]Value, 0, defaultStackSize)
	vm.stackCap = defaultStackSize
	vm.natives = make(map[string]*NativeModule)
	vm.bootstrapException()
	vm.bootstrapStdFiles()
	vm.installBuiltinMethods()
	return vm
}

// installBuiltinMethods populates the six primitive method tables (§4.8)
// before any user code runs.
func (vm *VM) installBuiltinMethods() {
	installStringMethods(vm)
	installListMethods(vm)
	installDictMethods(vm)
	installBytesMethods(vm)
	installRangeMethods(vm)
	installFileMethods(vm)
}

func (vm *VM) logTrace(mark, mess string, args ...interface{}) {
	if vm.logf != nil {
		vm.logf(mark, mess, args...)
	}
}

// --- value stack ---

func (vm *VM) push(v Value) {
	if len(vm.stack) >= vm.stackCap {
		vm.runtimeErrorf("stack overflow")
		return
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	i := len(vm.stack) - 1
	v := vm.stack[i]
	vm.stack = vm.stack[:i]
	return v
}

func (vm *VM) peek(dist int) Value {
	return vm.stack[len(vm.stack)-1-dist]
}

func (vm *VM) popN(n int) {
	vm.stack = vm.stack[:len(vm.stack)-n]
}

// protect pushes v onto the value stack so a GC cycle triggered by a
// subsequent allocation cannot collect it before it is rooted elsewhere —
// the GC-protect idiom of §9/GLOSSARY. unprotect pops it back off.
func (vm *VM) protect(v Value) int {
	vm.stack = append(vm.stack, v)
	return len(vm.stack) - 1
}

func (vm *VM) unprotect(mark int) {
	vm.stack = vm.stack[:mark]
}

// --- allocation ---

func (vm *VM) newObject(t ObjType, payload interface{}) *Object {
	o := &Object{Type: t, payload: payload}
	vm.heap.alloc(o)
	return o
}

// maybeCollect runs a GC cycle if the heap's bytes-allocated threshold has
// been exceeded. Called after allocations that are safe collection points
// (i.e. the just-allocated value is already rooted, typically because the
// caller pushed it via protect).
func (vm *VM) maybeCollect() {
	if !vm.heap.shouldCollect() {
		return
	}
	stats := vm.heap.collect(vm.markRoots, &vm.internPool, &vm.modules)
	vm.logTrace("gc", "collected: freed=%d survived=%d bytes=%d->%d",
		stats.Freed, stats.Survived, stats.BytesBefore, stats.BytesAfter)
}

// markRoots pushes every GC root onto the worklist (§4.6): the value
// stack, every closure (and handler class refs) in every live frame, every
// open upvalue, the four global tables, the exception base class.
func (vm *VM) markRoots(mark func(*Object)) {
	for _, v := range vm.stack {
		if v.typ == ValueObject {
			mark(v.obj)
		}
	}
	for i := 0; i < vm.frameCount; i++ {
		f := &vm.frames[i]
		if f.closure != nil {
			mark(f.closure)
		}
		for j := 0; j < f.nhandler; j++ {
			vm.heap.markValue(f.handlers[j].classVal)
		}
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.asUpvalue().Next {
		mark(uv)
	}
	vm.globals.Each(func(_, v Value) { vm.heap.markValue(v) })
	vm.modules.Each(func(_, v Value) { vm.heap.markValue(v) })
	vm.internPool.Each(func(k, _ Value) { vm.heap.markValue(k) })
	for i := range vm.methods {
		vm.methods[i].Each(func(_, v Value) { vm.heap.markValue(v) })
	}
	if vm.exceptionClass != nil {
		mark(vm.exceptionClass)
	}
	if vm.inflight != nil {
		mark(vm.inflight)
	}
}

// --- string interning ---

// internString returns the unique interned *ObjString-backed Object for
// data, allocating a new one only if an equal string isn't already live
// (§3 invariant a, §4.5's "find interned string").
func (vm *VM) internString(data []byte) *Object {
	h := hashBits(fnvString(string(data)))
	if o := vm.internPool.FindInternedString(data, h); o != nil {
		return o
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s := &ObjString{Bytes: buf, Hash: h, CodepointsN: utf8.RuneCount(buf)}
	o := vm.newObject(ObjTypeString, s)
	mark := vm.protect(Obj(o))
	vm.internPool.Set(Obj(o), True)
	vm.unprotect(mark)
	return o
}

func (vm *VM) internGoString(s string) *Object { return vm.internString([]byte(s)) }

func (vm *VM) newStringValue(s string) Value { return Obj(vm.internGoString(s)) }

// --- errors ---

// RuntimeError is the Go-level error surfaced by Interpret when an
// Exception propagates past the outermost frame unhandled (§7 kind 2).
type RuntimeError struct {
	Message    string
	StackTrace string
}

func (e *RuntimeError) Error() string { return e.Message }

// CompileError is the Go-level error surfaced by Interpret when source
// fails to lex or compile (§7 kind 1): one entry per diagnostic, in the
// order they were encountered.
type CompileError struct {
	Path   string
	Errors []CompileDiagnostic
}

// CompileDiagnostic is a single lex/parse-time error.
type CompileDiagnostic struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Errors[0].Line, e.Errors[0].Message)
	}
	return fmt.Sprintf("%s: %d compile errors", e.Path, len(e.Errors))
}

// HaltError wraps a host-fatal condition (§7 kind 3), currently only
// allocation/heap exhaustion.
type HaltError struct{ error }

func (e HaltError) Error() string {
	if e.error != nil {
		return fmt.Sprintf("halted: %v", e.error)
	}
	return "halted"
}
func (e HaltError) Unwrap() error { return e.error }

// errOutOfMemory is the out-of-memory error value for wrapping in a
// HaltError. No code path currently produces it: the VM has no configurable
// heap ceiling.
var errOutOfMemory = fmt.Errorf("out of memory")

func (vm *VM) runtimeErrorf(format string, args ...interface{}) {
	vm.raise(vm.newException(vm.exceptionClass, fmt.Sprintf(format, args...)))
}

// ctxCheckInterval bounds how often the dispatch loop checks ctx.Err(),
// avoiding a per-instruction context call on the hot path while still
// honoring cooperative cancellation (§5).
const ctxCheckInterval = 1 << 14

func (vm *VM) checkContext(ctx context.Context, n int) error {
	if n%ctxCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}
