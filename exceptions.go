package glow

import (
	"fmt"
	"strings"
)

// bootstrapException programmatically builds the built-in Exception class
// (§4.7): a synthesized one-argument initializer storing its message
// parameter into the instance, and pre-declared message/stacktrace
// properties.
func (vm *VM) bootstrapException() {
	class := &ObjClass{Name: "Exception"}
	obj := vm.newObject(ObjTypeClass, class)
	class.Properties.Set(vm.newStringValue("message"), Nil)
	class.Properties.Set(vm.newStringValue("stacktrace"), Nil)

	init := vm.newObject(ObjTypeNative, &ObjNative{
		Name: "Exception",
		Type: NativeFunctionMethod,
		Fn: func(vm *VM, self Value, args []Value) (Value, bool) {
			inst := self.obj.asInstance()
			if len(args) > 0 {
				inst.Properties.Set(vm.newStringValue("message"), args[0])
			} else {
				inst.Properties.Set(vm.newStringValue("message"), vm.newStringValue(""))
			}
			return self, true
		},
	})
	class.Initializer = Obj(init)
	class.Methods.Set(vm.newStringValue("Exception"), Obj(init))

	vm.exceptionClass = obj
	vm.globals.Set(vm.newStringValue("Exception"), Obj(obj))
}

// newException constructs an instance of class (or a subclass) with the
// given message, seeding properties from the class defaults (§3 invariant
// f) and setting `message` directly without going through the initializer
// call machinery (used for VM-raised runtime errors).
func (vm *VM) newException(class *Object, message string) *Object {
	inst := &ObjInstance{Class: class}
	seedInstanceProperties(vm, inst, class)
	o := vm.newObject(ObjTypeInstance, inst)
	mark := vm.protect(Obj(o))
	inst.Properties.Set(vm.newStringValue("message"), vm.newStringValue(message))
	vm.unprotect(mark)
	return o
}

func seedInstanceProperties(vm *VM, inst *ObjInstance, class *Object) {
	c := class.asClass()
	c.Properties.Each(func(k, v Value) { inst.Properties.Set(k, v) })
}

// isInstanceOf reports whether inst's class is classObj or a descendant of
// it, walking the superclass chain.
func isInstanceOf(inst *Object, classObj *Object) bool {
	c := inst.asInstance().Class
	for c != nil {
		if c == classObj {
			return true
		}
		c = c.asClass().Super
	}
	return false
}

// raise begins exception propagation for exc, an *ObjInstance of Exception
// (or a subclass). It captures a stack-trace string into the instance's
// `stacktrace` property, then unwinds frames per §4.7: for each frame, scan
// handlers outermost-first (latest registered first); a matching handler
// resumes at its catch address, a finally-only handler transfers there with
// resuming=true, otherwise the frame is popped. Exhausting all frames marks
// the VM halted with a RuntimeError.
func (vm *VM) raise(excObj *Object) {
	inst := excObj.asInstance()
	inst.Properties.Set(vm.newStringValue("stacktrace"), vm.newStringValue(vm.captureStackTrace()))
	vm.inflight = excObj
	vm.resuming = false
	panic(vmException{excObj})
}

// vmException is the Go-level panic value used to unwind the dispatch loop
// up to the nearest handler or to Interpret's top-level recover.
type vmException struct{ obj *Object }

func (vmException) Error() string { return "exception" }

// captureStackTrace formats `    <file>:<line> -> <fnname>()` per frame,
// outermost last, matching §8's testable property on Exception.stacktrace.
func (vm *VM) captureStackTrace() string {
	var sb strings.Builder
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.closure.asClosure().Function.asFunction()
		line := f.chunk().LineAt(f.ip - 1)
		path := "<script>"
		if fn.Module != nil {
			path = fn.Module.asModule().Path
		}
		name := fn.Name
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&sb, "    %s:%d -> %s()\n", path, line, name)
	}
	return sb.String()
}

// dispatchException is called by the interpreter loop's recover to find
// the nearest handler for vm.inflight, starting from the top of the frame
// stack. It returns true if a handler was found and execution should
// resume inside run(); false if the exception reached the bottom of the
// stack unhandled.
func (vm *VM) dispatchException() bool {
	excObj := vm.inflight
	for vm.frameCount > 0 {
		f := &vm.frames[vm.frameCount-1]
		for hi := f.nhandler - 1; hi >= 0; hi-- {
			h := f.handlers[hi]
			matches := true
			if h.hasCatch {
				matches = h.classVal.Is(ObjTypeClass) && isInstanceOf(excObj, h.classVal.obj)
			} else {
				matches = false
			}

			if matches {
				f.nhandler = hi
				vm.stack = vm.stack[:h.stackTop]
				vm.push(Obj(excObj))
				f.ip = h.catchAddr
				vm.inflight = nil
				return true
			}
			if h.hasFinally && !h.hasCatch {
				f.nhandler = hi
				vm.resuming = true
				vm.stack = vm.stack[:h.stackTop]
				f.ip = h.finallyAddr
				return true
			}
		}
		vm.closeUpvalues(f.base)
		vm.stack = vm.stack[:f.base]
		vm.frameCount--
	}
	return false
}

// unhandledException formats exc the way an unhandled exception is printed
// to standard error before execution aborts (§4.7, §7 kind 2).
func (vm *VM) unhandledException(excObj *Object) *RuntimeError {
	inst := excObj.asInstance()
	msg, _ := inst.Properties.Get(vm.newStringValue("message"))
	trace, _ := inst.Properties.Get(vm.newStringValue("stacktrace"))
	msgStr := ""
	if msg.Is(ObjTypeString) {
		msgStr = string(msg.obj.asString().Bytes)
	}
	traceStr := ""
	if trace.Is(ObjTypeString) {
		traceStr = string(trace.obj.asString().Bytes)
	}
	fmt.Fprintf(vm.errOut, "Unhandled exception: %s\n%s", msgStr, traceStr)
	_ = vm.errOut.Flush()
	return &RuntimeError{Message: msgStr, StackTrace: traceStr}
}
