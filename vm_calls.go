package glow

// callValue implements the general call convention of §4.7: closures push
// a new frame; classes construct an instance and invoke its initializer if
// present (enforcing a no-argument call otherwise); bound methods replace
// the receiver slot and recurse on the underlying method; natives are
// invoked directly with (argc, args).
func (vm *VM) callValue(callee Value, argc int) bool {
	if !callee.IsObject() {
		vm.runtimeErrorf("not callable")
		return false
	}
	switch callee.obj.Type {
	case ObjTypeClosure:
		return vm.call(callee.obj, argc)
	case ObjTypeClass:
		return vm.instantiate(callee.obj, argc)
	case ObjTypeBoundMethod:
		bm := callee.obj.asBoundMethod()
		// replace the receiver slot (the callee itself) with the receiver
		vm.stack[len(vm.stack)-argc-1] = bm.Receiver
		return vm.callValue(bm.Method, argc)
	case ObjTypeNative:
		return vm.callNative(callee.obj.asNative(), Nil, argc)
	default:
		vm.runtimeErrorf("not callable")
		return false
	}
}

// call reserves a new call frame for closure, padding under-supplied
// arguments to a fixed-arity function with Nil and collecting the tail of a
// variadic call into a List (§3 invariant g, §4.7 "Calls").
func (vm *VM) call(closureObj *Object, argc int) bool {
	if vm.frameCount >= vm.frameCap {
		vm.runtimeErrorf("stack overflow: too many nested calls")
		return false
	}
	cl := closureObj.asClosure()
	fn := cl.Function.asFunction()

	if fn.IsVariadic {
		if argc < fn.Arity {
			vm.runtimeErrorf("expected at least %d arguments but got %d", fn.Arity, argc)
			return false
		}
		tailN := argc - fn.Arity
		items := make([]Value, tailN)
		copy(items, vm.stack[len(vm.stack)-tailN:])
		vm.popN(tailN)
		listObj := vm.newObject(ObjTypeList, &ObjList{Items: items})
		vm.push(Obj(listObj))
		argc = fn.Arity + 1
	} else if argc != fn.Arity {
		if argc > fn.Arity {
			vm.runtimeErrorf("expected %d arguments but got %d", fn.Arity, argc)
			return false
		}
		for argc < fn.Arity {
			vm.push(Nil)
			argc++
		}
	}

	base := len(vm.stack) - argc - 1
	f := &vm.frames[vm.frameCount]
	f.closure = closureObj
	f.ip = 0
	f.base = base
	f.nhandler = 0
	vm.frameCount++
	return true
}

// instantiate constructs an Instance of classObj and, if the class (or an
// ancestor) has an initializer, invokes it with the call's arguments;
// otherwise a no-argument call is enforced.
func (vm *VM) instantiate(classObj *Object, argc int) bool {
	class := classObj.asClass()
	inst := &ObjInstance{Class: classObj}
	seedInstanceProperties(vm, inst, classObj)
	instObj := vm.newObject(ObjTypeInstance, inst)
	instVal := Obj(instObj)

	// overwrite the class value (callee slot) with the instance so that
	// once the initializer (if any) returns, plain `ClassName(...)`
	// expression semantics leave the instance on the stack.
	vm.stack[len(vm.stack)-argc-1] = instVal

	init := class.Initializer
	for c := class.Super; !init.IsObject() && c != nil; c = c.asClass().Super {
		init = c.asClass().Initializer
	}
	if init.IsObject() {
		if nat, isNative := init.payload0(); isNative {
			return vm.callNative(nat, instVal, argc)
		}
		return vm.callValue(init, argc)
	}
	if argc != 0 {
		vm.runtimeErrorf("%s() takes no arguments", class.Name)
		return false
	}
	return true
}

// callNative invokes a native function with (argc, args) and expects a
// boolean indicating success; on return the native's result occupies the
// receiver slot and the argcount stack slots are popped. GC-protect count
// (here: nothing extra to reset, since natives allocate through vm.newObject
// directly) is reset on native call return.
func (vm *VM) callNative(n *ObjNative, self Value, argc int) bool {
	args := make([]Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	result, ok := n.Fn(vm, self, args)
	vm.popN(argc + 1)
	if !ok {
		return false
	}
	vm.push(result)
	return true
}

// invoke implements `recv.name(args...)` as a single opcode: look up the
// property, and if it resolves to a method on the receiver's type, call it
// directly without materializing an intermediate BoundMethod.
func (vm *VM) invoke(name *Object, argc int) bool {
	return vm.invokeWithPrivacy(name, argc, false)
}

// invokeSelf implements `self.name(args...)`, which may call a private
// (`_`-prefixed) method.
func (vm *VM) invokeSelf(name *Object, argc int) bool {
	return vm.invokeWithPrivacy(name, argc, true)
}

func (vm *VM) invokeWithPrivacy(name *Object, argc int, allowPrivate bool) bool {
	receiver := vm.peek(argc)
	method, ok := vm.resolveCallableProperty(receiver, name, allowPrivate)
	if !ok {
		return false
	}
	if m, isNative := method.payload0(); isNative {
		return vm.callNative(m, receiver, argc)
	}
	vm.stack[len(vm.stack)-argc-1] = receiver
	return vm.call(method.obj, argc)
}

// superInvoke implements `parent.name(args...)`: the search for name begins
// at the superclass of the class that defines the currently executing
// method (or self's own class for top-level/free-function calls), skipping
// any override on self's most-derived class.
func (vm *VM) superInvoke(name *Object, argc int) bool {
	receiver := vm.peek(argc)
	start := vm.superSearchStart()
	return vm.superInvokeFrom(start, name, receiver, argc)
}

// superInvokeSelf implements the `parent()` shorthand: same search as
// superInvoke, but the method name is the enclosing method's own name.
func (vm *VM) superInvokeSelf(argc int) bool {
	receiver := vm.peek(argc)
	fn := vm.currentFrame().closure.asClosure().Function.asFunction()
	start := vm.superSearchStart()
	return vm.superInvokeFrom(start, vm.internGoString(fn.Name), receiver, argc)
}

// superSearchStart returns the class one level above the class that defines
// the currently executing method, or nil if the current frame isn't a
// method (a free function or the top-level module body).
func (vm *VM) superSearchStart() *Object {
	fn := vm.currentFrame().closure.asClosure().Function.asFunction()
	if fn.Owner == nil {
		return nil
	}
	return fn.Owner.asClass().Super
}

func (vm *VM) superInvokeFrom(start *Object, name *Object, receiver Value, argc int) bool {
	if start == nil {
		vm.runtimeErrorf("no superclass method '%s'", string(name.asString().Bytes))
		return false
	}
	method, ok := findMethodFrom(start, string(name.asString().Bytes))
	if !ok {
		vm.runtimeErrorf("no superclass method '%s'", string(name.asString().Bytes))
		return false
	}
	if m, isNative := method.payload0(); isNative {
		return vm.callNative(m, receiver, argc)
	}
	vm.stack[len(vm.stack)-argc-1] = receiver
	return vm.call(method.obj, argc)
}

// payload0 extracts an ObjNative when method wraps one, distinguishing the
// "native takes receiver explicitly" calling convention used by invoke from
// the closure calling convention (which threads the receiver through slot
// 0 instead).
func (v Value) payload0() (*ObjNative, bool) {
	if v.Is(ObjTypeNative) {
		return v.obj.asNative(), true
	}
	return nil, false
}

// --- upvalues ---

// makeClosure executes OP_CLOSURE: allocate a new closure and, for each
// upvalue slot, either capture a local from the current frame (islocal) or
// inherit an upvalue already captured by the enclosing closure.
func (vm *VM) makeClosure(fnObj *Object, refs []UpvalueRef) *Object {
	fn := fnObj.asFunction()
	ups := make([]*Object, len(refs))
	cl := &ObjClosure{Function: fnObj, Upvalues: ups}
	closureObj := vm.newObject(ObjTypeClosure, cl)
	mark := vm.protect(Obj(closureObj))

	enclosing := vm.currentFrame()
	for i, ref := range refs {
		if ref.IsLocal {
			ups[i] = vm.captureUpvalue(enclosing.base + int(ref.Index))
		} else {
			ups[i] = enclosing.closure.asClosure().Upvalues[ref.Index]
		}
	}
	_ = fn
	vm.unprotect(mark)
	return closureObj
}

// captureUpvalue finds or creates an open upvalue pointing at stack slot
// index, maintaining the VM-global open list sorted by descending stack
// address (§8 invariant, §9 design note).
func (vm *VM) captureUpvalue(index int) *Object {
	var prev *Object
	cur := vm.openUpvalues
	for cur != nil {
		uv := cur.asUpvalue()
		if uv.Index == index {
			return cur
		}
		if uv.Index < index {
			break
		}
		prev = cur
		cur = uv.Next
	}

	newUp := &ObjUpvalue{Open: true, Index: index}
	obj := vm.newObject(ObjTypeUpvalue, newUp)
	newUp.Next = cur
	if prev == nil {
		vm.openUpvalues = obj
	} else {
		prev.asUpvalue().Next = obj
	}
	return obj
}

// closeUpvalues closes every open upvalue whose stack slot is at or above
// index from: the value is copied into the upvalue's own Closed field and
// it is marked no-longer-open, then unlinked from the open list (§4.7
// "Closures and upvalues").
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil {
		uv := vm.openUpvalues.asUpvalue()
		if uv.Index < from {
			break
		}
		uv.Closed = vm.stack[uv.Index]
		uv.Open = false
		vm.openUpvalues = uv.Next
	}
}

func (vm *VM) currentFrame() *callFrame { return &vm.frames[vm.frameCount-1] }
