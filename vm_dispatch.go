package glow

import "context"

func readU8(code []byte, ip int) uint8 { return code[ip] }

func readU16(code []byte, ip int) uint16 {
	return uint16(code[ip])<<8 | uint16(code[ip+1])
}

// run drives the dispatch loop to completion (§4.7 "Dispatch"), recovering
// from raised exceptions at each level and re-entering the loop whenever
// dispatchException finds a handler, until either the program finishes
// (frameCount drops back to the level it had when run was entered) or an
// exception reaches the bottom of the stack unhandled. entryFrame is fixed
// once, up front: dispatchException may leave frameCount at some
// intermediate level (a handler inside a called function, not at module
// level), and runLoop must keep going until that original level is reached
// again, not just until whichever frame happened to catch the exception
// returns.
func (vm *VM) run(ctx context.Context) error {
	vm.runCtx = ctx
	entryFrame := vm.frameCount - 1
	for {
		err, excObj := vm.runProtected(ctx, entryFrame)
		if excObj == nil {
			return err
		}
		if vm.dispatchException() {
			continue
		}
		return vm.unhandledException(excObj)
	}
}

// runProtected runs runLoop under a recover that distinguishes a raised
// Exception (returned via excObj, for the caller to hand to
// dispatchException) from a host-fatal HaltError (returned via err) from
// any other panic (re-raised, to be caught by panicerr.Recover at the
// Interpret boundary as a bug report).
func (vm *VM) runProtected(ctx context.Context, baseFrame int) (err error, excObj *Object) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case vmException:
			excObj = v.obj
		case HaltError:
			err = v
		default:
			panic(r)
		}
	}()
	err = vm.runLoop(ctx, baseFrame)
	return err, nil
}

// runLoop executes bytecode until frameCount drops back to baseFrame (the
// level it had one call below wherever the caller considers its own entry
// point) or ctx is done. The caller fixes baseFrame once: callReentrant
// passes the frame level it captured before pushing the reentrant call's
// frame, and run passes the level the whole program started at, so that
// resuming after a caught exception (which may leave frameCount at some
// intermediate level) keeps dispatching rather than stopping early.
func (vm *VM) runLoop(ctx context.Context, baseFrame int) error {
	steps := 0
	for vm.frameCount > baseFrame {
		steps++
		if err := vm.checkContext(ctx, steps); err != nil {
			return err
		}

		f := &vm.frames[vm.frameCount-1]
		chunk := f.chunk()
		code := chunk.Code
		op := OpCode(code[f.ip])
		f.ip++

		switch op {
		case OpConstant:
			idx := readU16(code, f.ip)
			f.ip += 2
			vm.push(chunk.Constants[idx])

		case OpNil:
			vm.push(Nil)
		case OpTrue:
			vm.push(True)
		case OpFalse:
			vm.push(False)
		case OpEmpty:
			vm.push(Empty)

		case OpPop:
			vm.pop()
		case OpPopN:
			n := int(readU16(code, f.ip))
			f.ip += 2
			vm.popN(n)
		case OpDup:
			vm.push(vm.peek(0))

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpFloorDiv,
			OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
			b := vm.pop()
			a := vm.pop()
			v, ok := vm.binaryOp(op, a, b)
			if !ok {
				continue
			}
			vm.push(v)

		case OpNegate:
			a := vm.pop()
			if !a.IsNumber() {
				vm.runtimeErrorf("operand must be a number")
				continue
			}
			vm.push(Number(-a.AsNumber()))

		case OpNot:
			vm.push(Bool(!vm.pop().Truthy()))

		case OpBitNot:
			a := vm.pop()
			if !a.IsNumber() {
				vm.runtimeErrorf("operand must be a number")
				continue
			}
			vm.push(Number(float64(^int64(a.AsNumber()))))

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))

		case OpGreater, OpLess:
			b := vm.pop()
			a := vm.pop()
			lt, ok := Less(a, b)
			if !ok {
				vm.runtimeErrorf("values are not ordered")
				continue
			}
			if op == OpLess {
				vm.push(Bool(lt))
			} else {
				eq := Equal(a, b)
				vm.push(Bool(!lt && !eq))
			}

		case OpRange:
			b := vm.pop()
			a := vm.pop()
			if !a.IsNumber() || !b.IsNumber() {
				vm.runtimeErrorf("range bounds must be numbers")
				continue
			}
			r := &ObjRange{Lower: int(a.AsNumber()), Upper: int(b.AsNumber())}
			vm.push(Obj(vm.newObject(ObjTypeRange, r)))

		case OpStringify:
			vm.push(vm.newStringValue(vm.stringify(vm.pop())))

		case OpEcho:
			v := vm.pop()
			vm.out.Write([]byte(vm.echoString(v)))
			vm.out.Write([]byte{'\n'})

		case OpDefineGlobal:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			vm.frameModule(f).asModule().Values.Set(name, vm.pop())

		case OpGetGlobal:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			v, ok := vm.frameModule(f).asModule().Values.Get(name)
			if !ok {
				v, ok = vm.globals.Get(name)
			}
			if !ok {
				vm.runtimeErrorf("undefined global '%s'", constName(name))
				continue
			}
			vm.push(v)

		case OpSetGlobal:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			mod := vm.frameModule(f).asModule()
			if _, ok := mod.Values.Get(name); ok {
				mod.Values.Set(name, vm.peek(0))
			} else if _, ok := vm.globals.Get(name); ok {
				vm.globals.Set(name, vm.peek(0))
			} else {
				vm.runtimeErrorf("undefined global '%s'", constName(name))
			}

		case OpGetLocal:
			slot := int(readU16(code, f.ip))
			f.ip += 2
			vm.push(vm.stack[f.base+slot])

		case OpSetLocal:
			slot := int(readU16(code, f.ip))
			f.ip += 2
			vm.stack[f.base+slot] = vm.peek(0)

		case OpGetUpvalue:
			idx := int(readU16(code, f.ip))
			f.ip += 2
			uv := f.closure.asClosure().Upvalues[idx].asUpvalue()
			if uv.isOpen() {
				vm.push(vm.stack[uv.Index])
			} else {
				vm.push(uv.Closed)
			}

		case OpSetUpvalue:
			idx := int(readU16(code, f.ip))
			f.ip += 2
			uv := f.closure.asClosure().Upvalues[idx].asUpvalue()
			if uv.isOpen() {
				vm.stack[uv.Index] = vm.peek(0)
			} else {
				uv.Closed = vm.peek(0)
			}

		case OpGetProperty:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			recv := vm.pop()
			v, ok := vm.getProperty(recv, name.obj, false)
			if !ok {
				continue
			}
			vm.push(v)

		case OpGetSelfProperty:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			recv := vm.pop()
			v, ok := vm.getProperty(recv, name.obj, true)
			if !ok {
				continue
			}
			vm.push(v)

		case OpSetProperty:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			val := vm.pop()
			recv := vm.pop()
			if !vm.setProperty(recv, name.obj, val) {
				continue
			}
			vm.push(val)

		case OpGetIndex:
			argc := int(readU8(code, f.ip))
			f.ip++
			if argc == 2 {
				b := vm.pop()
				a := vm.pop()
				recv := vm.pop()
				v, ok := vm.getRangedIndex(recv, a, b)
				if !ok {
					continue
				}
				vm.push(v)
			} else {
				idx := vm.pop()
				recv := vm.pop()
				v, ok := vm.getIndex(recv, idx)
				if !ok {
					continue
				}
				vm.push(v)
			}

		case OpSetIndex:
			val := vm.pop()
			idx := vm.pop()
			recv := vm.pop()
			if !vm.setIndex(recv, idx, val) {
				continue
			}
			vm.push(val)

		case OpJumpIfFalse:
			off := readU16(code, f.ip)
			f.ip += 2
			if !vm.peek(0).Truthy() {
				f.ip += int(off)
			}

		case OpJump:
			off := readU16(code, f.ip)
			f.ip += 2
			f.ip += int(off)

		case OpLoop:
			off := readU16(code, f.ip)
			f.ip += 2
			f.ip -= int(off)

		case OpBreakPlaceholder:
			// compiler always rewrites these to OpJump before the VM ever
			// sees compiled code; reaching here indicates a compiler bug.
			f.ip += 2

		case OpCall:
			argc := int(readU8(code, f.ip))
			f.ip++
			callee := vm.peek(argc)
			if !vm.callValue(callee, argc) {
				continue
			}

		case OpInvoke:
			idx := readU16(code, f.ip)
			f.ip += 2
			argc := int(readU8(code, f.ip))
			f.ip++
			if !vm.invoke(chunk.Constants[idx].obj, argc) {
				continue
			}

		case OpInvokeSelf:
			idx := readU16(code, f.ip)
			f.ip += 2
			argc := int(readU8(code, f.ip))
			f.ip++
			if !vm.invokeSelf(chunk.Constants[idx].obj, argc) {
				continue
			}

		case OpSuperInvoke:
			idx := readU16(code, f.ip)
			f.ip += 2
			argc := int(readU8(code, f.ip))
			f.ip++
			if !vm.superInvoke(chunk.Constants[idx].obj, argc) {
				continue
			}

		case OpSuperInvokeSelf:
			argc := int(readU8(code, f.ip))
			f.ip++
			if !vm.superInvokeSelf(argc) {
				continue
			}

		case OpReturn:
			result := vm.pop()
			if fn := f.closure.asClosure().Function.asFunction(); fn.Owner != nil && fn.Name == fn.Owner.asClass().Name {
				result = vm.stack[f.base] // an initializer evaluates to its instance
			}
			vm.closeUpvalues(f.base)
			vm.stack = vm.stack[:f.base]
			vm.frameCount--
			if vm.frameCount == baseFrame {
				vm.push(result)
				return nil
			}
			vm.push(result)

		case OpClass:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := string(chunk.Constants[idx].obj.asString().Bytes)
			class := &ObjClass{Name: name}
			vm.push(Obj(vm.newObject(ObjTypeClass, class)))

		case OpInherit:
			superVal := vm.peek(1)
			childVal := vm.peek(0)
			if !superVal.Is(ObjTypeClass) {
				vm.runtimeErrorf("superclass must be a class")
				continue
			}
			super := superVal.obj.asClass()
			child := childVal.obj.asClass()
			super.Properties.Each(func(k, v Value) { child.Properties.Set(k, v) })
			super.Methods.Each(func(k, v Value) { child.Methods.Set(k, v) })
			child.Super = superVal.obj

		case OpMethod:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			methodVal := vm.pop()
			classVal := vm.peek(0)
			class := classVal.obj.asClass()
			class.Methods.Set(name, methodVal)
			if methodVal.Is(ObjTypeClosure) {
				fn := methodVal.obj.asClosure().Function.asFunction()
				fn.Owner = classVal.obj
				if fn.Name == class.Name {
					class.Initializer = methodVal
				}
			}

		case OpClassProperty:
			idx := readU16(code, f.ip)
			f.ip += 2
			isStatic := readU8(code, f.ip) != 0
			f.ip++
			name := chunk.Constants[idx]
			val := vm.pop()
			classVal := vm.peek(0)
			class := classVal.obj.asClass()
			if isStatic {
				class.Statics.Set(name, val)
			} else {
				class.Properties.Set(name, val)
			}

		case OpClosure:
			idx := readU16(code, f.ip)
			f.ip += 2
			fnObj := chunk.Constants[idx].obj
			n := int(readU8(code, f.ip))
			f.ip++
			refs := make([]UpvalueRef, n)
			for i := 0; i < n; i++ {
				isLocal := readU8(code, f.ip) != 0
				f.ip++
				index := readU16(code, f.ip)
				f.ip += 2
				refs[i] = UpvalueRef{IsLocal: isLocal, Index: uint8(index)}
			}
			vm.push(Obj(vm.makeClosure(fnObj, refs)))

		case OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case OpList:
			n := int(readU16(code, f.ip))
			f.ip += 2
			items := make([]Value, n)
			copy(items, vm.stack[len(vm.stack)-n:])
			vm.popN(n)
			vm.push(Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})))

		case OpDict:
			n := int(readU16(code, f.ip))
			f.ip += 2
			d := &ObjDict{}
			base := len(vm.stack) - n*2
			for i := 0; i < n; i++ {
				k := vm.stack[base+i*2]
				v := vm.stack[base+i*2+1]
				if d.Table.Set(k, v) {
					d.Keys = append(d.Keys, k)
				}
			}
			vm.popN(n * 2)
			vm.push(Obj(vm.newObject(ObjTypeDict, d)))

		case OpTry:
			classConst := int(readU16(code, f.ip))
			catchAddr := int(readU16(code, f.ip+2))
			finallyAddr := int(readU16(code, f.ip+4))
			f.ip += 6
			if f.nhandler >= maxTryHandlers {
				vm.runtimeErrorf("too many nested try blocks")
				continue
			}
			h := handler{
				catchAddr:   catchAddr,
				finallyAddr: finallyAddr,
				hasCatch:    catchAddr != 0,
				hasFinally:  finallyAddr != 0,
				stackTop:    len(vm.stack),
			}
			if h.hasCatch {
				nameVal := chunk.Constants[classConst]
				classVal, ok := vm.frameModule(f).asModule().Values.Get(nameVal)
				if !ok {
					classVal, ok = vm.globals.Get(nameVal)
				}
				if !ok || !classVal.Is(ObjTypeClass) {
					vm.runtimeErrorf("undefined exception class '%s'", constName(nameVal))
					continue
				}
				h.classVal = classVal
			}
			f.handlers[f.nhandler] = h
			f.nhandler++

		case OpPopTry:
			if f.nhandler > 0 {
				f.nhandler--
			}

		case OpPublishTry:
			resume := vm.pop()
			if resume.Truthy() && vm.inflight != nil {
				excObj := vm.inflight
				vm.inflight = nil
				vm.raise(excObj)
			}

		case OpDie:
			v := vm.pop()
			if !v.Is(ObjTypeInstance) || !isInstanceOf(v.obj, vm.exceptionClass) {
				vm.runtimeErrorf("can only die with an Exception instance")
				continue
			}
			vm.raise(v.obj)

		case OpAssert:
			msgVal := vm.pop()
			cond := vm.pop()
			if !cond.Truthy() {
				msg := "assertion failed"
				if msgVal.Is(ObjTypeString) {
					msg = string(msgVal.obj.asString().Bytes)
				}
				vm.runtimeErrorf("%s", msg)
			}

		case OpSwitch:
			idx := readU16(code, f.ip)
			f.ip += 2
			sw := chunk.Constants[idx].obj.asSwitch()
			v := vm.pop()
			if off, ok := sw.Table[switchKey(v)]; ok {
				f.ip += off
			} else {
				f.ip += sw.Default
			}

		case OpCallImport:
			idx := readU16(code, f.ip)
			f.ip += 2
			closureVal := chunk.Constants[idx]
			vm.push(closureVal)
			vm.call(closureVal.obj, 0)

		case OpNativeModule:
			idx := readU16(code, f.ip)
			f.ip += 2
			pathVal := chunk.Constants[idx]
			path := string(pathVal.obj.asString().Bytes)
			nm, ok := vm.natives[path]
			if !ok {
				vm.runtimeErrorf("unregistered native module '%s'", path)
				continue
			}
			var obj *Object
			if v, ok := vm.modules.Get(pathVal); ok {
				obj = v.obj
			} else {
				var ierr error
				obj, ierr = vm.instantiateNativeModule(nm)
				if ierr != nil {
					vm.runtimeErrorf("%v", ierr)
					continue
				}
				vm.modules.Set(pathVal, Obj(obj))
			}
			vm.push(Obj(obj))

		case OpSelectImport, OpSelectNativeImport:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			modVal := vm.peek(0)
			v, ok := modVal.obj.asModule().Values.Get(name)
			if !ok {
				vm.runtimeErrorf("module has no value '%s'", constName(name))
				continue
			}
			vm.frameModule(f).asModule().Values.Set(name, v)

		case OpImportAll, OpImportAllNative:
			modVal := vm.peek(0)
			dst := vm.frameModule(f).asModule()
			modVal.obj.asModule().Values.Each(func(k, v Value) { dst.Values.Set(k, v) })

		case OpEjectImport, OpEjectNativeImport:
			idx := readU16(code, f.ip)
			f.ip += 2
			name := chunk.Constants[idx]
			vm.frameModule(f).asModule().Values.Delete(name)
			vm.pop()

		default:
			vm.runtimeErrorf("unimplemented opcode %v", op)
		}

		vm.maybeCollect()
	}
	return nil
}

// frameModule returns the module a frame's globals reads/writes target:
// the owning module of the frame's function (§9 design note, "globals vs
// module values").
func (vm *VM) frameModule(f *callFrame) *Object {
	fn := f.closure.asClosure().Function.asFunction()
	if fn.Module != nil {
		return fn.Module
	}
	return vm.curModule
}

func constName(v Value) string {
	if v.Is(ObjTypeString) {
		return string(v.obj.asString().Bytes)
	}
	return "?"
}
