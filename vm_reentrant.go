package glow

// callReentrant invokes callee with args from within a native method body
// (e.g. list.each/map/filter/sort's callback argument), driving the dispatch
// loop far enough to collect its result before returning control to the
// native. A raised exception unwinds through this call as an ordinary Go
// panic, caught by the outermost runProtected exactly as if the callback had
// been invoked directly from bytecode (§4.7 "Calls").
func (vm *VM) callReentrant(callee Value, args []Value) (Value, bool) {
	base := vm.frameCount
	mark := vm.protect(callee)
	for _, a := range args {
		vm.push(a)
	}
	if !vm.callValue(callee, len(args)) {
		vm.unprotect(mark)
		return Nil, false
	}
	if vm.frameCount == base {
		result := vm.pop()
		vm.unprotect(mark)
		return result, true
	}
	if err := vm.runLoop(vm.runCtx, base); err != nil {
		vm.runtimeErrorf("%v", err)
		vm.unprotect(mark)
		return Nil, false
	}
	result := vm.pop()
	vm.unprotect(mark)
	return result, true
}
