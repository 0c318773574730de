package glow

func installBytesMethods(vm *VM) {
	t := &vm.methods[methodsBytes]
	set := func(name string, fn NativeFn) {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: name, Type: NativeFunctionMethod, Fn: fn})
		t.Set(vm.newStringValue(name), Obj(nat))
	}

	set("len", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(self.obj.asBytes().Len())), true
	})
	set("append", func(vm *VM, self Value, args []Value) (Value, bool) {
		b := self.obj.asBytes()
		for _, a := range args {
			if !a.IsNumber() {
				vm.runtimeErrorf("append expects numeric byte values")
				return Nil, false
			}
			n := a.AsNumber()
			if n < 0 || n > 255 {
				vm.runtimeErrorf("byte value must be 0-255")
				return Nil, false
			}
			b.Append(byte(n))
		}
		return self, true
	})
	set("toString", func(vm *VM, self Value, args []Value) (Value, bool) {
		return vm.newStringValue(string(self.obj.asBytes().data())), true
	})
	set("slice", func(vm *VM, self Value, args []Value) (Value, bool) {
		var a, b Value = Nil, Nil
		if len(args) > 0 {
			a = args[0]
		}
		if len(args) > 1 {
			b = args[1]
		}
		return vm.getRangedIndex(self, a, b)
	})

	set("@itern", func(vm *VM, self Value, args []Value) (Value, bool) {
		next := nextIterIndex(args)
		if next >= self.obj.asBytes().Len() {
			return False, true
		}
		return Number(float64(next)), true
	})
	set("@iter", func(vm *VM, self Value, args []Value) (Value, bool) {
		i := int(args[0].AsNumber())
		return Number(float64(self.obj.asBytes().Get(i))), true
	})
}
