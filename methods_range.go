package glow

func installRangeMethods(vm *VM) {
	t := &vm.methods[methodsRange]
	set := func(name string, fn NativeFn) {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: name, Type: NativeFunctionMethod, Fn: fn})
		t.Set(vm.newStringValue(name), Obj(nat))
	}

	set("len", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(self.obj.asRange().Extent())), true
	})
	set("lower", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(self.obj.asRange().Lower)), true
	})
	set("upper", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(self.obj.asRange().Upper)), true
	})
	set("contains", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 || !args[0].IsNumber() {
			vm.runtimeErrorf("contains expects a number")
			return Nil, false
		}
		r := self.obj.asRange()
		lo, hi := r.Lower, r.Upper
		if lo > hi {
			lo, hi = hi, lo
		}
		n := args[0].AsNumber()
		return Bool(n >= float64(lo) && n < float64(hi)), true
	})
	set("toList", func(vm *VM, self Value, args []Value) (Value, bool) {
		r := self.obj.asRange()
		items := make([]Value, r.Extent())
		for i := range items {
			items[i] = Number(float64(rangeValueAt(r, i)))
		}
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
	})

	set("@itern", func(vm *VM, self Value, args []Value) (Value, bool) {
		next := nextIterIndex(args)
		if next >= self.obj.asRange().Extent() {
			return False, true
		}
		return Number(float64(next)), true
	})
	set("@iter", func(vm *VM, self Value, args []Value) (Value, bool) {
		i := int(args[0].AsNumber())
		return Number(float64(rangeValueAt(self.obj.asRange(), i))), true
	})
}

// rangeValueAt returns the value at the i'th step of r, counting up from
// Lower when Upper >= Lower, otherwise counting down from Lower.
func rangeValueAt(r *ObjRange, i int) int {
	if r.Upper >= r.Lower {
		return r.Lower + i
	}
	return r.Lower - i
}
