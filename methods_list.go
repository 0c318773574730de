package glow

import "sort"

func installListMethods(vm *VM) {
	t := &vm.methods[methodsList]
	set := func(name string, fn NativeFn) {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: name, Type: NativeFunctionMethod, Fn: fn})
		t.Set(vm.newStringValue(name), Obj(nat))
	}

	set("len", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(len(self.obj.asList().Items))), true
	})
	set("push", func(vm *VM, self Value, args []Value) (Value, bool) {
		l := self.obj.asList()
		l.Items = append(l.Items, args...)
		return self, true
	})
	set("pop", func(vm *VM, self Value, args []Value) (Value, bool) {
		l := self.obj.asList()
		if len(l.Items) == 0 {
			vm.runtimeErrorf("pop from an empty list")
			return Nil, false
		}
		last := l.Items[len(l.Items)-1]
		l.Items = l.Items[:len(l.Items)-1]
		return last, true
	})
	set("insert", func(vm *VM, self Value, args []Value) (Value, bool) {
		l := self.obj.asList()
		if len(args) < 2 || !args[0].IsNumber() {
			vm.runtimeErrorf("insert expects (index, value)")
			return Nil, false
		}
		i := normalizeIndex(int(args[0].AsNumber()), len(l.Items))
		if i < 0 || i > len(l.Items) {
			vm.runtimeErrorf("insert index out of range")
			return Nil, false
		}
		l.Items = append(l.Items, Nil)
		copy(l.Items[i+1:], l.Items[i:])
		l.Items[i] = args[1]
		return self, true
	})
	set("removeAt", func(vm *VM, self Value, args []Value) (Value, bool) {
		l := self.obj.asList()
		if len(args) < 1 || !args[0].IsNumber() {
			vm.runtimeErrorf("removeAt expects an index")
			return Nil, false
		}
		i := normalizeIndex(int(args[0].AsNumber()), len(l.Items))
		if i < 0 || i >= len(l.Items) {
			vm.runtimeErrorf("removeAt index out of range")
			return Nil, false
		}
		removed := l.Items[i]
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
		return removed, true
	})
	set("indexOf", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("indexOf expects a value")
			return Nil, false
		}
		for i, v := range self.obj.asList().Items {
			if Equal(v, args[0]) {
				return Number(float64(i)), true
			}
		}
		return Number(-1), true
	})
	set("contains", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("contains expects a value")
			return Nil, false
		}
		for _, v := range self.obj.asList().Items {
			if Equal(v, args[0]) {
				return True, true
			}
		}
		return False, true
	})
	set("reverse", func(vm *VM, self Value, args []Value) (Value, bool) {
		l := self.obj.asList()
		for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
			l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
		}
		return self, true
	})
	set("join", func(vm *VM, self Value, args []Value) (Value, bool) {
		sep := ""
		if len(args) > 0 && args[0].Is(ObjTypeString) {
			sep = string(args[0].obj.asString().Bytes)
		}
		items := self.obj.asList().Items
		out := make([]byte, 0, len(items)*4)
		for i, v := range items {
			if i > 0 {
				out = append(out, sep...)
			}
			out = append(out, vm.stringify(v)...)
		}
		return vm.newStringValue(string(out)), true
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

	// sort defaults to §4.4's Less ordering (numbers/strings); an optional
	// comparator closure `|a,b| ...` overrides it, invoked reentrantly.
	set("sort", func(vm *VM, self Value, args []Value) (Value, bool) {
		l := self.obj.asList()
		if len(args) > 0 {
			cmp := args[0]
			var callErr bool
			sort.SliceStable(l.Items, func(i, j int) bool {
				if callErr {
					return false
				}
				result, ok := vm.callReentrant(cmp, []Value{l.Items[i], l.Items[j]})
				if !ok {
					callErr = true
					return false
				}
				return result.Truthy()
			})
			if callErr {
				return Nil, false
			}
			return self, true
		}
		var badPair bool
		sort.SliceStable(l.Items, func(i, j int) bool {
			less, ok := Less(l.Items[i], l.Items[j])
			if !ok {
				badPair = true
			}
			return less
		})
		if badPair {
			vm.runtimeErrorf("list elements are not comparable")
			return Nil, false
		}
		return self, true
	})
	set("each", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("each expects a function")
			return Nil, false
		}
		fn := args[0]
		for i, v := range self.obj.asList().Items {
			if _, ok := vm.callReentrant(fn, []Value{v, Number(float64(i))}); !ok {
				return Nil, false
			}
		}
		return self, true
	})
	set("map", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("map expects a function")
			return Nil, false
		}
		fn := args[0]
		src := self.obj.asList().Items
		out := make([]Value, len(src))
		for i, v := range src {
			r, ok := vm.callReentrant(fn, []Value{v, Number(float64(i))})
			if !ok {
				return Nil, false
			}
			out[i] = r
		}
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: out})), true
	})
	set("filter", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("filter expects a function")
			return Nil, false
		}
		fn := args[0]
		var out []Value
		for i, v := range self.obj.asList().Items {
			r, ok := vm.callReentrant(fn, []Value{v, Number(float64(i))})
			if !ok {
				return Nil, false
			}
			if r.Truthy() {
				out = append(out, v)
			}
		}
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: out})), true
	})

	set("@itern", func(vm *VM, self Value, args []Value) (Value, bool) {
		next := nextIterIndex(args)
		if next >= len(self.obj.asList().Items) {
			return False, true
		}
		return Number(float64(next)), true
	})
	set("@iter", func(vm *VM, self Value, args []Value) (Value, bool) {
		i := int(args[0].AsNumber())
		return self.obj.asList().Items[i], true
	})
}
